package user

type Filter struct {
	Limit  *int
	Offset *int
	Page   *int
	Search *string
}

type SignInRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type CreateRequest struct {
	Username string  `json:"username"  form:"username"  validate:"required,min=3,max=64"`
	Password string  `json:"password"  form:"password"  validate:"required,min=4"`
	Role     string  `json:"role"      form:"role"      validate:"required,oneof=ADMIN DASHBOARD"`
	FullName *string `json:"full_name" form:"full_name"`
}

type CreateResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type GetListResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}
