package user

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/entity"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/repository/postgres"
)

type Repository struct {
	*postgresql.Database
}

func NewRepository(database *postgresql.Database) *Repository {
	return &Repository{Database: database}
}

func (r Repository) GetByUsername(ctx context.Context, username string) (entity.User, error) {
	var detail entity.User

	err := r.NewSelect().
		Model(&detail).
		Where("lower(username) = lower(?) AND deleted_at IS NULL", strings.TrimSpace(username)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.User{}, web.NewRequestError(postgres.ErrNotFound, http.StatusUnauthorized)
	}
	if err != nil {
		return entity.User{}, web.NewRequestError(errors.Wrap(err, "selecting user"), http.StatusBadRequest)
	}

	return detail, nil
}

// Create inserts a user with a bcrypt-hashed password. It is used by the
// admin CLI, so no claims are checked.
func (r Repository) Create(ctx context.Context, request CreateRequest) (CreateResponse, error) {
	if err := r.ValidateStruct(&request, "Username", "Password", "Role"); err != nil {
		return CreateResponse{}, err
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		return CreateResponse{}, err
	}

	user := entity.User{
		Username: strings.TrimSpace(request.Username),
		FullName: request.FullName,
		Password: hash,
		Role:     request.Role,
	}

	res, err := r.NewInsert().
		Model(&user).
		On("CONFLICT (username) DO NOTHING").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return CreateResponse{}, web.NewRequestError(errors.Wrap(err, "creating user"), http.StatusBadRequest)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return CreateResponse{}, web.NewRequestError(errors.Errorf("username %s already exists", user.Username), http.StatusConflict)
	}

	return CreateResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

func (r Repository) GetList(ctx context.Context, filter Filter) ([]GetListResponse, int, error) {
	if _, err := r.CheckClaims(ctx, auth.RoleAdmin); err != nil {
		return nil, 0, err
	}

	q := r.NewSelect().
		Model((*entity.User)(nil)).
		Column("id", "username", "full_name", "role").
		Where("deleted_at IS NULL").
		OrderExpr("username")

	if filter.Search != nil {
		q = q.Where("username ILIKE ?", "%"+strings.TrimSpace(*filter.Search)+"%")
	}
	if filter.Page != nil && filter.Limit != nil {
		offset := (*filter.Page - 1) * (*filter.Limit)
		filter.Offset = &offset
	}
	if filter.Limit != nil {
		q = q.Limit(*filter.Limit)
	}
	if filter.Offset != nil {
		q = q.Offset(*filter.Offset)
	}

	var list []GetListResponse
	count, err := q.ScanAndCount(ctx, &list)
	if err != nil {
		return nil, 0, web.NewRequestError(errors.Wrap(err, "selecting users"), http.StatusBadRequest)
	}

	return list, count, nil
}
