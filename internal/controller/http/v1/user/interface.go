package user

import (
	"context"

	"busoptimizer/backend/internal/repository/postgres/user"
)

type User interface {
	GetList(ctx context.Context, filter user.Filter) ([]user.GetListResponse, int, error)
	Create(ctx context.Context, request user.CreateRequest) (user.CreateResponse, error)
}
