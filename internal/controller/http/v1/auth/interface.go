package auth

import (
	"context"

	"busoptimizer/backend/internal/entity"
)

type User interface {
	GetByUsername(ctx context.Context, username string) (entity.User, error)
}

type Tokens interface {
	GenerateToken(userID int64, role string) (string, error)
}
