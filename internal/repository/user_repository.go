package repository

import (
	"context"

	"github.com/atang/wimf-backend/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*domain.User, error)
}
