package users

import (
	"context"

	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID. A duplicate email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindByEmail expects an already normalized email.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}
