package users

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

type Repository interface {
	// Create inserts the user and fills in its ID. A taken email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByEmail returns common.ErrorNotFound for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
