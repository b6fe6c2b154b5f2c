package repository

import (
	"context"

	"github.com/garnizeh/contactdesk/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

type ContactRepo interface {
	CreateContact(ctx context.Context, c *models.Contact) (int64, error)
	GetContact(ctx context.Context, id int64) (*models.Contact, error)
	ListContacts(ctx context.Context, q models.Query) ([]models.Contact, error)
	DeleteContact(ctx context.Context, id int64) (bool, error)
	DeleteContacts(ctx context.Context, ids []int64) (int64, error)
	SetRead(ctx context.Context, id int64, read bool) (bool, error)
	CountContacts(ctx context.Context) (int64, error)
}

type AdminRepo interface {
	CreateAdmin(ctx context.Context, a *models.Admin) (int64, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*models.Admin, error)
}

// TokenRepo records revoked token identifiers until they expire.
type TokenRepo interface {
	RevokeToken(ctx context.Context, jti string, expires int64) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, now int64) (int64, error)
}
