// Package storage declares the persistence contract both concrete backends
// satisfy. Callers observe identical return shapes regardless of which
// backend is active; ids are opaque strings whose format is backend-native.
package storage

import (
	"context"
	"errors"

	"github.com/driverbook/tripwage/internal/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrUserExists = errors.New("user with such email or username already exists")
)

// OrderStore persists delivery orders. List results are sorted by date
// descending.
type OrderStore interface {
	Create(ctx context.Context, order models.Order) (models.Order, error)
	FindByID(ctx context.Context, id string) (models.Order, error)
	FindByUser(ctx context.Context, userID string) ([]models.Order, error)
	FindByUserAndDate(ctx context.Context, userID, date string) ([]models.Order, error)
	FindByUserAndDateRange(ctx context.Context, userID, start, end string) ([]models.Order, error)
	Update(ctx context.Context, id string, upd models.OrderUpdate) (models.Order, error)
	Delete(ctx context.Context, id string) error
}

// WorkTimeStore persists daily work intervals. Save upserts on the
// (userID, date) natural key: the check-then-write sequence is not atomic,
// and two concurrent saves for the same key may race. That is an accepted
// limitation, not an invariant this layer defends.
type WorkTimeStore interface {
	Save(ctx context.Context, wt models.WorkTime) (models.WorkTime, error)
	FindByUserAndDate(ctx context.Context, userID, date string) (models.WorkTime, error)
	FindByUser(ctx context.Context, userID string) ([]models.WorkTime, error)
}

// UserStore persists account credentials. Username and email are globally
// unique; Create reports ErrUserExists on a collision.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)
}

// Stores bundles one backend's three entity stores.
type Stores struct {
	Orders    OrderStore
	WorkTimes WorkTimeStore
	Users     UserStore
}
