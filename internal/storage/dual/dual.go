// Package dual fans every mutation out to two backends. The read primary is
// authoritative: its write must succeed or the operation fails, and every
// read is answered by it alone. The secondary is a best-effort mirror kept
// for migration and disaster recovery; records are located there by natural
// key, never by id, because the backends' id spaces are disjoint. Secondary
// failures are logged and absorbed; they never cross this boundary.
package dual

import (
	"context"
	"errors"
	"log/slog"

	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
)

// locate finds the element whose natural key matches. The one place the
// locate-or-skip reconciliation is written; every entity mirror uses it.
func locate[T any, K comparable](items []T, key K, keyOf func(T) K) (T, bool) {
	for _, it := range items {
		if keyOf(it) == key {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Orders coordinates an order store pair.
type Orders struct {
	primary   storage.OrderStore
	secondary storage.OrderStore
	log       *slog.Logger
}

func NewOrders(primary, secondary storage.OrderStore, log *slog.Logger) *Orders {
	return &Orders{primary: primary, secondary: secondary, log: log}
}

func (d *Orders) Create(ctx context.Context, order models.Order) (models.Order, error) {
	created, err := d.primary.Create(ctx, order)
	if err != nil {
		return models.Order{}, err
	}
	d.mirrorUpsert(ctx, created)
	return created, nil
}

// mirrorUpsert writes the created order to the secondary with a payload
// rebuilt from natural-key fields: update the counterpart when one exists,
// create a fresh record (no primary id) otherwise.
func (d *Orders) mirrorUpsert(ctx context.Context, created models.Order) {
	key := created.Key()
	counterpart, ok, err := d.findCounterpart(ctx, key)
	if err != nil {
		d.log.Warn("dual-write: order secondary lookup failed", "error", err, "date", key.Date)
		return
	}
	if ok {
		if _, err := d.secondary.Update(ctx, counterpart.ID, fullUpdate(created)); err != nil {
			d.log.Warn("dual-write: order secondary update failed", "error", err, "date", key.Date)
		}
		return
	}
	clone := created
	clone.ID = ""
	if _, err := d.secondary.Create(ctx, clone); err != nil {
		d.log.Warn("dual-write: order secondary write failed", "error", err, "date", key.Date)
	}
}

func (d *Orders) findCounterpart(ctx context.Context, key models.OrderKey) (models.Order, bool, error) {
	candidates, err := d.secondary.FindByUserAndDate(ctx, key.UserID, key.Date)
	if err != nil {
		return models.Order{}, false, err
	}
	match, ok := locate(candidates, key, models.Order.Key)
	return match, ok, nil
}

func (d *Orders) FindByID(ctx context.Context, id string) (models.Order, error) {
	return d.primary.FindByID(ctx, id)
}

func (d *Orders) FindByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return d.primary.FindByUser(ctx, userID)
}

func (d *Orders) FindByUserAndDate(ctx context.Context, userID, date string) ([]models.Order, error) {
	return d.primary.FindByUserAndDate(ctx, userID, date)
}

func (d *Orders) FindByUserAndDateRange(ctx context.Context, userID, start, end string) ([]models.Order, error) {
	return d.primary.FindByUserAndDateRange(ctx, userID, start, end)
}

// Update mutates the primary record by native id, then mirrors into the
// secondary only when a natural-key counterpart already exists there. An
// update must never fork into a duplicate create on the secondary.
func (d *Orders) Update(ctx context.Context, id string, upd models.OrderUpdate) (models.Order, error) {
	updated, err := d.primary.Update(ctx, id, upd)
	if err != nil {
		return models.Order{}, err
	}

	key := updated.Key()
	counterpart, ok, ferr := d.findCounterpart(ctx, key)
	switch {
	case ferr != nil:
		d.log.Warn("dual-write: order secondary lookup failed", "error", ferr, "date", key.Date)
	case !ok:
		d.log.Info("dual-write: no order counterpart on secondary, mirror skipped", "date", key.Date)
	default:
		if _, err := d.secondary.Update(ctx, counterpart.ID, upd); err != nil {
			d.log.Warn("dual-write: order secondary update failed", "error", err, "date", key.Date)
		}
	}
	return updated, nil
}

// Delete removes the primary record by native id, then deletes the
// secondary counterpart if a natural-key match exists; otherwise the
// mirror delete is skipped silently.
func (d *Orders) Delete(ctx context.Context, id string) error {
	doomed, err := d.primary.FindByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return d.primary.Delete(ctx, id)
	}
	if err != nil {
		return err
	}
	if err := d.primary.Delete(ctx, id); err != nil {
		return err
	}

	key := doomed.Key()
	counterpart, ok, ferr := d.findCounterpart(ctx, key)
	switch {
	case ferr != nil:
		d.log.Warn("dual-write: order secondary lookup failed", "error", ferr, "date", key.Date)
	case !ok:
		d.log.Info("dual-write: no order counterpart on secondary, delete skipped", "date", key.Date)
	default:
		if err := d.secondary.Delete(ctx, counterpart.ID); err != nil {
			d.log.Warn("dual-write: order secondary delete failed", "error", err, "date", key.Date)
		}
	}
	return nil
}

// fullUpdate turns a complete order into a partial update touching every
// mutable field.
func fullUpdate(o models.Order) models.OrderUpdate {
	return models.OrderUpdate{
		OrderNumber:    &o.OrderNumber,
		PaymentType:    &o.PaymentType,
		OrderValue:     &o.OrderValue,
		PaymentAmount:  &o.PaymentAmount,
		ChangeReturned: &o.ChangeReturned,
		ExtraCashTip:   &o.ExtraCashTip,
		DistanceKm:     &o.DistanceKm,
		Notes:          &o.Notes,
	}
}

// WorkTimes coordinates a work-time store pair. Save is an upsert on both
// sides already, so the mirror is the secondary's own upsert with the
// primary id stripped.
type WorkTimes struct {
	primary   storage.WorkTimeStore
	secondary storage.WorkTimeStore
	log       *slog.Logger
}

func NewWorkTimes(primary, secondary storage.WorkTimeStore, log *slog.Logger) *WorkTimes {
	return &WorkTimes{primary: primary, secondary: secondary, log: log}
}

func (d *WorkTimes) Save(ctx context.Context, wt models.WorkTime) (models.WorkTime, error) {
	saved, err := d.primary.Save(ctx, wt)
	if err != nil {
		return models.WorkTime{}, err
	}

	mirror := saved
	mirror.ID = ""
	if _, err := d.secondary.Save(ctx, mirror); err != nil {
		d.log.Warn("dual-write: work time secondary write failed", "error", err, "date", wt.Date)
	}
	return saved, nil
}

func (d *WorkTimes) FindByUserAndDate(ctx context.Context, userID, date string) (models.WorkTime, error) {
	return d.primary.FindByUserAndDate(ctx, userID, date)
}

func (d *WorkTimes) FindByUser(ctx context.Context, userID string) ([]models.WorkTime, error) {
	return d.primary.FindByUser(ctx, userID)
}

// Users coordinates a user store pair. Users carry no per-day discriminator;
// the globally unique email is the cross-backend correlation key.
type Users struct {
	primary   storage.UserStore
	secondary storage.UserStore
	log       *slog.Logger
}

func NewUsers(primary, secondary storage.UserStore, log *slog.Logger) *Users {
	return &Users{primary: primary, secondary: secondary, log: log}
}

func (d *Users) Create(ctx context.Context, user models.User) (models.User, error) {
	created, err := d.primary.Create(ctx, user)
	if err != nil {
		return models.User{}, err
	}

	counterpart, err := d.secondary.FindByEmail(ctx, created.Email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		clone := created
		clone.ID = ""
		if _, err := d.secondary.Create(ctx, clone); err != nil {
			d.log.Warn("dual-write: user secondary write failed", "error", err)
		}
	case err != nil:
		d.log.Warn("dual-write: user secondary lookup failed", "error", err)
	default:
		upd := models.UserUpdate{Username: &created.Username, Email: &created.Email, Password: &created.Password}
		if _, err := d.secondary.Update(ctx, counterpart.ID, upd); err != nil {
			d.log.Warn("dual-write: user secondary update failed", "error", err)
		}
	}
	return created, nil
}

func (d *Users) FindByID(ctx context.Context, id string) (models.User, error) {
	return d.primary.FindByID(ctx, id)
}

func (d *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return d.primary.FindByEmail(ctx, email)
}

func (d *Users) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return d.primary.FindByUsername(ctx, username)
}

func (d *Users) FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error) {
	return d.primary.FindByEmailOrUsername(ctx, email, username)
}

func (d *Users) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	updated, err := d.primary.Update(ctx, id, upd)
	if err != nil {
		return models.User{}, err
	}

	// Locates by the post-update email: when the update changed the email,
	// the stale counterpart is deliberately left alone rather than guessed at.
	counterpart, ferr := d.secondary.FindByEmail(ctx, updated.Email)
	switch {
	case errors.Is(ferr, storage.ErrNotFound):
		d.log.Info("dual-write: no user counterpart on secondary, mirror skipped")
	case ferr != nil:
		d.log.Warn("dual-write: user secondary lookup failed", "error", ferr)
	default:
		if _, err := d.secondary.Update(ctx, counterpart.ID, upd); err != nil {
			d.log.Warn("dual-write: user secondary update failed", "error", err)
		}
	}
	return updated, nil
}
