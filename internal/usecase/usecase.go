// Package usecase implements the operations the HTTP layer invokes. The
// caller supplies an already-authenticated user id; ownership of individual
// records is checked by the handlers before mutations reach this layer.
package usecase

import (
	"context"
	"errors"

	"github.com/driverbook/tripwage/internal/auth"
	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
	"github.com/driverbook/tripwage/internal/wage"
)

var ErrInvalidCredentials = errors.New("invalid email/password")

type Service struct {
	stores storage.Stores
	wage   wage.Config
}

func NewService(stores storage.Stores, cfg wage.Config) *Service {
	return &Service{stores: stores, wage: cfg}
}

func (s *Service) CreateOrder(ctx context.Context, userID string, order models.Order) (models.Order, error) {
	order.ID = ""
	order.UserID = userID
	order.Normalize()
	return s.stores.Orders.Create(ctx, order)
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.stores.Orders.FindByUser(ctx, userID)
}

func (s *Service) ListOrdersByDate(ctx context.Context, userID, date string) ([]models.Order, error) {
	return s.stores.Orders.FindByUserAndDate(ctx, userID, date)
}

func (s *Service) ListOrdersByDateRange(ctx context.Context, userID, start, end string) ([]models.Order, error) {
	return s.stores.Orders.FindByUserAndDateRange(ctx, userID, start, end)
}

func (s *Service) GetOrder(ctx context.Context, id string) (models.Order, error) {
	return s.stores.Orders.FindByID(ctx, id)
}

func (s *Service) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) (models.Order, error) {
	return s.stores.Orders.Update(ctx, id, upd)
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.stores.Orders.Delete(ctx, id)
}

// DailyStats derives one day's figures. Order-level amounts use the
// snapshot calculation context; the work-hours roll-up (base payment,
// total and hourly wage) is the same in every context.
func (s *Service) DailyStats(ctx context.Context, userID, date string) (wage.DaySummary, error) {
	orders, err := s.stores.Orders.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return wage.DaySummary{}, err
	}
	hours, err := s.workHoursFor(ctx, userID, date)
	if err != nil {
		return wage.DaySummary{}, err
	}
	return wage.DailySummary(date, orders, hours, s.wage, wage.DailySnapshot), nil
}

// HistoricalStats derives one summary per calendar date in [start, end],
// zero-filled where no orders exist.
func (s *Service) HistoricalStats(ctx context.Context, userID, start, end string) ([]wage.DaySummary, error) {
	orders, err := s.stores.Orders.FindByUserAndDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	workTimes, err := s.stores.WorkTimes.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	hoursByDate := make(map[string]float64, len(workTimes))
	for _, wt := range workTimes {
		hoursByDate[wt.Date] = wt.WorkHours
	}
	return wage.RangeSummary(start, end, orders, hoursByDate, s.wage, wage.HistoricalReport)
}

func (s *Service) workHoursFor(ctx context.Context, userID, date string) (float64, error) {
	wt, err := s.stores.WorkTimes.FindByUserAndDate(ctx, userID, date)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return wt.WorkHours, nil
}

// SaveWorkTime upserts the day's interval, deriving work hours from the
// given wall-clock bounds.
func (s *Service) SaveWorkTime(ctx context.Context, userID, date, startTime, endTime string) (models.WorkTime, error) {
	return s.stores.WorkTimes.Save(ctx, models.WorkTime{
		UserID:    userID,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		WorkHours: wage.WorkHours(startTime, endTime),
	})
}

func (s *Service) GetWorkTime(ctx context.Context, userID, date string) (models.WorkTime, error) {
	return s.stores.WorkTimes.FindByUserAndDate(ctx, userID, date)
}

func (s *Service) Register(ctx context.Context, username, email, password string) (models.User, error) {
	_, err := s.stores.Users.FindByEmailOrUsername(ctx, email, username)
	if err == nil {
		return models.User{}, storage.ErrUserExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{Username: username, Email: email, Password: hash}
	user.Normalize()
	return s.stores.Users.Create(ctx, user)
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.stores.Users.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !auth.CheckPassword(user.Password, password) {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (models.User, error) {
	return s.stores.Users.FindByID(ctx, userID)
}

// UpdateProfile changes username and/or email, rejecting values already
// taken by another account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd models.UserUpdate) (models.User, error) {
	if upd.Email != nil {
		if other, err := s.stores.Users.FindByEmail(ctx, *upd.Email); err == nil && other.ID != userID {
			return models.User{}, storage.ErrUserExists
		}
	}
	if upd.Username != nil {
		if other, err := s.stores.Users.FindByUsername(ctx, *upd.Username); err == nil && other.ID != userID {
			return models.User{}, storage.ErrUserExists
		}
	}
	upd.Password = nil
	return s.stores.Users.Update(ctx, userID, upd)
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	user, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, current) {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.stores.Users.Update(ctx, userID, models.UserUpdate{Password: &hash})
	return err
}
