// Package storagetest provides an in-memory implementation of the storage
// contract for tests: coordinator tests run against two independent
// instances, handler tests against one.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
)

// Backend is one in-memory backend. IDPrefix keeps id spaces of two
// instances visibly disjoint, the way the real backends' are.
type Backend struct {
	IDPrefix string

	mu        sync.Mutex
	seq       int
	orders    map[string]models.Order
	workTimes map[string]models.WorkTime
	users     map[string]models.User
}

func New(idPrefix string) *Backend {
	return &Backend{
		IDPrefix:  idPrefix,
		orders:    make(map[string]models.Order),
		workTimes: make(map[string]models.WorkTime),
		users:     make(map[string]models.User),
	}
}

func (b *Backend) Stores() storage.Stores {
	return storage.Stores{
		Orders:    &OrderStore{b: b},
		WorkTimes: &WorkTimeStore{b: b},
		Users:     &UserStore{b: b},
	}
}

func (b *Backend) nextID() string {
	b.seq++
	return fmt.Sprintf("%s-%d", b.IDPrefix, b.seq)
}

type OrderStore struct {
	b *Backend
}

func (s *OrderStore) Create(_ context.Context, order models.Order) (models.Order, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	order.ID = s.b.nextID()
	order.CreatedAt = models.NowISO()
	order.UpdatedAt = order.CreatedAt
	s.b.orders[order.ID] = order
	return order, nil
}

func (s *OrderStore) FindByID(_ context.Context, id string) (models.Order, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	order, ok := s.b.orders[id]
	if !ok {
		return models.Order{}, storage.ErrNotFound
	}
	return order, nil
}

func (s *OrderStore) FindByUser(_ context.Context, userID string) ([]models.Order, error) {
	return s.filter(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (s *OrderStore) FindByUserAndDate(_ context.Context, userID, date string) ([]models.Order, error) {
	return s.filter(func(o models.Order) bool { return o.UserID == userID && o.Date == date }), nil
}

func (s *OrderStore) FindByUserAndDateRange(_ context.Context, userID, start, end string) ([]models.Order, error) {
	return s.filter(func(o models.Order) bool {
		return o.UserID == userID && o.Date >= start && o.Date <= end
	}), nil
}

func (s *OrderStore) Update(_ context.Context, id string, upd models.OrderUpdate) (models.Order, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	order, ok := s.b.orders[id]
	if !ok {
		return models.Order{}, storage.ErrNotFound
	}
	upd.Apply(&order)
	order.UpdatedAt = models.NowISO()
	s.b.orders[id] = order
	return order, nil
}

func (s *OrderStore) Delete(_ context.Context, id string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.orders, id)
	return nil
}

func (s *OrderStore) filter(keep func(models.Order) bool) []models.Order {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	orders := make([]models.Order, 0)
	for _, o := range s.b.orders {
		if keep(o) {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Date != orders[j].Date {
			return orders[i].Date > orders[j].Date
		}
		return orders[i].ID < orders[j].ID
	})
	return orders
}

type WorkTimeStore struct {
	b *Backend
}

func (s *WorkTimeStore) Save(_ context.Context, wt models.WorkTime) (models.WorkTime, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for id, existing := range s.b.workTimes {
		if existing.Key() == wt.Key() {
			existing.StartTime = wt.StartTime
			existing.EndTime = wt.EndTime
			existing.WorkHours = wt.WorkHours
			existing.UpdatedAt = models.NowISO()
			s.b.workTimes[id] = existing
			return existing, nil
		}
	}
	wt.ID = s.b.nextID()
	wt.CreatedAt = models.NowISO()
	wt.UpdatedAt = wt.CreatedAt
	s.b.workTimes[wt.ID] = wt
	return wt, nil
}

func (s *WorkTimeStore) FindByUserAndDate(_ context.Context, userID, date string) (models.WorkTime, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	key := models.WorkTimeKey{UserID: userID, Date: date}
	for _, wt := range s.b.workTimes {
		if wt.Key() == key {
			return wt, nil
		}
	}
	return models.WorkTime{}, storage.ErrNotFound
}

func (s *WorkTimeStore) FindByUser(_ context.Context, userID string) ([]models.WorkTime, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	workTimes := make([]models.WorkTime, 0)
	for _, wt := range s.b.workTimes {
		if wt.UserID == userID {
			workTimes = append(workTimes, wt)
		}
	}
	sort.SliceStable(workTimes, func(i, j int) bool {
		return workTimes[i].Date > workTimes[j].Date
	})
	return workTimes, nil
}

type UserStore struct {
	b *Backend
}

func (s *UserStore) Create(_ context.Context, user models.User) (models.User, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for _, existing := range s.b.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return models.User{}, storage.ErrUserExists
		}
	}
	user.ID = s.b.nextID()
	user.CreatedAt = models.NowISO()
	user.UpdatedAt = user.CreatedAt
	s.b.users[user.ID] = user
	return user, nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	user, ok := s.b.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.Email == email })
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.Username == username })
}

func (s *UserStore) FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	return s.FindByUsername(ctx, username)
}

func (s *UserStore) Update(_ context.Context, id string, upd models.UserUpdate) (models.User, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	user, ok := s.b.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	upd.Apply(&user)
	user.UpdatedAt = models.NowISO()
	s.b.users[id] = user
	return user, nil
}

func (s *UserStore) findOne(match func(models.User) bool) (models.User, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for _, u := range s.b.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}
