// Package dbstorage is the relational backend: Postgres behind gorm.
// Native ids are auto-incremented integers, exposed to callers as their
// decimal string form. Compound owner+date-range conditions are filtered
// server-side.
package dbstorage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
)

type DBStorage struct {
	DB *gorm.DB
}

func NewDB(dsn string) (*DBStorage, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	dbConnect, err := gorm.Open(
		postgres.New(
			postgres.Config{Conn: conn}),
		&gorm.Config{},
	)
	if err != nil {
		return nil, err
	}
	return &DBStorage{DB: dbConnect}, nil
}

func (ds *DBStorage) Close() error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (ds *DBStorage) InitDB() error {
	return ds.DB.AutoMigrate(
		&userRow{},
		&orderRow{},
		&workTimeRow{},
	)
}

// Stores exposes the backend through the common contract.
func (ds *DBStorage) Stores() storage.Stores {
	return storage.Stores{
		Orders:    &orderStore{db: ds.DB},
		WorkTimes: &workTimeStore{db: ds.DB},
		Users:     &userStore{db: ds.DB},
	}
}

// parseID rejects ids that did not come from this backend. A foreign-format
// id can never match a row, so it reports not-found rather than an error.
func parseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, storage.ErrNotFound
	}
	return uint(n), nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

type orderRow struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"index:idx_orders_user_date"`
	Date           string `gorm:"index:idx_orders_user_date"`
	OrderNumber    string
	PaymentType    string
	OrderValue     float64
	PaymentAmount  float64
	ChangeReturned float64
	ExtraCashTip   float64
	DistanceKm     float64
	Notes          string
	CreatedAt      string
	UpdatedAt      string
}

func (orderRow) TableName() string { return "orders" }

func rowFromOrder(o models.Order) orderRow {
	return orderRow{
		UserID:         o.UserID,
		Date:           o.Date,
		OrderNumber:    o.OrderNumber,
		PaymentType:    o.PaymentType,
		OrderValue:     o.OrderValue,
		PaymentAmount:  o.PaymentAmount,
		ChangeReturned: o.ChangeReturned,
		ExtraCashTip:   o.ExtraCashTip,
		DistanceKm:     o.DistanceKm,
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (r orderRow) toOrder() models.Order {
	return models.Order{
		ID:             formatID(r.ID),
		UserID:         r.UserID,
		Date:           r.Date,
		OrderNumber:    r.OrderNumber,
		PaymentType:    r.PaymentType,
		OrderValue:     r.OrderValue,
		PaymentAmount:  r.PaymentAmount,
		ChangeReturned: r.ChangeReturned,
		ExtraCashTip:   r.ExtraCashTip,
		DistanceKm:     r.DistanceKm,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type orderStore struct {
	db *gorm.DB
}

func (s *orderStore) Create(ctx context.Context, order models.Order) (models.Order, error) {
	db := s.db.WithContext(ctx)
	row := rowFromOrder(order)
	row.CreatedAt = models.NowISO()
	row.UpdatedAt = row.CreatedAt
	if err := db.Create(&row).Error; err != nil {
		return models.Order{}, err
	}
	return row.toOrder(), nil
}

func (s *orderStore) FindByID(ctx context.Context, id string) (models.Order, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.Order{}, err
	}
	var row orderRow
	err = s.db.WithContext(ctx).First(&row, "id = ?", rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	return row.toOrder(), nil
}

func (s *orderStore) FindByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToOrders(rows), nil
}

func (s *orderStore) FindByUserAndDate(ctx context.Context, userID, date string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToOrders(rows), nil
}

func (s *orderStore) FindByUserAndDateRange(ctx context.Context, userID, start, end string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToOrders(rows), nil
}

func (s *orderStore) Update(ctx context.Context, id string, upd models.OrderUpdate) (models.Order, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.Order{}, err
	}
	db := s.db.WithContext(ctx)
	var row orderRow
	err = db.First(&row, "id = ?", rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}

	order := row.toOrder()
	upd.Apply(&order)
	updated := rowFromOrder(order)
	updated.ID = row.ID
	updated.UpdatedAt = models.NowISO()
	if err := db.Save(&updated).Error; err != nil {
		return models.Order{}, err
	}
	return updated.toOrder(), nil
}

func (s *orderStore) Delete(ctx context.Context, id string) error {
	rowID, err := parseID(id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&orderRow{}, "id = ?", rowID).Error
}

func rowsToOrders(rows []orderRow) []models.Order {
	orders := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.toOrder())
	}
	return orders
}

type workTimeRow struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex:idx_work_times_user_date"`
	Date      string `gorm:"uniqueIndex:idx_work_times_user_date"`
	StartTime string
	EndTime   string
	WorkHours float64
	CreatedAt string
	UpdatedAt string
}

func (workTimeRow) TableName() string { return "work_times" }

func (r workTimeRow) toWorkTime() models.WorkTime {
	return models.WorkTime{
		ID:        formatID(r.ID),
		UserID:    r.UserID,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		WorkHours: r.WorkHours,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type workTimeStore struct {
	db *gorm.DB
}

func (s *workTimeStore) Save(ctx context.Context, wt models.WorkTime) (models.WorkTime, error) {
	db := s.db.WithContext(ctx)
	var row workTimeRow
	err := db.First(&row, "user_id = ? AND date = ?", wt.UserID, wt.Date).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = workTimeRow{
			UserID:    wt.UserID,
			Date:      wt.Date,
			StartTime: wt.StartTime,
			EndTime:   wt.EndTime,
			WorkHours: wt.WorkHours,
			CreatedAt: models.NowISO(),
		}
		row.UpdatedAt = row.CreatedAt
		if err := db.Create(&row).Error; err != nil {
			return models.WorkTime{}, err
		}
	case err != nil:
		return models.WorkTime{}, err
	default:
		row.StartTime = wt.StartTime
		row.EndTime = wt.EndTime
		row.WorkHours = wt.WorkHours
		row.UpdatedAt = models.NowISO()
		if err := db.Save(&row).Error; err != nil {
			return models.WorkTime{}, err
		}
	}
	return row.toWorkTime(), nil
}

func (s *workTimeStore) FindByUserAndDate(ctx context.Context, userID, date string) (models.WorkTime, error) {
	var row workTimeRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ? AND date = ?", userID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.WorkTime{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkTime{}, err
	}
	return row.toWorkTime(), nil
}

func (s *workTimeStore) FindByUser(ctx context.Context, userID string) ([]models.WorkTime, error) {
	var rows []workTimeRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	workTimes := make([]models.WorkTime, 0, len(rows))
	for _, r := range rows {
		workTimes = append(workTimes, r.toWorkTime())
	}
	return workTimes, nil
}

type userRow struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex:idx_users_username"`
	Email     string `gorm:"uniqueIndex:idx_users_email"`
	Password  string
	Role      string
	CreatedAt string
	UpdatedAt string
}

func (userRow) TableName() string { return "users" }

func (r userRow) toUser() models.User {
	return models.User{
		ID:        formatID(r.ID),
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		Role:      r.Role,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type userStore struct {
	db *gorm.DB
}

func (s *userStore) Create(ctx context.Context, user models.User) (models.User, error) {
	db := s.db.WithContext(ctx)
	var exists bool
	db.Model(&userRow{}).
		Select("count(*) > 0").
		Where("email = ? OR username = ?", user.Email, user.Username).
		Find(&exists)
	if exists {
		return models.User{}, storage.ErrUserExists
	}

	row := userRow{
		Username:  user.Username,
		Email:     user.Email,
		Password:  user.Password,
		Role:      user.Role,
		CreatedAt: models.NowISO(),
	}
	row.UpdatedAt = row.CreatedAt
	if err := db.Create(&row).Error; err != nil {
		return models.User{}, err
	}
	return row.toUser(), nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (models.User, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.User{}, err
	}
	return s.findOne(ctx, "id = ?", rowID)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, "username = ?", username)
}

func (s *userStore) FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}
	return s.FindByUsername(ctx, username)
}

func (s *userStore) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.User{}, err
	}
	db := s.db.WithContext(ctx)
	var row userRow
	err = db.First(&row, "id = ?", rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	user := row.toUser()
	upd.Apply(&user)
	row.Username = user.Username
	row.Email = user.Email
	row.Password = user.Password
	row.UpdatedAt = models.NowISO()
	if err := db.Save(&row).Error; err != nil {
		return models.User{}, err
	}
	return row.toUser(), nil
}

func (s *userStore) findOne(ctx context.Context, query string, arg interface{}) (models.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return row.toUser(), nil
}
