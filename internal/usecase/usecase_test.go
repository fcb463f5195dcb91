package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driverbook/tripwage/internal/auth"
	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
	"github.com/driverbook/tripwage/internal/storage/storagetest"
	"github.com/driverbook/tripwage/internal/wage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storagetest.New("t").Stores(), wage.Default())
}

func TestCreateOrderScopesToUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.CreateOrder(ctx, "u1", models.Order{
		ID:            "spoofed",
		UserID:        "someone-else",
		Date:          "2024-03-01",
		OrderValue:    10,
		PaymentAmount: 12,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "spoofed", created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, models.PaymentOnline, created.PaymentType)
}

func TestCreateOrderDefaultsDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.CreateOrder(ctx, "u1", models.Order{OrderValue: 10, PaymentAmount: 10})
	require.NoError(t, err)
	assert.Equal(t, models.Today(), created.Date)
}

func TestDailyStats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateOrder(ctx, "u1", models.Order{
		Date:          "2024-03-01",
		PaymentType:   models.PaymentCash,
		OrderValue:    20,
		PaymentAmount: 25,
		DistanceKm:    4,
	})
	require.NoError(t, err)

	_, err = svc.SaveWorkTime(ctx, "u1", "2024-03-01", "09:00", "13:00")
	require.NoError(t, err)

	stats, err := svc.DailyStats(ctx, "u1", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActualTrips)
	assert.InDelta(t, 5.0, stats.TotalTips, 1e-9)
	assert.InDelta(t, 4.0, stats.WorkHours, 1e-9)
	assert.InDelta(t, 34.0, stats.BasePayment, 1e-9)
	assert.InDelta(t, 42.5, stats.TotalWage, 1e-9)
}

func TestDailyStatsNoWorkTime(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	stats, err := svc.DailyStats(ctx, "u1", "2024-03-01")
	require.NoError(t, err)
	assert.Zero(t, stats.WorkHours)
	assert.Zero(t, stats.BasePayment)
}

func TestHistoricalStatsZeroFills(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateOrder(ctx, "u1", models.Order{
		Date: "2024-03-01", OrderValue: 10, PaymentAmount: 12,
	})
	require.NoError(t, err)
	_, err = svc.SaveWorkTime(ctx, "u1", "2024-03-01", "09:00", "11:00")
	require.NoError(t, err)

	days, err := svc.HistoricalStats(ctx, "u1", "2024-03-01", "2024-03-03")
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 1, days[0].ActualTrips)
	assert.InDelta(t, 2.0, days[0].WorkHours, 1e-9)
	assert.Zero(t, days[1].ActualTrips)
	assert.Zero(t, days[2].ActualTrips)
}

func TestHistoricalStatsBadRange(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.HistoricalStats(ctx, "u1", "2024-03-05", "2024-03-01")
	assert.Error(t, err)
}

func TestSaveWorkTimeUpserts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.SaveWorkTime(ctx, "u1", "2024-03-01", "09:00", "17:00")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, first.WorkHours, 1e-9)

	second, err := svc.SaveWorkTime(ctx, "u1", "2024-03-01", "22:00", "02:00")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.InDelta(t, 4.0, second.WorkHours, 1e-9)

	got, err := svc.GetWorkTime(ctx, "u1", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "22:00", got.StartTime)
}

func TestSaveWorkTimeMalformedClock(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	wt, err := svc.SaveWorkTime(ctx, "u1", "2024-03-01", "morning", "17:00")
	require.NoError(t, err)
	assert.Zero(t, wt.WorkHours)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "dana", "dana@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, "s3cret", user.Password)

	got, err := svc.Authenticate(ctx, "dana@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "dana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "dana", "dana@example.com", "s3cret")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "other", "dana@example.com", "s3cret")
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = svc.Register(ctx, "dana", "other@example.com", "s3cret")
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "dana", "dana@example.com", "s3cret")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "omar", "omar@example.com", "s3cret")
	require.NoError(t, err)

	// taking another account's email is rejected
	taken := "omar@example.com"
	_, err = svc.UpdateProfile(ctx, user.ID, models.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	// re-submitting your own email is fine
	own := "dana@example.com"
	name := "dana-two"
	updated, err := svc.UpdateProfile(ctx, user.ID, models.UserUpdate{Email: &own, Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "dana-two", updated.Username)
}

func TestUpdateProfileIgnoresPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "dana", "dana@example.com", "s3cret")
	require.NoError(t, err)

	sneaky := "plaintext"
	_, err = svc.UpdateProfile(ctx, user.ID, models.UserUpdate{Password: &sneaky})
	require.NoError(t, err)

	// the old password still works
	_, err = svc.Authenticate(ctx, "dana@example.com", "s3cret")
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "dana", "dana@example.com", "s3cret")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong", "newpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "s3cret", "newpass"))

	_, err = svc.Authenticate(ctx, "dana@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := svc.Authenticate(ctx, "dana@example.com", "newpass")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(got.Password, "newpass"))
}
