package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage/storagetest"
	"github.com/driverbook/tripwage/internal/types"
	"github.com/driverbook/tripwage/internal/usecase"
	"github.com/driverbook/tripwage/internal/wage"
)

const testSigningKey = "test-signing-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	service := usecase.NewService(storagetest.New("t").Stores(), wage.Default())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := NewAppHandler(service, testSigningKey, logger)
	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func registerUser(t *testing.T, srv *httptest.Server, username, email string) types.LoginResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users/register", "", types.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var login types.LoginResponse
	decode(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	login := registerUser(t, srv, "dana", "dana@example.com")
	assert.Equal(t, "dana", login.Username)

	// duplicate registration conflicts
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users/register", "", types.RegisterRequest{
		Username: "dana", Email: "dana@example.com", Password: "s3cret",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/users/login", "", types.LoginRequest{
		Email: "dana@example.com", Password: "s3cret",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var again types.LoginResponse
	decode(t, resp, &again)
	assert.Equal(t, login.ID, again.ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/users/login", "", types.LoginRequest{
		Email: "dana@example.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users/register", "", types.RegisterRequest{
		Username: "dana",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	for _, url := range []string{
		srv.URL + "/api/orders",
		srv.URL + "/api/users/profile",
		srv.URL + "/api/orders/stats/2024-03-01",
	} {
		resp := doJSON(t, http.MethodGet, url, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, url)
		resp.Body.Close()
	}

	// malformed token is rejected too
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderLifecycle(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", login.Token, models.Order{
		Date:          "2024-03-01",
		OrderNumber:   "A-17",
		PaymentType:   models.PaymentCash,
		OrderValue:    20,
		PaymentAmount: 25,
		DistanceKm:    4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Order
	decode(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, login.ID, created.UserID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+created.ID, login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Order
	decode(t, resp, &got)
	assert.Equal(t, "A-17", got.OrderNumber)

	notes := "left at door"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/orders/"+created.ID, login.Token, models.OrderUpdate{Notes: &notes})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Order
	decode(t, resp, &updated)
	assert.Equal(t, "left at door", updated.Notes)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/orders/"+created.ID, login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+created.ID, login.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderOwnership(t *testing.T) {
	srv := newTestServer(t)
	owner := registerUser(t, srv, "dana", "dana@example.com")
	intruder := registerUser(t, srv, "omar", "omar@example.com")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", owner.Token, models.Order{
		Date: "2024-03-01", OrderValue: 10, PaymentAmount: 12,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Order
	decode(t, resp, &created)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp := doJSON(t, method, srv.URL+"/api/orders/"+created.ID, intruder.Token, models.OrderUpdate{})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, method)
		resp.Body.Close()
	}

	// listings never leak across users
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders", intruder.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	decode(t, resp, &orders)
	assert.Empty(t, orders)
}

func TestDailyStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", login.Token, models.Order{
		Date:          "2024-03-01",
		PaymentType:   models.PaymentCash,
		OrderValue:    20,
		PaymentAmount: 25,
		DistanceKm:    4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/orders/worktime", login.Token, types.SaveWorkTimeRequest{
		Date: "2024-03-01", StartTime: "09:00", EndTime: "13:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/stats/2024-03-01", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats wage.DaySummary
	decode(t, resp, &stats)
	assert.Equal(t, 1, stats.ActualTrips)
	assert.InDelta(t, 5.0, stats.TotalTips, 1e-9)
	assert.InDelta(t, 34.0, stats.BasePayment, 1e-9)
	assert.InDelta(t, 42.5, stats.TotalWage, 1e-9)
}

func TestHistoricalStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orders/historical-stats?startDate=2024-03-01&endDate=2024-03-03", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var days []wage.DaySummary
	decode(t, resp, &days)
	assert.Len(t, days, 3)

	// missing params
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/historical-stats?startDate=2024-03-01", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// inverted range
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/historical-stats?startDate=2024-03-05&endDate=2024-03-01", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWorkTimeAbsentYieldsZeroInterval(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orders/worktime/2024-03-01", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wt models.WorkTime
	decode(t, resp, &wt)
	assert.Equal(t, "2024-03-01", wt.Date)
	assert.Empty(t, wt.StartTime)
	assert.Zero(t, wt.WorkHours)
}

func TestProfileEndpoints(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/users/profile", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile models.User
	decode(t, resp, &profile)
	assert.Equal(t, "dana", profile.Username)
	assert.Empty(t, profile.Password) // never serialized

	name := "dana-two"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/users/profile", login.Token, models.UserUpdate{Username: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &profile)
	assert.Equal(t, "dana-two", profile.Username)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/users/change-password", login.Token, types.ChangePasswordRequest{
		CurrentPassword: "s3cret", NewPassword: "newpass",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/users/login", "", types.LoginRequest{
		Email: "dana@example.com", Password: "newpass",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/users/change-password", login.Token, types.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "newpass",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestOrdersByDateAndRange(t *testing.T) {
	srv := newTestServer(t)
	login := registerUser(t, srv, "dana", "dana@example.com")

	for i, date := range []string{"2024-03-01", "2024-03-01", "2024-03-05"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", login.Token, models.Order{
			Date:        date,
			OrderNumber: fmt.Sprintf("A-%d", i),
			OrderValue:  10, PaymentAmount: 10,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orders/date/2024-03-01", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byDate []models.Order
	decode(t, resp, &byDate)
	assert.Len(t, byDate, 2)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/range?startDate=2024-03-01&endDate=2024-03-04", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ranged []models.Order
	decode(t, resp, &ranged)
	assert.Len(t, ranged, 2)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/orders/range?startDate=2024-03-01", login.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
