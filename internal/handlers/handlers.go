package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driverbook/tripwage/internal/auth"
	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
	"github.com/driverbook/tripwage/internal/types"
	"github.com/driverbook/tripwage/internal/usecase"
)

type AppHandler struct {
	Service    *usecase.Service
	SigningKey string
	Logger     *slog.Logger
}

func NewAppHandler(service *usecase.Service, signingKey string, logger *slog.Logger) *AppHandler {
	return &AppHandler{
		Service:    service,
		SigningKey: signingKey,
		Logger:     logger,
	}
}

// NewRouter returns a ready chi router with the configured API urls.
func NewRouter(app *AppHandler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(GzipMiddle)

	router.Group(
		func(r chi.Router) {
			r.Post("/api/users/register", app.Register)
			r.Post("/api/users/login", app.Login)
		})

	router.Group(func(r chi.Router) {
		r.Use(app.Authenticator)
		r.Get("/api/users/profile", app.GetProfile)
		r.Put("/api/users/profile", app.UpdateProfile)
		r.Put("/api/users/change-password", app.ChangePassword)

		r.Get("/api/orders", app.ListOrders)
		r.Post("/api/orders", app.CreateOrder)
		r.Get("/api/orders/date/{date}", app.OrdersByDate)
		r.Get("/api/orders/range", app.OrdersByRange)
		r.Get("/api/orders/stats/{date}", app.DailyStats)
		r.Get("/api/orders/historical-stats", app.HistoricalStats)
		r.Post("/api/orders/worktime", app.SaveWorkTime)
		r.Get("/api/orders/worktime/{date}", app.WorkTimeByDate)
		r.Get("/api/orders/{id}", app.GetOrder)
		r.Put("/api/orders/{id}", app.UpdateOrder)
		r.Delete("/api/orders/{id}", app.DeleteOrder)
	})

	return router
}

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, _ = rw.Write(resp)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, types.ErrorResponse{Error: msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// Register POST handler creates a new account and returns a token.
func (app *AppHandler) Register(rw http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(rw, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := app.Service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(rw, http.StatusConflict, err.Error())
			return
		}
		app.Logger.Error("register failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}

	token, err := auth.NewToken(user.ID, app.SigningKey)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusCreated, types.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	})
}

// Login POST handler exchanges credentials for a token.
func (app *AppHandler) Login(rw http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(rw, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := app.Service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			writeError(rw, http.StatusUnauthorized, err.Error())
			return
		}
		app.Logger.Error("login failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}

	token, err := auth.NewToken(user.ID, app.SigningKey)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, types.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	})
}

func (app *AppHandler) GetProfile(rw http.ResponseWriter, r *http.Request) {
	user, err := app.Service.GetProfile(r.Context(), userID(r))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(rw, http.StatusNotFound, "user not found")
			return
		}
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, user)
}

func (app *AppHandler) UpdateProfile(rw http.ResponseWriter, r *http.Request) {
	var upd models.UserUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	user, err := app.Service.UpdateProfile(r.Context(), userID(r), upd)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			writeError(rw, http.StatusConflict, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(rw, http.StatusNotFound, "user not found")
		default:
			writeError(rw, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(rw, http.StatusOK, user)
}

func (app *AppHandler) ChangePassword(rw http.ResponseWriter, r *http.Request) {
	var req types.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if req.NewPassword == "" {
		writeError(rw, http.StatusBadRequest, "new password is required")
		return
	}

	err := app.Service.ChangePassword(r.Context(), userID(r), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidCredentials):
			writeError(rw, http.StatusUnauthorized, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(rw, http.StatusNotFound, "user not found")
		default:
			writeError(rw, http.StatusInternalServerError, err.Error())
		}
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (app *AppHandler) ListOrders(rw http.ResponseWriter, r *http.Request) {
	orders, err := app.Service.ListOrders(r.Context(), userID(r))
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, orders)
}

func (app *AppHandler) CreateOrder(rw http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := decodeBody(r, &order); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	created, err := app.Service.CreateOrder(r.Context(), userID(r), order)
	if err != nil {
		app.Logger.Error("create order failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}
	writeJSON(rw, http.StatusCreated, created)
}

func (app *AppHandler) OrdersByDate(rw http.ResponseWriter, r *http.Request) {
	orders, err := app.Service.ListOrdersByDate(r.Context(), userID(r), chi.URLParam(r, "date"))
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, orders)
}

func (app *AppHandler) OrdersByRange(rw http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")
	if start == "" || end == "" {
		writeError(rw, http.StatusBadRequest, "startDate and endDate are required")
		return
	}

	orders, err := app.Service.ListOrdersByDateRange(r.Context(), userID(r), start, end)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, orders)
}

// ownedOrder loads the order and enforces that it belongs to the caller.
// Reports false after writing the error response.
func (app *AppHandler) ownedOrder(rw http.ResponseWriter, r *http.Request) (models.Order, bool) {
	order, err := app.Service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(rw, http.StatusNotFound, "order not found")
		} else {
			writeError(rw, http.StatusInternalServerError, err.Error())
		}
		return models.Order{}, false
	}
	if order.UserID != userID(r) {
		writeError(rw, http.StatusForbidden, "not authorized")
		return models.Order{}, false
	}
	return order, true
}

func (app *AppHandler) GetOrder(rw http.ResponseWriter, r *http.Request) {
	order, ok := app.ownedOrder(rw, r)
	if !ok {
		return
	}
	writeJSON(rw, http.StatusOK, order)
}

func (app *AppHandler) UpdateOrder(rw http.ResponseWriter, r *http.Request) {
	if _, ok := app.ownedOrder(rw, r); !ok {
		return
	}

	var upd models.OrderUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := app.Service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(rw, http.StatusNotFound, "order not found")
			return
		}
		app.Logger.Error("update order failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}
	writeJSON(rw, http.StatusOK, updated)
}

func (app *AppHandler) DeleteOrder(rw http.ResponseWriter, r *http.Request) {
	if _, ok := app.ownedOrder(rw, r); !ok {
		return
	}

	if err := app.Service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		app.Logger.Error("delete order failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"message": "order deleted successfully"})
}

func (app *AppHandler) DailyStats(rw http.ResponseWriter, r *http.Request) {
	stats, err := app.Service.DailyStats(r.Context(), userID(r), chi.URLParam(r, "date"))
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, stats)
}

func (app *AppHandler) HistoricalStats(rw http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")
	if start == "" || end == "" {
		writeError(rw, http.StatusBadRequest, "start date and end date are required")
		return
	}

	stats, err := app.Service.HistoricalStats(r.Context(), userID(r), start, end)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, stats)
}

func (app *AppHandler) SaveWorkTime(rw http.ResponseWriter, r *http.Request) {
	var req types.SaveWorkTimeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	if req.Date == "" {
		writeError(rw, http.StatusBadRequest, "date is required")
		return
	}

	wt, err := app.Service.SaveWorkTime(r.Context(), userID(r), req.Date, req.StartTime, req.EndTime)
	if err != nil {
		app.Logger.Error("save work time failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "operation failed, try again")
		return
	}
	writeJSON(rw, http.StatusOK, wt)
}

// WorkTimeByDate replies with a zero-valued interval when none is recorded,
// so the client can always render the form.
func (app *AppHandler) WorkTimeByDate(rw http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	wt, err := app.Service.GetWorkTime(r.Context(), userID(r), date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(rw, http.StatusOK, models.WorkTime{Date: date})
			return
		}
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, wt)
}
