package models

import (
	"strings"
	"time"
)

// Payment channels accepted on an order.
const (
	PaymentOnline = "online"
	PaymentCard   = "card"
	PaymentCash   = "cash"
	PaymentMixed  = "mixed"
)

const DateLayout = "2006-01-02"

// Order is one delivery transaction. ID is backend-native and opaque;
// records are correlated across backends by OrderKey, never by ID.
type Order struct {
	ID             string  `json:"id" firestore:"-"`
	UserID         string  `json:"userId" firestore:"userId"`
	Date           string  `json:"date" firestore:"date"`
	OrderNumber    string  `json:"orderNumber" firestore:"orderNumber"`
	PaymentType    string  `json:"paymentType" firestore:"paymentType"`
	OrderValue     float64 `json:"orderValue" firestore:"orderValue"`
	PaymentAmount  float64 `json:"paymentAmount" firestore:"paymentAmount"`
	ChangeReturned float64 `json:"changeReturned" firestore:"changeReturned"`
	ExtraCashTip   float64 `json:"extraCashTip" firestore:"extraCashTip"`
	DistanceKm     float64 `json:"distanceKm" firestore:"distanceKm"`
	Notes          string  `json:"notes" firestore:"notes"`
	CreatedAt      string  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      string  `json:"updatedAt" firestore:"updatedAt"`
}

// OrderKey is the natural key used to locate the counterpart of an order
// on a backend whose id space is disjoint from the one the order came from.
type OrderKey struct {
	UserID      string
	Date        string
	OrderNumber string
}

func (o Order) Key() OrderKey {
	return OrderKey{UserID: o.UserID, Date: o.Date, OrderNumber: strings.TrimSpace(o.OrderNumber)}
}

// Normalize fills the defaults a client-side draft may omit.
func (o *Order) Normalize() {
	if o.Date == "" {
		o.Date = Today()
	}
	if o.PaymentType == "" {
		o.PaymentType = PaymentOnline
	}
}

// OrderUpdate is a field-by-field partial update. Nil means "leave as is".
// UserID and Date are immutable after creation and have no update field.
type OrderUpdate struct {
	OrderNumber    *string  `json:"orderNumber"`
	PaymentType    *string  `json:"paymentType"`
	OrderValue     *float64 `json:"orderValue"`
	PaymentAmount  *float64 `json:"paymentAmount"`
	ChangeReturned *float64 `json:"changeReturned"`
	ExtraCashTip   *float64 `json:"extraCashTip"`
	DistanceKm     *float64 `json:"distanceKm"`
	Notes          *string  `json:"notes"`
}

func (u OrderUpdate) Apply(o *Order) {
	if u.OrderNumber != nil {
		o.OrderNumber = *u.OrderNumber
	}
	if u.PaymentType != nil {
		o.PaymentType = *u.PaymentType
	}
	if u.OrderValue != nil {
		o.OrderValue = *u.OrderValue
	}
	if u.PaymentAmount != nil {
		o.PaymentAmount = *u.PaymentAmount
	}
	if u.ChangeReturned != nil {
		o.ChangeReturned = *u.ChangeReturned
	}
	if u.ExtraCashTip != nil {
		o.ExtraCashTip = *u.ExtraCashTip
	}
	if u.DistanceKm != nil {
		o.DistanceKm = *u.DistanceKm
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}
}

// WorkTime is one user's recorded work interval for one day.
// At most one record exists per (UserID, Date).
type WorkTime struct {
	ID        string  `json:"id" firestore:"-"`
	UserID    string  `json:"userId" firestore:"userId"`
	Date      string  `json:"date" firestore:"date"`
	StartTime string  `json:"startTime" firestore:"startTime"`
	EndTime   string  `json:"endTime" firestore:"endTime"`
	WorkHours float64 `json:"workHours" firestore:"workHours"`
	CreatedAt string  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt string  `json:"updatedAt" firestore:"updatedAt"`
}

type WorkTimeKey struct {
	UserID string
	Date   string
}

func (w WorkTime) Key() WorkTimeKey {
	return WorkTimeKey{UserID: w.UserID, Date: w.Date}
}

// User is an account credential. Password holds the bcrypt hash and is
// never serialized to callers.
type User struct {
	ID        string `json:"id" firestore:"-"`
	Username  string `json:"username" firestore:"username"`
	Email     string `json:"email" firestore:"email"`
	Password  string `json:"-" firestore:"password"`
	Role      string `json:"role" firestore:"role"`
	CreatedAt string `json:"createdAt" firestore:"createdAt"`
	UpdatedAt string `json:"updatedAt" firestore:"updatedAt"`
}

func (u *User) Normalize() {
	if u.Role == "" {
		u.Role = "user"
	}
}

type UserUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"-"`
}

func (u UserUpdate) Apply(usr *User) {
	if u.Username != nil {
		usr.Username = *u.Username
	}
	if u.Email != nil {
		usr.Email = *u.Email
	}
	if u.Password != nil {
		usr.Password = *u.Password
	}
}

// NowISO is the timestamp format stored on every record.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func Today() string {
	return time.Now().UTC().Format(DateLayout)
}
