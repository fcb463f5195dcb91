// Package wage derives per-order and per-day earnings figures from raw
// order records and work intervals. It is pure computation: no I/O, no
// shared state, and malformed input degrades to zero instead of failing.
package wage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/driverbook/tripwage/internal/models"
)

// Config holds the wage constants. All call sites receive it explicitly so
// deployments can override any value through the environment.
type Config struct {
	BaseHourlyRate      float64
	FuelPerOrder        float64
	LongTripThresholdKm float64
	LongTripExtraFuel   float64
}

// Default returns the standard deployment rates.
func Default() Config {
	return Config{
		BaseHourlyRate:      8.5,
		FuelPerOrder:        3.5,
		LongTripThresholdKm: 10,
		LongTripExtraFuel:   3.5,
	}
}

// TipMode selects how an order's tip total is derived. The two modes
// disagree on purpose: the live-entry screen and the report paths have
// always computed tips differently, and callers must say which behavior
// they want rather than get a silently unified one.
type TipMode int

const (
	// TipSimple clamps the whole expression at zero:
	// max(0, paymentAmount - orderValue - changeReturned + extraCashTip).
	TipSimple TipMode = iota
	// TipChannelSplit clamps only the channel component, then adds the
	// extra cash tip. Change returned is subtracted for cash and mixed
	// payments only.
	TipChannelSplit
)

// ThresholdMode selects how the long-trip distance comparison is made.
type ThresholdMode int

const (
	ThresholdInclusive ThresholdMode = iota // distanceKm >= threshold
	ThresholdStrict                         // distanceKm >  threshold
)

// Mode names one calculation context.
type Mode struct {
	Tips      TipMode
	Threshold ThresholdMode
}

// The three calculation contexts that exist in the system. Each HTTP
// operation states which one it uses.
var (
	LiveEntry        = Mode{TipSimple, ThresholdInclusive}
	DailySnapshot    = Mode{TipChannelSplit, ThresholdStrict}
	HistoricalReport = Mode{TipChannelSplit, ThresholdInclusive}
)

// WorkHours derives the length of a work interval from HH:MM wall-clock
// strings. A negative hour difference means the shift crossed midnight and
// gets 24 hours added. Absent or malformed input yields 0.
func WorkHours(start, end string) float64 {
	sh, sm, ok := parseClock(start)
	if !ok {
		return 0
	}
	eh, em, ok := parseClock(end)
	if !ok {
		return 0
	}
	hours := eh - sh
	minutes := em - sm
	if hours < 0 {
		hours += 24
	}
	return float64(hours) + float64(minutes)/60
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return hour, minute, true
}

// OrderFigures are the derived per-order amounts. TotalIncome excludes the
// base hourly pay, which is a day-level figure.
type OrderFigures struct {
	TipsTotal   float64 `json:"tipsTotal"`
	FuelFee     float64 `json:"fuelFee"`
	TotalIncome float64 `json:"totalIncome"`
	LongTrip    bool    `json:"longTrip"`
}

func (c Config) longTrip(distanceKm float64, m Mode) bool {
	if m.Threshold == ThresholdStrict {
		return distanceKm > c.LongTripThresholdKm
	}
	return distanceKm >= c.LongTripThresholdKm
}

// CalculateOrder derives tips, fuel subsidy and income for one order.
func CalculateOrder(o models.Order, cfg Config, m Mode) OrderFigures {
	var tips float64
	switch m.Tips {
	case TipChannelSplit:
		var channel float64
		switch o.PaymentType {
		case models.PaymentCash, models.PaymentMixed:
			channel = o.PaymentAmount - o.OrderValue - o.ChangeReturned
		default: // online, card: no change involved
			channel = o.PaymentAmount - o.OrderValue
		}
		tips = math.Max(0, channel) + o.ExtraCashTip
	default:
		tips = math.Max(0, o.PaymentAmount-o.OrderValue-o.ChangeReturned+o.ExtraCashTip)
	}

	fuel := cfg.FuelPerOrder
	long := cfg.longTrip(o.DistanceKm, m)
	if long {
		fuel += cfg.LongTripExtraFuel
	}

	return OrderFigures{
		TipsTotal:   tips,
		FuelFee:     fuel,
		TotalIncome: fuel + tips,
		LongTrip:    long,
	}
}

// DaySummary aggregates one calendar day. RestaurantSettlement is a cash
// obligation between driver and restaurant, not part of the wage: positive
// means the driver owes the restaurant, negative the other way around.
type DaySummary struct {
	Date                 string  `json:"date"`
	ActualTrips          int     `json:"actualTrips"`
	EffectiveTrips       int     `json:"effectiveTrips"`
	LongTrips            int     `json:"longTripsCount"`
	TotalDistance        float64 `json:"totalDistance"`
	TotalTips            float64 `json:"totalTips"`
	FuelFeeTotal         float64 `json:"fuelFeeTotal"`
	WorkHours            float64 `json:"workHours"`
	BasePayment          float64 `json:"basePayment"`
	TotalWage            float64 `json:"totalWage"`
	HourlyWage           float64 `json:"hourlyWage"`
	CashOrderValue       float64 `json:"cashOrderValue"`
	NonCashTips          float64 `json:"nonCashTips"`
	RestaurantSettlement float64 `json:"restaurantSettlement"`
}

// DailySummary aggregates the given orders, which the caller has already
// scoped to one user and one date. Logged distance is one-way; the daily
// distance total counts the round trip. A long trip counts double toward
// effective trips.
func DailySummary(date string, orders []models.Order, workHours float64, cfg Config, m Mode) DaySummary {
	s := DaySummary{Date: date, WorkHours: workHours}

	for _, o := range orders {
		f := CalculateOrder(o, cfg, m)
		s.ActualTrips++
		if f.LongTrip {
			s.EffectiveTrips += 2
			s.LongTrips++
		} else {
			s.EffectiveTrips++
		}
		s.TotalDistance += o.DistanceKm * 2
		s.TotalTips += f.TipsTotal
		s.FuelFeeTotal += f.FuelFee

		switch o.PaymentType {
		case models.PaymentCash:
			s.CashOrderValue += o.OrderValue
		case models.PaymentOnline, models.PaymentCard:
			if excess := o.PaymentAmount - o.OrderValue; excess > 0 {
				s.NonCashTips += excess
			}
		}
	}

	s.BasePayment = workHours * cfg.BaseHourlyRate
	s.TotalWage = s.BasePayment + s.FuelFeeTotal + s.TotalTips
	if workHours > 0 {
		s.HourlyWage = s.TotalWage / workHours
	}
	s.RestaurantSettlement = s.CashOrderValue - s.NonCashTips
	return s
}

// RangeSummary produces exactly one DaySummary per calendar date in
// [start, end], zero-filled for dates without orders, so callers can plot
// or export a continuous date axis.
func RangeSummary(start, end string, orders []models.Order, hoursByDate map[string]float64, cfg Config, m Mode) ([]DaySummary, error) {
	from, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", start, err)
	}
	to, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	byDate := make(map[string][]models.Order)
	for _, o := range orders {
		byDate[o.Date] = append(byDate[o.Date], o)
	}

	days := make([]DaySummary, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		days = append(days, DailySummary(date, byDate[date], hoursByDate[date], cfg, m))
	}
	return days, nil
}

// Totals are range-wide sums over per-day summaries. AvgHourlyWage is
// computed from the sums, not averaged over daily rates, so non-working
// days do not skew it.
type Totals struct {
	Days           int     `json:"days"`
	ActualTrips    int     `json:"actualTrips"`
	EffectiveTrips int     `json:"effectiveTrips"`
	LongTrips      int     `json:"longTripsCount"`
	TotalDistance  float64 `json:"totalDistance"`
	TotalTips      float64 `json:"totalTips"`
	FuelFeeTotal   float64 `json:"fuelFeeTotal"`
	WorkHours      float64 `json:"workHours"`
	BasePayment    float64 `json:"basePayment"`
	TotalWage      float64 `json:"totalWage"`
	AvgHourlyWage  float64 `json:"avgHourlyWage"`
}

func RangeTotals(days []DaySummary) Totals {
	var t Totals
	t.Days = len(days)
	for _, d := range days {
		t.ActualTrips += d.ActualTrips
		t.EffectiveTrips += d.EffectiveTrips
		t.LongTrips += d.LongTrips
		t.TotalDistance += d.TotalDistance
		t.TotalTips += d.TotalTips
		t.FuelFeeTotal += d.FuelFeeTotal
		t.WorkHours += d.WorkHours
		t.BasePayment += d.BasePayment
		t.TotalWage += d.TotalWage
	}
	if t.WorkHours > 0 {
		t.AvgHourlyWage = t.TotalWage / t.WorkHours
	}
	return t
}
