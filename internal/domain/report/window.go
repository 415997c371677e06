package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthWindow returns [first day of the month, first day of the next month)
func MonthWindow(year int, month time.Month) (start, end time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// apportion spreads total evenly over totalUnits and returns the share of units.
// Zero when totalUnits is zero.
func apportion(total decimal.Decimal, units, totalUnits int) decimal.Decimal {
	if totalUnits <= 0 || units <= 0 {
		return decimal.Zero
	}
	return total.Mul(decimal.NewFromInt(int64(units))).Div(decimal.NewFromInt(int64(totalUnits)))
}

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func percentOf(part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(100 * part)).Div(decimal.NewFromInt(int64(whole))).Round(2)
}
