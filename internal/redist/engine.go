package redist

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how an aggregated amount is reduced to whole units
// before booking. The legacy system converted to integer; whether that meant
// truncation toward zero or flooring for negative fractions is still open
// with the business owner, so both are supported.
type RoundingMode string

const (
	// RoundTruncate drops the fraction toward zero (-10.5 becomes -10).
	RoundTruncate RoundingMode = "truncate"
	// RoundFloor rounds toward negative infinity (-10.5 becomes -11).
	RoundFloor RoundingMode = "floor"
)

// Valid reports whether the mode is one of the supported policies.
func (m RoundingMode) Valid() bool {
	return m == RoundTruncate || m == RoundFloor
}

// Round applies the policy to an amount.
func (m RoundingMode) Round(amount decimal.Decimal) decimal.Decimal {
	if m == RoundFloor {
		return amount.Floor()
	}
	return amount.Truncate(0)
}

// Split books one aggregate onto the rule's booking account and offsets it on
// the counter account. The booking leg keeps the rounded signed sum; the
// counter leg carries its negation, so the pair always sums to zero. Dimension
// codes are left blank and assigned after the rows are staged.
func Split(agg AggregateRow, rule Rule, mode RoundingMode) [2]BufferRow {
	amount := mode.Round(agg.Sum)
	return [2]BufferRow{
		{Client: agg.Client, Amount: amount, Account: rule.BookingAccount, Period: agg.Period},
		{Client: agg.Client, Amount: amount.Neg(), Account: rule.CounterAccount, Period: agg.Period},
	}
}

// BatchID builds the batch identifier shared by every interface row of one
// run: "<client>_KF_<yyyymmdd>".
func BatchID(client string, runDate time.Time) string {
	return fmt.Sprintf("%s_KF_%s", client, runDate.Format("20060102"))
}
