package redist

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Fixed metadata stamped on every materialised interface row.
const (
	CurrencySEK    = "SEK"
	InterfaceBI    = "BI"
	TransTypeGL    = "GL"
	DescriptionTag = "KF-REDIST"
	DCFlagDefault  = 0
)

// Posting submission constants. The report identifier, queue and priority are
// fixed by the receiving posting system; the period literal is the legacy
// placeholder that system expects for interface batches.
const (
	PostingReportName = "RGLKF010"
	PostingQueue      = "BATCH"
	PostingPriority   = 5
	PostingVariant    = 1
	PostingPeriod     = "000"
)

var (
	// ErrMalformedRule indicates a configuration slot that cannot be parsed.
	ErrMalformedRule = errors.New("redist: malformed rule")
	// ErrInvalidConfig indicates run parameters that fail validation.
	ErrInvalidConfig = errors.New("redist: invalid run configuration")
	// ErrSourceQuery indicates the source ledger could not be read.
	ErrSourceQuery = errors.New("redist: source query failed")
	// ErrPersist indicates a buffer or interface table write failure.
	ErrPersist = errors.New("redist: persist failed")
	// ErrRunInProgress indicates another run holds the client's run lock.
	ErrRunInProgress = errors.New("redist: run already in progress for client")
)

// Rule describes one configured redistribution: aggregated amounts on accounts
// in [AccountFrom, AccountTo] are booked onto BookingAccount and offset on
// CounterAccount. From/to ordering is the caller's responsibility.
type Rule struct {
	AccountFrom    string
	AccountTo      string
	BookingAccount string
	CounterAccount string
}

// String re-serialises the rule in the configuration slot format.
func (r Rule) String() string {
	return r.AccountFrom + "-" + r.AccountTo + ";" + r.BookingAccount + ";" + r.CounterAccount
}

// AggregateRow is one summed source line per (client, account, period).
type AggregateRow struct {
	Client  string
	Account string
	Period  string
	Sum     decimal.Decimal
}

// DimensionSet carries the six analytical dimension codes attached to a
// booking line. The zero value (all codes empty) is a valid assignment.
type DimensionSet struct {
	Dim1 string
	Dim2 string
	Dim3 string
	Dim4 string
	Dim5 string
	Dim6 string
}

// IsZero reports whether no dimension code is set.
func (d DimensionSet) IsZero() bool {
	return d == DimensionSet{}
}

// BufferRow is one staged redistribution line in the run-scoped buffer table.
type BufferRow struct {
	ID      int64
	Client  string
	Amount  decimal.Decimal
	Account string
	Dims    DimensionSet
	Period  string
}

// InterfaceRow is the final ledger-interface input line consumed by the
// posting system. Rows are append-only and immutable once written.
type InterfaceRow struct {
	BatchID     string
	Client      string
	Account     string
	Dims        DimensionSet
	Amount      decimal.Decimal
	CurAmount   decimal.Decimal
	Currency    string
	Interface   string
	TransType   string
	Period      string
	Description string
	SequenceNo  int
	DCFlag      int
}

// PostingRequest is the fixed-parameter submission handed to the posting
// queue once a batch is fully materialised.
type PostingRequest struct {
	ReportName string
	Queue      string
	Priority   int
	Variant    int
	BatchID    string
	Period     string
	Post       int
	Interface  string
	VouchFlag  int
}

// NewPostingRequest builds the submission for a batch with the fixed posting
// system parameters.
func NewPostingRequest(batchID string) PostingRequest {
	return PostingRequest{
		ReportName: PostingReportName,
		Queue:      PostingQueue,
		Priority:   PostingPriority,
		Variant:    PostingVariant,
		BatchID:    batchID,
		Period:     PostingPeriod,
		Post:       1,
		Interface:  InterfaceBI,
		VouchFlag:  1,
	}
}

// PostingResult reports whether the posting queue accepted the batch and the
// order number it was recorded under.
type PostingResult struct {
	Accepted    bool
	OrderNumber int64
}
