package redist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RunConfig is the immutable parameter set for one redistribution pass. It is
// assembled by the caller (CLI flags, worker payload, environment) and passed
// in whole, so the pipeline never reads ambient process state.
type RunConfig struct {
	Client     string `validate:"required"`
	PeriodFrom string `validate:"required,len=6,numeric"`
	PeriodTo   string `validate:"required,len=6,numeric"`
	RuleSlots  []string
	Rounding   RoundingMode

	// Legacy host parameters, accepted for compatibility and never read.
	AccountRange string
	Interface    string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the run parameters before any database work.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.PeriodFrom > c.PeriodTo {
		return fmt.Errorf("%w: period range %s-%s inverted", ErrInvalidConfig, c.PeriodFrom, c.PeriodTo)
	}
	if len(c.RuleSlots) > MaxRuleSlots {
		return fmt.Errorf("%w: %d rule slots exceeds the %d the host supplies", ErrInvalidConfig, len(c.RuleSlots), MaxRuleSlots)
	}
	if c.Rounding != "" && !c.Rounding.Valid() {
		return fmt.Errorf("%w: unknown rounding mode %q", ErrInvalidConfig, c.Rounding)
	}
	return nil
}

// Store is the persistence surface the pipeline needs.
type Store interface {
	Aggregate(ctx context.Context, client, periodFrom, periodTo string, rule Rule) ([]AggregateRow, error)
	RebuildBuffer(ctx context.Context, buffer string) error
	InsertBufferRows(ctx context.Context, buffer string, rows []BufferRow) ([]int64, error)
	ApplyDimensions(ctx context.Context, buffer string, ids []int64, dims DimensionSet) error
	Materialize(ctx context.Context, buffer, batchID string) (int, error)
}

// PostingTrigger submits a completed batch to the downstream posting queue.
type PostingTrigger interface {
	Submit(ctx context.Context, req PostingRequest) (PostingResult, error)
}

// Locker guards against concurrent runs for the same client.
type Locker interface {
	Acquire(ctx context.Context, client, runID string) (bool, error)
	Release(ctx context.Context, client, runID string) error
}

// RunReport summarises one completed redistribution pass.
type RunReport struct {
	RunID       string
	BatchID     string
	Rules       int
	BufferRows  int
	Posted      bool
	OrderNumber int64
}

// Service orchestrates the redistribution pipeline.
type Service struct {
	store    Store
	trigger  PostingTrigger
	locker   Locker
	logger   *slog.Logger
	clock    func() time.Time
	newRunID func() string
}

// NewService constructs the pipeline service.
func NewService(store Store, trigger PostingTrigger, locker Locker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		trigger: trigger,
		locker:  locker,
		logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newRunID: uuid.NewString,
	}
}

// Run performs one redistribution pass: rebuild the staging buffer, then per
// rule aggregate, split and enrich, then materialise the buffer into the
// interface table and hand the batch to the posting queue. A posting failure
// is logged and does not fail the run; every other failure aborts it.
func (s *Service) Run(ctx context.Context, cfg RunConfig) (RunReport, error) {
	if err := cfg.Validate(); err != nil {
		return RunReport{}, err
	}
	rules, err := ParseRules(cfg.RuleSlots)
	if err != nil {
		return RunReport{}, err
	}
	rounding := cfg.Rounding
	if rounding == "" {
		rounding = RoundTruncate
	}

	runID := s.newRunID()
	report := RunReport{
		RunID:   runID,
		BatchID: BatchID(cfg.Client, s.clock()),
		Rules:   len(rules),
	}
	log := s.logger.With(
		slog.String("run_id", runID),
		slog.String("client", cfg.Client),
		slog.String("batch_id", report.BatchID),
	)
	log.Info("redistribution run starting",
		slog.String("period_from", cfg.PeriodFrom),
		slog.String("period_to", cfg.PeriodTo),
		slog.Int("rules", len(rules)),
		slog.String("rounding", string(rounding)),
	)

	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, cfg.Client, runID)
		if err != nil {
			return RunReport{}, fmt.Errorf("redist: acquire run lock: %w", err)
		}
		if !ok {
			return RunReport{}, ErrRunInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), cfg.Client, runID); err != nil {
				log.Warn("release run lock", slog.Any("error", err))
			}
		}()
	}

	buffer := BufferName(runID)
	if err := s.store.RebuildBuffer(ctx, buffer); err != nil {
		return RunReport{}, err
	}

	for i, rule := range rules {
		n, err := s.processRule(ctx, cfg, rule, buffer, rounding)
		if err != nil {
			return RunReport{}, fmt.Errorf("rule %d %q: %w", i+1, rule.String(), err)
		}
		report.BufferRows += n
		log.Info("rule processed", slog.Int("rule", i+1), slog.Int("buffer_rows", n))
	}

	count, err := s.store.Materialize(ctx, buffer, report.BatchID)
	if err != nil {
		return RunReport{}, err
	}
	log.Info("batch materialised", slog.Int("interface_rows", count))

	report.Posted, report.OrderNumber = s.submitPosting(ctx, report.BatchID, log)
	return report, nil
}

// processRule aggregates the rule's account range, stages booking and counter
// rows for each aggregate and enriches exactly the rows it wrote. Returns the
// number of buffer rows written.
func (s *Service) processRule(ctx context.Context, cfg RunConfig, rule Rule, buffer string, rounding RoundingMode) (int, error) {
	aggs, err := s.store.Aggregate(ctx, cfg.Client, cfg.PeriodFrom, cfg.PeriodTo, rule)
	if err != nil {
		return 0, err
	}
	if len(aggs) == 0 {
		return 0, nil
	}
	var bookingIDs, counterIDs []int64
	for _, agg := range aggs {
		pair := Split(agg, rule, rounding)
		ids, err := s.store.InsertBufferRows(ctx, buffer, pair[:])
		if err != nil {
			return 0, err
		}
		bookingIDs = append(bookingIDs, ids[0])
		counterIDs = append(counterIDs, ids[1])
	}
	if err := s.store.ApplyDimensions(ctx, buffer, bookingIDs, DimensionsFor(rule.BookingAccount)); err != nil {
		return 0, err
	}
	if err := s.store.ApplyDimensions(ctx, buffer, counterIDs, DimensionsFor(rule.CounterAccount)); err != nil {
		return 0, err
	}
	return 2 * len(aggs), nil
}

// submitPosting hands the batch to the posting queue. The batch is already
// durably written, so a rejection only loses the downstream notification and
// is reported as a warning.
func (s *Service) submitPosting(ctx context.Context, batchID string, log *slog.Logger) (bool, int64) {
	if s.trigger == nil {
		return false, 0
	}
	result, err := s.trigger.Submit(ctx, NewPostingRequest(batchID))
	if err != nil {
		log.Warn("posting submission failed", slog.Any("error", err))
		return false, result.OrderNumber
	}
	if !result.Accepted {
		log.Warn("posting submission not accepted", slog.Int64("order_number", result.OrderNumber))
		return false, result.OrderNumber
	}
	log.Info("posting submitted", slog.Int64("order_number", result.OrderNumber))
	return true, result.OrderNumber
}
