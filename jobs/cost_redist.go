package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nordvik-erp/costredist/internal/jobs"
	"github.com/nordvik-erp/costredist/internal/redist"
)

// CostRedistPayload overrides the run scope when triggering a pass manually.
// Empty fields fall back to the worker's configured defaults.
type CostRedistPayload struct {
	Client     string `json:"client"`
	PeriodFrom string `json:"period_from"`
	PeriodTo   string `json:"period_to"`
}

// Runner executes one redistribution pass.
type Runner interface {
	Run(ctx context.Context, cfg redist.RunConfig) (redist.RunReport, error)
}

// CostRedistJob runs the redistribution batch on the worker.
type CostRedistJob struct {
	Runner  Runner
	Base    redist.RunConfig
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCostRedistJob constructs the job handler. base carries the configured
// rule slots, rounding mode and default run scope.
func NewCostRedistJob(runner Runner, base redist.RunConfig, logger *slog.Logger, metrics *jobmetrics.Metrics) *CostRedistJob {
	return &CostRedistJob{Runner: runner, Base: base, Logger: logger, Metrics: metrics}
}

// NewCostRedistTask creates an Asynq task for one redistribution pass.
func NewCostRedistTask(client, periodFrom, periodTo string) (*asynq.Task, error) {
	payload := CostRedistPayload{Client: client, PeriodFrom: periodFrom, PeriodTo: periodTo}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostRedistribute, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the redistribution pass.
func (j *CostRedistJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("cost redist: dependencies not configured")
	}
	var payload CostRedistPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cfg := j.Base
	if payload.Client != "" {
		cfg.Client = payload.Client
	}
	if payload.PeriodFrom != "" {
		cfg.PeriodFrom = payload.PeriodFrom
	}
	if payload.PeriodTo != "" {
		cfg.PeriodTo = payload.PeriodTo
	}

	tracker := j.metrics().Track(TaskCostRedistribute)
	report, err := j.Runner.Run(ctx, cfg)
	if err = tracker.End(err); err != nil {
		if errors.Is(err, redist.ErrInvalidConfig) || errors.Is(err, redist.ErrMalformedRule) {
			// Retrying cannot fix bad parameters.
			j.logger().Error("cost redist run rejected", slog.Any("error", err))
			return asynq.SkipRetry
		}
		j.logger().Error("cost redist run failed", slog.Any("error", err))
		return err
	}
	j.metrics().AddRows("gl_interface", report.BufferRows)
	j.logger().Info("cost redist run complete",
		slog.String("run_id", report.RunID),
		slog.String("batch_id", report.BatchID),
		slog.Int("rules", report.Rules),
		slog.Int("buffer_rows", report.BufferRows),
		slog.Bool("posted", report.Posted),
		slog.Int64("order_number", report.OrderNumber),
	)
	return nil
}

func (j *CostRedistJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *CostRedistJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
