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

// PostingSubmitPayload mirrors the posting system's submission contract.
type PostingSubmitPayload struct {
	OrderNumber int64  `json:"order_number"`
	ReportName  string `json:"report_name"`
	Queue       string `json:"queue"`
	Priority    int    `json:"priority"`
	Variant     int    `json:"variant"`
	BatchID     string `json:"batch_id"`
	Period      string `json:"period"`
	Post        int    `json:"post"`
	Interface   string `json:"interface"`
	VouchFlag   int    `json:"vouch_flag"`
}

// NewPostingSubmitTask constructs an Asynq task carrying the submission.
func NewPostingSubmitTask(payload PostingSubmitPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostingSubmit, body, asynq.Queue(QueueDefault)), nil
}

// PostingOrders records posting handoffs durably.
type PostingOrders interface {
	CreatePostingOrder(ctx context.Context, batchID string) (int64, error)
	MarkPostingOrder(ctx context.Context, orderID int64, status string) error
}

// TaskEnqueuer is the slice of asynq.Client the posting trigger needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PostingClient implements redist.PostingTrigger: it records a posting order
// and enqueues the submission for the posting system to pick up.
type PostingClient struct {
	enqueuer TaskEnqueuer
	orders   PostingOrders
	logger   *slog.Logger
}

// NewPostingClient constructs the posting trigger.
func NewPostingClient(enqueuer TaskEnqueuer, orders PostingOrders, logger *slog.Logger) *PostingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostingClient{enqueuer: enqueuer, orders: orders, logger: logger}
}

// Submit records the order and enqueues the posting task. The order number is
// returned even when the enqueue fails, so the handoff stays traceable.
func (c *PostingClient) Submit(ctx context.Context, req redist.PostingRequest) (redist.PostingResult, error) {
	if c == nil || c.enqueuer == nil || c.orders == nil {
		return redist.PostingResult{}, errors.New("posting: client not configured")
	}
	orderID, err := c.orders.CreatePostingOrder(ctx, req.BatchID)
	if err != nil {
		return redist.PostingResult{}, err
	}
	task, err := NewPostingSubmitTask(PostingSubmitPayload{
		OrderNumber: orderID,
		ReportName:  req.ReportName,
		Queue:       req.Queue,
		Priority:    req.Priority,
		Variant:     req.Variant,
		BatchID:     req.BatchID,
		Period:      req.Period,
		Post:        req.Post,
		Interface:   req.Interface,
		VouchFlag:   req.VouchFlag,
	})
	if err != nil {
		return redist.PostingResult{OrderNumber: orderID}, err
	}
	info, err := c.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	if err != nil {
		return redist.PostingResult{OrderNumber: orderID}, err
	}
	c.logger.Info("posting task enqueued",
		slog.Int64("order_number", orderID),
		slog.String("batch_id", req.BatchID),
		slog.String("task_id", info.ID),
	)
	return redist.PostingResult{Accepted: true, OrderNumber: orderID}, nil
}

// PostingJob processes posting submissions on the worker side of the queue.
// The actual GL posting runs in the ledger system; this records the pickup.
type PostingJob struct {
	Orders  PostingOrders
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPostingJob constructs the posting handler.
func NewPostingJob(orders PostingOrders, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostingJob {
	return &PostingJob{Orders: orders, Logger: logger, Metrics: metrics}
}

// Handle marks the posting order as picked up by the posting system.
func (j *PostingJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Orders == nil {
		return errors.New("posting: dependencies not configured")
	}
	var payload PostingSubmitPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskPostingSubmit)
	err := j.Orders.MarkPostingOrder(ctx, payload.OrderNumber, "ACCEPTED")
	if err = tracker.End(err); err != nil {
		j.logger().Warn("posting pickup failed",
			slog.Int64("order_number", payload.OrderNumber),
			slog.Any("error", err),
		)
		return err
	}
	j.logger().Info("posting order accepted",
		slog.Int64("order_number", payload.OrderNumber),
		slog.String("batch_id", payload.BatchID),
		slog.String("report", payload.ReportName),
	)
	return nil
}

func (j *PostingJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *PostingJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
