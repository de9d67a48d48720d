package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nordvik-erp/costredist/internal/redist"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

type fakeOrders struct {
	nextID   int64
	statuses map[int64]string
	err      error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{nextID: 100, statuses: map[int64]string{}}
}

func (f *fakeOrders) CreatePostingOrder(_ context.Context, batchID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.statuses[f.nextID] = "SUBMITTED"
	return f.nextID, nil
}

func (f *fakeOrders) MarkPostingOrder(_ context.Context, orderID int64, status string) error {
	if f.err != nil {
		return f.err
	}
	f.statuses[orderID] = status
	return nil
}

func TestPostingClientSubmit(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	orders := newFakeOrders()
	client := NewPostingClient(enqueuer, orders, nil)

	result, err := client.Submit(context.Background(), redist.NewPostingRequest("100_KF_20230115"))
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Equal(t, int64(101), result.OrderNumber)

	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, TaskPostingSubmit, enqueuer.tasks[0].Type())

	var payload PostingSubmitPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	require.Equal(t, int64(101), payload.OrderNumber)
	require.Equal(t, "100_KF_20230115", payload.BatchID)
	require.Equal(t, redist.PostingReportName, payload.ReportName)
	require.Equal(t, redist.PostingQueue, payload.Queue)
	require.Equal(t, redist.PostingPeriod, payload.Period)
	require.Equal(t, 1, payload.Post)
	require.Equal(t, redist.InterfaceBI, payload.Interface)
	require.Equal(t, 1, payload.VouchFlag)
}

func TestPostingClientSubmitEnqueueFailureKeepsOrderNumber(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	orders := newFakeOrders()
	client := NewPostingClient(enqueuer, orders, nil)

	result, err := client.Submit(context.Background(), redist.NewPostingRequest("100_KF_20230115"))
	require.Error(t, err)
	require.False(t, result.Accepted)
	require.Equal(t, int64(101), result.OrderNumber, "order stays traceable even when the enqueue fails")
}

func TestPostingClientSubmitOrderFailure(t *testing.T) {
	orders := newFakeOrders()
	orders.err = errors.New("insert failed")
	client := NewPostingClient(&fakeEnqueuer{}, orders, nil)

	_, err := client.Submit(context.Background(), redist.NewPostingRequest("100_KF_20230115"))
	require.Error(t, err)
}

func TestPostingJobHandleMarksOrderAccepted(t *testing.T) {
	orders := newFakeOrders()
	orders.statuses[101] = "SUBMITTED"
	job := NewPostingJob(orders, nil, nil)

	task, err := NewPostingSubmitTask(PostingSubmitPayload{OrderNumber: 101, BatchID: "100_KF_20230115"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "ACCEPTED", orders.statuses[101])
}

func TestPostingJobHandleBadPayloadSkipsRetry(t *testing.T) {
	job := NewPostingJob(newFakeOrders(), nil, nil)
	task := asynq.NewTask(TaskPostingSubmit, []byte("{not json"))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
