package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nordvik-erp/costredist/internal/redist"
)

type fakeRunner struct {
	cfgs   []redist.RunConfig
	report redist.RunReport
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cfg redist.RunConfig) (redist.RunReport, error) {
	f.cfgs = append(f.cfgs, cfg)
	return f.report, f.err
}

func baseConfig() redist.RunConfig {
	return redist.RunConfig{
		Client:     "100",
		PeriodFrom: "202301",
		PeriodTo:   "202312",
		RuleSlots:  []string{"4000-4999;9039;7999"},
		Rounding:   redist.RoundTruncate,
	}
}

func TestCostRedistHandleUsesBaseConfig(t *testing.T) {
	runner := &fakeRunner{report: redist.RunReport{BatchID: "100_KF_20230115", BufferRows: 2}}
	job := NewCostRedistJob(runner, baseConfig(), nil, nil)

	task, err := NewCostRedistTask("", "", "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, runner.cfgs, 1)
	require.Equal(t, baseConfig(), runner.cfgs[0])
}

func TestCostRedistHandleOverridesScope(t *testing.T) {
	runner := &fakeRunner{}
	job := NewCostRedistJob(runner, baseConfig(), nil, nil)

	task, err := NewCostRedistTask("200", "202302", "202303")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	cfg := runner.cfgs[0]
	require.Equal(t, "200", cfg.Client)
	require.Equal(t, "202302", cfg.PeriodFrom)
	require.Equal(t, "202303", cfg.PeriodTo)
	require.Equal(t, baseConfig().RuleSlots, cfg.RuleSlots, "rule slots come from worker config")
}

func TestCostRedistHandleBadPayloadSkipsRetry(t *testing.T) {
	job := NewCostRedistJob(&fakeRunner{}, baseConfig(), nil, nil)
	task := asynq.NewTask(TaskCostRedistribute, []byte("{not json"))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestCostRedistHandleBadParametersSkipRetry(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("%w: client missing", redist.ErrInvalidConfig)}
	job := NewCostRedistJob(runner, baseConfig(), nil, nil)

	task, err := NewCostRedistTask("", "", "")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestCostRedistHandlePropagatesRunFailure(t *testing.T) {
	wantErr := errors.New("ledger unreachable")
	runner := &fakeRunner{err: wantErr}
	job := NewCostRedistJob(runner, baseConfig(), nil, nil)

	task, err := NewCostRedistTask("", "", "")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), wantErr)
}
