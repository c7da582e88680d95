package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/logger"
)

type fakeRunner struct {
	ticks     atomic.Int32
	snapshots atomic.Int32
	block     chan struct{}
}

func (f *fakeRunner) Tick(context.Context) model.DispatchResult {
	f.ticks.Add(1)
	if f.block != nil {
		<-f.block
	}
	return model.DispatchResult{Mode: model.ModeSkipped}
}

func (f *fakeRunner) SnapshotHour(context.Context) error {
	f.snapshots.Add(1)
	return errors.New("no telemetry")
}

func TestSchedulerRunsJobs(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(Config{TickSpec: "* * * * * *", SnapshotSpec: "* * * * * *"}, r, logger.NopLogger{})
	require.NoError(t, err)
	assert.Len(t, s.Next(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, r.ticks.Load(), int32(1))
	assert.GreaterOrEqual(t, r.snapshots.Load(), int32(1))
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s, err := New(Config{TickSpec: "* * * * * *", SnapshotSpec: "0 0 * * * *"}, r, logger.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	<-ctx.Done()
	assert.Equal(t, int32(1), r.ticks.Load())
	close(r.block)
	<-done
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := New(Config{TickSpec: "every tick", SnapshotSpec: "0 0 * * * *"}, &fakeRunner{}, nil)
	assert.Error(t, err)
	_, err = New(Config{TickSpec: "*/15 * * * * *", SnapshotSpec: "hourly"}, &fakeRunner{}, nil)
	assert.Error(t, err)
}
