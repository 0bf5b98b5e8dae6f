package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
)

func TestStartDisabledIsNoop(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Scheduler.Enabled = false

	svc := NewSchedulerService(cfg, func(ctx context.Context) error { return nil }, arbor.NewLogger())
	require.NoError(t, svc.Start())
	svc.Stop()
}

func TestStartRejectsEmptySchedule(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Schedule = ""

	svc := NewSchedulerService(cfg, func(ctx context.Context) error { return nil }, arbor.NewLogger())
	assert.Error(t, svc.Start())
}

func TestTickSkipsWhileRunning(t *testing.T) {
	cfg := common.NewDefaultConfig()
	var runs atomic.Int32
	release := make(chan struct{})

	svc := NewSchedulerService(cfg, func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}, arbor.NewLogger()).(*Service)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.tick()
	}()

	// Wait until the first run holds the slot, then tick again
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	svc.tick() // Overlapping tick must be skipped
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	wg.Wait()

	svc.tick()
	assert.Equal(t, int32(2), runs.Load())
}
