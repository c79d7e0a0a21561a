package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/imagepipe/errors"
	"github.com/leeforge/imagepipe/logging"
	"github.com/leeforge/imagepipe/media/processor"
	"github.com/leeforge/imagepipe/pipelinetest"
)

// stubRunner fails targets named "fail" and records job ids seen in ctx.
type stubRunner struct {
	delay   time.Duration
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32

	mu     sync.Mutex
	jobIDs []string
}

func (r *stubRunner) Process(ctx context.Context, src processor.Source, chain processor.FilterChain, target string) processor.Result {
	r.calls.Add(1)
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	r.jobIDs = append(r.jobIDs, logging.GetJobID(ctx))
	r.mu.Unlock()

	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		err := apperrors.NewCanceled(ctx.Err())
		return processor.Failure{Message: err.Error(), Err: err}
	}
	if target == "fail" {
		err := errors.New("boom")
		return processor.Failure{Message: err.Error(), Err: err}
	}
	return processor.Success{Output: target}
}

func TestAsyncProcessor_RunsJobsConcurrently(t *testing.T) {
	runner := &stubRunner{delay: 50 * time.Millisecond}
	p := NewAsyncProcessor(Config{Workers: 4, QueueSize: 16}, runner, nil)
	p.Start()

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		_, err := p.Submit(Job{
			Target: fmt.Sprintf("out-%d.jpg", i),
			Callback: func(r JobResult) {
				defer wg.Done()
				if r.Success() {
					succeeded.Add(1)
				}
			},
		})
		require.NoError(t, err)
	}
	wg.Wait()
	require.NoError(t, p.Stop())

	assert.Equal(t, int32(8), succeeded.Load())
	assert.Equal(t, int32(4), runner.peak.Load())
}

func TestAsyncProcessor_JobIDs(t *testing.T) {
	runner := &stubRunner{}
	p := NewAsyncProcessor(Config{Workers: 1}, runner, nil)
	p.Start()

	results := make(chan JobResult, 2)
	cb := func(r JobResult) { results <- r }

	id, err := p.Submit(Job{ID: "job-1", Target: "a.jpg", Callback: cb})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	generated, err := p.Submit(Job{Target: "b.jpg", Callback: cb})
	require.NoError(t, err)
	assert.NotEmpty(t, generated)

	first, second := <-results, <-results
	require.NoError(t, p.Stop())

	assert.Equal(t, "job-1", first.JobID)
	assert.Equal(t, generated, second.JobID)
	assert.Equal(t, []string{"job-1", generated}, runner.jobIDs)
}

func TestAsyncProcessor_NoRetry(t *testing.T) {
	runner := &stubRunner{}
	p := NewAsyncProcessor(Config{Workers: 2}, runner, nil)
	p.Start()

	done := make(chan JobResult, 1)
	_, err := p.Submit(Job{Target: "fail", Callback: func(r JobResult) { done <- r }})
	require.NoError(t, err)

	r := <-done
	require.NoError(t, p.Stop())
	assert.False(t, r.Success())
	assert.EqualError(t, r.Err(), "boom")
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestAsyncProcessor_QueueFull(t *testing.T) {
	p := NewAsyncProcessor(Config{Workers: 1, QueueSize: 2}, &stubRunner{}, nil)

	_, err := p.Submit(Job{})
	require.NoError(t, err)
	_, err = p.Submit(Job{})
	require.NoError(t, err)
	_, err = p.Submit(Job{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, p.GetQueueSize())

	p.Start()
	require.NoError(t, p.Stop())
	assert.Equal(t, 0, p.GetQueueSize())
}

func TestAsyncProcessor_Stop(t *testing.T) {
	t.Run("drains queued jobs", func(t *testing.T) {
		runner := &stubRunner{delay: 10 * time.Millisecond}
		p := NewAsyncProcessor(Config{Workers: 1, QueueSize: 8}, runner, nil)
		p.Start()
		ids, err := p.SubmitBatch(make([]Job, 5))
		require.NoError(t, err)
		assert.Len(t, ids, 5)

		require.NoError(t, p.Stop())
		assert.Equal(t, int32(5), runner.calls.Load())

		_, err = p.Submit(Job{})
		assert.ErrorIs(t, err, ErrStopped)
		assert.NoError(t, p.Stop(), "second stop is a no-op")
	})

	t.Run("timeout cancels running jobs", func(t *testing.T) {
		runner := &stubRunner{delay: time.Minute}
		p := NewAsyncProcessor(Config{Workers: 1, StopTimeout: 20 * time.Millisecond}, runner, nil)
		p.Start()

		done := make(chan JobResult, 1)
		_, err := p.Submit(Job{Callback: func(r JobResult) { done <- r }})
		require.NoError(t, err)
		require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)

		assert.Error(t, p.Stop())
		r := <-done
		assert.ErrorIs(t, r.Err(), apperrors.ErrCanceled)
	})
}

func TestBatchProcessor_ProcessBatch(t *testing.T) {
	runner := &stubRunner{delay: time.Millisecond}
	p := NewAsyncProcessor(Config{Workers: 3}, runner, nil)
	p.Start()
	defer p.Stop()

	var callbacks atomic.Int32
	jobs := []Job{
		{Target: "a.jpg"},
		{Target: "fail"},
		{Target: "c.jpg", Callback: func(JobResult) { callbacks.Add(1) }},
	}
	results, err := NewBatchProcessor(p).ProcessBatch(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, processor.Success{Output: "a.jpg"}, results[0].Result)
	assert.False(t, results[1].Success())
	assert.Equal(t, processor.Success{Output: "c.jpg"}, results[2].Result)
	assert.Equal(t, int32(1), callbacks.Load(), "caller callbacks still run")
}

func TestBatchProcessor_LargerThanQueue(t *testing.T) {
	runner := &stubRunner{delay: time.Millisecond}
	p := NewAsyncProcessor(Config{Workers: 2, QueueSize: 3}, runner, nil)
	p.Start()
	defer p.Stop()

	jobs := make([]Job, 25)
	for i := range jobs {
		jobs[i].Target = fmt.Sprintf("%02d.jpg", i)
	}
	results, err := NewBatchProcessor(p).ProcessBatch(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, processor.Success{Output: jobs[i].Target}, r.Result)
	}
	assert.Equal(t, int32(len(jobs)), runner.calls.Load())
}

func TestAsyncProcessor_SubmitWait(t *testing.T) {
	t.Run("waits for room", func(t *testing.T) {
		p := NewAsyncProcessor(Config{Workers: 1, QueueSize: 1}, &stubRunner{}, nil)
		_, err := p.Submit(Job{})
		require.NoError(t, err)

		submitted := make(chan error, 1)
		go func() {
			_, err := p.SubmitWait(context.Background(), Job{})
			submitted <- err
		}()
		select {
		case <-submitted:
			t.Fatal("SubmitWait returned while the queue was full")
		case <-time.After(20 * time.Millisecond):
		}

		p.Start()
		require.NoError(t, <-submitted)
		require.NoError(t, p.Stop())
	})

	t.Run("honors context", func(t *testing.T) {
		p := NewAsyncProcessor(Config{Workers: 1, QueueSize: 1}, &stubRunner{}, nil)
		_, err := p.Submit(Job{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = p.SubmitWait(ctx, Job{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		p.Start()
		require.NoError(t, p.Stop())
	})

	t.Run("after stop", func(t *testing.T) {
		p := NewAsyncProcessor(Config{Workers: 1}, &stubRunner{}, nil)
		p.Start()
		require.NoError(t, p.Stop())
		_, err := p.SubmitWait(context.Background(), Job{})
		assert.ErrorIs(t, err, ErrStopped)
	})
}

func TestBatchProcessor_SubmitFailure(t *testing.T) {
	p := NewAsyncProcessor(Config{Workers: 1}, &stubRunner{}, nil)
	p.Start()
	require.NoError(t, p.Stop())

	_, err := NewBatchProcessor(p).ProcessBatch(context.Background(), []Job{{Target: "a.jpg"}})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestProgressTracker(t *testing.T) {
	tr := NewProgressTracker(4)
	assert.False(t, tr.Done())

	tr.Record(JobResult{Result: processor.Success{}})
	tr.Record(JobResult{Result: processor.Failure{}})
	tr.IncrementCompleted()

	c, f, total := tr.GetProgress()
	assert.Equal(t, [3]int{2, 1, 4}, [3]int{c, f, total})
	assert.InDelta(t, 75.0, tr.GetPercentage(), 1e-9)

	tr.IncrementFailed()
	assert.True(t, tr.Done())
	assert.Zero(t, NewProgressTracker(0).GetPercentage())
}

func TestJobManager_ProcessWithProgress(t *testing.T) {
	runner := &stubRunner{delay: time.Millisecond}
	p := NewAsyncProcessor(Config{Workers: 2}, runner, nil)
	p.Start()
	defer p.Stop()

	jm := NewJobManager(p, 3)
	jm.interval = time.Millisecond
	results, err := jm.ProcessWithProgress(context.Background(), []Job{
		{Target: "a.jpg"}, {Target: "fail"}, {Target: "b.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	c, f, total, pct := jm.GetProgress()
	assert.Equal(t, 2, c)
	assert.Equal(t, 1, f)
	assert.Equal(t, 3, total)
	assert.InDelta(t, 100.0, pct, 1e-9)
}

func TestJobManager_WaitHonorsContext(t *testing.T) {
	p := NewAsyncProcessor(Config{Workers: 1}, &stubRunner{}, nil)
	jm := NewJobManager(p, 1)
	jm.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, jm.Wait(ctx), context.DeadlineExceeded)
}

func TestAsyncProcessor_WithPipeline(t *testing.T) {
	dir := t.TempDir()
	logger, logs := pipelinetest.ObservedLogger()
	pipeline := processor.NewPipeline(processor.DefaultConfig(), processor.WithLogger(logger))
	p := NewAsyncProcessor(Config{Workers: 2}, pipeline, logger)
	p.Start()

	data := pipelinetest.JPEG(t, pipelinetest.Gradient(120, 90))
	jobs := []Job{
		{ID: "ok", Source: pipelinetest.NewSource("in.jpg", data), Target: filepath.Join(dir, "ok.jpg"),
			Filters: processor.FilterChain{processor.Resize{MaxWidth: 60, MaxHeight: 60}}},
		{ID: "bad", Source: pipelinetest.NewSource("in.jpg", data), Target: filepath.Join(dir, "bad.jpg"),
			Filters: processor.FilterChain{processor.Crop{Rect: processor.NormalizedRect{Left: 1}}}},
	}
	results, err := NewBatchProcessor(p).ProcessBatch(context.Background(), jobs)
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	assert.True(t, results[0].Success())
	assert.Equal(t, 60, pipelinetest.Decode(t, filepath.Join(dir, "ok.jpg")).Bounds().Dx())
	assert.ErrorIs(t, results[1].Err(), apperrors.ErrInvalidCropRegion)
	assert.NoFileExists(t, filepath.Join(dir, "bad.jpg"))

	failed := logs.FilterMessage("job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].ContextMap()[string(logging.JobIDKey)])
}
