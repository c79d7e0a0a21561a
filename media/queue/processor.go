package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leeforge/imagepipe/logging"
	"github.com/leeforge/imagepipe/media/processor"
)

var (
	// ErrQueueFull is returned by Submit when the buffer has no room.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("processor is shutting down")
)

// Runner runs one pipeline invocation. *processor.Pipeline implements it.
type Runner interface {
	Process(ctx context.Context, src processor.Source, chain processor.FilterChain, target string) processor.Result
}

// Config 队列配置
type Config struct {
	Workers     int           `mapstructure:"workers" json:"workers" yaml:"workers" default:"4" validate:"gte=1"`
	QueueSize   int           `mapstructure:"queue-size" json:"queueSize" yaml:"queue-size" default:"100" validate:"gte=1"`
	StopTimeout time.Duration `mapstructure:"stop-timeout" json:"stopTimeout" yaml:"stop-timeout" default:"30s"`
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 30 * time.Second
	}
}

// AsyncProcessor 异步处理器
type AsyncProcessor struct {
	config   Config
	jobQueue chan Job
	runner   Runner
	logger   logging.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// Job 处理任务
type Job struct {
	ID       string
	Source   processor.Source
	Filters  processor.FilterChain
	Target   string
	Callback func(result JobResult)
}

// JobResult 任务结果
type JobResult struct {
	JobID    string
	Result   processor.Result
	Duration time.Duration
}

// Success reports whether the job wrote its target.
func (r JobResult) Success() bool {
	_, ok := r.Result.(processor.Success)
	return ok
}

// Err returns the failure cause, or nil.
func (r JobResult) Err() error {
	if f, ok := r.Result.(processor.Failure); ok {
		return f.Err
	}
	return nil
}

// NewAsyncProcessor 创建异步处理器
func NewAsyncProcessor(config Config, runner Runner, logger logging.Logger) *AsyncProcessor {
	config.applyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncProcessor{
		config:   config,
		jobQueue: make(chan Job, config.QueueSize),
		runner:   runner,
		logger:   logger.Named("queue"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动处理器
func (p *AsyncProcessor) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker 工作协程
func (p *AsyncProcessor) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.processJob(id, job)
	}
}

// processJob 处理单个任务，失败不重试
func (p *AsyncProcessor) processJob(worker int, job Job) {
	ctx := logging.SetJobID(p.ctx, job.ID)
	log := logging.WithContext(p.logger, ctx)

	start := time.Now()
	res := p.runner.Process(ctx, job.Source, job.Filters, job.Target)
	result := JobResult{JobID: job.ID, Result: res, Duration: time.Since(start)}

	if f, ok := res.(processor.Failure); ok {
		log.Warn("job failed", zap.Int("worker", worker), zap.String("reason", f.Message))
	} else {
		log.Debug("job done", zap.Int("worker", worker), zap.Duration("elapsed", result.Duration))
	}

	// 调用回调
	if job.Callback != nil {
		job.Callback(result)
	}
}

// Submit 提交任务，返回任务 ID
func (p *AsyncProcessor) Submit(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrStopped
	}

	select {
	case p.jobQueue <- job:
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// SubmitWait is Submit that waits for queue room instead of failing with
// ErrQueueFull. It returns ctx.Err() if ctx ends first.
func (p *AsyncProcessor) SubmitWait(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrStopped
	}

	select {
	case p.jobQueue <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SubmitBatch 批量提交任务
func (p *AsyncProcessor) SubmitBatch(jobs []Job) ([]string, error) {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		id, err := p.Submit(job)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Stop stops accepting jobs and lets workers drain the queue. Jobs still
// running after the timeout are canceled.
func (p *AsyncProcessor) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(p.config.StopTimeout):
		p.cancel()
		<-done
		return fmt.Errorf("timeout waiting for jobs to complete")
	}
}

// GetQueueSize 获取队列中等待的任务数
func (p *AsyncProcessor) GetQueueSize() int {
	return len(p.jobQueue)
}

// BatchProcessor 批量处理器
type BatchProcessor struct {
	processor *AsyncProcessor
}

// NewBatchProcessor 创建批量处理器
func NewBatchProcessor(processor *AsyncProcessor) *BatchProcessor {
	return &BatchProcessor{
		processor: processor,
	}
}

// ProcessBatch submits every job, waiting for queue room as needed, and
// returns all results in job order. Already submitted jobs still run if a
// later submit fails.
func (b *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)

		// 为每个任务创建回调
		original := job.Callback
		job.Callback = func(result JobResult) {
			defer wg.Done()
			results[i] = result
			if original != nil {
				original(result)
			}
		}

		if _, err := b.processor.SubmitWait(ctx, job); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit job %d: %w", i, err)
		}
	}

	// 等待所有任务完成
	wg.Wait()

	return results, nil
}

// ProgressTracker 进度追踪器
type ProgressTracker struct {
	total     int
	completed int
	failed    int
	mu        sync.RWMutex
}

// NewProgressTracker 创建进度追踪器
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total: total,
	}
}

// Record counts a finished job.
func (t *ProgressTracker) Record(result JobResult) {
	if result.Success() {
		t.IncrementCompleted()
	} else {
		t.IncrementFailed()
	}
}

// IncrementCompleted 增加完成数
func (t *ProgressTracker) IncrementCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
}

// IncrementFailed 增加失败数
func (t *ProgressTracker) IncrementFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
}

// GetProgress 获取进度
func (t *ProgressTracker) GetProgress() (completed, failed, total int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed, t.failed, t.total
}

// GetPercentage 获取百分比
func (t *ProgressTracker) GetPercentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.total == 0 {
		return 0
	}
	return float64(t.completed+t.failed) / float64(t.total) * 100
}

// Done reports whether every job has finished.
func (t *ProgressTracker) Done() bool {
	c, f, total := t.GetProgress()
	return c+f >= total
}

// JobManager 任务管理器
type JobManager struct {
	processor *AsyncProcessor
	tracker   *ProgressTracker
	interval  time.Duration
}

// NewJobManager 创建任务管理器
func NewJobManager(processor *AsyncProcessor, totalJobs int) *JobManager {
	return &JobManager{
		processor: processor,
		tracker:   NewProgressTracker(totalJobs),
		interval:  100 * time.Millisecond,
	}
}

// ProcessWithProgress submits jobs, tracking each result, and waits for
// all of them or ctx.
func (jm *JobManager) ProcessWithProgress(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	var mu sync.Mutex

	for i, job := range jobs {
		// 包装回调以追踪进度
		original := job.Callback
		job.Callback = func(result JobResult) {
			mu.Lock()
			results[i] = result
			mu.Unlock()

			jm.tracker.Record(result)

			if original != nil {
				original(result)
			}
		}

		if _, err := jm.processor.SubmitWait(ctx, job); err != nil {
			return nil, err
		}
	}

	if err := jm.Wait(ctx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return results, nil
}

// GetProgress 获取处理进度
func (jm *JobManager) GetProgress() (completed, failed, total int, percentage float64) {
	c, f, t := jm.tracker.GetProgress()
	return c, f, t, jm.tracker.GetPercentage()
}

// Wait 等待所有任务完成
func (jm *JobManager) Wait(ctx context.Context) error {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for !jm.tracker.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
