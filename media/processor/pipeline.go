package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/imagepipe/errors"
	"github.com/leeforge/imagepipe/logging"
)

// Stage names used in logs and metrics.
const (
	StageDecode = "decode"
	StageOrient = "orient"
	StageFilter = "filter"
	StageEncode = "encode"
)

// Observer receives per-invocation measurements. metrics.Pipeline implements it.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveResult(err error)
}

// Pipeline decodes, orients, filters and encodes one image per call.
// It keeps no per-call state and may be shared between goroutines.
type Pipeline struct {
	decoder   *Decoder
	corrector *OrientationCorrector
	executor  *Executor
	encoder   *Encoder
	logger    logging.Logger
	observer  Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver sets the measurement sink.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// NewPipeline builds a pipeline from config.
func NewPipeline(config Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder:  NewDecoder(config),
		executor: NewExecutor(config),
		encoder:  NewEncoder(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	p.corrector = NewOrientationCorrector(p.logger)
	return p
}

// Process runs the pipeline and folds the outcome into a Result.
func (p *Pipeline) Process(ctx context.Context, src Source, chain FilterChain, target string) Result {
	out, err := p.Run(ctx, src, chain, target)
	if err != nil {
		return Failure{Message: err.Error(), Err: err}
	}
	return Success{Output: out}
}

// Run executes decode → orient → filters → encode and returns target on
// success. On failure nothing is written to target.
func (p *Pipeline) Run(ctx context.Context, src Source, chain FilterChain, target string) (out string, err error) {
	if logging.GetInvocationID(ctx) == "" {
		ctx = logging.SetInvocationID(ctx, uuid.NewString())
	}
	log := logging.WithContext(p.logger, ctx).With(
		zap.String("source", src.Name()),
		zap.String("target", target),
		zap.Int("filters", len(chain)),
	)
	started := time.Now()

	defer func() {
		if p.observer != nil {
			p.observer.ObserveResult(err)
		}
		if err != nil {
			log.Warn("processing failed",
				zap.String("error_type", string(apperrors.TypeOf(err))),
				zap.Error(err))
			return
		}
		log.Info("processing finished", zap.Duration("elapsed", time.Since(started)))
	}()

	var (
		buf    *PixelBuffer
		factor int
	)

	if err = p.stage(ctx, log, StageDecode, func() (e error) {
		buf, factor, e = p.decoder.Decode(ctx, src)
		return e
	}); err != nil {
		return "", err
	}
	log.Debug("decoded",
		zap.Int("width", buf.Width),
		zap.Int("height", buf.Height),
		zap.Int("subsample", factor))

	if err = p.stage(ctx, log, StageOrient, func() error {
		buf = p.corrector.Correct(ctx, buf, src)
		return nil
	}); err != nil {
		return "", err
	}

	if err = p.stage(ctx, log, StageFilter, func() (e error) {
		buf, e = p.executor.Run(buf, chain)
		return e
	}); err != nil {
		return "", err
	}

	if err = p.stage(ctx, log, StageEncode, func() error {
		return p.encoder.Encode(ctx, buf, target)
	}); err != nil {
		return "", err
	}
	return target, nil
}

func (p *Pipeline) stage(ctx context.Context, log logging.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCanceled(err).WithDetail("stage", name)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if p.observer != nil {
		p.observer.ObserveStage(name, elapsed)
	}
	log.Debug("stage done", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	return err
}
