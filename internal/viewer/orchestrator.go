package viewer

import (
	"context"
	"errors"
	"fmt"
	"image/draw"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/segview/internal/render"
)

// Orchestrator runs mode pipelines against the core and publishes their
// output into the pool. Starting an activation cancels the previous one.
type Orchestrator struct {
	core *Core
	pool *render.Pool
	log  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshMu  sync.Mutex
	refreshing bool
	pending    bool // A refresh was requested while one was running.
}

// NewOrchestrator wires an orchestrator to core and pool.
func NewOrchestrator(core *Core, pool *render.Pool, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{core: core, pool: pool, log: log}
}

// Activate runs the pipeline of the current mode and waits for it.
func (o *Orchestrator) Activate(ctx context.Context) error {
	return o.run(ctx, "")
}

// Submit starts Activate in the background.
func (o *Orchestrator) Submit(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Activate(ctx)
	}()
}

// RequestRefresh starts UpdateBuffers in the background. If one is already
// running it is marked to run once more when it finishes.
func (o *Orchestrator) RequestRefresh(ctx context.Context) {
	o.refreshMu.Lock()
	if o.refreshing {
		o.pending = true
		o.refreshMu.Unlock()
		return
	}
	o.refreshMu.Unlock()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.UpdateBuffers(ctx)
	}()
}

// Wait blocks until every background activation has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Cancel aborts the in-flight activation, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// UpdateBuffers re-renders the buffer of every class and then re-runs the
// active mode so its geometry is restored. The parameter mode never changes.
// A call made while another refresh is running returns nil immediately and
// makes the running refresh repeat once after its current pass.
func (o *Orchestrator) UpdateBuffers(ctx context.Context) error {
	o.refreshMu.Lock()
	if o.refreshing {
		o.pending = true
		o.refreshMu.Unlock()
		return nil
	}
	o.refreshing = true
	o.refreshMu.Unlock()

	for {
		err := o.refreshAll(ctx)
		o.refreshMu.Lock()
		if !o.pending || ctx.Err() != nil {
			o.refreshing, o.pending = false, false
			o.refreshMu.Unlock()
			return err
		}
		o.pending = false
		o.refreshMu.Unlock()
		if err != nil {
			o.log.Debug("refresh pass failed, repeating", zap.Error(err))
		}
	}
}

func (o *Orchestrator) refreshAll(ctx context.Context) error {
	active := o.core.Params().Mode
	var errs error
	for c := render.Class(0); c < render.NumClasses; c++ {
		if c == active.Class() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, o.run(ctx, representative[c]))
	}
	if err := ctx.Err(); err != nil {
		return multierr.Append(errs, err)
	}
	return multierr.Append(errs, o.run(ctx, ""))
}

func (o *Orchestrator) run(ctx context.Context, mode Mode) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	act := o.core.begin(mode)
	o.mu.Unlock()
	defer cancel()

	start := time.Now()
	err := o.execute(withActivation(ctx, act), act)
	o.report(act, err, time.Since(start))
	return err
}

func (o *Orchestrator) execute(ctx context.Context, act activation) error {
	for _, st := range Pipeline(act.mode) {
		if len(st) == 1 {
			if err := o.step(ctx, act, st[0]); err != nil {
				return err
			}
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range st {
			g.Go(func() error { return o.step(gctx, act, s) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) step(ctx context.Context, act activation, s Step) error {
	start := time.Now()
	var err error
	switch s {
	case StepUpdateVolume:
		err = o.core.UpdateVolume(ctx)
	case StepUpdateSegment:
		err = o.core.UpdateSegment(ctx)
	case StepClipSegment:
		err = o.core.ClipSegment(ctx)
	case StepUpdateSegmentSDF:
		err = o.core.UpdateSegmentSDF(ctx)
	case StepRender:
		err = o.pool.BindForWrite(act.mode.Class(), func(dst draw.Image) error {
			return o.core.Render(ctx, dst)
		})
	default:
		err = fmt.Errorf("unknown step %q", s)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	o.log.Debug("step done",
		zap.String("step", string(s)),
		zap.String("mode", string(act.mode)),
		zap.Uint64("gen", act.gen),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (o *Orchestrator) report(act activation, err error, took time.Duration) {
	fields := []zap.Field{
		zap.String("mode", string(act.mode)),
		zap.Uint64("gen", act.gen),
		zap.Duration("took", took),
	}
	switch {
	case err == nil:
		o.log.Info("mode rendered", append(fields, zap.Stringer("target", act.mode.Class()))...)
	case errors.Is(err, ErrStale), errors.Is(err, context.Canceled):
		o.log.Debug("activation superseded", append(fields, zap.Error(err))...)
	default:
		o.log.Error("mode activation failed", append(fields, zap.Error(err))...)
	}
}
