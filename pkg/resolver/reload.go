package resolver

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// Recorder persists the outcome of passes. result is nil when err is set.
type Recorder interface {
	Record(ctx context.Context, passID string, result *engine.Result, err error) error
}

// ReloaderOptions configures a Reloader.
type ReloaderOptions struct {
	// Interactive keeps serving an empty result when a pass fails instead
	// of returning the error.
	Interactive bool

	// Recorder, if set, receives the outcome of every pass that is not superseded.
	Recorder Recorder

	// OnRestart is called when a configuration that required a restart
	// becomes valid again.
	OnRestart func()
}

// Reloader memoizes the in-flight pass. A Reload supersedes the pass in
// flight; the result of a superseded pass is discarded.
type Reloader struct {
	resolver *Resolver
	opts     ReloaderOptions
	logger   *telemetry.Logger

	mu              sync.Mutex
	current         *call
	invalid         bool
	restartRequired bool
}

type call struct {
	passID   string
	tolerate bool
	cancel   context.CancelFunc
	done     chan struct{}

	result *engine.Result
	err    error
}

// NewReloader creates a reloader running passes with r.
func NewReloader(r *Resolver, opts ReloaderOptions) *Reloader {
	return &Reloader{
		resolver: r,
		opts:     opts,
		logger:   r.tel.Logger.NewComponentLogger("reloader"),
	}
}

// Get returns the result of the current pass, starting one if none ran yet.
func (rl *Reloader) Get(ctx context.Context) (*engine.Result, error) {
	rl.mu.Lock()
	if rl.current == nil {
		rl.start(false)
	}
	c := rl.current
	rl.mu.Unlock()
	return rl.wait(ctx, c)
}

// Reload cancels the pass in flight and starts a new one that tolerates an
// invalid configuration.
func (rl *Reloader) Reload(ctx context.Context) (*engine.Result, error) {
	rl.mu.Lock()
	if rl.current != nil {
		rl.current.cancel()
	}
	rl.start(true)
	c := rl.current
	rl.mu.Unlock()
	return rl.wait(ctx, c)
}

// Invalid reports whether the last settled pass failed.
func (rl *Reloader) Invalid() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.invalid
}

// RestartRequired reports whether a pass failed while invalid configuration
// was not tolerated.
func (rl *Reloader) RestartRequired() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.restartRequired
}

// start must be called with rl.mu held.
func (rl *Reloader) start(tolerate bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &call{
		passID:   uuid.NewString(),
		tolerate: tolerate,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	rl.current = c

	go func() {
		defer close(c.done)
		defer cancel()
		result, err := rl.resolver.ResolvePass(ctx, c.passID)
		c.result, c.err = rl.settle(ctx, c, result, err)
	}()
}

// wait blocks until c settles and follows newer passes started meanwhile.
func (rl *Reloader) wait(ctx context.Context, c *call) (*engine.Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
		}
		rl.mu.Lock()
		next := rl.current
		rl.mu.Unlock()
		if next == c {
			return c.result, c.err
		}
		c = next
	}
}

func (rl *Reloader) settle(ctx context.Context, c *call, result *engine.Result, err error) (*engine.Result, error) {
	tel := rl.resolver.tel
	logger := rl.logger.WithPassID(c.passID)

	rl.mu.Lock()
	if rl.current != c {
		rl.mu.Unlock()
		logger.Debug("discarding superseded pass")
		if pubErr := tel.Events.PublishPassDiscarded(c.passID); pubErr != nil {
			logger.WithError(pubErr).Debug("failed to publish event")
		}
		return result, err
	}

	var restart func()
	if err == nil {
		wasInvalid := rl.invalid
		rl.invalid = false
		tel.Metrics.SetConfigInvalid(false)
		if wasInvalid {
			logger.Info("configuration is valid again")
			if pubErr := tel.Events.PublishConfigRecovered(c.passID); pubErr != nil {
				logger.WithError(pubErr).Debug("failed to publish event")
			}
		}
		if rl.restartRequired {
			rl.restartRequired = false
			if pubErr := tel.Events.PublishRestartRequired(c.passID); pubErr != nil {
				logger.WithError(pubErr).Debug("failed to publish event")
			}
			restart = rl.opts.OnRestart
		}
	} else {
		rl.invalid = true
		tel.Metrics.SetConfigInvalid(true)
		if rl.opts.Interactive && !c.tolerate {
			rl.restartRequired = true
		}
	}
	rl.mu.Unlock()

	if rl.opts.Recorder != nil {
		if recErr := rl.opts.Recorder.Record(ctx, c.passID, result, err); recErr != nil {
			logger.WithError(recErr).Warn("failed to record pass")
		}
	}
	if restart != nil {
		restart()
	}

	if err == nil {
		return result, nil
	}
	if !rl.opts.Interactive {
		return nil, err
	}
	logger.WithError(err).Error("configuration is invalid")
	return engine.EmptyResult(c.passID), nil
}
