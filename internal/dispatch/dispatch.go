package dispatch

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"liquiditySniper/internal/detect"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/metrics"
	"liquiditySniper/internal/model"
)

// Session is the scheduler side of classification. Every method is called
// on the loop.
type Session interface {
	Listening() bool
	Pause()
	Epoch() uint64
	Detectors() []detect.Detector
	Snapshot() *detect.Context
	ObserveFeeStyle(tx *model.PendingTransaction)
	Fold(epoch uint64, obs *detect.Observation) *model.Verdict
	Accept(v *model.Verdict)
}

// Fetcher loads a pending transaction by hash. A nil transaction without
// error means the node no longer knows it.
type Fetcher interface {
	PendingTransaction(ctx context.Context, hash common.Hash) (*model.PendingTransaction, error)
}

// Checker reads the coordination record before an event is handled.
type Checker interface {
	Check(ctx context.Context) error
}

// Options tune the dispatcher. Zero values disable the limits.
type Options struct {
	FetchRate  float64
	FetchBurst int
	Workers    int
}

// Dispatcher classifies pending transactions for a Session.
type Dispatcher struct {
	loop    *loop.Loop
	session Session
	fetcher Fetcher
	checker Checker
	limiter *rate.Limiter
	workers int
	logger  *zap.Logger
	metrics *metrics.SniperMetrics
}

// New creates a Dispatcher.
func New(l *loop.Loop, session Session, fetcher Fetcher, checker Checker, opts Options, logger *zap.Logger, m *metrics.SniperMetrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.FetchRate > 0 {
		burst := opts.FetchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.FetchRate), burst)
	}
	return &Dispatcher{
		loop:    l,
		session: session,
		fetcher: fetcher,
		checker: checker,
		limiter: limiter,
		workers: opts.Workers,
		logger:  logger,
		metrics: m,
	}
}

// OnPending queues a pending hash. Safe to call from any goroutine.
func (d *Dispatcher) OnPending(hash common.Hash) {
	d.loop.Post(func() { d.handlePending(hash) })
}

func (d *Dispatcher) handlePending(hash common.Hash) {
	listening := d.session.Listening()
	loop.Await(d.loop, func(ctx context.Context) (*model.PendingTransaction, error) {
		if d.checker != nil {
			if err := d.checker.Check(ctx); err != nil {
				return nil, err
			}
		}
		if !listening {
			return nil, nil
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return d.fetcher.PendingTransaction(ctx, hash)
	}, func(tx *model.PendingTransaction, err error) {
		if errors.Is(err, model.ErrCoordinationLoss) {
			d.logger.Info("exiting as commanded by coordination record", zap.Error(err))
			d.loop.Stop(err)
			return
		}
		if err != nil {
			d.metrics.PendingFetchErrorInc()
			d.logger.Debug("pending transaction skipped", zap.String("hash", hash.Hex()), zap.Error(err))
			return
		}
		if tx != nil {
			d.Dispatch(tx)
		}
	})
}

// Dispatch classifies tx against the detectors of the current stage. It
// must run on the loop.
func (d *Dispatcher) Dispatch(tx *model.PendingTransaction) {
	if !d.session.Listening() {
		return
	}
	d.session.ObserveFeeStyle(tx)
	dets := d.session.Detectors()
	if len(dets) == 0 {
		return
	}
	dc := d.session.Snapshot()
	epoch := d.session.Epoch()

	loop.Await(d.loop, func(ctx context.Context) ([]detect.Outcome, error) {
		return d.evaluate(ctx, tx, dc, dets)
	}, func(outcomes []detect.Outcome, err error) {
		if err != nil {
			return
		}
		d.resolve(epoch, outcomes)
	})
}

// evaluate runs every detector concurrently, keeping results in detector
// order.
func (d *Dispatcher) evaluate(ctx context.Context, tx *model.PendingTransaction, dc *detect.Context, dets []detect.Detector) ([]detect.Outcome, error) {
	outcomes := make([]detect.Outcome, len(dets))
	g, gctx := errgroup.WithContext(ctx)
	if d.workers > 0 {
		g.SetLimit(d.workers)
	}
	for i, det := range dets {
		i, det := i, det
		g.Go(func() error {
			outcomes[i] = det.Detect(gctx, tx, dc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, ctx.Err()
}

// resolve runs on the loop after evaluation. Pausing happens before any
// further suspension so overlapping evaluations cannot trigger twice. A
// verdict raised while folding counts after every detector verdict.
func (d *Dispatcher) resolve(epoch uint64, outcomes []detect.Outcome) {
	var folded *model.Verdict
	for _, out := range outcomes {
		if v := d.session.Fold(epoch, out.Observation); v != nil && folded == nil {
			folded = v
		}
	}
	if !d.session.Listening() || d.session.Epoch() != epoch {
		return
	}
	for _, out := range outcomes {
		if out.Verdict != nil && out.Verdict.Valid {
			d.accept(out.Verdict)
			return
		}
	}
	if folded != nil && folded.Valid {
		d.accept(folded)
	}
}

func (d *Dispatcher) accept(v *model.Verdict) {
	d.session.Pause()
	d.metrics.VerdictInc(string(v.Kind))
	d.session.Accept(v)
}
