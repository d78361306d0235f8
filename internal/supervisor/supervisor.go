package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquiditySniper/internal/metrics"
)

// DefaultBackoff is the wait between reconnect attempts.
const DefaultBackoff = 3 * time.Second

var errSubscriptionClosed = errors.New("subscription closed")

// Conn is the node connection the supervisor keeps alive.
type Conn interface {
	Redial(ctx context.Context) error
	SubscribePendingHashes(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Handlers receive feed events. They are called from the supervisor
// goroutine and must not block.
type Handlers struct {
	OnPending func(common.Hash)
	OnBlock   func(uint64)
}

// Supervisor keeps pending-transaction and new-head subscriptions alive.
type Supervisor struct {
	conn     Conn
	handlers Handlers
	backoff  time.Duration
	logger   *zap.Logger
	metrics  *metrics.SniperMetrics
}

// New creates a supervisor. A zero backoff uses DefaultBackoff.
func New(conn Conn, handlers Handlers, backoff time.Duration, logger *zap.Logger, m *metrics.SniperMetrics) *Supervisor {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{conn: conn, handlers: handlers, backoff: backoff, logger: logger, metrics: m}
}

// Connect dials until the first handshake succeeds or ctx is done.
func (s *Supervisor) Connect(ctx context.Context) error {
	return withRetry(ctx, -1, s.backoff, func(attempt int, err error) {
		s.logger.Warn("rpc dial failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", s.backoff),
			zap.Error(err),
		)
	}, s.conn.Redial)
}

// Run streams events until ctx is done. The connection must already be
// established with Connect; every lost session is followed by a fixed
// backoff and a fresh dial.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("websocket session ended, reconnecting",
			zap.Duration("backoff", s.backoff),
			zap.Error(err),
		)
		if !sleep(ctx, s.backoff) {
			return ctx.Err()
		}
		if err := s.Connect(ctx); err != nil {
			return err
		}
		s.metrics.ReconnectInc()
	}
}

func (s *Supervisor) session(ctx context.Context) error {
	hashes := make(chan common.Hash, 1024)
	heads := make(chan *types.Header, 16)

	pendingSub, err := s.conn.SubscribePendingHashes(ctx, hashes)
	if err != nil {
		return fmt.Errorf("subscribe pending: %w", err)
	}
	defer pendingSub.Unsubscribe()

	headSub, err := s.conn.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe heads: %w", err)
	}
	defer headSub.Unsubscribe()

	s.logger.Info("websocket listener started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-pendingSub.Err():
			return subscriptionErr("pending", err)
		case err := <-headSub.Err():
			return subscriptionErr("heads", err)
		case hash := <-hashes:
			s.metrics.PendingSeenInc()
			if s.handlers.OnPending != nil {
				s.handlers.OnPending(hash)
			}
		case head := <-heads:
			if head == nil || head.Number == nil {
				continue
			}
			number := head.Number.Uint64()
			s.metrics.SetBlock(number)
			if s.handlers.OnBlock != nil {
				s.handlers.OnBlock(number)
			}
		}
	}
}

func subscriptionErr(name string, err error) error {
	if err == nil {
		err = errSubscriptionClosed
	}
	return fmt.Errorf("%s subscription: %w", name, err)
}
