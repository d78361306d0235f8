// Package coord holds the record cooperating instances share to agree on a
// single winner. The first instance to send its buy claims the record; every
// other instance stops as soon as it sees a foreign winner or an exit
// request.
package coord

import (
	"context"
	"fmt"

	"liquiditySniper/internal/model"
)

// Store is a coordination record with compare-and-swap winner claims.
type Store interface {
	// Init creates the record if it does not exist yet.
	Init(ctx context.Context) error
	Load(ctx context.Context) (model.CoordinationRecord, error)
	// ClaimWinner records node as winner unless another node already won.
	// It reports whether node is the winner afterwards.
	ClaimWinner(ctx context.Context, node string) (bool, error)
	// RequestExit asks every instance to stop.
	RequestExit(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	RunID     string
	Dir       string
	RedisAddr string
	RedisPass string
	RedisDB   int
	PgDSN     string
}

// Open creates the configured store and initializes its record.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "", BackendFile:
		store = NewFileStore(FilePath(opts.Dir, opts.RunID))
	case BackendRedis:
		store, err = NewRedisStore(ctx, opts.RedisAddr, opts.RedisPass, opts.RedisDB, opts.RunID)
	case BackendPostgres:
		store, err = NewPostgresStore(ctx, opts.PgDSN, opts.RunID)
	case BackendMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown coordination backend %q", model.ErrConfig, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init coordination record: %w", err)
	}
	return store, nil
}

// Gate checks the record on behalf of one node.
type Gate struct {
	store Store
	node  string
}

func NewGate(store Store, node string) *Gate {
	return &Gate{store: store, node: node}
}

// Node returns the node id the gate acts for.
func (g *Gate) Node() string {
	return g.node
}

// Check returns an error wrapping model.ErrCoordinationLoss when another
// node has won or an exit was requested.
func (g *Gate) Check(ctx context.Context) error {
	record, err := g.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load coordination record: %w", err)
	}
	if record.Exit {
		return fmt.Errorf("%w: exit requested", model.ErrCoordinationLoss)
	}
	if record.OtherWinner(g.node) {
		return fmt.Errorf("%w: node %s already won", model.ErrCoordinationLoss, *record.WinnerNode)
	}
	return nil
}

// Claim records this node as winner. Losing the race is reported as
// model.ErrCoordinationLoss.
func (g *Gate) Claim(ctx context.Context) error {
	won, err := g.store.ClaimWinner(ctx, g.node)
	if err != nil {
		return fmt.Errorf("claim winner: %w", err)
	}
	if !won {
		return fmt.Errorf("%w: another node claimed first", model.ErrCoordinationLoss)
	}
	return nil
}

// RequestExit sets the exit flag for every node.
func (g *Gate) RequestExit(ctx context.Context) error {
	return g.store.RequestExit(ctx)
}
