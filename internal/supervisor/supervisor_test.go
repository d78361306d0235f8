package supervisor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

type fakeConn struct {
	mu       sync.Mutex
	dials    int
	failures int
	sessions int
	release  chan struct{}
}

func (f *fakeConn) Redial(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeConn) SubscribePendingHashes(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.sessions++
	session := f.sessions
	f.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		if session == 1 {
			ch <- common.HexToHash("0x01")
			ch <- common.HexToHash("0x02")
			<-f.release
			return errors.New("websocket closed")
		}
		<-quit
		return nil
	}), nil
}

func (f *fakeConn) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	session := f.sessions
	f.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		if session == 2 {
			ch <- &types.Header{Number: big.NewInt(7)}
		}
		<-quit
		return nil
	}), nil
}

func TestSupervisorReconnects(t *testing.T) {
	conn := &fakeConn{failures: 1, release: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		hashes []common.Hash
		blocks []uint64
	)
	sup := New(conn, Handlers{
		OnPending: func(h common.Hash) {
			mu.Lock()
			defer mu.Unlock()
			hashes = append(hashes, h)
			if len(hashes) == 2 {
				close(conn.release)
			}
		},
		OnBlock: func(n uint64) {
			mu.Lock()
			blocks = append(blocks, n)
			mu.Unlock()
			cancel()
		},
	}, 10*time.Millisecond, nil, nil)

	if err := sup.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := sup.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hashes) != 2 || hashes[1] != common.HexToHash("0x02") {
		t.Fatalf("unexpected hashes: %v", hashes)
	}
	if len(blocks) != 1 || blocks[0] != 7 {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.dials != 3 {
		t.Fatalf("expected 3 dials (1 failed, 1 initial, 1 reconnect), got %d", conn.dials)
	}
}

func TestConnectStopsOnCancel(t *testing.T) {
	conn := &fakeConn{failures: 1000}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sup := New(conn, Handlers{}, 5*time.Millisecond, nil, nil)
	if err := sup.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestWithRetryBounded(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, nil, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 calls and an error, got %d %v", calls, err)
	}
}
