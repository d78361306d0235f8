package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"liquiditySniper/internal/detect"
	"liquiditySniper/internal/loop"
	"liquiditySniper/internal/model"
)

type stubDetector struct {
	name    string
	outcome detect.Outcome
	gate    chan struct{}
}

func (d stubDetector) Name() string { return d.name }

func (d stubDetector) Detect(ctx context.Context, _ *model.PendingTransaction, _ *detect.Context) detect.Outcome {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
		}
	}
	return d.outcome
}

type stubSession struct {
	paused   bool
	epoch    uint64
	dets     []detect.Detector
	folded   int
	feeSeen  int
	accepted chan *model.Verdict
}

func newSession(dets ...detect.Detector) *stubSession {
	return &stubSession{dets: dets, accepted: make(chan *model.Verdict, 4)}
}

func (s *stubSession) Listening() bool { return !s.paused }
func (s *stubSession) Pause() { s.paused = true }
func (s *stubSession) Epoch() uint64 { return s.epoch }
func (s *stubSession) Detectors() []detect.Detector { return s.dets }
func (s *stubSession) Snapshot() *detect.Context { return &detect.Context{} }
func (s *stubSession) ObserveFeeStyle(*model.PendingTransaction) { s.feeSeen++ }
func (s *stubSession) Accept(v *model.Verdict) { s.accepted <- v }

func (s *stubSession) Fold(epoch uint64, obs *detect.Observation) *model.Verdict {
	if obs == nil || epoch != s.epoch {
		return nil
	}
	s.folded++
	return obs.TrailingStop
}

type stubFetcher struct {
	calls atomic.Int32
	tx    *model.PendingTransaction
	err   error
}

func (f *stubFetcher) PendingTransaction(_ context.Context, hash common.Hash) (*model.PendingTransaction, error) {
	f.calls.Add(1)
	if f.err != nil || f.tx == nil {
		return nil, f.err
	}
	tx := *f.tx
	tx.Hash = hash
	return &tx, nil
}

type stubChecker struct{ err error }

func (c stubChecker) Check(context.Context) error { return c.err }

func valid(kind model.TriggerKind) detect.Outcome {
	return detect.Outcome{Verdict: &model.Verdict{Valid: true, Kind: kind}}
}

func startLoop(t *testing.T) (*loop.Loop, chan error) {
	t.Helper()
	l := loop.New(context.Background(), nil)
	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	t.Cleanup(func() {
		l.Stop(nil)
		<-done
	})
	return l, done
}

// onLoop runs fn on l and waits for it.
func onLoop(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	ran := make(chan struct{})
	require.True(t, l.Post(func() {
		fn()
		close(ran)
	}))
	<-ran
}

func TestFirstValidVerdictInDetectorOrderWins(t *testing.T) {
	l, _ := startLoop(t)
	obs := &detect.Observation{}
	session := newSession(
		stubDetector{name: "quiet", outcome: detect.Outcome{Observation: obs}},
		stubDetector{name: "rug", outcome: valid(model.TriggerRugPull)},
		stubDetector{name: "gain", outcome: valid(model.TriggerGain)},
	)
	fetcher := &stubFetcher{tx: &model.PendingTransaction{}}
	d := New(l, session, fetcher, stubChecker{}, Options{Workers: 2}, nil, nil)

	d.OnPending(common.HexToHash("0x01"))

	select {
	case v := <-session.accepted:
		require.Equal(t, model.TriggerRugPull, v.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict accepted")
	}
	var paused bool
	var folded, feeSeen int
	onLoop(t, l, func() {
		paused, folded, feeSeen = session.paused, session.folded, session.feeSeen
	})
	require.True(t, paused)
	require.Equal(t, 1, folded)
	require.Equal(t, 1, feeSeen)
}

func TestPausedSessionSkipsFetch(t *testing.T) {
	l, _ := startLoop(t)
	session := newSession(stubDetector{outcome: valid(model.TriggerListing)})
	session.paused = true
	fetcher := &stubFetcher{tx: &model.PendingTransaction{}}
	d := New(l, session, fetcher, stubChecker{}, Options{}, nil, nil)

	for i := 0; i < 5; i++ {
		d.OnPending(common.BigToHash(common.Big1))
	}
	// The check still runs for paused sessions; give those calls time to land.
	time.Sleep(50 * time.Millisecond)
	onLoop(t, l, func() {})
	require.Zero(t, fetcher.calls.Load())
	require.Empty(t, session.accepted)
}

func TestCoordinationLossStopsLoop(t *testing.T) {
	l, done := startLoop(t)
	session := newSession(stubDetector{outcome: valid(model.TriggerListing)})
	checker := stubChecker{err: fmt.Errorf("%w: node b already won", model.ErrCoordinationLoss)}
	fetcher := &stubFetcher{tx: &model.PendingTransaction{}}
	d := New(l, session, fetcher, checker, Options{}, nil, nil)

	d.OnPending(common.HexToHash("0x01"))

	select {
	case err := <-done:
		require.ErrorIs(t, err, model.ErrCoordinationLoss)
		done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	require.Zero(t, fetcher.calls.Load())
}

func TestFetchErrorsAreDropped(t *testing.T) {
	l, _ := startLoop(t)
	session := newSession(stubDetector{outcome: valid(model.TriggerListing)})
	fetcher := &stubFetcher{err: errors.New("not found")}
	d := New(l, session, fetcher, stubChecker{}, Options{FetchRate: 1000, FetchBurst: 10}, nil, nil)

	d.OnPending(common.HexToHash("0x01"))
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, session.accepted)
}

func TestStaleEpochDiscarded(t *testing.T) {
	l, _ := startLoop(t)
	gate := make(chan struct{})
	session := newSession(stubDetector{outcome: valid(model.TriggerListing), gate: gate})
	d := New(l, session, &stubFetcher{}, stubChecker{}, Options{}, nil, nil)

	onLoop(t, l, func() {
		d.Dispatch(&model.PendingTransaction{Hash: common.HexToHash("0x01")})
		session.epoch++
	})
	close(gate)
	time.Sleep(50 * time.Millisecond)
	onLoop(t, l, func() {})
	require.Empty(t, session.accepted)
}

func TestConcurrentEvaluationsAcceptOnce(t *testing.T) {
	l, _ := startLoop(t)
	gate := make(chan struct{})
	session := newSession(stubDetector{outcome: valid(model.TriggerListing), gate: gate})
	d := New(l, session, &stubFetcher{}, stubChecker{}, Options{}, nil, nil)

	onLoop(t, l, func() {
		for i := 0; i < 8; i++ {
			d.Dispatch(&model.PendingTransaction{Hash: common.BigToHash(common.Big1)})
		}
	})
	close(gate)
	select {
	case <-session.accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict accepted")
	}
	time.Sleep(50 * time.Millisecond)
	onLoop(t, l, func() {})
	require.Empty(t, session.accepted)
}

func TestFoldedStopAcceptedWithoutDetectorVerdict(t *testing.T) {
	l, _ := startLoop(t)
	stop := &model.Verdict{Valid: true, Kind: model.TriggerTrailingStop}
	session := newSession(stubDetector{name: "gain", outcome: detect.Outcome{Observation: &detect.Observation{TrailingStop: stop}}})
	d := New(l, session, &stubFetcher{}, stubChecker{}, Options{}, nil, nil)

	onLoop(t, l, func() {
		d.Dispatch(&model.PendingTransaction{Hash: common.HexToHash("0x01")})
	})
	select {
	case v := <-session.accepted:
		require.Same(t, stop, v)
	case <-time.After(2 * time.Second):
		t.Fatal("folded stop not accepted")
	}
}

func TestDetectorVerdictBeatsFoldedStop(t *testing.T) {
	l, _ := startLoop(t)
	stop := &model.Verdict{Valid: true, Kind: model.TriggerTrailingStop}
	session := newSession(
		stubDetector{name: "gain", outcome: detect.Outcome{Observation: &detect.Observation{TrailingStop: stop}}},
		stubDetector{name: "rug", outcome: valid(model.TriggerRugPull)},
	)
	d := New(l, session, &stubFetcher{}, stubChecker{}, Options{}, nil, nil)

	onLoop(t, l, func() {
		d.Dispatch(&model.PendingTransaction{Hash: common.HexToHash("0x01")})
	})
	select {
	case v := <-session.accepted:
		require.Equal(t, model.TriggerRugPull, v.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict accepted")
	}
}
