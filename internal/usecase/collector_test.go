package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"CandleKeep/internal/domain/models"
)

// fakeStream fails the first read session and serves ticks on the next one.
type fakeStream struct {
	mu         sync.Mutex
	sessions   [][]*models.Tick // ticks delivered per Read call
	failAfter  []bool           // whether the session ends with an error
	readCalls  int
	reconnects int
	connected  bool
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeStream) Subscribe(context.Context) error { return nil }

func (s *fakeStream) Read(context.Context) (<-chan *models.Tick, <-chan error) {
	s.mu.Lock()
	i := s.readCalls
	s.readCalls++
	s.mu.Unlock()

	ticks := make(chan *models.Tick, 16)
	errs := make(chan error, 1)
	go func() {
		if i < len(s.sessions) {
			for _, t := range s.sessions[i] {
				ticks <- t
			}
			if i < len(s.failAfter) && s.failAfter[i] {
				errs <- errDown
				close(ticks)
				close(errs)
				return
			}
		}
		// healthy sessions stay open
		select {}
	}()
	return ticks, errs
}

func (s *fakeStream) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	s.connected = true
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

type fakePublisher struct {
	mu     sync.Mutex
	ticks  []*models.Tick
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *fakePublisher) PublishBatch(_ context.Context, ticks []*models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, ticks...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ticks)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestCollectorResumesAfterStreamError(t *testing.T) {
	tick := func(sym string, price float64) *models.Tick {
		return &models.Tick{Symbol: sym, Price: price, Volume: 1, Timestamp: time.Now().Unix()}
	}
	stream := &fakeStream{
		sessions:  [][]*models.Tick{{}, {tick("BTCUSDT", 101), tick("ETHUSDT", 3000)}},
		failAfter: []bool{true, false},
	}
	pub := &fakePublisher{}
	metrics := newFakeMetrics()
	proc := NewTickProcessor(pub, metrics)
	c := NewTickCollector(stream, proc, metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Ticks from the session opened after the reconnect must flow through.
	waitFor(t, 2*time.Second, func() bool { return pub.count() == 2 })

	stream.mu.Lock()
	reconnects, readCalls := stream.reconnects, stream.readCalls
	stream.mu.Unlock()
	if reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", reconnects)
	}
	if readCalls != 2 {
		t.Fatalf("read calls = %d, want 2", readCalls)
	}

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestCollectorShutdownStopsResume(t *testing.T) {
	stream := &fakeStream{
		sessions:  [][]*models.Tick{{}},
		failAfter: []bool{true},
	}
	pub := &fakePublisher{}
	metrics := newFakeMetrics()
	c := NewTickCollector(stream, NewTickProcessor(pub, metrics), metrics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.reconnects >= 1
	})

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	cancel()

	stream.mu.Lock()
	after := stream.reconnects
	stream.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	stream.mu.Lock()
	final := stream.reconnects
	stream.mu.Unlock()
	if final > after+1 {
		t.Fatalf("reconnect loop kept running after shutdown: %d -> %d", after, final)
	}
}
