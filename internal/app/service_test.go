package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	stopCh   chan struct{}
	once     sync.Once
	mu       *sync.Mutex
	events   *[]string
}

func newFakeService(name string, startErr error, mu *sync.Mutex, events *[]string) *fakeService {
	return &fakeService{name: name, startErr: startErr, stopCh: make(chan struct{}), mu: mu, events: events}
}

func (s *fakeService) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.events = append(*s.events, event)
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopCh
	return nil
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.once.Do(func() {
		s.record("stop:" + s.name)
		close(s.stopCh)
	})
	return nil
}

func TestRunnerStopsAllOnServiceError(t *testing.T) {
	var mu sync.Mutex
	var events []string
	boom := errors.New("boom")
	api := newFakeService("api", nil, &mu, &events)
	broken := newFakeService("worker", boom, &mu, &events)

	runner := NewRunner(api, broken).OnShutdown(func() error {
		mu.Lock()
		events = append(events, "close:db")
		mu.Unlock()
		return nil
	}, func() error {
		mu.Lock()
		events = append(events, "close:cache")
		mu.Unlock()
		return nil
	})

	err := runner.Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"stop:worker", "stop:api", "close:cache", "close:db"}
	if len(events) != len(want) {
		t.Fatalf("events want %v got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events want %v got %v", want, events)
		}
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	var mu sync.Mutex
	var events []string
	api := newFakeService("api", nil, &mu, &events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(api).Run(ctx, time.Second, nil) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled run should return nil, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("runner did not stop after cancel")
	}
}

func TestRunnerRejectsEmpty(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

func TestHTTPServiceServesAndStops(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	svc := NewHTTPService(config.ServerConfig{Host: "127.0.0.1", Port: "0"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	svc.listener = listener

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("start should return nil after shutdown, got %v", err)
	}
}

func TestNormalizeOptions(t *testing.T) {
	opts := normalizeOptions(Options{Config: &config.Config{Server: config.ServerConfig{ShutdownTimeoutSeconds: 3}}})
	if opts.Mode != ModeAll {
		t.Fatalf("default mode want all got %s", opts.Mode)
	}
	if opts.ShutdownTimeout != 3*time.Second {
		t.Fatalf("shutdown timeout want 3s got %s", opts.ShutdownTimeout)
	}
	if opts.Logger == nil {
		t.Fatalf("logger should default to the global logger")
	}
	if !ValidMode(ModeAccrual) || ValidMode("batch") {
		t.Fatalf("unexpected mode validation")
	}
}
