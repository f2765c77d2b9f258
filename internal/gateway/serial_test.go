package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/appctl/internal/call"
	"github.com/danmuck/appctl/internal/testutil/testlog"
)

// countingController records how many calls overlap.
type countingController struct {
	fakeController
	active  atomic.Int32
	maxSeen atomic.Int32
	hold    time.Duration
	release chan struct{}
}

func (c *countingController) PrimaryDBIsUp(ctx context.Context) (bool, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if c.release != nil {
		<-c.release
	}
	time.Sleep(c.hold)
	return true, nil
}

func TestConcurrentRequestsShareOneCallSlot(t *testing.T) {
	testlog.Start(t)
	ctl := &countingController{hold: 5 * time.Millisecond}
	s := newTestServer(t, ctl)

	var wg sync.WaitGroup
	codes := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/controller/db", nil))
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		if code != http.StatusOK {
			t.Fatalf("unexpected status %d", code)
		}
	}
	if got := ctl.maxSeen.Load(); got != 1 {
		t.Fatalf("expected one controller call at a time, saw %d", got)
	}
}

func TestQueuedRequestTimesOutWhileSlotHeld(t *testing.T) {
	testlog.Start(t)
	ctl := &countingController{release: make(chan struct{})}
	logger := testlog.Logger(t)
	s := New(Config{Addr: "127.0.0.1:0", RequestTimeout: 50 * time.Millisecond, Logger: &logger}, ctl)

	first := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/controller/db", nil)
		s.Handler().ServeHTTP(rec, req)
		first <- rec.Code
	}()
	deadline := time.Now().Add(2 * time.Second)
	for ctl.active.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first call never started")
		}
		time.Sleep(time.Millisecond)
	}

	rec, body := get(t, s, "/controller/db")
	if rec.Code != http.StatusGatewayTimeout || body["kind"] != string(call.KindTimeout) {
		t.Fatalf("queued request: %d %v", rec.Code, body)
	}

	close(ctl.release)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
}

func TestSerialControllerReportsCancellation(t *testing.T) {
	testlog.Start(t)
	sc := newSerialController(&fakeController{})
	if err := sc.acquire(context.Background(), "x"); err != nil {
		t.Fatalf("acquire free slot: %v", err)
	}
	defer sc.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sc.PrimaryDBIsUp(ctx)
	if kind, ok := call.KindOf(err); !ok || kind != call.KindCanceled {
		t.Fatalf("expected canceled failure, got %v", err)
	}
}
