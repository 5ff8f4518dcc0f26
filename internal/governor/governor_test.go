package governor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/contactscan/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

type brokenQuota struct{}

func (brokenQuota) Count(context.Context) (int, error) { return 0, errors.New("unreadable") }
func (brokenQuota) Reserve(context.Context, int) (bool, error) {
	return false, errors.New("unwritable")
}

func TestAdmitMinuteWindow(t *testing.T) {
	t.Parallel()

	t.Run("16th call within a minute is rejected", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		g := New(NewMemoryWindowStore(), WithClock(clock.Now))
		caller := Caller{Key: "203.0.113.7"}

		for i := range DefaultMinuteLimit {
			if err := g.Admit(context.Background(), caller); err != nil {
				t.Fatalf("call %d: Admit() error = %v", i+1, err)
			}
			clock.Advance(time.Second)
		}

		err := g.Admit(context.Background(), caller)
		rateErr, ok := model.IsRateExceeded(err)
		if !ok {
			t.Fatalf("16th call: Admit() error = %v, want rate exceeded", err)
		}
		if rateErr.Window != model.WindowMinute {
			t.Errorf("Window = %q, want %q", rateErr.Window, model.WindowMinute)
		}
		if rateErr.Limit != DefaultMinuteLimit {
			t.Errorf("Limit = %d, want %d", rateErr.Limit, DefaultMinuteLimit)
		}
		if rateErr.RetryAfter <= 0 || rateErr.RetryAfter > DefaultWindow {
			t.Errorf("RetryAfter = %v, want within (0, %v]", rateErr.RetryAfter, DefaultWindow)
		}
	})

	t.Run("window resets after it elapses", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		g := New(nil, WithClock(clock.Now))
		caller := Caller{Key: "203.0.113.8"}

		for i := 0; i <= DefaultMinuteLimit; i++ {
			_ = g.Admit(context.Background(), caller)
		}
		if _, ok := model.IsRateExceeded(g.Admit(context.Background(), caller)); !ok {
			t.Fatal("expected rejection before the window elapses")
		}

		clock.Advance(DefaultWindow + time.Millisecond)
		if err := g.Admit(context.Background(), caller); err != nil {
			t.Fatalf("Admit() after window error = %v, want nil", err)
		}
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		g := New(nil, WithClock(clock.Now), WithMinuteLimit(1))
		caller := Caller{Key: "client"}

		if err := g.Admit(context.Background(), caller); err != nil {
			t.Fatalf("first Admit() error = %v", err)
		}
		clock.Advance(DefaultWindow)
		if _, ok := model.IsRateExceeded(g.Admit(context.Background(), caller)); !ok {
			t.Fatal("call exactly one window later should still count against the window")
		}
	})

	t.Run("clients are independent", func(t *testing.T) {
		t.Parallel()

		g := New(nil, WithMinuteLimit(1))
		if err := g.Admit(context.Background(), Caller{Key: "a"}); err != nil {
			t.Fatalf("Admit(a) error = %v", err)
		}
		if err := g.Admit(context.Background(), Caller{Key: "b"}); err != nil {
			t.Fatalf("Admit(b) error = %v", err)
		}
	})

	t.Run("empty key shares the unknown bucket", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryWindowStore()
		g := New(store, WithMinuteLimit(1))
		_ = g.Admit(context.Background(), Caller{})
		_ = g.Admit(context.Background(), Caller{Key: "  "})

		c, ok := store.Snapshot(unknownClient)
		if !ok {
			t.Fatal("expected a window for the unknown client")
		}
		if c.Count != 2 {
			t.Errorf("Count = %d, want 2", c.Count)
		}
	})

	t.Run("store failure is not a rate rejection", func(t *testing.T) {
		t.Parallel()

		g := New(failingStore{})
		err := g.Admit(context.Background(), Caller{Key: "x"})
		if err == nil {
			t.Fatal("Admit() error = nil, want store error")
		}
		if _, ok := model.IsRateExceeded(err); ok {
			t.Fatalf("store failure reported as rate exceeded: %v", err)
		}
	})
}

func TestAdmitDailyCap(t *testing.T) {
	t.Parallel()

	t.Run("rejects when the session reached the cap", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		quota := NewMemoryQuota(DefaultDailyLimit, clock.Now)
		g := New(nil, WithClock(clock.Now))

		err := g.Admit(context.Background(), Caller{Key: "ip", Quota: quota})
		rateErr, ok := model.IsRateExceeded(err)
		if !ok {
			t.Fatalf("Admit() error = %v, want rate exceeded", err)
		}
		if rateErr.Window != model.WindowDay {
			t.Errorf("Window = %q, want %q", rateErr.Window, model.WindowDay)
		}

		n, _ := quota.Count(context.Background())
		if n != DefaultDailyLimit {
			t.Errorf("rejected call changed the counter: got %d, want %d", n, DefaultDailyLimit)
		}
	})

	t.Run("increments on admission", func(t *testing.T) {
		t.Parallel()

		quota := NewMemoryQuota(DefaultDailyLimit-1, nil)
		g := New(nil)
		caller := Caller{Key: "ip", Quota: quota}

		if err := g.Admit(context.Background(), caller); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		n, _ := quota.Count(context.Background())
		if n != DefaultDailyLimit {
			t.Fatalf("Count() = %d, want %d", n, DefaultDailyLimit)
		}
		if _, ok := model.IsRateExceeded(g.Admit(context.Background(), caller)); !ok {
			t.Fatal("expected rejection once the cap is reached")
		}
	})

	t.Run("minute rejection does not consume the daily quota", func(t *testing.T) {
		t.Parallel()

		quota := NewMemoryQuota(0, nil)
		g := New(nil, WithMinuteLimit(2))
		caller := Caller{Key: "ip", Quota: quota}

		for range 5 {
			_ = g.Admit(context.Background(), caller)
		}
		n, _ := quota.Count(context.Background())
		if n != 2 {
			t.Errorf("Count() = %d, want 2", n)
		}
	})

	t.Run("concurrent admissions of one session stop at the cap", func(t *testing.T) {
		t.Parallel()

		quota := NewMemoryQuota(DefaultDailyLimit-1, nil)
		g := New(nil, WithMinuteLimit(100))
		caller := Caller{Key: "ip", Quota: quota}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := g.Admit(context.Background(), caller); err == nil {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if admitted != 1 {
			t.Errorf("admitted = %d, want 1", admitted)
		}
		if n, _ := quota.Count(context.Background()); n != DefaultDailyLimit {
			t.Errorf("Count() = %d, want %d", n, DefaultDailyLimit)
		}
	})

	t.Run("quota failure degrades to admitted", func(t *testing.T) {
		t.Parallel()

		g := New(nil)
		if err := g.Admit(context.Background(), Caller{Key: "ip", Quota: brokenQuota{}}); err != nil {
			t.Fatalf("Admit() error = %v, want nil", err)
		}
	})
}

func TestMemoryQuotaExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	quota := NewMemoryQuota(0, clock.Now)
	ctx := context.Background()

	for range 3 {
		if ok, err := quota.Reserve(ctx, DefaultDailyLimit); err != nil || !ok {
			t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
		}
	}

	clock.Advance(DailyLifetime)
	if n, _ := quota.Count(ctx); n != 3 {
		t.Fatalf("Count() at lifetime = %d, want 3", n)
	}

	clock.Advance(time.Second)
	if n, _ := quota.Count(ctx); n != 0 {
		t.Fatalf("Count() after lifetime = %d, want 0", n)
	}

	if ok, err := quota.Reserve(ctx, DefaultDailyLimit); err != nil || !ok {
		t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
	}
	if n, _ := quota.Count(ctx); n != 1 {
		t.Fatalf("Count() after restart = %d, want 1", n)
	}
}

func TestMemoryWindowStoreCleanup(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := NewMemoryWindowStore(WithIdleTTL(time.Minute), WithCleanupEvery(0))
	ctx := context.Background()

	_, _, _ = store.Hit(ctx, "old", clock.Now(), DefaultWindow)
	clock.Advance(90 * time.Second)
	_, _, _ = store.Hit(ctx, "new", clock.Now(), DefaultWindow)

	store.Cleanup(clock.Now())

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if _, ok := store.Snapshot("new"); !ok {
		t.Error("recent window was removed")
	}
}

func TestMemoryWindowStoreConcurrent(t *testing.T) {
	t.Parallel()

	store := NewMemoryWindowStore()
	now := time.Now()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = store.Hit(context.Background(), "shared", now, DefaultWindow)
		}()
	}
	wg.Wait()

	c, _ := store.Snapshot("shared")
	if c.Count != 50 {
		t.Fatalf("Count = %d, want 50", c.Count)
	}
}

func TestRedisBackends(t *testing.T) {
	t.Parallel()

	addr := os.Getenv("CONTACTSCAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CONTACTSCAN_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	suffix := time.Now().Format("150405.000000000")

	t.Run("window store", func(t *testing.T) {
		store := NewRedisWindowStore(rdb, WithWindowPrefix("contactscan:test:minute:"+suffix))
		g := New(store, WithMinuteLimit(2))
		caller := Caller{Key: "ip"}

		for i := range 2 {
			if err := g.Admit(ctx, caller); err != nil {
				t.Fatalf("call %d: Admit() error = %v", i+1, err)
			}
		}
		if _, ok := model.IsRateExceeded(g.Admit(ctx, caller)); !ok {
			t.Fatal("expected rejection on the third call")
		}
	})

	t.Run("session quota stops at the limit", func(t *testing.T) {
		quota := NewRedisQuota(rdb, "test-limit-"+suffix)
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			reserved int
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := quota.Reserve(ctx, 3)
				if err != nil {
					t.Errorf("Reserve() error = %v", err)
					return
				}
				if ok {
					mu.Lock()
					reserved++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if reserved != 3 {
			t.Errorf("reserved = %d, want 3", reserved)
		}
		if n, err := quota.Count(ctx); err != nil || n != 3 {
			t.Errorf("Count() = %d, %v; want 3, nil", n, err)
		}
	})

	t.Run("session quota", func(t *testing.T) {
		quota := NewRedisQuota(rdb, "test-"+suffix)
		if n, err := quota.Count(ctx); err != nil || n != 0 {
			t.Fatalf("Count() = %d, %v; want 0, nil", n, err)
		}
		if ok, err := quota.Reserve(ctx, DefaultDailyLimit); err != nil || !ok {
			t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
		}
		if n, err := quota.Count(ctx); err != nil || n != 1 {
			t.Fatalf("Count() = %d, %v; want 1, nil", n, err)
		}
	})
}
