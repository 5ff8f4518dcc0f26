package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/contactscan/internal/cache"
	"github.com/nao1215/contactscan/internal/crawler"
	"github.com/nao1215/contactscan/internal/governor"
	"github.com/nao1215/contactscan/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCrawler returns a fixed record and counts calls.
type fakeCrawler struct {
	record  model.ContactRecord
	calls   atomic.Int32
	release chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeCrawler) Crawl(_ context.Context, rawURL string) (*crawler.Result, error) {
	f.calls.Add(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.release != nil {
		<-f.release
	}

	rec := f.record
	rec.Website = rawURL
	return &crawler.Result{
		Record: rec,
		Stats:  crawler.Stats{PagesFetched: 2, StopReason: crawler.StopEmailFound},
	}, nil
}

// fakeAdmitter counts admissions and returns err.
type fakeAdmitter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeAdmitter) Admit(context.Context, governor.Caller) error {
	f.calls.Add(1)
	return f.err
}

// slowCrawler finds an email after delay, or returns an empty partial
// result when ctx ends first.
type slowCrawler struct {
	delay time.Duration
	calls atomic.Int32
}

func (f *slowCrawler) Crawl(ctx context.Context, rawURL string) (*crawler.Result, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
		return &crawler.Result{
			Record: model.ContactRecord{Website: rawURL, Email: "hello@artist.com"},
			Stats:  crawler.Stats{PagesFetched: 1, StopReason: crawler.StopEmailFound},
		}, nil
	case <-ctx.Done():
		return &crawler.Result{
			Record: model.ContactRecord{Website: rawURL},
			Stats:  crawler.Stats{StopReason: crawler.StopDeadline},
		}, nil
	}
}

// slowQuota adds latency in front of every quota operation.
type slowQuota struct {
	*governor.MemoryQuota
	delay time.Duration
}

func (q slowQuota) Count(ctx context.Context) (int, error) {
	time.Sleep(q.delay)
	return q.MemoryQuota.Count(ctx)
}

func (q slowQuota) Reserve(ctx context.Context, limit int) (bool, error) {
	time.Sleep(q.delay)
	return q.MemoryQuota.Reserve(ctx, limit)
}

type memoryHistory struct {
	mu      sync.Mutex
	lookups []Lookup
}

func (h *memoryHistory) Record(_ context.Context, l Lookup) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lookups = append(h.lookups, l)
	return nil
}

func TestPrimary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile model.Profile
		want    model.ContactRecord
	}{
		{
			name: "all profile fields",
			profile: model.Profile{
				BioText:         "Booking: hello@artist.com | tickets https://tstack.app/artist_tour",
				DeclaredWebsite: "artist.com",
				SocialProfiles: []model.SocialProfile{
					{Service: "spotify", URL: "https://open.spotify.com/artist/1"},
					{Service: "Instagram", URL: "https://www.instagram.com/artist", Username: "artist"},
				},
			},
			want: model.ContactRecord{
				Website:   "https://artist.com",
				Instagram: "https://instagram.com/artist",
				Email:     "hello@artist.com",
				TrackLink: "https://tstack.app/artist_tour",
			},
		},
		{
			name: "instagram url without username",
			profile: model.Profile{
				SocialProfiles: []model.SocialProfile{{Service: "instagram", URL: "https://www.instagram.com/band"}},
			},
			want: model.ContactRecord{Instagram: "https://www.instagram.com/band"},
		},
		{
			name:    "blacklisted website is absent",
			profile: model.Profile{DeclaredWebsite: "https://open.spotify.com/artist/1"},
			want:    model.ContactRecord{},
		},
		{
			name:    "malformed website is absent",
			profile: model.Profile{DeclaredWebsite: "ftp://artist.com"},
			want:    model.ContactRecord{},
		},
		{
			name:    "role account in bio is ignored",
			profile: model.Profile{BioText: "mgmt: team@bigroom.agency"},
			want:    model.ContactRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Primary(tt.profile); got != tt.want {
				t.Errorf("Primary() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("merges profile and website emails", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{record: model.ContactRecord{
			Email:     "b@y.com",
			Instagram: "https://www.instagram.com/other",
			TrackLink: "https://tstack.app/site",
		}}
		e := New(fc, WithGovernor(&fakeAdmitter{}), WithLogger(discardLogger()))

		got, err := e.Resolve(context.Background(), model.Profile{
			BioText:         "write to a@x.com",
			DeclaredWebsite: "https://artist.com",
			SocialProfiles:  []model.SocialProfile{{Service: "instagram", URL: "https://instagram.com/artist"}},
		}, governor.Caller{Key: "ip"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}

		want := model.ContactRecord{
			Website:   "https://artist.com",
			Instagram: "https://instagram.com/artist",
			Email:     "a@x.com; b@y.com",
			TrackLink: "https://tstack.app/site",
		}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
	})

	t.Run("complete profile is not crawled", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		adm := &fakeAdmitter{}
		e := New(fc, WithGovernor(adm), WithLogger(discardLogger()))

		_, err := e.Resolve(context.Background(), model.Profile{
			BioText:         "hi@artist.com https://tstack.app/artist",
			DeclaredWebsite: "artist.com",
			SocialProfiles:  []model.SocialProfile{{Service: "instagram", URL: "https://instagram.com/artist"}},
		}, governor.Caller{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if fc.calls.Load() != 0 || adm.calls.Load() != 0 {
			t.Errorf("crawls = %d, admissions = %d, want 0 and 0", fc.calls.Load(), adm.calls.Load())
		}
	})

	t.Run("no website means no crawl", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		e := New(fc, WithGovernor(&fakeAdmitter{}), WithLogger(discardLogger()))

		got, err := e.Resolve(context.Background(), model.Profile{BioText: "a@x.com"}, governor.Caller{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got.Email != "a@x.com" {
			t.Errorf("Email = %q, want %q", got.Email, "a@x.com")
		}
		if fc.calls.Load() != 0 {
			t.Errorf("crawls = %d, want 0", fc.calls.Load())
		}
	})

	t.Run("cache hit skips governor and crawler", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		adm := &fakeAdmitter{}
		e := New(fc, WithGovernor(adm), WithLogger(discardLogger()))
		profile := model.Profile{DeclaredWebsite: "artist.com"}

		for range 3 {
			if _, err := e.Resolve(context.Background(), profile, governor.Caller{}); err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
		}
		if fc.calls.Load() != 1 {
			t.Errorf("crawls = %d, want 1", fc.calls.Load())
		}
		if adm.calls.Load() != 1 {
			t.Errorf("admissions = %d, want 1", adm.calls.Load())
		}
	})

	t.Run("expired cache entry is crawled again", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}

		fc := &fakeCrawler{}
		e := New(fc,
			WithGovernor(&fakeAdmitter{}),
			WithCache(cache.NewMemory(cache.WithClock(clock))),
			WithLogger(discardLogger()),
		)
		profile := model.Profile{DeclaredWebsite: "artist.com"}

		_, _ = e.Resolve(context.Background(), profile, governor.Caller{})
		mu.Lock()
		now = now.Add(cache.DefaultTTL + time.Second)
		mu.Unlock()
		_, _ = e.Resolve(context.Background(), profile, governor.Caller{})

		if fc.calls.Load() != 2 {
			t.Errorf("crawls = %d, want 2", fc.calls.Load())
		}
	})

	t.Run("rate rejection returns the profile record", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		rateErr := &model.RateExceededError{Window: model.WindowMinute, Limit: 15}
		e := New(fc, WithGovernor(&fakeAdmitter{err: rateErr}), WithLogger(discardLogger()))

		got, err := e.Resolve(context.Background(), model.Profile{
			BioText:         "a@x.com",
			DeclaredWebsite: "artist.com",
		}, governor.Caller{Key: "ip"})

		gotErr, ok := model.IsRateExceeded(err)
		if !ok {
			t.Fatalf("Resolve() error = %v, want rate exceeded", err)
		}
		if gotErr.Window != model.WindowMinute {
			t.Errorf("Window = %q, want %q", gotErr.Window, model.WindowMinute)
		}
		want := model.ContactRecord{Website: "https://artist.com", Email: "a@x.com"}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
		if fc.calls.Load() != 0 {
			t.Errorf("crawls = %d, want 0", fc.calls.Load())
		}
	})

	t.Run("governor failure degrades without error", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		e := New(fc, WithGovernor(&fakeAdmitter{err: errors.New("redis down")}), WithLogger(discardLogger()))

		got, err := e.Resolve(context.Background(), model.Profile{DeclaredWebsite: "artist.com"}, governor.Caller{})
		if err != nil {
			t.Fatalf("Resolve() error = %v, want nil", err)
		}
		if got.Website != "https://artist.com" {
			t.Errorf("Website = %q", got.Website)
		}
		if fc.calls.Load() != 0 {
			t.Errorf("crawls = %d, want 0", fc.calls.Load())
		}
	})

	t.Run("real governor rejects the sixteenth crawl", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{}
		e := New(fc, WithCache(cache.Nop{}), WithLogger(discardLogger()))
		caller := governor.Caller{Key: "198.51.100.1"}
		profile := model.Profile{DeclaredWebsite: "artist.com"}

		for i := range governor.DefaultMinuteLimit {
			if _, err := e.Resolve(context.Background(), profile, caller); err != nil {
				t.Fatalf("call %d: Resolve() error = %v", i+1, err)
			}
		}
		if _, err := e.Resolve(context.Background(), profile, caller); err == nil {
			t.Fatal("16th Resolve() error = nil, want rate exceeded")
		}
	})

	t.Run("concurrent lookups share one crawl", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{release: make(chan struct{})}
		e := New(fc, WithGovernor(&fakeAdmitter{}), WithLogger(discardLogger()))
		profile := model.Profile{DeclaredWebsite: "artist.com"}

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = e.Resolve(context.Background(), profile, governor.Caller{})
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(fc.release)
		wg.Wait()

		if fc.calls.Load() != 1 {
			t.Errorf("crawls = %d, want 1", fc.calls.Load())
		}
	})

	t.Run("history records each lookup", func(t *testing.T) {
		t.Parallel()

		h := &memoryHistory{}
		fc := &fakeCrawler{record: model.ContactRecord{Email: "b@y.com"}}
		e := New(fc, WithGovernor(&fakeAdmitter{}), WithHistory(h), WithLogger(discardLogger()))

		_, _ = e.Resolve(context.Background(), model.Profile{DisplayName: "Nobody"}, governor.Caller{})
		_, _ = e.Resolve(context.Background(), model.Profile{DisplayName: "Artist", DeclaredWebsite: "artist.com"}, governor.Caller{})

		if len(h.lookups) != 2 {
			t.Fatalf("recorded %d lookups, want 2", len(h.lookups))
		}
		if h.lookups[0].Source != SourceProfile {
			t.Errorf("first Source = %q, want %q", h.lookups[0].Source, SourceProfile)
		}
		second := h.lookups[1]
		if second.Source != SourceCrawl || second.PagesFetched != 2 || second.StopReason != string(crawler.StopEmailFound) {
			t.Errorf("second lookup = %+v", second)
		}
		if second.Record.Email != "b@y.com" {
			t.Errorf("second Email = %q", second.Record.Email)
		}
	})
}

func TestResolveBatch(t *testing.T) {
	t.Parallel()

	t.Run("bounded concurrency and ordered results", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCrawler{release: make(chan struct{})}
		e := New(fc, WithGovernor(&fakeAdmitter{}), WithCache(cache.Nop{}), WithLogger(discardLogger()))

		profiles := make([]model.Profile, 12)
		for i := range profiles {
			profiles[i] = model.Profile{
				DisplayName:     string(rune('a' + i)),
				DeclaredWebsite: "site" + string(rune('a'+i)) + ".com",
			}
		}

		go func() {
			time.Sleep(30 * time.Millisecond)
			close(fc.release)
		}()

		results, err := e.ResolveAll(context.Background(), profiles, governor.Caller{}, 0)
		if err != nil {
			t.Fatalf("ResolveAll() error = %v", err)
		}
		if got := fc.maxInFlight.Load(); got > DefaultBatchConcurrency {
			t.Errorf("max concurrent crawls = %d, want <= %d", got, DefaultBatchConcurrency)
		}
		for i, r := range results {
			if r.Index != i || r.Profile.DisplayName != profiles[i].DisplayName {
				t.Errorf("results[%d] = %+v, out of order", i, r)
			}
			if r.Record.Website != "https://"+profiles[i].DeclaredWebsite {
				t.Errorf("results[%d].Website = %q", i, r.Record.Website)
			}
		}
	})

	t.Run("rate rejections are reported per profile", func(t *testing.T) {
		t.Parallel()

		e := New(&fakeCrawler{},
			WithGovernor(&fakeAdmitter{err: &model.RateExceededError{Window: model.WindowDay, Limit: 100}}),
			WithLogger(discardLogger()),
		)
		profiles := []model.Profile{{DeclaredWebsite: "a.com"}, {DeclaredWebsite: "b.com"}}

		var rejected atomic.Int32
		err := e.ResolveBatch(context.Background(), profiles, governor.Caller{}, 2, func(r BatchResult) {
			if _, ok := model.IsRateExceeded(r.Err); ok {
				rejected.Add(1)
			}
		})
		if err != nil {
			t.Fatalf("ResolveBatch() error = %v", err)
		}
		if rejected.Load() != 2 {
			t.Errorf("rejected = %d, want 2", rejected.Load())
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := New(&fakeCrawler{}, WithGovernor(&fakeAdmitter{}), WithLogger(discardLogger()))
		err := e.ResolveBatch(ctx, []model.Profile{{DeclaredWebsite: "a.com"}}, governor.Caller{}, 1, func(BatchResult) {})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ResolveBatch() error = %v, want context.Canceled", err)
		}
	})
}

func TestResolveCanceledCaller(t *testing.T) {
	t.Parallel()

	t.Run("shared crawl outlives the caller and is cached whole", func(t *testing.T) {
		t.Parallel()

		sc := &slowCrawler{delay: 200 * time.Millisecond}
		e := New(sc, WithGovernor(&fakeAdmitter{}), WithLogger(discardLogger()))
		profile := model.Profile{DisplayName: "Artist", DeclaredWebsite: "artist.com"}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		rec, err := e.Resolve(ctx, profile, governor.Caller{Key: "first"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if rec.Email != "" {
			t.Errorf("canceled caller got Email %q before the crawl finished", rec.Email)
		}

		rec, err = e.Resolve(context.Background(), profile, governor.Caller{Key: "second"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if rec.Email != "hello@artist.com" {
			t.Errorf("Email = %q, want hello@artist.com", rec.Email)
		}
		if got := sc.calls.Load(); got != 1 {
			t.Errorf("crawls = %d, want 1", got)
		}

		rec, _ = e.Resolve(context.Background(), profile, governor.Caller{Key: "third"})
		if rec.Email != "hello@artist.com" {
			t.Errorf("cached Email = %q, want hello@artist.com", rec.Email)
		}
		if got := sc.calls.Load(); got != 1 {
			t.Errorf("crawls after cache hit = %d, want 1", got)
		}
	})
}

func TestResolveBatchDailyCap(t *testing.T) {
	t.Parallel()

	quota := slowQuota{
		MemoryQuota: governor.NewMemoryQuota(governor.DefaultDailyLimit-1, nil),
		delay:       5 * time.Millisecond,
	}
	e := New(&fakeCrawler{record: model.ContactRecord{Email: "hello@artist.com"}},
		WithGovernor(governor.New(nil, governor.WithLogger(discardLogger()))),
		WithCache(cache.Nop{}),
		WithLogger(discardLogger()),
	)

	profiles := make([]model.Profile, 5)
	for i := range profiles {
		profiles[i] = model.Profile{DeclaredWebsite: "site" + string(rune('a'+i)) + ".com"}
	}

	results, err := e.ResolveAll(context.Background(), profiles, governor.Caller{Key: "ip", Quota: quota}, 5)
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}

	var admitted, rejected int
	for _, r := range results {
		if rateErr, ok := model.IsRateExceeded(r.Err); ok {
			if rateErr.Window != model.WindowDay {
				t.Errorf("Window = %q, want %q", rateErr.Window, model.WindowDay)
			}
			rejected++
			continue
		}
		admitted++
	}
	if admitted != 1 || rejected != 4 {
		t.Errorf("admitted = %d, rejected = %d; want 1 and 4", admitted, rejected)
	}
	if n, _ := quota.Count(context.Background()); n != governor.DefaultDailyLimit {
		t.Errorf("daily count = %d, want %d", n, governor.DefaultDailyLimit)
	}
}
