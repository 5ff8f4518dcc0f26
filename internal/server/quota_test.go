package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	return s
}

func TestSealer(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		sealed, err := s.Seal([]byte("7:1700000000"))
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		got, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if string(got) != "7:1700000000" {
			t.Errorf("Open() = %q", got)
		}
	})

	t.Run("nonces differ", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		a, _ := s.Seal([]byte("x"))
		b, _ := s.Seal([]byte("x"))
		if a == b {
			t.Error("expected distinct sealed values")
		}
	})

	t.Run("rejects tampering", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		sealed, _ := s.Seal([]byte("1:1"))
		b := []byte(sealed)
		mid := len(b) / 2
		if b[mid] == 'A' {
			b[mid] = 'B'
		} else {
			b[mid] = 'A'
		}
		if _, err := s.Open(string(b)); !errors.Is(err, ErrInvalidSeal) {
			t.Errorf("expected ErrInvalidSeal, got %v", err)
		}
		if _, err := s.Open("not base64 !"); !errors.Is(err, ErrInvalidSeal) {
			t.Errorf("expected ErrInvalidSeal for garbage, got %v", err)
		}
	})

	t.Run("rejects other keys", func(t *testing.T) {
		t.Parallel()

		other, err := NewRandomSealer()
		if err != nil {
			t.Fatalf("NewRandomSealer() error = %v", err)
		}
		sealed, _ := other.Seal([]byte("1:1"))
		if _, err := testSealer(t).Open(sealed); !errors.Is(err, ErrInvalidSeal) {
			t.Errorf("expected ErrInvalidSeal, got %v", err)
		}
	})

	t.Run("short secret", func(t *testing.T) {
		t.Parallel()

		if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrShortSecret) {
			t.Errorf("expected ErrShortSecret, got %v", err)
		}
	})
}

// sealedCookie builds a dailyCount cookie holding count until expires.
func sealedCookie(t *testing.T, s *Sealer, count int, expires time.Time) *http.Cookie {
	t.Helper()
	v, err := s.Seal([]byte(strconv.Itoa(count) + ":" + strconv.FormatInt(expires.Unix(), 10)))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return &http.Cookie{Name: DailyCookie, Value: v}
}

func TestCookieQuota(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	t.Run("missing cookie counts zero", func(t *testing.T) {
		t.Parallel()

		q := CookieQuota(testSealer(t), clock)(httptest.NewRequest(http.MethodGet, "/", nil))
		if n, _ := q.Count(ctx); n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}
	})

	t.Run("reads a valid cookie", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(sealedCookie(t, s, 42, now.Add(time.Hour)))

		if n, _ := CookieQuota(s, clock)(r).Count(ctx); n != 42 {
			t.Errorf("Count() = %d, want 42", n)
		}
	})

	t.Run("expired cookie counts zero", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(sealedCookie(t, s, 99, now.Add(-time.Second)))

		if n, _ := CookieQuota(s, clock)(r).Count(ctx); n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}
	})

	t.Run("forged plain cookie counts zero", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DailyCookie, Value: "0"})

		if n, _ := CookieQuota(testSealer(t), clock)(r).Count(ctx); n != 0 {
			t.Errorf("Count() = %d, want 0", n)
		}
	})

	t.Run("commit writes a sealed cookie", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		q := CookieQuota(s, clock)(httptest.NewRequest(http.MethodGet, "/", nil))
		if ok, err := q.Reserve(ctx, 10); err != nil || !ok {
			t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
		}
		if ok, err := q.Reserve(ctx, 10); err != nil || !ok {
			t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
		}

		w := httptest.NewRecorder()
		q.Commit(w)
		q.Commit(w)

		cookies := w.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != DailyCookie || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
			t.Errorf("unexpected cookie attributes: %+v", c)
		}
		if c.MaxAge != 24*60*60 {
			t.Errorf("MaxAge = %d, want 86400", c.MaxAge)
		}

		next := httptest.NewRequest(http.MethodGet, "/", nil)
		next.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		if n, _ := CookieQuota(s, clock)(next).Count(ctx); n != 2 {
			t.Errorf("Count() after round trip = %d, want 2", n)
		}
	})

	t.Run("reserve stops at the limit", func(t *testing.T) {
		t.Parallel()

		s := testSealer(t)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(sealedCookie(t, s, 9, now.Add(time.Hour)))
		q := CookieQuota(s, clock)(r)

		if ok, err := q.Reserve(ctx, 10); err != nil || !ok {
			t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
		}
		if ok, err := q.Reserve(ctx, 10); err != nil || ok {
			t.Fatalf("Reserve() at limit = %v, %v; want false, nil", ok, err)
		}
		if n, _ := q.Count(ctx); n != 10 {
			t.Errorf("Count() = %d, want 10", n)
		}
	})

	t.Run("no cookie without increments", func(t *testing.T) {
		t.Parallel()

		q := CookieQuota(testSealer(t), clock)(httptest.NewRequest(http.MethodGet, "/", nil))
		w := httptest.NewRecorder()
		q.Commit(w)
		if len(w.Result().Cookies()) != 0 {
			t.Error("expected no cookie")
		}
	})
}

func TestRedisSessionQuota(t *testing.T) {
	t.Parallel()

	addr := os.Getenv("CONTACTSCAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CONTACTSCAN_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	fn := RedisSessionQuota(rdb)
	q := fn(httptest.NewRequest(http.MethodGet, "/", nil))
	if ok, err := q.Reserve(ctx, 10); err != nil || !ok {
		t.Fatalf("Reserve() = %v, %v; want true, nil", ok, err)
	}

	w := httptest.NewRecorder()
	q.Commit(w)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie {
		t.Fatalf("expected a session cookie, got %+v", cookies)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookies[0].Value})
	q2 := fn(next)
	if n, err := q2.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v, want 1", n, err)
	}

	w2 := httptest.NewRecorder()
	q2.Commit(w2)
	if len(w2.Result().Cookies()) != 0 {
		t.Error("expected the existing session to be kept")
	}
	rdb.Del(ctx, "contactscan:ratelimit:day:"+cookies[0].Value)
}
