package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/contactscan/internal/governor"
)

const (
	// DailyCookie carries the sealed daily lookup counter.
	DailyCookie = "dailyCount"

	// SessionCookie carries the session ID when counters live in Redis.
	SessionCookie = "contactscan_session"
)

// RequestQuota is the daily quota of the session behind one request.
// Commit runs once, before the response is written, so the quota can hand
// its state back to the client.
type RequestQuota interface {
	governor.DailyQuota
	Commit(w http.ResponseWriter)
}

// QuotaFunc returns the daily quota for r.
type QuotaFunc func(r *http.Request) RequestQuota

// CookieQuota keeps the daily counter in a sealed cookie. A missing,
// expired or tampered cookie counts as zero lookups.
func CookieQuota(sealer *Sealer, now func() time.Time) QuotaFunc {
	if now == nil {
		now = time.Now
	}
	return func(r *http.Request) RequestQuota {
		q := &cookieQuota{sealer: sealer, now: now}
		if c, err := r.Cookie(DailyCookie); err == nil {
			q.used = q.decode(c.Value)
		}
		return q
	}
}

type cookieQuota struct {
	sealer *Sealer
	now    func() time.Time

	mu    sync.Mutex
	used  int
	dirty bool
}

// decode returns the count sealed in value, or 0.
func (q *cookieQuota) decode(value string) int {
	plain, err := q.sealer.Open(value)
	if err != nil {
		return 0
	}
	countStr, expiresStr, ok := strings.Cut(string(plain), ":")
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return 0
	}
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || q.now().Unix() >= expires {
		return 0
	}
	return count
}

func (q *cookieQuota) Count(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used, nil
}

func (q *cookieQuota) Reserve(_ context.Context, limit int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= limit {
		return false, nil
	}
	q.used++
	q.dirty = true
	return true, nil
}

func (q *cookieQuota) Commit(w http.ResponseWriter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.dirty {
		return
	}

	expires := q.now().Add(governor.DailyLifetime)
	value, err := q.sealer.Seal([]byte(strconv.Itoa(q.used) + ":" + strconv.FormatInt(expires.Unix(), 10)))
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     DailyCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(governor.DailyLifetime / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	q.dirty = false
}

// RedisSessionQuota keeps daily counters in Redis, keyed by a random
// session ID stored in SessionCookie.
func RedisSessionQuota(rdb redis.Cmdable) QuotaFunc {
	return func(r *http.Request) RequestQuota {
		q := &sessionQuota{}
		if c, err := r.Cookie(SessionCookie); err == nil && validSessionID(c.Value) {
			q.id = c.Value
		} else {
			q.id = newSessionID()
			q.issue = true
		}
		q.RedisQuota = governor.NewRedisQuota(rdb, q.id)
		return q
	}
}

type sessionQuota struct {
	*governor.RedisQuota
	id    string
	issue bool
}

func (q *sessionQuota) Commit(w http.ResponseWriter) {
	if !q.issue {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    q.id,
		Path:     "/",
		MaxAge:   int(governor.DailyLifetime / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	q.issue = false
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func validSessionID(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
