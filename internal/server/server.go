package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/governor"
	"github.com/nao1215/contactscan/internal/model"
)

const (
	// DefaultMaxBodyBytes caps POST bodies.
	DefaultMaxBodyBytes = 1 << 20

	// DefaultMaxBatch caps the profiles accepted by one batch request.
	DefaultMaxBatch = 50

	// DefaultMaxInFlight caps concurrent lookup requests.
	DefaultMaxInFlight = 64

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Resolver resolves profiles. *engine.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, profile model.Profile, caller governor.Caller) (model.ContactRecord, error)
	ResolveAll(ctx context.Context, profiles []model.Profile, caller governor.Caller, concurrency int) ([]engine.BatchResult, error)
}

// Server exposes a Resolver over HTTP.
type Server struct {
	resolver     Resolver
	keyFn        KeyFunc
	quotaFn      QuotaFunc
	logger       *slog.Logger
	maxBodyBytes int64
	maxBatch     int
	maxInFlight  int64
	concurrency  int
}

// Option configures a Server.
type Option func(*Server)

// WithKeyFunc sets how the client key of a request is derived.
func WithKeyFunc(fn KeyFunc) Option {
	return func(s *Server) {
		s.keyFn = fn
	}
}

// WithQuota sets where daily counters are kept. The default is a sealed
// cookie with a random per-process key.
func WithQuota(fn QuotaFunc) Option {
	return func(s *Server) {
		s.quotaFn = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBatch caps the profiles accepted by one batch request.
func WithMaxBatch(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithMaxInFlight caps concurrent lookup requests. Zero disables the cap.
func WithMaxInFlight(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.maxInFlight = int64(n)
		}
	}
}

// WithBatchConcurrency sets how many profiles of a batch resolve at once.
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Server around r.
func New(r Resolver, opts ...Option) (*Server, error) {
	s := &Server{
		resolver:     r,
		maxBodyBytes: DefaultMaxBodyBytes,
		maxBatch:     DefaultMaxBatch,
		maxInFlight:  DefaultMaxInFlight,
		concurrency:  engine.DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keyFn == nil {
		s.keyFn = DefaultKeyFunc("", true)
	}
	if s.quotaFn == nil {
		sealer, err := NewRandomSealer()
		if err != nil {
			return nil, err
		}
		s.logger.Warn("no cookie secret configured, daily counters reset on restart")
		s.quotaFn = CookieQuota(sealer, time.Now)
	}
	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	lookups := limitInFlight(s.maxInFlight)

	mux := http.NewServeMux()
	mux.Handle("GET /api/contacts", lookups(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /api/contacts", lookups(http.HandlerFunc(s.handleProfile)))
	mux.Handle("POST /api/contacts/batch", lookups(http.HandlerFunc(s.handleBatch)))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return logRequests(s.logger)(mux)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown did not complete", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// contactResponse is the body of a successful lookup.
type contactResponse struct {
	Name string `json:"name,omitempty"`
	model.ContactRecord
}

// errorResponse is the body of a failed request.
type errorResponse struct {
	Error  string       `json:"error"`
	Window model.Window `json:"window,omitempty"`
}

// batchItem is one entry of a batch response.
type batchItem struct {
	Name   string              `json:"name,omitempty"`
	Record model.ContactRecord `json:"record"`
	Error  string              `json:"error,omitempty"`
	Window model.Window        `json:"window,omitempty"`
}

type batchRequest struct {
	Profiles []model.Profile `json:"profiles"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery resolves a profile given as query parameters.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profile := model.Profile{
		DisplayName:     strings.TrimSpace(q.Get("name")),
		BioText:         q.Get("bio"),
		DeclaredWebsite: strings.TrimSpace(q.Get("website")),
	}
	if sp, ok := model.InstagramProfile(q.Get("instagram")); ok {
		profile.SocialProfiles = append(profile.SocialProfiles, sp)
	}
	s.resolve(w, r, profile)
}

// handleProfile resolves a profile given as a JSON body.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.Profile
	if err := s.decode(w, r, &profile); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.resolve(w, r, profile)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, profile model.Profile) {
	if profile.IsBlank() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "profile has no name, bio, website or social profile"})
		return
	}

	quota := s.quotaFn(r)
	caller := governor.Caller{Key: s.keyFn(r), Quota: quota}

	record, err := s.resolver.Resolve(r.Context(), profile, caller)
	quota.Commit(w)
	if rateErr, ok := model.IsRateExceeded(err); ok {
		writeRateExceeded(w, rateErr)
		return
	}

	writeJSON(w, http.StatusOK, contactResponse{Name: profile.DisplayName, ContactRecord: record})
}

// handleBatch resolves up to maxBatch profiles. Rate rejections are
// reported per profile; the response status stays 200.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(req.Profiles) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no profiles"})
		return
	}
	if len(req.Profiles) > s.maxBatch {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: "too many profiles, limit is " + strconv.Itoa(s.maxBatch),
		})
		return
	}

	quota := s.quotaFn(r)
	caller := governor.Caller{Key: s.keyFn(r), Quota: quota}

	results, err := s.resolver.ResolveAll(r.Context(), req.Profiles, caller, s.concurrency)
	quota.Commit(w)
	if err != nil {
		s.logger.Warn("batch interrupted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "batch interrupted"})
		return
	}

	resp := batchResponse{Results: make([]batchItem, len(results))}
	for i, res := range results {
		item := batchItem{Name: res.Profile.DisplayName, Record: res.Record}
		if rateErr, ok := model.IsRateExceeded(res.Err); ok {
			item.Error = rateErr.Error()
			item.Window = rateErr.Window
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeRateExceeded(w http.ResponseWriter, err *model.RateExceededError) {
	if err.RetryAfter > 0 {
		secs := int((err.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error(), Window: err.Window})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
