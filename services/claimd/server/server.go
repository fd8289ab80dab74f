package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimdrop/observability"
	"claimdrop/observability/otel"
	"claimdrop/services/claimd/node"
	"claimdrop/services/claimd/store"
)

const (
	serviceModule   = "claimd"
	maxRequestBytes = 1 << 20
)

// Config wires the server to a running node.
type Config struct {
	Node      *node.Node
	Store     *store.Store
	Hub       *Hub
	Auth      AuthConfig
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server exposes the airdrop ledger over HTTP.
type Server struct {
	node    *node.Node
	store   *store.Store
	hub     *Hub
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
}

// New constructs the server. Without a hub the event stream only carries
// events emitted through the one created here.
func New(cfg Config) (*Server, error) {
	if cfg.Node == nil {
		return nil, errors.New("claimd: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		node:    cfg.Node,
		store:   cfg.Store,
		hub:     hub,
		auth:    NewAuthenticator(cfg.Auth),
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
	}, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otel.WrapHandler(s.routes(), serviceModule)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)

		api.Get("/instance", s.getInstance)
		api.Get("/claims/{beneficiary}", s.getClaim)
		api.Get("/proofs/{beneficiary}", s.getProof)
		api.Get("/nonces/{beneficiary}/{nonce}", s.getNonce)
		api.Get("/settlements", s.listSettlements)
		api.Get("/stakes/{account}", s.getStakes)
		api.Get("/events", s.handleEventsWS)
		api.Post("/claims/quote", s.quoteClaim)
		api.Post("/claims/digest", s.claimDigest)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Post("/claims", s.submitClaim)
			protected.Post("/nonces/cancel", s.cancelNonce)
			protected.Post("/stakes/claim", s.claimStake)
			protected.Post("/oracle/price", s.publishPrice)
			protected.Route("/admin", func(admin chi.Router) {
				admin.Post("/pause", s.pause)
				admin.Post("/unpause", s.unpause)
				admin.Post("/multiplier", s.setMultiplier)
				admin.Post("/end", s.endAirdrop)
				admin.Post("/owner", s.transferOwnership)
				admin.Post("/partner-overflow", s.updatePartnerOverflow)
				admin.Post("/withdraw", s.withdrawProtocol)
			})
		})
	})
	return r
}

func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack hands the connection to the websocket upgrade.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("claimd: response writer cannot be hijacked")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := observability.HTTP().Begin()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		duration := time.Since(start)
		done(route, r.Method, recorder.status)
		s.logger.Debug("request served",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"status", recorder.status,
			"duration_ms", duration.Milliseconds())
	})
}
