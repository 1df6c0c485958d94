package main

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	metricsprom "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func newRouter(engine *authcore.Engine, users authcore.CredentialStore, logger zerolog.Logger, trusted []netip.Prefix) http.Handler {
	h := &handlers{engine: engine, users: users, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(trustProxies(trusted))
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientContext)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(middleware.Guard(engine)).Get("/me", h.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine))
		r.With(middleware.RequireOwnerOrAdmin(func(r *http.Request) string {
			return chi.URLParam(r, "userID")
		})).Get("/users/{userID}", h.getUser)
		r.With(middleware.RequireAdmin()).Get("/admin/ping", h.adminPing)
	})

	r.Method(http.MethodGet, "/metrics", metricsprom.NewCollector(engine).Handler())

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// trustProxies applies chi's RealIP only when the TCP peer is one of the
// trusted proxies. Direct callers keep their socket address, so a forged
// X-Forwarded-For cannot move them into a fresh per-IP login budget.
func trustProxies(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := chimw.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrustedProxy(r.RemoteAddr, trusted) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrustedProxy(remoteAddr string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddrPort(remoteAddr)
	ip := addr.Addr()
	if err != nil {
		if ip, err = netip.ParseAddr(remoteAddr); err != nil {
			return false
		}
	}
	ip = ip.Unmap()
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
