package api

import (
	"context"
	"net/http"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type ctxKey struct{}

// identityFrom returns the caller resolved by the identity middleware.
func identityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(ctxKey{}).(model.Identity)
	return id
}

// identity resolves the bearer token. A token that maps to nobody is rejected;
// a missing token leaves the caller anonymous.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var who model.Identity
		if h.Auth != nil {
			id, err := h.Auth.FromRequest(r)
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "invalid or unknown token")
				return
			}
			who = id
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, who)))
	})
}

func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFrom(r.Context()).IsAnonymous() {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one structured line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.String("remote", r.RemoteAddr),
					zap.Duration("took", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
