package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	sectoken "github.com/dropDatabas3/trustcore/internal/security/token"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// withRequestID genera o propaga un Request ID único por request.
// Si el cliente envía X-Request-ID, lo usa. Si no, genera uno nuevo.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			var b [16]byte
			_, _ = rand.Read(b[:])
			rid = hex.EncodeToString(b[:])
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captura el status code y bytes escritos de la respuesta.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.status = http.StatusOK
		s.wroteHeader = true
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// withLogging registra cada request con el logger singleton y deja un logger
// scoped (request_id, method, path) en el contexto para los handlers.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rid := w.Header().Get("X-Request-ID")
		if rid == "" {
			if v, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
				rid = v
			}
		}

		reqLog := logger.L().With(
			logger.RequestID(rid),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		ctx := logger.ToContext(r.Context(), reqLog)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		reqLog.Info("request completed",
			logger.Status(rec.status),
			logger.Int("bytes", rec.bytes),
			logger.Duration(time.Since(start)),
		)
	})
}

// requireAPIKey exige X-Admin-API-Key con comparación de tiempo constante.
// Sin key configurada la superficie admin queda cerrada (nunca abierta por
// omisión).
func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusForbidden, "admin_disabled", "admin API key no configurada")
				return
			}
			got := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if got == "" || !sectoken.ConstantTimeEquals(got, key) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "API key inválida")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
