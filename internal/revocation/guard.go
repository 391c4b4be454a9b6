package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// FailMode define qué hacer cuando el backend de revocación no responde.
// Es una decisión explícita de configuración, nunca un accidente del manejo
// de errores: fail-open durante una caída anula el propósito de la revocación.
type FailMode string

const (
	// FailClosed: backend caído => el token se trata como revocado.
	FailClosed FailMode = "closed"

	// FailOpen: backend caído => el token se trata como no revocado.
	// Sólo para entornos donde la disponibilidad pesa más que la revocación.
	FailOpen FailMode = "open"
)

// ParseFailMode valida el valor de configuración.
func ParseFailMode(s string) (FailMode, error) {
	switch FailMode(s) {
	case FailClosed, FailOpen:
		return FailMode(s), nil
	}
	return "", fmt.Errorf("revocation: fail mode must be %q or %q, got %q", FailClosed, FailOpen, s)
}

// Guard envuelve un Store y aplica la política configurada a los LOOKUPS
// cuando el backend falla. Las escrituras (Revoke*) siempre propagan el error:
// una revocación que no se pudo registrar jamás debe parecer exitosa.
type Guard struct {
	inner Store
	mode  FailMode
}

// NewGuard construye el guard. El mode viene validado por ParseFailMode.
func NewGuard(inner Store, mode FailMode) *Guard {
	return &Guard{inner: inner, mode: mode}
}

// Mode expone la política configurada.
func (g *Guard) Mode() FailMode { return g.mode }

func (g *Guard) resolveLookup(ctx context.Context, op string, err error) (bool, error) {
	if !errors.Is(err, ErrStoreUnavailable) {
		return false, err
	}
	metrics.RevocationStoreFailures.WithLabelValues(string(g.mode)).Inc()
	log := logger.From(ctx).With(
		logger.Component("revocation.guard"),
		logger.Op(op),
		logger.Err(err),
	)
	if g.mode == FailClosed {
		log.Warn("revocation store unavailable, failing closed")
		return true, nil
	}
	log.Error("revocation store unavailable, failing OPEN: revoked tokens may be accepted")
	return false, nil
}

func (g *Guard) Revoke(ctx context.Context, jti, userID string, reason Reason, ttl time.Duration) error {
	return g.inner.Revoke(ctx, jti, userID, reason, ttl)
}

func (g *Guard) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := g.inner.IsRevoked(ctx, jti)
	if err != nil {
		return g.resolveLookup(ctx, "IsRevoked", err)
	}
	return revoked, nil
}

func (g *Guard) RevokeAllForUser(ctx context.Context, userID string, reason Reason, ttl time.Duration) error {
	return g.inner.RevokeAllForUser(ctx, userID, reason, ttl)
}

func (g *Guard) RevokedAllAt(ctx context.Context, userID string) (time.Time, bool, error) {
	ts, found, err := g.inner.RevokedAllAt(ctx, userID)
	if err != nil {
		treatRevoked, gerr := g.resolveLookup(ctx, "RevokedAllAt", err)
		if gerr != nil {
			return time.Time{}, false, gerr
		}
		if treatRevoked {
			// fail-closed: marca "ahora" => todo token ya emitido queda fuera
			return time.Now().UTC(), true, nil
		}
		return time.Time{}, false, nil
	}
	return ts, found, nil
}

func (g *Guard) RevokeRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) error {
	return g.inner.RevokeRefreshToken(ctx, token, userID, reason, ttl)
}

// BurnRefreshToken es escritura: el error propaga siempre, sin política.
func (g *Guard) BurnRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) (bool, error) {
	return g.inner.BurnRefreshToken(ctx, token, userID, reason, ttl)
}

func (g *Guard) IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := g.inner.IsRefreshTokenRevoked(ctx, token)
	if err != nil {
		return g.resolveLookup(ctx, "IsRefreshTokenRevoked", err)
	}
	return revoked, nil
}

func (g *Guard) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	return g.inner.ListForUser(ctx, userID)
}

func (g *Guard) Cleanup(ctx context.Context) (int, error) {
	return g.inner.Cleanup(ctx)
}

func (g *Guard) Ping(ctx context.Context) error { return g.inner.Ping(ctx) }

func (g *Guard) Close() error { return g.inner.Close() }
