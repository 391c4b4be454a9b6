// Package revocation es la autoridad sobre "¿este token sigue siendo confiable?".
//
// Un token con firma válida y sin expirar sólo deja de ser confiable si existe
// un registro de revocación. El backend primario es Redis (visibilidad
// inmediata entre instancias); la implementación en memoria existe para
// despliegues single-instance y tests. La selección es por configuración al
// arranque: nunca una colección estática process-wide.
package revocation

import (
	"context"
	"errors"
	"time"
)

// Reason clasifica por qué se revocó una credencial.
type Reason string

const (
	ReasonLogout             Reason = "logout"
	ReasonAdminAction        Reason = "admin_action"
	ReasonSecurityIncident   Reason = "security_incident"
	ReasonPasswordChange     Reason = "password_change"
	ReasonAccountSuspension  Reason = "account_suspension"
	ReasonRotation           Reason = "rotation"
	ReasonSuspiciousActivity Reason = "suspicious_activity"
	ReasonUserRequest        Reason = "user_request"
	ReasonMaintenance        Reason = "maintenance"
)

// Valid reporta si el motivo es uno de los conocidos.
func (r Reason) Valid() bool {
	switch r {
	case ReasonLogout, ReasonAdminAction, ReasonSecurityIncident,
		ReasonPasswordChange, ReasonAccountSuspension, ReasonRotation,
		ReasonSuspiciousActivity, ReasonUserRequest, ReasonMaintenance:
		return true
	}
	return false
}

// Record es el registro persistido de una revocación.
// ExpiresAt es la expiración lógica: la vida restante del token al momento de
// revocarlo. Un registro jamás debe borrarse antes de esa fecha, o un token
// revocado-pero-no-expirado volvería a ser válido.
type Record struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id"`
	Reason    Reason    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	// ErrStoreUnavailable indica que el backend no respondió. El tratamiento
	// (fail-closed/fail-open) es decisión explícita de configuración: ver Guard.
	ErrStoreUnavailable = errors.New("revocation: store unavailable")

	// ErrInvalidReason indica un motivo fuera de la taxonomía.
	ErrInvalidReason = errors.New("revocation: invalid reason")
)

// Store define las operaciones del registro de revocación.
//
// Todas las operaciones toman context: el timeout lo pone el caller, nunca el
// store. La validez de un refresh token es AUSENCIA de registro de revocación;
// el store no es autoridad sobre emisión (ver DESIGN.md).
type Store interface {
	// Revoke registra la revocación de un JTI y lo agrega al índice del
	// usuario. Ambas escrituras son atómicas respecto del backend.
	Revoke(ctx context.Context, jti, userID string, reason Reason, ttl time.Duration) error

	// IsRevoked reporta si el JTI tiene registro de revocación vigente.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeAllForUser marca un instante: todo token del usuario emitido antes
	// de esa marca queda inválido. Tokens emitidos después siguen válidos
	// (esto revoca existentes, no prohíbe emisión futura). Extiende además el
	// TTL de los JTIs ya registrados del usuario.
	RevokeAllForUser(ctx context.Context, userID string, reason Reason, ttl time.Duration) error

	// RevokedAllAt retorna la marca de RevokeAllForUser si existe.
	RevokedAllAt(ctx context.Context, userID string) (time.Time, bool, error)

	// RevokeRefreshToken registra la revocación de un refresh token. Se
	// persiste por hash criptográfico, nunca por valor crudo.
	RevokeRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) error

	// IsRefreshTokenRevoked reporta si el refresh token fue revocado.
	IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error)

	// BurnRefreshToken revoca el refresh token sólo si no tenía registro
	// previo, de forma atómica respecto del backend. Retorna alreadyBurned:
	// de dos llamadas concurrentes con el mismo token, exactamente una lo
	// quema. Es la base del single-use en el flujo de refresh.
	BurnRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) (alreadyBurned bool, err error)

	// ListForUser lista los registros vigentes del usuario (superficie admin).
	ListForUser(ctx context.Context, userID string) ([]Record, error)

	// Cleanup barre registros cuya expiración lógica ya pasó. Es un
	// mantenimiento aparte del TTL nativo del backend (pueden divergir si
	// cambió la configuración). Seguro de correr concurrente con el tráfico;
	// jamás borra un registro con expiración lógica futura. Retorna cuántos
	// registros eliminó.
	Cleanup(ctx context.Context) (int, error)

	// Ping verifica la disponibilidad del backend.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}
