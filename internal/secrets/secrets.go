// Package secrets gestiona el ciclo de vida de material criptográfico:
// claves de firma, API keys y seeds TOTP. Los secretos son append-only: rotar
// crea una versión nueva activa y degrada la anterior; la historia se retiene
// hasta un límite configurable y después se poda.
//
// Invariante: exactamente una versión activa por nombre de secreto.
package secrets

import (
	"context"
	"errors"
	"time"
)

// Kind clasifica el secreto y determina cómo se genera un valor nuevo.
type Kind string

const (
	KindSigningKey Kind = "signing-key" // 64 bytes aleatorios, base64url
	KindAPIKey     Kind = "api-key"     // 32 bytes aleatorios, base64url
	KindTOTPSeed   Kind = "totp-seed"   // 20 bytes aleatorios, base32 (RFC 3548)
)

// Spec declara un secreto gestionado: su clase, cada cuánto rota y el
// algoritmo al que está atado (para el chequeo de fortaleza), si aplica.
type Spec struct {
	Name        string        `yaml:"name"`
	Kind        Kind          `yaml:"kind"`
	RotateEvery time.Duration `yaml:"rotate_every"`
	Alg         string        `yaml:"alg"` // ej "HS256"; "" si no aplica
}

// Version es una versión concreta de un secreto. Value viaja cifrado en
// reposo dentro del store y en claro sólo dentro del Manager.
type Version struct {
	ID        string
	Name      string
	Value     string
	Number    int
	CreatedAt time.Time
	ExpiresAt time.Time // cero = sin expiración programada
	Active    bool
	CreatedBy string
}

// VersionInfo es la vista sin valor, para la superficie admin.
type VersionInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Active    bool      `json:"active"`
	CreatedBy string    `json:"created_by"`
}

var (
	// ErrNotFound indica que el secreto no tiene versión activa.
	ErrNotFound = errors.New("secrets: not found")

	// ErrUnknownSecret indica un nombre fuera de los specs configurados.
	ErrUnknownSecret = errors.New("secrets: unknown secret name")

	// ErrWeakValue indica que el valor no pasó el chequeo de fortaleza.
	ErrWeakValue = errors.New("secrets: value fails strength check")
)

// Store persiste versiones de secretos.
type Store interface {
	// GetActive retorna la versión activa. ErrNotFound si no hay.
	GetActive(ctx context.Context, name string) (*Version, error)

	// History retorna todas las versiones, más reciente primero.
	History(ctx context.Context, name string) ([]Version, error)

	// Append inserta v como nueva versión activa y degrada la anterior, en
	// una sola transacción. Asigna Number = max+1 y lo escribe en v.
	Append(ctx context.Context, v *Version) error

	// Prune elimina versiones inactivas dejando como máximo keep versiones en
	// total. La activa nunca se toca. Retorna cuántas eliminó.
	Prune(ctx context.Context, name string, keep int) (int, error)

	// Close libera recursos.
	Close() error
}
