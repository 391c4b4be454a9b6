// Package token emite y valida pares access/refresh.
//
// El access token es un JWT HS256 firmado con el secreto gestionado
// "jwt-signing-key"; el refresh token es un string opaco de alta entropía sin
// claims embebidas, cuya validez es puramente una consulta al registro de
// revocación.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/trustcore/internal/validation"
)

// Identity es el contrato de entrada: lo que un caller debe proveer para
// emitir un token. Se valida antes de acuñar cualquier credencial.
type Identity struct {
	Subject       string
	Email         string
	FirstName     string
	LastName      string
	Roles         []string
	EmailVerified bool
	AccountStatus string

	// ExtraPermissions se une a los permisos derivados de roles.
	ExtraPermissions []string

	// Custom son claims libres clave/valor que viajan anidadas bajo "custom".
	Custom map[string]any
}

// Errores de validación del contrato de entrada.
var (
	ErrMissingSubject = errors.New("token: missing subject")
	ErrInvalidEmail   = errors.New("token: invalid email")
	ErrMissingName    = errors.New("token: missing first/last name")
)

// Validate rechaza entradas malformadas antes de emitir.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.Subject) == "" {
		return ErrMissingSubject
	}
	if !validation.ValidEmail(id.Email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(id.FirstName) == "" || strings.TrimSpace(id.LastName) == "" {
		return ErrMissingName
	}
	return nil
}

// DisplayName arma el nombre visible.
func (id Identity) DisplayName() string {
	return strings.TrimSpace(id.FirstName + " " + id.LastName)
}

// Claims es el payload inmutable de un access token ya validado. Para cambiar
// cualquier cosa acá se emite un token nuevo.
type Claims struct {
	Subject       string
	Email         string
	Name          string
	FirstName     string
	LastName      string
	JTI           string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Roles         []string
	Permissions   []string
	EmailVerified bool
	AccountStatus string
	Custom        map[string]any
}

// HasPermission reporta si el permiso está en el set resuelto del token.
func (c *Claims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Pair es el resultado de una emisión: access firmado + refresh opaco.
// Ambos artefactos son independientes; lo único que comparten es el instante
// de emisión.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // siempre "Bearer"
}
