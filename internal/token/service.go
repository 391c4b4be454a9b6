package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/trustcore/internal/authz"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/revocation"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

// ErrInvalidToken es el ÚNICO error que cruza el trust boundary por fallas de
// validación. Firma mala, algoritmo equivocado, expirado o revocado: el caller
// ve siempre lo mismo (evita oráculos); la causa concreta va a logs y métricas.
var ErrInvalidToken = errors.New("token: invalid")

// signingAlg es el algoritmo pineado. Un token cuyo header declare otra cosa
// se rechaza, nunca se acepta con confianza degradada.
const signingAlg = "HS256"

const refreshTokenBytes = 64

// KeySource provee el secreto de firma activo y el inmediato anterior
// (ventana de gracia post-rotación, sólo para verificar).
type KeySource interface {
	GetSecret(ctx context.Context, name string) (string, error)
	GetPrevious(ctx context.Context, name string) (string, error)
}

// RevocationStore es la porción del registro de revocación que el servicio
// de tokens consulta en cada validación.
type RevocationStore interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokedAllAt(ctx context.Context, userID string) (time.Time, bool, error)
	BurnRefreshToken(ctx context.Context, token, userID string, reason revocation.Reason, ttl time.Duration) (bool, error)
}

// Config del servicio de tokens. Issuer y Audience son obligatorios (se
// valida en config.Validate(), fatal al arranque).
type Config struct {
	Issuer            string
	Audience          string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SigningSecretName string
	Leeway            time.Duration
}

func (c *Config) defaults() {
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.SigningSecretName == "" {
		c.SigningSecretName = "jwt-signing-key"
	}
	if c.Leeway <= 0 {
		c.Leeway = 30 * time.Second
	}
}

// Service emite y valida tokens. Thread-safe; sin estado mutable propio (la
// consistencia entre instancias vive en el registro de revocación).
type Service struct {
	cfg      Config
	resolver *authz.Resolver
	keys     KeySource
	rev      RevocationStore
}

// NewService construye el servicio.
func NewService(cfg Config, resolver *authz.Resolver, keys KeySource, rev RevocationStore) *Service {
	cfg.defaults()
	return &Service{cfg: cfg, resolver: resolver, keys: keys, rev: rev}
}

// IssuePair valida la identidad, resuelve permisos y emite el par
// access/refresh. Claims inmutables: cambiar algo requiere emitir de nuevo.
func (s *Service) IssuePair(ctx context.Context, id Identity) (*Pair, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	perms := s.resolver.Merge(id.Roles, id.ExtraPermissions)
	jti := uuid.NewString()
	now := time.Now().UTC()
	exp := now.Add(s.cfg.AccessTTL)

	secret, err := s.keys.GetSecret(ctx, s.cfg.SigningSecretName)
	if err != nil {
		return nil, fmt.Errorf("token: signing secret: %w", err)
	}

	claims := jwtv5.MapClaims{
		"iss":            s.cfg.Issuer,
		"sub":            id.Subject,
		"aud":            s.cfg.Audience,
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"exp":            exp.Unix(),
		"jti":            jti,
		"user_id":        id.Subject,
		"email":          id.Email,
		"name":           id.DisplayName(),
		"given_name":     id.FirstName,
		"family_name":    id.LastName,
		"email_verified": id.EmailVerified,
		"account_status": id.AccountStatus,
		"roles":          id.Roles,
		"permissions":    perms, // claim repetido, nunca string delimitado
	}
	if len(id.Custom) > 0 {
		claims["custom"] = id.Custom
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	access, err := tk.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("token: sign: %w", err)
	}

	refresh, err := s.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	metrics.TokensIssued.Inc()
	logger.From(ctx).Info("token pair issued",
		logger.Component("token"),
		logger.UserID(id.Subject),
		logger.JTI(jti),
		logger.Count(len(perms)),
	)

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		TokenType:    "Bearer",
	}, nil
}

// NewRefreshToken genera un refresh token opaco de alta entropía. No embebe
// claims; su validez es pura ausencia de registro de revocación.
func (s *Service) NewRefreshToken() (string, error) {
	return tokens.GenerateOpaqueToken(refreshTokenBytes)
}

// Validate verifica firma, algoritmo, issuer/audience, ventana temporal y
// revocación. Cualquier falla colapsa a ErrInvalidToken.
func (s *Service) Validate(ctx context.Context, raw string) (*Claims, error) {
	return s.validate(ctx, raw, false)
}

// ClaimsIgnoringExpiry valida todo MENOS la expiración. Existe únicamente
// para el flujo de refresh: extraer identidad de un access token expirado
// pero por lo demás legítimo. Firma y algoritmo se exigen igual.
func (s *Service) ClaimsIgnoringExpiry(ctx context.Context, raw string) (*Claims, error) {
	return s.validate(ctx, raw, true)
}

func (s *Service) validate(ctx context.Context, raw string, skipExpiry bool) (*Claims, error) {
	mc, err := s.parseVerified(ctx, raw)
	if err != nil {
		return nil, s.invalid(ctx, causeOf(err))
	}

	if iss, _ := mc["iss"].(string); iss != s.cfg.Issuer {
		return nil, s.invalid(ctx, "bad_issuer")
	}
	if !audienceMatches(mc["aud"], s.cfg.Audience) {
		return nil, s.invalid(ctx, "bad_audience")
	}

	now := time.Now()
	if !skipExpiry {
		expf, ok := mc["exp"].(float64)
		if !ok {
			return nil, s.invalid(ctx, "missing_exp")
		}
		if time.Unix(int64(expf), 0).Before(now.Add(-s.cfg.Leeway)) {
			return nil, s.invalid(ctx, "expired")
		}
	}
	if nbff, ok := mc["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(s.cfg.Leeway)) {
			return nil, s.invalid(ctx, "not_yet_valid")
		}
	}

	claims := claimsFromMap(mc)
	if claims.JTI == "" {
		return nil, s.invalid(ctx, "missing_jti")
	}

	// La revocación es la única vía por la que un token bien firmado y
	// no expirado deja de ser confiable.
	revoked, err := s.rev.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, s.invalid(ctx, "store_error")
	}
	if revoked {
		return nil, s.invalid(ctx, "revoked")
	}

	if ts, found, err := s.rev.RevokedAllAt(ctx, claims.Subject); err != nil {
		return nil, s.invalid(ctx, "store_error")
	} else if found && claims.IssuedAt.Before(ts.Truncate(time.Second)) {
		// emitido antes de la marca: fuera. Tokens emitidos después siguen
		// válidos (revoca existentes, no prohíbe emisión futura). La marca se
		// trunca a segundos porque iat tiene resolución de segundos.
		return nil, s.invalid(ctx, "user_revoked")
	}

	return claims, nil
}

// Refresh rota un par: extrae identidad del access token expirado, quema el
// refresh entregado (single-use, motivo rotation) y emite un par nuevo con
// JTI fresco. Un refresh ya quemado o revocado antes se rechaza.
func (s *Service) Refresh(ctx context.Context, expiredAccess, refreshToken string) (*Pair, error) {
	claims, err := s.ClaimsIgnoringExpiry(ctx, expiredAccess)
	if err != nil {
		return nil, err
	}

	// un solo uso, atómico: de dos refresh concurrentes con el mismo token
	// exactamente uno lo quema; el otro ve alreadyBurned y se rechaza
	alreadyBurned, err := s.rev.BurnRefreshToken(ctx, refreshToken, claims.Subject, revocation.ReasonRotation, s.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("token: burn refresh token: %w", err)
	}
	if alreadyBurned {
		return nil, s.invalid(ctx, "refresh_revoked")
	}

	id := Identity{
		Subject:          claims.Subject,
		Email:            claims.Email,
		FirstName:        claims.FirstName,
		LastName:         claims.LastName,
		Roles:            claims.Roles,
		EmailVerified:    claims.EmailVerified,
		AccountStatus:    claims.AccountStatus,
		ExtraPermissions: claims.Permissions,
		Custom:           claims.Custom,
	}
	return s.IssuePair(ctx, id)
}

// parseVerified verifica firma y algoritmo contra el secreto activo y, si la
// firma no cierra, contra el secreto inmediato anterior (ventana de gracia
// post-rotación). La validación temporal es manual, aparte.
func (s *Service) parseVerified(ctx context.Context, raw string) (jwtv5.MapClaims, error) {
	active, err := s.keys.GetSecret(ctx, s.cfg.SigningSecretName)
	if err != nil {
		return nil, fmt.Errorf("signing secret: %w", err)
	}

	mc, err := parseWithSecret(raw, active)
	if err == nil {
		return mc, nil
	}
	if !errors.Is(err, jwtv5.ErrTokenSignatureInvalid) {
		return nil, err
	}

	prev, perr := s.keys.GetPrevious(ctx, s.cfg.SigningSecretName)
	if perr != nil {
		return nil, err // sin versión anterior: vale el error original
	}
	return parseWithSecret(raw, prev)
}

func parseWithSecret(raw, secret string) (jwtv5.MapClaims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		// doble pin: WithValidMethods ya filtra, esto rechaza cualquier
		// header alg distinto del configurado (incluido "none")
		if t.Method.Alg() != signingAlg {
			return nil, fmt.Errorf("unexpected alg %q", t.Method.Alg())
		}
		return []byte(secret), nil
	}

	tok, err := jwtv5.Parse(raw, keyfunc,
		jwtv5.WithValidMethods([]string{signingAlg}),
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}
	return mc, nil
}

// invalid registra la causa interna y retorna el error uniforme.
func (s *Service) invalid(ctx context.Context, cause string) error {
	metrics.TokenValidationFailures.WithLabelValues(cause).Inc()
	logger.From(ctx).Debug("token rejected",
		logger.Component("token"),
		logger.Op("Validate"),
		logger.Cause(cause),
	)
	return ErrInvalidToken
}

// causeOf clasifica errores de parseo para métricas/logs internos.
func causeOf(err error) string {
	switch {
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwtv5.ErrTokenUnverifiable):
		return "bad_algorithm"
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return "malformed"
	default:
		return "parse_error"
	}
}

func audienceMatches(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return v == expected
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}

// claimsFromMap materializa el payload verificado en Claims tipadas.
func claimsFromMap(mc jwtv5.MapClaims) *Claims {
	c := &Claims{
		Subject:       stringClaim(mc, "sub"),
		Email:         stringClaim(mc, "email"),
		Name:          stringClaim(mc, "name"),
		FirstName:     stringClaim(mc, "given_name"),
		LastName:      stringClaim(mc, "family_name"),
		JTI:           stringClaim(mc, "jti"),
		AccountStatus: stringClaim(mc, "account_status"),
		Roles:         stringSliceClaim(mc, "roles"),
		Permissions:   stringSliceClaim(mc, "permissions"),
	}
	if v, ok := mc["email_verified"].(bool); ok {
		c.EmailVerified = v
	}
	if f, ok := mc["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(f), 0).UTC()
	}
	if f, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(f), 0).UTC()
	}
	if m, ok := mc["custom"].(map[string]any); ok {
		c.Custom = m
	}
	return c
}

func stringClaim(mc jwtv5.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}

func stringSliceClaim(mc jwtv5.MapClaims, key string) []string {
	raw, ok := mc[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
