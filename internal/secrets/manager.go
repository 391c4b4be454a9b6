package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
	"github.com/dropDatabas3/trustcore/internal/validation"
)

// Manager es la fachada del ciclo de vida de secretos: lee (descifrando),
// rota (generando valores fuertes) y expone historia con valores enmascarados.
//
// Las lecturas calientes van por un cache corto + singleflight, así validar
// tokens no golpea el store en cada request.
type Manager struct {
	store     Store
	specs     map[string]Spec
	policy    validation.StrengthPolicy
	retention int

	sf       singleflight.Group
	mu       sync.RWMutex
	cached   map[string]cachedValue
	cacheTTL time.Duration
}

type cachedValue struct {
	value string
	until time.Time
}

// Option configura el Manager.
type Option func(*Manager)

// WithRetention fija cuántas versiones retener por secreto (mínimo 2: la
// activa y la inmediata anterior nunca se podan juntas).
func WithRetention(n int) Option {
	return func(m *Manager) {
		if n >= 2 {
			m.retention = n
		}
	}
}

// WithCacheTTL fija el TTL del cache local de lecturas.
func WithCacheTTL(d time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = d }
}

// WithStrengthPolicy reemplaza la política de fortaleza.
func WithStrengthPolicy(p validation.StrengthPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager construye el manager para los specs dados.
func NewManager(store Store, specs []Spec, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:     store,
		specs:     make(map[string]Spec, len(specs)),
		policy:    validation.DefaultStrengthPolicy(),
		retention: 5,
		cached:    make(map[string]cachedValue),
		cacheTTL:  30 * time.Second,
	}
	for _, s := range specs {
		if !validation.ValidSecretName(s.Name) {
			return nil, fmt.Errorf("secrets: invalid secret name %q", s.Name)
		}
		m.specs[s.Name] = s
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Specs retorna los specs configurados (copia).
func (m *Manager) Specs() []Spec {
	out := make([]Spec, 0, len(m.specs))
	for _, s := range m.specs {
		out = append(out, s)
	}
	return out
}

// GetSecret retorna el valor en claro de la versión activa.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	if c, ok := m.cached[name]; ok && time.Now().Before(c.until) {
		m.mu.RUnlock()
		return c.value, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.sf.Do(name, func() (any, error) {
		active, err := m.store.GetActive(ctx, name)
		if err != nil {
			return "", err
		}
		plain, err := secretbox.Decrypt(active.Value)
		if err != nil {
			return "", fmt.Errorf("secrets: decrypt %s: %w", name, err)
		}
		m.mu.Lock()
		m.cached[name] = cachedValue{value: plain, until: time.Now().Add(m.cacheTTL)}
		m.mu.Unlock()
		return plain, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetPrevious retorna el valor en claro de la versión inmediata anterior a la
// activa. Da ErrNotFound si no existe. Usado para la ventana de gracia: lo
// firmado con el secreto anterior sigue verificable tras una rotación.
func (m *Manager) GetPrevious(ctx context.Context, name string) (string, error) {
	hist, err := m.store.History(ctx, name)
	if err != nil {
		return "", err
	}
	activeIdx := -1
	for i, v := range hist {
		if v.Active {
			activeIdx = i
			break
		}
	}
	// History viene más reciente primero; la anterior es la siguiente posición
	if activeIdx < 0 || activeIdx+1 >= len(hist) {
		return "", ErrNotFound
	}
	plain, err := secretbox.Decrypt(hist[activeIdx+1].Value)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt previous %s: %w", name, err)
	}
	return plain, nil
}

// RotateSecret genera un valor nuevo fuerte, lo activa y poda el excedente de
// historia. Retorna el valor nuevo en claro.
func (m *Manager) RotateSecret(ctx context.Context, name, rotatedBy string) (string, error) {
	spec, ok := m.specs[name]
	if !ok {
		return "", ErrUnknownSecret
	}

	value, err := generate(spec.Kind)
	if err != nil {
		return "", fmt.Errorf("secrets: generate %s: %w", name, err)
	}
	// el valor generado pasa por el mismo chequeo que uno provisto a mano
	if ok, reasons := m.policy.Check(value, spec.Alg); !ok {
		return "", fmt.Errorf("%w: %s", ErrWeakValue, strings.Join(reasons, ","))
	}

	return m.activate(ctx, spec, value, rotatedBy)
}

// SetSecret activa un valor provisto por un operador (acción admin explícita).
// Aplica el mismo chequeo de fortaleza que a los valores generados.
func (m *Manager) SetSecret(ctx context.Context, name, value, setBy string) error {
	spec, ok := m.specs[name]
	if !ok {
		return ErrUnknownSecret
	}
	if ok, reasons := m.policy.Check(value, spec.Alg); !ok {
		return fmt.Errorf("%w: %s", ErrWeakValue, strings.Join(reasons, ","))
	}
	_, err := m.activate(ctx, spec, value, setBy)
	return err
}

func (m *Manager) activate(ctx context.Context, spec Spec, value, by string) (string, error) {
	enc, err := secretbox.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("secrets: encrypt %s: %w", spec.Name, err)
	}

	now := time.Now().UTC()
	v := &Version{
		Name:      spec.Name,
		Value:     enc,
		CreatedAt: now,
		CreatedBy: by,
	}
	if spec.RotateEvery > 0 {
		v.ExpiresAt = now.Add(spec.RotateEvery)
	}
	if err := m.store.Append(ctx, v); err != nil {
		metrics.SecretRotations.WithLabelValues(spec.Name, "error").Inc()
		return "", fmt.Errorf("secrets: append %s: %w", spec.Name, err)
	}

	// poda best-effort: nunca bloquea la rotación
	if removed, err := m.store.Prune(ctx, spec.Name, m.retention); err != nil {
		logger.From(ctx).Warn("secret history prune failed",
			logger.Component("secrets"),
			logger.SecretName(spec.Name),
			logger.Err(err),
		)
	} else if removed > 0 {
		logger.From(ctx).Debug("secret history pruned",
			logger.Component("secrets"),
			logger.SecretName(spec.Name),
			logger.Count(removed),
		)
	}

	m.mu.Lock()
	delete(m.cached, spec.Name)
	m.mu.Unlock()

	metrics.SecretRotations.WithLabelValues(spec.Name, "ok").Inc()
	logger.From(ctx).Info("secret rotated",
		logger.Component("secrets"),
		logger.SecretName(spec.Name),
		logger.SecretVersion(v.Number),
		logger.String("by", by),
	)
	return value, nil
}

// GetHistory retorna la historia de versiones con los valores enmascarados.
func (m *Manager) GetHistory(ctx context.Context, name string) ([]VersionInfo, error) {
	if _, ok := m.specs[name]; !ok {
		return nil, ErrUnknownSecret
	}
	hist, err := m.store.History(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]VersionInfo, 0, len(hist))
	for _, v := range hist {
		out = append(out, VersionInfo{
			ID:        v.ID,
			Name:      v.Name,
			Number:    v.Number,
			CreatedAt: v.CreatedAt,
			ExpiresAt: v.ExpiresAt,
			Active:    v.Active,
			CreatedBy: v.CreatedBy,
		})
	}
	return out, nil
}

// ActiveAge retorna la antigüedad de la versión activa, releyendo el store
// (sin cache): el scheduler la consulta inmediatamente antes de rotar.
func (m *Manager) ActiveAge(ctx context.Context, name string) (time.Duration, error) {
	active, err := m.store.GetActive(ctx, name)
	if err != nil {
		return 0, err
	}
	return time.Since(active.CreatedAt), nil
}

// EnsureBootstrap crea la versión inicial de cada spec que no tenga versión
// activa. Idempotente; llamar al arranque.
func (m *Manager) EnsureBootstrap(ctx context.Context) error {
	for _, spec := range m.Specs() {
		_, err := m.store.GetActive(ctx, spec.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := m.RotateSecret(ctx, spec.Name, "bootstrap"); err != nil {
			return err
		}
	}
	return nil
}

// generate produce un valor fuerte según la clase del secreto.
func generate(kind Kind) (string, error) {
	switch kind {
	case KindSigningKey:
		return tokens.GenerateOpaqueToken(64)
	case KindAPIKey:
		return tokens.GenerateOpaqueToken(32)
	case KindTOTPSeed:
		return tokens.GenerateBase32Secret(20)
	default:
		return "", fmt.Errorf("secrets: unknown kind %q", kind)
	}
}
