package revocation

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

// MemoryStore implementa Store en memoria de proceso. Sirve para despliegues
// single-instance y tests; con múltiples instancias NO hay visibilidad
// compartida, usar RedisStore.
type MemoryStore struct {
	recs  *gocache.Cache // jti -> Record
	rts   *gocache.Cache // sha256(refresh) -> Record
	marks *gocache.Cache // userID -> time.Time (marca RevokeAllForUser)

	mu    sync.Mutex
	index map[string]map[string]struct{} // userID -> set de JTIs
}

// NewMemoryStore crea el store en memoria. go-cache se encarga del TTL por
// entrada; Cleanup existe igual para la expiración lógica.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs:  gocache.New(gocache.NoExpiration, time.Minute),
		rts:   gocache.New(gocache.NoExpiration, time.Minute),
		marks: gocache.New(gocache.NoExpiration, time.Minute),
		index: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Revoke(ctx context.Context, jti, userID string, reason Reason, ttl time.Duration) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	now := time.Now().UTC()
	rec := Record{
		JTI:       jti,
		UserID:    userID,
		Reason:    reason,
		RevokedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	// mismo contrato que el script Lua: registro e índice juntos bajo un lock
	s.mu.Lock()
	s.recs.Set(jti, rec, ttl)
	if s.index[userID] == nil {
		s.index[userID] = make(map[string]struct{})
	}
	s.index[userID][jti] = struct{}{}
	s.mu.Unlock()

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	logger.From(ctx).Info("token revoked",
		logger.Component("revocation"),
		logger.JTI(jti),
		logger.UserID(userID),
		logger.Reason(string(reason)),
		logger.TTL(ttl),
	)
	return nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, found := s.recs.Get(jti)
	return found, nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID string, reason Reason, ttl time.Duration) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	now := time.Now().UTC()

	s.mu.Lock()
	s.marks.Set(userID, now, ttl)
	// extender el TTL de los registros ya trackeados del usuario; igual que el
	// script Lua, sólo se extiende: un registro con más vida restante no se toca
	exp := now.Add(ttl)
	for jti := range s.index[userID] {
		if v, found := s.recs.Get(jti); found {
			rec := v.(Record)
			if rec.ExpiresAt.Before(exp) {
				rec.ExpiresAt = exp
				s.recs.Set(jti, rec, ttl)
			}
		}
	}
	s.mu.Unlock()

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	logger.From(ctx).Info("all tokens revoked for user",
		logger.Component("revocation"),
		logger.UserID(userID),
		logger.Reason(string(reason)),
	)
	return nil
}

func (s *MemoryStore) RevokedAllAt(ctx context.Context, userID string) (time.Time, bool, error) {
	v, found := s.marks.Get(userID)
	if !found {
		return time.Time{}, false, nil
	}
	return v.(time.Time), true, nil
}

func (s *MemoryStore) RevokeRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	hash := tokens.SHA256Base64URL(token)
	now := time.Now().UTC()
	s.rts.Set(hash, Record{
		JTI:       hash,
		UserID:    userID,
		Reason:    reason,
		RevokedAt: now,
		ExpiresAt: now.Add(ttl),
	}, ttl)

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	return nil
}

func (s *MemoryStore) BurnRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) (bool, error) {
	if !reason.Valid() {
		return false, ErrInvalidReason
	}
	hash := tokens.SHA256Base64URL(token)
	now := time.Now().UTC()
	rec := Record{
		JTI:       hash,
		UserID:    userID,
		Reason:    reason,
		RevokedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	// Add es atómico en go-cache: falla si ya hay registro => ya quemado
	if err := s.rts.Add(hash, rec, ttl); err != nil {
		return true, nil
	}
	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	return false, nil
}

func (s *MemoryStore) IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error) {
	_, found := s.rts.Get(tokens.SHA256Base64URL(token))
	return found, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for jti := range s.index[userID] {
		v, found := s.recs.Get(jti)
		if !found {
			delete(s.index[userID], jti) // membresía colgante
			continue
		}
		out = append(out, v.(Record))
	}
	return out, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	removed := 0

	for _, c := range []*gocache.Cache{s.recs, s.rts} {
		for key, item := range c.Items() {
			rec, ok := item.Object.(Record)
			if !ok {
				continue
			}
			if rec.ExpiresAt.After(now) {
				continue
			}
			c.Delete(key)
			removed++
			if rec.UserID != "" {
				s.mu.Lock()
				delete(s.index[rec.UserID], rec.JTI)
				s.mu.Unlock()
			}
		}
	}

	if removed > 0 {
		metrics.CleanupRemoved.Add(float64(removed))
	}
	return removed, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
