package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

// RedisStore implementa Store sobre Redis. Es el backend primario: una
// revocación escrita por la instancia A es visible en el siguiente GET de la
// instancia B, sin propagación más allá de la replicación de Redis mismo.
type RedisStore struct {
	client *rdb.Client
	prefix string
}

// Keyspace:
//
//	{p}:jti:<jti>   registro JSON, EX = vida restante del access token
//	{p}:user:<uid>  SET de JTIs revocados del usuario (bulk revoke + auditoría)
//	{p}:all:<uid>   marca RFC3339 de RevokeAllForUser
//	{p}:rt:<hash>   registro JSON del refresh token revocado (por sha256)
func (s *RedisStore) jtiKey(jti string) string   { return s.prefix + ":jti:" + jti }
func (s *RedisStore) userKey(uid string) string  { return s.prefix + ":user:" + uid }
func (s *RedisStore) allKey(uid string) string   { return s.prefix + ":all:" + uid }
func (s *RedisStore) refreshKey(h string) string { return s.prefix + ":rt:" + h }

// revokeScript escribe el registro y la membresía del índice en una sola
// operación: un crash entre ambas escrituras no puede dejar el índice
// desincronizado. Extiende el TTL del índice si el registro vive más.
//
// KEYS[1] = jti key, KEYS[2] = user set
// ARGV[1] = record JSON, ARGV[2] = ttl seconds, ARGV[3] = jti
var revokeScript = rdb.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
local cur = redis.call('TTL', KEYS[2])
if cur < tonumber(ARGV[2]) then
  redis.call('EXPIRE', KEYS[2], ARGV[2])
end
return 1
`)

// revokeAllScript setea la marca de usuario y extiende el TTL de los JTIs ya
// registrados, en una sola operación (sin read-modify-write del lado cliente).
//
// KEYS[1] = all marker, KEYS[2] = user set
// ARGV[1] = timestamp RFC3339, ARGV[2] = ttl seconds, ARGV[3] = jti key prefix
var revokeAllScript = rdb.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
local members = redis.call('SMEMBERS', KEYS[2])
for _, jti in ipairs(members) do
  local k = ARGV[3] .. jti
  if redis.call('EXISTS', k) == 1 then
    local cur = redis.call('TTL', k)
    if cur >= 0 and cur < tonumber(ARGV[2]) then
      redis.call('EXPIRE', k, ARGV[2])
    end
  end
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  local cur = redis.call('TTL', KEYS[2])
  if cur < tonumber(ARGV[2]) then
    redis.call('EXPIRE', KEYS[2], ARGV[2])
  end
end
return #members
`)

// NewRedisStore conecta a Redis y verifica la conexión.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "rev"
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("revocation: redis ping failed: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient envuelve un cliente existente (tests, pools compartidos).
func NewRedisStoreFromClient(client *rdb.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rev"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func ttlSeconds(ttl time.Duration) int64 {
	secs := int64(ttl.Seconds())
	if secs < 1 {
		secs = 1 // Redis rechaza EX <= 0; un registro ya vencido expira enseguida
	}
	return secs
}

func (s *RedisStore) Revoke(ctx context.Context, jti, userID string, reason Reason, ttl time.Duration) error {
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
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("revocation: marshal record: %w", err)
	}

	err = revokeScript.Run(ctx, s.client,
		[]string{s.jtiKey(jti), s.userKey(userID)},
		string(payload), ttlSeconds(ttl), jti,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

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

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	err := s.client.Get(ctx, s.jtiKey(jti)).Err()
	metrics.RevocationLookupLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	switch {
	case err == nil:
		return true, nil
	case err == rdb.Nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string, reason Reason, ttl time.Duration) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	now := time.Now().UTC()
	err := revokeAllScript.Run(ctx, s.client,
		[]string{s.allKey(userID), s.userKey(userID)},
		now.Format(time.RFC3339Nano), ttlSeconds(ttl), s.prefix+":jti:",
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	logger.From(ctx).Info("all tokens revoked for user",
		logger.Component("revocation"),
		logger.UserID(userID),
		logger.Reason(string(reason)),
	)
	return nil
}

func (s *RedisStore) RevokedAllAt(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.allKey(userID)).Result()
	switch {
	case err == rdb.Nil:
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	ts, perr := time.Parse(time.RFC3339Nano, val)
	if perr != nil {
		return time.Time{}, false, fmt.Errorf("revocation: corrupt marker for user %s: %w", userID, perr)
	}
	return ts, true, nil
}

func (s *RedisStore) RevokeRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	hash := tokens.SHA256Base64URL(token)
	now := time.Now().UTC()
	rec := Record{
		JTI:       hash, // el hash ocupa el lugar del JTI para refresh tokens
		UserID:    userID,
		Reason:    reason,
		RevokedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("revocation: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, s.refreshKey(hash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	logger.From(ctx).Info("refresh token revoked",
		logger.Component("revocation"),
		logger.UserID(userID),
		logger.Reason(string(reason)),
	)
	return nil
}

// BurnRefreshToken escribe el registro con SET NX: si la clave ya existía el
// token ya estaba quemado y la escritura no pisa el registro original.
func (s *RedisStore) BurnRefreshToken(ctx context.Context, token, userID string, reason Reason, ttl time.Duration) (bool, error) {
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
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("revocation: marshal record: %w", err)
	}

	set, err := s.client.SetNX(ctx, s.refreshKey(hash), payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !set {
		return true, nil
	}

	metrics.Revocations.WithLabelValues(string(reason)).Inc()
	logger.From(ctx).Info("refresh token revoked",
		logger.Component("revocation"),
		logger.UserID(userID),
		logger.Reason(string(reason)),
	)
	return false, nil
}

func (s *RedisStore) IsRefreshTokenRevoked(ctx context.Context, token string) (bool, error) {
	hash := tokens.SHA256Base64URL(token)
	n, err := s.client.Exists(ctx, s.refreshKey(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, jti := range members {
		keys[i] = s.jtiKey(jti)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Record, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// registro ya expirado en Redis: limpiar membresía colgante
			_ = s.client.SRem(ctx, s.userKey(userID), members[i]).Err()
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Cleanup recorre los registros con SCAN y elimina los que ya pasaron su
// expiración LÓGICA (la embebida en el registro). El TTL nativo de Redis y la
// expiración lógica pueden divergir si cambió la configuración; este barrido
// corrige eso. Nunca toca registros cuya expiración lógica esté en el futuro.
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	now := time.Now().UTC()

	for _, pattern := range []string{s.prefix + ":jti:*", s.prefix + ":rt:*"} {
		iter := s.client.Scan(ctx, 0, pattern, 256).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			raw, err := s.client.Get(ctx, key).Result()
			if err == rdb.Nil {
				continue // expiró entre SCAN y GET: nada que hacer
			}
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				// registro ilegible: lo dejamos; el TTL nativo lo va a retirar
				continue
			}
			if rec.ExpiresAt.After(now) {
				continue
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if rec.UserID != "" {
				_ = s.client.SRem(ctx, s.userKey(rec.UserID), rec.JTI).Err()
			}
			removed++
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if removed > 0 {
		metrics.CleanupRemoved.Add(float64(removed))
		logger.From(ctx).Info("revocation cleanup pass",
			logger.Component("revocation"),
			logger.Op("Cleanup"),
			logger.Count(removed),
		)
	}
	return removed, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
