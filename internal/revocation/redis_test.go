package revocation_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustcore/internal/revocation"
)

// Los tests del backend Redis corren contra una instancia real. Sin
// REDIS_ADDR se skipean (mismo contrato que el resto de la suite gated).
func newRedisStore(t *testing.T) (*revocation.RedisStore, *rdb.Client, string) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR no seteado; skipping")
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis en %s no responde: %v; skipping", addr, err)
	}

	// prefijo único por test para no pisar claves entre corridas
	prefix := fmt.Sprintf("revtest:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+":*", 256).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})
	return revocation.NewRedisStoreFromClient(client, prefix), client, prefix
}

func TestRedisStore_RevokeAndLookup(t *testing.T) {
	s, client, prefix := newRedisStore(t)
	ctx := context.Background()

	if revoked, err := s.IsRevoked(ctx, "jti-1"); err != nil || revoked {
		t.Fatalf("fresh jti should not be revoked (revoked=%v err=%v)", revoked, err)
	}
	if err := s.Revoke(ctx, "jti-1", "user-a", revocation.ReasonLogout, time.Minute); err != nil {
		t.Fatalf("Revoke err: %v", err)
	}
	if revoked, err := s.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Fatalf("expected revoked (revoked=%v err=%v)", revoked, err)
	}

	// el registro y la membresía del índice se escriben juntos
	if n, _ := client.SIsMember(ctx, prefix+":user:user-a", "jti-1").Result(); !n {
		t.Fatal("revoke wrote the record but not the user index")
	}
	recs, err := s.ListForUser(ctx, "user-a")
	if err != nil || len(recs) != 1 || recs[0].JTI != "jti-1" {
		t.Fatalf("ListForUser = %+v (err=%v)", recs, err)
	}

	// TTL nativo acotado por el ttl pedido
	if ttl, _ := client.TTL(ctx, prefix+":jti:jti-1").Result(); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected native TTL %v", ttl)
	}
}

func TestRedisStore_RevokeAllExtendsButNeverShortens(t *testing.T) {
	s, client, prefix := newRedisStore(t)
	ctx := context.Background()

	_ = s.Revoke(ctx, "jti-short", "user-b", revocation.ReasonLogout, 5*time.Second)
	_ = s.Revoke(ctx, "jti-long", "user-b", revocation.ReasonLogout, time.Hour)

	before := time.Now().UTC()
	if err := s.RevokeAllForUser(ctx, "user-b", revocation.ReasonSecurityIncident, 10*time.Minute); err != nil {
		t.Fatalf("RevokeAllForUser err: %v", err)
	}

	// el registro corto se extiende hasta el TTL del revoke-all
	if ttl, _ := client.TTL(ctx, prefix+":jti:jti-short").Result(); ttl < 5*time.Minute {
		t.Fatalf("short record not extended: TTL=%v", ttl)
	}
	// el registro con más vida restante no se acorta
	if ttl, _ := client.TTL(ctx, prefix+":jti:jti-long").Result(); ttl < 50*time.Minute {
		t.Fatalf("long record was shortened: TTL=%v", ttl)
	}

	at, found, err := s.RevokedAllAt(ctx, "user-b")
	if err != nil || !found {
		t.Fatalf("marker expected (found=%v err=%v)", found, err)
	}
	if at.Before(before.Add(-time.Second)) || at.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("marker timestamp out of range: %v", at)
	}
}

func TestRedisStore_RefreshTokens(t *testing.T) {
	s, _, _ := newRedisStore(t)
	ctx := context.Background()

	const rt = "opaque-refresh-token-value"
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, rt); revoked {
		t.Fatal("fresh refresh token should not be revoked")
	}
	if err := s.RevokeRefreshToken(ctx, rt, "user-a", revocation.ReasonRotation, time.Hour); err != nil {
		t.Fatalf("RevokeRefreshToken err: %v", err)
	}
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, rt); !revoked {
		t.Fatal("expected refresh token revoked")
	}
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, rt+"x"); revoked {
		t.Fatal("different token must not match")
	}
}

func TestRedisStore_BurnRefreshTokenSingleUse(t *testing.T) {
	s, _, _ := newRedisStore(t)
	ctx := context.Background()

	const rt = "refresh-to-burn"
	already, err := s.BurnRefreshToken(ctx, rt, "user-a", revocation.ReasonRotation, time.Hour)
	if err != nil || already {
		t.Fatalf("first burn must win (already=%v err=%v)", already, err)
	}
	already, err = s.BurnRefreshToken(ctx, rt, "user-a", revocation.ReasonRotation, time.Hour)
	if err != nil || !already {
		t.Fatalf("second burn must report already burned (already=%v err=%v)", already, err)
	}
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, rt); !revoked {
		t.Fatal("burned token must read as revoked")
	}
}

func TestRedisStore_CleanupHonorsLogicalExpiry(t *testing.T) {
	s, client, prefix := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// registro con TTL nativo largo pero expiración lógica en el pasado:
	// la divergencia que el barrido tiene que corregir
	stale := revocation.Record{
		JTI:       "jti-stale",
		UserID:    "user-c",
		Reason:    revocation.ReasonLogout,
		RevokedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	payload, _ := json.Marshal(stale)
	if err := client.Set(ctx, prefix+":jti:jti-stale", payload, time.Hour).Err(); err != nil {
		t.Fatalf("seed stale record: %v", err)
	}
	if err := client.SAdd(ctx, prefix+":user:user-c", "jti-stale").Err(); err != nil {
		t.Fatalf("seed stale index: %v", err)
	}
	_ = s.Revoke(ctx, "jti-live", "user-c", revocation.ReasonLogout, time.Hour)

	removed, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup err: %v", err)
	}
	if removed < 1 {
		t.Fatalf("expected at least 1 removed, got %d", removed)
	}

	if revoked, _ := s.IsRevoked(ctx, "jti-stale"); revoked {
		t.Fatal("logically expired record survived cleanup")
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-live"); !revoked {
		t.Fatal("live record must survive cleanup")
	}
	recs, _ := s.ListForUser(ctx, "user-c")
	for _, r := range recs {
		if r.JTI == "jti-stale" {
			t.Fatal("stale record still listed")
		}
	}
}
