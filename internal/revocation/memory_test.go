package revocation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/trustcore/internal/revocation"
)

func TestMemoryStore_RevokeAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh jti should not be revoked (revoked=%v err=%v)", revoked, err)
	}

	if err := s.Revoke(ctx, "jti-1", "user-a", revocation.ReasonLogout, time.Minute); err != nil {
		t.Fatalf("Revoke err: %v", err)
	}

	revoked, err = s.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked (revoked=%v err=%v)", revoked, err)
	}

	// idempotente
	if err := s.Revoke(ctx, "jti-1", "user-a", revocation.ReasonLogout, time.Minute); err != nil {
		t.Fatalf("second Revoke err: %v", err)
	}
}

func TestMemoryStore_RejectsUnknownReason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	err := s.Revoke(ctx, "jti-x", "user-a", revocation.Reason("made_up"), time.Minute)
	if err != revocation.ErrInvalidReason {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
	if err := s.RevokeAllForUser(ctx, "user-a", revocation.Reason(""), time.Minute); err != revocation.ErrInvalidReason {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
}

func TestMemoryStore_RevokeAllMarker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	if _, found, err := s.RevokedAllAt(ctx, "user-b"); err != nil || found {
		t.Fatalf("no marker expected (found=%v err=%v)", found, err)
	}

	before := time.Now().UTC()
	if err := s.RevokeAllForUser(ctx, "user-b", revocation.ReasonSecurityIncident, time.Hour); err != nil {
		t.Fatalf("RevokeAllForUser err: %v", err)
	}

	at, found, err := s.RevokedAllAt(ctx, "user-b")
	if err != nil || !found {
		t.Fatalf("marker expected (found=%v err=%v)", found, err)
	}
	if at.Before(before.Add(-time.Second)) || at.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("marker timestamp out of range: %v", at)
	}

	// el marker de otro usuario no se ve afectado
	if _, found, _ := s.RevokedAllAt(ctx, "user-c"); found {
		t.Fatal("marker leaked to another user")
	}
}

func TestMemoryStore_RevokeAllNeverShortensRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	// registro con más vida restante que el TTL del revoke-all
	if err := s.Revoke(ctx, "jti-long", "user-d", revocation.ReasonLogout, 2*time.Second); err != nil {
		t.Fatalf("Revoke err: %v", err)
	}
	if err := s.RevokeAllForUser(ctx, "user-d", revocation.ReasonSecurityIncident, 100*time.Millisecond); err != nil {
		t.Fatalf("RevokeAllForUser err: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if revoked, _ := s.IsRevoked(ctx, "jti-long"); !revoked {
		t.Fatal("record outlives the revoke-all TTL, must still be revoked")
	}
}

func TestMemoryStore_RevokeAllExtendsShortRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	_ = s.Revoke(ctx, "jti-short", "user-e", revocation.ReasonLogout, time.Second)
	if err := s.RevokeAllForUser(ctx, "user-e", revocation.ReasonAdminAction, time.Hour); err != nil {
		t.Fatalf("RevokeAllForUser err: %v", err)
	}

	recs, err := s.ListForUser(ctx, "user-e")
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected 1 record (err=%v len=%d)", err, len(recs))
	}
	if remaining := time.Until(recs[0].ExpiresAt); remaining < 30*time.Minute {
		t.Fatalf("record TTL not extended by revoke-all: %v remaining", remaining)
	}
}

func TestMemoryStore_RefreshTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

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
	// otro valor no matchea (se guarda por hash, no por igualdad parcial)
	if revoked, _ := s.IsRefreshTokenRevoked(ctx, rt+"x"); revoked {
		t.Fatal("different token must not match")
	}
}

func TestMemoryStore_BurnRefreshTokenSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

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

func TestMemoryStore_BurnRefreshTokenConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	const rt = "refresh-race"
	var wg sync.WaitGroup
	var winners int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			already, err := s.BurnRefreshToken(ctx, rt, "user-a", revocation.ReasonRotation, time.Hour)
			if err == nil && !already {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("exactly one burn must win, got %d", winners)
	}
}

func TestMemoryStore_ListForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	_ = s.Revoke(ctx, "jti-a", "user-z", revocation.ReasonLogout, time.Minute)
	_ = s.Revoke(ctx, "jti-b", "user-z", revocation.ReasonAdminAction, time.Minute)
	_ = s.Revoke(ctx, "jti-c", "other", revocation.ReasonLogout, time.Minute)

	recs, err := s.ListForUser(ctx, "user-z")
	if err != nil {
		t.Fatalf("ListForUser err: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.UserID != "user-z" {
			t.Fatalf("foreign record in listing: %+v", r)
		}
		if r.JTI != "jti-a" && r.JTI != "jti-b" {
			t.Fatalf("unexpected jti %q", r.JTI)
		}
	}
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := revocation.NewMemoryStore()

	// ttl negativo: el registro nace lógicamente expirado
	_ = s.Revoke(ctx, "jti-old", "user-q", revocation.ReasonLogout, -time.Second)
	_ = s.Revoke(ctx, "jti-new", "user-q", revocation.ReasonLogout, time.Hour)

	removed, err := s.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup err: %v", err)
	}
	if removed < 1 {
		t.Fatalf("expected at least 1 removed, got %d", removed)
	}

	if revoked, _ := s.IsRevoked(ctx, "jti-new"); !revoked {
		t.Fatal("live record must survive cleanup")
	}
	recs, _ := s.ListForUser(ctx, "user-q")
	for _, r := range recs {
		if r.JTI == "jti-old" {
			t.Fatal("expired record still listed")
		}
	}
}
