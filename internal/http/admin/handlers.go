// Package admin expone la superficie administrativa del core: revocaciones y
// ciclo de vida de secretos. Toda la superficie va detrás de X-Admin-API-Key;
// nunca expone material de secreto en claro.
package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/trustcore/internal/audit"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/revocation"
	"github.com/dropDatabas3/trustcore/internal/secrets"
	"github.com/dropDatabas3/trustcore/internal/token"
)

// Handlers agrupa las dependencias de la superficie admin.
type Handlers struct {
	Revocations revocation.Store
	Secrets     *secrets.Manager
	// Tokens verifica firma sin chequear expiración: la revocación por token
	// deriva jti/usuario/expiración del token que pega el admin.
	Tokens *token.Service
	// RefreshTTL acota el TTL de los markers de revoke-all.
	RefreshTTL time.Duration
}

// ---------------------------------------------------------------------------
// Revocaciones
// ---------------------------------------------------------------------------

type revokeRequest struct {
	// Un token completo, o el par jti+user_id explícito.
	Token  string `json:"token,omitempty"`
	JTI    string `json:"jti,omitempty"`
	UserID string `json:"user_id,omitempty"`
	// All=true revoca todo lo emitido hasta ahora para user_id.
	All    bool   `json:"all,omitempty"`
	Reason string `json:"reason"`
	// TTL opcional en segundos para el caso jti explícito (sin token no hay
	// expiración conocida). Default: el TTL de refresh.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// Revoke maneja POST /v1/admin/revocations.
func (h *Handlers) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !readJSON(w, r, &req) {
		return
	}

	reason := revocation.Reason(strings.TrimSpace(req.Reason))
	if !reason.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_reason", "motivo de revocación desconocido")
		return
	}

	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("http"), logger.Component("admin"))

	// Caso 1: revoke-all para un usuario.
	if req.All {
		if strings.TrimSpace(req.UserID) == "" {
			writeError(w, http.StatusBadRequest, "missing_user_id", "all=true requiere user_id")
			return
		}
		if err := h.Revocations.RevokeAllForUser(ctx, req.UserID, reason, h.RefreshTTL); err != nil {
			log.Error("revoke all failed", logger.UserID(req.UserID), logger.Err(err))
			writeError(w, http.StatusServiceUnavailable, "store_error", "backend de revocación no disponible")
			return
		}
		audit.Log(ctx, "revocation.all",
			logger.UserID(req.UserID),
			logger.Reason(string(reason)),
		)
		writeJSON(w, http.StatusOK, map[string]any{"revoked": "all", "user_id": req.UserID})
		return
	}

	jti, userID := strings.TrimSpace(req.JTI), strings.TrimSpace(req.UserID)
	ttl := time.Duration(req.TTLSeconds) * time.Second

	// Caso 2: el admin pega el token; derivamos jti/usuario/expiración.
	if req.Token != "" {
		cl, err := h.Tokens.ClaimsIgnoringExpiry(ctx, req.Token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_token", "el token no se pudo verificar")
			return
		}
		jti, userID = cl.JTI, cl.Subject
		ttl = time.Until(cl.ExpiresAt)
	}

	if jti == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing_target", "se requiere token, o jti y user_id")
		return
	}
	if ttl <= 0 {
		ttl = h.RefreshTTL
	}

	if err := h.Revocations.Revoke(ctx, jti, userID, reason, ttl); err != nil {
		log.Error("revoke failed", logger.JTI(jti), logger.Err(err))
		writeError(w, http.StatusServiceUnavailable, "store_error", "backend de revocación no disponible")
		return
	}
	audit.Log(ctx, "revocation.single",
		logger.JTI(jti),
		logger.UserID(userID),
		logger.Reason(string(reason)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"revoked": jti, "user_id": userID})
}

// ListRevocations maneja GET /v1/admin/users/{userID}/revocations.
func (h *Handlers) ListRevocations(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", "user_id requerido")
		return
	}

	ctx := r.Context()
	recs, err := h.Revocations.ListForUser(ctx, userID)
	if err != nil {
		logger.From(ctx).Error("list revocations failed", logger.UserID(userID), logger.Err(err))
		writeError(w, http.StatusServiceUnavailable, "store_error", "backend de revocación no disponible")
		return
	}

	at, all, err := h.Revocations.RevokedAllAt(ctx, userID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", "backend de revocación no disponible")
		return
	}

	resp := map[string]any{
		"user_id":     userID,
		"revocations": recs,
	}
	if all {
		resp["revoked_all_at"] = at.Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Secretos
// ---------------------------------------------------------------------------

type setSecretRequest struct {
	Value string `json:"value"`
}

// RotateSecret maneja POST /v1/admin/secrets/{name}/rotate.
// El valor nuevo NUNCA viaja en la respuesta: el consumidor lo lee por el
// canal normal (Manager.GetSecret).
func (h *Handlers) RotateSecret(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	ctx := r.Context()

	if _, err := h.Secrets.RotateSecret(ctx, name, "admin-api"); err != nil {
		h.secretError(w, r, name, "rotate", err)
		return
	}
	audit.Log(ctx, "secret.rotated", logger.SecretName(name), logger.String("by", "admin-api"))

	hist, err := h.Secrets.GetHistory(ctx, name)
	if err != nil || len(hist) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"rotated": name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rotated": name, "active": hist[0]})
}

// SetSecret maneja PUT /v1/admin/secrets/{name}.
func (h *Handlers) SetSecret(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	var req setSecretRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeError(w, http.StatusBadRequest, "missing_value", "value requerido")
		return
	}

	ctx := r.Context()
	if err := h.Secrets.SetSecret(ctx, name, req.Value, "admin-api"); err != nil {
		h.secretError(w, r, name, "set", err)
		return
	}
	audit.Log(ctx, "secret.set", logger.SecretName(name), logger.String("by", "admin-api"))
	writeJSON(w, http.StatusOK, map[string]any{"updated": name})
}

// SecretHistory maneja GET /v1/admin/secrets/{name}/history.
// Siempre valores enmascarados.
func (h *Handlers) SecretHistory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	ctx := r.Context()

	hist, err := h.Secrets.GetHistory(ctx, name)
	if err != nil {
		h.secretError(w, r, name, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "versions": hist})
}

func (h *Handlers) secretError(w http.ResponseWriter, r *http.Request, name, op string, err error) {
	switch {
	case errors.Is(err, secrets.ErrUnknownSecret):
		writeError(w, http.StatusNotFound, "unknown_secret", "secreto no declarado en la configuración")
	case errors.Is(err, secrets.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "el secreto no tiene versión activa")
	case errors.Is(err, secrets.ErrWeakValue):
		writeError(w, http.StatusBadRequest, "weak_value", err.Error())
	default:
		logger.From(r.Context()).Error("secret op failed",
			logger.Component("admin"),
			logger.Op(op),
			logger.SecretName(name),
			logger.Err(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "operación de secreto falló")
	}
}
