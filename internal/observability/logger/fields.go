package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (handler, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS ESTÁNDAR - TRUST CORE
// =================================================================================

// UserID crea un campo para el ID del usuario (subject).
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// JTI crea un campo para el ID único del token.
func JTI(v string) zap.Field {
	return zap.String("jti", v)
}

// Reason crea un campo para el motivo de revocación.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// Cause crea un campo para la causa interna de un rechazo de validación.
// Nunca viaja al caller: sólo logs y métricas.
func Cause(v string) zap.Field {
	return zap.String("cause", v)
}

// SecretName crea un campo para el nombre de un secreto gestionado.
func SecretName(v string) zap.Field {
	return zap.String("secret", v)
}

// SecretVersion crea un campo para el número de versión de un secreto.
func SecretVersion(v int) zap.Field {
	return zap.Int("version", v)
}

// TTL crea un campo para un TTL.
func TTL(v time.Duration) zap.Field {
	return zap.Duration("ttl", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP (superficie admin)
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS GENÉRICOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
