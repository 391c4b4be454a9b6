package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el singleton del proceso. Idempotente: sólo la primera
// llamada construye el logger, el resto se ignora. Va al inicio de main.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger del proceso. Si nadie llamó Init (tests, tooling)
// se levanta uno de desarrollo en nivel info.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna el logger con un nombre de subsistema
// (ej: "secrets.scheduler", "audit").
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna el logger con campos persistentes
// (ej: Component("revocation") en un store).
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushea buffers pendientes. Con defer en main.
func Sync() error {
	if instance == nil {
		return nil
	}
	return instance.Sync()
}
