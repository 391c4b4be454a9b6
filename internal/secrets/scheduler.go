package secrets

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Scheduler inspecciona periódicamente cada secreto configurado y rota los
// que superaron su intervalo. Corre como una única goroutine por proceso.
//
// Con múltiples instancias corriendo schedulers a la vez, la rotación es
// idempotente-safe: se relee la edad de la versión activa inmediatamente antes
// de escribir, así una segunda instancia que llega tarde ve la versión recién
// rotada y no hace nada (en el peor caso produce una versión extra superflua,
// nunca estado corrupto).
type Scheduler struct {
	manager *Manager
	sweep   time.Duration
}

// NewScheduler crea el scheduler. sweep es el intervalo del barrido (no el de
// rotación de cada secreto, que viene del Spec).
func NewScheduler(manager *Manager, sweep time.Duration) *Scheduler {
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Scheduler{manager: manager, sweep: sweep}
}

// Run bloquea hasta que ctx se cancele. La falla de un secreto no aborta el
// barrido de los demás: se loguea y se reintenta en el próximo ciclo.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.L().Named("secrets.scheduler")
	log.Info("rotation scheduler started",
		logger.Count(len(s.manager.Specs())),
		logger.TTL(s.sweep),
	)

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("rotation scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep corre una pasada de rotación sobre todos los specs. Exportado para
// dispararlo a demanda (ops) y para tests.
func (s *Scheduler) Sweep(ctx context.Context) {
	log := logger.From(ctx).Named("secrets.scheduler")

	for _, spec := range s.manager.Specs() {
		if spec.RotateEvery <= 0 {
			continue // rotación manual únicamente
		}
		if err := s.rotateIfStale(ctx, spec); err != nil {
			log.Error("secret rotation failed",
				logger.SecretName(spec.Name),
				logger.Err(err),
			)
			// continuar: cada secreto es independiente
		}
	}
}

func (s *Scheduler) rotateIfStale(ctx context.Context, spec Spec) error {
	// releer la edad justo antes de escribir (idempotencia multi-instancia)
	age, err := s.manager.ActiveAge(ctx, spec.Name)
	if errors.Is(err, ErrNotFound) {
		_, err = s.manager.RotateSecret(ctx, spec.Name, "scheduler")
		return err
	}
	if err != nil {
		return err
	}
	if age <= spec.RotateEvery {
		return nil
	}
	_, err = s.manager.RotateSecret(ctx, spec.Name, "scheduler")
	return err
}
