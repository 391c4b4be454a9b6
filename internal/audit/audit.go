package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

// Log writes a structured audit event through the shared zap logger. Audit
// events always go out at Info level regardless of the configured log level
// of the component that emitted them.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	zfields := make([]zap.Field, 0, len(fields)+2)
	zfields = append(zfields,
		zap.String("audit_event", event),
		zap.Time("ts", time.Now().UTC()),
	)
	zfields = append(zfields, fields...)
	logger.From(ctx).Named("audit").Info(event, zfields...)
}
