package ports

import (
	"context"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// SignalSink recibe los eventos emitidos por el core (odds delta, swings,
// closing soon, cambios de estado de gossip).
type SignalSink interface {
	Emit(ctx context.Context, s domain.Signal) error
}
