package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alejandrodnm/pariwager/internal/ports"
)

// Multi reparte cada signal a varios sinks. Un sink que falla no bloquea a los demás.
type Multi []ports.SignalSink

// Emit implementa ports.SignalSink.
func (m Multi) Emit(ctx context.Context, s domain.Signal) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
