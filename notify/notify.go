/*
Package notify delivers plan transition events.

PURPOSE:
  Implements the approval.Notifier collaborator. Delivery here means
  appending to a persistent outbox and logging; an actual messaging
  channel (email, chat) would drain the outbox out of band.

  Notification is fire-and-forget by contract: the orchestrator treats
  a transition as complete even if the notifier errors.

SEE ALSO:
  - approval/store.go: Notifier contract
  - store/sqlite/sqlite.go: Outbox persistence
*/
package notify

import (
	"context"

	"github.com/warp/vacation-engine/approval"
	"go.uber.org/zap"
)

// Sink persists outbox rows. Implemented by the sqlite store.
type Sink interface {
	SaveNotification(ctx context.Context, ev approval.Event) error
}

// Outbox writes each event to the sink and logs it.
type Outbox struct {
	Sink   Sink
	Logger *zap.Logger
}

func NewOutbox(sink Sink, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{Sink: sink, Logger: logger}
}

// PlanTransitioned appends the event to the outbox.
func (o *Outbox) PlanTransitioned(ctx context.Context, ev approval.Event) error {
	if err := o.Sink.SaveNotification(ctx, ev); err != nil {
		return err
	}
	o.Logger.Info("notification queued",
		zap.String("plan_id", string(ev.PlanID)),
		zap.String("status", string(ev.NewStatus)),
		zap.String("recipient", string(ev.RecipientID)))
	return nil
}

// Logging only delivers to the log. Useful for dev setups without an
// outbox consumer.
type Logging struct {
	Logger *zap.Logger
}

func (l Logging) PlanTransitioned(_ context.Context, ev approval.Event) error {
	l.Logger.Info("plan notification",
		zap.String("plan_id", string(ev.PlanID)),
		zap.String("status", string(ev.NewStatus)),
		zap.String("recipient", string(ev.RecipientID)))
	return nil
}
