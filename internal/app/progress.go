/**
 * @description
 * Progress reporting for orchestration runs. The reporter is an interface so
 * tests can capture updates; the production implementation publishes events
 * to RabbitMQ for the chat-platform presentation layer to render. Publish
 * failures are logged and swallowed here: losing a progress message must
 * never fail the redemption run that produced it.
 */

package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/pkg/rabbitmq"
)

// Progress phases.
const (
	PhaseStarted   = "started"
	PhaseProgress  = "progress"
	PhaseCompleted = "completed"
	PhaseSkipped   = "skipped"
)

// ProgressReporter receives aggregate counters during a run and discovery
// notices from the trigger.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, update domain.ProgressUpdate)
	ReportCodeDiscovered(ctx context.Context, code, date string)
}

// EventReporter publishes progress to the notification exchange.
type EventReporter struct {
	publisher rabbitmq.Publisher
	exchange  string
	logger    *slog.Logger
}

// NewEventReporter creates a reporter backed by the given publisher.
func NewEventReporter(publisher rabbitmq.Publisher, exchange string, logger *slog.Logger) *EventReporter {
	return &EventReporter{publisher: publisher, exchange: exchange, logger: logger}
}

func (r *EventReporter) ReportProgress(ctx context.Context, update domain.ProgressUpdate) {
	event := rabbitmq.RedemptionEvent{
		EventID:         uuid.New(),
		AllianceID:      update.AllianceID,
		Code:            update.Code,
		Phase:           update.Phase,
		Total:           update.Total,
		Completed:       update.Completed,
		Succeeded:       update.Succeeded,
		AlreadyRedeemed: update.AlreadyRedeemed,
		Failed:          update.Failed,
		Skipped:         update.Skipped,
		Timestamp:       time.Now(),
	}
	if err := r.publisher.Publish(ctx, r.exchange, "redemption."+update.Phase, event); err != nil {
		r.logger.Warn("failed to publish progress event",
			"code", update.Code, "phase", update.Phase, "error", err)
	}
}

func (r *EventReporter) ReportCodeDiscovered(ctx context.Context, code, date string) {
	event := rabbitmq.CodeDiscoveredEvent{
		EventID:   uuid.New(),
		Code:      code,
		Date:      date,
		Timestamp: time.Now(),
	}
	if err := r.publisher.Publish(ctx, r.exchange, "code.discovered", event); err != nil {
		r.logger.Warn("failed to publish discovery event", "code", code, "error", err)
	}
}
