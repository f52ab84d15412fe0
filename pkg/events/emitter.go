// Package events emits detection lifecycle events for downstream consumers
// (review tooling, notification fan-out).
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/listinglab/clover/pkg/kafka"
	"github.com/listinglab/clover/pkg/models"
)

// Event types
const (
	EventGroupCreated   = "group.created"
	EventGroupConfirmed = "group.confirmed"
	EventGroupDismissed = "group.dismissed"
	EventScanCompleted  = "scan.completed"
)

// Emitter publishes detection lifecycle events. Emission is best effort: a
// broker outage must never fail the detection run that triggered the event.
type Emitter interface {
	GroupCreated(ctx context.Context, group *models.DuplicateGroup, recordIDs []string)
	GroupResolved(ctx context.Context, group *models.DuplicateGroup, actorID string)
	ScanCompleted(ctx context.Context, logID, actorID string, summary models.FullScanSummary)
}

type kafkaEmitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewKafkaEmitter creates an emitter publishing through the Kafka producer
func NewKafkaEmitter(producer *kafka.Producer, logger ectologger.Logger) Emitter {
	return &kafkaEmitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *kafkaEmitter) GroupCreated(ctx context.Context, group *models.DuplicateGroup, recordIDs []string) {
	e.publish(ctx, &kafka.DetectionEvent{
		EventType:  EventGroupCreated,
		SubjectID:  group.ID,
		RecordIDs:  recordIDs,
		Confidence: group.ConfidenceScore,
	})
}

func (e *kafkaEmitter) GroupResolved(ctx context.Context, group *models.DuplicateGroup, actorID string) {
	eventType := EventGroupDismissed
	if group.Status == models.DuplicateGroupStatusConfirmed {
		eventType = EventGroupConfirmed
	}
	e.publish(ctx, &kafka.DetectionEvent{
		EventType:  eventType,
		SubjectID:  group.ID,
		Confidence: group.ConfidenceScore,
		ActorID:    actorID,
	})
}

func (e *kafkaEmitter) ScanCompleted(ctx context.Context, logID, actorID string, summary models.FullScanSummary) {
	details, err := json.Marshal(summary)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to marshal scan summary")
		return
	}
	e.publish(ctx, &kafka.DetectionEvent{
		EventType: EventScanCompleted,
		SubjectID: logID,
		ActorID:   actorID,
		Details:   details,
	})
}

func (e *kafkaEmitter) publish(ctx context.Context, event *kafka.DetectionEvent) {
	if err := e.producer.PublishDetectionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
			"subject_id": event.SubjectID,
		}).Warn("Failed to emit detection event")
	}
}

// Nop discards all events. Used when Kafka is disabled and in tests.
type Nop struct{}

func (Nop) GroupCreated(context.Context, *models.DuplicateGroup, []string)        {}
func (Nop) GroupResolved(context.Context, *models.DuplicateGroup, string)         {}
func (Nop) ScanCompleted(context.Context, string, string, models.FullScanSummary) {}
