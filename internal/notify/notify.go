// Package notify records user-facing alerts produced by the maintenance
// engine. Alerts are persisted for the dashboard to poll; an optional MQTT
// publisher mirrors them to the broker for live consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Notifier records a notification entry.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Publisher pushes raw notification payloads to an external transport.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// Service persists notifications and mirrors them to an optional publisher.
// Publishing is best effort: a broker failure is logged, never returned.
type Service struct {
	store       db.NotificationCollection
	publisher   Publisher
	topicPrefix string
}

// NewService creates a notification service. publisher may be nil.
func NewService(store db.NotificationCollection, publisher Publisher, topicPrefix string) *Service {
	if topicPrefix == "" {
		topicPrefix = "fleet/notifications"
	}
	return &Service{store: store, publisher: publisher, topicPrefix: topicPrefix}
}

// Notify stores the notification and mirrors it to the publisher.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	id, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	n.ID = id

	if s.publisher != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			log.WithError(err).Warn("failed to encode notification for publish")
			return nil
		}
		topic := s.topicPrefix + "/" + string(n.Type)
		if err := s.publisher.Publish(topic, payload); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("failed to publish notification")
		}
	}
	return nil
}
