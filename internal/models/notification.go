package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType identifies what kind of event produced a notification.
type NotificationType string

const (
	NotificationMaintenanceReminder NotificationType = "maintenance_reminder"
	NotificationMaintenanceOverdue  NotificationType = "maintenance_overdue"
)

// NotificationStatus tracks whether the user has seen a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification represents a user-facing alert produced by the maintenance
// engine. Delivery (UI polling, sockets) happens outside this service.
type Notification struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type      NotificationType   `json:"type" bson:"type"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	RelatedID string             `json:"related_id" bson:"related_id"` // maintenance task ID
	Priority  Priority           `json:"priority" bson:"priority"`
	Status    NotificationStatus `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
