package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskCollection defines the interface for maintenance task operations.
type TaskCollection interface {
	InsertTask(ctx context.Context, task models.MaintenanceTask) (primitive.ObjectID, error)
	FindTaskByID(ctx context.Context, id string) (*models.MaintenanceTask, error)
	UpdateTask(ctx context.Context, id string, task models.MaintenanceTask) error
	// UpdateTaskIfStatus replaces the task only while its stored status is
	// one of the expected pre-states; returns ErrStaleStatus otherwise.
	UpdateTaskIfStatus(ctx context.Context, id string, expected []models.TaskStatus, task models.MaintenanceTask) error
	// FindScheduledBetween returns scheduled tasks whose tracked date falls
	// within [from, to].
	FindScheduledBetween(ctx context.Context, from, to time.Time) ([]models.MaintenanceTask, error)
	// FindOverdue returns tasks already overdue plus scheduled tasks whose
	// tracked date is strictly before dayStart.
	FindOverdue(ctx context.Context, dayStart time.Time) ([]models.MaintenanceTask, error)
	// FindDueReminders returns scheduled tasks with an unsent reminder whose
	// reminder date is at or before the given instant.
	FindDueReminders(ctx context.Context, now time.Time) ([]models.MaintenanceTask, error)
	CountByStatus(ctx context.Context, vehicleID string) (map[models.TaskStatus]int64, error)
	CountScheduledBetween(ctx context.Context, vehicleID string, from, to time.Time) (int64, error)
	// AverageCost returns the mean cost over tasks with a positive cost, or
	// zero when none match.
	AverageCost(ctx context.Context, vehicleID string) (float64, error)
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (primitive.ObjectID, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	UpdateVehicleStatus(ctx context.Context, id string, status models.VehicleStatus) error
}

// NotificationCollection defines the interface for notification storage.
type NotificationCollection interface {
	InsertNotification(ctx context.Context, n models.Notification) (primitive.ObjectID, error)
	FindNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	// DeleteReadBefore purges read notifications created before the cutoff
	// and returns the number removed.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserCollection defines the interface for operator account operations.
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
