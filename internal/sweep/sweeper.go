// Package sweep runs the periodic maintenance batches: reminder dispatch,
// overdue detection and notification cleanup. Sweeps are idempotent over
// records that no longer match their predicate, and a failure on one record
// never aborts the rest of the batch.
package sweep

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/ukydev/fleet-maintenance/internal/scheduling"
)

// Notifications marked read are purged once older than this.
const cleanupRetentionDays = 90

// Sweeper executes the periodic maintenance batches against the record store.
type Sweeper struct {
	tasks         db.TaskCollection
	vehicles      db.VehicleCollection
	notifications db.NotificationCollection
	notifier      notify.Notifier
	clock         clock.Clock
}

// NewSweeper creates a sweeper.
func NewSweeper(tasks db.TaskCollection, vehicles db.VehicleCollection, notifications db.NotificationCollection, notifier notify.Notifier, clk clock.Clock) *Sweeper {
	return &Sweeper{
		tasks:         tasks,
		vehicles:      vehicles,
		notifications: notifications,
		notifier:      notifier,
		clock:         clk,
	}
}

// RunReminderSweep notifies for every scheduled task whose reminder date has
// arrived and whose reminder has not been sent, then sets the sent flag.
// Returns the number of tasks reminded.
func (s *Sweeper) RunReminderSweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	due, err := s.tasks.FindDueReminders(ctx, scheduling.DayEnd(now))
	if err != nil {
		return 0, fmt.Errorf("failed to query due reminders: %w", err)
	}

	reminded := 0
	for i := range due {
		task := due[i]
		if err := s.remind(ctx, &task, now); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"sweep":   "reminder",
				"task_id": task.ID.Hex(),
			}).Warn("failed to process reminder, continuing")
			continue
		}
		reminded++
	}
	return reminded, nil
}

func (s *Sweeper) remind(ctx context.Context, task *models.MaintenanceTask, now time.Time) error {
	vehicleName := s.vehicleName(ctx, task.VehicleID)
	date := ""
	if d := task.RelevantDate(); d != nil {
		date = d.Format("2006-01-02")
	}
	n := models.Notification{
		Type:      models.NotificationMaintenanceReminder,
		Title:     "Upcoming maintenance",
		Message:   fmt.Sprintf("%s for vehicle %s is due on %s", taskLabel(task), vehicleName, date),
		RelatedID: task.ID.Hex(),
		Priority:  task.Priority,
		Status:    models.NotificationUnread,
		CreatedAt: now,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return err
	}

	task.ReminderSent = true
	err := s.tasks.UpdateTaskIfStatus(ctx, task.ID.Hex(), []models.TaskStatus{models.StatusScheduled}, *task)
	if err == db.ErrStaleStatus {
		// Task left the scheduled state since selection; nothing to flag.
		return nil
	}
	return err
}

// RunOverdueSweep transitions scheduled tasks whose tracked date passed
// before the start of today into overdue, notifies for each, and escalates
// the vehicle of any critical-priority task to under maintenance. Returns
// the number of tasks transitioned.
func (s *Sweeper) RunOverdueSweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	dayStart := scheduling.DayStart(now)
	candidates, err := s.tasks.FindOverdue(ctx, dayStart)
	if err != nil {
		return 0, fmt.Errorf("failed to query overdue candidates: %w", err)
	}

	transitioned := 0
	for i := range candidates {
		task := candidates[i]
		if task.Status != models.StatusScheduled {
			// Already overdue from an earlier pass.
			continue
		}
		if err := s.markOverdue(ctx, &task, dayStart, now); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"sweep":   "overdue",
				"task_id": task.ID.Hex(),
			}).Warn("failed to process overdue task, continuing")
			continue
		}
		transitioned++
	}
	return transitioned, nil
}

func (s *Sweeper) markOverdue(ctx context.Context, task *models.MaintenanceTask, dayStart, now time.Time) error {
	daysOverdue := 0
	if d := task.RelevantDate(); d != nil {
		daysOverdue = int(dayStart.Sub(scheduling.DayStart(*d)).Hours() / 24)
	}

	task.Status = models.StatusOverdue
	err := s.tasks.UpdateTaskIfStatus(ctx, task.ID.Hex(), []models.TaskStatus{models.StatusScheduled}, *task)
	if err == db.ErrStaleStatus {
		// Completed or cancelled between selection and update.
		return nil
	}
	if err != nil {
		return err
	}

	vehicleName := s.vehicleName(ctx, task.VehicleID)
	n := models.Notification{
		Type:      models.NotificationMaintenanceOverdue,
		Title:     "Maintenance overdue",
		Message:   fmt.Sprintf("%s for vehicle %s is %d day(s) overdue", taskLabel(task), vehicleName, daysOverdue),
		RelatedID: task.ID.Hex(),
		Priority:  escalate(task.Priority),
		Status:    models.NotificationUnread,
		CreatedAt: now,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		// The transition already happened; the alert is best effort.
		log.WithError(err).WithField("task_id", task.ID.Hex()).Warn("failed to emit overdue notification")
	}

	if task.Priority == models.PriorityCritical {
		if err := s.vehicles.UpdateVehicleStatus(ctx, task.VehicleID, models.VehicleUnderMaintenance); err != nil {
			log.WithError(err).WithField("vehicle_id", task.VehicleID).Warn("failed to escalate vehicle status")
		}
	}
	return nil
}

// RunCleanupSweep purges read notifications older than the retention window.
// Returns the number of notifications deleted.
func (s *Sweeper) RunCleanupSweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -cleanupRetentionDays)
	deleted, err := s.notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return int(deleted), nil
}

func (s *Sweeper) vehicleName(ctx context.Context, vehicleID string) string {
	vehicle, err := s.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return vehicleID
	}
	return vehicle.Name()
}

func taskLabel(task *models.MaintenanceTask) string {
	if task.Description != "" {
		return task.Description
	}
	return string(task.MaintenanceType) + " maintenance"
}

// escalate bumps a priority one step for overdue alerts, capped at critical.
func escalate(p models.Priority) models.Priority {
	switch p {
	case models.PriorityLow:
		return models.PriorityMedium
	case models.PriorityMedium:
		return models.PriorityHigh
	default:
		return models.PriorityCritical
	}
}
