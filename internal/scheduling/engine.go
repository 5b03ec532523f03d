// Package scheduling implements the maintenance scheduling engine: task
// creation and lifecycle transitions, recurrence spawning, and the date
// arithmetic behind reminders and overdue detection. The engine is pure
// domain logic over the record store; it owns no timers.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

// DefaultUpcomingDays is the window used when a caller does not specify one.
const DefaultUpcomingDays = 30

// Engine performs maintenance task operations against the record store.
type Engine struct {
	tasks    db.TaskCollection
	vehicles db.VehicleCollection
	notifier notify.Notifier
	clock    clock.Clock
}

// NewEngine creates a scheduling engine.
func NewEngine(tasks db.TaskCollection, vehicles db.VehicleCollection, notifier notify.Notifier, clk clock.Clock) *Engine {
	return &Engine{tasks: tasks, vehicles: vehicles, notifier: notifier, clock: clk}
}

// CreateScheduledInput carries the fields for creating a scheduled task.
type CreateScheduledInput struct {
	VehicleID         string                 `json:"vehicle_id"`
	Description       string                 `json:"description"`
	MaintenanceType   models.MaintenanceType `json:"maintenance_type,omitempty"`
	Priority          models.Priority        `json:"priority,omitempty"`
	Cost              *float64               `json:"cost,omitempty"`
	ScheduleType      models.ScheduleType    `json:"schedule_type"`
	Frequency         models.Frequency       `json:"frequency,omitempty"`
	ScheduledDate     string                 `json:"scheduled_date"`
	RecurrenceEndDate string                 `json:"recurrence_end_date,omitempty"`
	EstimatedDuration float64                `json:"estimated_duration,omitempty"`
	EstimatedMileage  float64                `json:"estimated_mileage,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
}

// CreateScheduled validates the input, persists a new scheduled task and
// emits a reminder-style notification for it.
func (e *Engine) CreateScheduled(ctx context.Context, input CreateScheduledInput) (*models.MaintenanceTask, error) {
	if input.ScheduleType == "" {
		input.ScheduleType = models.ScheduleOneTime
	}
	if !models.IsValidScheduleType(input.ScheduleType) {
		return nil, &ValidationError{Field: "schedule_type", Reason: fmt.Sprintf("unsupported value %q", input.ScheduleType)}
	}
	if input.ScheduleType == models.ScheduleRecurring {
		if input.Frequency == "" {
			return nil, &ValidationError{Field: "frequency", Reason: "required for recurring schedules"}
		}
		if !models.IsValidFrequency(input.Frequency) {
			return nil, &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unsupported value %q", input.Frequency)}
		}
	}
	scheduledDate, err := ParseDate(input.ScheduledDate)
	if err != nil {
		return nil, &ValidationError{Field: "scheduled_date", Reason: "not a valid date"}
	}
	if input.Cost != nil && *input.Cost < 0 {
		return nil, &ValidationError{Field: "cost", Reason: "must not be negative"}
	}
	var recurrenceEnd *time.Time
	if input.RecurrenceEndDate != "" {
		end, err := ParseDate(input.RecurrenceEndDate)
		if err != nil {
			return nil, &ValidationError{Field: "recurrence_end_date", Reason: "not a valid date"}
		}
		recurrenceEnd = &end
	}
	maintenanceType, priority, err := normalizeTypeAndPriority(input.MaintenanceType, input.Priority)
	if err != nil {
		return nil, err
	}

	vehicle, err := e.vehicles.FindVehicleByID(ctx, input.VehicleID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Resource: "vehicle", ID: input.VehicleID}
		}
		return nil, fmt.Errorf("failed to look up vehicle: %w", err)
	}

	reminder := ReminderFor(scheduledDate)
	task := models.MaintenanceTask{
		VehicleID:         input.VehicleID,
		Description:       input.Description,
		MaintenanceType:   maintenanceType,
		Priority:          priority,
		Cost:              input.Cost,
		ScheduledDate:     &scheduledDate,
		ReminderDate:      &reminder,
		IsScheduled:       true,
		ScheduleType:      input.ScheduleType,
		Status:            models.StatusScheduled,
		Notes:             input.Notes,
		EstimatedDuration: input.EstimatedDuration,
		EstimatedMileage:  input.EstimatedMileage,
	}
	if input.ScheduleType == models.ScheduleRecurring {
		task.Frequency = input.Frequency
		task.NextScheduledDate = &scheduledDate
		task.RecurrenceEndDate = recurrenceEnd
	}

	id, err := e.tasks.InsertTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.ID = id

	e.emitScheduledNotification(ctx, &task, vehicle)
	return &task, nil
}

// UpdatePatch carries the editable fields of a scheduled task. Nil fields
// are left unchanged.
type UpdatePatch struct {
	Description       *string                 `json:"description,omitempty"`
	Cost              *float64                `json:"cost,omitempty"`
	ScheduledDate     *string                 `json:"scheduled_date,omitempty"`
	EstimatedDuration *float64                `json:"estimated_duration,omitempty"`
	Priority          *models.Priority        `json:"priority,omitempty"`
	Notes             *string                 `json:"notes,omitempty"`
	Frequency         *models.Frequency       `json:"frequency,omitempty"`
	RecurrenceEndDate *string                 `json:"recurrence_end_date,omitempty"`
	MaintenanceType   *models.MaintenanceType `json:"maintenance_type,omitempty"`
	EstimatedMileage  *float64                `json:"estimated_mileage,omitempty"`
}

// UpdateScheduled applies a patch to a task that is still in scheduled
// status, recomputing the reminder date when the scheduled date moves.
func (e *Engine) UpdateScheduled(ctx context.Context, id string, patch UpdatePatch) (*models.MaintenanceTask, error) {
	task, err := e.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusScheduled {
		return nil, &InvalidStateError{Op: "update", Status: task.Status}
	}

	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Cost != nil {
		if *patch.Cost < 0 {
			return nil, &ValidationError{Field: "cost", Reason: "must not be negative"}
		}
		task.Cost = patch.Cost
	}
	if patch.ScheduledDate != nil {
		scheduledDate, err := ParseDate(*patch.ScheduledDate)
		if err != nil {
			return nil, &ValidationError{Field: "scheduled_date", Reason: "not a valid date"}
		}
		reminder := ReminderFor(scheduledDate)
		task.ScheduledDate = &scheduledDate
		task.ReminderDate = &reminder
		if task.ScheduleType == models.ScheduleRecurring {
			task.NextScheduledDate = &scheduledDate
		}
	}
	if patch.EstimatedDuration != nil {
		task.EstimatedDuration = *patch.EstimatedDuration
	}
	if patch.Priority != nil {
		if !models.IsValidPriority(*patch.Priority) {
			return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unsupported value %q", *patch.Priority)}
		}
		task.Priority = *patch.Priority
	}
	if patch.Notes != nil {
		task.Notes = *patch.Notes
	}
	if patch.Frequency != nil {
		if task.ScheduleType != models.ScheduleRecurring {
			return nil, &ValidationError{Field: "frequency", Reason: "only recurring schedules have a frequency"}
		}
		if !models.IsValidFrequency(*patch.Frequency) {
			return nil, &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unsupported value %q", *patch.Frequency)}
		}
		task.Frequency = *patch.Frequency
	}
	if patch.RecurrenceEndDate != nil {
		end, err := ParseDate(*patch.RecurrenceEndDate)
		if err != nil {
			return nil, &ValidationError{Field: "recurrence_end_date", Reason: "not a valid date"}
		}
		task.RecurrenceEndDate = &end
	}
	if patch.MaintenanceType != nil {
		if !models.IsValidMaintenanceType(*patch.MaintenanceType) {
			return nil, &ValidationError{Field: "maintenance_type", Reason: fmt.Sprintf("unsupported value %q", *patch.MaintenanceType)}
		}
		task.MaintenanceType = *patch.MaintenanceType
	}
	if patch.EstimatedMileage != nil {
		task.EstimatedMileage = *patch.EstimatedMileage
	}

	if err := e.saveIfStatus(ctx, id, []models.TaskStatus{models.StatusScheduled}, task, "update"); err != nil {
		return nil, err
	}
	return task, nil
}

// CompletionInput carries the optional actuals recorded on completion.
type CompletionInput struct {
	ActualCost     *float64 `json:"actual_cost,omitempty"`
	CurrentMileage *float64 `json:"current_mileage,omitempty"`
}

// CompleteScheduled marks a task completed and, for a recurring series whose
// next date has not passed the recurrence end, spawns the successor task.
func (e *Engine) CompleteScheduled(ctx context.Context, id string, input CompletionInput) (*models.MaintenanceTask, error) {
	task, err := e.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsTerminal() {
		return nil, &InvalidStateError{Op: "complete", Status: task.Status}
	}
	if input.ActualCost != nil && *input.ActualCost < 0 {
		return nil, &ValidationError{Field: "actual_cost", Reason: "must not be negative"}
	}

	now := e.clock.Now()
	completable := []models.TaskStatus{models.StatusPending, models.StatusScheduled, models.StatusOverdue}
	task.Status = models.StatusCompleted
	task.CompletedAt = &now
	task.Date = &now
	if input.ActualCost != nil {
		task.Cost = input.ActualCost
	}
	if input.CurrentMileage != nil {
		task.CurrentMileage = *input.CurrentMileage
	}

	// The status guard makes the completion at-most-once: a concurrent
	// caller loses the race here instead of double-spawning the successor.
	if err := e.saveIfStatus(ctx, id, completable, task, "complete"); err != nil {
		return nil, err
	}

	if task.ScheduleType == models.ScheduleRecurring && task.Frequency != "" {
		e.spawnNextOccurrence(ctx, task)
	}
	return task, nil
}

// spawnNextOccurrence creates the follow-up task of a recurring series.
// The series ends silently when the next date cannot be computed or falls
// past the recurrence end date.
func (e *Engine) spawnNextOccurrence(ctx context.Context, completed *models.MaintenanceTask) {
	base := completed.NextScheduledDate
	if base == nil {
		base = completed.ScheduledDate
	}
	if base == nil {
		return
	}
	next, ok := Advance(*base, completed.Frequency)
	if !ok {
		return
	}
	if completed.RecurrenceEndDate != nil && next.After(*completed.RecurrenceEndDate) {
		return
	}

	reminder := ReminderFor(next)
	successor := models.MaintenanceTask{
		VehicleID:         completed.VehicleID,
		Description:       completed.Description,
		MaintenanceType:   completed.MaintenanceType,
		Priority:          completed.Priority,
		ScheduledDate:     &next,
		NextScheduledDate: &next,
		ReminderDate:      &reminder,
		RecurrenceEndDate: completed.RecurrenceEndDate,
		IsScheduled:       true,
		ScheduleType:      models.ScheduleRecurring,
		Frequency:         completed.Frequency,
		Status:            models.StatusScheduled,
		Notes:             completed.Notes,
		EstimatedDuration: completed.EstimatedDuration,
		EstimatedMileage:  completed.EstimatedMileage,
	}
	id, err := e.tasks.InsertTask(ctx, successor)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"task_id":    completed.ID.Hex(),
			"vehicle_id": completed.VehicleID,
		}).Error("failed to spawn next occurrence of recurring maintenance")
		return
	}
	successor.ID = id

	vehicle, err := e.vehicles.FindVehicleByID(ctx, successor.VehicleID)
	if err != nil {
		vehicle = nil
	}
	e.emitScheduledNotification(ctx, &successor, vehicle)
}

// CancelScheduled cancels a scheduled or overdue task, recording the reason.
func (e *Engine) CancelScheduled(ctx context.Context, id, reason string) (*models.MaintenanceTask, error) {
	task, err := e.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusScheduled && task.Status != models.StatusOverdue {
		return nil, &InvalidStateError{Op: "cancel", Status: task.Status}
	}

	cancellable := []models.TaskStatus{models.StatusScheduled, models.StatusOverdue}
	task.Status = models.StatusCancelled
	if reason != "" {
		note := "Cancelled: " + reason
		if task.Notes != "" {
			note = task.Notes + "\n" + note
		}
		task.Notes = note
	}
	if err := e.saveIfStatus(ctx, id, cancellable, task, "cancel"); err != nil {
		return nil, err
	}
	return task, nil
}

// UpcomingScheduled returns scheduled tasks whose tracked date falls between
// the start of today and the end of the day daysAhead from now, soonest first.
func (e *Engine) UpcomingScheduled(ctx context.Context, daysAhead int) ([]models.MaintenanceTask, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultUpcomingDays
	}
	now := e.clock.Now()
	from := DayStart(now)
	to := DayEnd(now.AddDate(0, 0, daysAhead))
	tasks, err := e.tasks.FindScheduledBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool {
		di, dj := tasks[i].RelevantDate(), tasks[j].RelevantDate()
		if di == nil || dj == nil {
			return dj == nil && di != nil
		}
		return di.Before(*dj)
	})
	return tasks, nil
}

// OverdueScheduled returns tasks already marked overdue plus scheduled tasks
// whose tracked date passed before the start of today.
func (e *Engine) OverdueScheduled(ctx context.Context) ([]models.MaintenanceTask, error) {
	tasks, err := e.tasks.FindOverdue(ctx, DayStart(e.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue tasks: %w", err)
	}
	return tasks, nil
}

// StatsSummary aggregates maintenance counts and costs.
type StatsSummary struct {
	Total          int64                        `json:"total"`
	ByStatus       map[models.TaskStatus]int64  `json:"by_status"`
	Upcoming30Days int64                        `json:"upcoming_30_days"`
	AverageCost    float64                      `json:"average_cost"`
}

// Stats returns counts by status, the 30-day upcoming count and the mean
// cost over tasks with a positive cost, optionally scoped to one vehicle.
func (e *Engine) Stats(ctx context.Context, vehicleID string) (*StatsSummary, error) {
	counts, err := e.tasks.CountByStatus(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	summary := &StatsSummary{ByStatus: counts}
	for _, n := range counts {
		summary.Total += n
	}

	now := e.clock.Now()
	upcoming, err := e.tasks.CountScheduledBetween(ctx, vehicleID, DayStart(now), DayEnd(now.AddDate(0, 0, DefaultUpcomingDays)))
	if err != nil {
		return nil, fmt.Errorf("failed to count upcoming tasks: %w", err)
	}
	summary.Upcoming30Days = upcoming

	avg, err := e.tasks.AverageCost(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to average cost: %w", err)
	}
	summary.AverageCost = avg
	return summary, nil
}

// CreateRecordInput carries the fields for an ad-hoc maintenance record.
type CreateRecordInput struct {
	VehicleID       string                 `json:"vehicle_id"`
	Description     string                 `json:"description"`
	MaintenanceType models.MaintenanceType `json:"maintenance_type,omitempty"`
	Priority        models.Priority        `json:"priority,omitempty"`
	Cost            *float64               `json:"cost,omitempty"`
	Date            string                 `json:"date,omitempty"`     // when the work was performed; empty for pending work
	DueDate         string                 `json:"due_date,omitempty"` // target date for pending work
	CurrentMileage  float64                `json:"current_mileage,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
}

// CreateRecord persists an ad-hoc maintenance entry: completed immediately
// when a performed date is given, pending otherwise.
func (e *Engine) CreateRecord(ctx context.Context, input CreateRecordInput) (*models.MaintenanceTask, error) {
	if input.Cost != nil && *input.Cost < 0 {
		return nil, &ValidationError{Field: "cost", Reason: "must not be negative"}
	}
	maintenanceType, priority, err := normalizeTypeAndPriority(input.MaintenanceType, input.Priority)
	if err != nil {
		return nil, err
	}
	if _, err := e.vehicles.FindVehicleByID(ctx, input.VehicleID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Resource: "vehicle", ID: input.VehicleID}
		}
		return nil, fmt.Errorf("failed to look up vehicle: %w", err)
	}

	task := models.MaintenanceTask{
		VehicleID:       input.VehicleID,
		Description:     input.Description,
		MaintenanceType: maintenanceType,
		Priority:        priority,
		Cost:            input.Cost,
		Status:          models.StatusPending,
		Notes:           input.Notes,
		CurrentMileage:  input.CurrentMileage,
	}
	if input.Date != "" {
		performed, err := ParseDate(input.Date)
		if err != nil {
			return nil, &ValidationError{Field: "date", Reason: "not a valid date"}
		}
		task.Date = &performed
		task.CompletedAt = &performed
		task.Status = models.StatusCompleted
	} else if input.DueDate != "" {
		due, err := ParseDate(input.DueDate)
		if err != nil {
			return nil, &ValidationError{Field: "due_date", Reason: "not a valid date"}
		}
		task.DueDate = &due
	}

	id, err := e.tasks.InsertTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.ID = id
	return &task, nil
}

func (e *Engine) findTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	task, err := e.tasks.FindTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, &NotFoundError{Resource: "task", ID: id}
		}
		return nil, fmt.Errorf("failed to look up task: %w", err)
	}
	return task, nil
}

// saveIfStatus persists the task under a status guard, translating a lost
// race or a vanished record into the matching domain error.
func (e *Engine) saveIfStatus(ctx context.Context, id string, expected []models.TaskStatus, task *models.MaintenanceTask, op string) error {
	err := e.tasks.UpdateTaskIfStatus(ctx, id, expected, *task)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return &NotFoundError{Resource: "task", ID: id}
	case errors.Is(err, db.ErrStaleStatus):
		current, lookupErr := e.tasks.FindTaskByID(ctx, id)
		if lookupErr == nil {
			return &InvalidStateError{Op: op, Status: current.Status}
		}
		return &InvalidStateError{Op: op}
	default:
		return fmt.Errorf("failed to save task: %w", err)
	}
}

// emitScheduledNotification records the reminder-style alert for a freshly
// scheduled task. Emission is best effort and never fails the operation.
func (e *Engine) emitScheduledNotification(ctx context.Context, task *models.MaintenanceTask, vehicle *models.Vehicle) {
	vehicleName := task.VehicleID
	if vehicle != nil {
		vehicleName = vehicle.Name()
	}
	date := ""
	if task.ScheduledDate != nil {
		date = task.ScheduledDate.Format("2006-01-02")
	}
	n := models.Notification{
		Type:      models.NotificationMaintenanceReminder,
		Title:     "Maintenance scheduled",
		Message:   fmt.Sprintf("%s for vehicle %s scheduled for %s", taskLabel(task), vehicleName, date),
		RelatedID: task.ID.Hex(),
		Priority:  task.Priority,
		Status:    models.NotificationUnread,
		CreatedAt: e.clock.Now(),
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		log.WithError(err).WithField("task_id", task.ID.Hex()).Warn("failed to emit scheduling notification")
	}
}

func taskLabel(task *models.MaintenanceTask) string {
	if s := strings.TrimSpace(task.Description); s != "" {
		return s
	}
	return string(task.MaintenanceType) + " maintenance"
}

func normalizeTypeAndPriority(m models.MaintenanceType, p models.Priority) (models.MaintenanceType, models.Priority, error) {
	if m == "" {
		m = models.MaintenanceRoutine
	}
	if !models.IsValidMaintenanceType(m) {
		return "", "", &ValidationError{Field: "maintenance_type", Reason: fmt.Sprintf("unsupported value %q", m)}
	}
	if p == "" {
		p = models.PriorityMedium
	}
	if !models.IsValidPriority(p) {
		return "", "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unsupported value %q", p)}
	}
	return m, p, nil
}
