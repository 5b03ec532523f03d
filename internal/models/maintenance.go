package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus represents the lifecycle state of a maintenance task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusScheduled TaskStatus = "scheduled"
	StatusCompleted TaskStatus = "completed"
	StatusCancelled TaskStatus = "cancelled"
	StatusOverdue   TaskStatus = "overdue"
)

// ScheduleType distinguishes one-off planned work from a recurring series.
type ScheduleType string

const (
	ScheduleOneTime   ScheduleType = "one-time"
	ScheduleRecurring ScheduleType = "recurring"
)

// Frequency is the calendar unit a recurring series advances by.
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyBiWeekly   Frequency = "bi-weekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiAnnual Frequency = "semi-annual"
	FrequencyAnnual     Frequency = "annual"
)

// MaintenanceType categorizes the kind of service work.
type MaintenanceType string

const (
	MaintenanceRoutine    MaintenanceType = "routine"
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenancePredictive MaintenanceType = "predictive"
)

// Priority represents the urgency of a maintenance task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MaintenanceTask represents a vehicle maintenance record, either an ad-hoc
// entry or a scheduled (one-time or recurring) piece of work.
type MaintenanceTask struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID         string             `json:"vehicle_id" bson:"vehicle_id"`
	Description       string             `json:"description" bson:"description"`
	MaintenanceType   MaintenanceType    `json:"maintenance_type" bson:"maintenance_type"`
	Priority          Priority           `json:"priority" bson:"priority"`
	Cost              *float64           `json:"cost,omitempty" bson:"cost,omitempty"` // in USD, set on completion for scheduled work
	Date              *time.Time         `json:"date,omitempty" bson:"date,omitempty"` // ad-hoc/completed work only
	ScheduledDate     *time.Time         `json:"scheduled_date,omitempty" bson:"scheduled_date,omitempty"`
	NextScheduledDate *time.Time         `json:"next_scheduled_date,omitempty" bson:"next_scheduled_date,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	DueDate           *time.Time         `json:"due_date,omitempty" bson:"due_date,omitempty"` // legacy non-scheduled due date
	ReminderDate      *time.Time         `json:"reminder_date,omitempty" bson:"reminder_date,omitempty"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date,omitempty" bson:"recurrence_end_date,omitempty"`
	IsScheduled       bool               `json:"is_scheduled" bson:"is_scheduled"`
	ScheduleType      ScheduleType       `json:"schedule_type,omitempty" bson:"schedule_type,omitempty"`
	Frequency         Frequency          `json:"frequency,omitempty" bson:"frequency,omitempty"` // recurring only
	ReminderSent      bool               `json:"reminder_sent" bson:"reminder_sent"`
	Status            TaskStatus         `json:"status" bson:"status"`
	Notes             string             `json:"notes" bson:"notes"`
	EstimatedDuration float64            `json:"estimated_duration,omitempty" bson:"estimated_duration,omitempty"` // in hours
	EstimatedMileage  float64            `json:"estimated_mileage,omitempty" bson:"estimated_mileage,omitempty"`   // in kilometers
	CurrentMileage    float64            `json:"current_mileage,omitempty" bson:"current_mileage,omitempty"`       // in kilometers
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsTerminal reports whether the task is in a state no transition leaves.
func (t *MaintenanceTask) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// RelevantDate returns the date the scheduler tracks for firing: the next
// occurrence for a recurring series, the planned date otherwise.
func (t *MaintenanceTask) RelevantDate() *time.Time {
	if t.ScheduleType == ScheduleRecurring && t.NextScheduledDate != nil {
		return t.NextScheduledDate
	}
	return t.ScheduledDate
}

// IsValidFrequency checks if a frequency is one of the supported units.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual:
		return true
	default:
		return false
	}
}

// IsValidScheduleType checks if a schedule type is supported.
func IsValidScheduleType(s ScheduleType) bool {
	return s == ScheduleOneTime || s == ScheduleRecurring
}

// IsValidMaintenanceType checks if a maintenance type is supported.
func IsValidMaintenanceType(m MaintenanceType) bool {
	switch m {
	case MaintenanceRoutine, MaintenancePreventive, MaintenanceCorrective, MaintenancePredictive:
		return true
	default:
		return false
	}
}

// IsValidPriority checks if a priority level is supported.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}
