package scheduling

import (
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// NotFoundError indicates an unknown vehicle or task ID.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError indicates malformed input: a bad date, a negative cost,
// a missing frequency for a recurring series.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError indicates an operation that is illegal for the task's
// current status, such as completing an already-completed task.
type InvalidStateError struct {
	Op     string
	Status models.TaskStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s task with status %q", e.Op, e.Status)
}
