package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

type engineFixture struct {
	engine        *Engine
	tasks         *db.MemTaskCollection
	vehicles      *db.MemVehicleCollection
	notifications *db.MemNotificationCollection
	vehicleID     string
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	tasks := db.NewMemTaskCollection()
	vehicles := db.NewMemVehicleCollection()
	notifications := db.NewMemNotificationCollection()

	vehicleID, err := vehicles.InsertVehicle(context.Background(), models.Vehicle{
		Make: "Ford", Model: "Transit", LicensePlate: "FLT-001", Status: models.VehicleActive,
	})
	require.NoError(t, err)

	notifier := notify.NewService(notifications, nil, "")
	engine := NewEngine(tasks, vehicles, notifier, clock.Fixed{T: now})
	return &engineFixture{
		engine:        engine,
		tasks:         tasks,
		vehicles:      vehicles,
		notifications: notifications,
		vehicleID:     vehicleID.Hex(),
	}
}

func (f *engineFixture) storedNotifications(t *testing.T) []models.Notification {
	t.Helper()
	out, err := f.notifications.FindNotifications(context.Background(), false, 0)
	require.NoError(t, err)
	return out
}

func floatPtr(v float64) *float64 { return &v }

func TestCreateScheduled_OneTime(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))

	task, err := f.engine.CreateScheduled(context.Background(), CreateScheduledInput{
		VehicleID:     f.vehicleID,
		Description:   "Brake inspection",
		ScheduleType:  models.ScheduleOneTime,
		ScheduledDate: "2024-03-15",
		Priority:      models.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, task.Status)
	assert.True(t, task.IsScheduled)
	require.NotNil(t, task.ScheduledDate)
	assert.Equal(t, date(2024, time.March, 15), *task.ScheduledDate)
	assert.Nil(t, task.NextScheduledDate)
	require.NotNil(t, task.ReminderDate)
	assert.Equal(t, date(2024, time.March, 8), *task.ReminderDate)
	assert.False(t, task.ReminderSent)

	notifications := f.storedNotifications(t)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationMaintenanceReminder, notifications[0].Type)
	assert.Equal(t, task.ID.Hex(), notifications[0].RelatedID)
	assert.Contains(t, notifications[0].Message, "FLT-001")
}

func TestCreateScheduled_RecurringTracksNextDate(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))

	task, err := f.engine.CreateScheduled(context.Background(), CreateScheduledInput{
		VehicleID:         f.vehicleID,
		Description:       "Oil change",
		ScheduleType:      models.ScheduleRecurring,
		Frequency:         models.FrequencyMonthly,
		ScheduledDate:     "2024-03-15",
		RecurrenceEndDate: "2024-12-31",
	})
	require.NoError(t, err)

	require.NotNil(t, task.NextScheduledDate)
	assert.Equal(t, *task.ScheduledDate, *task.NextScheduledDate)
	require.NotNil(t, task.RecurrenceEndDate)
	assert.Equal(t, models.FrequencyMonthly, task.Frequency)
}

func TestCreateScheduled_Validation(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))
	ctx := context.Background()

	var validation *ValidationError
	var notFound *NotFoundError

	_, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleRecurring, ScheduledDate: "2024-03-15",
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validation), "recurring without frequency must fail validation")

	_, err = f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "soon",
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validation))

	_, err = f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-15",
		Cost: floatPtr(-10),
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validation))

	_, err = f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: "64f000000000000000000000", ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-15",
	})
	require.Error(t, err)
	assert.True(t, errors.As(err, &notFound), "unknown vehicle must fail with not found")

	// Nothing was persisted and no notification emitted.
	assert.Empty(t, f.storedNotifications(t))
}

func TestUpdateScheduled_RecomputesReminder(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, Description: "Oil change",
		ScheduleType: models.ScheduleRecurring, Frequency: models.FrequencyMonthly,
		ScheduledDate: "2024-03-15",
	})
	require.NoError(t, err)

	moved := "2024-04-01"
	updated, err := f.engine.UpdateScheduled(ctx, task.ID.Hex(), UpdatePatch{ScheduledDate: &moved})
	require.NoError(t, err)

	require.NotNil(t, updated.ScheduledDate)
	assert.Equal(t, date(2024, time.April, 1), *updated.ScheduledDate)
	require.NotNil(t, updated.ReminderDate)
	assert.Equal(t, date(2024, time.March, 25), *updated.ReminderDate)
	// Recurring tasks mirror the scheduled date into the tracked date.
	require.NotNil(t, updated.NextScheduledDate)
	assert.Equal(t, date(2024, time.April, 1), *updated.NextScheduledDate)
}

func TestUpdateScheduled_OnlyScheduledEditable(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-15",
	})
	require.NoError(t, err)
	_, err = f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{})
	require.NoError(t, err)

	desc := "new description"
	_, err = f.engine.UpdateScheduled(ctx, task.ID.Hex(), UpdatePatch{Description: &desc})
	var invalidState *InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalidState))

	var notFound *NotFoundError
	_, err = f.engine.UpdateScheduled(ctx, "64f000000000000000000000", UpdatePatch{Description: &desc})
	require.Error(t, err)
	assert.True(t, errors.As(err, &notFound))
}

func TestCompleteScheduled_SpawnsNextOccurrence(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 20))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, Description: "Oil change",
		ScheduleType: models.ScheduleRecurring, Frequency: models.FrequencyMonthly,
		ScheduledDate: "2024-03-15", RecurrenceEndDate: "2024-12-31",
		Priority: models.PriorityHigh, Notes: "use synthetic oil",
	})
	require.NoError(t, err)

	completed, err := f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{
		ActualCost: floatPtr(120), CurrentMileage: floatPtr(54000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.Cost)
	assert.Equal(t, 120.0, *completed.Cost)
	assert.Equal(t, 54000.0, completed.CurrentMileage)

	// The successor carries the series forward one month.
	upcoming, err := f.engine.UpcomingScheduled(ctx, 60)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	successor := upcoming[0]
	assert.NotEqual(t, task.ID, successor.ID)
	assert.Equal(t, models.StatusScheduled, successor.Status)
	require.NotNil(t, successor.ScheduledDate)
	assert.Equal(t, date(2024, time.April, 15), *successor.ScheduledDate)
	require.NotNil(t, successor.NextScheduledDate)
	assert.Equal(t, date(2024, time.April, 15), *successor.NextScheduledDate)
	require.NotNil(t, successor.ReminderDate)
	assert.Equal(t, date(2024, time.April, 8), *successor.ReminderDate)
	assert.False(t, successor.ReminderSent)
	assert.Equal(t, "Oil change", successor.Description)
	assert.Equal(t, models.PriorityHigh, successor.Priority)
	assert.Equal(t, "use synthetic oil", successor.Notes)
	assert.Nil(t, successor.Cost, "actuals do not carry into the successor")

	// One notification for the original, one for the spawn.
	assert.Len(t, f.storedNotifications(t), 2)
}

func TestCompleteScheduled_RecurrenceEndStopsSeries(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 20))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, Description: "Oil change",
		ScheduleType: models.ScheduleRecurring, Frequency: models.FrequencyMonthly,
		ScheduledDate: "2024-03-15", RecurrenceEndDate: "2024-04-10",
	})
	require.NoError(t, err)

	_, err = f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{})
	require.NoError(t, err)

	// Next date 2024-04-15 exceeds the end date, so no successor exists.
	upcoming, err := f.engine.UpcomingScheduled(ctx, 365)
	require.NoError(t, err)
	assert.Empty(t, upcoming)
	assert.Len(t, f.storedNotifications(t), 1, "only the creation notification")
}

func TestCompleteScheduled_SecondCallFails(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 20))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleRecurring,
		Frequency: models.FrequencyMonthly, ScheduledDate: "2024-03-15",
	})
	require.NoError(t, err)

	_, err = f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{})
	require.NoError(t, err)

	_, err = f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{})
	var invalidState *InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalidState))

	// Exactly one spawn happened.
	upcoming, err := f.engine.UpcomingScheduled(ctx, 365)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)
}

func TestCompleteScheduled_NegativeActualCost(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 20))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-15",
	})
	require.NoError(t, err)

	_, err = f.engine.CompleteScheduled(ctx, task.ID.Hex(), CompletionInput{ActualCost: floatPtr(-5)})
	var validation *ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &validation))

	current, err := f.tasks.FindTaskByID(ctx, task.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, current.Status, "failed completion must not change state")
}

func TestCancelScheduled(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))
	ctx := context.Background()

	task, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime,
		ScheduledDate: "2024-03-15", Notes: "ordered parts",
	})
	require.NoError(t, err)

	cancelled, err := f.engine.CancelScheduled(ctx, task.ID.Hex(), "vehicle sold")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "ordered parts")
	assert.Contains(t, cancelled.Notes, "Cancelled: vehicle sold")

	// Terminal states cannot be cancelled again.
	_, err = f.engine.CancelScheduled(ctx, task.ID.Hex(), "again")
	var invalidState *InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &invalidState))
}

func TestUpcomingScheduled_WindowAndOrder(t *testing.T) {
	now := date(2024, time.March, 10)
	f := newEngineFixture(t, now)
	ctx := context.Background()

	mk := func(scheduled string) {
		_, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
			VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: scheduled,
		})
		require.NoError(t, err)
	}
	mk("2024-03-25") // in window
	mk("2024-03-12") // in window, sooner
	mk("2024-03-05") // already past, excluded
	mk("2024-05-20") // beyond 30 days, excluded

	upcoming, err := f.engine.UpcomingScheduled(ctx, 0) // defaults to 30
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, date(2024, time.March, 12), *upcoming[0].ScheduledDate)
	assert.Equal(t, date(2024, time.March, 25), *upcoming[1].ScheduledDate)
}

func TestOverdueScheduled_ExcludesTerminal(t *testing.T) {
	now := date(2024, time.March, 10)
	f := newEngineFixture(t, now)
	ctx := context.Background()

	late, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-05",
	})
	require.NoError(t, err)

	done, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-04",
	})
	require.NoError(t, err)
	_, err = f.engine.CompleteScheduled(ctx, done.ID.Hex(), CompletionInput{})
	require.NoError(t, err)

	overdue, err := f.engine.OverdueScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
}

func TestStats(t *testing.T) {
	now := date(2024, time.March, 10)
	f := newEngineFixture(t, now)
	ctx := context.Background()

	_, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-20",
	})
	require.NoError(t, err)

	toComplete, err := f.engine.CreateScheduled(ctx, CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-12",
	})
	require.NoError(t, err)
	_, err = f.engine.CompleteScheduled(ctx, toComplete.ID.Hex(), CompletionInput{ActualCost: floatPtr(100)})
	require.NoError(t, err)

	_, err = f.engine.CreateRecord(ctx, CreateRecordInput{
		VehicleID: f.vehicleID, Description: "Wiper blades",
		Cost: floatPtr(300), Date: "2024-03-01",
	})
	require.NoError(t, err)

	stats, err := f.engine.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[models.StatusScheduled])
	assert.Equal(t, int64(2), stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, int64(1), stats.Upcoming30Days)
	assert.Equal(t, 200.0, stats.AverageCost)

	// Scoped to an unknown vehicle everything is empty.
	stats, err = f.engine.Stats(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}

func TestCreateRecord_PendingAndCompleted(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 10))
	ctx := context.Background()

	done, err := f.engine.CreateRecord(ctx, CreateRecordInput{
		VehicleID: f.vehicleID, Description: "Puncture repair", Date: "2024-03-02", Cost: floatPtr(40),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.Date)

	pending, err := f.engine.CreateRecord(ctx, CreateRecordInput{
		VehicleID: f.vehicleID, Description: "Check coolant", DueDate: "2024-04-01",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, pending.Status)
	require.NotNil(t, pending.DueDate)

	// Pending ad-hoc work completes through the same path.
	completed, err := f.engine.CompleteScheduled(ctx, pending.ID.Hex(), CompletionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, n models.Notification) error {
	return errors.New("sink unavailable")
}

func TestCreateScheduled_NotificationFailureIsBestEffort(t *testing.T) {
	f := newEngineFixture(t, date(2024, time.March, 1))
	engine := NewEngine(f.tasks, f.vehicles, failingNotifier{}, clock.Fixed{T: date(2024, time.March, 1)})

	task, err := engine.CreateScheduled(context.Background(), CreateScheduledInput{
		VehicleID: f.vehicleID, ScheduleType: models.ScheduleOneTime, ScheduledDate: "2024-03-15",
	})
	require.NoError(t, err, "a failed notification must not fail the create")
	assert.Equal(t, models.StatusScheduled, task.Status)
}
