package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// integrationCollection connects to the MongoDB named by MONGO_URI and hands
// back a throwaway collection, skipping the test when no instance is reachable.
func integrationCollection(t *testing.T, name string) *mongo.Collection {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("failed to ping: %v, skipping integration test", err)
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "fleet_test"
	}
	coll := client.Database(dbName).Collection(fmt.Sprintf("%s_%d", name, time.Now().UnixNano()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = coll.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return coll
}

func TestTaskRoundTrip_Integration(t *testing.T) {
	coll := &MongoTaskCollection{Collection: integrationCollection(t, "tasks")}
	ctx := context.Background()

	scheduled := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	id, err := coll.InsertTask(ctx, models.MaintenanceTask{
		VehicleID:     "veh-1",
		Description:   "Brake inspection",
		Status:        models.StatusScheduled,
		ScheduleType:  models.ScheduleOneTime,
		ScheduledDate: &scheduled,
	})
	if err != nil {
		t.Fatalf("expected insert to succeed, got error: %v", err)
	}

	found, err := coll.FindTaskByID(ctx, id.Hex())
	if err != nil {
		t.Fatalf("expected find to succeed, got error: %v", err)
	}
	if found.Description != "Brake inspection" {
		t.Errorf("expected description to round-trip, got %q", found.Description)
	}
	if found.Status != models.StatusScheduled {
		t.Errorf("expected scheduled status, got %q", found.Status)
	}

	if _, err := coll.FindTaskByID(ctx, "64f000000000000000000000"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestUpdateTaskIfStatus_Integration(t *testing.T) {
	coll := &MongoTaskCollection{Collection: integrationCollection(t, "tasks")}
	ctx := context.Background()

	scheduled := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	task := models.MaintenanceTask{
		VehicleID:     "veh-1",
		Status:        models.StatusScheduled,
		ScheduleType:  models.ScheduleOneTime,
		ScheduledDate: &scheduled,
	}
	id, err := coll.InsertTask(ctx, task)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	task.Status = models.StatusCompleted
	if err := coll.UpdateTaskIfStatus(ctx, id.Hex(), []models.TaskStatus{models.StatusScheduled}, task); err != nil {
		t.Fatalf("expected guarded update to succeed, got error: %v", err)
	}

	// Second transition out of scheduled must lose the guard.
	task.Status = models.StatusCancelled
	err = coll.UpdateTaskIfStatus(ctx, id.Hex(), []models.TaskStatus{models.StatusScheduled}, task)
	if err != ErrStaleStatus {
		t.Errorf("expected ErrStaleStatus, got %v", err)
	}

	err = coll.UpdateTaskIfStatus(ctx, "64f000000000000000000000", []models.TaskStatus{models.StatusScheduled}, task)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestSweepPredicates_Integration(t *testing.T) {
	coll := &MongoTaskCollection{Collection: integrationCollection(t, "tasks")}
	ctx := context.Background()
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	mk := func(status models.TaskStatus, scheduleType models.ScheduleType, scheduled time.Time, reminderSent bool) models.MaintenanceTask {
		reminder := scheduled.AddDate(0, 0, -7)
		task := models.MaintenanceTask{
			VehicleID:     "veh-1",
			Status:        status,
			ScheduleType:  scheduleType,
			ScheduledDate: &scheduled,
			ReminderDate:  &reminder,
			ReminderSent:  reminderSent,
		}
		if scheduleType == models.ScheduleRecurring {
			task.NextScheduledDate = &scheduled
		}
		return task
	}

	// Due inside the window, reminder pending.
	if _, err := coll.InsertTask(ctx, mk(models.StatusScheduled, models.ScheduleOneTime, now.AddDate(0, 0, 3), false)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	// Past its date, still scheduled.
	if _, err := coll.InsertTask(ctx, mk(models.StatusScheduled, models.ScheduleRecurring, now.AddDate(0, 0, -2), true)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	// Completed work never surfaces in the sweeps.
	if _, err := coll.InsertTask(ctx, mk(models.StatusCompleted, models.ScheduleOneTime, now.AddDate(0, 0, -2), true)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	between, err := coll.FindScheduledBetween(ctx, now, now.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("FindScheduledBetween failed: %v", err)
	}
	if len(between) != 1 {
		t.Errorf("expected 1 upcoming task, got %d", len(between))
	}

	overdue, err := coll.FindOverdue(ctx, now)
	if err != nil {
		t.Fatalf("FindOverdue failed: %v", err)
	}
	if len(overdue) != 1 {
		t.Errorf("expected 1 overdue task, got %d", len(overdue))
	}

	reminders, err := coll.FindDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("FindDueReminders failed: %v", err)
	}
	if len(reminders) != 1 {
		t.Errorf("expected 1 due reminder, got %d", len(reminders))
	}

	counts, err := coll.CountByStatus(ctx, "")
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.StatusScheduled] != 2 || counts[models.StatusCompleted] != 1 {
		t.Errorf("unexpected status counts: %v", counts)
	}
}
