package db

import (
	"context"
	"testing"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://bad:uri")
	client, err := ConnectMongo()
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestInsertTask_NilCollection(t *testing.T) {
	coll := &MongoTaskCollection{Collection: nil}
	if _, err := coll.InsertTask(context.Background(), models.MaintenanceTask{}); err == nil {
		t.Error("expected error when collection is nil")
	}
}

func TestFindTasks_NilCollection(t *testing.T) {
	coll := &MongoTaskCollection{Collection: nil}
	if _, err := coll.findTasks(context.Background(), nil); err == nil {
		t.Error("expected error when collection is nil")
	}
}

func TestInsertVehicle_NilCollection(t *testing.T) {
	coll := &MongoVehicleCollection{Collection: nil}
	if _, err := coll.InsertVehicle(context.Background(), models.Vehicle{}); err == nil {
		t.Error("expected error when collection is nil")
	}
}

func TestInsertNotification_NilCollection(t *testing.T) {
	coll := &MongoNotificationCollection{Collection: nil}
	if _, err := coll.InsertNotification(context.Background(), models.Notification{}); err == nil {
		t.Error("expected error when collection is nil")
	}
}

func TestFindTaskByID_BadHex(t *testing.T) {
	coll := &MongoTaskCollection{Collection: nil}
	if _, err := coll.FindTaskByID(context.Background(), "not-a-hex-id"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for malformed ID, got %v", err)
	}
}

func TestUpdateTaskIfStatus_BadHex(t *testing.T) {
	coll := &MongoTaskCollection{Collection: nil}
	err := coll.UpdateTaskIfStatus(context.Background(), "zzz", []models.TaskStatus{models.StatusScheduled}, models.MaintenanceTask{})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound for malformed ID, got %v", err)
	}
}
