package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTaskCollection wraps a MongoDB collection for maintenance task operations.
type MongoTaskCollection struct {
	Collection *mongo.Collection
}

// InsertTask inserts a maintenance task and returns its generated ID.
func (c *MongoTaskCollection) InsertTask(ctx context.Context, task models.MaintenanceTask) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, fmt.Errorf("mongo collection is nil")
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	result, err := c.Collection.InsertOne(ctx, task)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted ID type %T", result.InsertedID)
	}
	return id, nil
}

// FindTaskByID finds a maintenance task by its ID.
func (c *MongoTaskCollection) FindTaskByID(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var task models.MaintenanceTask
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces a maintenance task's fields by its ID.
func (c *MongoTaskCollection) UpdateTask(ctx context.Context, id string, task models.MaintenanceTask) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	task.UpdatedAt = time.Now()
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": task})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskIfStatus replaces a task only while its stored status still equals
// one of the expected pre-states. The status guard in the filter makes the
// transition at-most-once under concurrent callers.
func (c *MongoTaskCollection) UpdateTaskIfStatus(ctx context.Context, id string, expected []models.TaskStatus, task models.MaintenanceTask) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	task.UpdatedAt = time.Now()
	filter := bson.M{"_id": objectID, "status": bson.M{"$in": expected}}
	result, err := c.Collection.UpdateOne(ctx, filter, bson.M{"$set": task})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing record from a lost race.
		count, err := c.Collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// relevantDateFilter matches the date the scheduler tracks for firing: the
// next occurrence for recurring tasks, the planned date otherwise.
func relevantDateFilter(rng bson.M) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"schedule_type": models.ScheduleRecurring, "next_scheduled_date": rng},
		bson.M{"schedule_type": bson.M{"$ne": models.ScheduleRecurring}, "scheduled_date": rng},
	}}
}

// FindScheduledBetween returns scheduled tasks whose tracked date falls within [from, to].
func (c *MongoTaskCollection) FindScheduledBetween(ctx context.Context, from, to time.Time) ([]models.MaintenanceTask, error) {
	filter := bson.M{
		"status": models.StatusScheduled,
		"$and":   bson.A{relevantDateFilter(bson.M{"$gte": from, "$lte": to})},
	}
	return c.findTasks(ctx, filter)
}

// FindOverdue returns tasks already overdue plus scheduled tasks whose
// tracked date passed before dayStart.
func (c *MongoTaskCollection) FindOverdue(ctx context.Context, dayStart time.Time) ([]models.MaintenanceTask, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": models.StatusOverdue},
		bson.M{
			"status": models.StatusScheduled,
			"$and":   bson.A{relevantDateFilter(bson.M{"$lt": dayStart})},
		},
	}}
	return c.findTasks(ctx, filter)
}

// FindDueReminders returns scheduled tasks with an unsent reminder that is due.
func (c *MongoTaskCollection) FindDueReminders(ctx context.Context, now time.Time) ([]models.MaintenanceTask, error) {
	filter := bson.M{
		"status":        models.StatusScheduled,
		"reminder_sent": false,
		"reminder_date": bson.M{"$lte": now},
	}
	return c.findTasks(ctx, filter)
}

func (c *MongoTaskCollection) findTasks(ctx context.Context, filter bson.M) ([]models.MaintenanceTask, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var tasks []models.MaintenanceTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountByStatus returns task counts grouped by status, optionally scoped to a vehicle.
func (c *MongoTaskCollection) CountByStatus(ctx context.Context, vehicleID string) (map[models.TaskStatus]int64, error) {
	match := bson.M{}
	if vehicleID != "" {
		match["vehicle_id"] = vehicleID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := c.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.TaskStatus `bson:"_id"`
		Count  int64             `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountScheduledBetween counts scheduled tasks whose tracked date falls within [from, to].
func (c *MongoTaskCollection) CountScheduledBetween(ctx context.Context, vehicleID string, from, to time.Time) (int64, error) {
	filter := bson.M{
		"status": models.StatusScheduled,
		"$and":   bson.A{relevantDateFilter(bson.M{"$gte": from, "$lte": to})},
	}
	if vehicleID != "" {
		filter["vehicle_id"] = vehicleID
	}
	return c.Collection.CountDocuments(ctx, filter)
}

// AverageCost returns the mean cost over tasks with a positive cost.
func (c *MongoTaskCollection) AverageCost(ctx context.Context, vehicleID string) (float64, error) {
	match := bson.M{"cost": bson.M{"$gt": 0}}
	if vehicleID != "" {
		match["vehicle_id"] = vehicleID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$cost"}}}},
	}
	cursor, err := c.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Avg, nil
}
