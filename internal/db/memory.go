package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory implementations of the collection interfaces, used by tests and
// for running the service without a MongoDB instance.

// MemTaskCollection is an in-memory TaskCollection.
type MemTaskCollection struct {
	mu    sync.RWMutex
	tasks map[string]models.MaintenanceTask
}

// NewMemTaskCollection creates an empty in-memory task collection.
func NewMemTaskCollection() *MemTaskCollection {
	return &MemTaskCollection{tasks: make(map[string]models.MaintenanceTask)}
}

// InsertTask stores a task under a fresh ID.
func (c *MemTaskCollection) InsertTask(ctx context.Context, task models.MaintenanceTask) (primitive.ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := primitive.NewObjectID()
	task.ID = id
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	c.tasks[id.Hex()] = task
	return id, nil
}

// FindTaskByID returns a copy of the stored task.
func (c *MemTaskCollection) FindTaskByID(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	task, ok := c.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

// UpdateTask replaces a stored task.
func (c *MemTaskCollection) UpdateTask(ctx context.Context, id string, task models.MaintenanceTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.ID = stored.ID
	task.UpdatedAt = time.Now()
	c.tasks[id] = task
	return nil
}

// UpdateTaskIfStatus replaces a stored task only while its status matches.
func (c *MemTaskCollection) UpdateTaskIfStatus(ctx context.Context, id string, expected []models.TaskStatus, task models.MaintenanceTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.tasks[id]
	if !ok {
		return ErrNotFound
	}
	matched := false
	for _, status := range expected {
		if stored.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return ErrStaleStatus
	}
	task.ID = stored.ID
	task.UpdatedAt = time.Now()
	c.tasks[id] = task
	return nil
}

// FindScheduledBetween returns scheduled tasks whose tracked date falls within [from, to].
func (c *MemTaskCollection) FindScheduledBetween(ctx context.Context, from, to time.Time) ([]models.MaintenanceTask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.MaintenanceTask
	for _, task := range c.tasks {
		if task.Status != models.StatusScheduled {
			continue
		}
		d := task.RelevantDate()
		if d == nil || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// FindOverdue returns overdue tasks plus scheduled tasks past dayStart.
func (c *MemTaskCollection) FindOverdue(ctx context.Context, dayStart time.Time) ([]models.MaintenanceTask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.MaintenanceTask
	for _, task := range c.tasks {
		if task.Status == models.StatusOverdue {
			out = append(out, task)
			continue
		}
		if task.Status != models.StatusScheduled {
			continue
		}
		if d := task.RelevantDate(); d != nil && d.Before(dayStart) {
			out = append(out, task)
		}
	}
	return out, nil
}

// FindDueReminders returns scheduled tasks with an unsent, due reminder.
func (c *MemTaskCollection) FindDueReminders(ctx context.Context, now time.Time) ([]models.MaintenanceTask, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.MaintenanceTask
	for _, task := range c.tasks {
		if task.Status != models.StatusScheduled || task.ReminderSent {
			continue
		}
		if task.ReminderDate != nil && !task.ReminderDate.After(now) {
			out = append(out, task)
		}
	}
	return out, nil
}

// CountByStatus returns task counts grouped by status.
func (c *MemTaskCollection) CountByStatus(ctx context.Context, vehicleID string) (map[models.TaskStatus]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[models.TaskStatus]int64)
	for _, task := range c.tasks {
		if vehicleID != "" && task.VehicleID != vehicleID {
			continue
		}
		counts[task.Status]++
	}
	return counts, nil
}

// CountScheduledBetween counts scheduled tasks whose tracked date falls within [from, to].
func (c *MemTaskCollection) CountScheduledBetween(ctx context.Context, vehicleID string, from, to time.Time) (int64, error) {
	tasks, err := c.FindScheduledBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, task := range tasks {
		if vehicleID == "" || task.VehicleID == vehicleID {
			n++
		}
	}
	return n, nil
}

// AverageCost returns the mean cost over tasks with a positive cost.
func (c *MemTaskCollection) AverageCost(ctx context.Context, vehicleID string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var sum float64
	var n int
	for _, task := range c.tasks {
		if vehicleID != "" && task.VehicleID != vehicleID {
			continue
		}
		if task.Cost != nil && *task.Cost > 0 {
			sum += *task.Cost
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// MemVehicleCollection is an in-memory VehicleCollection.
type MemVehicleCollection struct {
	mu       sync.RWMutex
	vehicles map[string]models.Vehicle
}

// NewMemVehicleCollection creates an empty in-memory vehicle collection.
func NewMemVehicleCollection() *MemVehicleCollection {
	return &MemVehicleCollection{vehicles: make(map[string]models.Vehicle)}
}

// InsertVehicle stores a vehicle under a fresh ID.
func (c *MemVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (primitive.ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := primitive.NewObjectID()
	vehicle.ID = id
	vehicle.CreatedAt = time.Now()
	vehicle.UpdatedAt = time.Now()
	c.vehicles[id.Hex()] = vehicle
	return id, nil
}

// FindVehicleByID returns a copy of the stored vehicle.
func (c *MemVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vehicle, ok := c.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &vehicle, nil
}

// FindVehicles returns all stored vehicles.
func (c *MemVehicleCollection) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Vehicle, 0, len(c.vehicles))
	for _, vehicle := range c.vehicles {
		out = append(out, vehicle)
	}
	return out, nil
}

// UpdateVehicleStatus sets a stored vehicle's status.
func (c *MemVehicleCollection) UpdateVehicleStatus(ctx context.Context, id string, status models.VehicleStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	vehicle, ok := c.vehicles[id]
	if !ok {
		return ErrNotFound
	}
	vehicle.Status = status
	vehicle.UpdatedAt = time.Now()
	c.vehicles[id] = vehicle
	return nil
}

// MemNotificationCollection is an in-memory NotificationCollection.
type MemNotificationCollection struct {
	mu            sync.RWMutex
	notifications map[string]models.Notification
}

// NewMemNotificationCollection creates an empty in-memory notification collection.
func NewMemNotificationCollection() *MemNotificationCollection {
	return &MemNotificationCollection{notifications: make(map[string]models.Notification)}
}

// InsertNotification stores a notification under a fresh ID.
func (c *MemNotificationCollection) InsertNotification(ctx context.Context, n models.Notification) (primitive.ObjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := primitive.NewObjectID()
	n.ID = id
	if n.Status == "" {
		n.Status = models.NotificationUnread
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	c.notifications[id.Hex()] = n
	return id, nil
}

// FindNotifications returns notifications, newest first.
func (c *MemNotificationCollection) FindNotifications(ctx context.Context, unreadOnly bool, limit int64) ([]models.Notification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Notification
	for _, n := range c.notifications {
		if unreadOnly && n.Status != models.NotificationUnread {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkNotificationRead marks a stored notification as read.
func (c *MemNotificationCollection) MarkNotificationRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = models.NotificationRead
	c.notifications[id] = n
	return nil
}

// DeleteReadBefore purges read notifications created before the cutoff.
func (c *MemNotificationCollection) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var deleted int64
	for id, n := range c.notifications {
		if n.Status == models.NotificationRead && n.CreatedAt.Before(cutoff) {
			delete(c.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// MemUserCollection is an in-memory UserCollection.
type MemUserCollection struct {
	mu    sync.RWMutex
	users map[string]models.User // keyed by username
}

// NewMemUserCollection creates an empty in-memory user collection.
func NewMemUserCollection() *MemUserCollection {
	return &MemUserCollection{users: make(map[string]models.User)}
}

// InsertUser stores a user record.
func (c *MemUserCollection) InsertUser(ctx context.Context, user models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	c.users[user.Username] = user
	return nil
}

// FindUserByUsername finds a user by username.
func (c *MemUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// UpdateLastLogin records the time of a successful login.
func (c *MemUserCollection) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for username, user := range c.users {
		if user.ID.Hex() == id {
			user.LastLogin = &at
			user.UpdatedAt = time.Now()
			c.users[username] = user
			return nil
		}
	}
	return ErrNotFound
}
