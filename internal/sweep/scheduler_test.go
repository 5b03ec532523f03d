package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/notify"
)

func newIdleSweeper() *Sweeper {
	notifications := db.NewMemNotificationCollection()
	return NewSweeper(
		db.NewMemTaskCollection(),
		db.NewMemVehicleCollection(),
		notifications,
		notify.NewService(notifications, nil, ""),
		clock.Fixed{T: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)},
	)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(newIdleSweeper(), Config{ReminderHour: 8})
	require.NoError(t, s.Start())
	// Starting twice is a no-op.
	require.NoError(t, s.Start())
	s.Stop()
	// Stopping twice is safe.
	s.Stop()
}

func TestScheduler_RestartsAfterStop(t *testing.T) {
	s := NewScheduler(newIdleSweeper(), Config{ReminderHour: 8})
	require.NoError(t, s.Start())
	s.Stop()
	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_InvalidTimezone(t *testing.T) {
	s := NewScheduler(newIdleSweeper(), Config{Timezone: "Not/AZone"})
	assert.Error(t, s.Start())
}

func TestScheduler_OutOfRangeHourFallsBack(t *testing.T) {
	s := NewScheduler(newIdleSweeper(), Config{ReminderHour: 42})
	require.NoError(t, s.Start())
	s.Stop()
}
