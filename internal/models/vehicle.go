package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleStatus is the operational state of a fleet vehicle.
type VehicleStatus string

const (
	VehicleActive           VehicleStatus = "active"
	VehicleInactive         VehicleStatus = "inactive"
	VehicleUnderMaintenance VehicleStatus = "under_maintenance"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type         string             `bson:"type" json:"type"` // "ICE" or "EV"
	Make         string             `bson:"make" json:"make"`
	Model        string             `bson:"model" json:"model"`
	Year         int                `bson:"year" json:"year"`
	LicensePlate string             `bson:"license_plate" json:"license_plate"`
	Mileage      float64            `bson:"mileage" json:"mileage"` // in kilometers
	Status       VehicleStatus      `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Name returns a short human-readable label for the vehicle.
func (v *Vehicle) Name() string {
	if v.LicensePlate != "" {
		return v.LicensePlate
	}
	return v.Make + " " + v.Model
}
