// Package store provides the persistence layer for silos, sensor readings,
// alerts, predictions and event logs, backed by PostgreSQL.
package store

import (
	"time"
)

// Reading sources.
const (
	SourceSimulation = "simulation"
	SourceHardware   = "hardware"
	SourceManual     = "manual"
)

// Alert types raised by the engines.
const (
	AlertTemperatureExceed = "temperature_exceed"
	AlertHumidityExceed    = "humidity_exceed"
	AlertCo2Exceed         = "co2_exceed"
	AlertO2Breach          = "o2_breach"
	AlertBatteryLow        = "battery_low"
	AlertSproutingRisk     = "sprouting_risk"
	AlertDecayRisk         = "decay_risk"
	AlertSystemWarning     = "system_warning"
	AlertManualOverride    = "manual_override"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Event log types written by the engines.
const (
	EventAlertTriggered      = "alert_triggered"
	EventPredictionGenerated = "prediction_generated"
)

// User represents a farmer account. The core only reads ID and DeviceTokens;
// the remaining fields belong to the authentication service.
type User struct {
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Phone        string
	Role         string    `gorm:"default:farmer"`
	DeviceTokens []string  `gorm:"serializer:json"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
	ID           uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// Thresholds holds the per-metric alert bounds for a silo. A zero value
// means "unset" and falls back to the package defaults at evaluation time.
type Thresholds struct {
	TemperatureMin float64
	TemperatureMax float64
	HumidityMin    float64
	HumidityMax    float64
	Co2Min         float64
	Co2Max         float64
	O2Min          float64
	O2Max          float64
	BatteryMin     float64
}

// DefaultThresholds are the bounds applied when a silo has no override.
var DefaultThresholds = Thresholds{
	TemperatureMin: 15,
	TemperatureMax: 22,
	HumidityMin:    60,
	HumidityMax:    72,
	Co2Min:         3,
	Co2Max:         5.5,
	O2Min:          1,
	O2Max:          3,
	BatteryMin:     20,
}

// ControlState holds the silo's control mode and actuator flags. The
// simulator reads these to modulate the synthetic dynamics.
type ControlState struct {
	Mode      string `gorm:"default:auto"`
	VentOpen  bool
	Co2Active bool
	N2Active  bool
}

// LastReading is the denormalized cache of a silo's latest telemetry.
type LastReading struct {
	Temperature            float64
	Humidity               float64
	Co2                    float64
	O2                     float64
	Battery                float64
	HealthScore            int
	EstimatedDaysRemaining int
	ReadingAt              time.Time
}

// Silo represents an onion storage silo.
type Silo struct {
	Name        string `gorm:"not null"`
	Location    string
	Capacity    float64      // metric tonnes
	Thresholds  Thresholds   `gorm:"embedded;embeddedPrefix:threshold_"`
	State       ControlState `gorm:"embedded;embeddedPrefix:state_"`
	LastReading LastReading  `gorm:"embedded;embeddedPrefix:last_"`
	Owner       User         `gorm:"foreignKey:OwnerID"`
	CreatedAt   time.Time    `gorm:"autoCreateTime"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime"`
	OwnerID     uint         `gorm:"index;not null"`
	ID          uint         `gorm:"primaryKey"`
	IsActive    bool         `gorm:"default:true"`
}

// TableName specifies the table name for Silo model.
func (Silo) TableName() string {
	return "silos"
}

// SensorReading is one telemetry sample for a silo. Readings are append-only
// and pruned after the retention window by the retention janitor.
type SensorReading struct {
	CreatedAt              time.Time `gorm:"index:idx_reading_silo_created;index:idx_reading_created;autoCreateTime"`
	Source                 string    `gorm:"default:simulation"`
	Temperature            float64   `gorm:"not null"`
	Humidity               float64   `gorm:"not null"`
	Co2                    float64   `gorm:"not null"`
	O2                     float64   `gorm:"not null"`
	Battery                float64   `gorm:"not null"`
	HealthScore            int
	EstimatedDaysRemaining int
	SiloID                 uint `gorm:"index:idx_reading_silo_created;not null"`
	OwnerID                uint `gorm:"not null"`
	ID                     uint `gorm:"primaryKey"`
}

// TableName specifies the table name for SensorReading model.
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// Alert is a threshold breach or risk notification for a silo. At most one
// alert per (silo, type) may be created within the dedup window.
type Alert struct {
	CreatedAt      time.Time `gorm:"index:idx_alert_silo_type_created;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
	AcknowledgedAt *time.Time
	Type           string `gorm:"index:idx_alert_silo_type_created;not null"`
	SiloName       string
	Message        string `gorm:"not null"`
	Description    string
	Severity       string `gorm:"default:warning"`
	TriggeredBy    string `gorm:"default:system"`
	ActionType     string
	Value          *float64
	Threshold      *float64
	SiloID         uint `gorm:"index:idx_alert_silo_type_created;not null"`
	OwnerID        uint `gorm:"index;not null"`
	ID             uint `gorm:"primaryKey"`
	Acknowledged   bool `gorm:"default:false"`
}

// TableName specifies the table name for Alert model.
func (Alert) TableName() string {
	return "alerts"
}

// PredictionInputs is the snapshot of averaged readings a prediction was
// computed from.
type PredictionInputs struct {
	AvgTemperature      float64
	AvgHumidity         float64
	AvgCo2              float64
	AvgO2               float64
	StorageDurationDays int
}

// Prediction is one spoilage risk assessment for a silo. Predictions are
// retained indefinitely.
type Prediction struct {
	GeneratedAt       time.Time        `gorm:"not null"`
	CreatedAt         time.Time        `gorm:"index:idx_prediction_silo_created;autoCreateTime"`
	Recommendation    string
	Inputs            PredictionInputs `gorm:"embedded;embeddedPrefix:input_"`
	SpoilageRisk      int
	EstimatedSafeDays int
	SproutingRisk     int
	DecayRisk         int
	Co2Risk           int
	HumidityRisk      int
	SiloID            uint `gorm:"index:idx_prediction_silo_created;not null"`
	OwnerID           uint `gorm:"not null"`
	ID                uint `gorm:"primaryKey"`
}

// TableName specifies the table name for Prediction model.
func (Prediction) TableName() string {
	return "predictions"
}

// EventLog is an audit trail entry for silo activity.
type EventLog struct {
	CreatedAt   time.Time      `gorm:"index:idx_event_silo_created;autoCreateTime"`
	EventType   string         `gorm:"not null"`
	Description string         `gorm:"not null"`
	TriggeredBy string         `gorm:"default:system"`
	Meta        map[string]any `gorm:"serializer:json"`
	UserID      *uint
	SiloID      uint `gorm:"index:idx_event_silo_created;not null"`
	OwnerID     uint `gorm:"not null"`
	ID          uint `gorm:"primaryKey"`
}

// TableName specifies the table name for EventLog model.
func (EventLog) TableName() string {
	return "event_logs"
}
