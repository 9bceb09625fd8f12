package simulator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"preservia.dev/silo-core/internal/events"
	"preservia.dev/silo-core/internal/store"
)

// thresholdCheck is one metric's bounds for a given reading.
type thresholdCheck struct {
	metric    string
	alertType string
	value     float64
	min       float64
	max       float64
}

type alertTriggeredPayload struct {
	Alert *store.Alert `json:"alert"`
}

// evaluateThresholds compares a reading against the silo's bounds and raises
// a de-duplicated alert for every breached metric. Each metric is evaluated
// independently; one breach never short-circuits the rest.
func (e *Engine) evaluateThresholds(ctx context.Context, silo *store.Silo, reading *store.SensorReading) {
	t := silo.Thresholds
	d := e.defaults

	checks := []thresholdCheck{
		{
			metric:    "temperature",
			alertType: store.AlertTemperatureExceed,
			value:     reading.Temperature,
			min:       orDefault(t.TemperatureMin, d.TemperatureMin),
			max:       orDefault(t.TemperatureMax, d.TemperatureMax),
		},
		{
			metric:    "humidity",
			alertType: store.AlertHumidityExceed,
			value:     reading.Humidity,
			min:       orDefault(t.HumidityMin, d.HumidityMin),
			max:       orDefault(t.HumidityMax, d.HumidityMax),
		},
		{
			metric:    "co2",
			alertType: store.AlertCo2Exceed,
			value:     reading.Co2,
			min:       orDefault(t.Co2Min, d.Co2Min),
			max:       orDefault(t.Co2Max, d.Co2Max),
		},
		{
			metric:    "o2",
			alertType: store.AlertO2Breach,
			value:     reading.O2,
			min:       orDefault(t.O2Min, d.O2Min),
			max:       orDefault(t.O2Max, d.O2Max),
		},
		{
			metric:    "battery",
			alertType: store.AlertBatteryLow,
			value:     reading.Battery,
			min:       orDefault(t.BatteryMin, d.BatteryMin),
			max:       100,
		},
	}

	for _, check := range checks {
		if check.value < check.min || check.value > check.max {
			if err := e.triggerAlert(ctx, silo, check); err != nil {
				e.logger.Error("failed to trigger alert",
					"silo_id", silo.ID,
					"type", check.alertType,
					"error", err,
				)
			}
		}
	}
}

// triggerAlert creates and fans out one breach alert unless an alert of the
// same type was already raised for the silo within the cooldown window.
func (e *Engine) triggerAlert(ctx context.Context, silo *store.Silo, check thresholdCheck) error {
	since := time.Now().Add(-e.cooldown)
	exists, err := e.store.HasRecentAlert(ctx, silo.ID, check.alertType, since)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	bound := check.min
	direction := "dropped below"
	if check.value > check.max {
		bound = check.max
		direction = "exceeded"
	}

	message := fmt.Sprintf("%s %s threshold in %s. Current: %.2f, Limit: %s",
		check.metric, direction, silo.Name, check.value,
		strconv.FormatFloat(bound, 'f', -1, 64))

	value := check.value
	threshold := bound
	alert := &store.Alert{
		SiloID:      silo.ID,
		SiloName:    silo.Name,
		OwnerID:     silo.OwnerID,
		Type:        check.alertType,
		Message:     message,
		Severity:    severityFor(check.alertType),
		TriggeredBy: "system",
		Value:       &value,
		Threshold:   &threshold,
	}

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return err
	}

	if err := e.store.CreateEventLog(ctx, &store.EventLog{
		SiloID:      silo.ID,
		OwnerID:     silo.OwnerID,
		EventType:   store.EventAlertTriggered,
		Description: message,
		TriggeredBy: "system",
		Meta: map[string]any{
			"type":      check.alertType,
			"value":     value,
			"threshold": threshold,
		},
	}); err != nil {
		e.logger.Error("failed to write alert event log",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	if e.metrics != nil {
		e.metrics.AlertsTriggered.WithLabelValues(check.alertType).Inc()
	}

	if err := e.publisher.Publish(ctx, silo.OwnerID, events.AlertTriggered, alertTriggeredPayload{Alert: alert}); err != nil {
		e.logger.Error("failed to publish alert event",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	// Best effort: the alert is already persisted.
	if err := e.notifier.Send(ctx, silo.Owner.DeviceTokens, "Preservia Alert", message, map[string]string{
		"siloId": strconv.FormatUint(uint64(silo.ID), 10),
		"type":   check.alertType,
	}); err != nil {
		e.logger.Error("failed to send push notification",
			"silo_id", silo.ID,
			"error", err,
		)
	}

	return nil
}

// severityFor maps an alert type to its severity: exceed/breach categories
// are critical, the rest warn.
func severityFor(alertType string) string {
	if strings.Contains(alertType, "exceed") || alertType == store.AlertO2Breach {
		return store.SeverityCritical
	}
	return store.SeverityWarning
}

// orDefault falls back to the default bound when a silo has no override. A
// zero bound means "unset".
func orDefault(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
