package models

import "errors"

var (
	// ErrInsufficientData is returned when a zone's history is too short for
	// forecasting, anomaly detection or replay.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelNotReady is returned when a forecast is requested for a zone
	// that has no trained model.
	ErrModelNotReady = errors.New("model not ready")
)
