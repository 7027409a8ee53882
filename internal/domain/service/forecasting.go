package service

import "SensorPull/internal/domain/models"

// Forecaster computes statistics and a forecast continuation over a window of points.
type Forecaster interface {
	Run(points []models.Point) (models.Statistics, []models.Point, error)
}

// ForecastListener is notified after every successful forecast cycle.
type ForecastListener interface {
	OnForecast(state models.ForecastState)
}
