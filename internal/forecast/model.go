package forecast

import (
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

// PredictionPoint is a single hourly prediction produced by a model. It maps
// one-to-one onto a persisted ForecastResult.
type PredictionPoint struct {
	Timestamp    time.Time
	PredictedMWh decimal.Decimal
	Lower        *decimal.Decimal
	Upper        *decimal.Decimal
}

// Model generates hourly generation predictions for a site. Predict returns
// exactly horizonHours points with strictly increasing hourly timestamps
// starting at the top of the current hour. Implementations must not touch
// shared state except through their own isolated randomness source.
type Model interface {
	Predict(site *models.Site, horizonHours int) ([]PredictionPoint, error)
	Name() string
}
