package forecast

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

// Fallback nameplate capacity for sites with no capacity on record.
var defaultCapacityMW = decimal.NewFromFloat(10.0)

var (
	solarCapacityFactor   = decimal.NewFromFloat(0.25)
	windCapacityFactor    = decimal.NewFromFloat(0.30)
	genericCapacityFactor = decimal.NewFromFloat(0.20)
	winterWindMultiplier  = decimal.NewFromFloat(1.2)
	confidenceBand        = decimal.NewFromFloat(0.2)
)

// SyntheticModel produces random but plausible generation curves: a half-sine
// diurnal shape for solar, a noisier flat profile with a winter uplift for
// wind, and a generic low-output profile for anything else. Output is
// deterministic for a given seed. Values are quantized to 3 decimal places.
type SyntheticModel struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock Clock
}

// NewSyntheticModel returns a model with a non-reproducible random stream.
func NewSyntheticModel() *SyntheticModel {
	return &SyntheticModel{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		clock: SystemClock,
	}
}

// NewSeededSyntheticModel returns a model whose output is reproducible: the
// same seed, site and horizon always yield the same sequence.
func NewSeededSyntheticModel(seed int64) *SyntheticModel {
	return &SyntheticModel{
		rng:   rand.New(rand.NewSource(seed)),
		clock: SystemClock,
	}
}

// Name returns the model identifier.
func (m *SyntheticModel) Name() string { return "random-synthetic-v1" }

// Predict generates horizonHours hourly predictions for the site, starting
// at the top of the current hour.
func (m *SyntheticModel) Predict(site *models.Site, horizonHours int) ([]PredictionPoint, error) {
	if site == nil {
		return nil, fmt.Errorf("%w: site must not be nil", ErrInvalidInput)
	}
	if horizonHours <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidInput, horizonHours)
	}

	capacity := defaultCapacityMW
	if site.CapacityMW != nil {
		capacity = *site.CapacityMW
	}

	start := m.clock.Now().Truncate(time.Hour)
	siteType := strings.ToLower(site.SiteType)

	m.mu.Lock()
	defer m.mu.Unlock()

	points := make([]PredictionPoint, 0, horizonHours)
	for hour := 0; hour < horizonHours; hour++ {
		ts := start.Add(time.Duration(hour) * time.Hour)

		var predicted decimal.Decimal
		switch siteType {
		case models.SiteTypeSolar:
			predicted = m.solarPrediction(capacity, ts)
		case models.SiteTypeWind:
			predicted = m.windPrediction(capacity, ts)
		default:
			predicted = m.genericPrediction(capacity)
		}

		band := predicted.Mul(confidenceBand)
		lower := decimal.Max(decimal.Zero, predicted.Sub(band)).Round(3)
		upper := predicted.Add(band).Round(3)
		// Rounding must never push a bound past the prediction itself.
		lower = decimal.Min(lower, predicted)
		upper = decimal.Max(upper, predicted)

		points = append(points, PredictionPoint{
			Timestamp:    ts,
			PredictedMWh: predicted,
			Lower:        &lower,
			Upper:        &upper,
		})
	}

	return points, nil
}

// solarPrediction follows a half-sine diurnal curve peaking at solar noon,
// with zero output outside the 06:00-18:00 generation window.
func (m *SyntheticModel) solarPrediction(capacity decimal.Decimal, ts time.Time) decimal.Decimal {
	hour := ts.Hour()
	if hour < 6 || hour > 18 {
		return decimal.Zero
	}

	shape := math.Sin(math.Pi * float64(hour-6) / 12)
	randomFactor := 1 + (m.rng.Float64()-0.5)*0.6 // uniform in [0.7, 1.3]

	generation := capacity.
		Mul(decimal.NewFromFloat(shape)).
		Mul(solarCapacityFactor).
		Mul(decimal.NewFromFloat(randomFactor))

	return decimal.Max(decimal.Zero, generation.Round(3))
}

// windPrediction generates at any hour with wide variability and a winter
// (Nov-Mar) uplift.
func (m *SyntheticModel) windPrediction(capacity decimal.Decimal, ts time.Time) decimal.Decimal {
	randomFactor := 1 + (m.rng.Float64()-0.5)*1.0 // uniform in [0.5, 1.5]

	seasonal := decimal.NewFromInt(1)
	if month := ts.Month(); month >= time.November || month <= time.March {
		seasonal = winterWindMultiplier
	}

	generation := capacity.
		Mul(windCapacityFactor).
		Mul(decimal.NewFromFloat(randomFactor)).
		Mul(seasonal)

	return decimal.Max(decimal.Zero, generation.Round(3))
}

func (m *SyntheticModel) genericPrediction(capacity decimal.Decimal) decimal.Decimal {
	generation := capacity.
		Mul(genericCapacityFactor).
		Mul(decimal.NewFromFloat(m.rng.Float64()))

	return decimal.Max(decimal.Zero, generation.Round(3))
}
