package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akushch/rentbot/internal/model"
)

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		powerW  int
		rangeKm int
		want    model.Tier
	}{
		{name: "below both thresholds", powerW: 499, rangeKm: 79, want: model.TierStandard},
		{name: "power exactly on threshold", powerW: 500, rangeKm: 0, want: model.TierPremium},
		{name: "range exactly on threshold", powerW: 0, rangeKm: 80, want: model.TierPremium},
		{name: "both above", powerW: 750, rangeKm: 95, want: model.TierPremium},
		{name: "zero vehicle", powerW: 0, rangeKm: 0, want: model.TierStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(tt.powerW, tt.rangeKm))
		})
	}
}

func TestPrice(t *testing.T) {
	assert.Equal(t, 300, Price(model.TierStandard, model.PeriodDay))
	assert.Equal(t, 1500, Price(model.TierStandard, model.PeriodWeek))
	assert.Equal(t, 450, Price(model.TierPremium, model.PeriodDay))
	assert.Equal(t, 2000, Price(model.TierPremium, model.PeriodWeek))
}

func TestPriceFor(t *testing.T) {
	standard := model.Vehicle{PowerW: 350, RangeKm: 60}
	premium := model.Vehicle{PowerW: 350, RangeKm: 80}

	assert.Equal(t, 300, PriceFor(standard, model.PeriodDay))
	assert.Equal(t, 2000, PriceFor(premium, model.PeriodWeek))
}
