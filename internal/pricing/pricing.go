// Package pricing вычисляет стоимость аренды.
package pricing

import "github.com/akushch/rentbot/internal/model"

// Пороговые значения премиального тарифа. Границы включительные: транспорт
// с мощностью ровно 500 Вт или запасом хода ровно 80 км считается премиальным.
const (
	premiumPowerW  = 500
	premiumRangeKm = 80
)

// Стоимость аренды в гривнах по тарифу и сроку.
var prices = map[model.Tier]map[model.RentalPeriod]int{
	model.TierStandard: {
		model.PeriodDay:  300,
		model.PeriodWeek: 1500,
	},
	model.TierPremium: {
		model.PeriodDay:  450,
		model.PeriodWeek: 2000,
	},
}

// Tier определяет тарифную категорию по мощности и запасу хода.
func Tier(powerW, rangeKm int) model.Tier {
	if powerW >= premiumPowerW || rangeKm >= premiumRangeKm {
		return model.TierPremium
	}
	return model.TierStandard
}

// Price возвращает стоимость аренды для тарифа и срока.
func Price(tier model.Tier, period model.RentalPeriod) int {
	return prices[tier][period]
}

// PriceFor возвращает стоимость аренды конкретного транспорта на заданный срок.
func PriceFor(v model.Vehicle, period model.RentalPeriod) int {
	return Price(Tier(v.PowerW, v.RangeKm), period)
}
