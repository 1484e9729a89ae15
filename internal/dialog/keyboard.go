package dialog

import (
	"fmt"
	"time"

	"github.com/akushch/rentbot/internal/model"
	"github.com/akushch/rentbot/internal/pricing"
)

func mainKeyboard() [][]string {
	return [][]string{
		{BtnAvailable, BtnMyRentals},
		{BtnCancel},
	}
}

func transportKeyboard() [][]string {
	return [][]string{
		{BtnBikes, BtnScooters},
		{BtnBack},
	}
}

// periodKeyboard показывает сроки аренды с ценами тарифа выбранного транспорта.
func periodKeyboard(tier model.Tier) [][]string {
	return [][]string{
		{
			fmt.Sprintf("1 день - %d грн", pricing.Price(tier, model.PeriodDay)),
			fmt.Sprintf("1 тиждень - %d грн", pricing.Price(tier, model.PeriodWeek)),
		},
		{BtnBack},
	}
}

// dateKeyboard предлагает даты начала аренды: сегодня и шесть следующих дней.
func dateKeyboard(today time.Time) [][]string {
	var rows [][]string
	var row []string
	for i := 0; i < 7; i++ {
		row = append(row, today.AddDate(0, 0, i).Format(dateLayout))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return append(rows, []string{BtnBack})
}
