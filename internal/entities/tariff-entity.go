package entities

import "time"

type TariffCode string

const (
	TariffCodeHourly TariffCode = "HOURLY"
	TariffCodeDaily  TariffCode = "DAILY"
)

type Tariff struct {
	ID              string     `json:"id"`
	Code            TariffCode `json:"code"`
	Name            string     `json:"name"`
	PriceRub        int        `json:"priceRub"`
	DurationMinutes int        `json:"durationMinutes"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
