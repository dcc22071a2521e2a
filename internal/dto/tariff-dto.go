package dto

type CreateTariffDTO struct {
	Code            string `json:"code" validate:"required,oneof=HOURLY DAILY"`
	Name            string `json:"name" validate:"required,max=200"`
	PriceRub        int    `json:"priceRub" validate:"required,min=1"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1"`
}

type UpdateTariffDTO struct {
	Name            *string `json:"name" validate:"omitempty,max=200"`
	PriceRub        *int    `json:"priceRub" validate:"omitempty,min=1"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,min=1"`
	Active          *bool   `json:"active"`
}

type UpdateSettingDTO struct {
	Key   string `json:"key" validate:"required,max=100"`
	Value string `json:"value" validate:"required,max=1000"`
}

type GracePeriodDTO struct {
	TariffCode string `json:"tariffCode" validate:"required,oneof=HOURLY DAILY"`
	Minutes    int    `json:"minutes" validate:"required,min=0,max=10080"`
}
