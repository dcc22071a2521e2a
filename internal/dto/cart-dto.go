package dto

import "lockbox/internal/entities"

type AddToCartDTO struct {
	LockerID string `json:"lockerId" validate:"required,uuid4"`
	TariffID string `json:"tariffId" validate:"omitempty,uuid4"`
}

type RemoveFromCartDTO struct {
	LockerID string `json:"lockerId" validate:"required,uuid4"`
}

type CartDTO struct {
	Order *entities.Order `json:"order"`
}
