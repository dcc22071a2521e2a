package dto

// ConfirmCommandDTO - тело подтверждения от контроллера. Формат максимально
// простой: у прошивки нет полноценного JSON-парсера.
type ConfirmCommandDTO struct {
	LockerNumber int `json:"locker_number" validate:"required,min=1"`
}

type OpenCommandsDTO struct {
	Open []int `json:"open"`
}
