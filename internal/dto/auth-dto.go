package dto

type LoginDTO struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type StartOtpDTO struct {
	Phone string `json:"phone" validate:"required"`
}

type VerifyOtpDTO struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=4"`
}

type SessionDTO struct {
	UserID string `json:"userId"`
	Phone  string `json:"phone"`
	Role   string `json:"role"`
}
