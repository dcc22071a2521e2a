package contextkeys

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserRoleKey  contextKey = "userRole"
	UserPhoneKey contextKey = "userPhone"
	ClientIPKey  contextKey = "clientIP"
	UserAgentKey contextKey = "userAgent"
)
