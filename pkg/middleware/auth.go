package middleware

import (
	"context"
	"strings"

	"lockbox/internal/entities"
	"lockbox/pkg/contextkeys"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/service"
	"lockbox/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	AccessCookieName  = "lockbox_access"
	RefreshCookieName = "lockbox_refresh"
)

type AuthMiddleware struct {
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		logger:     logger,
	}
}

// Auth аутентифицирует запрос по access-токену. Токен берётся из cookie,
// Bearer-заголовок оставлен как запасной вариант для нестандартных клиентов.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := m.extractToken(c)
		if tokenString == "" {
			m.logger.Warn("AuthMiddleware: запрос без учётных данных")
			return utils.ErrorResponse(c, apperrors.ErrEmptyAuthHeader, m.logger)
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn("AuthMiddleware: ошибка валидации токена", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}

		if claims.IsRefreshToken {
			m.logger.Warn("AuthMiddleware: попытка доступа с refresh-токеном")
			return utils.ErrorResponse(c, apperrors.ErrTokenIsNotAccess, m.logger)
		}

		ctx := c.Request().Context()
		ctx = context.WithValue(ctx, contextkeys.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, contextkeys.UserRoleKey, claims.Role)
		ctx = context.WithValue(ctx, contextkeys.UserPhoneKey, claims.Phone)
		ctx = context.WithValue(ctx, contextkeys.ClientIPKey, c.RealIP())
		ctx = context.WithValue(ctx, contextkeys.UserAgentKey, c.Request().UserAgent())
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireRoles пропускает запрос только если роль из токена входит в allowed.
// Навешивается после Auth обычной композицией функций.
func (m *AuthMiddleware) RequireRoles(allowed ...entities.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := utils.GetUserRoleFromCtx(c.Request().Context())
			for _, r := range allowed {
				if role == r {
					return next(c)
				}
			}
			m.logger.Warn("RequireRoles: недостаточно прав", zap.String("role", string(role)))
			return utils.ErrorResponse(c, apperrors.ErrForbidden, m.logger)
		}
	}
}

func (m *AuthMiddleware) extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
