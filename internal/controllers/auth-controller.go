package controllers

import (
	"net/http"
	"time"

	"lockbox/internal/dto"
	"lockbox/internal/services"
	"lockbox/pkg/config"
	apperrors "lockbox/pkg/errors"
	"lockbox/pkg/middleware"
	"lockbox/pkg/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AuthController struct {
	authService services.AuthServiceInterface
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthController(authService services.AuthServiceInterface, cfg *config.Config, logger *zap.Logger) *AuthController {
	return &AuthController{authService: authService, cfg: cfg, logger: logger}
}

func (ctrl *AuthController) setAuthCookies(c echo.Context, tokens *services.AuthTokens, accessTTL, refreshTTL time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   ctrl.cfg.JWT.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     middleware.RefreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/",
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   ctrl.cfg.JWT.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (ctrl *AuthController) clearAuthCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessCookieName, middleware.RefreshCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   ctrl.cfg.JWT.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (ctrl *AuthController) Login(c echo.Context) error {
	var payload dto.LoginDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	user, tokens, err := ctrl.authService.Login(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	ctrl.setAuthCookies(c, tokens, ctrl.cfg.JWT.AccessTokenTTL, ctrl.cfg.JWT.RefreshTokenTTL)
	session := dto.SessionDTO{UserID: user.ID, Phone: user.Phone, Role: string(user.Role)}
	return utils.SuccessResponse(c, session, "Вход выполнен", http.StatusOK)
}

func (ctrl *AuthController) StartOtp(c echo.Context) error {
	var payload dto.StartOtpDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	if err := ctrl.authService.StartOtp(c.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, nil, "Код отправлен", http.StatusOK)
}

func (ctrl *AuthController) VerifyOtp(c echo.Context) error {
	var payload dto.VerifyOtpDTO
	if err := c.Bind(&payload); err != nil {
		return utils.ErrorResponse(c, apperrors.NewInvalidRequestError("Неверный формат запроса"), ctrl.logger)
	}
	if err := c.Validate(&payload); err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	user, tokens, err := ctrl.authService.VerifyOtp(c.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	ctrl.setAuthCookies(c, tokens, ctrl.cfg.JWT.AccessTokenTTL, ctrl.cfg.JWT.RefreshTokenTTL)
	session := dto.SessionDTO{UserID: user.ID, Phone: user.Phone, Role: string(user.Role)}
	return utils.SuccessResponse(c, session, "Вход выполнен", http.StatusOK)
}

// Refresh обновляет пару токенов по refresh-cookie.
func (ctrl *AuthController) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(middleware.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return utils.ErrorResponse(c, apperrors.NewUnauthorizedError("Refresh-токен отсутствует"), ctrl.logger)
	}

	user, tokens, err := ctrl.authService.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		ctrl.clearAuthCookies(c)
		return utils.ErrorResponse(c, err, ctrl.logger)
	}

	ctrl.setAuthCookies(c, tokens, ctrl.cfg.JWT.AccessTokenTTL, ctrl.cfg.JWT.RefreshTokenTTL)
	session := dto.SessionDTO{UserID: user.ID, Phone: user.Phone, Role: string(user.Role)}
	return utils.SuccessResponse(c, session, "Токены обновлены", http.StatusOK)
}

func (ctrl *AuthController) Logout(c echo.Context) error {
	ctrl.clearAuthCookies(c)
	return utils.SuccessResponse(c, nil, "Выход выполнен", http.StatusOK)
}

func (ctrl *AuthController) Session(c echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(c.Request().Context())
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	session, err := ctrl.authService.GetSession(c.Request().Context(), userID)
	if err != nil {
		return utils.ErrorResponse(c, err, ctrl.logger)
	}
	return utils.SuccessResponse(c, session, "", http.StatusOK)
}
