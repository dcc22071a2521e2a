package utils

import (
	"context"

	"lockbox/internal/entities"
	"lockbox/pkg/contextkeys"
	apperrors "lockbox/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(string)
	if !ok || userID == "" {
		return "", apperrors.ErrUserIDNotFoundInContext
	}
	return userID, nil
}

func GetUserRoleFromCtx(ctx context.Context) entities.Role {
	role, ok := ctx.Value(contextkeys.UserRoleKey).(entities.Role)
	if !ok {
		return entities.RoleUser
	}
	return role
}

func GetClientIPFromCtx(ctx context.Context) *string {
	ip, ok := ctx.Value(contextkeys.ClientIPKey).(string)
	if !ok || ip == "" {
		return nil
	}
	return &ip
}

func GetUserAgentFromCtx(ctx context.Context) *string {
	ua, ok := ctx.Value(contextkeys.UserAgentKey).(string)
	if !ok || ua == "" {
		return nil
	}
	return &ua
}
