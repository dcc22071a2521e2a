package controllers

import (
	"context"

	"lockbox/internal/entities"
	"lockbox/internal/services"
	"lockbox/pkg/utils"
)

// actorFromCtx собирает инициатора действия для аудита из контекста запроса.
func actorFromCtx(ctx context.Context) services.Actor {
	actor := services.Actor{
		Type:      entities.ActorTypeUser,
		IP:        utils.GetClientIPFromCtx(ctx),
		UserAgent: utils.GetUserAgentFromCtx(ctx),
	}
	switch utils.GetUserRoleFromCtx(ctx) {
	case entities.RoleManager:
		actor.Type = entities.ActorTypeManager
	case entities.RoleAdmin:
		actor.Type = entities.ActorTypeAdmin
	}
	if userID, err := utils.GetUserIDFromCtx(ctx); err == nil {
		actor.ID = &userID
	}
	return actor
}
