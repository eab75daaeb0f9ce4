package utils

import (
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
)

func GetCurrentUser(ctx *gin.Context) (*models.User, error) {
	value, exists := ctx.Get(types.ContextUserKey)
	if !exists {
		return nil, errs.Wrap(errs.ErrUnauthorized, "user not authenticated")
	}

	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, errs.Wrap(errs.ErrUnauthorized, "invalid user type in context")
	}

	return user, nil
}
