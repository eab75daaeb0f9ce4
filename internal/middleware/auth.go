package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/campusconnect/campusconnect/internal/auth"
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
)

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// AuthMiddleware resolves the caller from a bearer token or the token
// cookie and stores the active user in the request context.
func AuthMiddleware(tokens *auth.TokenIssuer, users UserLoader) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := bearerToken(ctx)
		if err != nil {
			ctx.Error(err)
			ctx.Abort()
			return
		}

		userID, err := tokens.VerifyJWT(tokenString)
		if err != nil {
			ctx.Error(errs.Wrap(errs.ErrUnauthorized, "invalid or expired token"))
			ctx.Abort()
			return
		}

		user, err := users.GetUser(ctx.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				err = errs.Wrap(errs.ErrUnauthorized, "user not found")
			}
			ctx.Error(err)
			ctx.Abort()
			return
		}

		if !user.IsActive {
			ctx.Error(errs.Wrap(errs.ErrUnauthorized, "account is deactivated"))
			ctx.Abort()
			return
		}

		ctx.Set(types.ContextUserKey, user)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, error) {
	if header := ctx.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errs.Wrap(errs.ErrUnauthorized, "authorization header format must be Bearer {token}")
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if cookie, err := ctx.Cookie(types.TokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	return "", errs.Wrap(errs.ErrUnauthorized, "authorization token is required")
}
