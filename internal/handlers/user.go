package handlers

import (
	"net/http"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/campusconnect/campusconnect/internal/utils"
	"github.com/gin-gonic/gin"
)

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) UpdateMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var body store.UserUpdate
	if !bindJSON(ctx, &body) {
		return
	}

	updated, err := h.store.UpdateUser(ctx.Request.Context(), user.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewUserResponse(updated))
}

func (h *Handler) ChangePassword(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var body ChangePasswordRequest
	if !bindJSON(ctx, &body) {
		return
	}
	if body.CurrentPassword == "" {
		ctx.Error(errs.Wrap(errs.ErrValidation, "current password is required to change password"))
		return
	}

	if err := h.store.ChangePassword(ctx.Request.Context(), user.ID, body.CurrentPassword, body.NewPassword); err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// DeactivateMe deactivates the caller's account and ends the session.
// Projects and memberships stay in place.
func (h *Handler) DeactivateMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	if err := h.store.DeactivateUser(ctx.Request.Context(), user.ID); err != nil {
		ctx.Error(err)
		return
	}

	h.hub.DisconnectUser(user.ID)
	h.setTokenCookie(ctx, "", -1)
	ctx.Status(http.StatusNoContent)
}

// GetUser returns another active user's profile.
func (h *Handler) GetUser(ctx *gin.Context) {
	userID, err := utils.ParamID(ctx, "user_id")
	if err != nil {
		ctx.Error(err)
		return
	}

	user, err := h.store.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		ctx.Error(err)
		return
	}
	if !user.IsActive {
		ctx.Error(errs.Wrap(errs.ErrNotFound, "user"))
		return
	}

	ctx.JSON(http.StatusOK, types.NewUserResponse(user))
}
