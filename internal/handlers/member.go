package handlers

import (
	"net/http"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/campusconnect/campusconnect/internal/utils"
	"github.com/gin-gonic/gin"
)

type AddMemberRequest struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role"`
}

type UpdateMemberRequest struct {
	Role models.Role `json:"role"`
}

func (h *Handler) ListMembers(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	memberships, err := h.store.ListMembers(ctx.Request.Context(), project.ID)
	if err != nil {
		ctx.Error(err)
		return
	}

	response := make([]types.MemberResponse, len(memberships))
	for i := range memberships {
		response[i] = types.NewMemberResponse(&memberships[i])
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handler) AddMember(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.projectFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanManageMembers(ctx.Request.Context(), user.ID, project) {
		ctx.Error(errForbidden)
		return
	}

	var body AddMemberRequest
	if !bindJSON(ctx, &body) {
		return
	}
	if body.UserID == 0 {
		ctx.Error(errs.Wrap(errs.ErrValidation, "user_id is required"))
		return
	}
	if body.Role == "" {
		body.Role = models.RoleMember
	}

	if !h.guard.CanAddMember(ctx.Request.Context(), user.ID, project, body.Role) {
		ctx.Error(errForbidden)
		return
	}

	membership, err := h.store.AddMember(ctx.Request.Context(), project.ID, body.UserID, body.Role)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), project.ID, types.EventCreated, "member", body.UserID)
	ctx.JSON(http.StatusCreated, types.NewMemberResponse(membership))
}

// targetMembership loads the membership named by :user_id in a project the
// caller can see.
func (h *Handler) targetMembership(ctx *gin.Context, user *models.User) (*models.Project, *models.ProjectMembership, bool) {
	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return nil, nil, false
	}

	targetID, err := utils.ParamID(ctx, "user_id")
	if err != nil {
		ctx.Error(err)
		return nil, nil, false
	}

	membership, err := h.store.GetMembership(ctx.Request.Context(), project.ID, targetID)
	if err != nil {
		ctx.Error(err)
		return nil, nil, false
	}

	return project, membership, true
}

func (h *Handler) UpdateMember(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, membership, ok := h.targetMembership(ctx, user)
	if !ok {
		return
	}

	var body UpdateMemberRequest
	if !bindJSON(ctx, &body) {
		return
	}
	if !body.Role.Valid() {
		ctx.Error(errs.Wrap(errs.ErrValidation, "role must be one of owner, admin, member"))
		return
	}

	if !h.guard.CanChangeRole(ctx.Request.Context(), user.ID, project, membership, body.Role) {
		ctx.Error(errForbidden)
		return
	}

	updated, err := h.store.UpdateMemberRole(ctx.Request.Context(), project.ID, membership.UserID, body.Role)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), project.ID, types.EventUpdated, "member", membership.UserID)
	ctx.JSON(http.StatusOK, types.NewMemberResponse(updated))
}

// RemoveMember removes a member, or lets the caller leave the project.
func (h *Handler) RemoveMember(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, membership, ok := h.targetMembership(ctx, user)
	if !ok {
		return
	}

	if !h.guard.CanRemoveMember(ctx.Request.Context(), user.ID, project, membership) {
		ctx.Error(errForbidden)
		return
	}

	if err := h.store.RemoveMember(ctx.Request.Context(), project.ID, membership.UserID); err != nil {
		ctx.Error(err)
		return
	}

	h.hub.Disconnect(project.ID, membership.UserID)
	h.publish(ctx.Request.Context(), project.ID, types.EventDeleted, "member", membership.UserID)
	ctx.Status(http.StatusNoContent)
}
