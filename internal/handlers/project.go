package handlers

import (
	"net/http"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var body store.NewProject
	if !bindJSON(ctx, &body) {
		return
	}

	project, err := h.store.CreateProject(ctx.Request.Context(), user.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusCreated, types.NewProjectResponse(project, models.RoleOwner))
}

// ListProjects returns every project the caller owns or belongs to, with
// the caller's role in each.
func (h *Handler) ListProjects(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	projects, err := h.store.ListProjectsVisibleTo(ctx.Request.Context(), user.ID)
	if err != nil {
		ctx.Error(err)
		return
	}

	memberships, err := h.store.ListMembershipsOf(ctx.Request.Context(), user.ID)
	if err != nil {
		ctx.Error(err)
		return
	}

	roles := make(map[uint]models.Role, len(memberships))
	for _, m := range memberships {
		roles[m.ProjectID] = m.Role
	}

	response := make([]types.ProjectResponse, len(projects))
	for i := range projects {
		role := roles[projects[i].ID]
		if projects[i].OwnerID == user.ID {
			role = models.RoleOwner
		}
		response[i] = types.NewProjectResponse(&projects[i], role)
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *Handler) GetProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	role := h.guard.RoleOf(ctx.Request.Context(), user.ID, project)
	ctx.JSON(http.StatusOK, types.NewProjectResponse(project, role))
}

func (h *Handler) UpdateProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.projectFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyProject(ctx.Request.Context(), user.ID, project) {
		ctx.Error(errForbidden)
		return
	}

	var body store.ProjectUpdate
	if !bindJSON(ctx, &body) {
		return
	}

	updated, err := h.store.UpdateProject(ctx.Request.Context(), project.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), project.ID, types.EventUpdated, "project", project.ID)
	ctx.JSON(http.StatusOK, types.NewProjectResponse(updated, models.RoleOwner))
}

func (h *Handler) DeleteProject(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.projectFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyProject(ctx.Request.Context(), user.ID, project) {
		ctx.Error(errForbidden)
		return
	}

	if err := h.store.DeleteProject(ctx.Request.Context(), project.ID); err != nil {
		ctx.Error(err)
		return
	}

	h.hub.Broadcast(types.Event{
		Type:      types.EventDeleted,
		ProjectID: project.ID,
		Resource:  "project",
		ID:        project.ID,
	}, nil)
	h.hub.CloseProject(project.ID)
	ctx.Status(http.StatusNoContent)
}
