package handlers

import (
	"net/http"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
)

func projectResponses(projects []models.Project) []types.ProjectResponse {
	out := make([]types.ProjectResponse, len(projects))
	for i := range projects {
		out[i] = types.NewProjectResponse(&projects[i], "")
	}
	return out
}

func (h *Handler) SearchGlobal(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	results, err := h.search.Global(ctx.Request.Context(), user.ID, ctx.Query("q"))
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.SearchResponse{
		Query:    results.Query,
		Projects: projectResponses(results.Projects),
		Tasks:    types.NewTaskResponses(results.Tasks),
		Users:    types.NewUserResponses(results.Users),
	})
}

func (h *Handler) SearchProjects(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	projects, err := h.search.Projects(ctx.Request.Context(), user.ID, ctx.Query("q"))
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, projectResponses(projects))
}

func (h *Handler) SearchTasks(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	tasks, err := h.search.Tasks(ctx.Request.Context(), user.ID, ctx.Query("q"))
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewTaskResponses(tasks))
}

func (h *Handler) SearchUsers(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	users, err := h.search.Users(ctx.Request.Context(), user.ID, ctx.Query("q"))
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewUserResponses(users))
}
