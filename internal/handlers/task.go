package handlers

import (
	"net/http"
	"strconv"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/campusconnect/campusconnect/internal/utils"
	"github.com/gin-gonic/gin"
)

func statusFilter(ctx *gin.Context) (models.TaskStatus, bool) {
	status := models.TaskStatus(ctx.Query("status"))
	if status != "" && !status.Valid() {
		ctx.Error(errs.Wrap(errs.ErrValidation, "status must be one of todo, in_progress, review, done"))
		return "", false
	}
	return status, true
}

func (h *Handler) CreateTask(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	var body store.NewTask
	if !bindJSON(ctx, &body) {
		return
	}

	task, err := h.store.CreateTask(ctx.Request.Context(), project.ID, user.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), project.ID, types.EventCreated, "task", task.ID)
	ctx.JSON(http.StatusCreated, types.NewTaskResponse(task))
}

func (h *Handler) ListProjectTasks(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	status, ok := statusFilter(ctx)
	if !ok {
		return
	}

	tasks, err := h.store.ListProjectTasks(ctx.Request.Context(), project.ID, store.TaskFilter{Status: status})
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewTaskResponses(tasks))
}

// ListMyTasks lists tasks across every visible project. With
// assigned_to_me=true only the caller's assignments are returned.
func (h *Handler) ListMyTasks(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	status, ok := statusFilter(ctx)
	if !ok {
		return
	}

	filter := store.TaskFilter{Status: status}
	if raw := ctx.Query("assigned_to_me"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.Error(errs.Wrap(errs.ErrValidation, "assigned_to_me must be a boolean"))
			return
		}
		if mine {
			filter.AssignedTo = &user.ID
		}
	}

	tasks, err := h.store.ListTasksVisibleTo(ctx.Request.Context(), user.ID, filter)
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewTaskResponses(tasks))
}

func (h *Handler) taskFromParam(ctx *gin.Context) (*models.Task, bool) {
	taskID, err := utils.ParamID(ctx, "task_id")
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	task, err := h.store.GetTask(ctx.Request.Context(), taskID)
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	return task, true
}

// canViewProjectOf reports whether the caller can see the project with
// projectID.
func (h *Handler) canViewProjectOf(ctx *gin.Context, userID, projectID uint) bool {
	project, err := h.store.GetProject(ctx.Request.Context(), projectID)
	if err != nil {
		return false
	}
	return h.guard.CanView(ctx.Request.Context(), userID, project)
}

func (h *Handler) GetTask(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	task, ok := h.taskFromParam(ctx)
	if !ok {
		return
	}

	if !h.canViewProjectOf(ctx, user.ID, task.ProjectID) {
		ctx.Error(errForbidden)
		return
	}

	ctx.JSON(http.StatusOK, types.NewTaskResponse(task))
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	task, ok := h.taskFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyTask(ctx.Request.Context(), user.ID, task) {
		ctx.Error(errForbidden)
		return
	}

	var body store.TaskUpdate
	if !bindJSON(ctx, &body) {
		return
	}

	updated, err := h.store.UpdateTask(ctx.Request.Context(), task.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), task.ProjectID, types.EventUpdated, "task", task.ID)
	ctx.JSON(http.StatusOK, types.NewTaskResponse(updated))
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	task, ok := h.taskFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyTask(ctx.Request.Context(), user.ID, task) {
		ctx.Error(errForbidden)
		return
	}

	if err := h.store.DeleteTask(ctx.Request.Context(), task.ID); err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), task.ProjectID, types.EventDeleted, "task", task.ID)
	ctx.Status(http.StatusNoContent)
}
