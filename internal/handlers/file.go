package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/campusconnect/campusconnect/internal/utils"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields and boundaries on top
// of the file itself.
const multipartOverhead = 1 << 20

func (h *Handler) UploadFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	maxSize := h.store.Options().MaxUploadSize
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxSize+multipartOverhead)

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.Error(errs.Wrap(errs.ErrValidation, "file exceeds the maximum size of "+strconv.FormatInt(maxSize, 10)+" bytes"))
			return
		}
		ctx.Error(errs.Wrap(errs.ErrValidation, "a file is required in the \"file\" form field"))
		return
	}

	content, err := header.Open()
	if err != nil {
		ctx.Error(errs.Wrap(errs.ErrStorage, "read upload: "+err.Error()))
		return
	}
	defer content.Close()

	file, err := h.store.CreateFile(ctx.Request.Context(), store.NewFile{
		ProjectID:    project.ID,
		UploadedBy:   user.ID,
		OriginalName: header.Filename,
		Description:  ctx.PostForm("description"),
		Size:         header.Size,
	}, content)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), project.ID, types.EventCreated, "file", file.ID)
	ctx.JSON(http.StatusCreated, types.NewFileResponse(file))
}

func (h *Handler) ListProjectFiles(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	project, ok := h.viewableProject(ctx, user)
	if !ok {
		return
	}

	files, err := h.store.ListProjectFiles(ctx.Request.Context(), project.ID)
	if err != nil {
		ctx.Error(err)
		return
	}

	ctx.JSON(http.StatusOK, types.NewFileResponses(files))
}

func (h *Handler) fileFromParam(ctx *gin.Context) (*models.File, bool) {
	fileID, err := utils.ParamID(ctx, "file_id")
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	file, err := h.store.GetFile(ctx.Request.Context(), fileID)
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	return file, true
}

// viewableFile loads :file_id and requires the caller to see its project.
func (h *Handler) viewableFile(ctx *gin.Context, user *models.User) (*models.File, bool) {
	file, ok := h.fileFromParam(ctx)
	if !ok {
		return nil, false
	}

	if !h.canViewProjectOf(ctx, user.ID, file.ProjectID) {
		ctx.Error(errForbidden)
		return nil, false
	}

	return file, true
}

func (h *Handler) GetFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	file, ok := h.viewableFile(ctx, user)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, types.NewFileResponse(file))
}

func (h *Handler) DownloadFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	file, ok := h.viewableFile(ctx, user)
	if !ok {
		return
	}

	content, err := h.store.OpenFile(ctx.Request.Context(), file)
	if err != nil {
		ctx.Error(err)
		return
	}
	defer content.Close()

	ctx.DataFromReader(http.StatusOK, file.Size, file.MimeType, content, map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}),
		"X-Content-Type-Options": "nosniff",
	})
}

func (h *Handler) UpdateFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	file, ok := h.fileFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyFile(ctx.Request.Context(), user.ID, file) {
		ctx.Error(errForbidden)
		return
	}

	var body store.FileUpdate
	if !bindJSON(ctx, &body) {
		return
	}

	updated, err := h.store.UpdateFile(ctx.Request.Context(), file.ID, body)
	if err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), file.ProjectID, types.EventUpdated, "file", file.ID)
	ctx.JSON(http.StatusOK, types.NewFileResponse(updated))
}

func (h *Handler) DeleteFile(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	file, ok := h.fileFromParam(ctx)
	if !ok {
		return
	}

	if !h.guard.CanModifyFile(ctx.Request.Context(), user.ID, file) {
		ctx.Error(errForbidden)
		return
	}

	if err := h.store.DeleteFile(ctx.Request.Context(), file.ID); err != nil {
		ctx.Error(err)
		return
	}

	h.publish(ctx.Request.Context(), file.ProjectID, types.EventDeleted, "file", file.ID)
	ctx.Status(http.StatusNoContent)
}
