package handlers

import (
	"context"
	"net/http"

	"github.com/campusconnect/campusconnect/internal/access"
	"github.com/campusconnect/campusconnect/internal/auth"
	"github.com/campusconnect/campusconnect/internal/config"
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/search"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/campusconnect/campusconnect/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler serves the REST API. Every resource-scoped handler checks, in
// order: the resource exists, the caller is allowed, then acts.
type Handler struct {
	cfg    *config.Config
	store  *store.Store
	guard  *access.Guard
	search *search.Aggregator
	tokens *auth.TokenIssuer
	hub    *Hub
}

func New(cfg *config.Config, s *store.Store, tokens *auth.TokenIssuer, hub *Hub) *Handler {
	guard := access.NewGuard(s)

	return &Handler{
		cfg:    cfg,
		store:  s,
		guard:  guard,
		search: search.NewAggregator(s, guard),
		tokens: tokens,
		hub:    hub,
	}
}

func (h *Handler) Store() *store.Store {
	return h.store
}

func (h *Handler) Tokens() *auth.TokenIssuer {
	return h.tokens
}

var errForbidden = errs.Wrap(errs.ErrForbidden, "you do not have permission to perform this action")

// bindJSON decodes the request body. Field rules are enforced by the store.
func bindJSON(ctx *gin.Context, obj interface{}) bool {
	if err := ctx.ShouldBindJSON(obj); err != nil {
		ctx.Error(errs.Wrap(errs.ErrValidation, "invalid request body"))
		return false
	}
	return true
}

func currentUser(ctx *gin.Context) (*models.User, bool) {
	user, err := utils.GetCurrentUser(ctx)
	if err != nil {
		ctx.Error(err)
		return nil, false
	}
	return user, true
}

// projectFromParam loads the project named by :project_id.
func (h *Handler) projectFromParam(ctx *gin.Context) (*models.Project, bool) {
	projectID, err := utils.ParamID(ctx, "project_id")
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	project, err := h.store.GetProject(ctx.Request.Context(), projectID)
	if err != nil {
		ctx.Error(err)
		return nil, false
	}

	return project, true
}

// viewableProject loads :project_id and requires the caller to see it.
func (h *Handler) viewableProject(ctx *gin.Context, user *models.User) (*models.Project, bool) {
	project, ok := h.projectFromParam(ctx)
	if !ok {
		return nil, false
	}

	if !h.guard.CanView(ctx.Request.Context(), user.ID, project) {
		ctx.Error(errForbidden)
		return nil, false
	}

	return project, true
}

func (h *Handler) setTokenCookie(ctx *gin.Context, token string, maxAge int) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     types.TokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// publish sends a project event to the clients that can still view the
// project. Access is re-checked per client on every event.
func (h *Handler) publish(ctx context.Context, projectID uint, eventType, resource string, id uint) {
	event := types.Event{
		Type:      eventType,
		ProjectID: projectID,
		Resource:  resource,
		ID:        id,
	}

	project, err := h.store.GetProject(ctx, projectID)
	if err != nil {
		log.Debug().Err(err).Uint("project_id", projectID).Msg("event for unreadable project")
		h.hub.CloseProject(projectID)
		return
	}

	h.hub.Broadcast(event, func(userID uint) bool {
		return h.guard.CanView(ctx, userID, project)
	})
}
