package handlers

import (
	"net/http"
	"strings"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
)

// LoginRequest accepts either a username or an email as the login.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenRequest is the form body of the password grant.
type TokenRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (h *Handler) issueToken(ctx *gin.Context, user *models.User) (types.AuthResponse, bool) {
	token, err := h.tokens.GenerateJWT(user.ID, user.Email)
	if err != nil {
		ctx.Error(errs.Wrap(errs.ErrStorage, "failed to generate token: "+err.Error()))
		return types.AuthResponse{}, false
	}

	h.setTokenCookie(ctx, token, int(h.tokens.TTL().Seconds()))

	return types.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
		User:        types.NewUserResponse(user),
	}, true
}

func (h *Handler) Register(ctx *gin.Context) {
	var body store.NewUser
	if !bindJSON(ctx, &body) {
		return
	}

	user, err := h.store.CreateUser(ctx.Request.Context(), body)
	if err != nil {
		ctx.Error(err)
		return
	}

	resp, ok := h.issueToken(ctx, user)
	if !ok {
		return
	}

	ctx.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(ctx *gin.Context) {
	var body LoginRequest
	if !bindJSON(ctx, &body) {
		return
	}

	login := strings.TrimSpace(body.Username)
	if login == "" {
		login = strings.TrimSpace(body.Email)
	}
	if login == "" || body.Password == "" {
		ctx.Error(errs.Wrap(errs.ErrValidation, "login and password are required"))
		return
	}

	h.authenticate(ctx, login, body.Password)
}

// Token is the form-encoded password grant used by API clients.
func (h *Handler) Token(ctx *gin.Context) {
	var body TokenRequest
	if err := ctx.ShouldBind(&body); err != nil || body.Username == "" || body.Password == "" {
		ctx.Error(errs.Wrap(errs.ErrValidation, "username and password are required"))
		return
	}

	h.authenticate(ctx, strings.TrimSpace(body.Username), body.Password)
}

func (h *Handler) authenticate(ctx *gin.Context, login, password string) {
	user, err := h.store.Authenticate(ctx.Request.Context(), login, password)
	if err != nil {
		ctx.Error(err)
		return
	}

	resp, ok := h.issueToken(ctx, user)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(ctx *gin.Context) {
	h.setTokenCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, types.NewUserResponse(user))
}
