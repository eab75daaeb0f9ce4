package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/campusconnect/campusconnect/internal/auth"
	"github.com/campusconnect/campusconnect/internal/config"
	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/router"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/storetest"
	"github.com/campusconnect/campusconnect/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type testAPI struct {
	t      *testing.T
	env    *storetest.Env
	hub    *handlers.Hub
	engine *gin.Engine
}

func newTestAPI(t *testing.T, opts store.Options) *testAPI {
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	env := storetest.NewWithOptions(t, opts)
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	require.NoError(t, err)

	hub := handlers.NewHub(cfg.AllowedOrigins)
	h := handlers.New(cfg, env.Store, tokens, hub)

	return &testAPI{t: t, env: env, hub: hub, engine: router.NewRouter(cfg, h)}
}

func (a *testAPI) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *testAPI) upload(path, token, name, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.WriteField("description", "uploaded in test"))
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(req, token)
}

type session struct {
	token string
	id    uint
}

func (a *testAPI) register(username string) session {
	w := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":  username,
		"email":     username + "@campus.edu",
		"full_name": strings.ToUpper(username[:1]) + username[1:] + " Tester",
		"password":  "long-enough-password",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var resp types.AuthResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return session{token: resp.AccessToken, id: resp.User.ID}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *testAPI) createProject(s session, title string) types.ProjectResponse {
	w := a.do(http.MethodPost, "/api/v1/projects", s.token, map[string]string{"title": title})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[types.ProjectResponse](a.t, w)
}

func (a *testAPI) addMember(owner session, projectID uint, member session, role models.Role) {
	w := a.do(http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/members", projectID), owner.token, map[string]interface{}{
		"user_id": member.id,
		"role":    role,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())
	alice := a.register("alice")

	w := a.do(http.MethodGet, "/api/v1/auth/me", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[types.UserResponse](t, w).Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@campus.edu", "full_name": "Other", "password": "long-enough-password",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "long-enough-password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[types.AuthResponse](t, w).AccessToken)

	w = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "alice@campus.edu", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	form := strings.NewReader("username=alice&password=long-enough-password")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = a.send(req, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bearer", decode[types.AuthResponse](t, w).TokenType)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/users/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/users/me", "garbage", nil).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: types.TokenCookie, Value: alice.token})
	assert.Equal(t, http.StatusOK, a.send(req, "").Code)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/v1/users/me", alice.token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/users/me", alice.token, nil).Code)

	w = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "long-enough-password"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProjectAccess(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())
	owner := a.register("owner")
	admin := a.register("admin")
	outsider := a.register("outsider")

	project := a.createProject(owner, "Study Group Management")
	assert.Equal(t, models.RoleOwner, project.Role)
	a.addMember(owner, project.ID, admin, models.RoleAdmin)

	path := fmt.Sprintf("/api/v1/projects/%d", project.ID)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, path, outsider.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/projects/9999", outsider.token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/v1/projects/abc", outsider.token, nil).Code)

	w := a.do(http.MethodGet, path, admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, decode[types.ProjectResponse](t, w).Role)

	rename := map[string]string{"title": "Renamed"}
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, path, admin.token, rename).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, path, admin.token, nil).Code)

	w = a.do(http.MethodPatch, path, owner.token, rename)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", decode[types.ProjectResponse](t, w).Title)

	w = a.do(http.MethodGet, "/api/v1/projects", admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.ProjectResponse](t, w), 1)

	w = a.do(http.MethodGet, "/api/v1/projects", outsider.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.ProjectResponse](t, w))

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, owner.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, owner.token, nil).Code)
}

func TestMembers(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())
	owner := a.register("owner")
	admin := a.register("admin")
	member := a.register("member")
	newcomer := a.register("newcomer")

	project := a.createProject(owner, "Robotics")
	a.addMember(owner, project.ID, admin, models.RoleAdmin)
	a.addMember(admin, project.ID, member, models.RoleMember)

	members := fmt.Sprintf("/api/v1/projects/%d/members", project.ID)

	w := a.do(http.MethodGet, members, member.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.MemberResponse](t, w), 3)

	w = a.do(http.MethodPost, members, member.token, map[string]interface{}{"user_id": newcomer.id})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, members, admin.token, map[string]interface{}{"user_id": newcomer.id, "role": "owner"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, members, admin.token, map[string]interface{}{"user_id": member.id})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, members, admin.token, map[string]interface{}{"user_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	ownerPath := fmt.Sprintf("%s/%d", members, owner.id)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, ownerPath, owner.token, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, ownerPath, admin.token, map[string]string{"role": "member"}).Code)

	memberPath := fmt.Sprintf("%s/%d", members, member.id)
	w = a.do(http.MethodPatch, memberPath, admin.token, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, decode[types.MemberResponse](t, w).Role)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, memberPath, member.token, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, members, member.token, nil).Code)
}

func TestTasks(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())
	owner := a.register("owner")
	admin := a.register("admin")
	writer := a.register("writer")
	reader := a.register("reader")

	project := a.createProject(owner, "Thesis")
	a.addMember(owner, project.ID, admin, models.RoleAdmin)
	a.addMember(owner, project.ID, writer, models.RoleMember)
	a.addMember(owner, project.ID, reader, models.RoleMember)

	w := a.do(http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/tasks", project.ID), writer.token, map[string]interface{}{
		"title":       "Create Study Schedule",
		"assigned_to": writer.id,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[types.TaskResponse](t, w)
	assert.Equal(t, models.TaskTodo, task.Status)

	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, reader.token, nil).Code)

	inProgress := map[string]string{"status": "in_progress"}
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, path, reader.token, inProgress).Code)

	w = a.do(http.MethodPatch, path, admin.token, map[string]interface{}{"status": "review", "assigned_to": 0})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[types.TaskResponse](t, w)
	assert.Equal(t, models.TaskReview, updated.Status)
	assert.Nil(t, updated.AssignedTo)
	assert.Equal(t, task.Title, updated.Title)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPatch, path, writer.token, map[string]string{"status": "blocked"}).Code)

	w = a.do(http.MethodGet, "/api/v1/tasks?status=review", reader.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.TaskResponse](t, w), 1)

	w = a.do(http.MethodGet, "/api/v1/tasks?assigned_to_me=true", writer.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.TaskResponse](t, w))

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, writer.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, writer.token, nil).Code)
}

func TestFiles(t *testing.T) {
	opts := store.DefaultOptions()
	opts.MaxUploadSize = 1024
	a := newTestAPI(t, opts)
	owner := a.register("owner")
	member := a.register("member")
	outsider := a.register("outsider")

	project := a.createProject(owner, "Lab")
	a.addMember(owner, project.ID, member, models.RoleMember)
	files := fmt.Sprintf("/api/v1/projects/%d/files", project.ID)

	assert.Equal(t, http.StatusForbidden, a.upload(files, outsider.token, "notes.txt", "hello").Code)

	w := a.upload(files, member.token, "notes.txt", "week one notes\n")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	file := decode[types.FileResponse](t, w)
	assert.Equal(t, "notes.txt", file.OriginalName)
	assert.Equal(t, "uploaded in test", file.Description)
	assert.NotContains(t, w.Body.String(), "stored_name")

	assert.Equal(t, http.StatusBadRequest, a.upload(files, member.token, "big.txt", strings.Repeat("a", 2048)).Code)
	assert.Equal(t, http.StatusBadRequest, a.upload(files, member.token, "page.html", "<html><body>x</body></html>").Code)

	w = a.do(http.MethodGet, files, owner.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.FileResponse](t, w), 1)

	download := fmt.Sprintf("/api/v1/files/%d/download", file.ID)
	w = a.do(http.MethodGet, download, owner.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "week one notes\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=notes.txt`)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, download, outsider.token, nil).Code)

	path := fmt.Sprintf("/api/v1/files/%d", file.ID)
	w = a.do(http.MethodPatch, path, member.token, map[string]string{"description": "final notes"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final notes", decode[types.FileResponse](t, w).Description)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, owner.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, owner.token, nil).Code)
}

func TestSearch(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())
	owner := a.register("organizer")
	member := a.register("member")
	outsider := a.register("student_rep")

	project := a.createProject(owner, "Study Group Management")
	a.addMember(owner, project.ID, member, models.RoleMember)
	w := a.do(http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/tasks", project.ID), owner.token, map[string]string{"title": "Create Study Schedule"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodGet, "/api/v1/search/global?q=stu", member.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[types.SearchResponse](t, w)
	assert.Len(t, res.Projects, 1)
	assert.Len(t, res.Tasks, 1)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "student_rep", res.Users[0].Username)

	w = a.do(http.MethodGet, "/api/v1/search/projects?q=stu", outsider.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]types.ProjectResponse](t, w))

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/v1/search/tasks?q=s", member.token, nil).Code)
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t, store.DefaultOptions())

	w := a.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
