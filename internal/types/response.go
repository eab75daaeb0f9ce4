package types

import (
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type UserResponse struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	IsActive     bool      `json:"is_active"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

type ProjectResponse struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	OwnerID     uint        `json:"owner_id"`
	Role        models.Role `json:"role,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type MemberResponse struct {
	UserID   uint         `json:"user_id"`
	Role     models.Role  `json:"role"`
	JoinedAt time.Time    `json:"joined_at"`
	User     UserResponse `json:"user"`
}

type TaskResponse struct {
	ID          uint              `json:"id"`
	ProjectID   uint              `json:"project_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	AssignedTo  *uint             `json:"assigned_to"`
	CreatedBy   uint              `json:"created_by"`
	DueDate     *time.Time        `json:"due_date"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// FileResponse never carries the blob key.
type FileResponse struct {
	ID           uint      `json:"id"`
	ProjectID    uint      `json:"project_id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	Description  string    `json:"description"`
	UploadedBy   uint      `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SearchResponse struct {
	Query    string            `json:"query"`
	Projects []ProjectResponse `json:"projects"`
	Tasks    []TaskResponse    `json:"tasks"`
	Users    []UserResponse    `json:"users"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		IsActive:     u.IsActive,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

func NewProjectResponse(p *models.Project, role models.Role) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Role:        role,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func NewMemberResponse(m *models.ProjectMembership) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID,
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
		User:     NewUserResponse(&m.User),
	}
}

func NewTaskResponse(t *models.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func NewFileResponse(f *models.File) FileResponse {
	return FileResponse{
		ID:           f.ID,
		ProjectID:    f.ProjectID,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		MimeType:     f.MimeType,
		Description:  f.Description,
		UploadedBy:   f.UploadedBy,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

func NewTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i := range tasks {
		out[i] = NewTaskResponse(&tasks[i])
	}
	return out
}

func NewFileResponses(files []models.File) []FileResponse {
	out := make([]FileResponse, len(files))
	for i := range files {
		out[i] = NewFileResponse(&files[i])
	}
	return out
}
