// Package storetest builds SQLite-backed stores for tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/campusconnect/campusconnect/db"
	"github.com/campusconnect/campusconnect/internal/blob"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Password is the password of every user created by MustUser.
const Password = "correct-horse-battery"

type Env struct {
	Store     *store.Store
	DB        *gorm.DB
	Blobs     *blob.LocalStorage
	UploadDir string
}

// New returns a store over a fresh database and upload directory, both
// removed when the test ends.
func New(t *testing.T) *Env {
	return NewWithOptions(t, store.DefaultOptions())
}

func NewWithOptions(t *testing.T, opts store.Options) *Env {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "campus.db") + "?_foreign_keys=on"

	gdb, err := db.ConnectDatabase("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.MigrateDatabase(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	uploadDir := filepath.Join(dir, "uploads")
	blobs, err := blob.NewLocalStorage(uploadDir)
	require.NoError(t, err)

	return &Env{
		Store:     store.New(gdb, blobs, opts),
		DB:        gdb,
		Blobs:     blobs,
		UploadDir: uploadDir,
	}
}

func (e *Env) MustUser(t *testing.T, username string) *models.User {
	t.Helper()

	user, err := e.Store.CreateUser(context.Background(), store.NewUser{
		Username: username,
		Email:    username + "@example.com",
		FullName: fmt.Sprintf("%s Example", username),
		Password: Password,
	})
	require.NoError(t, err)

	return user
}

func (e *Env) MustProject(t *testing.T, owner *models.User, title string) *models.Project {
	t.Helper()

	project, err := e.Store.CreateProject(context.Background(), owner.ID, store.NewProject{Title: title})
	require.NoError(t, err)

	return project
}

func (e *Env) MustMember(t *testing.T, project *models.Project, user *models.User, role models.Role) {
	t.Helper()

	_, err := e.Store.AddMember(context.Background(), project.ID, user.ID, role)
	require.NoError(t, err)
}

func (e *Env) MustTask(t *testing.T, project *models.Project, creator *models.User, title string) *models.Task {
	t.Helper()

	task, err := e.Store.CreateTask(context.Background(), project.ID, creator.ID, store.NewTask{Title: title})
	require.NoError(t, err)

	return task
}
