package store_test

import (
	"context"
	"testing"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/campusconnect/campusconnect/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProjectAddsOwnerMembership(t *testing.T) {
	env := storetest.New(t)
	ctx := context.Background()
	alice := env.MustUser(t, "alice")

	project, err := env.Store.CreateProject(ctx, alice.ID, store.NewProject{
		Title:       "Study Group Management",
		Description: "Weekly sessions",
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, project.OwnerID)

	members, err := env.Store.ListMembers(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, alice.ID, members[0].UserID)
	assert.Equal(t, models.RoleOwner, members[0].Role)
	assert.Equal(t, "alice", members[0].User.Username)
}

func TestCreateProjectFailures(t *testing.T) {
	env := storetest.New(t)
	ctx := context.Background()
	alice := env.MustUser(t, "alice")

	_, err := env.Store.CreateProject(ctx, alice.ID, store.NewProject{Title: "   "})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = env.Store.CreateProject(ctx, 999, store.NewProject{Title: "Orphan"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	var count int64
	require.NoError(t, env.DB.Model(&models.Project{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.DB.Model(&models.ProjectMembership{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListProjectsVisibleTo(t *testing.T) {
	env := storetest.New(t)
	ctx := context.Background()
	alice := env.MustUser(t, "alice")
	bob := env.MustUser(t, "bob")
	carol := env.MustUser(t, "carol")

	own := env.MustProject(t, alice, "Alice's project")
	shared := env.MustProject(t, bob, "Bob's project")
	env.MustProject(t, carol, "Carol's project")
	env.MustMember(t, shared, alice, models.RoleMember)

	projects, err := env.Store.ListProjectsVisibleTo(ctx, alice.ID)
	require.NoError(t, err)

	ids := []uint{}
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []uint{own.ID, shared.ID}, ids)

	projects, err = env.Store.ListProjectsVisibleTo(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestUpdateProjectMergesFields(t *testing.T) {
	env := storetest.New(t)
	ctx := context.Background()
	alice := env.MustUser(t, "alice")

	project, err := env.Store.CreateProject(ctx, alice.ID, store.NewProject{Title: "Draft", Description: "keep me"})
	require.NoError(t, err)

	title := "Final"
	updated, err := env.Store.UpdateProject(ctx, project.ID, store.ProjectUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "keep me", updated.Description)

	empty := ""
	_, err = env.Store.UpdateProject(ctx, project.ID, store.ProjectUpdate{Title: &empty})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = env.Store.UpdateProject(ctx, 999, store.ProjectUpdate{Title: &title})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	env := storetest.New(t)
	ctx := context.Background()
	alice := env.MustUser(t, "alice")
	bob := env.MustUser(t, "bob")

	project := env.MustProject(t, alice, "Doomed")
	env.MustMember(t, project, bob, models.RoleMember)
	env.MustTask(t, project, bob, "Write report")
	file := mustUpload(t, env, project, alice, "notes.txt", "some notes")

	require.NoError(t, env.Store.DeleteProject(ctx, project.ID))

	_, err := env.Store.GetProject(ctx, project.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	for _, model := range []interface{}{&models.ProjectMembership{}, &models.Task{}, &models.File{}} {
		var count int64
		require.NoError(t, env.DB.Model(model).Where("project_id = ?", project.ID).Count(&count).Error)
		assert.Zero(t, count)
	}

	assert.NoFileExists(t, blobPath(env, file))

	err = env.Store.DeleteProject(ctx, project.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
