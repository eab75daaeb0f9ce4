// Package search runs substring searches across projects, tasks and users
// on behalf of a requester. Projects and tasks are limited to what the
// requester can see; users are not.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
)

const (
	MinQueryLength = 2

	// GlobalLimit caps each category of a global search.
	GlobalLimit = 5
	// CategoryLimit caps a single-category search.
	CategoryLimit = 100

	// DescriptionBudget is how many characters of a description a global
	// search returns before the ellipsis.
	DescriptionBudget = 100
	ellipsis          = "..."
)

// Scoper provides the visibility rule applied to project and task results.
type Scoper interface {
	ProjectScope(userID uint) store.Scope
	TaskScope(userID uint) store.Scope
}

type Aggregator struct {
	store  *store.Store
	scoper Scoper
}

func NewAggregator(s *store.Store, scoper Scoper) *Aggregator {
	return &Aggregator{store: s, scoper: scoper}
}

type Results struct {
	Query    string           `json:"query"`
	Projects []models.Project `json:"projects"`
	Tasks    []models.Task    `json:"tasks"`
	Users    []models.User    `json:"users"`
}

func normalize(query string) (string, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return "", errs.Wrap(errs.ErrValidation, "search query must be at least 2 characters")
	}
	return q, nil
}

// Global searches every category, keeping the first few hits of each with
// descriptions shortened.
func (a *Aggregator) Global(ctx context.Context, userID uint, query string) (*Results, error) {
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}

	projects, err := a.store.SearchProjects(ctx, q, GlobalLimit, a.scoper.ProjectScope(userID))
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.SearchTasks(ctx, q, GlobalLimit, a.scoper.TaskScope(userID))
	if err != nil {
		return nil, err
	}
	users, err := a.store.SearchUsers(ctx, q, userID, GlobalLimit)
	if err != nil {
		return nil, err
	}

	for i := range projects {
		projects[i].Description = Truncate(projects[i].Description, DescriptionBudget)
	}
	for i := range tasks {
		tasks[i].Description = Truncate(tasks[i].Description, DescriptionBudget)
	}

	return &Results{Query: q, Projects: projects, Tasks: tasks, Users: users}, nil
}

func (a *Aggregator) Projects(ctx context.Context, userID uint, query string) ([]models.Project, error) {
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}
	return a.store.SearchProjects(ctx, q, CategoryLimit, a.scoper.ProjectScope(userID))
}

func (a *Aggregator) Tasks(ctx context.Context, userID uint, query string) ([]models.Task, error) {
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}
	return a.store.SearchTasks(ctx, q, CategoryLimit, a.scoper.TaskScope(userID))
}

// Users searches all active users except the requester.
func (a *Aggregator) Users(ctx context.Context, userID uint, query string) ([]models.User, error) {
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}
	return a.store.SearchUsers(ctx, q, userID, CategoryLimit)
}

// Truncate shortens s to budget characters followed by an ellipsis. Strings
// within budget are returned unchanged.
func Truncate(s string, budget int) string {
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + ellipsis
}
