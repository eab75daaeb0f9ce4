// Package store is the data-access layer for identities, projects,
// memberships, tasks and files. A single Store wraps one *gorm.DB handle and
// the blob storage for file contents; it is created once per process and
// shared by all requests.
//
// Lookups of unknown ids return errs.ErrNotFound, uniqueness violations
// errs.ErrConflict, invalid input errs.ErrValidation and everything else
// errs.ErrStorage. Updates merge only the supplied fields.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/campusconnect/campusconnect/internal/blob"
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Scope narrows a query, e.g. to the projects a user may see.
type Scope = func(*gorm.DB) *gorm.DB

type Options struct {
	MaxUploadSize    int64
	AllowedMIMETypes []string
}

var DefaultAllowedMIMETypes = []string{
	// documents
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.oasis.opendocument.text",
	"application/vnd.oasis.opendocument.spreadsheet",
	"application/vnd.oasis.opendocument.presentation",
	"text/rtf",
	// images
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	// archives
	"application/zip",
	"application/gzip",
	"application/x-tar",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	// text
	"text/plain",
	"text/csv",
}

func DefaultOptions() Options {
	return Options{
		MaxUploadSize:    10 * 1024 * 1024,
		AllowedMIMETypes: DefaultAllowedMIMETypes,
	}
}

type Store struct {
	db       *gorm.DB
	blobs    blob.Storage
	opts     Options
	validate *validator.Validate
}

func New(db *gorm.DB, blobs blob.Storage, opts Options) *Store {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultOptions().MaxUploadSize
	}
	if len(opts.AllowedMIMETypes) == 0 {
		opts.AllowedMIMETypes = DefaultAllowedMIMETypes
	}

	return &Store{
		db:       db,
		blobs:    blobs,
		opts:     opts,
		validate: newValidator(),
	}
}

func (s *Store) Options() Options {
	return s.opts
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorage, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorage, err)
	}
	return nil
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})

	return v
}

func (s *Store) check(input interface{}) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}

	return fmt.Errorf("%w: %s", errs.ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "username":
		return field + " may only contain letters, numbers and underscores"
	case "task_status":
		return field + " must be one of todo, in_progress, review, done"
	case "role":
		return field + " must be one of owner, admin, member"
	default:
		return field + " is invalid"
	}
}

// translate maps a gorm error onto the error taxonomy. Errors that already
// belong to it pass through untouched.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case isTaxonomy(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", errs.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", errs.ErrConflict, what)
	default:
		return fmt.Errorf("%w: %s: %v", errs.ErrStorage, what, err)
	}
}

func isTaxonomy(err error) bool {
	for known := range errs.ErrStatusMap {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{errs.ErrNotFound}, args...)...)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{errs.ErrValidation}, args...)...)
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{errs.ErrConflict}, args...)...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsFold builds a case-insensitive substring match of term against
// any of columns. Both operands are folded by the database's LOWER so they
// agree on non-ASCII text.
func containsFold(term string, columns ...string) Scope {
	pattern := "%" + likeEscaper.Replace(term) + "%"

	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		clauses[i] = "LOWER(" + column + ") LIKE LOWER(?) ESCAPE '\\'"
		args[i] = pattern
	}

	return func(db *gorm.DB) *gorm.DB {
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

func limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}
