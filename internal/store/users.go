package store

import (
	"context"
	"errors"
	"strings"

	"github.com/campusconnect/campusconnect/internal/auth"
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"gorm.io/gorm"
)

type NewUser struct {
	Username     string  `json:"username" validate:"required,min=3,max=50,username"`
	Email        string  `json:"email" validate:"required,max=255,email"`
	FullName     string  `json:"full_name" validate:"required,min=2,max=100"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	ProfileImage *string `json:"profile_image" validate:"omitnil,max=512"`
}

type UserUpdate struct {
	Username     *string `json:"username" validate:"omitnil,min=3,max=50,username"`
	Email        *string `json:"email" validate:"omitnil,max=255,email"`
	FullName     *string `json:"full_name" validate:"omitnil,min=2,max=100"`
	ProfileImage *string `json:"profile_image" validate:"omitnil,max=512"`
}

type passwordChange struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}

// CreateUser registers a new identity. On any failure nothing is written.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.ProfileImage = trimPtr(in.ProfileImage)

	if err := s.check(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, translate(err, "password hash")
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
		ProfileImage: in.ProfileImage,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureIdentityFree(tx, 0, &user.Username, &user.Email); err != nil {
			return err
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, translate(err, "user")
	}

	return &user, nil
}

// ensureIdentityFree fails with a conflict when another user (other than
// exceptID) already holds the username or email.
func ensureIdentityFree(tx *gorm.DB, exceptID uint, username, email *string) error {
	var existing models.User

	if username != nil {
		err := tx.Where("LOWER(username) = LOWER(?) AND id <> ?", *username, exceptID).Take(&existing).Error
		if err == nil {
			return conflict("username %q is already taken", *username)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	if email != nil {
		err := tx.Where("email = ? AND id <> ?", *email, exceptID).Take(&existing).Error
		if err == nil {
			return conflict("email is already registered")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// GetUserByLogin resolves either a username or an email address.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	if strings.Contains(login, "@") {
		return s.GetUserByEmail(ctx, login)
	}
	return s.GetUserByUsername(ctx, login)
}

// Authenticate verifies the credentials. Unknown logins and wrong passwords
// are indistinguishable to the caller; deactivated accounts are refused.
func (s *Store) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	user, err := s.GetUserByLogin(ctx, login)
	if errors.Is(err, errs.ErrNotFound) {
		_ = noUser(password)
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}

	if !user.IsActive {
		return nil, errInactive
	}

	return user, nil
}

// noUser is swapped in tests.
var noUser = auth.CheckNoUser

var (
	errInvalidCredentials = errs.Wrap(errs.ErrUnauthorized, "incorrect username or password")
	errInactive           = errs.Wrap(errs.ErrForbidden, "account is deactivated")
)

func (s *Store) UpdateUser(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	in.Username = trimPtr(in.Username)
	in.FullName = trimPtr(in.FullName)
	in.ProfileImage = trimPtr(in.ProfileImage)
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}

	if err := s.check(in); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Username != nil {
		updates["username"] = *in.Username
	}
	if in.Email != nil {
		updates["email"] = *in.Email
	}
	if in.FullName != nil {
		updates["full_name"] = *in.FullName
	}
	if in.ProfileImage != nil {
		if *in.ProfileImage == "" {
			updates["profile_image"] = nil
		} else {
			updates["profile_image"] = *in.ProfileImage
		}
	}

	if len(updates) == 0 {
		return nil, invalid("no fields to update")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&user, id).Error; err != nil {
			return err
		}
		if err := ensureIdentityFree(tx, id, in.Username, in.Email); err != nil {
			return err
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&user, id).Error
	})
	if err != nil {
		return nil, translate(err, "user")
	}

	return &user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Store) ChangePassword(ctx context.Context, id uint, current, next string) error {
	if err := s.check(passwordChange{NewPassword: next}); err != nil {
		return err
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return invalid("current password is incorrect")
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return translate(err, "password hash")
	}

	err = s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
	return translate(err, "user")
}

// DeactivateUser soft-deletes the identity. Its projects and memberships
// stay in place.
func (s *Store) DeactivateUser(ctx context.Context, id uint) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Model(user).Update("is_active", false).Error
	return translate(err, "user")
}

// SearchUsers matches active users by username, full name or email,
// leaving out excludeID.
func (s *Store) SearchUsers(ctx context.Context, term string, excludeID uint, n int) ([]models.User, error) {
	users := []models.User{}

	err := s.db.WithContext(ctx).
		Scopes(containsFold(term, "username", "full_name", "email"), limit(n)).
		Where("is_active = ? AND id <> ?", true, excludeID).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "users")
	}

	return users, nil
}
