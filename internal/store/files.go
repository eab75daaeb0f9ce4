package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/campusconnect/campusconnect/internal/blob"
	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

type NewFile struct {
	ProjectID    uint   `json:"project_id" validate:"required"`
	UploadedBy   uint   `json:"uploaded_by" validate:"required"`
	OriginalName string `json:"original_name" validate:"required,max=255"`
	Description  string `json:"description" validate:"max=1000"`
	// Size is the length announced by the client, if known. The stored size
	// is always what was actually written.
	Size int64 `json:"size"`
}

type FileUpdate struct {
	Description *string `json:"description" validate:"omitnil,max=1000"`
}

func (s *Store) allowedType(m *mimetype.MIME) bool {
	for _, allowed := range s.opts.AllowedMIMETypes {
		if m.Is(allowed) {
			return true
		}
	}
	return false
}

// CreateFile stores content as a new file of the project. The metadata row
// and the blob are written together: if either fails neither is kept.
func (s *Store) CreateFile(ctx context.Context, in NewFile, content io.Reader) (*models.File, error) {
	in.OriginalName = filepath.Base(strings.TrimSpace(in.OriginalName))
	in.Description = strings.TrimSpace(in.Description)
	if in.OriginalName == "." || in.OriginalName == string(filepath.Separator) {
		in.OriginalName = ""
	}

	if err := s.check(in); err != nil {
		return nil, err
	}

	maxSize := s.opts.MaxUploadSize
	if in.Size > maxSize {
		return nil, invalid("file exceeds the maximum size of %d bytes", maxSize)
	}

	br := bufio.NewReaderSize(content, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read upload: %v", errs.ErrStorage, err)
	}
	if len(head) == 0 {
		return nil, invalid("file is empty")
	}

	mtype := mimetype.Detect(head)
	if !s.allowedType(mtype) {
		return nil, invalid("file type %s is not allowed", mtype.String())
	}

	file := models.File{
		ProjectID:    in.ProjectID,
		StoredName:   s.blobs.NewKey(in.ProjectID, in.OriginalName),
		OriginalName: in.OriginalName,
		MimeType:     mtype.String(),
		Description:  in.Description,
		UploadedBy:   in.UploadedBy,
	}

	written := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Take(&project, in.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("project %d", in.ProjectID)
			}
			return err
		}

		n, err := s.blobs.Put(ctx, file.StoredName, io.LimitReader(br, maxSize+1))
		if err != nil {
			return fmt.Errorf("%w: write blob: %v", errs.ErrStorage, err)
		}
		written = true

		if n > maxSize {
			return invalid("file exceeds the maximum size of %d bytes", maxSize)
		}
		file.Size = n

		return tx.Create(&file).Error
	})
	if err != nil {
		if written {
			if delErr := s.blobs.Delete(file.StoredName); delErr != nil && !errors.Is(delErr, blob.ErrNotExist) {
				log.Error().Err(delErr).Str("blob", file.StoredName).Msg("failed to remove blob of rejected upload")
			}
		}
		return nil, translate(err, "file")
	}

	return &file, nil
}

func (s *Store) GetFile(ctx context.Context, id uint) (*models.File, error) {
	var file models.File
	if err := s.db.WithContext(ctx).Take(&file, id).Error; err != nil {
		return nil, translate(err, "file")
	}
	return &file, nil
}

func (s *Store) ListProjectFiles(ctx context.Context, projectID uint) ([]models.File, error) {
	files := []models.File{}

	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&files).Error
	if err != nil {
		return nil, translate(err, "files")
	}

	return files, nil
}

func (s *Store) UpdateFile(ctx context.Context, id uint, in FileUpdate) (*models.File, error) {
	in.Description = trimPtr(in.Description)

	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Description == nil {
		return nil, invalid("no fields to update")
	}

	var file models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&file, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&file).Update("description", *in.Description).Error; err != nil {
			return err
		}
		return tx.Take(&file, id).Error
	})
	if err != nil {
		return nil, translate(err, "file")
	}

	return &file, nil
}

// trashSuffix marks a blob whose row is being deleted.
const trashSuffix = ".deleting"

// DeleteFile removes the metadata row and its blob. The blob is moved aside
// inside the transaction and removed only after commit; if the transaction
// fails it is moved back. A blob that cannot be moved keeps the row, and a
// blob that is already gone does not block the delete.
func (s *Store) DeleteFile(ctx context.Context, id uint) error {
	var (
		file  models.File
		trash string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&file, id).Error; err != nil {
			return err
		}

		err := s.blobs.Rename(file.StoredName, file.StoredName+trashSuffix)
		switch {
		case errors.Is(err, blob.ErrNotExist):
			log.Warn().Uint("file_id", id).Str("blob", file.StoredName).Msg("blob already missing on delete")
		case err != nil:
			return fmt.Errorf("%w: delete blob: %v", errs.ErrStorage, err)
		default:
			trash = file.StoredName + trashSuffix
		}

		return tx.Delete(&file).Error
	})
	if err != nil {
		if trash != "" {
			if restoreErr := s.blobs.Rename(trash, file.StoredName); restoreErr != nil {
				log.Error().Err(restoreErr).Uint("file_id", id).Str("blob", file.StoredName).Msg("failed to restore blob after aborted delete")
			}
		}
		return translate(err, "file")
	}

	if trash != "" {
		if err := s.blobs.Delete(trash); err != nil && !errors.Is(err, blob.ErrNotExist) {
			log.Error().Err(err).Uint("file_id", id).Str("blob", trash).Msg("failed to delete blob of deleted file")
		}
	}

	return nil
}

// OpenFile returns a reader for the file's contents. The caller closes it.
func (s *Store) OpenFile(ctx context.Context, file *models.File) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorage, err)
	}

	rc, err := s.blobs.Open(file.StoredName)
	if err != nil {
		log.Error().Err(err).Uint("file_id", file.ID).Str("blob", file.StoredName).Msg("failed to open blob")
		return nil, fmt.Errorf("%w: file contents unavailable", errs.ErrStorage)
	}

	return rc, nil
}
