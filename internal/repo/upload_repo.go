// Package repo implements the data persistence layer for the upload audit
// log, backed by GORM. This file provides repository functions for the
// UploadRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-line-uploader/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency.
var ErrNotFound = gorm.ErrRecordNotFound

// RecordUpload inserts one audit row for a persisted note or image.
// The record ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
func RecordUpload(ctx context.Context, db *gorm.DB, senderID, destination, kind, fileName, remoteID string) (*domain.UploadRecord, error) {
	r := &domain.UploadRecord{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		Destination: destination,
		Kind:        kind,
		FileName:    fileName,
		RemoteID:    remoteID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CountUploads returns the total number of audit rows for senderID.
// On DB error, it returns the error.
func CountUploads(ctx context.Context, db *gorm.DB, senderID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.UploadRecord{}).
		Where("sender_id = ?", senderID).
		Count(&total).Error
	return total, err
}

// ListUploadsPage returns a paginated slice of audit rows for senderID,
// ordered by creation time descending. Use CountUploads to obtain the total
// for pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListUploadsPage(ctx context.Context, db *gorm.DB, senderID string, offset, limit int) ([]domain.UploadRecord, error) {
	var out []domain.UploadRecord
	err := db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetUpload fetches a single audit row by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetUpload(ctx context.Context, db *gorm.DB, id string) (*domain.UploadRecord, error) {
	var r domain.UploadRecord
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}
