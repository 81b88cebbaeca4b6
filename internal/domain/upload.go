// Package domain – upload audit model.
//
// This file defines the persistence model for the upload audit log. One row
// is written per successfully persisted note or image so operators can
// answer "what landed where, and when" without trawling Drive itself.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Upload kinds stored in UploadRecord.Kind.
const (
	UploadKindNote  = "note"
	UploadKindImage = "image"
)

// UploadRecord is the audit row for one persisted note or image.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SenderID: platform identity that produced the content; indexed.
//   - Destination: resolved destination group name.
//   - Kind: "note" or "image" (enforced by DB constraint).
//   - FileName: name of the file written or appended to in storage.
//   - RemoteID: storage-side file identifier when the operation returns one
//     (uploads do, appends do not).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type UploadRecord struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID    string         `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_sender_uploads"`
	Destination string         `json:"destination" gorm:"type:varchar(128);not null;index"`
	Kind        string         `json:"kind"        gorm:"type:varchar(16);not null;check:kind IN ('note','image')"`
	FileName    string         `json:"file_name"   gorm:"type:varchar(255);not null"`
	RemoteID    string         `json:"remote_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for UploadRecord.
func (UploadRecord) TableName() string { return "upload_records" }
