package models

import "time"

// CardAttachment describes a file attached to a card. The bytes live in
// object storage under StorageKey.
type CardAttachment struct {
	ID         string
	CardID     int64
	FileName   string
	StorageKey string
	UploadedBy int64
	CreatedAt  time.Time
}

// PresignedURL is a temporary URL the client uses to move attachment bytes
// directly to or from object storage.
type PresignedURL struct {
	AttachmentID string    `json:"attachmentId"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
