package models

import "time"

// PhotoAttachment is evidence uploaded against a task. Attachments are never
// modified once written.
type PhotoAttachment struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	ItemRef        *string   `json:"item_ref,omitempty"`
	UploaderID     string    `json:"uploader_id"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	DistanceMeters *float64  `json:"distance_m,omitempty"`
	ContentRef     string    `json:"content_ref"`
	CreatedAt      time.Time `json:"created_at"`
}
