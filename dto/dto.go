package dto

import (
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"clip-ingest/constant"
	"github.com/google/uuid"
)

// ClipSpec is one requested cut: a half-open frame interval [StartFrame,
// EndFrame) plus the text that gets embedded for search.
type ClipSpec struct {
	StartFrame  int    `json:"start_frame"`
	EndFrame    int    `json:"end_frame"`
	Description string `json:"description"`
}

// UploadPayload is the decoded body of POST /api/clips. Exactly one of
// OriginURL or the multipart video file must be present; AnimURL and the
// multipart animation file are optional and mutually exclusive.
type UploadPayload struct {
	OriginID  string     `json:"origin_id"`
	FPS       int        `json:"fps"`
	OriginURL string     `json:"origin_url"`
	AnimURL   string     `json:"anim_url"`
	Clips     []ClipSpec `json:"clips"`

	VideoFile     *multipart.FileHeader `json:"-"`
	AnimationFile *multipart.FileHeader `json:"-"`
}

// Validate checks every payload constraint before any I/O happens. It also
// applies the fps default so callers downstream never see zero.
func (p *UploadPayload) Validate() error {
	if p.OriginID == "" {
		return errors.New("origin_id is required")
	}
	if p.FPS == 0 {
		p.FPS = constant.DefaultFPS
	}
	if p.FPS < 1 || p.FPS > constant.MaxFPS {
		return fmt.Errorf("fps must be between 1 and %d", constant.MaxFPS)
	}
	if (p.OriginURL == "") == (p.VideoFile == nil) {
		return errors.New("exactly one of origin_url or an uploaded video is required")
	}
	if p.AnimURL != "" && p.AnimationFile != nil {
		return errors.New("at most one of anim_url or an uploaded animation is allowed")
	}
	if len(p.Clips) == 0 {
		return errors.New("clips must not be empty")
	}
	if len(p.Clips) > constant.MaxClips {
		return fmt.Errorf("at most %d clips per request", constant.MaxClips)
	}
	for i, c := range p.Clips {
		if c.StartFrame < 0 {
			return fmt.Errorf("clips[%d]: start_frame must be >= 0", i)
		}
		if c.EndFrame <= c.StartFrame {
			return fmt.Errorf("clips[%d]: end_frame must be greater than start_frame", i)
		}
		if len(c.Description) == 0 || len(c.Description) > constant.MaxDescription {
			return fmt.Errorf("clips[%d]: description must be 1-%d characters", i, constant.MaxDescription)
		}
	}
	return nil
}

// HasAnimation reports whether the request carries a companion rig track.
func (p *UploadPayload) HasAnimation() bool {
	return p.AnimURL != "" || p.AnimationFile != nil
}

type ClipResponse struct {
	ID           uuid.UUID `json:"id"`
	OriginID     string    `json:"origin_id"`
	StartFrame   int       `json:"start_frame"`
	EndFrame     int       `json:"end_frame"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"video_url"`
	AnimationURL *string   `json:"animation_url,omitempty"`
	Embedding    []float32 `json:"embedding"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UploadResponse struct {
	Clips []ClipResponse `json:"clips"`
}

type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

type ListResponse struct {
	Clips      []ClipResponse `json:"clips"`
	Pagination Pagination     `json:"pagination"`
}

// ClipsIngestedEvent is published to the topic exchange after a successful
// ingestion commit.
type ClipsIngestedEvent struct {
	OriginID  string    `json:"originId"`
	ClipCount int       `json:"clipCount"`
	Timestamp time.Time `json:"timestamp"`
}
