package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"clip-ingest/dto"
	"clip-ingest/entities"
	"clip-ingest/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type Handler struct {
	service service.Service
}

func NewHandler(s service.Service) *Handler {
	return &Handler{service: s}
}

// UploadClips handles POST /api/clips. The body is either multipart (payload
// JSON field plus video/animation files) or plain JSON with source URLs.
func (h *Handler) UploadClips(c *gin.Context) {
	payload, err := bindUploadPayload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clips, err := h.service.Ingest(c.Request.Context(), payload)
	if err != nil {
		status := statusForError(err)
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Int("status", status).Str("origin_id", payload.OriginID).Msg("clip ingestion failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{Clips: toClipResponses(clips)})
}

// ListClips handles GET /api/clips with limit/offset pagination.
func (h *Handler) ListClips(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	clips, total, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list clips")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Clips: toClipResponses(clips),
		Pagination: dto.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+len(clips)) < total,
		},
	})
}

func bindUploadPayload(c *gin.Context) (*dto.UploadPayload, error) {
	payload := &dto.UploadPayload{}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		raw := c.PostForm("payload")
		if raw == "" {
			return nil, errors.New("missing payload form field")
		}
		if err := json.Unmarshal([]byte(raw), payload); err != nil {
			return nil, err
		}
		if fh, err := c.FormFile("video"); err == nil {
			payload.VideoFile = fh
		}
		if fh, err := c.FormFile("animation"); err == nil {
			payload.AnimationFile = fh
		}
		return payload, nil
	}

	if err := c.ShouldBindJSON(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrIngestion), errors.Is(err, service.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func toClipResponses(clips []*entities.Clip) []dto.ClipResponse {
	out := make([]dto.ClipResponse, 0, len(clips))
	for _, clip := range clips {
		out = append(out, dto.ClipResponse{
			ID:           clip.ID,
			OriginID:     clip.OriginID,
			StartFrame:   clip.StartFrame,
			EndFrame:     clip.EndFrame,
			Description:  clip.Description,
			VideoURL:     clip.VideoURL,
			AnimationURL: clip.AnimationURL,
			Embedding:    clip.Embedding.Slice(),
			CreatedAt:    clip.CreatedAt,
			UpdatedAt:    clip.UpdatedAt,
		})
	}
	return out
}
