package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"clip-ingest/constant"
	"clip-ingest/dto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProcessedClipArtifact is one clip's fully processed output. The object keys
// are kept only so a later failure can roll the uploads back; they are not
// persisted.
type ProcessedClipArtifact struct {
	OriginID           string
	StartFrame         int
	EndFrame           int
	Description        string
	VideoURL           string
	VideoObjectKey     string
	AnimationURL       *string
	AnimationObjectKey string
	Embedding          []float32
}

// uploadLog collects every object key that reached storage, across all
// concurrent clip tasks, including tasks that fail after their upload.
type uploadLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *uploadLog) record(key string) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
}

func (l *uploadLog) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}

type processor struct {
	trimmer Trimmer
	slicer  *AnimationSlicer
	store   ObjectStore
	workers int
}

func newProcessor(trimmer Trimmer, slicer *AnimationSlicer, store ObjectStore, workers int) *processor {
	return &processor{
		trimmer: trimmer,
		slicer:  slicer,
		store:   store,
		workers: workers,
	}
}

// ProcessClips fans out one task per clip. Completion order is unordered but
// the returned slice matches the input clip order position for position.
// embeddings must already be length-checked against the clip list. On failure
// the upload log still names everything that was uploaded so the caller can
// discard it.
func (p *processor) ProcessClips(ctx context.Context, ws *Workspace, payload *dto.UploadPayload, embeddings [][]float32) ([]*ProcessedClipArtifact, *uploadLog, error) {
	artifacts := make([]*ProcessedClipArtifact, len(payload.Clips))
	uploads := &uploadLog{}

	g, gctx := errgroup.WithContext(ctx)
	if p.workers > 0 {
		g.SetLimit(p.workers)
	}
	for i, clip := range payload.Clips {
		g.Go(func() error {
			artifact, err := p.processClip(gctx, ws, payload, clip, embeddings[i], uploads)
			if err != nil {
				return err
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, uploads, err
	}
	return artifacts, uploads, nil
}

func (p *processor) processClip(ctx context.Context, ws *Workspace, payload *dto.UploadPayload, clip dto.ClipSpec, embedding []float32, uploads *uploadLog) (*ProcessedClipArtifact, error) {
	artifactID := uuid.New()
	startSec := float64(clip.StartFrame) / float64(payload.FPS)
	endSec := float64(clip.EndFrame) / float64(payload.FPS)

	videoPath := filepath.Join(ws.Root, artifactID.String()+".mp4")
	if err := p.trimmer.Trim(ctx, ws.VideoPath, videoPath, startSec, endSec); err != nil {
		return nil, fmt.Errorf("trim clip [%d,%d): %w", clip.StartFrame, clip.EndFrame, err)
	}

	videoKey := fmt.Sprintf("%s/%s/%s.mp4", constant.ClipKeyPrefix, payload.OriginID, artifactID)
	videoURL, err := p.store.Upload(ctx, videoKey, videoPath, "video/mp4")
	if err != nil {
		return nil, fmt.Errorf("upload clip video: %w", err)
	}
	uploads.record(videoKey)
	removeLocal(ctx, videoPath)

	artifact := &ProcessedClipArtifact{
		OriginID:       payload.OriginID,
		StartFrame:     clip.StartFrame,
		EndFrame:       clip.EndFrame,
		Description:    clip.Description,
		VideoURL:       videoURL,
		VideoObjectKey: videoKey,
		Embedding:      embedding,
	}

	if ws.Animation != nil {
		sliced, err := p.slicer.Slice(ws.Animation, clip.StartFrame, clip.EndFrame)
		if err != nil {
			return nil, fmt.Errorf("slice animation: %w", err)
		}
		animPath := filepath.Join(ws.Root, artifactID.String()+".bin")
		if err := os.WriteFile(animPath, sliced, 0644); err != nil {
			return nil, fmt.Errorf("stage animation slice: %w", err)
		}
		animKey := fmt.Sprintf("%s/%s/%s.bin", constant.AnimationKeyPrefix, payload.OriginID, artifactID)
		animURL, err := p.store.Upload(ctx, animKey, animPath, "application/octet-stream")
		if err != nil {
			return nil, fmt.Errorf("upload animation slice: %w", err)
		}
		uploads.record(animKey)
		removeLocal(ctx, animPath)

		artifact.AnimationURL = &animURL
		artifact.AnimationObjectKey = animKey
	}

	return artifact, nil
}

func removeLocal(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to remove staged file")
	}
}
