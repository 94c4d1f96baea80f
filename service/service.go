package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clip-ingest/config"
	"clip-ingest/constant"
	"clip-ingest/dto"
	"clip-ingest/entities"
	"clip-ingest/pkg/embedding"
	"clip-ingest/repository"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EventPublisher emits post-commit notifications. Publish failures never fail
// the request.
type EventPublisher interface {
	PublishClipsIngested(ctx context.Context, event dto.ClipsIngestedEvent) error
}

type Service interface {
	Ingest(ctx context.Context, payload *dto.UploadPayload) ([]*entities.Clip, error)
	List(ctx context.Context, limit, offset int) ([]*entities.Clip, int64, error)
}

type service struct {
	repo      repository.ClipRepository
	store     ObjectStore
	embedder  embedding.Client
	acquirer  *Acquirer
	processor *processor
	publisher EventPublisher
	cfg       *config.Config
}

// NewService wires the pipeline from explicitly constructed collaborators;
// nothing here reaches for globals, so tests swap in fakes freely. publisher
// may be nil when rabbitmq is not configured.
func NewService(repo repository.ClipRepository, cfg *config.Config, store ObjectStore, embedder embedding.Client, publisher EventPublisher) Service {
	return &service{
		repo:      repo,
		store:     store,
		embedder:  embedder,
		acquirer:  NewAcquirer(cfg.Source),
		processor: newProcessor(NewTrimmer(cfg.Transcode), NewAnimationSlicer(cfg.Animation.FrameSize), store, cfg.Server.Workers),
		publisher: publisher,
		cfg:       cfg,
	}
}

// Ingest runs the whole pipeline for one request: validate, stage sources and
// embed descriptions concurrently, purge any prior ingestion for the origin,
// fan out per-clip processing, and persist all rows in one transaction. Any
// failure after the first upload discards every object this request created.
// The workspace is reclaimed on every path.
func (s *service) Ingest(ctx context.Context, payload *dto.UploadPayload) ([]*entities.Clip, error) {
	if err := payload.Validate(); err != nil {
		return nil, errors.Join(ErrValidation, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("origin_id", payload.OriginID).
		Int("clip_count", len(payload.Clips)).
		Bool("has_animation", payload.HasAnimation()).
		Msg("processing clip ingestion request")

	ws, err := NewWorkspace(s.cfg.Server.WorkDir)
	if err != nil {
		return nil, errors.Join(ErrProcessing, err)
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			zerolog.Ctx(ctx).Error().Err(cerr).Str("workspace", ws.Root).Msg("failed to remove workspace")
		}
	}()

	embeddings, err := s.acquireAndEmbed(ctx, ws, payload)
	if err != nil {
		return nil, err
	}

	if err := s.purgeOrigin(ctx, payload.OriginID); err != nil {
		return nil, errors.Join(ErrPersistence, fmt.Errorf("purge prior ingestion: %w", err))
	}

	artifacts, uploads, err := s.processor.ProcessClips(ctx, ws, payload, embeddings)
	if err != nil {
		Discard(ctx, s.store, uploads.Keys())
		return nil, errors.Join(ErrProcessing, err)
	}

	rows := make([]*entities.Clip, len(artifacts))
	for i, a := range artifacts {
		rows[i] = &entities.Clip{
			OriginID:     a.OriginID,
			StartFrame:   a.StartFrame,
			EndFrame:     a.EndFrame,
			Description:  a.Description,
			VideoURL:     a.VideoURL,
			AnimationURL: a.AnimationURL,
			Embedding:    pgvector.NewVector(a.Embedding),
		}
	}
	if err := s.repo.InsertClips(ctx, rows); err != nil {
		Discard(ctx, s.store, uploads.Keys())
		return nil, errors.Join(ErrPersistence, err)
	}

	s.publishIngested(ctx, payload.OriginID, len(rows))

	zerolog.Ctx(ctx).Info().
		Str("origin_id", payload.OriginID).
		Int("clip_count", len(rows)).
		Msg("clip ingestion completed")

	return rows, nil
}

// acquireAndEmbed stages the source media and calls the embedding service
// concurrently; neither depends on the other.
func (s *service) acquireAndEmbed(ctx context.Context, ws *Workspace, payload *dto.UploadPayload) ([][]float32, error) {
	descriptions := make([]string, len(payload.Clips))
	for i, c := range payload.Clips {
		descriptions[i] = c.Description
	}

	var embeddings [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := s.acquirer.AcquireVideo(gctx, ws, videoSource(payload))
		if err != nil {
			return errors.Join(ErrIngestion, fmt.Errorf("acquire source video: %w", err))
		}
		ws.VideoPath = path

		if payload.HasAnimation() {
			buf, err := s.acquirer.AcquireAnimation(gctx, ws, animationSource(payload))
			if err != nil {
				return errors.Join(ErrIngestion, fmt.Errorf("acquire animation: %w", err))
			}
			ws.Animation = buf
		}
		return nil
	})
	g.Go(func() error {
		vectors, err := s.embedder.Embed(gctx, descriptions)
		if err != nil {
			return errors.Join(ErrEmbedding, err)
		}
		embeddings = vectors
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Positional association is the contract; check it before fanning out.
	if len(embeddings) != len(payload.Clips) {
		return nil, errors.Join(ErrEmbedding, fmt.Errorf("got %d embeddings for %d clips", len(embeddings), len(payload.Clips)))
	}
	return embeddings, nil
}

// purgeOrigin removes everything a prior ingestion left under this origin id:
// object-store artifacts under both prefixes first, then the rows. It must
// finish before any new upload or insert so old and new never interleave.
func (s *service) purgeOrigin(ctx context.Context, originID string) error {
	existing, err := s.repo.FindByOriginID(ctx, originID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("origin_id", originID).
		Int("existing_clips", len(existing)).
		Msg("replacing prior ingestion for origin")

	prefixes := []string{
		fmt.Sprintf("%s/%s/", constant.ClipKeyPrefix, originID),
		fmt.Sprintf("%s/%s/", constant.AnimationKeyPrefix, originID),
	}
	for _, prefix := range prefixes {
		if err := s.store.RemovePrefix(ctx, prefix); err != nil {
			return fmt.Errorf("delete objects under %s: %w", prefix, err)
		}
	}
	return s.repo.DeleteByOriginID(ctx, originID)
}

func (s *service) publishIngested(ctx context.Context, originID string, clipCount int) {
	if s.publisher == nil {
		return
	}
	event := dto.ClipsIngestedEvent{
		OriginID:  originID,
		ClipCount: clipCount,
		Timestamp: time.Now(),
	}
	if err := s.publisher.PublishClipsIngested(ctx, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("origin_id", originID).Msg("failed to publish clips.ingested event")
	}
}

func (s *service) List(ctx context.Context, limit, offset int) ([]*entities.Clip, int64, error) {
	clips, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, errors.Join(ErrPersistence, err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, errors.Join(ErrPersistence, err)
	}
	return clips, total, nil
}

func videoSource(payload *dto.UploadPayload) Source {
	if payload.VideoFile != nil {
		return UploadedSource(payload.VideoFile)
	}
	return RemoteSource(payload.OriginURL)
}

func animationSource(payload *dto.UploadPayload) Source {
	if payload.AnimationFile != nil {
		return UploadedSource(payload.AnimationFile)
	}
	return RemoteSource(payload.AnimURL)
}
