package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"clip-ingest/config"
	"clip-ingest/dto"
	"clip-ingest/entities"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	svc      *service
	repo     *fakeRepo
	store    *fakeStore
	trimmer  *fakeTrimmer
	pub      *fakePublisher
	embedder *fakeEmbedder
	workDir  string
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	workDir := t.TempDir()
	repo := &fakeRepo{}
	store := newFakeStore()
	trimmer := &fakeTrimmer{}
	pub := &fakePublisher{}
	embedder := &fakeEmbedder{dimension: 4}
	cfg := &config.Config{
		Server:    config.Server{WorkDir: workDir},
		Animation: config.Animation{FrameSize: 4},
	}
	svc := &service{
		repo:      repo,
		store:     store,
		embedder:  embedder,
		acquirer:  NewAcquirer(config.Source{MaxBytes: 1 << 20, DownloadTimeout: 5 * time.Second}),
		processor: newProcessor(trimmer, NewAnimationSlicer(4), store, 0),
		publisher: pub,
		cfg:       cfg,
	}
	return &ingestFixture{svc: svc, repo: repo, store: store, trimmer: trimmer, pub: pub, embedder: embedder, workDir: workDir}
}

func serveBytes(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (f *ingestFixture) assertWorkspaceReclaimed(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace directories should be removed")
}

func TestIngestSingleClip(t *testing.T) {
	f := newIngestFixture(t)
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-1",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 90, Description: "intro"}},
	}

	rows, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "movie-1", row.OriginID)
	assert.Equal(t, 0, row.StartFrame)
	assert.Equal(t, 90, row.EndFrame)
	assert.NotEmpty(t, row.VideoURL)
	assert.Nil(t, row.AnimationURL)
	assert.Len(t, row.Embedding.Slice(), 4)
	assert.False(t, row.CreatedAt.IsZero())

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "movie-1", f.pub.events[0].OriginID)
	assert.Equal(t, 1, f.pub.events[0].ClipCount)

	f.assertWorkspaceReclaimed(t)
}

func TestIngestWithAnimation(t *testing.T) {
	f := newIngestFixture(t)
	video := serveBytes(t, []byte("mp4"))
	anim := serveBytes(t, animationBuffer(100, 4))

	payload := &dto.UploadPayload{
		OriginID:  "movie-2",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		AnimURL:   anim.URL + "/rig.bin",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 90, Description: "intro"}},
	}

	rows, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].AnimationURL)

	// one video object, one animation object, animation slice is 90 records
	keys := f.store.keys()
	require.Len(t, keys, 2)
	assert.Equal(t, 90*4, len(f.store.objects[keys[0]]))
}

func TestIngestValidationFailsBeforeAnyIO(t *testing.T) {
	f := newIngestFixture(t)

	payload := &dto.UploadPayload{
		OriginID:  "movie-3",
		OriginURL: "http://127.0.0.1:1/unreachable.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 90, EndFrame: 90, Description: "bad range"}},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 0, f.trimmer.calls)
	assert.Empty(t, f.store.keys())
	f.assertWorkspaceReclaimed(t)
}

func TestIngestUnreachableOriginURL(t *testing.T) {
	f := newIngestFixture(t)

	payload := &dto.UploadPayload{
		OriginID:  "movie-4",
		FPS:       30,
		OriginURL: "http://127.0.0.1:1/video.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 30, Description: "x"}},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIngestion))
	assert.Empty(t, f.store.keys())
	assert.Empty(t, f.repo.rows)
	f.assertWorkspaceReclaimed(t)
}

func TestIngestEmbeddingFailureIsFatal(t *testing.T) {
	f := newIngestFixture(t)
	f.embedder.err = errors.New("embedding service down")
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-5",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 30, Description: "x"}},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.Empty(t, f.store.keys())
	f.assertWorkspaceReclaimed(t)
}

func TestIngestProcessingFailureRollsBackUploads(t *testing.T) {
	f := newIngestFixture(t)
	f.trimmer.failOnStart = map[float64]error{1.0: errors.New("ffmpeg exploded")}
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-6",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips: []dto.ClipSpec{
			{StartFrame: 0, EndFrame: 30, Description: "a"},
			{StartFrame: 30, EndFrame: 60, Description: "b"}, // fails
			{StartFrame: 60, EndFrame: 90, Description: "c"},
		},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessing))

	// clips 1 and 3 uploaded before the failure and were rolled back
	assert.Empty(t, f.store.keys())
	assert.Empty(t, f.repo.rows)
	assert.Empty(t, f.pub.events)
	f.assertWorkspaceReclaimed(t)
}

func TestIngestPersistenceFailureRollsBackUploads(t *testing.T) {
	f := newIngestFixture(t)
	f.repo.insertErr = errors.New("deadlock")
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-7",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 30, Description: "x"}},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Empty(t, f.store.keys())
	assert.Empty(t, f.repo.rows)
	f.assertWorkspaceReclaimed(t)
}

func TestIngestReplacesPriorOrigin(t *testing.T) {
	f := newIngestFixture(t)
	video := serveBytes(t, []byte("mp4"))

	// leftovers from a previous ingestion of the same origin
	f.repo.rows = []*entities.Clip{
		{OriginID: "movie-8", StartFrame: 0, EndFrame: 10, VideoURL: "old", Embedding: pgvector.NewVector([]float32{0, 0, 0, 0})},
		{OriginID: "movie-8", StartFrame: 10, EndFrame: 20, VideoURL: "old", Embedding: pgvector.NewVector([]float32{0, 0, 0, 0})},
		{OriginID: "other", StartFrame: 0, EndFrame: 10, VideoURL: "keep", Embedding: pgvector.NewVector([]float32{0, 0, 0, 0})},
	}
	f.store.objects["clips/movie-8/old.mp4"] = []byte("old")
	f.store.objects["animations/movie-8/old.bin"] = []byte("old")
	f.store.objects["clips/other/keep.mp4"] = []byte("keep")

	payload := &dto.UploadPayload{
		OriginID:  "movie-8",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips: []dto.ClipSpec{
			{StartFrame: 0, EndFrame: 30, Description: "a"},
			{StartFrame: 30, EndFrame: 60, Description: "b"},
			{StartFrame: 60, EndFrame: 90, Description: "c"},
		},
	}

	rows, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// exactly the new rows for this origin, other origins untouched
	mine, err := f.repo.FindByOriginID(context.Background(), "movie-8")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	for _, row := range mine {
		assert.NotEqual(t, "old", row.VideoURL)
	}
	other, err := f.repo.FindByOriginID(context.Background(), "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	// no stale objects under either prefix
	for _, key := range f.store.keys() {
		assert.NotContains(t, key, "old")
	}
	assert.Contains(t, f.store.keys(), "clips/other/keep.mp4")
}

func TestIngestAppliesFPSDefault(t *testing.T) {
	f := newIngestFixture(t)
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-9",
		OriginURL: video.URL + "/source.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 30, Description: "x"}},
	}

	_, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 30, payload.FPS)
}

func TestIngestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newIngestFixture(t)
	f.pub.err = errors.New("broker gone")
	video := serveBytes(t, []byte("mp4"))

	payload := &dto.UploadPayload{
		OriginID:  "movie-10",
		FPS:       30,
		OriginURL: video.URL + "/source.mp4",
		Clips:     []dto.ClipSpec{{StartFrame: 0, EndFrame: 30, Description: "x"}},
	}

	rows, err := f.svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
