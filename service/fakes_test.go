package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"clip-ingest/dto"
	"clip-ingest/entities"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr map[string]error
	removeErr map[string]error
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   map[string][]byte{},
		uploadErr: map[string]error{},
		removeErr: map[string]error{},
	}
}

func (f *fakeStore) Upload(_ context.Context, key, localPath, _ string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, uerr := range f.uploadErr {
		if strings.Contains(key, pattern) {
			return "", uerr
		}
	}
	f.objects[key] = data
	return "http://cdn.test/media/" + key, nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.removeErr[key]; ok {
		return err
	}
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeStore) RemovePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
			f.removed = append(f.removed, key)
		}
	}
	return nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for key := range f.objects {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// fakeTrimmer writes a marker file instead of running ffmpeg. failOnStart
// makes the task for that start second fail.
type fakeTrimmer struct {
	mu          sync.Mutex
	calls       int
	failOnStart map[float64]error
}

func (f *fakeTrimmer) Trim(_ context.Context, _, outputPath string, startSec, endSec float64) error {
	f.mu.Lock()
	f.calls++
	err := f.failOnStart[startSec]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte(fmt.Sprintf("clip %.3f-%.3f", startSec, endSec)), 0644)
}

// fakeRepo is an in-memory ClipRepository.
type fakeRepo struct {
	mu        sync.Mutex
	rows      []*entities.Clip
	insertErr error
}

func (r *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context, tx *gorm.DB) error, _ ...*sql.TxOptions) error {
	return callback(ctx, nil)
}

func (r *fakeRepo) GetDB() *gorm.DB { return nil }

func (r *fakeRepo) FindByOriginID(_ context.Context, originID string) ([]*entities.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Clip
	for _, row := range r.rows {
		if row.OriginID == originID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteByOriginID(_ context.Context, originID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.OriginID != originID {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeRepo) InsertClips(_ context.Context, clips []*entities.Clip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	now := time.Now()
	for _, clip := range clips {
		clip.ID = uuid.New()
		clip.CreatedAt = now
		clip.UpdatedAt = now
		r.rows = append(r.rows, clip)
	}
	return nil
}

func (r *fakeRepo) List(_ context.Context, limit, offset int) ([]*entities.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return append([]*entities.Clip(nil), r.rows[offset:end]...), nil
}

func (r *fakeRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

// fakeEmbedder returns a distinct vector per input so tests can verify
// positional alignment.
type fakeEmbedder struct {
	dimension int
	err       error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dimension)
		for j := range vec {
			vec[j] = float32(i)
		}
		out[i] = vec
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dto.ClipsIngestedEvent
	err    error
}

func (f *fakePublisher) PublishClipsIngested(_ context.Context, event dto.ClipsIngestedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
