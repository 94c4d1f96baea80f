package service

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the per-request scratch directory. It is exclusively owned by
// one request; concurrent clip tasks write distinct artifact-id-named files
// inside it. Close removes everything, success or failure.
type Workspace struct {
	Root      string
	VideoPath string
	Animation []byte
}

func NewWorkspace(workDir string) (*Workspace, error) {
	root := filepath.Join(workDir, uuid.New().String())
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, err
	}
	return &Workspace{Root: root}, nil
}

func (w *Workspace) Close() error {
	return os.RemoveAll(w.Root)
}
