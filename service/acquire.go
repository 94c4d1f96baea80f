package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"clip-ingest/config"
	"clip-ingest/constant"
)

// Source is the tagged "either an uploaded stream or a remote URL" variant.
// Exactly one field is set.
type Source struct {
	Upload    *multipart.FileHeader
	RemoteURL string
}

func UploadedSource(f *multipart.FileHeader) Source {
	return Source{Upload: f}
}

func RemoteSource(rawURL string) Source {
	return Source{RemoteURL: rawURL}
}

// Acquirer stages source media into the workspace. Remote downloads are
// bounded by the configured timeout and, when the server sends a
// Content-Length, by the configured size cap. A response without a
// Content-Length streams uncapped.
type Acquirer struct {
	client   *http.Client
	maxBytes int64
}

func NewAcquirer(cfg config.Source) *Acquirer {
	return &Acquirer{
		client:   &http.Client{Timeout: cfg.DownloadTimeout},
		maxBytes: cfg.MaxBytes,
	}
}

// AcquireVideo stages the source video into the workspace and returns the
// local path.
func (a *Acquirer) AcquireVideo(ctx context.Context, ws *Workspace, src Source) (string, error) {
	name := sourceFileName(src, constant.FallbackVideoName)
	dst := filepath.Join(ws.Root, name)
	if err := a.fetch(ctx, src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// AcquireAnimation reads the animation binary fully into memory; the slicer
// operates on the whole buffer.
func (a *Acquirer) AcquireAnimation(ctx context.Context, ws *Workspace, src Source) ([]byte, error) {
	dst := filepath.Join(ws.Root, sourceFileName(src, constant.FallbackAnimationName))
	if err := a.fetch(ctx, src, dst); err != nil {
		return nil, err
	}
	buf, err := os.ReadFile(dst)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(dst); err != nil {
		return nil, err
	}
	return buf, nil
}

func (a *Acquirer) fetch(ctx context.Context, src Source, dst string) error {
	if src.Upload != nil {
		return a.copyUpload(src.Upload, dst)
	}
	return a.download(ctx, src.RemoteURL, dst)
}

func (a *Acquirer) copyUpload(fh *multipart.FileHeader, dst string) error {
	if a.maxBytes > 0 && fh.Size > a.maxBytes {
		return fmt.Errorf("uploaded file is %d bytes, limit is %d", fh.Size, a.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, f)
	return err
}

func (a *Acquirer) download(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	// Reject on the advertised size before touching the body.
	if a.maxBytes > 0 && resp.ContentLength > a.maxBytes {
		return fmt.Errorf("download %s: %d bytes exceeds limit of %d", rawURL, resp.ContentLength, a.maxBytes)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// sourceFileName derives the staged file name from the upload's name or the
// URL's path component, falling back to a fixed name when absent.
func sourceFileName(src Source, fallback string) string {
	var name string
	if src.Upload != nil {
		name = filepath.Base(src.Upload.Filename)
	} else if u, err := url.Parse(src.RemoteURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
