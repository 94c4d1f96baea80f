package service

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"clip-ingest/config"
	"github.com/rs/zerolog"
)

// ffmpeg writes progress lines continuously; keep only the tail for failure
// reports so a long trim cannot balloon memory.
const diagnosticTailBytes = 8 * 1024

type Trimmer interface {
	Trim(ctx context.Context, inputPath, outputPath string, startSec, endSec float64) error
}

type ffmpegTrimmer struct {
	cfg config.Transcode
}

func NewTrimmer(cfg config.Transcode) Trimmer {
	return &ffmpegTrimmer{cfg: cfg}
}

// Trim extracts [startSec, endSec) from inputPath into outputPath. The default
// is a lossless container-level copy. When transcoding is enabled a hardware
// decoder is tried first if configured; on any hardware failure the trim is
// retried with software encoding so the caller sees the same contract either
// way.
func (t *ffmpegTrimmer) Trim(ctx context.Context, inputPath, outputPath string, startSec, endSec float64) error {
	if !t.cfg.Enabled {
		return runFFmpeg(ctx, trimCopyArgs(inputPath, outputPath, startSec, endSec))
	}

	if t.cfg.HWAccel != "" {
		err := runFFmpeg(ctx, trimTranscodeArgs(inputPath, outputPath, startSec, endSec, t.cfg, true))
		if err == nil {
			return nil
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("hwaccel", t.cfg.HWAccel).Msg("hardware transcode failed, retrying with software encoder")
	}
	return runFFmpeg(ctx, trimTranscodeArgs(inputPath, outputPath, startSec, endSec, t.cfg, false))
}

func trimCopyArgs(inputPath, outputPath string, startSec, endSec float64) []string {
	return []string{
		"-i", inputPath,
		"-ss", formatSeconds(startSec),
		"-to", formatSeconds(endSec),
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}

func trimTranscodeArgs(inputPath, outputPath string, startSec, endSec float64, cfg config.Transcode, hardware bool) []string {
	args := []string{}
	codec := "libx264"
	if hardware {
		args = append(args, "-hwaccel", cfg.HWAccel)
	}
	if cfg.Codec != "" {
		codec = cfg.Codec
	}
	if !hardware && codec != "libx264" && cfg.HWAccel != "" {
		// The configured codec may be the hardware one; the software retry
		// must not reuse it.
		codec = "libx264"
	}
	args = append(args,
		"-i", inputPath,
		"-ss", formatSeconds(startSec),
		"-to", formatSeconds(endSec),
		"-c:v", codec,
		"-preset", cfg.Preset,
		"-b:v", cfg.Bitrate,
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	return args
}

func runFFmpeg(ctx context.Context, args []string) error {
	tail := newTailBuffer(diagnosticTailBytes)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = tail
	cmd.Stderr = tail
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, tail.String())
	}
	return nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
