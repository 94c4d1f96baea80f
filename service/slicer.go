package service

import "fmt"

// AnimationSlicer cuts a raw rig track into per-clip byte ranges. The track is
// a flat sequence of fixed-size per-frame records whose layout is opaque here.
type AnimationSlicer struct {
	FrameSize int
}

func NewAnimationSlicer(frameSize int) *AnimationSlicer {
	return &AnimationSlicer{FrameSize: frameSize}
}

// Slice returns the records covering [startFrame, max(startFrame, endFrame-1)]
// inclusive. The end frame is exclusive at the API boundary, but the upper
// bound is clamped so a single-frame clip still yields one record. Frame
// indices past the buffer's encoded frame count fail instead of truncating.
func (s *AnimationSlicer) Slice(buf []byte, startFrame, endFrame int) ([]byte, error) {
	if s.FrameSize <= 0 {
		return nil, fmt.Errorf("invalid animation frame size %d", s.FrameSize)
	}
	if len(buf)%s.FrameSize != 0 {
		return nil, fmt.Errorf("animation buffer length %d is not a multiple of frame size %d", len(buf), s.FrameSize)
	}

	frameCount := len(buf) / s.FrameSize
	lastFrame := endFrame - 1
	if lastFrame < startFrame {
		lastFrame = startFrame
	}
	if startFrame < 0 || lastFrame >= frameCount {
		return nil, fmt.Errorf("frame range [%d,%d] outside animation buffer of %d frames", startFrame, lastFrame, frameCount)
	}

	out := make([]byte, (lastFrame-startFrame+1)*s.FrameSize)
	copy(out, buf[startFrame*s.FrameSize:(lastFrame+1)*s.FrameSize])
	return out, nil
}
