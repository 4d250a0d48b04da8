package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"
)

// DefaultSampleInterval spaces out frames read from a video file.
const DefaultSampleInterval = 200 * time.Millisecond

// VideoFile reads frames from a recorded video, skipping frames so that
// consecutive results are at least SampleInterval apart in video time.
type VideoFile struct {
	path     string
	capture  *gocv.VideoCapture
	interval time.Duration
	lastPos  time.Duration
	read     int
}

// FrameSource yields frames with their position in a recording.
// Next returns io.EOF after the last frame; the caller closes each Mat.
type FrameSource interface {
	Next() (*gocv.Mat, time.Duration, error)
	Close() error
}

var _ FrameSource = (*VideoFile)(nil)

// OpenVideoFile opens path for sampling. An interval of zero uses DefaultSampleInterval.
func OpenVideoFile(path string, interval time.Duration) (*VideoFile, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video: %s is not readable", path)
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &VideoFile{path: path, capture: capture, interval: interval, lastPos: -interval}, nil
}

// Next returns the next sampled frame and its position in the video.
// It returns io.EOF after the last frame. The caller closes the Mat.
func (v *VideoFile) Next() (*gocv.Mat, time.Duration, error) {
	if v.capture == nil {
		return nil, 0, errors.New("video is closed")
	}
	for {
		mat := gocv.NewMat()
		if ok := v.capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			return nil, 0, io.EOF
		}
		pos := v.position()
		if pos-v.lastPos < v.interval {
			mat.Close()
			continue
		}
		v.lastPos = pos
		v.read++
		return &mat, pos, nil
	}
}

// position falls back to the frame index when the container has no timestamps.
func (v *VideoFile) position() time.Duration {
	ms := v.capture.Get(gocv.VideoCapturePosMsec)
	if ms > 0 {
		return time.Duration(ms * float64(time.Millisecond))
	}
	fps := v.capture.Get(gocv.VideoCaptureFPS)
	frame := v.capture.Get(gocv.VideoCapturePosFrames)
	if fps <= 0 {
		fps = 30
	}
	return time.Duration(frame / fps * float64(time.Second))
}

// Sampled returns how many frames Next has returned.
func (v *VideoFile) Sampled() int {
	return v.read
}

// Close releases the underlying capture.
func (v *VideoFile) Close() error {
	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.capture = nil
	return err
}
