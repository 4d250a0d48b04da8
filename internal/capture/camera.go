// Package capture provides camera, video file and motion-gating support using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 960
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrNoDevice is returned when none of the configured devices could be opened.
var ErrNoDevice = errors.New("no camera device could be opened")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Switcher is implemented by cameras that can move to another device.
type Switcher interface {
	// Switch closes the current device and opens the next one.
	Switch() error
	// Device returns the currently selected device ID.
	Device() int
}

// Options configures a device camera.
type Options struct {
	// Devices lists device IDs in preference order. Empty means device 0.
	Devices []int
	Width   int
	Height  int
	FPS     int
}

// resolution fallbacks tried after the requested size fails to apply.
var fallbackSizes = [][2]int{{640, 480}, {320, 240}}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	opts     Options
	current  int // index into opts.Devices
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openFunc func(id int) (*gocv.VideoCapture, error)
}

// NewCamera creates a new Camera for the given options.
// The default FPS is 5 for performance reasons.
func NewCamera(opts Options) Camera {
	if len(opts.Devices) == 0 {
		opts.Devices = []int{0}
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &cameraImpl{
		opts:     opts,
		fps:      fps,
		openFunc: func(id int) (*gocv.VideoCapture, error) { return gocv.OpenVideoCapture(id) },
	}
}

// Open opens the first configured device that works, starting at the
// currently selected one.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	return c.openFrom(c.current)
}

func (c *cameraImpl) openFrom(start int) error {
	var lastErr error
	for i := 0; i < len(c.opts.Devices); i++ {
		idx := (start + i) % len(c.opts.Devices)
		id := c.opts.Devices[idx]

		capture, err := c.openFunc(id)
		if err != nil {
			lastErr = err
			continue
		}
		if !capture.IsOpened() {
			capture.Close()
			lastErr = fmt.Errorf("device %d did not open", id)
			continue
		}

		c.applySize(capture)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

		c.capture = capture
		c.current = idx
		c.running = true
		return nil
	}
	if lastErr == nil {
		return ErrNoDevice
	}
	return fmt.Errorf("%w: %v", ErrNoDevice, lastErr)
}

// applySize asks for the configured resolution and steps down when the
// driver refuses it.
func (c *cameraImpl) applySize(capture *gocv.VideoCapture) {
	sizes := append([][2]int{{c.opts.Width, c.opts.Height}}, fallbackSizes...)
	for _, size := range sizes {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(size[0]))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(size[1]))
		if int(capture.Get(gocv.VideoCaptureFrameWidth)) == size[0] {
			return
		}
	}
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *cameraImpl) closeLocked() error {
	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Switch moves to the next configured device.
func (c *cameraImpl) Switch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.opts.Devices) < 2 {
		return fmt.Errorf("only one camera device configured")
	}
	wasRunning := c.running
	if err := c.closeLocked(); err != nil {
		return err
	}
	next := (c.current + 1) % len(c.opts.Devices)
	if !wasRunning {
		c.current = next
		return nil
	}
	return c.openFrom(next)
}

// Device returns the currently selected device ID.
func (c *cameraImpl) Device() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Devices[c.current]
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
