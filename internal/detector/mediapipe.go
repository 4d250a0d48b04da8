package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const scriptName = "holistic_service.py"

// MediaPipeDetector runs MediaPipe Holistic in a Python helper process.
//
// Each request is a 4-byte big-endian length followed by JPEG bytes. Each
// reply is one JSON line shaped like FrameResult, or {"error": "..."}.
// The helper starts on the first frame and exits after IdleTimeout without
// frames.
type MediaPipeDetector struct {
	config     Config
	scriptPath string

	mu   sync.Mutex
	proc *helperProc
	idle *time.Timer
}

type helperProc struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
}

// NewMediaPipeDetector locates the helper script. It does not start Python.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := findHolisticScript(config.ScriptPath)
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &MediaPipeDetector{config: config, scriptPath: script}, nil
}

// Detect encodes the frame as JPEG and analyses it.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*FrameResult, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return d.DetectJPEG(buf.GetBytes())
}

// DetectJPEG analyses already-encoded image bytes.
func (d *MediaPipeDetector) DetectJPEG(data []byte) (*FrameResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.process()
	if err != nil {
		return nil, err
	}
	if _, err := p.in.Write(encodeRequest(data)); err != nil {
		d.stopLocked()
		return nil, fmt.Errorf("send frame: %w", err)
	}
	line, err := p.out.ReadBytes('\n')
	if err != nil {
		d.stopLocked()
		return nil, fmt.Errorf("read reply: %w", err)
	}

	d.armIdle()
	return parseResponse(line)
}

// Close stops the helper if it runs.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// process returns the running helper, starting it when needed.
func (d *MediaPipeDetector) process() (*helperProc, error) {
	if d.proc != nil {
		return d.proc, nil
	}

	python := findVenvPython()
	if python == "" {
		python = d.config.Python
	}
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.scriptPath,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)
	cmd.Stderr = os.Stderr
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("helper stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", scriptName, err)
	}

	d.proc = &helperProc{cmd: cmd, in: in, out: bufio.NewReader(out)}
	return d.proc, nil
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	p := d.proc
	d.proc = nil
	p.in.Close()
	return p.cmd.Wait()
}

func (d *MediaPipeDetector) armIdle() {
	if d.idle != nil {
		d.idle.Reset(d.config.IdleTimeout)
		return
	}
	d.idle = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stopLocked()
	})
}

// encodeRequest frames one image for the helper.
func encodeRequest(data []byte) []byte {
	msg := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(msg, uint32(len(data)))
	copy(msg[4:], data)
	return msg
}

// parseResponse decodes one helper reply.
func parseResponse(line []byte) (*FrameResult, error) {
	var reply struct {
		FrameResult
		Error string `json:"error"`
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("holistic helper: %s", reply.Error)
	}
	fr := reply.FrameResult
	return fr.Normalize(), nil
}

func findHolisticScript(configured string) string {
	var paths []string
	if configured != "" {
		paths = append(paths, configured)
	}
	paths = append(paths,
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
	)
	paths = append(paths, besideExecutable("scripts", scriptName)...)
	paths = append(paths, filepath.Join(os.Getenv("HOME"), ".signa", "scripts", scriptName))
	return firstExisting(paths)
}

func findVenvPython() string {
	paths := []string{
		filepath.Join("venv", "bin", "python"),
		filepath.Join("..", "venv", "bin", "python"),
	}
	paths = append(paths, besideExecutable("venv", "bin", "python")...)
	paths = append(paths, filepath.Join(os.Getenv("HOME"), ".signa", "venv", "bin", "python"))
	return firstExisting(paths)
}

func besideExecutable(elem ...string) []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(append([]string{filepath.Dir(exe)}, elem...)...)}
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
