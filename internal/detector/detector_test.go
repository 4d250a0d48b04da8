package detector

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const epsilon = 1e-9

func loadFrame(t *testing.T, name string) *FrameResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	var fr FrameResult
	if err := json.Unmarshal(data, &fr); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
	return fr.Normalize()
}

func TestFrameResult_Decode(t *testing.T) {
	t.Run("multi hand frame", func(t *testing.T) {
		fr := loadFrame(t, "open_palm_frame.json")
		if fr.HandCount() != 1 {
			t.Fatalf("expected 1 hand, got %d", fr.HandCount())
		}
		if fr.TotalHandLandmarks() != NumLandmarks {
			t.Errorf("expected %d landmarks, got %d", NumLandmarks, fr.TotalHandLandmarks())
		}
		if len(fr.PoseWorldLandmarks) != NumPoseLandmarks {
			t.Errorf("expected %d world pose landmarks, got %d", NumPoseLandmarks, len(fr.PoseWorldLandmarks))
		}
		if !fr.HasPose() {
			t.Error("expected pose to be present")
		}
		// Hand points carry no visibility in the fixture.
		if fr.MultiHandLandmarks[0][Wrist].Visibility != 0 {
			t.Errorf("absent visibility should decode to 0, got %f", fr.MultiHandLandmarks[0][Wrist].Visibility)
		}
		if fr.MultiHandedness[0].Label != "Right" {
			t.Errorf("expected Right handedness, got %q", fr.MultiHandedness[0].Label)
		}
	})

	t.Run("per side hands are folded", func(t *testing.T) {
		fr := loadFrame(t, "holistic_sides_frame.json")
		if fr.HandCount() != 2 {
			t.Fatalf("expected 2 hands, got %d", fr.HandCount())
		}
		if fr.MultiHandedness[0].Label != "Right" || fr.MultiHandedness[1].Label != "Left" {
			t.Errorf("unexpected handedness order: %+v", fr.MultiHandedness)
		}
		if fr.MultiHandLandmarks[1][Wrist].X <= fr.MultiHandLandmarks[0][Wrist].X {
			t.Error("left hand should be the shifted copy")
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		fr := loadFrame(t, "empty_frame.json")
		if fr.HandCount() != 0 || fr.TotalHandLandmarks() != 0 || fr.HasPose() {
			t.Errorf("expected empty frame, got %+v", fr)
		}
	})
}

func TestFrameResult_NilSafe(t *testing.T) {
	var fr *FrameResult
	if fr.HandCount() != 0 {
		t.Error("nil frame should have no hands")
	}
	if fr.TotalHandLandmarks() != 0 {
		t.Error("nil frame should have no landmarks")
	}
	if fr.HasPose() {
		t.Error("nil frame should have no pose")
	}
	if fr.Normalize() != nil {
		t.Error("normalizing nil should return nil")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Landmark
		want float64
	}{
		{"same point", Landmark{X: 1, Y: 2, Z: 3}, Landmark{X: 1, Y: 2, Z: 3}, 0},
		{"3-4-5", Landmark{}, Landmark{X: 3, Y: 4}, 5},
		{"depth only", Landmark{Z: -1}, Landmark{Z: 1}, 2},
		{"visibility ignored", Landmark{Visibility: 1}, Landmark{X: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > epsilon {
				t.Errorf("Distance() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	hand := OpenPalmHand(0.9)
	moved := Translate(hand, 0.1, -0.1, 0)

	if len(moved) != NumLandmarks {
		t.Fatalf("expected %d points, got %d", NumLandmarks, len(moved))
	}
	for i := range hand {
		if math.Abs(Distance(hand[i], moved[i])-math.Sqrt(0.02)) > 1e-12 {
			t.Fatalf("point %d moved by %f", i, Distance(hand[i], moved[i]))
		}
		if moved[i].Visibility != 0.9 {
			t.Fatalf("visibility not preserved at %d", i)
		}
	}
	if hand[Wrist].X != 0.5 {
		t.Error("Translate must not modify its input")
	}
}

func TestPresetPoses(t *testing.T) {
	if n := len(FistHand(1)); n != NumLandmarks {
		t.Errorf("fist has %d points", n)
	}
	if n := len(UpperBodyPose(1)); n != NumPoseLandmarks {
		t.Errorf("pose has %d points", n)
	}
	palm, fist := OpenPalmHand(1), FistHand(1)
	if palm[MiddleTip].Y >= fist[MiddleTip].Y {
		t.Error("open palm middle tip should be above the fist's")
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty result by default", func(t *testing.T) {
		m := NewMockDetector()
		fr, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fr.HandCount() != 0 {
			t.Errorf("expected no hands, got %d", fr.HandCount())
		}
	})

	t.Run("returns configured result", func(t *testing.T) {
		m := NewMockDetector()
		m.SetResult(&FrameResult{MultiHandLandmarks: [][]Landmark{OpenPalmHand(1)}})
		fr, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fr.HandCount() != 1 {
			t.Errorf("expected 1 hand, got %d", fr.HandCount())
		}
		if m.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", m.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockDetector()
		want := errors.New("camera gone")
		m.SetError(want)
		if _, err := m.Detect(nil); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("implements Detector", func(t *testing.T) {
		var _ Detector = NewMockDetector()
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("frame", func(t *testing.T) {
		fr, err := parseResponse([]byte(`{"rightHandLandmarks":[{"x":0.1,"y":0.2,"z":0}],"poseLandmarks":[{"x":0.5,"y":0.5,"z":0,"visibility":0.9}]}` + "\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fr.HandCount() != 1 || !fr.HasPose() {
			t.Errorf("unexpected frame: %+v", fr)
		}
	})

	t.Run("helper error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"decode failed"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := parseResponse([]byte("not json")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)
	t.Setenv("HOME", dir)

	_, err := NewMediaPipeDetector(Config{ScriptPath: filepath.Join(dir, "missing.py")})
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestNewMediaPipeDetector_ConfiguredScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), scriptName)
	if err := os.WriteFile(script, []byte("# helper\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	d, err := NewMediaPipeDetector(Config{ScriptPath: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.scriptPath != script {
		t.Errorf("script path = %q, want %q", d.scriptPath, script)
	}
	if d.config.IdleTimeout != DefaultConfig().IdleTimeout {
		t.Errorf("idle timeout = %v", d.config.IdleTimeout)
	}
	// Never started, so closing is a no-op.
	if err := d.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestEncodeRequest(t *testing.T) {
	msg := encodeRequest([]byte{0xff, 0xd8, 0xff})
	want := []byte{0, 0, 0, 3, 0xff, 0xd8, 0xff}
	if !bytes.Equal(msg, want) {
		t.Errorf("encodeRequest() = %v, want %v", msg, want)
	}
	if got := encodeRequest(nil); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("empty request = %v", got)
	}
}

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.py")
	if err := os.WriteFile(present, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.py")

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"none", nil, ""},
		{"all missing", []string{missing}, ""},
		{"skips missing", []string{missing, present}, present},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstExisting(tt.paths); got != tt.want {
				t.Errorf("firstExisting() = %q, want %q", got, tt.want)
			}
		})
	}
}
