package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte(`{"trainingFile": "training.xml", "interval": 0.5, "logoutDelay": 5}`), false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.RecognitionAlgorithm != AlgorithmLBPH {
		t.Errorf("Expected default algorithm LBPH, got %d", c.RecognitionAlgorithm)
	}
	if c.IntervalDuration() != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", c.IntervalDuration())
	}
	if c.LogoutDelayDuration() != 5*time.Second {
		t.Errorf("LogoutDelay = %v, want 5s", c.LogoutDelayDuration())
	}
	if c.FaceSize().X != 92 || c.FaceSize().Y != 112 {
		t.Errorf("FaceSize = %v, want 92x112", c.FaceSize())
	}
}

func TestParseYAML(t *testing.T) {
	doc := []byte("recognitionAlgorithm: 2\nfisherThreshold: 300\ncamera: mjpeg\nmjpgStreamerUrl: http://cam:8081/?action=stream\n")
	c, err := Parse(doc, true)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Threshold() != 300 {
		t.Errorf("Threshold = %v, want 300", c.Threshold())
	}
	if c.AlgorithmName() != "Fisher" {
		t.Errorf("AlgorithmName = %q, want Fisher", c.AlgorithmName())
	}
	if got := c.Preference(); !reflect.DeepEqual(got, []string{CameraMJPEG}) {
		t.Errorf("Preference = %v, want forced mjpeg", got)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"algorithm", `{"recognitionAlgorithm": 9}`},
		{"camera", `{"camera": "webcam"}`},
		{"interval", `{"interval": 0}`},
		{"rtsp url", `{"useRTSP": true}`},
		{"mjpeg url", `{"camera": "mjpeg"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), false)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse(%s) = %v, want ErrInvalid", tt.doc, err)
			}
		})
	}
	if _, err := Parse([]byte(`{`), false); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestPreferenceOrder(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		want []string
	}{
		{"all", Config{UseRTSP: true, UseMjpgStreamer: true, DevicePath: DefaultDevicePath}, []string{CameraRTSP, CameraMJPEG, CameraDevice, CameraUSB}},
		{"usb only", Config{UseUSBCam: true, DevicePath: DefaultDevicePath}, []string{CameraUSB}},
		{"mjpeg then device", Config{UseMjpgStreamer: true, DevicePath: "/dev/video2"}, []string{CameraMJPEG, CameraDevice, CameraUSB}},
		{"no device path", Config{}, []string{CameraUSB}},
		{"forced", Config{Camera: CameraRTSP, UseMjpgStreamer: true}, []string{CameraRTSP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Preference(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Preference = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("RTSP_PASSWORD", "from-env")
	c, err := Parse([]byte(`{"useRTSP": true, "rtspUrl": "rtsp://cam/stream", "rtspPassword": "inline"}`), false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.RTSPPassword != "from-env" {
		t.Errorf("RTSPPassword = %q, want env override", c.RTSPPassword)
	}
	if r := c.Redacted(); r.RTSPPassword != "REDACTED" || c.RTSPPassword != "from-env" {
		t.Errorf("Redacted must not modify the original: %q / %q", r.RTSPPassword, c.RTSPPassword)
	}
}

func TestTrainingPath(t *testing.T) {
	c := Default()
	if _, err := c.TrainingPath(); !errors.Is(err, ErrNoTrainingFile) {
		t.Errorf("Expected ErrNoTrainingFile, got %v", err)
	}
	c.TrainingFile = "/abs/training.xml"
	if p, _ := c.TrainingPath(); p != "/abs/training.xml" {
		t.Errorf("TrainingPath = %q", p)
	}
	c.TrainingFile = "modules/training.xml"
	wd, _ := os.Getwd()
	if p, _ := c.TrainingPath(); p != filepath.Join(wd, "modules/training.xml") {
		t.Errorf("TrainingPath = %q, want relative to %s", p, wd)
	}
}

func TestLoadReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"logoutDelay": 5}`), 0644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := Load(ctx, path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Get().LogoutDelay != 5 {
		t.Fatalf("LogoutDelay = %v, want 5", Get().LogoutDelay)
	}

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"logoutDelay": 9}`), 0644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for Get().LogoutDelay != 9 {
		if time.Now().After(deadline) {
			t.Fatalf("Config not reloaded, LogoutDelay = %v", Get().LogoutDelay)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLoadArg(t *testing.T) {
	if err := LoadArg(`{"interval": 3}`); err != nil {
		t.Fatalf("LoadArg failed: %v", err)
	}
	if Get().Interval != 3 {
		t.Errorf("Interval = %v, want 3", Get().Interval)
	}
}

func TestAlgorithmStatus(t *testing.T) {
	tests := map[int]string{
		AlgorithmLBPH:   "ALGORITHM: LBPH",
		AlgorithmFisher: "ALGORITHM: Fisher (unsupported, only LBPH models can be loaded)",
		AlgorithmEigen:  "ALGORITHM: Eigen (unsupported, only LBPH models can be loaded)",
	}
	for algo, want := range tests {
		c := Default()
		c.RecognitionAlgorithm = algo
		if got := c.AlgorithmStatus(); got != want {
			t.Errorf("AlgorithmStatus(%d) = %q, want %q", algo, got, want)
		}
	}
}
