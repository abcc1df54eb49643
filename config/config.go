package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Recognition algorithms, as selected by RecognitionAlgorithm.
const (
	AlgorithmLBPH   = 1
	AlgorithmFisher = 2
	AlgorithmEigen  = 3
)

// Camera backends. An empty Camera selects the first usable backend in the
// order returned by Preference.
const (
	CameraRTSP   = "rtsp"
	CameraMJPEG  = "mjpeg"
	CameraDevice = "device"
	CameraUSB    = "usb"
)

// DefaultDevicePath opens the Raspberry Pi camera through libcamera.
const DefaultDevicePath = "libcamerasrc ! video/x-raw,width=640,height=480 ! videoconvert ! appsink"

var (
	ErrNoTrainingFile = errors.New("training file not found")
	ErrInvalid        = errors.New("invalid configuration")
)

// Config is passed by the parent process as a JSON object. Durations are in
// seconds to match the parent's module settings.
type Config struct {
	RecognitionAlgorithm int     `json:"recognitionAlgorithm" yaml:"recognitionAlgorithm"`
	LBPHThreshold        float64 `json:"lbphThreshold" yaml:"lbphThreshold"`
	FisherThreshold      float64 `json:"fisherThreshold" yaml:"fisherThreshold"`
	EigenThreshold       float64 `json:"eigenThreshold" yaml:"eigenThreshold"`

	TrainingFile string `json:"trainingFile" yaml:"trainingFile"`
	CascadeFile  string `json:"cascadeFile" yaml:"cascadeFile"`

	// Camera forces a backend; see the Camera* constants.
	Camera string `json:"camera" yaml:"camera"`

	UseRTSP      bool   `json:"useRTSP" yaml:"useRTSP"`
	RTSPURL      string `json:"rtspUrl" yaml:"rtspUrl"`
	RTSPUser     string `json:"rtspUser" yaml:"rtspUser"`
	RTSPPassword string `json:"rtspPassword" yaml:"rtspPassword"`

	UseMjpgStreamer      bool   `json:"useMjpgStreamer" yaml:"useMjpgStreamer"`
	MjpgStreamerURL      string `json:"mjpgStreamerUrl" yaml:"mjpgStreamerUrl"`
	MjpgStreamerUser     string `json:"mjpgStreamerUser" yaml:"mjpgStreamerUser"`
	MjpgStreamerPassword string `json:"mjpgStreamerPassword" yaml:"mjpgStreamerPassword"`

	UseUSBCam   bool   `json:"useUSBCam" yaml:"useUSBCam"`
	DeviceIndex int    `json:"deviceIndex" yaml:"deviceIndex"`
	DevicePath  string `json:"devicePath" yaml:"devicePath"`

	// Interval between recognition ticks, in seconds.
	Interval float64 `json:"interval" yaml:"interval"`
	// LogoutDelay is how long no face may be seen before logout, in seconds.
	LogoutDelay float64 `json:"logoutDelay" yaml:"logoutDelay"`

	// If set, detection is paused while the camera sees no motion for
	// MotionIdle seconds.
	MotionGate bool    `json:"motionGate" yaml:"motionGate"`
	MotionIdle float64 `json:"motionIdle" yaml:"motionIdle"`

	MQTTBroker string `json:"mqttBroker" yaml:"mqttBroker"`
	MQTTTopic  string `json:"mqttTopic" yaml:"mqttTopic"`

	// HTTPAddr enables the debug server (metrics, events, preview).
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	LogLevel string `json:"logLevel" yaml:"logLevel"`

	// Face detector parameters, rarely changed.
	FaceWidth        int     `json:"faceWidth" yaml:"faceWidth"`
	FaceHeight       int     `json:"faceHeight" yaml:"faceHeight"`
	HaarScaleFactor  float64 `json:"haarScaleFactor" yaml:"haarScaleFactor"`
	HaarMinNeighbors int     `json:"haarMinNeighbors" yaml:"haarMinNeighbors"`
	HaarMinSize      int     `json:"haarMinSize" yaml:"haarMinSize"`
}

// Default returns the configuration used for keys absent from the input.
func Default() *Config {
	return &Config{
		RecognitionAlgorithm: AlgorithmLBPH,
		LBPHThreshold:        50,
		FisherThreshold:      250,
		EigenThreshold:       3000,
		CascadeFile:          "haarcascade_frontalface.xml",
		DevicePath:           DefaultDevicePath,
		Interval:             2,
		LogoutDelay:          15,
		MotionIdle:           60,
		MQTTTopic:            "facerecognition",
		LogLevel:             "info",
		FaceWidth:            92,
		FaceHeight:           112,
		HaarScaleFactor:      1.1,
		HaarMinNeighbors:     3,
		HaarMinSize:          20,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) IntervalDuration() time.Duration    { return seconds(c.Interval) }
func (c *Config) LogoutDelayDuration() time.Duration { return seconds(c.LogoutDelay) }
func (c *Config) MotionIdleDuration() time.Duration  { return seconds(c.MotionIdle) }

// FaceSize is the training image resolution.
func (c *Config) FaceSize() image.Point {
	return image.Point{X: c.FaceWidth, Y: c.FaceHeight}
}

// Threshold returns the confidence threshold of the selected algorithm.
func (c *Config) Threshold() float64 {
	switch c.RecognitionAlgorithm {
	case AlgorithmFisher:
		return c.FisherThreshold
	case AlgorithmEigen:
		return c.EigenThreshold
	default:
		return c.LBPHThreshold
	}
}

// AlgorithmName is used in status output.
func (c *Config) AlgorithmName() string {
	switch c.RecognitionAlgorithm {
	case AlgorithmFisher:
		return "Fisher"
	case AlgorithmEigen:
		return "Eigen"
	default:
		return "LBPH"
	}
}

// AlgorithmStatus is the startup status line naming the algorithm. Only
// LBPH models can be loaded, others are marked so the exit that follows is
// explained.
func (c *Config) AlgorithmStatus() string {
	if c.RecognitionAlgorithm == AlgorithmLBPH {
		return "ALGORITHM: LBPH"
	}
	return "ALGORITHM: " + c.AlgorithmName() + " (unsupported, only LBPH models can be loaded)"
}

// Preference lists the camera backends to try, most preferred first.
func (c *Config) Preference() []string {
	if c.Camera != "" {
		return []string{c.Camera}
	}
	var p []string
	if c.UseRTSP {
		p = append(p, CameraRTSP)
	}
	if c.UseMjpgStreamer {
		p = append(p, CameraMJPEG)
	}
	if !c.UseUSBCam && c.DevicePath != "" {
		p = append(p, CameraDevice)
	}
	return append(p, CameraUSB)
}

// TrainingPath resolves TrainingFile against the working directory.
func (c *Config) TrainingPath() (string, error) {
	if c.TrainingFile == "" {
		return "", fmt.Errorf("%w: trainingFile is not set", ErrNoTrainingFile)
	}
	if filepath.IsAbs(c.TrainingFile) {
		return c.TrainingFile, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, c.TrainingFile), nil
}

// Validate reports the first problem that prevents startup.
func (c *Config) Validate() error {
	var problems []string
	switch c.RecognitionAlgorithm {
	case AlgorithmLBPH, AlgorithmFisher, AlgorithmEigen:
	default:
		problems = append(problems, fmt.Sprintf("unknown recognitionAlgorithm %d", c.RecognitionAlgorithm))
	}
	switch c.Camera {
	case "", CameraRTSP, CameraMJPEG, CameraDevice, CameraUSB:
	default:
		problems = append(problems, fmt.Sprintf("unknown camera %q", c.Camera))
	}
	if c.Interval <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if c.LogoutDelay < 0 {
		problems = append(problems, "logoutDelay must not be negative")
	}
	if (c.UseRTSP || c.Camera == CameraRTSP) && c.RTSPURL == "" {
		problems = append(problems, "rtspUrl is required for RTSP")
	}
	if (c.UseMjpgStreamer || c.Camera == CameraMJPEG) && c.MjpgStreamerURL == "" {
		problems = append(problems, "mjpgStreamerUrl is required for mjpg-streamer")
	}
	if c.FaceWidth <= 0 || c.FaceHeight <= 0 {
		problems = append(problems, "face size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (c *Config) Redacted() Config {
	r := *c
	if r.RTSPPassword != "" {
		r.RTSPPassword = "REDACTED"
	}
	if r.MjpgStreamerPassword != "" {
		r.MjpgStreamerPassword = "REDACTED"
	}
	return r
}
