// Package opencv implements face detection and classification with OpenCV.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"facerec/config"
	"facerec/recognition"
	"facerec/video/source"
)

// ErrUnsupportedAlgorithm is returned for classifiers the OpenCV bindings
// cannot load.
var ErrUnsupportedAlgorithm = errors.New("unsupported recognition algorithm")

var errEmptyCrop = errors.New("face crop is empty")

// Options configures a Recognizer.
type Options struct {
	Algorithm    int
	Threshold    float64
	TrainingFile string
	CascadeFile  string

	// FaceSize is the training image resolution; crops keep its aspect.
	FaceSize image.Point

	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// OptionsFromConfig returns the recognizer options of c.
func OptionsFromConfig(c *config.Config) (Options, error) {
	path, err := c.TrainingPath()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Algorithm:    c.RecognitionAlgorithm,
		Threshold:    c.Threshold(),
		TrainingFile: path,
		CascadeFile:  c.CascadeFile,
		FaceSize:     c.FaceSize(),
		ScaleFactor:  c.HaarScaleFactor,
		MinNeighbors: c.HaarMinNeighbors,
		MinSize:      c.HaarMinSize,
	}, nil
}

// Recognizer detects a single face with a Haar cascade and classifies it
// with a trained LBPH model. It is not safe for concurrent use.
type Recognizer struct {
	opts    Options
	cascade gocv.CascadeClassifier
	model   *contrib.LBPHFaceRecognizer

	// Grayscale conversion of the last frame passed to DetectSingle.
	gray     gocv.Mat
	grayFrom *source.Frame
}

// New loads the cascade and the training data. Both must be readable.
func New(opts Options) (*Recognizer, error) {
	if opts.Algorithm != config.AlgorithmLBPH {
		return nil, fmt.Errorf("%w: %d, only LBPH (%d) models can be loaded",
			ErrUnsupportedAlgorithm, opts.Algorithm, config.AlgorithmLBPH)
	}
	if err := readable(opts.TrainingFile); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrNoTrainingFile, err)
	}
	if err := readable(opts.CascadeFile); err != nil {
		return nil, fmt.Errorf("failed to open face cascade: %w", err)
	}

	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(opts.CascadeFile) {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", opts.CascadeFile)
	}

	model := contrib.NewLBPHFaceRecognizer()
	model.LoadFile(opts.TrainingFile)
	model.SetThreshold(float32(opts.Threshold))
	log.Debugf("Loaded LBPH model %s with threshold %v", opts.TrainingFile, opts.Threshold)

	return &Recognizer{
		opts:    opts,
		cascade: cascade,
		model:   model,
		gray:    gocv.NewMat(),
	}, nil
}

func readable(path string) error {
	if path == "" {
		return errors.New("no path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (r *Recognizer) grayscale(f *source.Frame) gocv.Mat {
	if r.grayFrom != f {
		gocv.CvtColor(f.Mat, &r.gray, gocv.ColorBGRToGray)
		r.grayFrom = f
	}
	return r.gray
}

// DetectSingle returns the face in f if exactly one was found.
func (r *Recognizer) DetectSingle(f *source.Frame) (image.Rectangle, bool) {
	gray := r.grayscale(f)
	min := image.Point{X: r.opts.MinSize, Y: r.opts.MinSize}
	faces := r.cascade.DetectMultiScaleWithParams(gray, r.opts.ScaleFactor, r.opts.MinNeighbors,
		0, min, image.Point{})
	log.Debugf("Haar detection: scale %v, min neighbors %d, min size %d, image %dx%d",
		r.opts.ScaleFactor, r.opts.MinNeighbors, r.opts.MinSize, gray.Cols(), gray.Rows())
	if len(faces) != 1 {
		if len(faces) > 1 {
			log.Debugf("Ignoring image with %d faces", len(faces))
		}
		return image.Rectangle{}, false
	}
	return faces[0], true
}

// Predict classifies the face in box. Labels below the model threshold are
// reported as recognition.LabelBelowThreshold.
func (r *Recognizer) Predict(f *source.Frame, box image.Rectangle) (recognition.Result, error) {
	gray := r.grayscale(f)
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	crop := recognition.FaceCrop(box, bounds, r.opts.FaceSize)
	if crop.Empty() {
		return recognition.Result{}, errEmptyCrop
	}
	region := gray.Region(crop)
	defer region.Close()

	// LBPH accepts any sample size so the crop is not resized.
	log.Debugf("Cropped image size: %dx%d", region.Cols(), region.Rows())
	if log.IsLevelEnabled(log.DebugLevel) {
		sample := region.Clone()
		mean, std := recognition.Brightness(sample.ToBytes())
		sample.Close()
		log.Debugf("Crop brightness: mean %.1f, std dev %.1f", mean, std)
	}

	resp := r.model.PredictExtendedResponse(region)
	log.Debugf("Prediction threshold: %v", r.opts.Threshold)
	return recognition.Result{
		Label:      int(resp.Label),
		Confidence: recognition.Confidence32(resp.Confidence),
	}, nil
}

func (r *Recognizer) Close() {
	r.cascade.Close()
	r.gray.Close()
	r.grayFrom = nil
}
