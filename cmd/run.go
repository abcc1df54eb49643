package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"facerec/config"
	"facerec/event"
	"facerec/recognition"
	"facerec/recognition/opencv"
	"facerec/serve"
	"facerec/video/capture"
	"facerec/video/process"
	"facerec/video/source"
)

// warmup gives the camera time to adjust exposure before the first tick.
const warmup = time.Second

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout.Status("Facerecognition started...")

	c, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	stdout.Status("Loading training data...")
	stdout.Status(c.AlgorithmStatus())
	opts, err := opencv.OptionsFromConfig(c)
	if err != nil {
		return err
	}
	rec, err := opencv.New(opts)
	if err != nil {
		return err
	}
	defer rec.Close()
	stdout.Status("Training data loaded!")

	src, err := source.Open(c, capture.Options{})
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	src.Start()
	// Stopping the camera also wakes a session blocked on the first frame.
	stopCamera := sync.OnceFunc(func() {
		stdout.Status("Shutdown: Cleaning up camera...")
		src.Stop()
	})
	defer stopCamera()

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(warmup):
	}

	pubs := event.Multi{stdout}
	if c.MQTTBroker != "" {
		m, err := event.DialMQTT(c.MQTTBroker, clientID(), c.MQTTTopic)
		if err != nil {
			log.Warnf("MQTT mirror disabled: %v", err)
		} else {
			defer m.Close()
			pubs = append(pubs, m)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.HTTPAddr != "" {
		events := serve.NewEventStream()
		pubs = append(pubs, events)
		h := serve.NewRouter(serve.Options{
			Events:  events,
			Preview: &serve.Preview{Snapshot: snapshot(src)},
		})
		g.Go(func() error {
			if err := serve.ListenAndServe(gctx, c.HTTPAddr, h); err != nil {
				log.Warnf("Debug HTTP server stopped: %v", err)
			}
			return nil
		})
	}

	session := &recognition.Session[*source.Frame]{
		Source:     src,
		Recognizer: rec,
		Publisher:  pubs,
		Interval:   c.IntervalDuration(),
		Params: func() recognition.Params {
			return recognition.Params{LogoutDelay: config.Get().LogoutDelayDuration()}
		},
	}

	if c.MotionGate {
		gate := &recognition.IdleGate{
			Idle: c.MotionIdleDuration(),
			Set:  session.SetDetectionActive,
		}
		g.Go(func() error {
			return process.Watch(gctx, src, gate, c.IntervalDuration())
		})
	}

	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCamera()
		return nil
	})
	return g.Wait()
}

func snapshot(src source.Source) func() ([]byte, error) {
	return func() ([]byte, error) {
		f, err := src.Read()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return f.JPEG()
	}
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("facerec-%s-%d", host, os.Getpid())
}
