package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facerec/video/capture"
	"facerec/video/source"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe [config-json]",
	Short: "Opens the configured camera and reports the first frame",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		src, err := source.Open(c, capture.Options{})
		if err != nil {
			return fmt.Errorf("failed to open camera: %w", err)
		}
		src.Start()
		defer src.Stop()

		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()
		go func() {
			<-ctx.Done()
			// Unblocks Read if no frame arrived in time.
			src.Stop()
		}()

		start := time.Now()
		f, err := src.Read()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("no frame from %s within %v", src.Name(), probeTimeout)
			}
			return err
		}
		defer f.Close()
		size := f.Size()
		log.WithField("source", src.Name()).Infof("First frame after %v: %dx%d",
			time.Since(start).Round(time.Millisecond), size.X, size.Y)
		return nil
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Time to wait for the first frame")
	rootCmd.AddCommand(probeCmd)
}
