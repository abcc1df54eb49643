package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facerec/config"
	"facerec/event"
)

var (
	configFile string
	logLevel   string

	// stdout carries every record read by the parent process.
	stdout = event.NewSink(os.Stdout)
)

var rootCmd = &cobra.Command{
	Use:   "facerec [config-json]",
	Short: "Reports which trained user is in front of the camera",
	Long: `facerec samples a camera, recognizes faces against a trained LBPH model
and writes login, logout and status records as JSON lines to stdout.

The configuration is passed either as a JSON object in the first argument
or as a JSON/YAML file with --config, which is reloaded on change.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, args)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (.json, .yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides logLevel from the configuration")

	log.SetOutput(stdout)
	log.SetFormatter(&event.StatusFormatter{Level: true})
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the configuration from the argument or the file flag.
// A file is watched for changes until the command context is done.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	if logLevel != "" {
		lvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		log.SetLevel(lvl)
	}
	switch {
	case configFile != "":
		if err := config.Load(cmd.Context(), configFile); err != nil {
			return nil, err
		}
	case len(args) == 1:
		if err := config.LoadArg(args[0]); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no configuration: pass a JSON argument or --config")
	}
	c := config.Get()
	if logLevel == "" && c.LogLevel != "" {
		lvl, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, err
		}
		log.SetLevel(lvl)
	}
	return c, nil
}
