package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	gLock   sync.RWMutex
	gConfig *Config
)

// Parse decodes a JSON or YAML document over the defaults, applies
// environment overrides and validates the result.
func Parse(data []byte, yamlFormat bool) (*Config, error) {
	config := Default()
	if yamlFormat {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	} else {
		d := json.NewDecoder(bytes.NewReader(data))
		if err := d.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func configFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	redacted := config.Redacted()
	log.Debugf("Loaded configuration: %v", spew.Sdump(redacted))
	return config, nil
}

// applyEnv lets credentials come from the environment (or a .env file)
// rather than the parent's module config.
func (c *Config) applyEnv() {
	if v := os.Getenv("RTSP_PASSWORD"); v != "" {
		c.RTSPPassword = v
	}
	if v := os.Getenv("MJPG_STREAMER_PASSWORD"); v != "" {
		c.MjpgStreamerPassword = v
	}
}

// Get returns the current configuration.
func Get() *Config {
	gLock.RLock()
	defer gLock.RUnlock()
	return gConfig
}

// Set replaces the current configuration.
func Set(config *Config) {
	gLock.Lock()
	defer gLock.Unlock()
	gConfig = config
}

// LoadArg parses the configuration passed inline as a JSON argument.
func LoadArg(arg string) error {
	config, err := Parse([]byte(arg), false)
	if err != nil {
		return err
	}
	redacted := config.Redacted()
	log.Debugf("Loaded configuration: %v", spew.Sdump(redacted))
	Set(config)
	return nil
}

func waitForChange(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-watcher.Errors:
		return err
	case <-watcher.Events:
	}
	// Editors often write in several steps; let the file settle.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second / 10):
	}
	return ctx.Err()
}

// Load reads the configuration file and keeps reloading it whenever it
// changes until ctx is done. A file that fails to parse on reload leaves the
// previous configuration in place.
func Load(ctx context.Context, path string) error {
	config, err := configFromFile(path)
	if err != nil {
		return err
	}
	Set(config)
	go func() {
		for ctx.Err() == nil {
			if err := waitForChange(ctx, path); err != nil {
				if ctx.Err() == nil {
					log.Errorf("Error waiting for config change: %v", err)
					time.Sleep(time.Second)
				}
				continue
			}

			config, err := configFromFile(path)
			if err != nil {
				log.Errorf("Failed to load new config: %v", err)
				continue
			}
			Set(config)
			log.Infof("Configuration reloaded from %s", path)
		}
	}()
	return nil
}
