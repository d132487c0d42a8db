// Package config loads sfsctl's configuration from an optional YAML file
// overlaid with environment variables, in the style of the teacher's
// cmd/auth/config.go LoadConfig.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "SFS"

// Config holds every setting sfsctl needs to mount or format a disk and
// wire its optional archive/journal hooks.
type Config struct {
	DiskPath  string `envconfig:"SFS_DISK_PATH" default:"MyDisk" yaml:"diskPath"`
	DiskID    string `envconfig:"SFS_DISK_ID"   default:"MyDisk" yaml:"diskId"`
	BlockSize uint32 `envconfig:"SFS_BLOCK_SIZE" default:"1024"  yaml:"blockSize"`
	NumBlocks uint32 `envconfig:"SFS_NUM_BLOCKS" default:"1024"  yaml:"numBlocks"`
	NumInodes uint32 `envconfig:"SFS_NUM_INODES" default:"200"   yaml:"numInodes"`
	NumShadow uint32 `envconfig:"SFS_NUM_SHADOW" default:"4"     yaml:"numShadow"`

	ArchiveBucket string `envconfig:"SFS_ARCHIVE_BUCKET" yaml:"archiveBucket"`

	JournalEnabled bool `envconfig:"SFS_JOURNAL_ENABLED" default:"false" yaml:"journalEnabled"`

	LogLevel string `envconfig:"SFS_LOG_LEVEL" default:"info" yaml:"logLevel"`
}

// Load reads an optional YAML config file (its path taken from
// SFS_CONFIG_FILE, defaulting to ~/.config/sfsctl.yaml) and overlays
// environment variables on top of it, mirroring the teacher's precedence:
// file values first, env vars win.
func Load() (*Config, error) {
	var c Config

	path := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "sfsctl.yaml")
		}
	}
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file `%s`: %w", path, err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}
