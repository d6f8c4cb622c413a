package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/localstore-go/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Endpoint:           "http://127.0.0.1:8000/upload/", // the file-manager upload view.
		MaxAttempts:        1,                               // one try per file, same as the web page.
		ProgressIntervalMs: 100,
		Port:               53318,
		StagingFolder:      "staging",
		HistoryTtlSeconds:  300,
	}
}

// LoadConfig reads path (or ConfigPath) and fills missing values with defaults.
// A missing file is created with the default values.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file: %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	normalizeConfig(&cfg)

	CurrentConfig = cfg
	return cfg, nil
}

// normalizeConfig replaces values that would make the queue unusable.
func normalizeConfig(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ProgressIntervalMs < 0 {
		cfg.ProgressIntervalMs = 0
	}
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.StagingFolder == "" {
		cfg.StagingFolder = def.StagingFolder
	}
	if cfg.HistoryTtlSeconds <= 0 {
		cfg.HistoryTtlSeconds = def.HistoryTtlSeconds
	}
}

func writeConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
