package stops2sqlite

import (
	"fmt"
	gpvalidator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"os"
)

const (
	DefaultDBPath    = "stops.db"
	DefaultInputPath = "stops.json"
)

// Config is the optional YAML configuration read by the command. Fields left
// out of the file keep their defaults.
type Config struct {
	DBPath    string `yaml:"db_path" validate:"required"`
	InputPath string `yaml:"input_path" validate:"required"`
	// Pragmas are applied to the load connection.
	Pragmas map[string]string `yaml:"pragmas" validate:"dive,keys,oneof=synchronous journal_mode cache_size temp_store foreign_keys,endkeys,required,excludesall=;"`
}

func DefaultConfig() Config {
	return Config{
		DBPath:    DefaultDBPath,
		InputPath: DefaultInputPath,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := gpvalidator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) LoadOpts() *LoadOpts {
	return &LoadOpts{Pragmas: c.Pragmas}
}
