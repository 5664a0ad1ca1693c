package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Combustible/minimal-zfs-backups/internal/retention"
)

type Source struct {
	Pool string `yaml:"pool"`
}

type Destination struct {
	Pool   string `yaml:"pool"`
	Prefix string `yaml:"prefix"`
	Host   string `yaml:"host,omitempty"`
	User   string `yaml:"user,omitempty"`
	Port   int    `yaml:"port,omitempty"`
}

func (d Destination) IsRemote() bool { return d.Host != "" }

// DatasetFor maps a source dataset to its destination dataset path, e.g.
// ipool/home/user -> xeonpool/BACKUP/ipool/home/user.
func (d Destination) DatasetFor(srcDataset string) string {
	return path.Join(d.Pool, d.Prefix, srcDataset)
}

type CompactionRule struct {
	Pattern string `yaml:"pattern"`
	Keep    int    `yaml:"keep"`
}

type Config struct {
	Source      Source           `yaml:"source"`
	Destination Destination      `yaml:"destination"`
	Datasets    []string         `yaml:"datasets"`
	Compaction  []CompactionRule `yaml:"compaction,omitempty"`
	LockPath    string           `yaml:"lock_path,omitempty"`
	LogFile     string           `yaml:"log_file,omitempty"`

	// compiled from Compaction during Load
	Rules []retention.Rule `yaml:"-"`
}

// Load reads and validates a job configuration file. All validation
// failures are fatal before any dataset work starts.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Destination: Destination{Prefix: "BACKUP", Port: 22},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Rules = make([]retention.Rule, 0, len(cfg.Compaction))
	for _, r := range cfg.Compaction {
		rule, err := retention.NewRule(r.Pattern, r.Keep)
		if err != nil {
			return nil, fmt.Errorf("config validation failed: compaction: %w", err)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	return &cfg, nil
}

// LoadSourcePool reads only the source pool name from a config file, for
// discover runs where the datasets list does not exist yet.
func LoadSourcePool(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	var cfg struct {
		Source Source `yaml:"source"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", err
	}
	if cfg.Source.Pool == "" {
		return "", fmt.Errorf("source.pool is required")
	}
	return cfg.Source.Pool, nil
}

func (c *Config) Validate() error {
	if c.Source.Pool == "" {
		return fmt.Errorf("source.pool is required")
	}
	if c.Destination.Pool == "" {
		return fmt.Errorf("destination.pool is required")
	}
	if c.Destination.Prefix == "" {
		return fmt.Errorf("destination.prefix must not be empty")
	}
	if c.Destination.Port <= 0 {
		return fmt.Errorf("destination.port must be positive, got %d", c.Destination.Port)
	}
	if len(c.Datasets) == 0 {
		return fmt.Errorf("'datasets' list is required")
	}
	for i, d := range c.Datasets {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("datasets[%d] must be a non-empty dataset path", i)
		}
	}
	for i, r := range c.Compaction {
		if r.Pattern == "" {
			return fmt.Errorf("compaction[%d].pattern is required", i)
		}
		if r.Keep < 0 {
			return fmt.Errorf("compaction[%d] 'keep' must be >= 0, got %d", i, r.Keep)
		}
	}
	return nil
}
