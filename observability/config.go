package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/SYMBaiEX/SYMindX-sub014/logging"
)

// TracingConfig configures the tracing collaborator.
type TracingConfig struct {
	SampleRate float64 `yaml:"sampleRate"`
	Exporter   string  `yaml:"exporter"`
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	CollectionInterval time.Duration `yaml:"collectionInterval"`
	EnableCollection   bool          `yaml:"enableCollection"`
}

// HealthConfig configures health-check integration.
type HealthConfig struct {
	EnableHealthChecks bool `yaml:"enableHealthChecks"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config holds all hot-reloadable configuration for the Manager.
type Config struct {
	ServiceName string        `yaml:"serviceName"`
	Version     string        `yaml:"version"`
	Enabled     bool          `yaml:"enabled"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Health      HealthConfig  `yaml:"health"`
	Logging     LoggingConfig `yaml:"logging"`

	// OverheadBudgetMs is the p95 budget for the orchestrator's own cost.
	OverheadBudgetMs float64 `yaml:"overheadBudgetMs"`

	// Middleware maps registered middleware names to their enabled flag.
	// Applied on every configuration update; unknown names are ignored.
	Middleware map[string]bool `yaml:"middleware"`
}

// DefaultConfig returns a fully enabled configuration with the standard
// budget and intervals.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName: serviceName,
		Version:     "0.1.0",
		Enabled:     true,
		Tracing: TracingConfig{
			SampleRate: 1.0,
			Exporter:   "none",
		},
		Metrics: MetricsConfig{
			CollectionInterval: 10 * time.Second,
			EnableCollection:   true,
		},
		Health: HealthConfig{
			EnableHealthChecks: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		OverheadBudgetMs: DefaultOverheadBudgetMs,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("%w: got %f", ErrInvalidSampleRate, c.Tracing.SampleRate)
	}
	if c.Metrics.CollectionInterval <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidInterval, c.Metrics.CollectionInterval)
	}
	return nil
}

// configFile is the on-disk shape. Durations are plain milliseconds so the
// file does not depend on Go duration syntax.
type configFile struct {
	ServiceName string `yaml:"serviceName"`
	Version     string `yaml:"version"`
	Enabled     *bool  `yaml:"enabled"`
	Tracing     struct {
		SampleRate *float64 `yaml:"sampleRate"`
		Exporter   string   `yaml:"exporter"`
	} `yaml:"tracing"`
	Metrics struct {
		CollectionIntervalMs *int64 `yaml:"collectionIntervalMs"`
		EnableCollection     *bool  `yaml:"enableCollection"`
	} `yaml:"metrics"`
	Health struct {
		EnableHealthChecks *bool `yaml:"enableHealthChecks"`
	} `yaml:"health"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	OverheadBudgetMs *float64        `yaml:"overheadBudgetMs"`
	Middleware       map[string]bool `yaml:"middleware"`
}

// applyTo overlays the file's set fields onto base.
func (f *configFile) applyTo(base Config) Config {
	if f.ServiceName != "" {
		base.ServiceName = f.ServiceName
	}
	if f.Version != "" {
		base.Version = f.Version
	}
	if f.Enabled != nil {
		base.Enabled = *f.Enabled
	}
	if f.Tracing.SampleRate != nil {
		base.Tracing.SampleRate = *f.Tracing.SampleRate
	}
	if f.Tracing.Exporter != "" {
		base.Tracing.Exporter = f.Tracing.Exporter
	}
	if f.Metrics.CollectionIntervalMs != nil {
		base.Metrics.CollectionInterval = time.Duration(*f.Metrics.CollectionIntervalMs) * time.Millisecond
	}
	if f.Metrics.EnableCollection != nil {
		base.Metrics.EnableCollection = *f.Metrics.EnableCollection
	}
	if f.Health.EnableHealthChecks != nil {
		base.Health.EnableHealthChecks = *f.Health.EnableHealthChecks
	}
	if f.Logging.Level != "" {
		base.Logging.Level = f.Logging.Level
	}
	if f.OverheadBudgetMs != nil {
		base.OverheadBudgetMs = *f.OverheadBudgetMs
	}
	if f.Middleware != nil {
		base.Middleware = f.Middleware
	}
	return base
}

// FileProvider watches a YAML configuration file and publishes validated
// snapshots on change. Unset fields keep the defaults they started from, so
// a partial file is a valid overlay.
type FileProvider struct {
	path string
	base Config
	log  logging.Logger

	mu       sync.RWMutex
	current  Config
	subs     []chan Config
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	debounce time.Duration
}

// NewFileProvider loads path and starts watching it for changes. base
// supplies defaults for fields the file leaves unset.
func NewFileProvider(path string, base Config, log logging.Logger) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if log == nil {
		log = logging.NopLogger{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &FileProvider{
		path:     absPath,
		base:     base,
		log:      log.WithComponent("config"),
		current:  base,
		watcher:  watcher,
		cancel:   cancel,
		debounce: 100 * time.Millisecond,
	}

	if err := p.load(ctx); err != nil {
		p.log.Warn(ctx, "initial config load failed", logging.F("error", err.Error()))
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		cancel()
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go p.watchLoop(ctx)
	return p, nil
}

// Current returns the most recent valid configuration.
func (p *FileProvider) Current() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe returns a channel receiving each validated update, starting
// with the current state. Slow consumers miss intermediate snapshots rather
// than blocking the watcher.
func (p *FileProvider) Subscribe() <-chan Config {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Config, 1)
	ch <- p.current
	p.subs = append(p.subs, ch)
	return ch
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileProvider) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(p.debounce, func() {
					if err := p.load(ctx); err != nil {
						p.log.Warn(ctx, "config reload failed", logging.F("error", err.Error()))
					} else {
						p.log.Info(ctx, "configuration reloaded", logging.F("path", p.path))
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn(ctx, "config watcher error", logging.F("error", err.Error()))
		}
	}
}

func (p *FileProvider) load(_ context.Context) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := file.applyTo(p.base)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	p.mu.Lock()
	p.current = cfg
	subs := make([]chan Config, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
		}
	}
	return nil
}
