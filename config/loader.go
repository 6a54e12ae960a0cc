package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kodflow/actorcore/supervisor"
)

// ErrNoConfigurationLoaded is returned by Reload when Load was never
// called successfully.
var ErrNoConfigurationLoaded error = errors.New("config: no configuration loaded")

// ErrUnknownStrategy reports an unrecognized supervisor.strategy value.
var ErrUnknownStrategy error = errors.New("config: unknown strategy")

// ErrUnknownRestartPolicy reports an unrecognized children[].restart value.
var ErrUnknownRestartPolicy error = errors.New("config: unknown restart policy")

// ErrUnknownAutoShutdown reports an unrecognized supervisor.auto_shutdown
// value.
var ErrUnknownAutoShutdown error = errors.New("config: unknown auto_shutdown")

// ErrDuplicateChildID reports two children declared under the same id.
var ErrDuplicateChildID error = errors.New("config: duplicate child id")

// Loader loads a supervision-tree configuration from a YAML file and
// remembers the last loaded path to support Reload.
type Loader struct {
	lastPath string
}

// New returns a Loader ready to Load a configuration file.
func New() *Loader {
	return &Loader{}
}

// Load reads and parses path, applying defaults and validating the
// result.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - config path is caller-trusted input
	if err != nil {
		return nil, fmt.Errorf("config: reading file: %w", err)
	}

	cfg, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	l.lastPath = path
	return cfg, nil
}

// Parse parses configuration from raw YAML bytes.
func (l *Loader) Parse(data []byte) (*Config, error) {
	var dto ConfigDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	applyDefaults(&dto)
	return dto.toDomain()
}

// Reload reparses the file most recently passed to Load.
func (l *Loader) Reload() (*Config, error) {
	if l.lastPath == "" {
		return nil, fmt.Errorf("%w", ErrNoConfigurationLoaded)
	}
	return l.Load(l.lastPath)
}

func applyDefaults(dto *ConfigDTO) {
	if dto.Version == "" {
		dto.Version = "1"
	}
	if dto.Supervisor.Strategy == "" {
		dto.Supervisor.Strategy = defaultStrategy
	}
	if dto.Supervisor.AutoShutdown == "" {
		dto.Supervisor.AutoShutdown = defaultAutoShutdown
	}
	if dto.Supervisor.RestartIntensity.MaxRestarts == 0 {
		dto.Supervisor.RestartIntensity.MaxRestarts = defaultMaxRestarts
	}
	if dto.Supervisor.RestartIntensity.Within == 0 {
		dto.Supervisor.RestartIntensity.Within = mustParse(defaultRestartWithin)
	}
	if dto.Supervisor.ShutdownTimeout == 0 {
		dto.Supervisor.ShutdownTimeout = mustParse(defaultShutdownTimeout)
	}
	for i := range dto.Supervisor.Children {
		applyChildDefaults(&dto.Supervisor.Children[i])
	}

	if dto.Persistence.SchemaVersion == 0 {
		dto.Persistence.SchemaVersion = defaultSchemaVersion
	}

	if dto.Timer.TickInterval == 0 {
		dto.Timer.TickInterval = mustParse(defaultTimerTickInterval)
	}
}

func applyChildDefaults(c *ChildSpecDTO) {
	if c.Restart == "" {
		c.Restart = defaultRestartPolicy
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = mustParse(defaultShutdownTimeout)
	}
}

// mustParse parses one of this package's own default duration constants;
// a failure here is a programming error in this file, not user input.
func mustParse(s string) Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic("config: invalid built-in default duration " + s)
	}
	return Duration(d)
}

func (c *ConfigDTO) toDomain() (*Config, error) {
	strategy, err := parseStrategy(c.Supervisor.Strategy)
	if err != nil {
		return nil, err
	}
	autoShutdown, err := parseAutoShutdown(c.Supervisor.AutoShutdown)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(c.Supervisor.Children))
	children := make([]ChildSpecConfig, 0, len(c.Supervisor.Children))
	for _, dto := range c.Supervisor.Children {
		if _, dup := seen[dto.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChildID, dto.ID)
		}
		seen[dto.ID] = struct{}{}

		policy, err := parseRestartPolicy(dto.Restart)
		if err != nil {
			return nil, err
		}
		children = append(children, ChildSpecConfig{
			ID:              dto.ID,
			Restart:         policy,
			ShutdownTimeout: time.Duration(dto.ShutdownTimeout),
			Significant:     dto.Significant,
		})
	}

	return &Config{
		Version: c.Version,
		Supervisor: SupervisorConfig{
			Strategy: strategy,
			RestartIntensity: supervisor.RestartIntensity{
				MaxRestarts: c.Supervisor.RestartIntensity.MaxRestarts,
				Within:      time.Duration(c.Supervisor.RestartIntensity.Within),
			},
			AutoShutdown:    autoShutdown,
			ShutdownTimeout: time.Duration(c.Supervisor.ShutdownTimeout),
			Children:        children,
		},
		Persistence: PersistenceConfig{
			SchemaVersion:   c.Persistence.SchemaVersion,
			ChecksumEnabled: c.Persistence.ChecksumEnabled,
			DebounceMs:      time.Duration(c.Persistence.Debounce).Milliseconds(),
			MaxStateAgeMs:   time.Duration(c.Persistence.MaxStateAge).Milliseconds(),
		},
		Timer: TimerConfig{
			KeyPrefix:    c.Timer.KeyPrefix,
			TickInterval: time.Duration(c.Timer.TickInterval),
		},
	}, nil
}

func parseStrategy(s string) (supervisor.Strategy, error) {
	switch s {
	case "one_for_one":
		return supervisor.OneForOne, nil
	case "one_for_all":
		return supervisor.OneForAll, nil
	case "rest_for_one":
		return supervisor.RestForOne, nil
	case "simple_one_for_one":
		return supervisor.SimpleOneForOne, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

func parseRestartPolicy(s string) (supervisor.RestartPolicy, error) {
	switch s {
	case "permanent":
		return supervisor.Permanent, nil
	case "transient":
		return supervisor.Transient, nil
	case "temporary":
		return supervisor.Temporary, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRestartPolicy, s)
	}
}

func parseAutoShutdown(s string) (supervisor.AutoShutdown, error) {
	switch s {
	case "never":
		return supervisor.Never, nil
	case "any_significant":
		return supervisor.AnySignificant, nil
	case "all_significant":
		return supervisor.AllSignificant, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAutoShutdown, s)
	}
}
