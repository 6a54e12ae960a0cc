// Package config provides YAML configuration loading for a supervision
// tree. It is optional sugar: every engine in this module is fully usable
// directly from Go (constructing ChildSpec/Options literals), matching how
// the teacher's domain layer never imports its own YAML infrastructure
// package. config exists only to make a supervision tree declarable from
// a file for the demo binary and for fixture-driven tests.
package config

import (
	"time"

	"github.com/kodflow/actorcore/supervisor"
)

const (
	defaultSchemaVersion     int    = 1
	defaultRestartPolicy     string = "permanent"
	defaultStrategy          string = "one_for_one"
	defaultAutoShutdown      string = "never"
	defaultMaxRestarts       int    = 3
	defaultRestartWithin     string = "5s"
	defaultShutdownTimeout   string = "5s"
	defaultTimerTickInterval string = "1s"
)

// Duration wraps time.Duration so YAML can carry human-readable strings
// like "30s" or "5m" instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML decodes a duration string such as "30s" into d. It uses
// the callback form of the hook, which gopkg.in/yaml.v3 still calls; it
// is not the *yaml.Node-based yaml.Unmarshaler.
//
// Params:
//   - unmarshal: callback supplied by the YAML decoder
//
// Returns:
//   - error: non-nil if the value is not a valid duration string
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ConfigDTO is the YAML representation of one supervision tree.
type ConfigDTO struct {
	Version     string         `yaml:"version"`
	Supervisor  SupervisorDTO  `yaml:"supervisor"`
	Persistence PersistenceDTO `yaml:"persistence,omitempty"`
	Timer       TimerDTO       `yaml:"timer,omitempty"`
}

// SupervisorDTO is the YAML representation of a supervisor tree.
type SupervisorDTO struct {
	Strategy         string         `yaml:"strategy,omitempty"`
	RestartIntensity IntensityDTO   `yaml:"restart_intensity,omitempty"`
	AutoShutdown     string         `yaml:"auto_shutdown,omitempty"`
	ShutdownTimeout  Duration       `yaml:"shutdown_timeout,omitempty"`
	Children         []ChildSpecDTO `yaml:"children,omitempty"`
}

// IntensityDTO is the YAML representation of a restart-intensity limit.
type IntensityDTO struct {
	MaxRestarts int      `yaml:"max_restarts,omitempty"`
	Within      Duration `yaml:"within,omitempty"`
}

// ChildSpecDTO declares one child's bookkeeping; the actual Start
// function is supplied in code and matched to this entry by ID (a
// supervision tree's behavior can't live in a YAML file).
type ChildSpecDTO struct {
	ID              string   `yaml:"id"`
	Restart         string   `yaml:"restart,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
	Significant     bool     `yaml:"significant,omitempty"`
}

// PersistenceDTO is the YAML representation of Persistence Manager
// defaults shared by every server bound to a store in this tree.
type PersistenceDTO struct {
	SchemaVersion   int      `yaml:"schema_version,omitempty"`
	ChecksumEnabled bool     `yaml:"checksum_enabled,omitempty"`
	Debounce        Duration `yaml:"debounce,omitempty"`
	MaxStateAge     Duration `yaml:"max_state_age,omitempty"`
}

// TimerDTO is the YAML representation of Timer Service options.
type TimerDTO struct {
	KeyPrefix    string   `yaml:"key_prefix,omitempty"`
	TickInterval Duration `yaml:"tick_interval,omitempty"`
}

// Config is the validated, defaulted domain form of ConfigDTO.
type Config struct {
	Version     string
	Supervisor  SupervisorConfig
	Persistence PersistenceConfig
	Timer       TimerConfig
}

// SupervisorConfig is the domain form of SupervisorDTO.
type SupervisorConfig struct {
	Strategy         supervisor.Strategy
	RestartIntensity supervisor.RestartIntensity
	AutoShutdown     supervisor.AutoShutdown
	ShutdownTimeout  time.Duration
	Children         []ChildSpecConfig
}

// ChildSpecConfig is the domain form of ChildSpecDTO.
type ChildSpecConfig struct {
	ID              string
	Restart         supervisor.RestartPolicy
	ShutdownTimeout time.Duration
	Significant     bool
}

// PersistenceConfig is the domain form of PersistenceDTO.
type PersistenceConfig struct {
	SchemaVersion   int
	ChecksumEnabled bool
	DebounceMs      int64
	MaxStateAgeMs   int64
}

// TimerConfig is the domain form of TimerDTO.
type TimerConfig struct {
	KeyPrefix    string
	TickInterval time.Duration
}
