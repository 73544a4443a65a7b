// Package config loads the logkeeper configuration file and turns it into
// the runtime handle that retention conditions and scripts see.
package config

type Config struct {
	Logging    LoggingConfig     `yaml:"logging" toml:"logging"`
	Properties map[string]string `yaml:"properties" toml:"properties"`
	Scripts    []ScriptConfig    `yaml:"scripts" toml:"scripts"`
	Targets    []TargetConfig    `yaml:"targets" toml:"targets"`
	Engine     EngineConfig      `yaml:"engine" toml:"engine"`
	Journal    JournalConfig     `yaml:"journal" toml:"journal"`
	Metrics    MetricsConfig     `yaml:"metrics" toml:"metrics"`
	Lock       LockConfig        `yaml:"lock" toml:"lock"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`     // "debug", "info", "warn", "error"
	Format  string `yaml:"format" toml:"format"`   // "text", "json"
	Backend string `yaml:"backend" toml:"backend"` // "slog", "zap", "logrus", "zerolog"
}

// ScriptConfig declares a script. Exactly one of Source, Path or Ref is set;
// Ref is only meaningful inside a condition.
type ScriptConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Language string `yaml:"language" toml:"language"`
	Source   string `yaml:"source" toml:"source"`
	Path     string `yaml:"path" toml:"path"`
	Ref      string `yaml:"ref" toml:"ref"`
}

// TargetConfig describes one directory of rolled archives.
type TargetConfig struct {
	Name       string            `yaml:"name" toml:"name"`
	BasePath   string            `yaml:"basePath" toml:"basePath"`
	MaxDepth   int               `yaml:"maxDepth" toml:"maxDepth"`
	TestMode   bool              `yaml:"testMode" toml:"testMode"`
	Schedule   string            `yaml:"schedule" toml:"schedule"` // cron, optional
	Watch      WatchConfig       `yaml:"watch" toml:"watch"`
	Conditions []ConditionConfig `yaml:"conditions" toml:"conditions"`
}

type WatchConfig struct {
	Mode           string   `yaml:"mode" toml:"mode"`                     // "auto", "poll", "fsnotify", "off"
	PollInterval   Duration `yaml:"pollInterval" toml:"pollInterval"`     // e.g. 30s
	DebounceWindow Duration `yaml:"debounceWindow" toml:"debounceWindow"` // e.g. 2s

	// StabilityWindow delays a rollover until new archives stop growing.
	StabilityWindow Duration `yaml:"stabilityWindow" toml:"stabilityWindow"`
}

// ConditionConfig is one stage of a target's retention chain. Which fields
// apply depends on Type.
type ConditionConfig struct {
	Type   string        `yaml:"type" toml:"type"`
	Glob   string        `yaml:"glob" toml:"glob"`
	Regex  string        `yaml:"regex" toml:"regex"`
	Age    Duration      `yaml:"age" toml:"age"`
	Count  int           `yaml:"count" toml:"count"`
	Size   string        `yaml:"size" toml:"size"`
	Script *ScriptConfig `yaml:"script" toml:"script"`
}

type EngineConfig struct {
	MaxSteps uint64 `yaml:"maxSteps" toml:"maxSteps"`
}

type JournalConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables the journal
}

type MetricsConfig struct {
	Listen    string `yaml:"listen" toml:"listen"` // empty disables the endpoint
	Namespace string `yaml:"namespace" toml:"namespace"`
}

type LockConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// Target returns the target with the given name.
func (c *Config) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}
