/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/mikelane/ns-migrator/internal/migration"
	"github.com/mikelane/ns-migrator/internal/planner"
)

// Reconnect configures the delay between watch reconnect attempts.
type Reconnect struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	Factor  float64       `yaml:"factor"`
}

// Config holds all configuration (defaults + config file + CLI flags).
type Config struct {
	MetricsBindAddress     string `yaml:"metricsBindAddress"`
	HealthProbeBindAddress string `yaml:"healthProbeBindAddress"`
	LeaderElect            bool   `yaml:"leaderElect"`

	// WatchNamespace restricts the request watch to one namespace.
	WatchNamespace string `yaml:"watchNamespace"`
	// RequestSelector is a label selector applied to requests.
	RequestSelector string `yaml:"requestSelector"`

	OperationTimeout time.Duration `yaml:"operationTimeout"`
	ConcurrentKinds  bool          `yaml:"concurrentKinds"`

	ReservedConfigMaps []string `yaml:"reservedConfigMaps"`
	LocalStorageMarker string   `yaml:"localStorageMarker"`

	// RequestRetention is how long finished requests are kept. Zero keeps them forever.
	RequestRetention  time.Duration `yaml:"requestRetention"`
	RetentionInterval time.Duration `yaml:"retentionInterval"`

	Reconnect Reconnect `yaml:"reconnect"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MetricsBindAddress:     ":8080",
		HealthProbeBindAddress: ":8081",
		OperationTimeout:       30 * time.Second,
		ReservedConfigMaps:     planner.DefaultConfig().ReservedConfigMaps,
		LocalStorageMarker:     planner.DefaultLocalStorageMarker,
		RetentionInterval:      10 * time.Minute,
		Reconnect: Reconnect{
			Initial: time.Second,
			Max:     time.Minute,
			Factor:  2,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}

	return c, nil
}

// flagBinding ties a command-line flag to the field it sets.
type flagBinding struct {
	name string
	copy func(dst *Config, src Config)
}

var bindings = []flagBinding{
	{"metrics-bind-address", func(d *Config, s Config) { d.MetricsBindAddress = s.MetricsBindAddress }},
	{"health-probe-bind-address", func(d *Config, s Config) { d.HealthProbeBindAddress = s.HealthProbeBindAddress }},
	{"leader-elect", func(d *Config, s Config) { d.LeaderElect = s.LeaderElect }},
	{"watch-namespace", func(d *Config, s Config) { d.WatchNamespace = s.WatchNamespace }},
	{"request-selector", func(d *Config, s Config) { d.RequestSelector = s.RequestSelector }},
	{"operation-timeout", func(d *Config, s Config) { d.OperationTimeout = s.OperationTimeout }},
	{"concurrent-kinds", func(d *Config, s Config) { d.ConcurrentKinds = s.ConcurrentKinds }},
	{"reserved-configmaps", func(d *Config, s Config) { d.ReservedConfigMaps = s.ReservedConfigMaps }},
	{"local-storage-marker", func(d *Config, s Config) { d.LocalStorageMarker = s.LocalStorageMarker }},
	{"request-retention", func(d *Config, s Config) { d.RequestRetention = s.RequestRetention }},
	{"retention-interval", func(d *Config, s Config) { d.RetentionInterval = s.RetentionInterval }},
	{"reconnect-initial", func(d *Config, s Config) { d.Reconnect.Initial = s.Reconnect.Initial }},
	{"reconnect-max", func(d *Config, s Config) { d.Reconnect.Max = s.Reconnect.Max }},
	{"reconnect-factor", func(d *Config, s Config) { d.Reconnect.Factor = s.Reconnect.Factor }},
}

// AddFlags registers a flag for every setting, bound to the fields of c.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.MetricsBindAddress, "metrics-bind-address", c.MetricsBindAddress,
		"The address the metric endpoint binds to. Use 0 to disable.")
	fs.StringVar(&c.HealthProbeBindAddress, "health-probe-bind-address", c.HealthProbeBindAddress,
		"The address the probe endpoint binds to.")
	fs.BoolVar(&c.LeaderElect, "leader-elect", c.LeaderElect,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	fs.StringVar(&c.WatchNamespace, "watch-namespace", c.WatchNamespace,
		"Only watch migration requests in this namespace. Empty watches all namespaces.")
	fs.StringVar(&c.RequestSelector, "request-selector", c.RequestSelector,
		"Label selector migration requests must match.")
	fs.DurationVar(&c.OperationTimeout, "operation-timeout", c.OperationTimeout,
		"Timeout for each API call made during a migration. 0 disables it.")
	fs.BoolVar(&c.ConcurrentKinds, "concurrent-kinds", c.ConcurrentKinds,
		"Migrate resource kinds in parallel.")
	fs.StringSliceVar(&c.ReservedConfigMaps, "reserved-configmaps", c.ReservedConfigMaps,
		"ConfigMap names that are never migrated.")
	fs.StringVar(&c.LocalStorageMarker, "local-storage-marker", c.LocalStorageMarker,
		"Storage classes containing this string are treated as node-local and skipped.")
	fs.DurationVar(&c.RequestRetention, "request-retention", c.RequestRetention,
		"How long finished migration requests are kept. 0 keeps them forever.")
	fs.DurationVar(&c.RetentionInterval, "retention-interval", c.RetentionInterval,
		"How often finished migration requests are checked for retention.")
	fs.DurationVar(&c.Reconnect.Initial, "reconnect-initial", c.Reconnect.Initial,
		"Initial delay before re-opening the request watch.")
	fs.DurationVar(&c.Reconnect.Max, "reconnect-max", c.Reconnect.Max,
		"Maximum delay before re-opening the request watch.")
	fs.Float64Var(&c.Reconnect.Factor, "reconnect-factor", c.Reconnect.Factor,
		"Multiplier applied to the reconnect delay after each failed attempt.")
}

// Overlay copies the settings of file into c, except those whose flag was
// set explicitly on fs.
func (c *Config) Overlay(file Config, fs *pflag.FlagSet) {
	for _, b := range bindings {
		if fs != nil && fs.Changed(b.name) {
			continue
		}
		b.copy(c, file)
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.WatchNamespace != "" {
		if msgs := validation.IsDNS1123Label(c.WatchNamespace); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("watchNamespace %q: %s", c.WatchNamespace, msgs[0]))
		}
	}
	if _, err := labels.Parse(c.RequestSelector); err != nil {
		errs = append(errs, fmt.Errorf("requestSelector: %w", err))
	}
	if c.OperationTimeout < 0 {
		errs = append(errs, errors.New("operationTimeout must not be negative"))
	}
	if c.LocalStorageMarker == "" {
		errs = append(errs, errors.New("localStorageMarker must not be empty"))
	}
	if c.RequestRetention < 0 {
		errs = append(errs, errors.New("requestRetention must not be negative"))
	}
	if c.RequestRetention > 0 && c.RetentionInterval <= 0 {
		errs = append(errs, errors.New("retentionInterval must be positive when requestRetention is set"))
	}
	if c.Reconnect.Initial <= 0 {
		errs = append(errs, errors.New("reconnect.initial must be positive"))
	}
	if c.Reconnect.Max < c.Reconnect.Initial {
		errs = append(errs, errors.New("reconnect.max must not be less than reconnect.initial"))
	}
	if c.Reconnect.Factor < 1 {
		errs = append(errs, errors.New("reconnect.factor must be at least 1"))
	}

	return errors.Join(errs...)
}

// Selector returns the parsed request selector, or nil when none is set.
func (c Config) Selector() (labels.Selector, error) {
	if c.RequestSelector == "" {
		return nil, nil
	}
	return labels.Parse(c.RequestSelector)
}

// Backoff returns the reconnect policy.
func (c Config) Backoff() wait.Backoff {
	return wait.Backoff{
		Duration: c.Reconnect.Initial,
		Factor:   c.Reconnect.Factor,
		Jitter:   0.1,
		Steps:    1 << 30,
		Cap:      c.Reconnect.Max,
	}
}

// Planner returns the planner settings.
func (c Config) Planner() planner.Config {
	return planner.Config{
		ReservedConfigMaps: c.ReservedConfigMaps,
		LocalStorageMarker: c.LocalStorageMarker,
	}
}

// Orchestrator returns the orchestrator options.
func (c Config) Orchestrator() migration.Options {
	return migration.Options{
		OperationTimeout: c.OperationTimeout,
		ConcurrentKinds:  c.ConcurrentKinds,
	}
}
