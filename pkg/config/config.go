// config is the package containing configuration for berthd, shared
// so it can be used by berthd itself as well as other programs e.g.,
// `berthctl`.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/rules"
)

const (
	ConfigPath         = "/etc/berthd/conf"
	ConfigName         = "berth-config.yaml"
	BerthConfigVersion = "v1"
)

// Duration parses from YAML in time.ParseDuration notation ("15m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type Config struct {
	// The value determines how the config file is interpreted: for
	// now, if it is not equal to BerthConfigVersion above, it is
	// considered an invalid configuration.
	ConfigVersion string `yaml:"berthConfigVersion"`

	LogFormat     string `yaml:"logFormat"`
	Listen        string `yaml:"listen"`
	ListenMetrics string `yaml:"listenMetrics"`

	// RoutingDir is where rendered reverse-proxy configuration files
	// are written, one per service.
	RoutingDir string `yaml:"routingDir"`

	BuildTimeout    Duration `yaml:"buildTimeout"`
	CleanupInterval Duration `yaml:"cleanupInterval"`
	SweepInterval   Duration `yaml:"sweepInterval"`
	StaleThreshold  Duration `yaml:"staleThreshold"`

	// Declarative resources the daemon seeds its store with on start.
	Projects         []deploy.Project   `yaml:"projects"`
	Services         []deploy.Service   `yaml:"services"`
	Rules            []rules.Rule       `yaml:"rules"`
	Repos            []rules.RepoConfig `yaml:"repos"`
	RoutingTemplates map[string]string  `yaml:"routingTemplates"`
}

// Defaults returns a config with the daemon's baked-in defaults;
// file values and flags are layered on top.
func Defaults() Config {
	return Config{
		ConfigVersion:   BerthConfigVersion,
		LogFormat:       "fmt",
		Listen:          ":3040",
		RoutingDir:      "/var/lib/berth/routing",
		BuildTimeout:    Duration{deploy.DefaultBuildTimeout},
		CleanupInterval: Duration{time.Hour},
		SweepInterval:   Duration{5 * time.Minute},
		StaleThreshold:  Duration{30 * time.Minute},
	}
}

// Load reads and validates a config file, layered over Defaults.
func Load(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %s", path)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config file %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ConfigVersion != BerthConfigVersion {
		return fmt.Errorf("unsupported config version %q (want %q)", c.ConfigVersion, BerthConfigVersion)
	}
	services := map[string]bool{}
	projects := map[string]bool{}
	for _, p := range c.Projects {
		if p.ID == "" {
			return fmt.Errorf("project %q has no id", p.Name)
		}
		projects[p.ID] = true
	}
	for _, svc := range c.Services {
		if svc.ID == "" {
			return fmt.Errorf("service %q has no id", svc.Name)
		}
		if svc.ProjectID != "" && len(projects) > 0 && !projects[svc.ProjectID] {
			return fmt.Errorf("service %s references unknown project %s", svc.ID, svc.ProjectID)
		}
		services[svc.ID] = true
	}
	for _, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %q has no id", r.Name)
		}
		if r.ServiceID != "" && !services[r.ServiceID] {
			return fmt.Errorf("rule %s references unknown service %s", r.ID, r.ServiceID)
		}
	}
	for _, rc := range c.Repos {
		if rc.RepoFullName == "" && rc.RepoID == "" {
			return fmt.Errorf("repo config %s identifies no repository", rc.ID)
		}
	}
	return nil
}
