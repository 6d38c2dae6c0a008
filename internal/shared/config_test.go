package shared

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

func clearServerEnv(c *qt.C) {
	for _, k := range []string{
		"PORT", "DATABASE_PATH", "API_TOKEN", "LOG_LEVEL", "LOG_FORMAT",
		"SEED_DATA_PATH", "HEALTH_REQUIRES_AUTH", "METRICS_ENABLED",
	} {
		c.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadServerConfigRequiresToken(t *testing.T) {
	c := qt.New(t)
	clearServerEnv(c)

	_, err := LoadServerConfig("")
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue, qt.Commentf("got %v", err))
}

func TestLoadServerConfigDefaults(t *testing.T) {
	c := qt.New(t)
	clearServerEnv(c)
	c.Setenv("API_TOKEN", "secret")

	cfg, err := LoadServerConfig("")
	c.Assert(err, qt.IsNil)
	c.Check(cfg, qt.DeepEquals, &ServerConfig{
		Port:               8080,
		DatabasePath:       "./data/sensors.db",
		APIToken:           "secret",
		LogLevel:           "INFO",
		LogFormat:          "json",
		SeedDataPath:       "./data/sensors.json",
		HealthRequiresAuth: false,
		MetricsEnabled:     true,
	})
}

func TestLoadServerConfigEnvOverrides(t *testing.T) {
	c := qt.New(t)
	clearServerEnv(c)
	c.Setenv("API_TOKEN", "secret")
	c.Setenv("PORT", "9000")
	c.Setenv("LOG_FORMAT", "plain")
	c.Setenv("LOG_LEVEL", "debug")
	c.Setenv("HEALTH_REQUIRES_AUTH", "true")

	cfg, err := LoadServerConfig("")
	c.Assert(err, qt.IsNil)
	c.Check(cfg.Port, qt.Equals, 9000)
	c.Check(cfg.LogFormat, qt.Equals, "text")
	c.Check(cfg.LogLevel, qt.Equals, "DEBUG")
	c.Check(cfg.HealthRequiresAuth, qt.IsTrue)
}

func TestLoadServerConfigFile(t *testing.T) {
	c := qt.New(t)
	clearServerEnv(c)

	path := filepath.Join(c.TempDir(), "sensorroom.yaml")
	err := os.WriteFile(path, []byte("api_token: from-file\nport: 8181\nmetrics_enabled: false\n"), 0600)
	c.Assert(err, qt.IsNil)

	cfg, err := LoadServerConfig(path)
	c.Assert(err, qt.IsNil)
	c.Check(cfg.APIToken, qt.Equals, "from-file")
	c.Check(cfg.Port, qt.Equals, 8181)
	c.Check(cfg.MetricsEnabled, qt.IsFalse)

	// Environment wins over the file.
	c.Setenv("API_TOKEN", "from-env")
	cfg, err = LoadServerConfig(path)
	c.Assert(err, qt.IsNil)
	c.Check(cfg.APIToken, qt.Equals, "from-env")
}

func TestLoadServerConfigRejectsUnknownFormat(t *testing.T) {
	c := qt.New(t)
	clearServerEnv(c)
	c.Setenv("API_TOKEN", "secret")
	c.Setenv("LOG_FORMAT", "xml")

	_, err := LoadServerConfig("")
	c.Assert(err, qt.ErrorMatches, `log_format "xml" not valid`)
}

func TestAgentConfigDefaults(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "agent.json")
	c.Assert(SaveAgentConfig(path, &AgentConfig{
		ServerURL: "http://localhost:8080",
		APIToken:  "secret",
		Probes:    []Probe{{SensorID: "sensor-001", Command: "echo 1"}},
	}), qt.IsNil)

	cfg, err := LoadAgentConfig(path)
	c.Assert(err, qt.IsNil)
	c.Check(cfg.IntervalSeconds, qt.Equals, 60)
	c.Check(cfg.Probes[0].TimeoutSeconds, qt.Equals, 10)
}
