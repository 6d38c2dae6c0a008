package shared

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// MemoryDatabase selects the in-memory store instead of SQLite.
const MemoryDatabase = "memory"

type ServerConfig struct {
	Port               int
	DatabasePath       string
	APIToken           string
	LogLevel           string // DEBUG | INFO | WARN | ERROR
	LogFormat          string // json | text
	SeedDataPath       string
	HealthRequiresAuth bool
	MetricsEnabled     bool
}

// LoadServerConfig reads defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path searches
// /etc/sensorroom and the working directory for sensorroom.yaml.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("database_path", "./data/sensors.db")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "json")
	v.SetDefault("seed_data_path", "./data/sensors.json")
	v.SetDefault("health_requires_auth", false)
	v.SetDefault("metrics_enabled", true)

	for key, env := range map[string]string{
		"port":                 "PORT",
		"database_path":        "DATABASE_PATH",
		"api_token":            "API_TOKEN",
		"log_level":            "LOG_LEVEL",
		"log_format":           "LOG_FORMAT",
		"seed_data_path":       "SEED_DATA_PATH",
		"health_requires_auth": "HEALTH_REQUIRES_AUTH",
		"metrics_enabled":      "METRICS_ENABLED",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "reading config %s", path)
		}
	} else {
		v.SetConfigName("sensorroom")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/sensorroom")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, errors.Annotate(err, "reading config")
			}
		}
	}

	c := &ServerConfig{
		Port:               v.GetInt("port"),
		DatabasePath:       v.GetString("database_path"),
		APIToken:           v.GetString("api_token"),
		LogLevel:           strings.ToUpper(v.GetString("log_level")),
		LogFormat:          strings.ToLower(v.GetString("log_format")),
		SeedDataPath:       v.GetString("seed_data_path"),
		HealthRequiresAuth: v.GetBool("health_requires_auth"),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
	}
	if c.LogFormat == "plain" {
		c.LogFormat = "text"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ServerConfig) Validate() error {
	if c.APIToken == "" {
		return errors.NotValidf("empty api_token (set API_TOKEN)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.NotValidf("port %d", c.Port)
	}
	if c.DatabasePath == "" {
		return errors.NotValidf("empty database_path")
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return errors.NotValidf("log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.NotValidf("log_format %q", c.LogFormat)
	}
	return nil
}

type Probe struct {
	SensorID       string `json:"sensor_id"`
	Shell          string `json:"shell"` // "sh" | "bash" | "cmd"
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type AgentConfig struct {
	ServerURL       string  `json:"server_url"`
	APIToken        string  `json:"api_token"`
	IntervalSeconds int     `json:"interval_seconds"`
	Probes          []Probe `json:"probes"`
}

func LoadAgentConfig(path string) (*AgentConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c AgentConfig
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
	for i := range c.Probes {
		if c.Probes[i].TimeoutSeconds <= 0 {
			c.Probes[i].TimeoutSeconds = 10
		}
	}
	return &c, nil
}

func SaveAgentConfig(path string, c *AgentConfig) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}
