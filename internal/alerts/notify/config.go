package notify

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines mail delivery settings. Values come from a yaml file
// referenced by MAIL_CONFIG, with env fallbacks for the secrets.
type Config struct {
	APIURL          string        `yaml:"api_url"`
	APIKey          string        `yaml:"api_key"`
	From            string        `yaml:"from"`
	FromName        string        `yaml:"from_name"`
	SubjectTemplate string        `yaml:"subject_template"`
	BodyTemplate    string        `yaml:"body_template"`
	DashboardURL    string        `yaml:"dashboard_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LoadConfig loads mail config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		APIURL:   getenvDefault("MAIL_API_URL", "https://api.sendgrid.com/v3/mail/send"),
		APIKey:   os.Getenv("MAIL_API_KEY"),
		From:     getenvDefault("MAIL_FROM", "alerts@occupancy.local"),
		FromName: getenvDefault("MAIL_FROM_NAME", "Occupancy Alerts"),
		Timeout:  10 * time.Second,
	}

	if path := os.Getenv("MAIL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MAIL_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIURL == "" {
		return cfg, errors.New("notify: mail api url required")
	}
	if cfg.From == "" {
		return cfg, errors.New("notify: mail from address required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
