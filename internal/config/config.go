package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bookline/internal/models"
	"bookline/internal/schedule"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig            `yaml:"app"`
	Database      DatabaseConfig       `yaml:"database"`
	Redis         RedisConfig          `yaml:"redis"`
	WhatsApp      WhatsAppConfig       `yaml:"whatsapp"`
	API           APIConfig            `yaml:"api"`
	Chat          ChatConfig           `yaml:"chat"`
	Logging       LoggingConfig        `yaml:"logging"`
	Monitoring    MonitoringConfig     `yaml:"monitoring"`
	Organizations []OrganizationConfig `yaml:"organizations"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type WhatsAppConfig struct {
	APIBase        string `yaml:"api_base"`
	AccessToken    string `yaml:"access_token"`
	VerifyToken    string `yaml:"verify_token"`
	AppSecret      string `yaml:"app_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ChatConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
	SweepInterval     int `yaml:"sweep_interval_minutes"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

// OrganizationConfig seeds a tenant's read-only catalog: services, the
// weekly schedule and ad hoc time blocks. Authoring lives outside this
// service; appointments are the only runtime-written table.
type OrganizationConfig struct {
	models.Organization `yaml:",inline"`
	Services            []models.Service                  `yaml:"services"`
	Schedule            map[string][]models.SchedulePeriod `yaml:"schedule"`
	TimeBlocks          []models.TimeBlock                `yaml:"time_blocks"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps a lowercase weekday name from the schedule config.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayNames[name]
	return d, ok
}

func Load(configPath string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.WhatsApp.AppSecret == "" {
		return errors.New("whatsapp app_secret is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return errors.New("whatsapp verify_token is required")
	}
	return ValidateOrganizations(c.Organizations)
}

func ValidateOrganizations(orgs []OrganizationConfig) error {
	orgIDs := make(map[string]bool)
	slugs := make(map[string]bool)
	serviceIDs := make(map[string]bool)

	for _, org := range orgs {
		if org.ID == "" {
			return fmt.Errorf("organization %q has empty id", org.Name)
		}
		if orgIDs[org.ID] {
			return fmt.Errorf("duplicate organization id: %s", org.ID)
		}
		orgIDs[org.ID] = true

		if org.Slug == "" {
			return fmt.Errorf("organization %s has empty slug", org.ID)
		}
		if slugs[org.Slug] {
			return fmt.Errorf("duplicate organization slug: %s", org.Slug)
		}
		slugs[org.Slug] = true

		if _, err := time.LoadLocation(org.Timezone); err != nil {
			return fmt.Errorf("organization %s has invalid timezone %q: %w", org.ID, org.Timezone, err)
		}

		for _, svc := range org.Services {
			if svc.ID == "" {
				return fmt.Errorf("organization %s has a service with empty id", org.ID)
			}
			if serviceIDs[svc.ID] {
				return fmt.Errorf("duplicate service id: %s", svc.ID)
			}
			serviceIDs[svc.ID] = true
			if svc.DurationMinutes <= 0 {
				return fmt.Errorf("service %s has non-positive duration", svc.ID)
			}
		}

		for day, periods := range org.Schedule {
			if _, ok := ParseWeekday(day); !ok {
				return fmt.Errorf("organization %s has unknown weekday %q", org.ID, day)
			}
			for _, p := range periods {
				start, err := schedule.ParseClock(p.Start)
				if err != nil {
					return fmt.Errorf("organization %s weekday %s: %w", org.ID, day, err)
				}
				end, err := schedule.ParseClock(p.End)
				if err != nil {
					return fmt.Errorf("organization %s weekday %s: %w", org.ID, day, err)
				}
				if end <= start {
					return fmt.Errorf("organization %s weekday %s: period %s-%s is empty", org.ID, day, p.Start, p.End)
				}
			}
		}

		for _, b := range org.TimeBlocks {
			if _, err := time.Parse(models.DateLayout, b.Date); err != nil {
				return fmt.Errorf("organization %s time block date %q: %w", org.ID, b.Date, err)
			}
			if _, err := schedule.ParseClock(b.Start); err != nil {
				return fmt.Errorf("organization %s time block: %w", org.ID, err)
			}
			if _, err := schedule.ParseClock(b.End); err != nil {
				return fmt.Errorf("organization %s time block: %w", org.ID, err)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.WhatsApp.APIBase == "" {
		c.WhatsApp.APIBase = "https://graph.facebook.com/v19.0"
	}
	if c.WhatsApp.TimeoutSeconds == 0 {
		c.WhatsApp.TimeoutSeconds = 10
	}
	if c.Chat.RateLimitMessages == 0 {
		c.Chat.RateLimitMessages = models.RateLimitMessages
	}
	if c.Chat.RateLimitWindow == 0 {
		c.Chat.RateLimitWindow = models.RateLimitWindow
	}
	if c.Chat.SweepInterval == 0 {
		c.Chat.SweepInterval = 10
	}
}
