package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
app:
  name: bookline
  environment: test
database:
  path: /tmp/bookline-test.db
whatsapp:
  access_token: ${WA_TOKEN}
  verify_token: verify-me
  app_secret: secret
organizations:
  - id: org-1
    slug: acme-salon
    name: Acme Salon
    timezone: America/Sao_Paulo
    whatsapp_phone_number_id: pnid-1
    services:
      - id: svc-1
        name: Haircut
        duration_minutes: 30
        active: true
    schedule:
      friday:
        - start: "09:00"
          end: "12:00"
    time_blocks:
      - date: "2027-03-05"
        start: "10:00"
        end: "11:00"
        reason: maintenance
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("WA_TOKEN", "token-from-env")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "token-from-env", cfg.WhatsApp.AccessToken, "env placeholders expand")
	require.Len(t, cfg.Organizations, 1)

	org := cfg.Organizations[0]
	assert.Equal(t, "acme-salon", org.Slug)
	assert.Equal(t, "pnid-1", org.WhatsAppPhoneNumberID)
	require.Len(t, org.Services, 1)
	assert.Equal(t, 30, org.Services[0].DurationMinutes)
	require.Len(t, org.Schedule["friday"], 1)
	require.Len(t, org.TimeBlocks, 1)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("WA_TOKEN", "x")
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "https://graph.facebook.com/v19.0", cfg.WhatsApp.APIBase)
	assert.Equal(t, 10, cfg.WhatsApp.TimeoutSeconds)
	assert.Equal(t, models.RateLimitMessages, cfg.Chat.RateLimitMessages)
	assert.Equal(t, 10, cfg.Chat.SweepInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "/tmp/x.db"},
			WhatsApp: WhatsAppConfig{AppSecret: "s", VerifyToken: "v"},
		}
	}

	t.Run("MissingAppSecret", func(t *testing.T) {
		cfg := base()
		cfg.WhatsApp.AppSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("MissingDatabasePath", func(t *testing.T) {
		cfg := base()
		cfg.Database.Path = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestValidateOrganizations(t *testing.T) {
	valid := func() OrganizationConfig {
		return OrganizationConfig{
			Organization: models.Organization{
				ID: "org-1", Slug: "acme", Name: "Acme", Timezone: "UTC",
			},
			Services: []models.Service{{ID: "svc-1", Name: "Cut", DurationMinutes: 30, Active: true}},
			Schedule: map[string][]models.SchedulePeriod{
				"monday": {{Start: "09:00", End: "17:00"}},
			},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, ValidateOrganizations([]OrganizationConfig{valid()}))
	})

	t.Run("DuplicateOrgID", func(t *testing.T) {
		a, b := valid(), valid()
		b.Slug = "other"
		b.Services = nil
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{a, b}))
	})

	t.Run("DuplicateSlug", func(t *testing.T) {
		a, b := valid(), valid()
		b.ID = "org-2"
		b.Services = nil
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{a, b}))
	})

	t.Run("BadTimezone", func(t *testing.T) {
		org := valid()
		org.Timezone = "Mars/Olympus"
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{org}))
	})

	t.Run("ZeroDuration", func(t *testing.T) {
		org := valid()
		org.Services[0].DurationMinutes = 0
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{org}))
	})

	t.Run("UnknownWeekday", func(t *testing.T) {
		org := valid()
		org.Schedule = map[string][]models.SchedulePeriod{
			"someday": {{Start: "09:00", End: "17:00"}},
		}
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{org}))
	})

	t.Run("MalformedPeriod", func(t *testing.T) {
		org := valid()
		org.Schedule = map[string][]models.SchedulePeriod{
			"monday": {{Start: "9am", End: "17:00"}},
		}
		assert.Error(t, ValidateOrganizations([]OrganizationConfig{org}))
	})
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("friday")
	assert.True(t, ok)
	assert.Equal(t, time.Friday, d)

	_, ok = ParseWeekday("Freitag")
	assert.False(t, ok)
}
