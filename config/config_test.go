package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heropets/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HEROPETS_SECURITY_JWT_SECRET", "s3cret")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTL)
	assert.Equal(t, 50, cfg.Pets.DefaultHappiness)
	assert.Equal(t, 0, cfg.Pets.DefaultHunger)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
  admin_ips: ["10.0.0.1"]
database:
  mode: mysql
  mysql_dsn: "user:pw@tcp(db:3306)/pets"
security:
  jwt_secret: from-file
  jwt_ttl: 0s
pets:
  default_hunger: 50
`)
	t.Setenv("HEROPETS_SERVER_PORT", "9000")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.1"}, cfg.Server.AdminIPs)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	assert.Equal(t, time.Duration(0), cfg.Security.JWTTTL)
	assert.Equal(t, 50, cfg.Pets.DefaultHunger)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Database: config.DatabaseConfig{Mode: "sqlite", SQLitePath: "x.db"},
			Security: config.SecurityConfig{JWTSecret: "s"},
			Pets:     config.PetsConfig{DefaultHappiness: 50},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*config.Config){
		"unknown mode":    func(c *config.Config) { c.Database.Mode = "embedded_xml" },
		"mysql no dsn":    func(c *config.Config) { c.Database.Mode = "mysql" },
		"no secret":       func(c *config.Config) { c.Security.JWTSecret = "" },
		"negative ttl":    func(c *config.Config) { c.Security.JWTTTL = -time.Second },
		"happiness > 100": func(c *config.Config) { c.Pets.DefaultHappiness = 101 },
		"hunger < 0":      func(c *config.Config) { c.Pets.DefaultHunger = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
