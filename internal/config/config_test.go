package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ORAITApps/attachment-migrator/internal/auth"
)

func creds(domain string) auth.Credentials {
	return auth.Credentials{Domain: domain, ClientID: "id", ClientSecret: "secret", Username: "user", Password: "pass"}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "50.0", cfg.APIVersion)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "json", cfg.Report.Format)
	assert.False(t, cfg.GUI)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers: 4
source:
  domain: https://source.my.salesforce.com
  client_id: file-id
migration:
  parent_query: SELECT Id, Name FROM Account
  parent_transform:
    name_prefix: test
    exclude: [Phone]
`), 0o600))

	t.Setenv("SFMIGRATE_SOURCE_CLIENT_ID", "env-id")
	t.Setenv("SFMIGRATE_TARGET_PASSWORD", "env-pass")
	t.Setenv("SFMIGRATE_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "https://source.my.salesforce.com", cfg.Source.Domain)
	assert.Equal(t, "env-id", cfg.Source.ClientID, "environment overrides the file")
	assert.Equal(t, "env-pass", cfg.Target.Password)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "SELECT Id, Name FROM Account", cfg.Migration.ParentQuery)
	assert.Equal(t, "test", cfg.Migration.ParentTransform.NamePrefix)
	assert.Equal(t, []string{"Phone"}, cfg.Migration.ParentTransform.Exclude)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SFMIGRATE_WORKERS", "3")
	t.Setenv("SFMIGRATE_REPORT_FORMAT", "yaml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.String("report-format", "json", "")
	flags.String("parent-query", "", "")
	require.NoError(t, flags.Parse([]string{"--workers", "8", "--parent-query", "SELECT Id FROM Contact"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "yaml", cfg.Report.Format, "unset flags do not mask the environment")
	assert.Equal(t, "SELECT Id FROM Contact", cfg.Migration.ParentQuery)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		cfg.Source = creds("https://source.example.com")
		cfg.Target = creds("https://target.example.com")
		cfg.Migration.ParentQuery = "SELECT Id FROM Account"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing source password", mutate: func(c *Config) { c.Source.Password = "" }, wantErr: "source org"},
		{name: "missing target domain", mutate: func(c *Config) { c.Target.Domain = "" }, wantErr: "target org"},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers"},
		{name: "negative rate", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: "requests_per_second"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log level"},
		{name: "bad report format", mutate: func(c *Config) { c.Report.Format = "xml" }, wantErr: "report format"},
		{name: "missing parent query", mutate: func(c *Config) { c.Migration.ParentQuery = "" }, wantErr: "parent query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
