package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps a developer's .env out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 0, cfg.AI.RequestsPerMinute)
	assert.Equal(t, uint32(5), cfg.AI.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.AI.BreakerTimeout)
	assert.Equal(t, 30*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "invoices.csv", cfg.Storage.LedgerFilename)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 100, cfg.Queue.Size)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.RunLogEnabled())
	assert.False(t, cfg.NotionEnabled())
	assert.Error(t, cfg.RequireAI())
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ORGANIZATION_NAME", "Northwind Traders")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("TEXT_EXTRACTOR_URL", "http://extractor:8000/text")
	t.Setenv("EXTRACTOR_TIMEOUT", "5s")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("GCS_BUCKET", "invoices-bucket")
	t.Setenv("STORAGE_ROOT", "finance/invoices")
	t.Setenv("AI_RPM", "30")
	t.Setenv("BIGQUERY_PROJECT", "my-project")
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_DATABASE_ID", "db")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Northwind Traders", cfg.Organization.Name)
	assert.Equal(t, "http://extractor:8000/text", cfg.Extractor.URL)
	assert.Equal(t, 5*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "invoices-bucket", cfg.Storage.Bucket)
	assert.Equal(t, "finance/invoices", cfg.Storage.Root)
	assert.Equal(t, 30, cfg.AI.RequestsPerMinute)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.RunLogEnabled())
	assert.True(t, cfg.NotionEnabled())
	assert.NoError(t, cfg.RequireAI())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"gcs without bucket", map[string]string{"STORAGE_BACKEND": "gcs"}},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "onedrive"}},
		{"negative rpm", map[string]string{"AI_RPM": "-1"}},
		{"bad duration", map[string]string{"EXTRACTOR_TIMEOUT": "soon"}},
		{"zero workers", map[string]string{"WORKERS": "0"}},
		{"breaker without timeout", map[string]string{"AI_BREAKER_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
