package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ingestor", cfg.MongoDatabase)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.BaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://ingest:secret@db/optimal")
	t.Setenv("PAGE_SIZE", "24")
	t.Setenv("CACHE_TTL_MINUTES", "60")
	t.Setenv("WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://ingest:secret@db/optimal", cfg.PostgresURL)
	assert.Equal(t, 24, cfg.PageSize)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.Workers, "unparseable values fall back to defaults")
}

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSourcesParsesAndValidates(t *testing.T) {
	path := writeSourcesFile(t, `{
		"sources": [{
			"name": "ahorramas",
			"baseURL": "https://shop.example/es",
			"endpoint": "Search-UpdateGrid",
			"pageSize": 24,
			"cacheTTLMinutes": 60,
			"mapping": {
				"idField": "id",
				"fields": [
					{"raw": "id", "canonical": "product_id", "type": "string", "required": true},
					{"raw": "price", "canonical": "price", "type": "float"}
				]
			}
		}]
	}`)

	file, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, file.Sources, 1)

	src := file.Sources[0]
	assert.Equal(t, "ahorramas", src.Name)
	assert.Equal(t, 24, src.PageSize)
	assert.Equal(t, 60, src.CacheTTLMinutes)
	assert.Equal(t, "ahorramas", src.Mapping.Source, "mapping source defaults to the entry name")
}

func TestLoadSourcesRejectsMissingMapping(t *testing.T) {
	path := writeSourcesFile(t, `{
		"sources": [{
			"name": "broken",
			"baseURL": "https://shop.example",
			"endpoint": "grid",
			"mapping": {"idField": "id", "fields": []}
		}]
	}`)

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestLoadSourcesRejectsEmptyFile(t *testing.T) {
	path := writeSourcesFile(t, `{"sources": []}`)

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestLoadSourcesMissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
