package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/optimal-data/ingestor/pkg/models"
)

// SourceSettings is one entry of the sources file: where to fetch, how
// fast, and how to map the payload. Zero pipeline fields fall back to the
// global defaults.
type SourceSettings struct {
	Name            string               `json:"name"`
	BaseURL         string               `json:"baseURL"`
	Endpoint        string               `json:"endpoint"`
	Params          map[string]string    `json:"params,omitempty"`
	PageSize        int                  `json:"pageSize,omitempty"`
	RatePerSec      float64              `json:"ratePerSec,omitempty"`
	MaxAttempts     int                  `json:"maxAttempts,omitempty"`
	CacheTTLMinutes int                  `json:"cacheTTLMinutes,omitempty"`
	Mapping         models.MappingSchema `json:"mapping"`
}

// SourcesFile is the parsed per-source settings file.
type SourcesFile struct {
	Sources []SourceSettings `json:"sources"`
}

// LoadSources reads and validates the sources file from the given path.
func LoadSources(path string) (*SourcesFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file '%s': %w", path, err)
	}

	var file SourcesFile
	if err := json.Unmarshal(bytes, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file '%s': %w", path, err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file '%s' defines no sources", path)
	}
	for i := range file.Sources {
		src := &file.Sources[i]
		if src.Name == "" {
			return nil, fmt.Errorf("sources file '%s': entry %d has no name", path, i)
		}
		if src.BaseURL == "" || src.Endpoint == "" {
			return nil, fmt.Errorf("source %q: baseURL and endpoint are required", src.Name)
		}
		if src.Mapping.Source == "" {
			src.Mapping.Source = src.Name
		}
		if err := src.Mapping.Validate(); err != nil {
			return nil, err
		}
	}
	return &file, nil
}
