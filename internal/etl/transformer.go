package etl

import (
	"fmt"

	"github.com/optimal-data/ingestor/pkg/models"
	"github.com/optimal-data/ingestor/pkg/utils"
)

// MappingTransformer normalizes raw payloads using a per-source field
// mapping schema. It performs no I/O; the same raw record always yields
// the same canonical record.
type MappingTransformer struct {
	SourceName string
	Schema     *models.MappingSchema
}

func NewMappingTransformer(sourceName string, schema *models.MappingSchema) *MappingTransformer {
	return &MappingTransformer{SourceName: sourceName, Schema: schema}
}

func (t *MappingTransformer) Transform(raw RawRecord) (CanonicalRecord, error) {
	id := raw.ID
	if id == "" {
		if idVal, ok := raw.Payload[t.Schema.IDField]; ok && idVal != nil {
			id = fmt.Sprintf("%v", idVal)
		}
	}
	if id == "" {
		return CanonicalRecord{}, &ValidationError{
			RecordID: "(unknown)",
			Err:      fmt.Errorf("missing identifier field %q", t.Schema.IDField),
		}
	}

	fields := make(map[string]interface{}, len(t.Schema.Fields))
	for _, cfg := range t.Schema.Fields {
		val, exists := raw.Payload[cfg.Raw]
		if !exists || val == nil {
			if cfg.Required {
				return CanonicalRecord{}, &ValidationError{
					RecordID: id,
					Err:      fmt.Errorf("missing required field %q", cfg.Raw),
				}
			}
			continue
		}
		converted, err := utils.ConvertField(val, cfg)
		if err != nil {
			return CanonicalRecord{}, &ValidationError{
				RecordID: id,
				Err:      fmt.Errorf("field %q: %w", cfg.Raw, err),
			}
		}
		fields[cfg.Canonical] = converted
	}

	return CanonicalRecord{
		ID:          id,
		Source:      t.SourceName,
		Fields:      fields,
		Fingerprint: FingerprintFields(fields),
		ModifiedAt:  raw.FetchedAt,
	}, nil
}
