package models

import (
	"encoding/json"
	"fmt"
)

// MappingSchema describes how one source's raw payload maps onto the
// canonical record fields.
type MappingSchema struct {
	Source  string        `json:"source"`
	IDField string        `json:"idField"`
	Fields  []FieldConfig `json:"fields"`
}

type FieldConfig struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
	Type      string `json:"type"`
	Format    string `json:"format,omitempty"`
	Required  bool   `json:"required,omitempty"`
}

func LoadMapping(data []byte) (*MappingSchema, error) {
	var m MappingSchema
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the schema is complete enough to drive a transform.
func (m *MappingSchema) Validate() error {
	if m.IDField == "" {
		return fmt.Errorf("mapping for source %q: idField is required", m.Source)
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("mapping for source %q: at least one field is required", m.Source)
	}
	for _, f := range m.Fields {
		if f.Raw == "" || f.Canonical == "" {
			return fmt.Errorf("mapping for source %q: field entries need both raw and canonical names", m.Source)
		}
	}
	return nil
}
