package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/optimal-data/ingestor/pkg/models"
)

// ConvertField coerces a raw payload value to the type declared in the
// field mapping.
func ConvertField(val interface{}, cfg models.FieldConfig) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "datetime":
		return ConvertDateTime(val, cfg.Format)
	case "int":
		return ConvertToInt(val)
	case "float":
		return ConvertToFloat(val)
	case "bool":
		return ConvertToBool(val)
	case "string", "enum":
		return fmt.Sprintf("%v", val), nil
	default:
		return val, nil
	}
}

func ConvertDateTime(val interface{}, format string) (interface{}, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		if format != "" {
			formats = append([]string{format}, formats...)
		}
		for _, f := range formats {
			if t, err := time.Parse(f, v); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unable to parse datetime: %s", v)
	case []byte:
		return ConvertDateTime(string(v), format)
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", val)
	}
}

func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	case []byte:
		return strconv.Atoi(string(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}

func ConvertToBool(val interface{}) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", val)
	}
}
