package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/sheetkit/internal/sheet/document"
)

const (
	typeString   = "string"
	typeNumber   = "number"
	typeBool     = "bool"
	typeRepeater = "repeater"
	typeEntry    = "entry"
)

// encodeValue maps a document value to its stored type tag and JSON text.
func encodeValue(value any) (string, string, error) {
	var valueType string
	switch v := value.(type) {
	case string:
		valueType = typeString
	case bool:
		valueType = typeBool
	case *document.Repeater:
		valueType = typeRepeater
	case document.Entry, map[string]any:
		valueType = typeEntry
	default:
		if _, ok := document.Number(v); !ok {
			return "", "", fmt.Errorf("unsupported value type %T", value)
		}
		valueType = typeNumber
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", "", err
	}
	return valueType, string(raw), nil
}

// decodeValue reverses encodeValue. Numbers come back as float64.
func decodeValue(valueType, raw string) (any, error) {
	switch valueType {
	case typeString:
		var s string
		err := json.Unmarshal([]byte(raw), &s)
		return s, err
	case typeNumber:
		var n float64
		err := json.Unmarshal([]byte(raw), &n)
		return n, err
	case typeBool:
		var b bool
		err := json.Unmarshal([]byte(raw), &b)
		return b, err
	case typeRepeater:
		rep := document.NewRepeater()
		if err := json.Unmarshal([]byte(raw), rep); err != nil {
			return nil, err
		}
		return rep, nil
	case typeEntry:
		var e map[string]any
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		return document.Entry(e), nil
	default:
		return nil, fmt.Errorf("unknown value type %q", valueType)
	}
}
