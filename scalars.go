package kino

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScalarDescriptor declares a leaf type and how resolved Go values are
// written to the response. Built-in scalars use graphql-go's coercion.
type ScalarDescriptor struct {
	Name        string
	Description string
	Serialize   func(value any) (any, error)
}

func builtinScalars() map[string]ScalarDescriptor {
	return map[string]ScalarDescriptor{
		"ID":      {Name: "ID"},
		"String":  {Name: "String"},
		"Int":     {Name: "Int"},
		"Float":   {Name: "Float"},
		"Boolean": {Name: "Boolean"},
	}
}

// DateTimeScalar serializes time.Time as an RFC 3339 string in UTC.
func DateTimeScalar() ScalarDescriptor {
	return ScalarDescriptor{
		Name:        "DateTime",
		Description: "An RFC 3339 timestamp in UTC.",
		Serialize: func(value any) (any, error) {
			switch v := value.(type) {
			case time.Time:
				if v.IsZero() {
					return nil, nil
				}
				return v.UTC().Format(time.RFC3339Nano), nil
			case string:
				return v, nil
			}
			return nil, fmt.Errorf("DateTime: cannot serialize %T", value)
		},
	}
}

// JSONObjectScalar passes structured JSON documents through unchanged. A
// document holding JSON null serializes as null.
func JSONObjectScalar() ScalarDescriptor {
	return ScalarDescriptor{
		Name:        "JSONObject",
		Description: "An arbitrary JSON object or array.",
		Serialize: func(value any) (any, error) {
			switch v := value.(type) {
			case json.RawMessage:
				if !json.Valid(v) {
					return nil, fmt.Errorf("JSONObject: invalid JSON")
				}
				return v, nil
			case json.Marshaler:
				raw, err := v.MarshalJSON()
				if err != nil {
					return nil, err
				}
				if string(raw) == "null" {
					return nil, nil
				}
				return json.RawMessage(raw), nil
			case map[string]any, []any:
				return v, nil
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("JSONObject: %w", err)
			}
			return json.RawMessage(raw), nil
		},
	}
}
