package knowledgeModel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Vector is the canonical in-memory embedding. It is persisted as a JSON array; the legacy
// delimited-string form is accepted when reading.
type Vector []float32

func (v *Vector) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = nil
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := DecodeVector(s)
		if err != nil {
			return err
		}
		*v = decoded
		return nil
	}
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	*v = values
	return nil
}

// EncodeVector renders the canonical stored form.
func EncodeVector(v []float32) string {
	if v == nil {
		v = []float32{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

// DecodeVector accepts "[0.1,0.2]", "{0.1,0.2}", "0.1,0.2" and whitespace-delimited numbers.
func DecodeVector(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	if s == "" {
		return []float32{}, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float32, 0, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("decode vector element %d %q: %w", i, f, err)
		}
		out = append(out, float32(val))
	}
	return out, nil
}
