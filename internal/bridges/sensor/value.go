package sensor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	valueTrue  = "true"
	valueFalse = "false"
)

// normalise renders a decoded JSON value as the string stored in events.
// Numeric readings use the shortest exact decimal form; binary readings
// become "true" or "false".
func normalise(p *PropertyDef, raw any) (string, error) {
	if p.Binary {
		b, err := parseBinary(raw)
		if err != nil {
			return "", err
		}
		if b {
			return valueTrue, nil
		}
		return valueFalse, nil
	}

	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, raw)
	}
}

func parseBinary(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		return f != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "open", "1", "detected", "yes":
			return true, nil
		case "false", "off", "closed", "0", "clear", "cleared", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidValue, raw)
}

// decodeScalar parses a bare payload published on a property sub-topic.
func decodeScalar(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(payload))
}
