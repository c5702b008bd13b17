package model

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// ErrMalformedRecord matches every error returned by Normalize.
var ErrMalformedRecord = errors.New("malformed record")

// FieldError describes the raw key that made an entry unusable.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q %s", e.Key, e.Reason)
}

// Is reports whether target is ErrMalformedRecord.
func (e *FieldError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func fieldError(key, format string, args ...any) error {
	return &FieldError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Normalize converts one raw backing-store entry into a Record.
// The entry must hold exactly the keys in RawKeys with the expected JSON
// types. Values are copied, never defaulted.
func Normalize(raw map[string]any) (Record, error) {
	if err := checkKeys(raw); err != nil {
		return Record{}, err
	}

	var (
		rec Record
		err error
	)

	if rec.RobotID, err = stringField(raw, KeyRobotID); err != nil {
		return Record{}, err
	}
	if rec.RobotID == "" {
		return Record{}, fieldError(KeyRobotID, "is empty")
	}

	online, ok := raw[KeyOnline].(bool)
	if !ok {
		return Record{}, fieldError(KeyOnline, "must be a boolean, got %T", raw[KeyOnline])
	}
	rec.Online = online

	if rec.BatteryPercentage, err = intField(raw, KeyBatteryPercentage); err != nil {
		return Record{}, err
	}
	if rec.CPUUsage, err = intField(raw, KeyCPUUsage); err != nil {
		return Record{}, err
	}
	if rec.RAMConsumption, err = intField(raw, KeyRAMConsumption); err != nil {
		return Record{}, err
	}

	stamp, err := stringField(raw, KeyLastUpdated)
	if err != nil {
		return Record{}, err
	}
	if rec.LastUpdated, err = ParseRawTime(stamp); err != nil {
		return Record{}, fieldError(KeyLastUpdated, "%v", err)
	}

	if rec.LocationCoordinates, err = coordinatesField(raw, KeyLocationCoordinates); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// ParseRawTime parses a backing-store timestamp. Only the exact
// RawTimeLayout form is accepted: no fractional seconds, no zone, two-digit
// fields throughout.
func ParseRawTime(s string) (time.Time, error) {
	if len(s) != len(RawTimeLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s", s, RawTimeLayout)
	}
	t, err := time.Parse(RawTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s", s, RawTimeLayout)
	}
	return t, nil
}

func checkKeys(raw map[string]any) error {
	for _, key := range RawKeys {
		if _, ok := raw[key]; !ok {
			return fieldError(key, "is missing")
		}
	}
	if len(raw) == len(RawKeys) {
		return nil
	}

	var extra []string
	for key := range raw {
		if !slices.Contains(RawKeys, key) {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	return fieldError(extra[0], "is not a recognised key")
}

func stringField(raw map[string]any, key string) (string, error) {
	s, ok := raw[key].(string)
	if !ok {
		return "", fieldError(key, "must be a string, got %T", raw[key])
	}
	return s, nil
}

func intField(raw map[string]any, key string) (int, error) {
	switch v := raw[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fieldError(key, "must be an integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, fieldError(key, "must be an integer, got %T", raw[key])
	}
}

func coordinatesField(raw map[string]any, key string) ([]float64, error) {
	switch v := raw[key].(type) {
	case []float64:
		return slices.Clone(v), nil
	case []any:
		coords := make([]float64, len(v))
		for i, elem := range v {
			switch n := elem.(type) {
			case float64:
				coords[i] = n
			case int:
				coords[i] = float64(n)
			default:
				return nil, fieldError(key, "element %d must be a number, got %T", i, elem)
			}
		}
		return coords, nil
	default:
		return nil, fieldError(key, "must be an array of numbers, got %T", raw[key])
	}
}
