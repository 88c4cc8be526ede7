package eav

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
)

// DateLayout is the storage form of date attributes
const DateLayout = "2006-01-02"

// dateLayouts are the accepted input forms of date attributes
var dateLayouts = []string{
	"2006-1-2",
	time.RFC3339,
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Validate checks raw against the definition type and returns the string
// that is stored. raw must not be nil; a nil value means delete.
func Validate(def *entities.AttributeDefinition, raw interface{}) (string, error) {
	switch def.Type {
	case entities.TypeText:
		return toText(raw), nil

	case entities.TypeNumber:
		f, err := toNumber(raw)
		if err != nil {
			return "", invalidValue(def.Name, "%v is not a number", raw)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case entities.TypeDate:
		t, err := toDate(raw)
		if err != nil {
			return "", invalidValue(def.Name, "%v is not a date", raw)
		}
		return t.Format(DateLayout), nil

	case entities.TypeSelect:
		s, ok := raw.(string)
		if !ok || !def.HasOption(s) {
			valid := strings.Join(def.Options, ", ")
			return "", errors.WithHintf(
				invalidValue(def.Name, "%v must be one of [%s]", raw, valid),
				"valid options: %s", valid)
		}
		return s, nil
	}

	return "", invalidValue(def.Name, "unsupported attribute type %q", def.Type)
}

// Decode converts a stored string into the value of the current definition
// type. Stored strings that no longer parse decode to nil.
func Decode(def *entities.AttributeDefinition, stored string) interface{} {
	switch def.Type {
	case entities.TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(stored), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case entities.TypeDate:
		t, err := parseDate(stored)
		if err != nil {
			return nil
		}
		return t.Format(DateLayout)
	}
	return stored
}

func toText(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

func toNumber(raw interface{}) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		// Round-trip through the shortest float32 form, so 0.1 stays 0.1
		parsed, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'f', -1, 32), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, errors.Newf("unsupported number type %T", raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("number must be finite")
	}
	return f, nil
}

func toDate(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, errors.New("nil time")
		}
		return *v, nil
	case string:
		return parseDate(v)
	}
	return time.Time{}, errors.Newf("unsupported date type %T", raw)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognised date %q", s)
}
