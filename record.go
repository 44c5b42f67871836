package stops2sqlite

import (
	"errors"
	"fmt"
	"github.com/tidwall/gjson"
	"strings"
)

var ErrInvalidInput = errors.New("invalid input")

// lineSeparator splits the lineas field. It is matched exactly, so "A,B" is a
// single line named "A,B".
const lineSeparator = ", "

// stopRecord is one element of the input array.
type stopRecord struct {
	Number int64    // id
	StopID int64    // stop_id
	Name   string   // nombre
	Lat    *float64 // lat
	Lon    *float64 // lon
	Lines  string   // lineas
}

func (r stopRecord) lineNames() []string {
	return strings.Split(r.Lines, lineSeparator)
}

// parseStopRecords parses the input document. Every field is required; lat and
// lon may be null.
func parseStopRecords(input []byte) ([]stopRecord, error) {
	if !gjson.ValidBytes(input) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidInput)
	}
	doc := gjson.ParseBytes(input)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: expected a top-level array, got %s", ErrInvalidInput, doc.Type)
	}

	var records []stopRecord
	var parseErr error
	i := 0
	doc.ForEach(func(_, value gjson.Result) bool {
		record, err := parseStopRecord(value)
		if err != nil {
			parseErr = fmt.Errorf("%w: record %d: %s", ErrInvalidInput, i, err)
			return false
		}
		records = append(records, record)
		i++
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return records, nil
}

func parseStopRecord(value gjson.Result) (stopRecord, error) {
	if !value.IsObject() {
		return stopRecord{}, fmt.Errorf("expected an object, got %s", value.Type)
	}

	var r stopRecord
	var err error
	if r.Number, err = requireInt(value, "id"); err != nil {
		return r, err
	}
	if r.StopID, err = requireInt(value, "stop_id"); err != nil {
		return r, err
	}
	if r.Name, err = requireString(value, "nombre"); err != nil {
		return r, err
	}
	if r.Lat, err = requireNullableFloat(value, "lat"); err != nil {
		return r, err
	}
	if r.Lon, err = requireNullableFloat(value, "lon"); err != nil {
		return r, err
	}
	if r.Lines, err = requireString(value, "lineas"); err != nil {
		return r, err
	}
	return r, nil
}

func requireField(value gjson.Result, key string) (gjson.Result, error) {
	field := value.Get(key)
	if !field.Exists() {
		return field, fmt.Errorf("missing field %q", key)
	}
	return field, nil
}

func requireInt(value gjson.Result, key string) (int64, error) {
	field, err := requireField(value, key)
	if err != nil {
		return 0, err
	}
	if field.Type != gjson.Number {
		return 0, fmt.Errorf("field %q: expected a number, got %s", key, field.Type)
	}
	n := field.Int()
	if float64(n) != field.Float() {
		return 0, fmt.Errorf("field %q: expected an integer, got %s", key, field.Raw)
	}
	return n, nil
}

func requireString(value gjson.Result, key string) (string, error) {
	field, err := requireField(value, key)
	if err != nil {
		return "", err
	}
	if field.Type != gjson.String {
		return "", fmt.Errorf("field %q: expected a string, got %s", key, field.Type)
	}
	return field.String(), nil
}

func requireNullableFloat(value gjson.Result, key string) (*float64, error) {
	field, err := requireField(value, key)
	if err != nil {
		return nil, err
	}
	switch field.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
		f := field.Float()
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q: expected a number or null, got %s", key, field.Type)
	}
}

// nullableFloat converts p for binding with sqlitex.Exec, which binds an untyped
// nil as NULL.
func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
