package stops2sqlite

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseStopRecords(t *testing.T) {
	records, err := parseStopRecords([]byte(`[
		{"id": 1, "stop_id": 501, "nombre": "Main St", "lat": 40.1, "lon": -3.2, "lineas": "A, B"},
		{"lineas": "C", "lon": null, "lat": null, "nombre": "Depot", "stop_id": 502, "id": 2}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, int64(501), first.StopID)
	assert.Equal(t, "Main St", first.Name)
	require.NotNil(t, first.Lat)
	require.NotNil(t, first.Lon)
	assert.Equal(t, 40.1, *first.Lat)
	assert.Equal(t, -3.2, *first.Lon)
	assert.Equal(t, []string{"A", "B"}, first.lineNames())

	second := records[1]
	assert.Nil(t, second.Lat)
	assert.Nil(t, second.Lon)
	assert.Equal(t, []string{"C"}, second.lineNames())
}

func TestParseStopRecordsEmpty(t *testing.T) {
	records, err := parseStopRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseStopRecordsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		msg   string
	}{
		{"not json", `[{`, "not valid JSON"},
		{"top-level object", `{"id": 1}`, "expected a top-level array"},
		{"element not object", `[1]`, "record 0: expected an object"},
		{"missing id", `[{"stop_id": 1, "nombre": "x", "lat": null, "lon": null, "lineas": "A"}]`, `missing field "id"`},
		{"string id", `[{"id": "1", "stop_id": 1, "nombre": "x", "lat": null, "lon": null, "lineas": "A"}]`, `field "id": expected a number`},
		{"fractional stop_id", `[{"id": 1, "stop_id": 1.5, "nombre": "x", "lat": null, "lon": null, "lineas": "A"}]`, `field "stop_id": expected an integer`},
		{"missing lat", `[{"id": 1, "stop_id": 1, "nombre": "x", "lon": null, "lineas": "A"}]`, `missing field "lat"`},
		{"string lon", `[{"id": 1, "stop_id": 1, "nombre": "x", "lat": 1, "lon": "2", "lineas": "A"}]`, `field "lon": expected a number or null`},
		{"numeric lineas", `[{"id": 1, "stop_id": 1, "nombre": "x", "lat": 1, "lon": 2, "lineas": 5}]`, `field "lineas": expected a string`},
		{"second record", `[{"id": 1, "stop_id": 1, "nombre": "x", "lat": 1, "lon": 2, "lineas": "A"}, {}]`, "record 1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := parseStopRecords([]byte(c.input))
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), c.msg)
		})
	}
}

func TestLineNames(t *testing.T) {
	cases := map[string][]string{
		"A, B, C": {"A", "B", "C"},
		"A":       {"A"},
		"A,B":     {"A,B"},
		"":        {""},
	}
	for lineas, expected := range cases {
		assert.Equal(t, expected, stopRecord{Lines: lineas}.lineNames(), lineas)
	}
}
