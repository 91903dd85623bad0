package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"", FormatTable, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" table ", FormatTable, false},
		{"xml", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

type resourceRow struct {
	UUID     string `json:"uuid" yaml:"uuid"`
	Filename string `json:"filename" yaml:"filename"`
	Checksum string `json:"checksum" yaml:"checksum"`
}

func TestPrinterJSON(t *testing.T) {
	row := resourceRow{
		UUID:     "0194b6e9-7a70-7000-8000-3f6f29f2a111",
		Filename: "thesis.pdf",
		Checksum: "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON).Print(row))

	var got resourceRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, row, got)
	assert.Contains(t, buf.String(), "\n  \"uuid\"") // indented
}

func TestPrinterYAML(t *testing.T) {
	rows := []resourceRow{
		{UUID: "u1", Filename: "a.txt", Checksum: "sum-a"},
		{UUID: "u2", Filename: "b.txt", Checksum: "sum-b"},
	}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatYAML).Print(rows))

	var got []resourceRow
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, rows, got)
}

func TestPrinterTable(t *testing.T) {
	table := NewTableData("UUID", "FILENAME", "LEVELS")
	table.AddRow("u1", "report.pdf", "LOW")
	table.AddRow("u2", "scan.tiff", "LOW,HIGH")

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable).Print(table))

	out := buf.String()
	assert.Contains(t, out, "UUID")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "LOW,HIGH")
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable).Print(map[string]int{"copies": 3}))
	assert.Contains(t, buf.String(), `"copies": 3`)
}

func TestPrinterUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := NewPrinter(&buf, Format("csv")).Print("anything")
	assert.Error(t, err)
}
