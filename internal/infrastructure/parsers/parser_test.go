package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawLink
	}{
		{
			name:  "single link",
			input: `[{"pivot": "enrollments", "left": "A1", "right": "B101"}]`,
			expected: []RawLink{
				{Pivot: "enrollments", Left: "A1", Right: "B101", LineNum: 1},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawLink{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_Metadata(t *testing.T) {
	input := `[
		{"left": "A1", "right": "B101", "metadata": {"role": "auditor", "credits": 3}},
		{"left": "A2", "right": "B102"}
	]`

	parser := &JSONParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "", result[0].Pivot)
	assert.Equal(t, "auditor", result[0].Metadata["role"])
	assert.Equal(t, float64(3), result[0].Metadata["credits"])
	assert.Equal(t, 2, result[1].LineNum)
	assert.Nil(t, result[1].Metadata)
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}

	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)

	_, err = parser.Parse(strings.NewReader(`[{"left": "A1", "right": "B1", "subject": "x"}]`))
	require.Error(t, err)
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawLink
	}{
		{
			name:  "required columns only",
			input: "left,right\nA1,B101\n",
			expected: []RawLink{
				{Left: "A1", Right: "B101", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "pivot,left,right\n",
			expected: nil,
		},
		{
			name:  "columns in different order",
			input: "right,pivot,left\nB101,enrollments,A1\n",
			expected: []RawLink{
				{Pivot: "enrollments", Left: "A1", Right: "B101", LineNum: 2},
			},
		},
		{
			name:  "extra columns become metadata",
			input: "Pivot,Left,Right,Role,Grade\nenrollments,A1,B101,auditor,\n",
			expected: []RawLink{
				{Pivot: "enrollments", Left: "A1", Right: "B101", Metadata: map[string]any{"role": "auditor"}, LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "missing required column",
			input:  "pivot,left\nenrollments,A1\n",
			errMsg: "missing required column: right",
		},
		{
			name:   "duplicate column",
			input:  "left,right,left\nA1,B1,A2\n",
			errMsg: "duplicate column: left",
		},
		{
			name:   "ragged row",
			input:  "left,right\nA1,B1,extra\n",
			errMsg: "line 2",
		},
		{
			name:   "empty input",
			input:  "",
			errMsg: "reading CSV header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &CSVParser{}, ForFormat("CSV"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "json", FormatOf("links.JSON"))
	assert.Equal(t, "csv", FormatOf("/tmp/enrollments.csv"))
	assert.Equal(t, "", FormatOf("links.yaml"))
	assert.Equal(t, "", FormatOf("csv"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("links.json"))
	assert.IsType(t, &CSVParser{}, ForFile("enrollments.csv"))
	assert.Nil(t, ForFile("file.txt"))
	assert.Nil(t, ForFile("noextension"))
}
