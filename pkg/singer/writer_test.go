package singer

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var messages []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var msg map[string]interface{}
		require.NoError(t, gojson.Unmarshal(scanner.Bytes(), &msg))
		messages = append(messages, msg)
	}
	require.NoError(t, scanner.Err())
	return messages
}

func TestWriterEmitsOneMessagePerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, w.Schema("jobs", map[string]interface{}{"type": "object"}, []string{"ID"}, []string{"ModifyIndex"}))
	require.NoError(t, w.Record("jobs", map[string]interface{}{"ID": "web"}))
	require.NoError(t, w.State(map[string]interface{}{"bookmarks": map[string]interface{}{}}))

	messages := decodeLines(t, &buf)
	require.Len(t, messages, 3)
	assert.Equal(t, "SCHEMA", messages[0]["type"])
	assert.Equal(t, "RECORD", messages[1]["type"])
	assert.Equal(t, "STATE", messages[2]["type"])
}

func TestSchemaMessageShape(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Schema("nodes", map[string]interface{}{"type": "object"}, []string{"ID"}, nil))

	messages := decodeLines(t, &buf)
	require.Len(t, messages, 1)
	assert.Equal(t, "nodes", messages[0]["stream"])
	assert.Equal(t, []interface{}{"ID"}, messages[0]["key_properties"])
	_, hasBookmarks := messages[0]["bookmark_properties"]
	assert.False(t, hasBookmarks, "empty bookmark_properties should be omitted")
}

func TestRecordMessageCarriesExtractionTime(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	extracted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return extracted }

	require.NoError(t, w.Record("jobs", map[string]interface{}{"ID": "web"}))

	messages := decodeLines(t, &buf)
	require.Len(t, messages, 1)

	ts, err := time.Parse(time.RFC3339, messages[0]["time_extracted"].(string))
	require.NoError(t, err)
	assert.True(t, ts.Equal(extracted))

	record := messages[0]["record"].(map[string]interface{})
	assert.Equal(t, "web", record["ID"])
}

func TestStateMessageWrapsValue(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	value := map[string]interface{}{
		"bookmarks": map[string]interface{}{
			"jobs": map[string]interface{}{"ModifyIndex": 42},
		},
	}
	require.NoError(t, w.State(value))

	messages := decodeLines(t, &buf)
	require.Len(t, messages, 1)

	wrapped := messages[0]["value"].(map[string]interface{})
	bookmarks := wrapped["bookmarks"].(map[string]interface{})
	jobs := bookmarks["jobs"].(map[string]interface{})
	assert.Equal(t, float64(42), jobs["ModifyIndex"])
}
