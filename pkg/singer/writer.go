package singer

import (
	"bufio"
	"io"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Writer serializes protocol messages to an output sink, one JSON object per
// line, in the order they are written. Writes are flushed per message so a
// crash never leaves a partially buffered STATE ahead of its records.
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *gojson.Encoder
	// Now is overridable for deterministic time_extracted in tests
	Now func() time.Time
}

// NewWriter creates a Writer on top of out, typically os.Stdout.
func NewWriter(out io.Writer) *Writer {
	buf := bufio.NewWriter(out)
	return &Writer{
		buf: buf,
		enc: gojson.NewEncoder(buf),
		Now: time.Now,
	}
}

// Schema emits a SCHEMA message for the given stream.
func (w *Writer) Schema(stream string, schema map[string]interface{}, keyProperties, bookmarkProperties []string) error {
	return w.write(&SchemaMessage{
		Type:               TypeSchema,
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

// Record emits a RECORD message stamped with the extraction time in UTC.
func (w *Writer) Record(stream string, record map[string]interface{}) error {
	return w.write(&RecordMessage{
		Type:          TypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.Now().UTC(),
	})
}

// State emits a STATE message carrying the cumulative replication state.
func (w *Writer) State(value interface{}) error {
	return w.write(&StateMessage{
		Type:  TypeState,
		Value: value,
	})
}

func (w *Writer) write(msg interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(msg); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeMalformedRecord, "failed to encode protocol message")
	}
	// Encode appends the newline; flush so the sink sees whole messages
	if err := w.buf.Flush(); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeConnection, "failed to flush output sink")
	}
	return nil
}
