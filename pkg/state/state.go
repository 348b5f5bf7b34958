// Package state models the tap's persisted replication state: one bookmark
// per stream, advanced exactly once per committed batch. The caller owns
// durability; this package only parses, mutates, and re-serializes the
// document.
package state

import (
	"os"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Bookmark is a stream's extraction progress marker, typically
// {replication_key: last_seen_value}.
type Bookmark map[string]interface{}

// ReplicationState maps stream names to bookmarks. The zero document (no
// bookmarks) is the first-run state.
type ReplicationState struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// New returns an empty replication state for a first run.
func New() *ReplicationState {
	return &ReplicationState{Bookmarks: make(map[string]Bookmark)}
}

// LoadFile reads a persisted state document from disk. A missing file is the
// first-run case and yields an empty state; an unreadable or unparsable one
// is state corruption, which is fatal to the whole run since no safe resume
// point exists.
func LoadFile(path string) (*ReplicationState, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeStateCorruption, "failed to read state file").
			WithDetail("path", path)
	}
	return Parse(data)
}

// Parse decodes a state document.
func Parse(data []byte) (*ReplicationState, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var st ReplicationState
	if err := gojson.Unmarshal(data, &st); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeStateCorruption, "failed to parse state document")
	}
	if st.Bookmarks == nil {
		st.Bookmarks = make(map[string]Bookmark)
	}
	return &st, nil
}

// Bookmark returns the bookmark for a stream, or nil if none is committed.
func (s *ReplicationState) Bookmark(stream string) Bookmark {
	return s.Bookmarks[stream]
}

// SetBookmark replaces a stream's bookmark. Streams run one at a time, so a
// single-writer discipline holds without locking.
func (s *ReplicationState) SetBookmark(stream string, bm Bookmark) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]Bookmark)
	}
	s.Bookmarks[stream] = bm
}

// ReplicationValue returns the committed replication-key value for a stream
// as an unsigned index, with ok=false when no bookmark value exists. JSON
// round-trips turn numbers into float64 and occasionally strings, so both
// encodings are accepted.
func (s *ReplicationState) ReplicationValue(stream, key string) (uint64, bool) {
	bm, ok := s.Bookmarks[stream]
	if !ok {
		return 0, false
	}
	raw, ok := bm[key]
	if !ok {
		return 0, false
	}
	return CoerceIndex(raw)
}

// CoerceIndex converts a decoded JSON value to an unsigned replication
// index.
func CoerceIndex(raw interface{}) (uint64, bool) {
	switch v := raw.(type) {
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case gojson.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
