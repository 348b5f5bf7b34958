// Package singer implements the tap's line-oriented output protocol.
//
// Three message kinds are emitted on stdout, one JSON object per line:
//
//	SCHEMA{stream, schema, key_properties}  once per stream, before records
//	RECORD{stream, record, time_extracted}  one per extracted row
//	STATE{value}                            after each committed batch
//
// STATE is cumulative and idempotent: a later STATE message supersedes an
// earlier one for the same stream key.
package singer

import (
	"time"
)

// MessageType identifies the protocol message kind.
type MessageType string

const (
	// TypeSchema declares a stream's schema before its first record
	TypeSchema MessageType = "SCHEMA"
	// TypeRecord carries one extracted row
	TypeRecord MessageType = "RECORD"
	// TypeState carries the cumulative replication state
	TypeState MessageType = "STATE"
)

// SchemaMessage declares a stream's field schema and primary keys.
type SchemaMessage struct {
	Type               MessageType            `json:"type"`
	Stream             string                 `json:"stream"`
	Schema             map[string]interface{} `json:"schema"`
	KeyProperties      []string               `json:"key_properties"`
	BookmarkProperties []string               `json:"bookmark_properties,omitempty"`
}

// RecordMessage carries one schema-conformant row.
type RecordMessage struct {
	Type          MessageType            `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted time.Time              `json:"time_extracted"`
}

// StateMessage carries the replication state document.
type StateMessage struct {
	Type  MessageType `json:"type"`
	Value interface{} `json:"value"`
}
