// Package catalog defines the discoverable streams of tap-nomad: their field
// schemas, primary keys, replication methods, and API paths. It also
// implements user-driven stream selection and the discover-mode catalog
// document.
package catalog

// ReplicationMethod is the extraction strategy of a stream. The set is
// closed: every stream is either re-extracted in full on each run or synced
// incrementally from a bookmark.
type ReplicationMethod string

const (
	// ReplicationFullTable re-extracts the entire collection each run
	ReplicationFullTable ReplicationMethod = "FULL_TABLE"
	// ReplicationIncremental extracts only rows at or past the bookmark
	ReplicationIncremental ReplicationMethod = "INCREMENTAL"
)

// FieldType represents the data type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeNumber    FieldType = "number"
	FieldTypeBool      FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeObject    FieldType = "object"
)

// Field represents a field in a stream schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// StreamDefinition describes one extractable entity type. Definitions are
// immutable after registry construction.
type StreamDefinition struct {
	// Name uniquely identifies the stream
	Name string
	// Path is the API endpoint the stream reads from
	Path string
	// Schema lists the stream's fields in declaration order; it is
	// authoritative over payloads (extra payload fields are dropped,
	// missing ones become null)
	Schema []Field
	// PrimaryKeys name the fields identifying a row; never empty
	PrimaryKeys []string
	// ReplicationMethod selects the extraction strategy
	ReplicationMethod ReplicationMethod
	// ReplicationKey is the bookmark field; set iff incremental
	ReplicationKey string
}

// FieldNames returns the schema field names in declaration order.
func (d *StreamDefinition) FieldNames() []string {
	names := make([]string, 0, len(d.Schema))
	for _, f := range d.Schema {
		names = append(names, f.Name)
	}
	return names
}

// HasField reports whether the schema declares the given field.
func (d *StreamDefinition) HasField(name string) bool {
	for _, f := range d.Schema {
		if f.Name == name {
			return true
		}
	}
	return false
}

// JSONSchema renders the stream schema as a JSON Schema document for SCHEMA
// messages and discover-mode output.
func (d *StreamDefinition) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Schema))
	for _, f := range d.Schema {
		properties[f.Name] = fieldSchema(f)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
}

func fieldSchema(f Field) map[string]interface{} {
	var jsonType string
	switch f.Type {
	case FieldTypeInteger:
		jsonType = "integer"
	case FieldTypeNumber:
		jsonType = "number"
	case FieldTypeBool:
		jsonType = "boolean"
	case FieldTypeObject:
		jsonType = "object"
	default:
		jsonType = "string"
	}

	schema := map[string]interface{}{}
	if f.Required {
		schema["type"] = jsonType
	} else {
		schema["type"] = []interface{}{jsonType, "null"}
	}
	if f.Type == FieldTypeTimestamp {
		schema["format"] = "date-time"
	}
	return schema
}
