package catalog

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// Entry wraps a stream definition rendering with a user-facing selection
// flag and optional field-level inclusion overrides. Entries are constructed
// at discovery time and mutated only by user-supplied catalog input before a
// run starts, never during one.
type Entry struct {
	Stream            string                 `json:"stream"`
	Path              string                 `json:"path,omitempty"`
	Schema            map[string]interface{} `json:"schema,omitempty"`
	KeyProperties     []string               `json:"key_properties,omitempty"`
	ReplicationMethod ReplicationMethod      `json:"replication_method,omitempty"`
	ReplicationKey    string                 `json:"replication_key,omitempty"`
	Selected          bool                   `json:"selected"`
	// Fields lets a user exclude individual fields from output by mapping
	// the field name to false. Primary key fields and the replication key
	// are always emitted regardless of overrides.
	Fields map[string]bool `json:"fields,omitempty"`
}

// Catalog is the discoverable stream set together with selection metadata.
type Catalog struct {
	Streams []Entry `json:"streams"`
}

// Discover renders the full catalog from the registry. All streams are
// marked selected; a user catalog narrows the set from there.
func Discover(r *Registry) *Catalog {
	defs := r.Definitions()
	c := &Catalog{Streams: make([]Entry, 0, len(defs))}
	for _, def := range defs {
		c.Streams = append(c.Streams, Entry{
			Stream:            def.Name,
			Path:              def.Path,
			Schema:            def.JSONSchema(),
			KeyProperties:     def.PrimaryKeys,
			ReplicationMethod: def.ReplicationMethod,
			ReplicationKey:    def.ReplicationKey,
			Selected:          true,
		})
	}
	return c
}

// LoadFile reads a user-supplied catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the CLI flag
	if err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read catalog file").
			WithDetail("path", path)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := gojson.Unmarshal(data, &c); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to parse catalog document")
	}
	return &c, nil
}

// Entry returns the user entry for the named stream, or nil.
func (c *Catalog) Entry(stream string) *Entry {
	for i := range c.Streams {
		if c.Streams[i].Stream == stream {
			return &c.Streams[i]
		}
	}
	return nil
}

// Selection is one stream the user catalog kept, together with the entry's
// field overrides resolved against the definition.
type Selection struct {
	Def *StreamDefinition
	// Excluded names the schema fields dropped from output. Primary key
	// fields and the replication key are never in this set.
	Excluded map[string]bool
}

// JSONSchema renders the definition's schema with the excluded fields
// removed, so SCHEMA messages declare exactly what RECORD messages carry.
func (s *Selection) JSONSchema() map[string]interface{} {
	schema := s.Def.JSONSchema()
	if len(s.Excluded) == 0 {
		return schema
	}
	properties := schema["properties"].(map[string]interface{})
	for name := range s.Excluded {
		delete(properties, name)
	}
	return schema
}

// exclusions resolves the entry's field overrides against the definition.
// Only declared fields can be dropped; key fields and the replication key
// stay even when the override says otherwise.
func (e *Entry) exclusions(def *StreamDefinition) map[string]bool {
	var excluded map[string]bool
	for name, included := range e.Fields {
		if included || !def.HasField(name) {
			continue
		}
		if name == def.ReplicationKey {
			continue
		}
		keyField := false
		for _, pk := range def.PrimaryKeys {
			if name == pk {
				keyField = true
				break
			}
		}
		if keyField {
			continue
		}
		if excluded == nil {
			excluded = make(map[string]bool)
		}
		excluded[name] = true
	}
	return excluded
}

// Select filters the registry's streams down to the ones the user catalog
// marks selected. Matching is by stream name. The output keeps the
// registry's fixed discovery order regardless of user catalog ordering, so
// run-to-run execution order is reproducible and a partial failure always
// hits a known prefix of streams.
//
// Selected entries naming streams the registry does not know are returned
// in unknown, in user catalog order, so the caller can surface the mismatch
// instead of quietly running a smaller set.
//
// A nil user catalog selects every stream (the tap's default mode of
// operation when no catalog file is supplied).
func Select(r *Registry, user *Catalog) (selected []*Selection, unknown []string) {
	defs := r.Definitions()
	if user == nil {
		selected = make([]*Selection, 0, len(defs))
		for _, def := range defs {
			selected = append(selected, &Selection{Def: def})
		}
		return selected, nil
	}

	selected = make([]*Selection, 0, len(defs))
	for _, def := range defs {
		entry := user.Entry(def.Name)
		if entry == nil || !entry.Selected {
			continue
		}
		selected = append(selected, &Selection{Def: def, Excluded: entry.exclusions(def)})
	}

	for _, entry := range user.Streams {
		if !entry.Selected {
			continue
		}
		if _, err := r.Definition(entry.Stream); err != nil {
			unknown = append(unknown, entry.Stream)
		}
	}
	return selected, unknown
}
