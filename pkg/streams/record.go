package streams

import (
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-nomad/pkg/catalog"
	"github.com/ajitpratap0/tap-nomad/pkg/taperrors"
)

// conformRecord shapes one raw page element to the declared schema. The
// schema is authoritative over the payload: declared fields missing from the
// payload become null, payload fields absent from the schema are dropped,
// and fields the user catalog deselected are dropped too. A non-object
// element or a null primary key is a malformed record.
func conformRecord(def *catalog.StreamDefinition, excluded map[string]bool, raw gojson.RawMessage) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := gojson.Unmarshal(raw, &payload); err != nil {
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeMalformedRecord, "page element is not a JSON object").
			WithDetail("stream", def.Name)
	}

	record := make(map[string]interface{}, len(def.Schema))
	for _, f := range def.Schema {
		if excluded[f.Name] {
			continue
		}
		value, ok := payload[f.Name]
		if !ok {
			record[f.Name] = nil
			continue
		}
		record[f.Name] = value
	}

	for _, pk := range def.PrimaryKeys {
		if record[pk] == nil {
			return nil, taperrors.Newf(taperrors.ErrorTypeMalformedRecord, "record is missing primary key %q", pk).
				WithDetail("stream", def.Name)
		}
	}

	return record, nil
}
