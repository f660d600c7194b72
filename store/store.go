// Package store defines the collection store drivers patchkit reads and patches.
package store

import (
	"context"
	"reflect"

	"github.com/autom8ter/patchkit/util"
	"github.com/tidwall/gjson"
)

// Where is a single field equality lookup. Dotted fields address nested values.
type Where struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Matches reports whether the document's field exists and equals Value once both
// are normalized through json, so 142 matches 142.0
func (w Where) Matches(data []byte) bool {
	result := gjson.GetBytes(data, w.Field)
	if !result.Exists() {
		return false
	}
	return reflect.DeepEqual(util.Normalize(result.Value()), util.Normalize(w.Value))
}

// Entry is a document addressed by collection and id. Data is the document json.
type Entry struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Data       []byte `json:"data"`
}

// Update is a field level merge. Each field replaces the prior value of that key only.
// If TimestampField is set it receives the store's current time in the same write.
type Update struct {
	Fields         map[string]any `json:"fields"`
	TimestampField string         `json:"timestamp_field,omitempty"`
}

// Store is a collection store driver
type Store interface {
	// Find returns every document in the collection whose field equals the where value
	Find(ctx context.Context, collection string, where Where) ([]Entry, error)
	// Get returns a single document or a NotFound error
	Get(ctx context.Context, collection, id string) (Entry, error)
	// Put creates or overwrites a document. An empty id is replaced with a generated one.
	Put(ctx context.Context, entry Entry) (Entry, error)
	// Update merges the fields into an existing document or returns a NotFound error
	Update(ctx context.Context, collection, id string, update Update) error
	// Close releases the connection
	Close() error
}
