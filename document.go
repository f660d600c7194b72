package patchkit

import (
	"encoding/json"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/util"
	jsonpatch "github.com/evanphx/json-patch"
	flat2 "github.com/nqd/flat"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is a JSON document
type Document struct {
	result gjson.Result
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (d *Document) UnmarshalJSON(bytes []byte) error {
	doc, err := NewDocumentFromBytes(bytes)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// MarshalJSON satisfies the json Marshaler interface
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// NewDocument creates a new json document
func NewDocument() *Document {
	parsed := gjson.Parse("{}")
	return &Document{
		result: parsed,
	}
}

// NewDocumentFromBytes creates a new document from the given json bytes
func NewDocumentFromBytes(json []byte) (*Document, error) {
	if !gjson.ValidBytes(json) {
		return nil, errors.New(errors.Validation, "invalid json: %s", string(json))
	}
	d := &Document{
		result: gjson.ParseBytes(json),
	}
	if !d.Valid() {
		return nil, errors.New(errors.Validation, "invalid document")
	}
	return d, nil
}

// NewDocumentFrom creates a new document from the given value - the value must be json compatible
func NewDocumentFrom(value any) (*Document, error) {
	bits, err := json.Marshal(value)
	if err != nil {
		return nil, errors.New(errors.Validation, "failed to json encode value: %#v", value)
	}
	return NewDocumentFromBytes(bits)
}

// Valid returns whether the document is a json object
func (d *Document) Valid() bool {
	return gjson.ValidBytes(d.Bytes()) && d.result.IsObject()
}

// String returns the document as a json string
func (d *Document) String() string {
	return d.result.Raw
}

// Bytes returns the document as json bytes
func (d *Document) Bytes() []byte {
	return []byte(d.result.Raw)
}

// Value returns the document as a map
func (d *Document) Value() map[string]any {
	return cast.ToStringMap(d.result.Value())
}

// Clone allocates a new document with identical values
func (d *Document) Clone() *Document {
	raw := d.result.Raw
	return &Document{result: gjson.Parse(raw)}
}

// Get gets a field on the document. Get has GJSON syntax support and supports dot notation
func (d *Document) Get(field string) any {
	return d.result.Get(field).Value()
}

// Exists reports whether the field is present
func (d *Document) Exists(field string) bool {
	return d.result.Get(field).Exists()
}

// GetString gets a string field value on the document. Get has GJSON syntax support and supports dot notation
func (d *Document) GetString(field string) string {
	return d.result.Get(field).String()
}

// Set sets a field on the document. Dot notation is supported.
func (d *Document) Set(field string, val any) error {
	return d.SetAll(map[string]any{
		field: val,
	})
}

// SetAll sets all fields on the document in key order. Dot notation is supported.
func (d *Document) SetAll(values map[string]any) error {
	for _, k := range util.SortedKeys(values) {
		result, err := sjson.Set(d.result.Raw, k, values[k])
		if err != nil {
			return err
		}
		if !gjson.Valid(result) {
			return errors.New(errors.Validation, "invalid document")
		}
		d.result = gjson.Parse(result)
	}
	return nil
}

// Flatten returns the document's leaf values keyed by dotted path
func (d *Document) Flatten() (map[string]any, error) {
	return flat2.Flatten(d.Value(), nil)
}

// MergePatch returns the RFC 7386 merge patch that turns before into d
func (d *Document) MergePatch(before *Document) (*Document, error) {
	if before == nil {
		before = NewDocument()
	}
	patch, err := jsonpatch.CreateMergePatch(before.Bytes(), d.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to compute merge patch")
	}
	return NewDocumentFromBytes(patch)
}
