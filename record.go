// Package patchkit applies declarative field patches to records in collection stores and
// to build settings in Xcode project files.
package patchkit

import (
	"context"
	"fmt"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/util"
)

// Where is a single field equality lookup
type Where = store.Where

// Record is a document located in a collection store
type Record struct {
	Collection string
	ID         string
	Document   *Document
}

// Path returns collection/id
func (r *Record) Path() string {
	return r.Collection + "/" + r.ID
}

// Patch replaces the listed fields. Applying the same Patch twice leaves the record
// unchanged, except for Timestamp: that field receives the store's current time on
// every application.
type Patch struct {
	Set       map[string]any `json:"set" validate:"required,min=1"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Locator finds the records a patch targets
type Locator struct {
	store  store.Store
	logger Logger
}

// NewLocator returns a Locator reading from s
func NewLocator(s store.Store, logger Logger) *Locator {
	if logger == nil {
		logger = NopLogger()
	}
	return &Locator{store: s, logger: logger}
}

// Find returns every record in the collection whose field equals where.Value.
// No match is an empty result, not an error.
func (l *Locator) Find(ctx context.Context, collection string, where Where) ([]*Record, error) {
	entries, err := l.store.Find(ctx, collection, where)
	if err != nil {
		return nil, errors.Wrap(err, errors.Setup, "failed to locate %s", describeLookup(collection, where))
	}
	var records []*Record
	for _, entry := range entries {
		doc, err := NewDocumentFromBytes(entry.Data)
		if err != nil {
			l.logger.Warn(ctx, "skipping record that is not a json object", map[string]any{
				"collection": entry.Collection,
				"id":         entry.ID,
			})
			continue
		}
		records = append(records, &Record{Collection: collection, ID: entry.ID, Document: doc})
	}
	l.logger.Debug(ctx, "located records", map[string]any{
		"collection": collection,
		"field":      where.Field,
		"count":      len(records),
	})
	return records, nil
}

func describeLookup(collection string, where Where) string {
	return fmt.Sprintf("%s where %s == %#v", collection, where.Field, where.Value)
}

// Patcher writes patches to located records
type Patcher struct {
	store  store.Store
	logger Logger
	dryRun bool
}

// NewPatcher returns a Patcher writing to s. A dry run patcher never writes.
func NewPatcher(s store.Store, logger Logger, dryRun bool) *Patcher {
	if logger == nil {
		logger = NopLogger()
	}
	return &Patcher{store: s, logger: logger, dryRun: dryRun}
}

// Apply writes the patch to a single record. Failures are reported on the Outcome so
// the caller can move on to the next record.
func (p *Patcher) Apply(ctx context.Context, record *Record, patch Patch) Outcome {
	outcome := Outcome{
		Target:  record.Path(),
		Changes: patchFields(patch),
	}
	preview := record.Document.Clone()
	if err := preview.SetAll(patch.Set); err != nil {
		outcome.Status = StatusFailed
		outcome.Err = errors.Wrap(err, errors.Validation, "patch cannot be applied to %s", record.Path())
		return outcome
	}
	mergePatch, err := preview.MergePatch(record.Document)
	if err != nil {
		p.logger.Warn(ctx, "failed to compute merge patch", map[string]any{
			"target": record.Path(),
			"error":  err.Error(),
		})
	}
	outcome.Patch = mergePatch
	if p.dryRun {
		outcome.Status = StatusPlanned
		return outcome
	}
	err = p.store.Update(ctx, record.Collection, record.ID, store.Update{
		Fields:         patch.Set,
		TimestampField: patch.Timestamp,
	})
	switch {
	case err == nil:
		outcome.Status = StatusApplied
	case errors.Is(err, errors.NotFound):
		outcome.Status = StatusFailed
		outcome.Err = err
	default:
		outcome.Status = StatusFailed
		outcome.Err = errors.Wrap(err, errors.WriteRejected, "")
	}
	return outcome
}

func patchFields(patch Patch) []string {
	fields := util.SortedKeys(patch.Set)
	if patch.Timestamp != "" {
		fields = append(fields, patch.Timestamp)
	}
	return fields
}
