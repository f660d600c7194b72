package patchkit

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/pbxproj"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/util"
	"github.com/samber/lo"
	"github.com/segmentio/ksuid"
)

const (
	// KindRecords labels reports produced by PatchRecords
	KindRecords = "records"
	// KindSettings labels reports produced by PatchSettings
	KindSettings = "settings"
)

// RecordPlan patches every record in Collection matching Where
type RecordPlan struct {
	Collection string         `json:"collection" validate:"required"`
	Where      Where          `json:"where"`
	Set        map[string]any `json:"set" validate:"required,min=1"`
	// Timestamp names a field set to the store's current time on every application
	Timestamp string `json:"timestamp,omitempty"`
}

func (p RecordPlan) validate() error {
	if err := util.ValidateStruct(p); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid record plan")
	}
	if p.Where.Field == "" {
		return errors.New(errors.Validation, "invalid record plan: where.field is required")
	}
	return nil
}

// SectionMatch selects build configurations by exact string equality
type SectionMatch struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// AppendPlan adds Values to a list setting. Seed starts the list when the key is absent.
type AppendPlan struct {
	Values []string `json:"values" validate:"required,min=1"`
	Seed   []string `json:"seed,omitempty"`
}

// SettingsPlan patches the build settings of the matching sections of a project file
type SettingsPlan struct {
	File    string                `json:"file"`
	Section SectionMatch          `json:"section"`
	Targets []string              `json:"targets,omitempty"`
	Set     map[string]any        `json:"set,omitempty"`
	Append  map[string]AppendPlan `json:"append,omitempty" validate:"dive"`
}

func (p SettingsPlan) validate() error {
	if err := util.ValidateStruct(p); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid settings plan")
	}
	if len(p.Set) == 0 && len(p.Append) == 0 {
		return errors.New(errors.Validation, "invalid settings plan: set or append is required")
	}
	if both := lo.Intersect(lo.Keys(p.Set), lo.Keys(p.Append)); len(both) > 0 {
		return errors.New(errors.Validation, "invalid settings plan: %v both set and appended", both)
	}
	return nil
}

// Patch returns the SettingsPatch the plan describes
func (p SettingsPlan) Patch() SettingsPatch {
	patch := SettingsPatch{}
	for k, v := range p.Set {
		patch[k] = Replace(v)
	}
	for k, v := range p.Append {
		patch[k] = SettingValue{Value: v.Values, Append: true, Seed: v.Seed}
	}
	return patch
}

// reparse checks a serialized project file before it replaces the original
var reparse = pbxproj.Parse

// StoreOpener acquires the collection store used by record steps
type StoreOpener func(ctx context.Context) (store.Store, error)

// Option configures a Runner
type Option func(r *Runner)

// WithLogger sets the structured logger
func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPrinter sets the printer outcomes are written to
func WithPrinter(printer *Printer) Option {
	return func(r *Runner) {
		r.printer = printer
	}
}

// WithDryRun computes every patch without writing anything
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// Runner locates targets, patches them one at a time and reports each outcome.
// Failures on individual targets are reported, never returned.
type Runner struct {
	logger  Logger
	printer *Printer
	dryRun  bool
}

// NewRunner returns a Runner printing to stdout
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:  NopLogger(),
		printer: NewPrinter(os.Stdout, ColorAuto),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) start(ctx context.Context, kind, lookup string) (context.Context, *Report) {
	runID := ksuid.New().String()
	ctx = WithRunID(ctx, runID)
	r.logger.Info(ctx, "starting patch run", map[string]any{
		"kind":    kind,
		"lookup":  lookup,
		"dry_run": r.dryRun,
	})
	return ctx, &Report{RunID: runID, Kind: kind, Lookup: lookup}
}

func (r *Runner) record(ctx context.Context, report *Report, outcome Outcome) {
	report.Outcomes = append(report.Outcomes, outcome)
	r.printer.Outcome(outcome)
	tags := map[string]any{
		"target":  outcome.Target,
		"status":  outcome.Status,
		"changes": outcome.Changes,
	}
	if outcome.Patch != nil {
		fields, err := outcome.Patch.Flatten()
		if err != nil {
			r.logger.Warn(ctx, "failed to flatten patch", map[string]any{"target": outcome.Target, "error": err.Error()})
		}
		for field, value := range fields {
			tags["patch."+field] = value
		}
	}
	if outcome.Err != nil {
		r.logger.Error(ctx, "patch failed", outcome.Err, tags)
		return
	}
	r.logger.Debug(ctx, "patched target", tags)
}

func (r *Runner) finish(ctx context.Context, report *Report) {
	r.printer.Summary(report)
	r.logger.Info(ctx, "finished patch run", map[string]any{
		"targets": report.Targets(),
		"applied": report.Count(StatusApplied),
		"failed":  report.Count(StatusFailed),
		"planned": report.Count(StatusPlanned),
		"written": report.Written,
	})
}

// PatchRecords applies the plan to every matching record in s. The returned error is
// set only when the records could not be located at all.
func (r *Runner) PatchRecords(ctx context.Context, s store.Store, plan RecordPlan) (*Report, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	ctx, report := r.start(ctx, KindRecords, describeLookup(plan.Collection, plan.Where))
	records, err := NewLocator(s, r.logger).Find(ctx, plan.Collection, plan.Where)
	if err != nil {
		r.logger.Error(ctx, "failed to locate records", err, nil)
		return report, err
	}
	if len(records) == 0 {
		r.printer.NoTargets(report.Lookup)
		r.finish(ctx, report)
		return report, nil
	}
	r.printer.Found(report.Lookup, len(records))
	patcher := NewPatcher(s, r.logger, r.dryRun)
	patch := Patch{Set: plan.Set, Timestamp: plan.Timestamp}
	for _, record := range records {
		r.record(ctx, report, patcher.Apply(ctx, record, patch))
	}
	r.finish(ctx, report)
	return report, nil
}

// PatchSettings applies the plan to the project file at path and rewrites the whole file
// once every selected section is patched. The file is never written when the result
// fails to parse back.
func (r *Runner) PatchSettings(ctx context.Context, path string, plan SettingsPlan) (*Report, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	lookup := fmt.Sprintf("%s sections where %s == %q", path, plan.Section.Field, plan.Section.Value)
	if len(plan.Targets) > 0 {
		lookup += fmt.Sprintf(" owned by %v", plan.Targets)
	}
	ctx, report := r.start(ctx, KindSettings, lookup)
	info, err := os.Stat(path)
	if err != nil {
		return report, errors.Wrap(err, errors.Setup, "failed to stat project file")
	}
	original, err := os.ReadFile(path)
	if err != nil {
		return report, errors.Wrap(err, errors.Setup, "failed to read project file")
	}
	doc, err := pbxproj.Parse(original)
	if err != nil {
		return report, errors.Wrap(err, errors.Setup, "malformed project file %s", path)
	}
	sections := SelectOwned(doc, plan.Section.Field, plan.Section.Value, plan.Targets)
	if len(sections) == 0 {
		r.printer.NoTargets(report.Lookup)
		r.finish(ctx, report)
		return report, nil
	}
	r.printer.Found(report.Lookup, len(sections))
	patch := plan.Patch()
	for _, section := range sections {
		outcome := Outcome{Target: section.String(), Status: StatusApplied}
		changes, err := ApplySettings(section, patch)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
		} else {
			outcome.Changes = lo.Map(changes, func(c Change, _ int) string { return c.Key })
			if r.dryRun {
				outcome.Status = StatusPlanned
			}
		}
		r.record(ctx, report, outcome)
	}
	patched := doc.Bytes()
	if _, err := reparse(patched); err != nil {
		err = errors.Wrap(err, errors.Serialization, "patched project file %s does not parse, leaving it untouched", path)
		r.logger.Error(ctx, "refusing to write project file", err, nil)
		return report, err
	}
	switch {
	case r.dryRun:
		r.printer.Diff(path, string(original), string(patched))
	case bytes.Equal(original, patched):
		r.logger.Debug(ctx, "project file unchanged", map[string]any{"path": path})
	default:
		if err := os.WriteFile(path, patched, info.Mode().Perm()); err != nil {
			return report, errors.Wrap(err, errors.Serialization, "failed to write project file %s", path)
		}
		report.Written = true
	}
	r.finish(ctx, report)
	return report, nil
}

// Run executes every step of the plan in order: record steps, then settings steps.
// The store is opened once, only when the plan has record steps, and closed on return.
func (r *Runner) Run(ctx context.Context, plan *Plan, opener StoreOpener) ([]*Report, error) {
	var reports []*Report
	if len(plan.Records) > 0 {
		if opener == nil {
			return nil, errors.New(errors.Setup, "plan has record steps but no store is configured")
		}
		s, err := opener(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.Setup, "failed to open store")
		}
		defer func() {
			if err := s.Close(); err != nil {
				r.logger.Warn(ctx, "failed to close store", map[string]any{"error": err.Error()})
			}
		}()
		for _, step := range plan.Records {
			report, err := r.PatchRecords(ctx, s, step)
			if report != nil {
				reports = append(reports, report)
			}
			if err != nil {
				return reports, err
			}
		}
	}
	for _, step := range plan.Settings {
		report, err := r.PatchSettings(ctx, step.File, step)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}
