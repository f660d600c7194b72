package patchkit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/util"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed plan.schema.json
var planSchema string

var planSchemaLoader = gojsonschema.NewStringLoader(planSchema)

// Plan is a list of patch steps read from a YAML or JSON file
type Plan struct {
	Records  []RecordPlan   `json:"records,omitempty" validate:"dive"`
	Settings []SettingsPlan `json:"settings,omitempty" validate:"dive"`
}

// Steps returns the number of steps in the plan
func (p *Plan) Steps() int {
	return len(p.Records) + len(p.Settings)
}

// LoadPlan parses and validates a YAML or JSON plan
func LoadPlan(content []byte) (*Plan, error) {
	jsonContent, err := util.YAMLToJSON(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "plan is not valid yaml or json")
	}
	result, err := gojsonschema.Validate(planSchemaLoader, gojsonschema.NewBytesLoader(jsonContent))
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to validate plan")
	}
	if !result.Valid() {
		var errs []string
		for _, err := range result.Errors() {
			errs = append(errs, err.String())
		}
		return nil, errors.New(errors.Validation, "invalid plan: %s", strings.Join(errs, ", "))
	}
	var raw map[string]any
	if err := json.Unmarshal(jsonContent, &raw); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "")
	}
	plan := &Plan{}
	if err := util.Decode(raw, plan); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to decode plan")
	}
	if err := util.ValidateStruct(plan); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid plan")
	}
	for _, step := range plan.Records {
		if err := step.validate(); err != nil {
			return nil, err
		}
	}
	for _, step := range plan.Settings {
		if err := step.validate(); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// LoadPlanFile reads a plan from disk. Relative settings files are resolved against
// the plan's directory.
func LoadPlanFile(path string) (*Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Setup, "failed to read plan")
	}
	plan, err := LoadPlan(content)
	if err != nil {
		return nil, errors.Wrap(err, 0, "plan %s", path)
	}
	dir := filepath.Dir(path)
	for i, step := range plan.Settings {
		if !filepath.IsAbs(step.File) {
			plan.Settings[i].File = filepath.Join(dir, step.File)
		}
	}
	return plan, nil
}
