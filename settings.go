package patchkit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/pbxproj"
	"github.com/autom8ter/patchkit/util"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// SettingValue is either a replacement (a scalar or a list of strings) or an append.
//
// An append adds each value to the existing list unless it is already present, and
// collapses entries the list already repeats. When the key is absent the list starts
// as Seed followed by the values. An existing scalar becomes the first element of the
// list.
type SettingValue struct {
	Value  any
	Append bool
	Seed   []string
}

// Replace returns a SettingValue overwriting the key
func Replace(value any) SettingValue {
	return SettingValue{Value: value}
}

// Append returns a SettingValue adding value to the key's list
func Append(value string, seed ...string) SettingValue {
	return SettingValue{Value: value, Append: true, Seed: seed}
}

// SettingsPatch maps build setting keys to new values
type SettingsPatch map[string]SettingValue

// Change describes one build setting that was rewritten
type Change struct {
	Key    string `json:"key"`
	Before string `json:"before"`
	After  string `json:"after"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Key, c.Before, c.After)
}

func (v SettingValue) values() []string {
	switch value := v.Value.(type) {
	case []string:
		return value
	case []any:
		return cast.ToStringSlice(value)
	default:
		return []string{cast.ToString(value)}
	}
}

func (v SettingValue) isList() bool {
	switch v.Value.(type) {
	case []string, []any:
		return true
	}
	return false
}

// render returns a one line form of a settings value for reporting
func render(node pbxproj.Node) string {
	switch node := node.(type) {
	case nil:
		return "<unset>"
	case *pbxproj.String:
		return node.Value()
	case *pbxproj.Array:
		return "(" + strings.Join(node.Values(), ", ") + ")"
	default:
		return "{...}"
	}
}

// ApplySettings applies the patch to the section's buildSettings in key order and
// returns the keys whose value changed. Keys already holding the requested value are
// left untouched. The section is not modified when an error is returned.
func ApplySettings(section *Section, patch SettingsPatch) ([]Change, error) {
	settings := section.Settings()
	if settings == nil {
		return nil, errors.New(errors.NotFound, "%s has no buildSettings", section)
	}
	keys := util.SortedKeys(patch)
	for _, key := range keys {
		if _, isDict := settings.Get(key).(*pbxproj.Dict); isDict {
			return nil, errors.New(errors.Validation, "%s: %s holds a dictionary", section, key)
		}
	}
	var changes []Change
	for _, key := range keys {
		before := settings.Get(key)
		beforeText := render(before)
		var changed bool
		if patch[key].Append {
			changed = appendSetting(settings, key, patch[key])
		} else {
			changed = replaceSetting(settings, key, patch[key])
		}
		if changed {
			changes = append(changes, Change{Key: key, Before: beforeText, After: render(settings.Get(key))})
		}
	}
	return changes, nil
}

func replaceSetting(settings *pbxproj.Dict, key string, value SettingValue) bool {
	current := settings.Get(key)
	if value.isList() {
		want := value.values()
		if arr, ok := current.(*pbxproj.Array); ok && slices.Equal(arr.Values(), want) {
			return false
		}
		settings.Set(key, pbxproj.NewArray(want...))
		return true
	}
	want := cast.ToString(value.Value)
	if s, ok := current.(*pbxproj.String); ok && s.Value() == want {
		return false
	}
	settings.Set(key, pbxproj.NewString(want))
	return true
}

func appendSetting(settings *pbxproj.Dict, key string, value SettingValue) bool {
	add := value.values()
	switch current := settings.Get(key).(type) {
	case *pbxproj.Array:
		changed := current.Dedupe()
		for _, v := range add {
			if !current.Contains(v) {
				current.Append(v)
				changed = true
			}
		}
		return changed
	case *pbxproj.String:
		existing := current.Value()
		list := lo.Uniq(append([]string{existing}, add...))
		if len(list) == 1 {
			return false
		}
		settings.Set(key, pbxproj.NewArray(list...))
		return true
	default:
		list := lo.Uniq(append(append([]string{}, value.Seed...), add...))
		settings.Set(key, pbxproj.NewArray(list...))
		return true
	}
}
