package patchkit

import (
	"github.com/autom8ter/patchkit/pbxproj"
	"github.com/samber/lo"
)

const (
	isaBuildConfiguration = "XCBuildConfiguration"
	isaConfigurationList  = "XCConfigurationList"
	isaProject            = "PBXProject"
	// ProjectOwner is the owner of project level build configurations
	ProjectOwner = "project"
)

var targetISAs = []string{"PBXNativeTarget", "PBXAggregateTarget", "PBXLegacyTarget"}

// Section is a build configuration inside a project file
type Section struct {
	// ID is the object id of the configuration
	ID string
	// Name is the configuration name, e.g. Debug
	Name string
	// Owner is the target name, or ProjectOwner for project level configurations
	Owner  string
	object *pbxproj.Dict
}

// String returns "owner - name"
func (s *Section) String() string {
	return s.Owner + " - " + s.Name
}

// Settings returns the section's buildSettings dictionary or nil
func (s *Section) Settings() *pbxproj.Dict {
	return s.object.GetDict("buildSettings")
}

// Select returns the build configurations whose field equals value, in document order
func Select(doc *pbxproj.Document, field, value string) []*Section {
	return SelectOwned(doc, field, value, nil)
}

// SelectOwned is Select restricted to configurations owned by the named targets.
// An empty target list selects every owner.
func SelectOwned(doc *pbxproj.Document, field, value string, targets []string) []*Section {
	objects := doc.Objects()
	if objects == nil {
		return nil
	}
	owners := configurationOwners(objects)
	var sections []*Section
	for _, entry := range objects.Entries() {
		object, ok := entry.Value().(*pbxproj.Dict)
		if !ok {
			continue
		}
		if isa, _ := object.GetString("isa"); isa != isaBuildConfiguration {
			continue
		}
		if got, ok := object.GetString(field); !ok || got != value {
			continue
		}
		section := &Section{
			ID:     entry.Key(),
			Owner:  owners[entry.Key()],
			object: object,
		}
		section.Name, _ = object.GetString("name")
		if len(targets) > 0 && !lo.Contains(targets, section.Owner) {
			continue
		}
		sections = append(sections, section)
	}
	return sections
}

// configurationOwners maps build configuration ids to the target (or project) whose
// configuration list holds them
func configurationOwners(objects *pbxproj.Dict) map[string]string {
	var (
		listOwners = map[string]string{}
		owners     = map[string]string{}
	)
	for _, entry := range objects.Entries() {
		object, ok := entry.Value().(*pbxproj.Dict)
		if !ok {
			continue
		}
		isa, _ := object.GetString("isa")
		list, ok := object.GetString("buildConfigurationList")
		if !ok {
			continue
		}
		switch {
		case isa == isaProject:
			listOwners[list] = ProjectOwner
		case lo.Contains(targetISAs, isa):
			name, _ := object.GetString("name")
			listOwners[list] = name
		}
	}
	for _, entry := range objects.Entries() {
		object, ok := entry.Value().(*pbxproj.Dict)
		if !ok {
			continue
		}
		if isa, _ := object.GetString("isa"); isa != isaConfigurationList {
			continue
		}
		configs := object.GetArray("buildConfigurations")
		if configs == nil {
			continue
		}
		for _, id := range configs.Values() {
			owners[id] = listOwners[entry.Key()]
		}
	}
	return owners
}
