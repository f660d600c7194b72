package patchkit_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/autom8ter/patchkit"
	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/pbxproj"
	"github.com/autom8ter/patchkit/testutil"
	"github.com/stretchr/testify/assert"
)

func selectOne(t *testing.T, doc *pbxproj.Document, name string, targets ...string) *patchkit.Section {
	t.Helper()
	sections := patchkit.SelectOwned(doc, "name", name, targets)
	if len(sections) != 1 {
		t.Fatalf("expected one %s section, got %d", name, len(sections))
	}
	return sections[0]
}

func TestApplySettings(t *testing.T) {
	t.Run("append to existing list", func(t *testing.T) {
		doc := parseProject(t, testutil.TwoSectionProject)
		changes, err := patchkit.ApplySettings(selectOne(t, doc, "Debug"), patchkit.SettingsPatch{
			"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("GRPC_ARES=0"),
		})
		assert.Nil(t, err)
		assert.Equal(t, []patchkit.Change{{
			Key:    "GCC_PREPROCESSOR_DEFINITIONS",
			Before: "($(inherited))",
			After:  "($(inherited), GRPC_ARES=0)",
		}}, changes)
		expected := strings.Replace(testutil.TwoSectionProject,
			"\t\t\t\t\t\"$(inherited)\",\n",
			"\t\t\t\t\t\"$(inherited)\",\n\t\t\t\t\t\"GRPC_ARES=0\",\n", 1)
		assert.Equal(t, expected, string(doc.Bytes()))
	})
	t.Run("append is deduplicated", func(t *testing.T) {
		doc := parseProject(t, testutil.ProjectFile)
		section := selectOne(t, doc, "Debug", patchkit.ProjectOwner)
		patch := patchkit.SettingsPatch{"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("GRPC_ARES=0")}
		changes, err := patchkit.ApplySettings(section, patch)
		assert.Nil(t, err)
		assert.Len(t, changes, 1)
		once := string(doc.Bytes())

		changes, err = patchkit.ApplySettings(section, patch)
		assert.Nil(t, err)
		assert.Empty(t, changes)
		assert.Equal(t, once, string(doc.Bytes()))
		assert.Equal(t, []string{"DEBUG=1", "$(inherited)", "GRPC_ARES=0"}, section.Settings().GetArray("GCC_PREPROCESSOR_DEFINITIONS").Values())

		changes, err = patchkit.ApplySettings(section, patchkit.SettingsPatch{"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("DEBUG=1")})
		assert.Nil(t, err)
		assert.Empty(t, changes)
	})
	t.Run("append collapses repeated entries", func(t *testing.T) {
		repeated := strings.Replace(testutil.TwoSectionProject,
			"\t\t\t\t\t\"$(inherited)\",\n",
			"\t\t\t\t\t\"$(inherited)\",\n\t\t\t\t\t\"FOO=1\",\n\t\t\t\t\t\"FOO=1\",\n", 1)
		doc := parseProject(t, repeated)
		section := selectOne(t, doc, "Debug")
		changes, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("GRPC_ARES=0"),
		})
		assert.Nil(t, err)
		assert.Len(t, changes, 1)
		assert.Equal(t, []string{"$(inherited)", "FOO=1", "GRPC_ARES=0"}, section.Settings().GetArray("GCC_PREPROCESSOR_DEFINITIONS").Values())
		expected := strings.Replace(testutil.TwoSectionProject,
			"\t\t\t\t\t\"$(inherited)\",\n",
			"\t\t\t\t\t\"$(inherited)\",\n\t\t\t\t\t\"FOO=1\",\n\t\t\t\t\t\"GRPC_ARES=0\",\n", 1)
		assert.Equal(t, expected, string(doc.Bytes()))

		// a value already present still collapses the repeats
		doc = parseProject(t, repeated)
		section = selectOne(t, doc, "Debug")
		changes, err = patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("FOO=1"),
		})
		assert.Nil(t, err)
		if assert.Len(t, changes, 1) {
			assert.Equal(t, "($(inherited), FOO=1, FOO=1)", changes[0].Before)
			assert.Equal(t, "($(inherited), FOO=1)", changes[0].After)
		}
	})
	t.Run("append several values", func(t *testing.T) {
		doc := parseProject(t, testutil.ProjectFile)
		section := selectOne(t, doc, "Debug", patchkit.ProjectOwner)
		_, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"GCC_PREPROCESSOR_DEFINITIONS": {Value: []string{"A=1", "DEBUG=1", "B=2"}, Append: true},
		})
		assert.Nil(t, err)
		assert.Equal(t, []string{"DEBUG=1", "$(inherited)", "A=1", "B=2"}, section.Settings().GetArray("GCC_PREPROCESSOR_DEFINITIONS").Values())
	})
	t.Run("append to absent key with seed", func(t *testing.T) {
		doc := parseProject(t, testutil.ProjectFile)
		section := selectOne(t, doc, "Debug", "Runner")
		changes, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("GRPC_ARES=0", "$(inherited)"),
		})
		assert.Nil(t, err)
		if assert.Len(t, changes, 1) {
			assert.Equal(t, "<unset>", changes[0].Before)
		}
		settings := section.Settings()
		assert.Equal(t, []string{"$(inherited)", "GRPC_ARES=0"}, settings.GetArray("GCC_PREPROCESSOR_DEFINITIONS").Values())
		assert.True(t, sort.StringsAreSorted(settings.Keys()))
		assert.Contains(t, string(doc.Bytes()), "\t\t\t\tGCC_PREPROCESSOR_DEFINITIONS = (\n\t\t\t\t\t\"$(inherited)\",\n\t\t\t\t\t\"GRPC_ARES=0\",\n\t\t\t\t);\n")

		reparsed, err := pbxproj.Parse(doc.Bytes())
		assert.Nil(t, err)
		assert.Equal(t, doc.Bytes(), reparsed.Bytes())
	})
	t.Run("append to absent key without seed", func(t *testing.T) {
		doc := parseProject(t, testutil.TwoSectionProject)
		section := selectOne(t, doc, "Release")
		_, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{"OTHER_LDFLAGS": patchkit.Append("-ObjC")})
		assert.Nil(t, err)
		assert.Equal(t, []string{"-ObjC"}, section.Settings().GetArray("OTHER_LDFLAGS").Values())
	})
	t.Run("append promotes a scalar", func(t *testing.T) {
		doc := parseProject(t, testutil.TwoSectionProject)
		section := selectOne(t, doc, "Release")
		changes, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{"SDKROOT": patchkit.Append("iphoneos")})
		assert.Nil(t, err)
		assert.Empty(t, changes)

		_, err = patchkit.ApplySettings(section, patchkit.SettingsPatch{"SDKROOT": patchkit.Append("macosx")})
		assert.Nil(t, err)
		assert.Equal(t, []string{"iphoneos", "macosx"}, section.Settings().GetArray("SDKROOT").Values())
	})
	t.Run("replace", func(t *testing.T) {
		doc := parseProject(t, testutil.ProjectFile)
		section := selectOne(t, doc, "Debug", patchkit.ProjectOwner)
		changes, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"ONLY_ACTIVE_ARCH":         patchkit.Replace("NO"),
			"SDKROOT":                  patchkit.Replace("iphoneos"),
			"GCC_OPTIMIZATION_LEVEL":   patchkit.Replace(2),
			"CLANG_ENABLE_MODULES":     patchkit.Replace(false),
			"VALID_ARCHS":              patchkit.Replace([]string{"arm64", "x86_64"}),
			"DEBUG_INFORMATION_FORMAT": patchkit.Replace("dwarf"),
		})
		assert.Nil(t, err)
		var keys []string
		for _, c := range changes {
			keys = append(keys, c.Key)
		}
		assert.Equal(t, []string{"CLANG_ENABLE_MODULES", "DEBUG_INFORMATION_FORMAT", "GCC_OPTIMIZATION_LEVEL", "ONLY_ACTIVE_ARCH", "VALID_ARCHS"}, keys)
		settings := section.Settings()
		v, _ := settings.GetString("ONLY_ACTIVE_ARCH")
		assert.Equal(t, "NO", v)
		v, _ = settings.GetString("GCC_OPTIMIZATION_LEVEL")
		assert.Equal(t, "2", v)
		v, _ = settings.GetString("CLANG_ENABLE_MODULES")
		assert.Equal(t, "false", v)
		assert.Equal(t, []string{"arm64", "x86_64"}, settings.GetArray("VALID_ARCHS").Values())
		assert.Contains(t, string(doc.Bytes()), "\t\t\t\tDEBUG_INFORMATION_FORMAT = dwarf;\n")

		changes, err = patchkit.ApplySettings(section, patchkit.SettingsPatch{"VALID_ARCHS": patchkit.Replace([]string{"arm64", "x86_64"})})
		assert.Nil(t, err)
		assert.Empty(t, changes)
	})
	t.Run("release is never touched", func(t *testing.T) {
		doc := parseProject(t, testutil.TwoSectionProject)
		_, err := patchkit.ApplySettings(selectOne(t, doc, "Debug"), patchkit.SettingsPatch{
			"SDKROOT":                      patchkit.Replace("macosx"),
			"GCC_PREPROCESSOR_DEFINITIONS": patchkit.Append("GRPC_ARES=0"),
		})
		assert.Nil(t, err)
		release := func(content string) string {
			return content[strings.Index(content, "BBBB"):]
		}
		assert.Equal(t, release(testutil.TwoSectionProject), release(string(doc.Bytes())))
	})
	t.Run("dictionary values are rejected", func(t *testing.T) {
		doc := parseProject(t, `{ objects = { X = { isa = XCBuildConfiguration; buildSettings = { A = x; NESTED = { a = b; }; }; name = Debug; }; }; }`)
		section := selectOne(t, doc, "Debug")
		_, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{
			"A":      patchkit.Replace("y"),
			"NESTED": patchkit.Append("z"),
		})
		assert.True(t, errors.Is(err, errors.Validation))
		v, _ := section.Settings().GetString("A")
		assert.Equal(t, "x", v)
	})
	t.Run("missing build settings", func(t *testing.T) {
		doc := parseProject(t, `{ objects = { X = { isa = XCBuildConfiguration; name = Debug; }; }; }`)
		_, err := patchkit.ApplySettings(selectOne(t, doc, "Debug"), patchkit.SettingsPatch{"A": patchkit.Replace("y")})
		assert.True(t, errors.Is(err, errors.NotFound))
	})
	t.Run("zero patches round trip", func(t *testing.T) {
		doc := parseProject(t, testutil.ProjectFile)
		for _, section := range patchkit.Select(doc, "name", "Debug") {
			changes, err := patchkit.ApplySettings(section, patchkit.SettingsPatch{})
			assert.Nil(t, err)
			assert.Empty(t, changes)
		}
		assert.Equal(t, testutil.ProjectFile, string(doc.Bytes()))
	})
}
