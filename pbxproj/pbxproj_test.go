package pbxproj_test

import (
	"testing"

	"github.com/autom8ter/patchkit/pbxproj"
	"github.com/autom8ter/patchkit/testutil"
	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, src string) *pbxproj.Document {
	t.Helper()
	doc, err := pbxproj.Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestRoundTrip(t *testing.T) {
	for name, src := range map[string]string{
		"project":      testutil.ProjectFile,
		"two sections": testutil.TwoSectionProject,
		"inline":       `{ a = b; c = (1, 2); d = {}; e = ( ); }`,
		"comments":     "// !$*UTF8*$!\n{\n\t/* lead */ a /* key */ = /* value */ \"x\" /* after */;\n\t// line comment\n}\n\n",
		"escapes":      `{ a = "say \"hi\"\n"; b = 'single'; }`,
	} {
		t.Run(name, func(t *testing.T) {
			doc := mustParse(t, src)
			assert.Equal(t, src, string(doc.Bytes()))
		})
	}
}

func TestRead(t *testing.T) {
	doc := mustParse(t, testutil.ProjectFile)
	objects := doc.Objects()
	if !assert.NotNil(t, objects) {
		return
	}
	debug := objects.GetDict(testutil.RunnerDebugID)
	if !assert.NotNil(t, debug) {
		return
	}
	name, ok := debug.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "Debug", name)
	settings := debug.GetDict("buildSettings")
	opt, _ := settings.GetString("SWIFT_OPTIMIZATION_LEVEL")
	assert.Equal(t, "-Onone", opt)
	paths := settings.GetArray("LD_RUNPATH_SEARCH_PATHS")
	assert.Equal(t, []string{"$(inherited)", "@executable_path/Frameworks"}, paths.Values())
	assert.True(t, paths.Contains("$(inherited)"))
	assert.Nil(t, settings.Get("NOPE"))
	assert.Contains(t, objects.Keys(), testutil.ProjectDebugID)
}

func TestSet(t *testing.T) {
	t.Run("replace scalar keeps layout", func(t *testing.T) {
		doc := mustParse(t, "{\n\ta = b;\n\tc = \"d e\";\n}\n")
		doc.Root.Set("a", pbxproj.NewString("x y"))
		assert.Equal(t, "{\n\ta = \"x y\";\n\tc = \"d e\";\n}\n", string(doc.Bytes()))
	})
	t.Run("insert in sorted position", func(t *testing.T) {
		doc := mustParse(t, "{\n\ta = b;\n\tc = \"d e\";\n}\n")
		doc.Root.Set("b", pbxproj.NewString("1"))
		assert.Equal(t, "{\n\ta = b;\n\tb = 1;\n\tc = \"d e\";\n}\n", string(doc.Bytes()))
	})
	t.Run("insert first", func(t *testing.T) {
		doc := mustParse(t, "{\n\tb = 1;\n}")
		doc.Root.Set("a", pbxproj.NewString("0"))
		assert.Equal(t, "{\n\ta = 0;\n\tb = 1;\n}", string(doc.Bytes()))
	})
	t.Run("insert into empty dict", func(t *testing.T) {
		doc := mustParse(t, "{\n\tb = {\n\t};\n}\n")
		doc.Root.GetDict("b").Set("K", pbxproj.NewString("V"))
		assert.Equal(t, "{\n\tb = {\n\t\tK = V;\n\t};\n}\n", string(doc.Bytes()))
	})
	t.Run("new array", func(t *testing.T) {
		doc := mustParse(t, "{\n\t\tA = 1;\n\t\tZ = 2;\n\t}\n")
		doc.Root.Set("DEFS", pbxproj.NewArray("$(inherited)", "GRPC_ARES=0"))
		assert.Equal(t, "{\n\t\tA = 1;\n\t\tDEFS = (\n\t\t\t\"$(inherited)\",\n\t\t\t\"GRPC_ARES=0\",\n\t\t);\n\t\tZ = 2;\n\t}\n", string(doc.Bytes()))
	})
	t.Run("replace scalar with array", func(t *testing.T) {
		doc := mustParse(t, "{\n\tA = x;\n}\n")
		doc.Root.Set("A", pbxproj.NewArray("x", "y"))
		assert.Equal(t, "{\n\tA = (\n\t\tx,\n\t\ty,\n\t);\n}\n", string(doc.Bytes()))
	})
	t.Run("quoted key", func(t *testing.T) {
		doc := mustParse(t, "{\n\tA = x;\n}\n")
		doc.Root.Set("EXCLUDED_ARCHS[sdk=iphonesimulator*]", pbxproj.NewString("arm64"))
		assert.Equal(t, "{\n\tA = x;\n\t\"EXCLUDED_ARCHS[sdk=iphonesimulator*]\" = arm64;\n}\n", string(doc.Bytes()))
		v, ok := doc.Root.GetString("EXCLUDED_ARCHS[sdk=iphonesimulator*]")
		assert.True(t, ok)
		assert.Equal(t, "arm64", v)
	})
}

func TestAppend(t *testing.T) {
	t.Run("multi line", func(t *testing.T) {
		doc := mustParse(t, "{\n\tL = (\n\t\t\"DEBUG=1\",\n\t\t\"$(inherited)\",\n\t);\n}\n")
		doc.Root.GetArray("L").Append("GRPC_ARES=0")
		assert.Equal(t, "{\n\tL = (\n\t\t\"DEBUG=1\",\n\t\t\"$(inherited)\",\n\t\t\"GRPC_ARES=0\",\n\t);\n}\n", string(doc.Bytes()))
	})
	t.Run("inline without trailing comma", func(t *testing.T) {
		doc := mustParse(t, "{ L = (a, b); }")
		doc.Root.GetArray("L").Append("c")
		assert.Equal(t, "{ L = (a, b, c); }", string(doc.Bytes()))
	})
	t.Run("empty multi line", func(t *testing.T) {
		doc := mustParse(t, "{\n\tL = (\n\t);\n}")
		doc.Root.GetArray("L").Append("x")
		assert.Equal(t, "{\n\tL = (\n\t\tx,\n\t);\n}", string(doc.Bytes()))
	})
	t.Run("fresh array", func(t *testing.T) {
		arr := pbxproj.NewArray("a")
		arr.Append("b")
		assert.Equal(t, []string{"a", "b"}, arr.Values())
	})
}

func TestDedupe(t *testing.T) {
	t.Run("multi line", func(t *testing.T) {
		doc := mustParse(t, "{\n\tL = (\n\t\ta,\n\t\tb,\n\t\ta,\n\t\tb,\n\t);\n}\n")
		assert.True(t, doc.Root.GetArray("L").Dedupe())
		assert.Equal(t, "{\n\tL = (\n\t\ta,\n\t\tb,\n\t);\n}\n", string(doc.Bytes()))
	})
	t.Run("inline repeated last", func(t *testing.T) {
		doc := mustParse(t, "{ L = (a, b, b); }")
		assert.True(t, doc.Root.GetArray("L").Dedupe())
		assert.Equal(t, "{ L = (a, b); }", string(doc.Bytes()))
	})
	t.Run("nothing repeated", func(t *testing.T) {
		src := "{ L = (a, b, ); }"
		doc := mustParse(t, src)
		assert.False(t, doc.Root.GetArray("L").Dedupe())
		assert.Equal(t, src, string(doc.Bytes()))
	})
}

func TestCRLF(t *testing.T) {
	t.Run("append", func(t *testing.T) {
		doc := mustParse(t, "{\r\n\tL = (\r\n\t\ta,\r\n\t);\r\n}\r\n")
		doc.Root.GetArray("L").Append("b")
		assert.Equal(t, "{\r\n\tL = (\r\n\t\ta,\r\n\t\tb,\r\n\t);\r\n}\r\n", string(doc.Bytes()))
	})
	t.Run("append to empty list", func(t *testing.T) {
		doc := mustParse(t, "{\r\n\tL = (\r\n\t);\r\n}")
		doc.Root.GetArray("L").Append("x")
		assert.Equal(t, "{\r\n\tL = (\r\n\t\tx,\r\n\t);\r\n}", string(doc.Bytes()))
	})
	t.Run("insert array", func(t *testing.T) {
		doc := mustParse(t, "{\r\n\tA = 1;\r\n}\r\n")
		doc.Root.Set("B", pbxproj.NewArray("x"))
		assert.Equal(t, "{\r\n\tA = 1;\r\n\tB = (\r\n\t\tx,\r\n\t);\r\n}\r\n", string(doc.Bytes()))
	})
	t.Run("insert into empty dict", func(t *testing.T) {
		doc := mustParse(t, "{\r\n\tb = {\r\n\t};\r\n}\r\n")
		doc.Root.GetDict("b").Set("K", pbxproj.NewString("V"))
		assert.Equal(t, "{\r\n\tb = {\r\n\t\tK = V;\r\n\t};\r\n}\r\n", string(doc.Bytes()))
	})
	t.Run("replace scalar with array", func(t *testing.T) {
		doc := mustParse(t, "{\r\n\tA = x;\r\n}\r\n")
		doc.Root.Set("A", pbxproj.NewArray("x", "y"))
		assert.Equal(t, "{\r\n\tA = (\r\n\t\tx,\r\n\t\ty,\r\n\t);\r\n}\r\n", string(doc.Bytes()))
	})
}

func TestSyntaxErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		src  string
		line int
		col  int
	}{
		"missing semicolon":   {src: "{\n\ta = b\n}", line: 3, col: 1},
		"unterminated string": {src: "{ a = \"b; }", line: 1, col: 7},
		"trailing content":    {src: "{ }\nx", line: 2, col: 1},
		"missing root":        {src: "a = b;", line: 1, col: 1},
		"eof in dict":         {src: "{\n\ta = b;\n", line: 3, col: 1},
		"bad array separator": {src: "{ a = (x y); }", line: 1, col: 10},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := pbxproj.Parse([]byte(tc.src))
			if !assert.NotNil(t, err) {
				return
			}
			serr, ok := err.(*pbxproj.SyntaxError)
			if assert.True(t, ok, "expected *SyntaxError, got %T", err) {
				assert.Equal(t, tc.line, serr.Line, serr.Error())
				assert.Equal(t, tc.col, serr.Col, serr.Error())
			}
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "arm64", pbxproj.Quote("arm64"))
	assert.Equal(t, "Runner/Info.plist", pbxproj.Quote("Runner/Info.plist"))
	assert.Equal(t, `"-Onone"`, pbxproj.Quote("-Onone"))
	assert.Equal(t, `"$(inherited)"`, pbxproj.Quote("$(inherited)"))
	assert.Equal(t, `""`, pbxproj.Quote(""))
	assert.Equal(t, `"a\"b"`, pbxproj.Quote(`a"b`))
	assert.Equal(t, `a"b`, pbxproj.Unquote(`"a\"b"`))
	assert.Equal(t, "é", pbxproj.Unquote(`"\U00e9"`))
	assert.Equal(t, "line\nbreak", pbxproj.Unquote(`"line\nbreak"`))
	assert.Equal(t, "bare", pbxproj.Unquote("bare"))
	for _, v := range []string{"x", "-O", "a b", `q"uote`, "tab\there", "GRPC_ARES=0"} {
		assert.Equal(t, v, pbxproj.Unquote(pbxproj.Quote(v)))
	}
}
