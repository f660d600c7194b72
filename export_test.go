package patchkit

import "github.com/autom8ter/patchkit/pbxproj"

// SetReparse replaces the check run on serialized project files and returns a restore func
func SetReparse(fn func([]byte) (*pbxproj.Document, error)) func() {
	prev := reparse
	reparse = fn
	return func() {
		reparse = prev
	}
}
