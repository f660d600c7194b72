package testutil_test

import (
	"testing"

	"github.com/autom8ter/patchkit/testutil"
)

func TestMemoryStore(t *testing.T) {
	testutil.TestStore(t, testutil.NewMemoryStore())
}
