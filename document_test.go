package patchkit_test

import (
	"testing"

	"github.com/autom8ter/patchkit"
	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDocument(t *testing.T) {
	doc, err := patchkit.NewDocumentFromBytes(testutil.NewUserDoc("test@seller.com", "buyer"))
	if err != nil {
		t.Fatal(err)
	}
	t.Run("get", func(t *testing.T) {
		assert.Equal(t, "test@seller.com", doc.Get("email"))
		assert.Equal(t, "buyer", doc.GetString("role"))
		assert.True(t, doc.Exists("contact.city"))
		assert.False(t, doc.Exists("updatedAt"))
	})
	t.Run("set all", func(t *testing.T) {
		clone := doc.Clone()
		assert.Nil(t, clone.SetAll(map[string]any{"role": "seller", "contact.city": "Busan"}))
		assert.Equal(t, "seller", clone.GetString("role"))
		assert.Equal(t, "Busan", clone.GetString("contact.city"))
		assert.Equal(t, "buyer", doc.GetString("role"))
	})
	t.Run("merge patch", func(t *testing.T) {
		clone := doc.Clone()
		assert.Nil(t, clone.Set("role", "seller"))
		patch, err := clone.MergePatch(doc)
		assert.Nil(t, err)
		assert.JSONEq(t, `{"role":"seller"}`, patch.String())

		patch, err = doc.MergePatch(doc.Clone())
		assert.Nil(t, err)
		assert.JSONEq(t, `{}`, patch.String())
	})
	t.Run("flatten", func(t *testing.T) {
		flat, err := doc.Flatten()
		assert.Nil(t, err)
		assert.Equal(t, doc.Get("contact.city"), flat["contact.city"])
	})
	t.Run("invalid", func(t *testing.T) {
		_, err := patchkit.NewDocumentFromBytes([]byte(`[1, 2]`))
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = patchkit.NewDocumentFromBytes([]byte(`{"a":`))
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("from value", func(t *testing.T) {
		d, err := patchkit.NewDocumentFrom(map[string]any{"role": "seller"})
		assert.Nil(t, err)
		assert.Equal(t, `{"role":"seller"}`, d.String())
	})
}
