package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/util"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	_ "embed"
)

var (
	//go:embed testdata/project.pbxproj
	ProjectFile string
)

const (
	// ProjectDebugID is the project level Debug configuration in ProjectFile
	ProjectDebugID = "97C147031CF9000F007C117D"
	// RunnerDebugID is the Runner target's Debug configuration in ProjectFile
	RunnerDebugID = "97C147061CF9000F007C117D"
	// RunnerReleaseID is the Runner target's Release configuration in ProjectFile
	RunnerReleaseID = "97C147071CF9000F007C117D"
)

// TwoSectionProject has exactly two build configurations named Debug and Release
const TwoSectionProject = `// !$*UTF8*$!
{
	objects = {
		AAAA /* Debug */ = {
			isa = XCBuildConfiguration;
			buildSettings = {
				GCC_PREPROCESSOR_DEFINITIONS = (
					"$(inherited)",
				);
				SDKROOT = iphoneos;
			};
			name = Debug;
		};
		BBBB /* Release */ = {
			isa = XCBuildConfiguration;
			buildSettings = {
				SDKROOT = iphoneos;
			};
			name = Release;
		};
	};
	rootObject = CCCC;
}
`

// WriteProject writes the project content into a temporary Runner.xcodeproj and returns the project.pbxproj path
func WriteProject(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Runner.xcodeproj")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "project.pbxproj")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// NewUserDoc returns a fake user document with the given email and role
func NewUserDoc(email, role string) []byte {
	bits, err := json.Marshal(map[string]any{
		"email": email,
		"role":  role,
		"name":  gofakeit.Name(),
		"contact": map[string]any{
			"phone": gofakeit.Phone(),
			"city":  gofakeit.City(),
		},
		"age":      gofakeit.IntRange(18, 90),
		"language": gofakeit.Language(),
	})
	if err != nil {
		panic(err)
	}
	return bits
}

// MemoryStore is an in-memory store.Store. Updates can be made to fail per id.
type MemoryStore struct {
	mu     sync.Mutex
	ids    map[string][]string
	docs   map[string][]byte
	Clock  func() time.Time
	Reject map[string]error
	closed bool
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:    map[string][]string{},
		docs:   map[string][]byte{},
		Clock:  time.Now,
		Reject: map[string]error{},
	}
}

func memKey(collection, id string) string {
	return collection + "/" + id
}

func (m *MemoryStore) Find(ctx context.Context, collection string, where store.Where) ([]store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []store.Entry
	for _, id := range m.ids[collection] {
		data, ok := m.docs[memKey(collection, id)]
		if !ok {
			continue
		}
		if where.Matches(data) {
			entries = append(entries, store.Entry{Collection: collection, ID: id, Data: data})
		}
	}
	return entries, nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[memKey(collection, id)]
	if !ok {
		return store.Entry{Collection: collection, ID: id}, errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	return store.Entry{Collection: collection, ID: id, Data: data}, nil
}

func (m *MemoryStore) Put(ctx context.Context, entry store.Entry) (store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !gjson.ValidBytes(entry.Data) {
		return entry, errors.New(errors.Validation, "invalid json")
	}
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	k := memKey(entry.Collection, entry.ID)
	if _, ok := m.docs[k]; !ok {
		m.ids[entry.Collection] = append(m.ids[entry.Collection], entry.ID)
	}
	m.docs[k] = entry.Data
	return entry, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, update store.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Reject[id]; ok {
		return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
	}
	k := memKey(collection, id)
	data, ok := m.docs[k]
	if !ok {
		return errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	var err error
	for _, field := range util.SortedKeys(update.Fields) {
		data, err = sjson.SetBytes(data, field, update.Fields[field])
		if err != nil {
			return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
		}
	}
	if update.TimestampField != "" {
		data, err = sjson.SetBytes(data, update.TimestampField, m.Clock().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
		}
	}
	m.docs[k] = data
	return nil
}

// Delete removes a document so later updates observe it as gone
func (m *MemoryStore) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, memKey(collection, id))
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MemoryStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// TestStore runs the behaviour every store driver must share against s
func TestStore(t *testing.T, s store.Store) {
	ctx := context.Background()
	collection := "users_" + ksuid.New().String()
	seller, err := s.Put(ctx, store.Entry{Collection: collection, Data: NewUserDoc("test@seller.com", "buyer")})
	assert.Nil(t, err)
	assert.NotEmpty(t, seller.ID)
	for i := 0; i < 5; i++ {
		_, err := s.Put(ctx, store.Entry{Collection: collection, Data: NewUserDoc(gofakeit.Email(), "buyer")})
		assert.Nil(t, err)
	}
	aged, err := s.Put(ctx, store.Entry{Collection: collection, ID: "aged", Data: []byte(`{"email":"aged@example.com","age":142,"contact":{"city":"Busan"}}`)})
	assert.Nil(t, err)

	t.Run("find by equality", func(t *testing.T) {
		entries, err := s.Find(ctx, collection, store.Where{Field: "email", Value: "test@seller.com"})
		assert.Nil(t, err)
		if assert.Len(t, entries, 1) {
			assert.Equal(t, seller.ID, entries[0].ID)
			assert.Equal(t, collection, entries[0].Collection)
			assert.Equal(t, "buyer", gjson.GetBytes(entries[0].Data, "role").String())
		}
	})
	t.Run("find numeric value", func(t *testing.T) {
		entries, err := s.Find(ctx, collection, store.Where{Field: "age", Value: 142})
		assert.Nil(t, err)
		if assert.Len(t, entries, 1) {
			assert.Equal(t, aged.ID, entries[0].ID)
		}
	})
	t.Run("find nested field", func(t *testing.T) {
		entries, err := s.Find(ctx, collection, store.Where{Field: "contact.city", Value: "Busan"})
		assert.Nil(t, err)
		assert.Len(t, entries, 1)
	})
	t.Run("find no match", func(t *testing.T) {
		entries, err := s.Find(ctx, collection, store.Where{Field: "email", Value: "nobody@example.com"})
		assert.Nil(t, err)
		assert.Empty(t, entries)
	})
	t.Run("update", func(t *testing.T) {
		assert.Nil(t, s.Update(ctx, collection, seller.ID, store.Update{
			Fields:         map[string]any{"role": "seller"},
			TimestampField: "updatedAt",
		}))
		entry, err := s.Get(ctx, collection, seller.ID)
		assert.Nil(t, err)
		assert.Equal(t, "seller", gjson.GetBytes(entry.Data, "role").String())
		assert.Equal(t, "test@seller.com", gjson.GetBytes(entry.Data, "email").String())
		assert.True(t, gjson.GetBytes(entry.Data, "updatedAt").Exists())
	})
	t.Run("update twice is idempotent apart from the timestamp", func(t *testing.T) {
		update := store.Update{Fields: map[string]any{"role": "seller"}, TimestampField: "updatedAt"}
		assert.Nil(t, s.Update(ctx, collection, seller.ID, update))
		first, err := s.Get(ctx, collection, seller.ID)
		assert.Nil(t, err)
		assert.Nil(t, s.Update(ctx, collection, seller.ID, update))
		second, err := s.Get(ctx, collection, seller.ID)
		assert.Nil(t, err)
		assert.Equal(t, WithoutField(t, first.Data, "updatedAt"), WithoutField(t, second.Data, "updatedAt"))
	})
	t.Run("update nested field with absent parent", func(t *testing.T) {
		_, err := s.Put(ctx, store.Entry{Collection: collection, ID: "nested", Data: []byte(`{"email":"nested@example.com"}`)})
		assert.Nil(t, err)
		assert.Nil(t, s.Update(ctx, collection, "nested", store.Update{
			Fields:         map[string]any{"profile.role": "seller", "profile.address.city": "Busan"},
			TimestampField: "meta.updatedAt",
		}))
		entry, err := s.Get(ctx, collection, "nested")
		assert.Nil(t, err)
		assert.Equal(t, "seller", gjson.GetBytes(entry.Data, "profile.role").String())
		assert.Equal(t, "Busan", gjson.GetBytes(entry.Data, "profile.address.city").String())
		assert.True(t, gjson.GetBytes(entry.Data, "meta.updatedAt").Exists())
		assert.Equal(t, "nested@example.com", gjson.GetBytes(entry.Data, "email").String())
	})
	t.Run("update missing document", func(t *testing.T) {
		err := s.Update(ctx, collection, "does-not-exist", store.Update{Fields: map[string]any{"role": "seller"}})
		assert.True(t, errors.Is(err, errors.NotFound), "expected not found, got %v", err)
	})
	t.Run("get missing document", func(t *testing.T) {
		_, err := s.Get(ctx, collection, "does-not-exist")
		assert.True(t, errors.Is(err, errors.NotFound))
	})
}

// WithoutField decodes the document and drops the field
func WithoutField(t *testing.T, data []byte, field string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	delete(out, field)
	return out
}
