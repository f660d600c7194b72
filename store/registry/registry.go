package registry

import (
	"context"
	"sort"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
)

// Opener opens a collection store
type Opener func(ctx context.Context, params map[string]any) (store.Store, error)

var registeredOpeners = map[string]Opener{}

// Register registers an Opener by name
func Register(name string, opener Opener) {
	registeredOpeners[name] = opener
}

// Open opens a registered collection store
func Open(ctx context.Context, name string, params map[string]any) (store.Store, error) {
	opener, ok := registeredOpeners[name]
	if !ok {
		return nil, errors.New(errors.Setup, "store driver '%s' is not registered (have %v)", name, Drivers())
	}
	s, err := opener(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.Setup, "failed to open %s store", name)
	}
	return s, nil
}

// Drivers returns the names of the registered drivers
func Drivers() []string {
	var names []string
	for name := range registeredOpeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
