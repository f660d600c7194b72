package badger

import (
	"context"
	"time"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/util"
	"github.com/dgraph-io/badger/v3"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func init() {
	registry.Register("badger", func(ctx context.Context, params map[string]any) (store.Store, error) {
		return Open(cast.ToString(params["storage_path"]))
	})
}

type badgerStore struct {
	db *badger.DB
}

// Open opens a badger backed collection store. An empty storage path keeps everything in memory.
func Open(storagePath string) (store.Store, error) {
	opts := badger.DefaultOptions(storagePath)
	if storagePath == "" {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

func key(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func (b *badgerStore) Find(ctx context.Context, collection string, where store.Where) ([]store.Entry, error) {
	var (
		entries []store.Entry
		prefix  = []byte(collection + "/")
	)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !where.Matches(val) {
				continue
			}
			entries = append(entries, store.Entry{
				Collection: collection,
				ID:         string(item.Key()[len(prefix):]),
				Data:       val,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to scan collection %s", collection)
	}
	return entries, nil
}

func (b *badgerStore) Get(ctx context.Context, collection, id string) (store.Entry, error) {
	var entry = store.Entry{Collection: collection, ID: id}
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		entry.Data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return entry, errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	if err != nil {
		return entry, errors.Wrap(err, errors.Internal, "failed to get %s/%s", collection, id)
	}
	return entry, nil
}

func (b *badgerStore) Put(ctx context.Context, entry store.Entry) (store.Entry, error) {
	if !gjson.ValidBytes(entry.Data) || !gjson.ParseBytes(entry.Data).IsObject() {
		return entry, errors.New(errors.Validation, "%s/%s: document must be a json object", entry.Collection, entry.ID)
	}
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(entry.Collection, entry.ID), entry.Data)
	})
	if err != nil {
		return entry, errors.Wrap(err, errors.WriteRejected, "failed to put %s/%s", entry.Collection, entry.ID)
	}
	return entry, nil
}

func (b *badgerStore) Update(ctx context.Context, collection, id string, update store.Update) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err == badger.ErrKeyNotFound {
			return errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		for _, field := range util.SortedKeys(update.Fields) {
			val, err = sjson.SetBytes(val, field, update.Fields[field])
			if err != nil {
				return err
			}
		}
		if update.TimestampField != "" {
			val, err = sjson.SetBytes(val, update.TimestampField, time.Now().UTC().Format(time.RFC3339Nano))
			if err != nil {
				return err
			}
		}
		return txn.Set(key(collection, id), val)
	})
	if err != nil && !errors.Is(err, errors.NotFound) {
		return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
	}
	return err
}

func (b *badgerStore) Close() error {
	if err := b.db.Sync(); err != nil {
		return err
	}
	return b.db.Close()
}
