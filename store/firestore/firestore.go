// Package firestore implements a collection store backed by Cloud Firestore.
package firestore

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/firestore"
	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/util"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cast"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func init() {
	registry.Register("firestore", func(ctx context.Context, params map[string]any) (store.Store, error) {
		return Open(ctx, Config{
			ProjectID:       cast.ToString(params["project_id"]),
			DatabaseID:      cast.ToString(params["database_id"]),
			CredentialsFile: cast.ToString(params["credentials_file"]),
		})
	})
}

// Config locates a Firestore database. Credentials are read from CredentialsFile or,
// when empty, from the application default credentials.
type Config struct {
	ProjectID       string `validate:"required"`
	DatabaseID      string
	CredentialsFile string
}

type firestoreStore struct {
	client *firestore.Client
}

// Open connects to Firestore. FIRESTORE_EMULATOR_HOST is honoured by the client library.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "'project_id' is a required parameter")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, err
	}
	return &firestoreStore{client: client}, nil
}

func toEntry(snap *firestore.DocumentSnapshot) (store.Entry, error) {
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return store.Entry{}, err
	}
	return store.Entry{
		Collection: snap.Ref.Parent.ID,
		ID:         snap.Ref.ID,
		Data:       data,
	}, nil
}

func (f *firestoreStore) Find(ctx context.Context, collection string, where store.Where) ([]store.Entry, error) {
	snaps, err := f.client.Collection(collection).Where(where.Field, "==", where.Value).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to query %s", collection)
	}
	var entries []store.Entry
	for _, snap := range snaps {
		entry, err := toEntry(snap)
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to encode %s/%s", collection, snap.Ref.ID)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f *firestoreStore) Get(ctx context.Context, collection, id string) (store.Entry, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.Entry{Collection: collection, ID: id}, errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	}
	if err != nil {
		return store.Entry{Collection: collection, ID: id}, errors.Wrap(err, errors.Internal, "failed to get %s/%s", collection, id)
	}
	entry, err := toEntry(snap)
	return entry, errors.Wrap(err, errors.Internal, "failed to encode %s/%s", collection, id)
}

func (f *firestoreStore) Put(ctx context.Context, entry store.Entry) (store.Entry, error) {
	var data map[string]any
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		return entry, errors.Wrap(err, errors.Validation, "%s/%s: document must be a json object", entry.Collection, entry.ID)
	}
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	if _, err := f.client.Collection(entry.Collection).Doc(entry.ID).Set(ctx, data); err != nil {
		return entry, errors.Wrap(err, errors.WriteRejected, "failed to put %s/%s", entry.Collection, entry.ID)
	}
	return entry, nil
}

func (f *firestoreStore) Update(ctx context.Context, collection, id string, update store.Update) error {
	var updates []firestore.Update
	for _, field := range util.SortedKeys(update.Fields) {
		updates = append(updates, firestore.Update{Path: field, Value: update.Fields[field]})
	}
	if update.TimestampField != "" {
		updates = append(updates, firestore.Update{Path: update.TimestampField, Value: firestore.ServerTimestamp})
	}
	if len(updates) == 0 {
		_, err := f.Get(ctx, collection, id)
		return err
	}
	_, err := f.client.Collection(collection).Doc(id).Update(ctx, updates)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return errors.New(errors.NotFound, "%s/%s does not exist", collection, id)
	default:
		return errors.Wrap(err, errors.WriteRejected, "failed to update %s/%s", collection, id)
	}
}

func (f *firestoreStore) Close() error {
	return f.client.Close()
}
