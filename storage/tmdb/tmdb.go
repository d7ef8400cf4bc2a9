// Package tmdb stores contract state in a tm-db database: MemDB when no
// path is configured, GoLevelDB otherwise.
package tmdb

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/storage"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"
)

const dbName = "state"

// Store implements storage.Backend on a tm-db handle.
type Store struct {
	db dbm.DB
}

func init() {
	if err := storage.Register(storage.TMDBBackendType, func(conf api.Storage) (storage.Backend, error) {
		if conf.Path == "" {
			return New(dbm.NewMemDB()), nil
		}
		db, err := dbm.NewDB(dbName, dbm.GoLevelDBBackend, conf.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open leveldb")
		}
		return New(db), nil
	}); err != nil {
		panic(err)
	}
}

// New wraps an open database.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Get implements storage.Backend
func (s *Store) Get(key string) ([]byte, bool, error) {
	bz, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to get %s", key)
	}
	if bz == nil {
		return nil, false, nil
	}
	return bz, true, nil
}

// Commit implements storage.Backend
func (s *Store) Commit(writes []storage.Write) error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, w := range writes {
		var err error
		if w.Delete {
			err = b.Delete([]byte(w.Key))
		} else {
			err = b.Set([]byte(w.Key), w.Value)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to batch %s", w.Key)
		}
	}
	return errors.Wrap(b.WriteSync(), "failed to write batch")
}

// Close implements storage.Backend
func (s *Store) Close() error {
	return s.db.Close()
}
