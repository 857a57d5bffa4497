package registry

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	lderrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore persists entries in a LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens, or creates, the database in dir. A corrupted database
// is recovered.
func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errors.New("data dir required")
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	var corrupted *lderrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

// newMemLevelDBStore backs the store with memory, for tests.
func newMemLevelDBStore() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *LevelDBStore) Save(_ context.Context, key string, value []byte) error {
	return s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true})
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
