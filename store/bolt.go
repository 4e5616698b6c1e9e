package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

const (
	boltFileName = "items.db"
	itemsBucket  = "items"
)

// Bolt is a Store persisted in a bolt database so held items survive restarts.
type Bolt struct {
	db   *bolt.DB
	path string
}

// OpenBolt opens (or creates) the item database inside dir.
func OpenBolt(dir string) (*Bolt, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	path := filepath.Join(dir, boltFileName)

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}

	return &Bolt{db: db, path: path}, nil
}

// Path returns the database file location.
func (b *Bolt) Path() string {
	return b.path
}

func (b *Bolt) Put(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(itemsBucket)).Put([]byte(key), value)
	})
}

func (b *Bolt) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(itemsBucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid inside the transaction
		out = append([]byte{}, v...)
		return nil
	})
	return out, err
}

func (b *Bolt) Has(key string) bool {
	found := false
	_ = b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(itemsBucket)).Get([]byte(key)) != nil
		return nil
	})
	return found
}

func (b *Bolt) Delete(key string) (bool, error) {
	existed := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucket))
		if bucket.Get([]byte(key)) == nil {
			return nil
		}
		existed = true
		return bucket.Delete([]byte(key))
	})
	return existed, err
}

func (b *Bolt) List() []Item {
	var out []Item
	_ = b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(itemsBucket)).ForEach(func(k, v []byte) error {
			out = append(out, Item{Key: string(k), Size: len(v)})
			return nil
		})
	})
	sortItems(out)
	return out
}

func (b *Bolt) Len() int {
	n := 0
	_ = b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(itemsBucket)).Stats().KeyN
		return nil
	})
	return n
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
