package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// File is a persistent Cache backed by BadgerDB v4. Each record carries its
// own expiry timestamp; expired records read as misses and are lazily
// deleted.
type File struct {
	db *badger.DB
}

// FileOptions configures the BadgerDB-backed cache.
type FileOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Logger sets the badger logger. If nil, badger debug/info output is
	// suppressed and warnings go to slog.
	Logger badger.Logger
}

// fileRecord is the stored envelope. ExpiresAt is unix milliseconds; zero
// means no expiry.
type fileRecord struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// NewFile opens a BadgerDB-backed Cache.
func NewFile(opts FileOptions) (*File, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("cache: FileOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(badgerLogger{slog.Default()})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &File{db: db}, nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	k := []byte(key)
	var raw []byte
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Unreadable record: drop it and report a miss.
		_ = f.Delete(context.Background(), key)
		return nil, false, nil
	}
	if rec.ExpiresAt > 0 && time.Now().UnixMilli() > rec.ExpiresAt {
		_ = f.Delete(context.Background(), key)
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	rec := fileRecord{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return f.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (f *File) Delete(_ context.Context, key string) error {
	err := f.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Sweep removes all expired records in one pass. Long-running processes can
// call this periodically; reads already skip expired records.
func (f *File) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UnixMilli()
	var expired [][]byte
	err := f.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec fileRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				expired = append(expired, item.KeyCopy(nil))
				continue
			}
			if rec.ExpiresAt > 0 && now > rec.ExpiresAt {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	wb := f.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range expired {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(expired), nil
}

func (f *File) Close() error {
	return f.db.Close()
}

// badgerLogger routes badger warnings and errors to slog, suppressing
// debug and info level messages.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error("badger", "msg", strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn("badger", "msg", strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Infof(string, ...interface{})  {}
func (l badgerLogger) Debugf(string, ...interface{}) {}
