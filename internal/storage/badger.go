package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/models"
)

// Key layout of the badger backend.
const (
	encodedQuestionPrefix = "encq:"
	encodedAnswerPrefix   = "enca:"
	encodedMetaKey        = "meta"
)

func encodedKey(prefix string, i int) []byte {
	return []byte(fmt.Sprintf("%s%08d", prefix, i))
}

// BadgerStore keeps an encoded corpus in a badger key-value store, one key per pair and side.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// badgerLogger adapts zap to the badger.Logger interface.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.logger.Errorf(msg, items...) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.logger.Warnf(msg, items...) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.logger.Debugf(msg, items...) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.logger.Debugf(msg, items...) }

// OpenBadgerStore opens a badger database in dir, creating it if needed.
// When inMemory is true dir is ignored.
func OpenBadgerStore(dir string, inMemory bool, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create badger dir: %w", err)
			}
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// WriteEncoded drops any previous encoded corpus and writes the new one in a write batch.
func (s *BadgerStore) WriteEncoded(ctx context.Context, meta EncodedMeta, pairs []models.EncodedPair) error {
	if err := ValidateEncoded(meta, pairs); err != nil {
		return err
	}
	if err := s.clear(); err != nil {
		return fmt.Errorf("drop previous encoded corpus: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(encodedKey(encodedQuestionPrefix, i), arrayToBytes(p.Question, meta.Dimensions)); err != nil {
			return fmt.Errorf("write question %d: %w", i, err)
		}
		if err := wb.Set(encodedKey(encodedAnswerPrefix, i), arrayToBytes(p.Answer, meta.Dimensions)); err != nil {
			return fmt.Errorf("write answer %d: %w", i, err)
		}
	}
	// meta goes last so a reader never sees it before the pairs
	value, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := wb.Set([]byte(encodedMetaKey), value); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush encoded corpus: %w", err)
	}
	s.logger.Debug("encoded corpus written to badger",
		zap.String("corpus_id", meta.CorpusID),
		zap.Int("pairs", meta.Pairs))
	return nil
}

// ReadEncoded returns the stored encoded corpus. ErrNotFound if nothing was written.
func (s *BadgerStore) ReadEncoded(ctx context.Context) (EncodedMeta, []models.EncodedPair, error) {
	var meta EncodedMeta
	var pairs []models.EncodedPair
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(encodedMetaKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("encoded corpus: %w", ErrNotFound)
			}
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("%w: meta: %v", ErrCorruptContainer, err)
		}
		if meta.Pairs < 0 || meta.Length <= 0 || meta.Length > maxFrameLength ||
			meta.Dimensions <= 0 || meta.Dimensions > maxDimensions {
			return fmt.Errorf("%w: meta shape %dx%dx%d", ErrCorruptContainer, meta.Pairs, meta.Length, meta.Dimensions)
		}
		// Every pair has its own keys: a bogus count fails on the first missing key.
		pairs = make([]models.EncodedPair, 0, min(meta.Pairs, 1<<12))
		for i := 0; i < meta.Pairs; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			q, err := s.readArray(tx, encodedKey(encodedQuestionPrefix, i), meta)
			if err != nil {
				return err
			}
			a, err := s.readArray(tx, encodedKey(encodedAnswerPrefix, i), meta)
			if err != nil {
				return err
			}
			pairs = append(pairs, models.EncodedPair{Question: q, Answer: a})
		}
		return nil
	})
	if err != nil {
		return EncodedMeta{}, nil, err
	}
	return meta, pairs, nil
}

// clear deletes the meta record and every pair key.
func (s *BadgerStore) clear() error {
	var keys [][]byte
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for _, prefix := range []string{encodedQuestionPrefix, encodedAnswerPrefix, encodedMetaKey} {
			p := []byte(prefix)
			for iter.Seek(p); iter.ValidForPrefix(p); iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) readArray(tx *badger.Txn, key []byte, meta EncodedMeta) ([][]float32, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: missing key %s", ErrCorruptContainer, key)
		}
		return nil, err
	}
	var rows [][]float32
	err = item.Value(func(val []byte) error {
		var err error
		rows, err = bytesToArray(val, meta.Length, meta.Dimensions)
		return err
	})
	return rows, err
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
