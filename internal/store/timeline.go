package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrNotFound is returned when no timeline has the requested ID.
	ErrNotFound = errors.New("timeline not found")

	// ErrAmbiguous is returned when an ID prefix matches several timelines.
	ErrAmbiguous = errors.New("ambiguous timeline id")

	// ErrCorruptMeta is returned when a metadata record cannot be read.
	ErrCorruptMeta = errors.New("corrupt timeline metadata")
)

var (
	metaPrefix = []byte("meta/")
	dataPrefix = []byte("timeline/")
)

// Meta describes a stored timeline.
type Meta struct {
	ID       uuid.UUID
	Name     string
	Width    int
	Height   int
	Oldest   int
	Position int
	Newest   int
	Created  time.Time
	Updated  time.Time
}

func metaKey(id uuid.UUID) []byte { return append(slices.Clone(metaPrefix), id.String()...) }
func dataKey(id uuid.UUID) []byte { return append(slices.Clone(dataPrefix), id.String()...) }

func (m Meta) encode() ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"id", m.ID.String()},
		{"name", m.Name},
		{"width", m.Width},
		{"height", m.Height},
		{"oldest", m.Oldest},
		{"position", m.Position},
		{"newest", m.Newest},
		{"created", m.Created.UTC().Format(time.RFC3339Nano)},
		{"updated", m.Updated.UTC().Format(time.RFC3339Nano)},
	} {
		if doc, err = sjson.SetBytes(doc, kv.path, kv.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decodeMeta(data []byte) (Meta, error) {
	if !gjson.ValidBytes(data) {
		return Meta{}, ErrCorruptMeta
	}
	doc := gjson.ParseBytes(data)
	id, err := uuid.Parse(doc.Get("id").String())
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptMeta, err)
	}
	created, err := time.Parse(time.RFC3339Nano, doc.Get("created").String())
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptMeta, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, doc.Get("updated").String())
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptMeta, err)
	}
	return Meta{
		ID:       id,
		Name:     doc.Get("name").String(),
		Width:    int(doc.Get("width").Int()),
		Height:   int(doc.Get("height").Int()),
		Oldest:   int(doc.Get("oldest").Int()),
		Position: int(doc.Get("position").Int()),
		Newest:   int(doc.Get("newest").Int()),
		Created:  created,
		Updated:  updated,
	}, nil
}

// Save stores an encoded timeline. A zero meta.ID allocates a new one;
// saving over an existing ID keeps its creation time. The stored metadata
// is returned.
func (s *Store) Save(ctx context.Context, meta Meta, data []byte) (Meta, error) {
	if meta.ID == uuid.Nil {
		meta.ID = uuid.New()
	}
	now := time.Now()
	meta.Updated = now

	err := s.update(ctx, func(txn *badger.Txn) error {
		meta.Created = now
		if prev, err := getMeta(txn, meta.ID); err == nil {
			meta.Created = prev.Created
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		raw, err := meta.encode()
		if err != nil {
			return err
		}
		if err := txn.Set(metaKey(meta.ID), raw); err != nil {
			return err
		}
		return txn.Set(dataKey(meta.ID), data)
	})
	if err != nil {
		return Meta{}, fmt.Errorf("save timeline %s: %w", meta.ID, err)
	}
	s.logger.Debug("timeline saved", "id", meta.ID, "bytes", len(data))
	return meta, nil
}

// Load returns the metadata and encoded timeline stored under id.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (Meta, []byte, error) {
	var (
		meta Meta
		data []byte
	)
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		if meta, err = getMeta(txn, id); err != nil {
			return err
		}
		item, err := txn.Get(dataKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return Meta{}, nil, fmt.Errorf("load timeline %s: %w", id, err)
	}
	return meta, data, nil
}

// Meta returns the metadata stored under id.
func (s *Store) Meta(ctx context.Context, id uuid.UUID) (Meta, error) {
	var meta Meta
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		meta, err = getMeta(txn, id)
		return err
	})
	if err != nil {
		return Meta{}, fmt.Errorf("load metadata %s: %w", id, err)
	}
	return meta, nil
}

// List returns the metadata of every stored timeline, most recently
// updated first.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	var metas []Meta
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var meta Meta
			err := it.Item().Value(func(val []byte) error {
				var derr error
				meta, derr = decodeMeta(val)
				return derr
			})
			if err != nil {
				s.logger.Warn("skipping unreadable metadata", "key", string(it.Item().Key()), "error", err)
				continue
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}

	slices.SortFunc(metas, func(a, b Meta) int {
		if c := b.Updated.Compare(a.Updated); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return metas, nil
}

// Delete removes the timeline stored under id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := getMeta(txn, id); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(dataKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete timeline %s: %w", id, err)
	}
	s.logger.Debug("timeline deleted", "id", id)
	return nil
}

// Resolve turns a full ID or a unique ID prefix into an ID.
func (s *Store) Resolve(ctx context.Context, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	ref = strings.ToLower(ref)
	if ref == "" {
		return uuid.Nil, ErrNotFound
	}

	var matches []uuid.UUID
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = append(slices.Clone(metaPrefix), ref...)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := uuid.ParseBytes(bytes.TrimPrefix(it.Item().Key(), metaPrefix))
			if err == nil {
				matches = append(matches, id)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("%w: %s matches %d timelines", ErrAmbiguous, ref, len(matches))
	}
}

func getMeta(txn *badger.Txn, id uuid.UUID) (Meta, error) {
	item, err := txn.Get(metaKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, err
	}
	var meta Meta
	err = item.Value(func(val []byte) error {
		var derr error
		meta, derr = decodeMeta(val)
		return derr
	})
	return meta, err
}
