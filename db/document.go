package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// ErrDocumentShape is returned when a stored document is valid JSON that does
// not decode into the expected type.
var ErrDocumentShape = errors.New("unexpected document shape")

// Document is a typed view of one named document in a Store.
type Document[T any] struct {
	store      Store
	name       string
	newDefault func() T
	logger     *slog.Logger
}

// NewDocument binds name in store to type T. newDefault builds the value
// substituted for a missing, empty or unparsable document.
func NewDocument[T any](store Store, name string, newDefault func() T, logger *slog.Logger) *Document[T] {
	return &Document[T]{
		store:      store,
		name:       name,
		newDefault: newDefault,
		logger:     logger,
	}
}

// Name returns the document name
func (d *Document[T]) Name() string {
	return d.name
}

// Read returns the decoded document, or the default when the document is
// missing, blank or not valid JSON. Numbers keep their exact text. Backend
// failures and valid JSON of another shape are returned as errors.
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	data, err := d.store.Load(ctx, d.name)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return d.newDefault(), nil
		}
		var zero T
		return zero, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return d.newDefault(), nil
	}

	if !json.Valid(data) {
		d.logger.Warn("could not parse document, using default", "document", d.name)
		return d.newDefault(), nil
	}

	var value T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		// never fall back here: the next write would overwrite the stored entries
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrDocumentShape, d.name, err)
	}
	// a literal null decodes to the zero value
	if isNil(value) {
		return d.newDefault(), nil
	}
	return value, nil
}

// Write encodes value with 4-space indentation and replaces the document.
func (d *Document[T]) Write(ctx context.Context, value T) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	return d.store.Save(ctx, d.name, data)
}

// Ensure creates the document with its default value if it does not exist.
func (d *Document[T]) Ensure(ctx context.Context) (bool, error) {
	_, err := d.store.Load(ctx, d.name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrDocumentNotFound) {
		return false, err
	}
	if err := d.Write(ctx, d.newDefault()); err != nil {
		return false, err
	}
	return true, nil
}

// Encode marshals v as indented JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Collection is a Document guarded by a mutex. The lock is held across each
// load-mutate-save sequence so concurrent writers on the same collection are
// serialized instead of overwriting each other.
type Collection[T any] struct {
	mu  sync.Mutex
	doc *Document[T]
}

func NewCollection[T any](doc *Document[T]) *Collection[T] {
	return &Collection[T]{doc: doc}
}

// LoadAll returns the whole collection.
func (c *Collection[T]) LoadAll(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Read(ctx)
}

// SaveAll replaces the whole collection.
func (c *Collection[T]) SaveAll(ctx context.Context, value T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Write(ctx, value)
}

// Update loads the collection, passes it to fn and saves what fn returns.
// Nothing is written when fn fails.
func (c *Collection[T]) Update(ctx context.Context, fn func(T) (T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, err := c.doc.Read(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(value)
	if err != nil {
		return err
	}
	return c.doc.Write(ctx, updated)
}

// Ensure creates the backing document when absent.
func (c *Collection[T]) Ensure(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Ensure(ctx)
}

// Name returns the backing document name.
func (c *Collection[T]) Name() string {
	return c.doc.Name()
}
