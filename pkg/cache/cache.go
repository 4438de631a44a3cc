package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// encodeValue serializes a value for the byte-oriented backends. gob
// instead of JSON: cached panels carry NaN cells, which JSON cannot
// represent.
func encodeValue(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte, dest interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(dest); err != nil {
		return fmt.Errorf("cache: decode: %w", err)
	}
	return nil
}

// assignValue copies a stored value into dest, which must be a non-nil
// pointer to a matching type.
func assignValue(value, dest interface{}) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("cache: dest must be a non-nil pointer, got %T", dest)
	}
	elem := dv.Elem()
	sv := reflect.ValueOf(value)
	if sv.IsValid() && sv.Type().AssignableTo(elem.Type()) {
		elem.Set(sv)
		return nil
	}
	if sv.IsValid() && sv.Kind() == reflect.Ptr && !sv.IsNil() && sv.Elem().Type().AssignableTo(elem.Type()) {
		elem.Set(sv.Elem())
		return nil
	}
	return fmt.Errorf("cache: cannot assign %T to %T", value, dest)
}

// derefValue returns the value dest points to, for promoting an L2 hit
// into an L1 tier without aliasing the caller's pointer.
func derefValue(dest interface{}) (interface{}, bool) {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return nil, false
	}
	return dv.Elem().Interface(), true
}
