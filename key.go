package memo

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"

	digest "github.com/opencontainers/go-digest"
)

// Key is the canonical form of a memoized call's arguments. Two calls share a
// cache entry if and only if their keys are equal.
type Key string

// Keyer lets an argument type supply its own canonical key instead of the
// default JSON encoding. The result must be stable across process runs and
// must not depend on pointer identity.
type Keyer interface {
	CacheKey() (string, error)
}

// KeyOf returns the canonical key for args.
//
// If args implements Keyer its CacheKey is used. Otherwise args is encoded
// with encoding/json, which writes struct fields in declaration order and
// sorts map keys, so structurally equal values produce equal keys. Values
// JSON cannot represent (channels, functions, NaN) fail with ErrInvalidKey.
//
// JSON omits unexported fields and fields tagged `json:"-"`, so arguments
// that reach such a field would share keys with values that differ only
// there. They fail with ErrInvalidKey; implement Keyer for those types.
// Types with their own MarshalJSON or MarshalText (time.Time, for example)
// are trusted to encode everything that distinguishes them.
func KeyOf(args any) (Key, error) {
	if k, ok := args.(Keyer); ok {
		s, err := k.CacheKey()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return Key(s), nil
	}
	if err := checkEncodable(reflect.ValueOf(args), "args", make(map[uintptr]struct{})); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return Key(data), nil
}

// Digest returns the SHA-256 digest of the key.
func (k Key) Digest() digest.Digest {
	return digest.FromString(string(k))
}

// Short returns an abbreviated digest suitable for log lines.
func (k Key) Short() string {
	return k.Digest().Encoded()[:12]
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// marshalsItself reports whether t controls its own JSON encoding.
func marshalsItself(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) ||
		pt.Implements(jsonMarshalerType) || pt.Implements(textMarshalerType)
}

// checkEncodable walks v and reports the first struct field that
// encoding/json would leave out of the key. visited holds pointers already
// walked, so cyclic values terminate (json.Marshal rejects them later).
func checkEncodable(v reflect.Value, path string, visited map[uintptr]struct{}) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t.Kind() != reflect.Interface && marshalsItself(t) {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if _, seen := visited[v.Pointer()]; seen {
			return nil
		}
		visited[v.Pointer()] = struct{}{}
		return checkEncodable(v.Elem(), path, visited)
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkEncodable(v.Elem(), path, visited)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			fpath := path + "." + f.Name
			if f.Tag.Get("json") == "-" {
				return fmt.Errorf("%s is excluded from JSON by its tag", fpath)
			}
			if !f.IsExported() {
				// Embedded unexported structs have their exported fields promoted.
				if !f.Anonymous || f.Type.Kind() != reflect.Struct {
					return fmt.Errorf("%s is unexported", fpath)
				}
			}
			if err := checkEncodable(v.Field(i), fpath, visited); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if !mayHideFields(t.Elem()) {
			return nil
		}
		for i := range v.Len() {
			if err := checkEncodable(v.Index(i), fmt.Sprintf("%s[%d]", path, i), visited); err != nil {
				return err
			}
		}
	case reflect.Map:
		if !mayHideFields(t.Elem()) {
			return nil
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkEncodable(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key()), visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// mayHideFields reports whether values of t can contain a struct field.
func mayHideFields(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct, reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}
