package expressions

import (
	"errors"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

var ErrNotImplemented = errors.New("expressions: not implemented")

// HTTPHeaders exposes request headers to CEL as map(string, string). Lookups
// are case-insensitive and multiple values are joined with commas.
type HTTPHeaders struct {
	http.Header
}

// URLValues exposes the query string to CEL as map(string, string).
type URLValues struct {
	url.Values
}

func lookup(m map[string][]string, key ref.Val, canon func(string) string) (ref.Val, bool) {
	k, ok := key.(types.String)
	if !ok {
		return nil, false
	}

	vals, ok := m[canon(string(k))]
	if !ok {
		return nil, false
	}

	return types.String(strings.Join(vals, ",")), true
}

func get(m map[string][]string, key ref.Val, canon func(string) string) ref.Val {
	result, ok := lookup(m, key, canon)
	if !ok {
		return types.NewErr("no such key: %v", key)
	}
	return result
}

func iterate(m map[string][]string) traits.Iterator {
	keys := slices.Sorted(maps.Keys(m))
	return types.NewStringList(types.DefaultTypeAdapter, keys).Iterator()
}

func convertToType(self ref.Val, typeVal ref.Type) ref.Val {
	switch typeVal {
	case types.MapType:
		return self
	case types.TypeType:
		return types.MapType
	}

	return types.NewErr("can't convert from %q to %q", types.MapType, typeVal)
}

func same(s string) string { return s }

func (h HTTPHeaders) ConvertToNative(typeDesc reflect.Type) (any, error) {
	return nil, ErrNotImplemented
}

func (h HTTPHeaders) ConvertToType(typeVal ref.Type) ref.Val { return convertToType(h, typeVal) }

// Equal is always false; header maps are not compared.
func (h HTTPHeaders) Equal(other ref.Val) ref.Val { return types.False }

func (h HTTPHeaders) Type() ref.Type { return types.MapType }

func (h HTTPHeaders) Value() any { return h }

func (h HTTPHeaders) Find(key ref.Val) (ref.Val, bool) {
	return lookup(h.Header, key, http.CanonicalHeaderKey)
}

func (h HTTPHeaders) Contains(key ref.Val) ref.Val {
	_, ok := h.Find(key)
	return types.Bool(ok)
}

func (h HTTPHeaders) Get(key ref.Val) ref.Val { return get(h.Header, key, http.CanonicalHeaderKey) }

func (h HTTPHeaders) Iterator() traits.Iterator { return iterate(h.Header) }

func (h HTTPHeaders) IsZeroValue() bool { return len(h.Header) == 0 }

func (h HTTPHeaders) Size() ref.Val { return types.Int(len(h.Header)) }

func (u URLValues) ConvertToNative(typeDesc reflect.Type) (any, error) {
	return nil, ErrNotImplemented
}

func (u URLValues) ConvertToType(typeVal ref.Type) ref.Val { return convertToType(u, typeVal) }

// Equal is always false; query maps are not compared.
func (u URLValues) Equal(other ref.Val) ref.Val { return types.False }

func (u URLValues) Type() ref.Type { return types.MapType }

func (u URLValues) Value() any { return u }

func (u URLValues) Find(key ref.Val) (ref.Val, bool) { return lookup(u.Values, key, same) }

func (u URLValues) Contains(key ref.Val) ref.Val {
	_, ok := u.Find(key)
	return types.Bool(ok)
}

func (u URLValues) Get(key ref.Val) ref.Val { return get(u.Values, key, same) }

func (u URLValues) Iterator() traits.Iterator { return iterate(u.Values) }

func (u URLValues) IsZeroValue() bool { return len(u.Values) == 0 }

func (u URLValues) Size() ref.Val { return types.Int(len(u.Values)) }
