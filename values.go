package kino

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/ettle/strcase"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
)

// Args holds coerced field arguments.
type Args map[string]any

// Has reports whether name was supplied, even as null.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns the argument as a string, or "" when absent or null.
func (a Args) String(name string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return ""
}

// OptionalString returns nil when the argument is absent or null.
func (a Args) OptionalString(name string) *string {
	v, ok := a[name].(string)
	if !ok {
		return nil
	}
	return &v
}

// Int returns the argument as an int.
func (a Args) Int(name string) (int, bool) {
	switch v := a[name].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// ID returns an ID argument as a string. IDs arrive as strings or, from
// JSON variables and integer literals, as numbers.
func (a Args) ID(name string) (string, bool) {
	switch v := a[name].(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// EntityID parses an ID argument that names a stored resource. A missing ID
// is a validation error; one that cannot name any row is reported as the
// resource not being found.
func (a Args) EntityID(name, resource string) (uuid.UUID, error) {
	raw, _ := a.ID(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, NewValidationError(name, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewNotFoundError(resource)
	}
	return id, nil
}

// ResolveInfo describes the field being resolved.
type ResolveInfo struct {
	TypeName  string
	FieldName string
	Path      ast.Path
	Operation ast.Operation
}

// ResolveParams is passed to every resolver.
type ResolveParams struct {
	Source any
	Args   Args
	Info   ResolveInfo
	// State holds whatever the field's rule stored while evaluating.
	State *FieldState
}

// FieldState carries values from a field's rule to its resolver. It lives
// for one field resolution and is not shared across goroutines.
type FieldState struct {
	values map[string]any
}

func (s *FieldState) Store(key string, value any) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[key] = value
}

func (s *FieldState) Load(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	value, ok := s.values[key]
	return value, ok
}

type propertyKey struct {
	typ  reflect.Type
	name string
}

var propertyIndex sync.Map

// resolveProperty reads name from a struct field (matched by json tag, then
// by Go field name) or a string-keyed map.
func resolveProperty(source any, name string) (any, error) {
	rv, ok := indirect(reflect.ValueOf(source))
	if !ok {
		return nil, nil
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, nil
		}
		return value.Interface(), nil
	case reflect.Struct:
		index, found := structFieldIndex(rv.Type(), name)
		if !found {
			return nil, fmt.Errorf("no property %q on %s", name, rv.Type())
		}
		return rv.FieldByIndex(index).Interface(), nil
	}
	return nil, fmt.Errorf("cannot read property %q from %s", name, rv.Type())
}

func structFieldIndex(t reflect.Type, name string) ([]int, bool) {
	key := propertyKey{typ: t, name: name}
	if cached, ok := propertyIndex.Load(key); ok {
		index, _ := cached.([]int)
		return index, index != nil
	}

	index := lookupStructField(t, name)
	propertyIndex.Store(key, index)
	return index, index != nil
}

func lookupStructField(t reflect.Type, name string) []int {
	fields := reflect.VisibleFields(t)

	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if tag == name {
			return f.Index
		}
	}

	for _, f := range fields {
		if f.IsExported() && f.Name == name {
			return f.Index
		}
	}

	pascal := strcase.ToPascal(name)
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, pascal) {
			return f.Index
		}
	}
	return nil
}

// indirect dereferences pointers and interfaces. It reports false for nil.
func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

// unwrapValue returns the dereferenced value for leaves, keeping types that
// serialize themselves intact.
func unwrapValue(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Interface {
		return value
	}
	inner, ok := indirect(rv)
	if !ok {
		return nil
	}
	return inner.Interface()
}
