package plist

import (
	"fmt"
	"reflect"
	"sort"
	"time"
	"unicode/utf8"
)

// UID is a reference into an object table, as used by keyed archives.
type UID uint64

var (
	timeType = reflect.TypeOf(time.Time{})
	uidType  = reflect.TypeOf(UID(0))
)

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func isNilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

type marshaller struct{}

func (m *marshaller) fail(path string, format string, args ...interface{}) {
	panic(&EncodingError{Path: path, Err: fmt.Errorf(format, args...)})
}

// marshal converts a Go value into a property list tree. Struct fields are
// written in declaration order; optional fields holding nil are left out.
func (m *marshaller) marshal(val reflect.Value, path string) cfValue {
	if !val.IsValid() {
		m.fail(path, "nil value")
	}
	switch val.Type() {
	case timeType:
		// Whole seconds, the precision of the XML encoding.
		return cfDate(val.Interface().(time.Time).UTC().Truncate(time.Second))
	case uidType:
		return cfUID(val.Uint())
	}

	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			m.fail(path, "nil %s", val.Type())
		}
		return m.marshal(val.Elem(), path)
	case reflect.String:
		s := val.String()
		if !utf8.ValidString(s) {
			m.fail(path, "string %q is not valid UTF-8", s)
		}
		return cfString(s)
	case reflect.Bool:
		return cfBoolean(val.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newSignedNumber(val.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return newUnsignedNumber(val.Uint())
	case reflect.Float32:
		return &cfReal{wide: false, value: val.Float()}
	case reflect.Float64:
		return &cfReal{wide: true, value: val.Float()}
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, val.Len())
			copy(data, val.Bytes())
			return cfData(data)
		}
		return m.marshalArray(val, path)
	case reflect.Array:
		return m.marshalArray(val, path)
	case reflect.Map:
		return m.marshalMap(val, path)
	case reflect.Struct:
		return m.marshalStruct(val, path)
	}
	m.fail(path, "unsupported type %s", val.Type())
	return nil
}

func (m *marshaller) marshalArray(val reflect.Value, path string) cfValue {
	values := make([]cfValue, val.Len())
	for i := range values {
		values[i] = m.marshal(val.Index(i), fmt.Sprintf("%s[%d]", path, i))
	}
	return &cfArray{values: values}
}

// marshalMap writes map entries sorted by key, since maps have no order of
// their own.
func (m *marshaller) marshalMap(val reflect.Value, path string) cfValue {
	if val.Type().Key().Kind() != reflect.String {
		m.fail(path, "map key type %s is not a string", val.Type().Key())
	}
	keys := make([]string, 0, val.Len())
	for _, k := range val.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	dict := &cfDictionary{keys: keys, values: make([]cfValue, len(keys))}
	for i, k := range keys {
		kv := reflect.ValueOf(k).Convert(val.Type().Key())
		dict.values[i] = m.marshal(val.MapIndex(kv), joinPath(path, k))
	}
	return dict
}

func (m *marshaller) marshalStruct(val reflect.Value, path string) cfValue {
	tinfo, err := getTypeInfo(val.Type())
	if err != nil {
		m.fail(path, "%v", err)
	}
	dict := &cfDictionary{
		keys:   make([]string, 0, len(tinfo.fields)),
		values: make([]cfValue, 0, len(tinfo.fields)),
	}
	for i := range tinfo.fields {
		finfo := &tinfo.fields[i]
		fv := finfo.value(val)
		if finfo.optional && isNilable(fv) && fv.IsNil() {
			continue
		}
		dict.keys = append(dict.keys, finfo.name)
		dict.values = append(dict.values, m.marshal(fv, joinPath(path, finfo.name)))
	}
	return dict
}

func marshalValue(v interface{}) (pval cfValue, err error) {
	defer func() { recoverError(recover(), &err) }()
	if cv, ok := v.(cfValue); ok {
		return cv, nil
	}
	m := &marshaller{}
	return m.marshal(reflect.ValueOf(v), ""), nil
}
