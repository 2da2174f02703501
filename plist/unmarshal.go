package plist

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"
)

type unmarshaller struct{}

func (u *unmarshaller) fail(path, key string, err error) {
	panic(&SchemaError{Path: path, Key: key, Err: err})
}

func (u *unmarshaller) mismatch(pval cfValue, val reflect.Value, path string) {
	u.fail(path, "", fmt.Errorf("cannot unmarshal %s into %s", pval.typeName(), val.Type()))
}

// unmarshal stores pval into val. Keys in pval without a matching struct
// field are ignored; required fields without a key are an error.
func (u *unmarshaller) unmarshal(pval cfValue, val reflect.Value, path string) {
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		val = val.Elem()
	}
	if val.Kind() == reflect.Interface && val.NumMethod() == 0 {
		val.Set(reflect.ValueOf(u.toInterface(pval)))
		return
	}

	switch pval := pval.(type) {
	case cfString:
		if val.Kind() != reflect.String {
			u.mismatch(pval, val, path)
		}
		val.SetString(string(pval))
	case cfData:
		if val.Kind() != reflect.Slice || val.Type().Elem().Kind() != reflect.Uint8 {
			u.mismatch(pval, val, path)
		}
		data := make([]byte, len(pval))
		copy(data, pval)
		val.SetBytes(data)
	case cfBoolean:
		if val.Kind() != reflect.Bool {
			u.mismatch(pval, val, path)
		}
		val.SetBool(bool(pval))
	case *cfNumber:
		u.unmarshalInteger(pval, val, path)
	case *cfReal:
		if val.Kind() != reflect.Float32 && val.Kind() != reflect.Float64 {
			u.mismatch(pval, val, path)
		}
		val.SetFloat(pval.value)
	case cfDate:
		if val.Type() != timeType {
			u.mismatch(pval, val, path)
		}
		val.Set(reflect.ValueOf(time.Time(pval)))
	case cfUID:
		switch val.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if val.OverflowUint(uint64(pval)) {
				u.fail(path, "", fmt.Errorf("UID %d overflows %s", pval, val.Type()))
			}
			val.SetUint(uint64(pval))
		default:
			u.mismatch(pval, val, path)
		}
	case *cfArray:
		if val.Kind() != reflect.Slice || val.Type().Elem().Kind() == reflect.Uint8 {
			u.mismatch(pval, val, path)
		}
		// An empty array yields an empty, non-nil slice: present and empty
		// stays distinct from absent.
		slice := reflect.MakeSlice(val.Type(), len(pval.values), len(pval.values))
		for i, v := range pval.values {
			u.unmarshal(v, slice.Index(i), fmt.Sprintf("%s[%d]", path, i))
		}
		val.Set(slice)
	case *cfDictionary:
		switch val.Kind() {
		case reflect.Struct:
			u.unmarshalStruct(pval, val, path)
		case reflect.Map:
			u.unmarshalMap(pval, val, path)
		default:
			u.mismatch(pval, val, path)
		}
	default:
		u.fail(path, "", fmt.Errorf("unknown property list value %T", pval))
	}
}

func (u *unmarshaller) unmarshalInteger(n *cfNumber, val reflect.Value, path string) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.signed && n.value > math.MaxInt64 || val.OverflowInt(int64(n.value)) {
			u.fail(path, "", fmt.Errorf("integer overflows %s", val.Type()))
		}
		val.SetInt(int64(n.value))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n.signed || val.OverflowUint(n.value) {
			u.fail(path, "", fmt.Errorf("integer overflows %s", val.Type()))
		}
		val.SetUint(n.value)
	default:
		u.mismatch(n, val, path)
	}
}

func (u *unmarshaller) unmarshalStruct(dict *cfDictionary, val reflect.Value, path string) {
	tinfo, err := getTypeInfo(val.Type())
	if err != nil {
		u.fail(path, "", err)
	}
	for i := range tinfo.fields {
		finfo := &tinfo.fields[i]
		fv := finfo.value(val)
		dval, ok := dict.get(finfo.name)
		if !ok {
			if !finfo.optional {
				u.fail(path, finfo.name, errMissingKey)
			}
			fv.Set(reflect.Zero(fv.Type()))
			continue
		}
		u.unmarshal(dval, fv, joinPath(path, finfo.name))
	}
}

func (u *unmarshaller) unmarshalMap(dict *cfDictionary, val reflect.Value, path string) {
	typ := val.Type()
	if typ.Key().Kind() != reflect.String {
		u.mismatch(dict, val, path)
	}
	m := reflect.MakeMapWithSize(typ, len(dict.keys))
	for i, k := range dict.keys {
		elem := reflect.New(typ.Elem()).Elem()
		u.unmarshal(dict.values[i], elem, joinPath(path, k))
		m.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), elem)
	}
	val.Set(m)
}

// toInterface converts pval into plain Go values: string, []byte, bool,
// int64 or uint64, float64, time.Time, UID, []interface{} and
// map[string]interface{}.
func (u *unmarshaller) toInterface(pval cfValue) interface{} {
	switch pval := pval.(type) {
	case cfString:
		return string(pval)
	case cfData:
		return []byte(pval)
	case cfBoolean:
		return bool(pval)
	case *cfNumber:
		if pval.signed {
			return int64(pval.value)
		}
		return pval.value
	case *cfReal:
		return pval.value
	case cfDate:
		return time.Time(pval)
	case cfUID:
		return UID(pval)
	case *cfArray:
		values := make([]interface{}, len(pval.values))
		for i, v := range pval.values {
			values[i] = u.toInterface(v)
		}
		return values
	case *cfDictionary:
		m := make(map[string]interface{}, len(pval.keys))
		for i, k := range pval.keys {
			m[k] = u.toInterface(pval.values[i])
		}
		return m
	}
	return nil
}

var errNotPointer = errors.New("plist: Unmarshal requires a non-nil pointer")

func unmarshalValue(pval cfValue, v interface{}) (err error) {
	defer func() { recoverError(recover(), &err) }()
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errNotPointer
	}
	u := &unmarshaller{}
	u.unmarshal(pval, rv, "")
	return nil
}
