package plist

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// typeInfo holds details for the plist representation of a struct type.
// Fields appear in declaration order, which is also the order in which
// their keys are written.
type typeInfo struct {
	fields []fieldInfo
}

// fieldInfo holds details for the plist representation of a single field.
type fieldInfo struct {
	idx      []int
	name     string
	optional bool
}

var tinfoMap sync.Map // map[reflect.Type]*typeInfo

// getTypeInfo returns the typeInfo structure with details necessary
// for marshalling and unmarshalling typ.
func getTypeInfo(typ reflect.Type) (*typeInfo, error) {
	if ltinfo, ok := tinfoMap.Load(typ); ok {
		return ltinfo.(*typeInfo), nil
	}
	tinfo := &typeInfo{}
	if typ.Kind() == reflect.Struct {
		n := typ.NumField()
		for i := 0; i < n; i++ {
			f := typ.Field(i)
			if f.Tag.Get("plist") == "-" || (!f.Anonymous && f.PkgPath != "") {
				continue // Private field
			}

			// For embedded structs, embed its fields.
			if f.Anonymous {
				t := f.Type
				if t.Kind() == reflect.Ptr {
					return nil, fmt.Errorf("embedded pointer %s in %s is not supported", t, typ)
				}
				if t.Kind() == reflect.Struct {
					inner, err := getTypeInfo(t)
					if err != nil {
						return nil, err
					}
					for _, finfo := range inner.fields {
						finfo.idx = append([]int{i}, finfo.idx...)
						if err := addFieldInfo(typ, tinfo, &finfo); err != nil {
							return nil, err
						}
					}
					continue
				}
			}

			finfo := structFieldInfo(&f)

			// Add the field if it doesn't conflict with other fields.
			if err := addFieldInfo(typ, tinfo, finfo); err != nil {
				return nil, err
			}
		}
	}
	ltinfo, _ := tinfoMap.LoadOrStore(typ, tinfo)
	return ltinfo.(*typeInfo), nil
}

// structFieldInfo builds and returns a fieldInfo for f.
func structFieldInfo(f *reflect.StructField) *fieldInfo {
	finfo := &fieldInfo{idx: f.Index}
	tokens := strings.Split(f.Tag.Get("plist"), ",")
	for _, flag := range tokens[1:] {
		switch flag {
		case "optional":
			finfo.optional = true
		}
	}
	if tokens[0] == "" {
		// If the name part of the tag is completely empty,
		// use the field name
		finfo.name = f.Name
	} else {
		finfo.name = tokens[0]
	}
	return finfo
}

// addFieldInfo adds finfo to tinfo.fields if there are no
// conflicts, or if conflicts arise from previous fields that were
// obtained from deeper embedded structures than finfo. In the latter
// case, the conflicting entries are dropped.
// Two fields conflict when they map to the same key at the same depth.
func addFieldInfo(typ reflect.Type, tinfo *typeInfo, newf *fieldInfo) error {
	var conflicts []int
	// First, figure all conflicts. Most working code will have none.
	for i := range tinfo.fields {
		if newf.name == tinfo.fields[i].name {
			conflicts = append(conflicts, i)
		}
	}

	// Without conflicts, add the new field and return.
	if conflicts == nil {
		tinfo.fields = append(tinfo.fields, *newf)
		return nil
	}

	// If any conflict is shallower, ignore the new field.
	// This matches the Go field resolution on embedding.
	for _, i := range conflicts {
		if len(tinfo.fields[i].idx) < len(newf.idx) {
			return nil
		}
		if len(tinfo.fields[i].idx) == len(newf.idx) {
			return fmt.Errorf("%s: fields %s and %s share key %q", typ,
				typ.FieldByIndex(tinfo.fields[i].idx).Name, typ.FieldByIndex(newf.idx).Name, newf.name)
		}
	}

	// Otherwise, the new field is shallower, and thus takes precedence,
	// so drop the conflicting fields from tinfo and append the new one.
	for c := len(conflicts) - 1; c >= 0; c-- {
		i := conflicts[c]
		copy(tinfo.fields[i:], tinfo.fields[i+1:])
		tinfo.fields = tinfo.fields[:len(tinfo.fields)-1]
	}
	tinfo.fields = append(tinfo.fields, *newf)
	return nil
}

// value returns v's field value corresponding to finfo.
// It's equivalent to v.FieldByIndex(finfo.idx).
func (finfo *fieldInfo) value(v reflect.Value) reflect.Value {
	return v.FieldByIndex(finfo.idx)
}
