// Package plist reads and writes Apple property lists in the XML and binary
// encodings.
//
// Documents are first converted to an ordered tree of property list values
// and then mapped onto Go values by reflection. Struct fields are matched to
// dictionary keys through the "plist" struct tag:
//
//	type Resource struct {
//		URL      string  `plist:"WebResourceURL"`
//		Encoding *string `plist:"WebResourceTextEncodingName,optional"`
//	}
//
// Keys are written in field order. A required field whose key is missing
// makes Unmarshal fail with a *SchemaError; an optional field holding a nil
// pointer, slice or map is left out when marshalling. Keys without a field
// are ignored.
//
// All decoding works on a buffer held fully in memory, and every length or
// offset read from the input is checked against that buffer before use.
package plist

import "fmt"

// Format is a property list encoding.
type Format int

const (
	// InvalidFormat is returned when decoding fails.
	InvalidFormat Format = iota
	// XMLFormat is Apple's XML property list encoding.
	XMLFormat
	// BinaryFormat is Apple's bplist00 encoding.
	BinaryFormat
)

// FormatNames maps formats to their human-readable names.
var FormatNames = map[Format]string{
	InvalidFormat: "unknown/invalid",
	XMLFormat:     "XML",
	BinaryFormat:  "binary",
}

func (f Format) String() string {
	if name, ok := FormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}
