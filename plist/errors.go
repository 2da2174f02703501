package plist

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// TruncatedError is returned when the input ends before a structure the
// format requires.
type TruncatedError struct {
	Format string
	Offset uint64 // where the missing structure starts
	Need   uint64 // bytes it requires
	Have   uint64 // bytes actually available from Offset
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("plist: truncated %s property list: need %d bytes at offset %d, have %d", e.Format, e.Need, e.Offset, e.Have)
}

// FormatError is returned for input that is not a well-formed property list
// in the given encoding.
type FormatError struct {
	Format string
	Offset int64 // -1 when no position is known
	Err    error
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("plist: invalid %s property list: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("plist: invalid %s property list at offset %d: %v", e.Format, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// SchemaError is returned by Unmarshal when a well-formed property list does
// not have the shape of the destination value.
type SchemaError struct {
	Path string // location of the offending value, e.g. "WebSubframeArchives[0].WebMainResource"
	Key  string // the missing or mistyped key, if any
	Err  error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("plist: schema error")
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// EncodingError is returned by Marshal when a Go value cannot be represented
// as a property list.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Path == "" {
		return "plist: cannot encode value: " + e.Err.Error()
	}
	return fmt.Sprintf("plist: cannot encode value at %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

var (
	errMissingKey   = errors.New("missing required key")
	errMissingValue = errors.New("missing value in dictionary")
	errDuplicateKey = errors.New("duplicate dictionary key")
)

// recoverError converts a panic raised by one of the recursive coders into
// an error. Runtime errors are programming mistakes and keep unwinding.
func recoverError(r interface{}, errp *error) {
	if r == nil {
		return
	}
	if _, ok := r.(runtime.Error); ok {
		panic(r)
	}
	if err, ok := r.(error); ok {
		*errp = err
		return
	}
	panic(r)
}
