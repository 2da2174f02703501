package webarchive

import "github.com/zdypro888/webarchive/plist"

// Error kinds returned by this package. They are the property list errors
// themselves, so errors.As works with either name.
type (
	// TruncatedError reports input that ends before a required structure.
	TruncatedError = plist.TruncatedError
	// FormatError reports input that is not a well-formed property list.
	FormatError = plist.FormatError
	// SchemaError reports a property list that is not a web archive.
	SchemaError = plist.SchemaError
	// EncodingError reports an Archive that cannot be written.
	EncodingError = plist.EncodingError
)

// Sentinel causes wrapped by FormatError.
var (
	ErrReferenceOutOfRange = plist.ErrReferenceOutOfRange
	ErrCyclicReference     = plist.ErrCyclicReference
)
