package webarchive

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Resource is one item fetched while loading a page: a document, image,
// script, style sheet and so on.
//
// Field order is the key order used when encoding.
type Resource struct {
	// Data holds the raw bytes of the resource, interpreted according to
	// MIMEType and, for text, TextEncodingName.
	Data []byte `plist:"WebResourceData"`

	URL      string `plist:"WebResourceURL"`
	MIMEType string `plist:"WebResourceMIMEType"`

	// TextEncodingName is set for text resources, e.g. "UTF-8".
	TextEncodingName *string `plist:"WebResourceTextEncodingName,optional"`

	// FrameName is the name of the frame this resource is the document of.
	FrameName *string `plist:"WebResourceFrameName,optional"`

	// Response is the serialized response object recorded by the browser.
	// It is stored and written back byte for byte, never interpreted.
	Response []byte `plist:"WebResourceResponse,optional"`
}

// Archive is the content of one page or frame.
//
// A nil Subresources or SubframeArchives is absent from the encoded file;
// a non-nil empty slice is written as an empty array. Both states survive a
// round trip.
type Archive struct {
	MainResource     Resource   `plist:"WebMainResource"`
	Subresources     []Resource `plist:"WebSubresources,optional"`
	SubframeArchives []*Archive `plist:"WebSubframeArchives,optional"`
}

// ResourceOption configures a Resource built by NewResource.
type ResourceOption func(*Resource)

// WithTextEncodingName sets the text encoding of a resource.
func WithTextEncodingName(name string) ResourceOption {
	return func(r *Resource) {
		r.TextEncodingName = &name
	}
}

// WithFrameName sets the name of the frame a resource is the document of.
func WithFrameName(name string) ResourceOption {
	return func(r *Resource) {
		r.FrameName = &name
	}
}

// WithResponse attaches a serialized response object to a resource.
func WithResponse(response []byte) ResourceOption {
	return func(r *Resource) {
		r.Response = response
	}
}

// NewResource returns a resource with the required fields set. A nil data
// is stored as an empty payload.
func NewResource(url, mimeType string, data []byte, opts ...ResourceOption) Resource {
	if data == nil {
		data = []byte{}
	}
	r := Resource{
		Data:     data,
		URL:      url,
		MIMEType: mimeType,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// ArchiveOption configures an Archive built by NewArchive.
type ArchiveOption func(*Archive)

// WithSubresources sets the subresources of an archive. Passing no
// resources records an empty, present list.
func WithSubresources(resources ...Resource) ArchiveOption {
	return func(a *Archive) {
		a.Subresources = append([]Resource{}, resources...)
	}
}

// WithSubframeArchives sets the archives of the page's subframes. Passing
// no archives records an empty, present list.
func WithSubframeArchives(archives ...*Archive) ArchiveOption {
	return func(a *Archive) {
		a.SubframeArchives = append([]*Archive{}, archives...)
	}
}

// NewArchive returns an archive whose page document is main.
func NewArchive(main Resource, opts ...ArchiveOption) *Archive {
	a := &Archive{MainResource: main}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var (
	errEmptyString     = errors.New("must not be empty")
	errInvalidUTF8     = errors.New("is not valid UTF-8")
	errNilArchive      = errors.New("nil archive")
	errCyclicSubframes = errors.New("archive contains itself as a subframe")
)

// Validate reports whether a can be encoded. It returns an *EncodingError
// naming the first offending field.
func (a *Archive) Validate() error {
	if a == nil {
		return &EncodingError{Err: errNilArchive}
	}
	return a.validate("", make(map[*Archive]bool))
}

func (a *Archive) validate(path string, active map[*Archive]bool) error {
	if active[a] {
		return &EncodingError{Path: path, Err: errCyclicSubframes}
	}
	active[a] = true
	defer delete(active, a)

	if err := a.MainResource.validate(joinPath(path, "WebMainResource")); err != nil {
		return err
	}
	for i := range a.Subresources {
		if err := a.Subresources[i].validate(fmt.Sprintf("%s[%d]", joinPath(path, "WebSubresources"), i)); err != nil {
			return err
		}
	}
	for i, sub := range a.SubframeArchives {
		subpath := fmt.Sprintf("%s[%d]", joinPath(path, "WebSubframeArchives"), i)
		if sub == nil {
			return &EncodingError{Path: subpath, Err: errNilArchive}
		}
		if err := sub.validate(subpath, active); err != nil {
			return err
		}
	}
	return nil
}

// validate checks the strings of r. The URL and MIME type may be empty, as
// they may be in a decoded archive. Optional strings, when present, must not
// be: an empty one would decode as absent.
func (r *Resource) validate(path string) error {
	check := func(key, value string, optional bool) error {
		if optional && value == "" {
			return &EncodingError{Path: joinPath(path, key), Err: errEmptyString}
		}
		if !utf8.ValidString(value) {
			return &EncodingError{Path: joinPath(path, key), Err: errInvalidUTF8}
		}
		return nil
	}
	if err := check("WebResourceURL", r.URL, false); err != nil {
		return err
	}
	if err := check("WebResourceMIMEType", r.MIMEType, false); err != nil {
		return err
	}
	if r.TextEncodingName != nil {
		if err := check("WebResourceTextEncodingName", *r.TextEncodingName, true); err != nil {
			return err
		}
	}
	if r.FrameName != nil {
		if err := check("WebResourceFrameName", *r.FrameName, true); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
