package webarchive

import (
	"io"

	"github.com/zdypro888/webarchive/plist"
)

// Format is the property list encoding of an archive file.
type Format = plist.Format

// Supported encodings.
const (
	XMLFormat    = plist.XMLFormat
	BinaryFormat = plist.BinaryFormat
)

// Decode parses an archive in either encoding.
func Decode(data []byte) (*Archive, error) {
	a, _, err := DecodeFormat(data)
	return a, err
}

// DecodeFormat parses an archive and also reports which encoding it used.
func DecodeFormat(data []byte) (*Archive, Format, error) {
	a := &Archive{}
	format, err := plist.Unmarshal(data, a)
	if err != nil {
		return nil, plist.InvalidFormat, err
	}
	a.normalize()
	return a, format, nil
}

// Read decodes an archive from r, which is read to the end.
func Read(r io.Reader) (*Archive, error) {
	a := &Archive{}
	if err := plist.NewDecoder(r).Decode(a); err != nil {
		return nil, err
	}
	a.normalize()
	return a, nil
}

// EncodeXML returns a in the XML encoding, laid out as Safari writes it.
func EncodeXML(a *Archive) ([]byte, error) {
	return Encode(a, XMLFormat)
}

// EncodeBinary returns a in the bplist00 encoding.
func EncodeBinary(a *Archive) ([]byte, error) {
	return Encode(a, BinaryFormat)
}

// Encode returns a in the given encoding. The archive is validated first;
// nothing is produced for an invalid archive.
func Encode(a *Archive, format Format) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return plist.Marshal(a, format)
}

// Write encodes a to w. Nothing is written for an invalid archive.
func Write(w io.Writer, a *Archive, format Format) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return plist.NewEncoderForFormat(w, format).Encode(a)
}

// normalize drops empty optional strings, which browsers write for
// resources without an encoding or frame name.
func (a *Archive) normalize() {
	a.MainResource.normalize()
	for i := range a.Subresources {
		a.Subresources[i].normalize()
	}
	for _, sub := range a.SubframeArchives {
		sub.normalize()
	}
}

func (r *Resource) normalize() {
	if r.TextEncodingName != nil && *r.TextEncodingName == "" {
		r.TextEncodingName = nil
	}
	if r.FrameName != nil && *r.FrameName == "" {
		r.FrameName = nil
	}
}
