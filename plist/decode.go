package plist

import (
	"bytes"
	"io"
)

// A Decoder reads a property list from an input stream. The whole stream
// is read into memory before parsing.
type Decoder struct {
	// the format of the most-recently-decoded property list
	Format Format

	reader io.Reader
}

// Decode reads a property list, detecting its format, and stores it in the
// value pointed to by v.
func (p *Decoder) Decode(v interface{}) error {
	data, err := io.ReadAll(p.reader)
	if err != nil {
		return err
	}
	p.Format, err = Unmarshal(data, v)
	return err
}

// NewDecoder returns a Decoder that reads a property list from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// DetectFormat reports the encoding data appears to use. Anything that is
// not a binary property list is assumed to be XML.
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, []byte(bplistMagic)) {
		return BinaryFormat
	}
	return XMLFormat
}

func parseValue(data []byte) (cfValue, Format, error) {
	format := DetectFormat(data)
	var (
		pval cfValue
		err  error
	)
	switch format {
	case BinaryFormat:
		pval, err = newBplistParser(data).parseDocument()
	default:
		pval, err = newXMLPlistParser(bytes.NewReader(data)).parseDocument()
	}
	if err != nil {
		return nil, InvalidFormat, err
	}
	return pval, format, nil
}

// Unmarshal parses a property list held in data and stores the result in
// the value pointed to by v. It returns the format the data was in.
func Unmarshal(data []byte, v interface{}) (format Format, err error) {
	pval, format, err := parseValue(data)
	if err != nil {
		return InvalidFormat, err
	}
	if err := unmarshalValue(pval, v); err != nil {
		return format, err
	}
	return format, nil
}
