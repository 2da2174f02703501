package plist

import (
	"bytes"
	"fmt"
	"io"
)

// An Encoder writes a property list to an output stream.
type Encoder struct {
	writer io.Writer
	format Format
}

// Encode writes the property list encoding of v to the stream.
func (p *Encoder) Encode(v interface{}) error {
	pval, err := marshalValue(v)
	if err != nil {
		return err
	}
	return p.encodeValue(pval)
}

func (p *Encoder) encodeValue(pval cfValue) error {
	switch p.format {
	case XMLFormat:
		return newXMLPlistGenerator(p.writer).generateDocument(pval)
	case BinaryFormat:
		return newBplistGenerator(p.writer).generateDocument(pval)
	}
	return fmt.Errorf("plist: cannot encode %v", p.format)
}

// NewEncoder returns an Encoder that writes an XML property list to w.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderForFormat(w, XMLFormat)
}

// NewEncoderForFormat returns an Encoder that writes a property list to w
// in the specified format.
func NewEncoderForFormat(w io.Writer, format Format) *Encoder {
	return &Encoder{writer: w, format: format}
}

// NewBinaryEncoder returns an Encoder that writes a binary property list
// to w.
func NewBinaryEncoder(w io.Writer) *Encoder {
	return NewEncoderForFormat(w, BinaryFormat)
}

// Marshal returns the property list encoding of v in the specified format.
func Marshal(v interface{}, format Format) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := NewEncoderForFormat(buf, format).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
