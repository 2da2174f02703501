package plist

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// bplistObject is one entry of the flattened object table. refs holds the
// table indices of a container's children: an array's values, or a
// dictionary's keys followed by its values.
type bplistObject struct {
	value cfValue
	refs  []uint64
}

type bplistGenerator struct {
	writer  *countedWriter
	objects []bplistObject
	strings map[string]uint64
	refSize uint8
}

type countedWriter struct {
	w   *bufio.Writer
	pos uint64
}

func (c *countedWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.pos += uint64(n)
	if err != nil {
		panic(err)
	}
	return n, nil
}

func (c *countedWriter) WriteByte(b byte) error {
	_, err := c.Write([]byte{b})
	return err
}

func newBplistGenerator(w io.Writer) *bplistGenerator {
	return &bplistGenerator{
		writer:  &countedWriter{w: bufio.NewWriter(w)},
		strings: make(map[string]uint64),
	}
}

// flatten appends v and its descendants to the object table in depth-first
// order and returns v's index. Equal strings share one entry.
func (p *bplistGenerator) flatten(v cfValue) uint64 {
	if s, ok := v.(cfString); ok {
		if idx, ok := p.strings[string(s)]; ok {
			return idx
		}
		p.strings[string(s)] = uint64(len(p.objects))
	}

	idx := uint64(len(p.objects))
	p.objects = append(p.objects, bplistObject{value: v})

	var refs []uint64
	switch v := v.(type) {
	case *cfArray:
		refs = make([]uint64, 0, len(v.values))
		for _, child := range v.values {
			refs = append(refs, p.flatten(child))
		}
	case *cfDictionary:
		refs = make([]uint64, 0, 2*len(v.keys))
		for _, k := range v.keys {
			refs = append(refs, p.flatten(cfString(k)))
		}
		for _, child := range v.values {
			refs = append(refs, p.flatten(child))
		}
	}
	p.objects[idx].refs = refs
	return idx
}

func (p *bplistGenerator) generateDocument(root cfValue) (err error) {
	defer func() { recoverError(recover(), &err) }()

	if root == nil {
		return errEmptyDocument
	}
	p.flatten(root)
	p.refSize = minimumSizeForInt(uint64(len(p.objects)))

	p.writer.Write([]byte(bplistMagic + bplistVersion))

	offsets := make([]uint64, len(p.objects))
	for i := range p.objects {
		offsets[i] = p.writer.pos
		p.writeObject(&p.objects[i])
	}

	trailer := bplistTrailer{
		NumObjects:        uint64(len(p.objects)),
		TopObject:         0,
		OffsetTableOffset: p.writer.pos,
		ObjectRefSize:     p.refSize,
		OffsetIntSize:     minimumSizeForInt(offsets[len(offsets)-1]),
	}
	for _, off := range offsets {
		p.writeSizedInt(off, trailer.OffsetIntSize)
	}
	if err := binary.Write(p.writer, binary.BigEndian, &trailer); err != nil {
		return err
	}
	return p.writer.w.Flush()
}

func (p *bplistGenerator) writeSizedInt(n uint64, size uint8) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	p.writer.Write(buf[8-size:])
}

// writeCountOrMarker writes a marker whose low nibble holds count, or the
// 0xF escape followed by an integer object when count does not fit.
func (p *bplistGenerator) writeCountOrMarker(tag uint8, count uint64) {
	if count < 0x0F {
		p.writer.WriteByte(tag | uint8(count))
		return
	}
	p.writer.WriteByte(tag | 0x0F)
	p.writeIntTag(count)
}

func (p *bplistGenerator) writeIntTag(n uint64) {
	size := minimumSizeForInt(n)
	var nibble uint8
	switch size {
	case 1:
		nibble = 0
	case 2:
		nibble = 1
	case 4:
		nibble = 2
	case 8:
		nibble = 3
	}
	p.writer.WriteByte(bpTagInteger | nibble)
	p.writeSizedInt(n, size)
}

func (p *bplistGenerator) writeRefs(refs []uint64) {
	for _, ref := range refs {
		p.writeSizedInt(ref, p.refSize)
	}
}

func (p *bplistGenerator) writeObject(obj *bplistObject) {
	switch v := obj.value.(type) {
	case cfString:
		p.writeStringTag(string(v))
	case cfData:
		p.writeCountOrMarker(bpTagData, uint64(len(v)))
		p.writer.Write(v)
	case cfBoolean:
		if v {
			p.writer.WriteByte(bpTagBoolTrue)
		} else {
			p.writer.WriteByte(bpTagBoolFalse)
		}
	case *cfNumber:
		switch {
		case v.signed:
			p.writer.WriteByte(bpTagInteger | 3)
			p.writeSizedInt(v.value, 8)
		case v.value > math.MaxInt64:
			p.writer.WriteByte(bpTagInteger | 4)
			p.writeSizedInt(0, 8)
			p.writeSizedInt(v.value, 8)
		default:
			p.writeIntTag(v.value)
		}
	case *cfReal:
		if v.wide {
			p.writer.WriteByte(bpTagReal | 3)
			p.writeSizedInt(math.Float64bits(v.value), 8)
		} else {
			p.writer.WriteByte(bpTagReal | 2)
			p.writeSizedInt(uint64(math.Float32bits(float32(v.value))), 4)
		}
	case cfDate:
		p.writer.WriteByte(bpTagDate | 3)
		p.writeSizedInt(math.Float64bits(secondsFromDate(time.Time(v))), 8)
	case cfUID:
		size := minimumSizeForInt(uint64(v))
		p.writer.WriteByte(bpTagUID | (size - 1))
		p.writeSizedInt(uint64(v), size)
	case *cfArray:
		p.writeCountOrMarker(bpTagArray, uint64(len(v.values)))
		p.writeRefs(obj.refs)
	case *cfDictionary:
		p.writeCountOrMarker(bpTagDictionary, uint64(len(v.keys)))
		p.writeRefs(obj.refs)
	default:
		panic(&EncodingError{Err: fmt.Errorf("unknown property list value %T", v)})
	}
}

func (p *bplistGenerator) writeStringTag(s string) {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			u, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
			if err != nil {
				panic(&EncodingError{Err: err})
			}
			p.writeCountOrMarker(bpTagUTF16String, uint64(len(u)/2))
			p.writer.Write(u)
			return
		}
	}
	p.writeCountOrMarker(bpTagASCIIString, uint64(len(s)))
	p.writer.Write([]byte(s))
}

var errEmptyDocument = errors.New("nothing to encode")
