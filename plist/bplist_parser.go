package plist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrReferenceOutOfRange is wrapped by the FormatError returned when an
	// object reference points outside the object table.
	ErrReferenceOutOfRange = errors.New("object reference out of range")

	// ErrCyclicReference is wrapped by the FormatError returned when a
	// container references itself, directly or indirectly.
	ErrCyclicReference = errors.New("cyclic object reference")
)

// bplistParser resolves the flat object table of a binary property list
// into a tree. Leaf objects are memoized by index, containers are rebuilt
// for every reference so that no node is shared.
type bplistParser struct {
	buf     []byte
	trailer bplistTrailer
	offsets []uint64

	leaves   map[uint64]cfValue
	active   map[uint64]bool
	nodes    uint64
	maxNodes uint64
}

func newBplistParser(buf []byte) *bplistParser {
	return &bplistParser{
		buf:      buf,
		leaves:   make(map[uint64]cfValue),
		active:   make(map[uint64]bool),
		maxNodes: uint64(len(buf)) * bplistExpansionFactor,
	}
}

func (p *bplistParser) parseDocument() (pval cfValue, parseError error) {
	defer func() { recoverError(recover(), &parseError) }()

	p.readHeader()
	p.readTrailer()
	p.readOffsetTable()

	pval = p.objectAt(uint64(len(p.buf))-bplistTrailerLen, p.trailer.TopObject)
	return
}

func (p *bplistParser) fail(off uint64, err error) {
	panic(&FormatError{Format: "binary", Offset: int64(off), Err: err})
}

func (p *bplistParser) truncated(off, need uint64) {
	var have uint64
	if off < uint64(len(p.buf)) {
		have = uint64(len(p.buf)) - off
	}
	panic(&TruncatedError{Format: "binary", Offset: off, Need: need, Have: have})
}

func (p *bplistParser) readHeader() {
	if len(p.buf) < bplistHeaderLen {
		if bytes.HasPrefix([]byte(bplistMagic+bplistVersion), p.buf) {
			p.truncated(0, bplistHeaderLen)
		}
		p.fail(0, errors.New("missing bplist header"))
	}
	if string(p.buf[:len(bplistMagic)]) != bplistMagic {
		p.fail(0, fmt.Errorf("bad magic %q", p.buf[:len(bplistMagic)]))
	}
	version := p.buf[len(bplistMagic):bplistHeaderLen]
	if version[0] != bplistVersion[0] || version[1] < '0' || version[1] > '9' {
		p.fail(uint64(len(bplistMagic)), fmt.Errorf("unsupported version %q", version))
	}
}

func (p *bplistParser) readTrailer() {
	size := uint64(len(p.buf))
	if size < bplistHeaderLen+bplistTrailerLen {
		p.truncated(bplistHeaderLen, bplistTrailerLen)
	}
	trailerStart := size - bplistTrailerLen
	err := binary.Read(bytes.NewReader(p.buf[trailerStart:]), binary.BigEndian, &p.trailer)
	if err != nil {
		p.fail(trailerStart, err)
	}

	t := &p.trailer
	switch {
	case !validIntSize(t.OffsetIntSize):
		p.fail(trailerStart, fmt.Errorf("invalid offset size %d", t.OffsetIntSize))
	case !validIntSize(t.ObjectRefSize):
		p.fail(trailerStart, fmt.Errorf("invalid object reference size %d", t.ObjectRefSize))
	case t.NumObjects == 0:
		p.fail(trailerStart, errors.New("empty object table"))
	case t.TopObject >= t.NumObjects:
		p.fail(trailerStart, fmt.Errorf("top object: %w: %d not in [0, %d)", ErrReferenceOutOfRange, t.TopObject, t.NumObjects))
	case t.OffsetTableOffset < bplistHeaderLen:
		p.fail(trailerStart, fmt.Errorf("offset table starts inside header at %d", t.OffsetTableOffset))
	}

	hi, need := bits.Mul64(t.NumObjects, uint64(t.OffsetIntSize))
	if hi != 0 {
		need = math.MaxUint64
	}
	if t.OffsetTableOffset > trailerStart || need > trailerStart-t.OffsetTableOffset {
		p.truncated(t.OffsetTableOffset, need)
	}
}

func (p *bplistParser) readOffsetTable() {
	t := &p.trailer
	size := uint64(t.OffsetIntSize)
	p.offsets = make([]uint64, t.NumObjects)
	for i := range p.offsets {
		entry := t.OffsetTableOffset + uint64(i)*size
		off := readSizedInt(p.buf[entry : entry+size])
		if off < bplistHeaderLen || off >= t.OffsetTableOffset {
			p.fail(entry, fmt.Errorf("object %d at offset %d lies outside the object table", i, off))
		}
		p.offsets[i] = off
	}
}

func readSizedInt(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}

// slice returns n bytes at off, failing if the buffer holds fewer.
func (p *bplistParser) slice(off, n uint64) []byte {
	size := uint64(len(p.buf))
	if off > size || n > size-off {
		p.truncated(off, n)
	}
	return p.buf[off : off+n]
}

// objectAt resolves the object with index ref, referenced from offset from.
func (p *bplistParser) objectAt(from, ref uint64) cfValue {
	if ref >= p.trailer.NumObjects {
		p.fail(from, fmt.Errorf("%w: %d not in [0, %d)", ErrReferenceOutOfRange, ref, p.trailer.NumObjects))
	}
	p.nodes++
	if p.nodes > p.maxNodes {
		p.fail(p.offsets[ref], fmt.Errorf("object graph expands beyond %d nodes", p.maxNodes))
	}
	if v, ok := p.leaves[ref]; ok {
		return v
	}
	if p.active[ref] {
		p.fail(p.offsets[ref], fmt.Errorf("%w: object %d", ErrCyclicReference, ref))
	}
	return p.parseObject(ref, p.offsets[ref])
}

func (p *bplistParser) parseObject(ref, off uint64) cfValue {
	marker := p.slice(off, 1)[0]
	switch marker & 0xF0 {
	case bpTagNull:
		var v cfValue
		switch marker {
		case bpTagBoolFalse:
			v = cfBoolean(false)
		case bpTagBoolTrue:
			v = cfBoolean(true)
		default:
			p.fail(off, fmt.Errorf("unsupported object type 0x%02x", marker))
		}
		p.leaves[ref] = v
		return v
	case bpTagInteger:
		v := p.parseInteger(off)
		p.leaves[ref] = v
		return v
	case bpTagReal:
		v := p.parseReal(off, marker)
		p.leaves[ref] = v
		return v
	case bpTagDate:
		v := p.parseDate(off, marker)
		p.leaves[ref] = v
		return v
	case bpTagData:
		count, start := p.countAt(off)
		data := make([]byte, count)
		copy(data, p.slice(start, count))
		v := cfData(data)
		p.leaves[ref] = v
		return v
	case bpTagASCIIString:
		count, start := p.countAt(off)
		v := cfString(p.decodeASCII(start, p.slice(start, count)))
		p.leaves[ref] = v
		return v
	case bpTagUTF16String:
		count, start := p.countAt(off)
		raw := p.slice(start, count*2)
		s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err != nil {
			p.fail(start, err)
		}
		v := cfString(s)
		p.leaves[ref] = v
		return v
	case bpTagUID:
		n := uint64(marker&0x0F) + 1
		if n > 8 {
			p.fail(off, fmt.Errorf("UID of %d bytes", n))
		}
		v := cfUID(readSizedInt(p.slice(off+1, n)))
		p.leaves[ref] = v
		return v
	case bpTagArray:
		p.active[ref] = true
		defer delete(p.active, ref)
		return p.parseArray(off)
	case bpTagDictionary:
		p.active[ref] = true
		defer delete(p.active, ref)
		return p.parseDictionary(off)
	}
	p.fail(off, fmt.Errorf("unknown object type 0x%02x", marker))
	return nil
}

// countAt returns the element count encoded in the marker at off and the
// offset of the first byte after it.
func (p *bplistParser) countAt(off uint64) (count, start uint64) {
	info := p.slice(off, 1)[0] & 0x0F
	if info != 0x0F {
		return uint64(info), off + 1
	}
	marker := p.slice(off+1, 1)[0]
	if marker&0xF0 != bpTagInteger || marker&0x0F > 3 {
		p.fail(off+1, fmt.Errorf("invalid length marker 0x%02x", marker))
	}
	n := uint64(1) << (marker & 0x0F)
	count = readSizedInt(p.slice(off+2, n))
	start = off + 2 + n
	if count > uint64(len(p.buf)) {
		p.truncated(start, count)
	}
	return count, start
}

func (p *bplistParser) parseInteger(off uint64) *cfNumber {
	nibble := p.slice(off, 1)[0] & 0x0F
	switch nibble {
	case 0, 1, 2:
		return newUnsignedNumber(readSizedInt(p.slice(off+1, 1<<nibble)))
	case 3:
		return newSignedNumber(int64(readSizedInt(p.slice(off+1, 8))))
	case 4:
		b := p.slice(off+1, 16)
		hi, lo := readSizedInt(b[:8]), readSizedInt(b[8:])
		switch {
		case hi == 0:
			return newUnsignedNumber(lo)
		case hi == math.MaxUint64 && int64(lo) < 0:
			return newSignedNumber(int64(lo))
		}
		p.fail(off, errors.New("integer does not fit in 64 bits"))
	}
	p.fail(off, fmt.Errorf("integer of %d bytes", 1<<nibble))
	return nil
}

func (p *bplistParser) parseReal(off uint64, marker uint8) *cfReal {
	switch marker & 0x0F {
	case 2:
		bits := uint32(readSizedInt(p.slice(off+1, 4)))
		return &cfReal{wide: false, value: float64(math.Float32frombits(bits))}
	case 3:
		bits := readSizedInt(p.slice(off+1, 8))
		return &cfReal{wide: true, value: math.Float64frombits(bits)}
	}
	p.fail(off, fmt.Errorf("unsupported real marker 0x%02x", marker))
	return nil
}

func (p *bplistParser) parseDate(off uint64, marker uint8) cfDate {
	if marker != bpTagDate|3 {
		p.fail(off, fmt.Errorf("unsupported date marker 0x%02x", marker))
	}
	secs := math.Float64frombits(readSizedInt(p.slice(off+1, 8)))
	if math.IsNaN(secs) || math.Abs(secs) > maxDateSeconds {
		p.fail(off, fmt.Errorf("date %v out of range", secs))
	}
	return cfDate(dateFromSeconds(secs))
}

// decodeASCII decodes a single-byte string object. Bytes above 0x7f are not
// valid ASCII; they are read as Latin-1 rather than rejected.
func (p *bplistParser) decodeASCII(off uint64, b []byte) string {
	for _, c := range b {
		if c >= 0x80 {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
			if err != nil {
				p.fail(off, err)
			}
			return string(s)
		}
	}
	return string(b)
}

func (p *bplistParser) refsAt(start, count uint64) []uint64 {
	size := uint64(p.trailer.ObjectRefSize)
	raw := p.slice(start, count*size)
	refs := make([]uint64, count)
	for i := range refs {
		refs[i] = readSizedInt(raw[uint64(i)*size : uint64(i+1)*size])
	}
	return refs
}

func (p *bplistParser) parseArray(off uint64) *cfArray {
	count, start := p.countAt(off)
	refs := p.refsAt(start, count)
	values := make([]cfValue, len(refs))
	for i, ref := range refs {
		values[i] = p.objectAt(off, ref)
	}
	return &cfArray{values: values}
}

func (p *bplistParser) parseDictionary(off uint64) *cfDictionary {
	count, start := p.countAt(off)
	refs := p.refsAt(start, count*2)
	keys := make([]string, count)
	values := make([]cfValue, count)
	seen := make(map[string]bool, count)
	for i := uint64(0); i < count; i++ {
		k, ok := p.objectAt(off, refs[i]).(cfString)
		if !ok {
			p.fail(off, fmt.Errorf("dictionary key %d is not a string", i))
		}
		if seen[string(k)] {
			p.fail(off, fmt.Errorf("%w %q", errDuplicateKey, k))
		}
		seen[string(k)] = true
		keys[i] = string(k)
	}
	for i := uint64(0); i < count; i++ {
		values[i] = p.objectAt(off, refs[count+i])
	}
	return &cfDictionary{keys: keys, values: values}
}

// maxDateSeconds keeps dates well inside the range of time.Time.
const maxDateSeconds = 1 << 52

func dateFromSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole)+bplistEpoch.Unix(), int64(math.Round(frac*1e9))).UTC()
}

func secondsFromDate(t time.Time) float64 {
	return float64(t.Unix()-bplistEpoch.Unix()) + float64(t.Nanosecond())/1e9
}
