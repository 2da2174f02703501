package plist

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/go-cmp/cmp"
)

var cfCompareOptions = cmp.Options{
	cmp.AllowUnexported(cfDictionary{}, cfArray{}, cfNumber{}),
	cmp.Comparer(func(a, b *cfReal) bool {
		if a == nil || b == nil {
			return a == b
		}
		if math.IsNaN(a.value) && math.IsNaN(b.value) {
			return true
		}
		return a.value == b.value
	}),
	cmp.Comparer(func(a, b cfDate) bool {
		return time.Time(a).Equal(time.Time(b))
	}),
	cmp.Comparer(func(a, b cfData) bool {
		return string(a) == string(b)
	}),
}

// cfEqual reports whether two property list trees are structurally equal.
// Reals compare by value regardless of width and dates by instant.
func cfEqual(a, b cfValue) bool {
	return cmp.Equal(a, b, cfCompareOptions)
}

func dict(kv ...interface{}) *cfDictionary {
	d := &cfDictionary{}
	for i := 0; i < len(kv); i += 2 {
		d.keys = append(d.keys, kv[i].(string))
		d.values = append(d.values, kv[i+1].(cfValue))
	}
	return d
}

func array(values ...cfValue) *cfArray {
	if values == nil {
		values = []cfValue{}
	}
	return &cfArray{values: values}
}

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)

func integer(n int64) *cfNumber { return newSignedNumber(n) }

func real64(f float64) *cfReal { return &cfReal{wide: true, value: f} }

func date(s string) cfDate {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return cfDate(t)
}

// sampleValues covers every value kind the codecs support.
var sampleValues = []struct {
	name  string
	value cfValue
}{
	{"string", cfString("hello")},
	{"empty string", cfString("")},
	{"unicode string", cfString("héllo wörld ☃ 𝄞")},
	{"data", cfData("hello world")},
	{"empty data", cfData{}},
	{"true", cfBoolean(true)},
	{"false", cfBoolean(false)},
	{"small int", integer(42)},
	{"negative int", integer(-42)},
	{"min int64", integer(math.MinInt64)},
	{"max int64", integer(math.MaxInt64)},
	{"max uint64", newUnsignedNumber(math.MaxUint64)},
	{"16 bit int", integer(0x1234)},
	{"32 bit int", integer(0x12345678)},
	{"real", real64(3.25)},
	{"negative real", real64(-0.5)},
	{"date", date("2020-01-02T03:04:05Z")},
	{"date before epoch", date("1990-06-01T12:00:00Z")},
	{"uid", cfUID(7)},
	{"empty array", array()},
	{"empty dict", dict()},
	{"nested", dict(
		"WebMainResource", dict(
			"WebResourceData", cfData("<html></html>"),
			"WebResourceURL", cfString("https://example.com/"),
			"WebResourceMIMEType", cfString("text/html"),
		),
		"WebSubresources", array(
			dict("WebResourceURL", cfString("https://example.com/a.png"), "n", integer(1)),
			dict("WebResourceURL", cfString("https://example.com/b.png"), "n", integer(2)),
		),
		"flags", array(cfBoolean(true), cfBoolean(false), real64(1.5)),
	)},
	{"long array", func() cfValue {
		a := array()
		for i := 0; i < 300; i++ {
			a.values = append(a.values, integer(int64(i)))
		}
		return a
	}()},
	{"insertion order kept", dict("z", integer(1), "a", integer(2), "m", integer(3))},
	{"long string", cfString("abcdefghijklmnopqrstuvwxyz0123456789")},
	{"carriage return", cfString("a\rb")},
	{"crlf", cfString("line one\r\nline two\r\n")},
	{"carriage return in key", dict("a\rb", cfString("\r"))},
	{"control characters", cfString("tab\tnewline\n")},
}

// bplistDocument assembles a binary property list from raw object bytes,
// using one-byte offsets.
func bplistDocument(refSize uint8, top uint64, objects ...[]byte) []byte {
	buf := []byte(bplistMagic + bplistVersion)
	offsets := make([]byte, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, byte(len(buf)))
		buf = append(buf, obj...)
	}
	tableOffset := uint64(len(buf))
	buf = append(buf, offsets...)
	return appendTrailer(buf, bplistTrailer{
		OffsetIntSize:     1,
		ObjectRefSize:     refSize,
		NumObjects:        uint64(len(objects)),
		TopObject:         top,
		OffsetTableOffset: tableOffset,
	})
}

func appendTrailer(buf []byte, t bplistTrailer) []byte {
	var raw [bplistTrailerLen]byte
	raw[6] = t.OffsetIntSize
	raw[7] = t.ObjectRefSize
	binary.BigEndian.PutUint64(raw[8:], t.NumObjects)
	binary.BigEndian.PutUint64(raw[16:], t.TopObject)
	binary.BigEndian.PutUint64(raw[24:], t.OffsetTableOffset)
	return append(buf, raw[:]...)
}
