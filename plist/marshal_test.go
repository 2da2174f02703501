package plist

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type page struct {
	URL      string  `plist:"URL"`
	Title    *string `plist:"Title,optional"`
	Body     []byte  `plist:"Body"`
	Children []page  `plist:"Children,optional"`
	hidden   int
}

type record struct {
	Name    string            `plist:"name"`
	Count   int32             `plist:"count"`
	Size    uint16            `plist:"size"`
	Ratio   float64           `plist:"ratio"`
	Small   float32           `plist:"small"`
	On      bool              `plist:"on"`
	When    time.Time         `plist:"when"`
	Ref     UID               `plist:"ref"`
	Tags    map[string]string `plist:"tags"`
	Ignored string            `plist:"-"`
	Plain   string
}

func strPtr(s string) *string { return &s }

func TestMarshalFieldOrder(t *testing.T) {
	got, err := marshalValue(page{URL: "u", Title: strPtr("t"), Body: []byte("b")})
	if err != nil {
		t.Fatal(err)
	}
	want := dict("URL", cfString("u"), "Title", cfString("t"), "Body", cfData("b"))
	if !cfEqual(want, got) {
		t.Errorf("(-want +got):\n%s", cmp.Diff(want, got, cfCompareOptions))
	}
}

func TestMarshalOptional(t *testing.T) {
	tests := []struct {
		name string
		in   page
		keys []string
	}{
		{"nil optionals are left out", page{URL: "u", Body: []byte{}}, []string{"URL", "Body"}},
		{"empty slice is written", page{URL: "u", Body: []byte{}, Children: []page{}}, []string{"URL", "Body", "Children"}},
		{"empty string pointer is written", page{URL: "u", Title: strPtr(""), Body: []byte{}}, []string{"URL", "Title", "Body"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := marshalValue(test.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.keys, got.(*cfDictionary).keys); diff != "" {
				t.Errorf("keys (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalRequiredNil(t *testing.T) {
	type withPtr struct {
		Value *string `plist:"value"`
	}
	_, err := marshalValue(withPtr{})
	var enc *EncodingError
	if !errors.As(err, &enc) {
		t.Fatalf("got %v, want *EncodingError", err)
	}
	if enc.Path != "value" {
		t.Errorf("path = %q, want %q", enc.Path, "value")
	}
}

func TestMarshalInvalidUTF8(t *testing.T) {
	_, err := marshalValue(page{URL: "ok", Body: []byte{}, Children: []page{{URL: "bad\xff", Body: []byte{}}}})
	var enc *EncodingError
	if !errors.As(err, &enc) {
		t.Fatalf("got %v, want *EncodingError", err)
	}
	if enc.Path != "Children[0].URL" {
		t.Errorf("path = %q", enc.Path)
	}
}

func TestMarshalUnsupported(t *testing.T) {
	for _, v := range []interface{}{
		make(chan int),
		map[int]string{1: "a"},
		[]interface{}{nil},
	} {
		if _, err := marshalValue(v); err == nil {
			t.Errorf("marshalValue(%T) succeeded", v)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := record{
		Name:    "n",
		Count:   -7,
		Size:    65535,
		Ratio:   0.25,
		Small:   1.5,
		On:      true,
		When:    time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
		Ref:     9,
		Tags:    map[string]string{"b": "2", "a": "1"},
		Ignored: "dropped",
		Plain:   "p",
	}
	for _, format := range []Format{XMLFormat, BinaryFormat} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Marshal(in, format)
			if err != nil {
				t.Fatal(err)
			}
			var out record
			got, err := Unmarshal(data, &out)
			if err != nil {
				t.Fatal(err)
			}
			if got != format {
				t.Errorf("detected %v, want %v", got, format)
			}
			want := in
			want.Ignored = ""
			if diff := cmp.Diff(want, out); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalDateWholeSeconds(t *testing.T) {
	type event struct {
		At time.Time `plist:"at"`
	}
	local := time.FixedZone("UTC+2", 2*60*60)
	in := event{At: time.Date(2020, 1, 2, 5, 4, 5, 123456789, local)}
	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, format := range []Format{XMLFormat, BinaryFormat} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Marshal(in, format)
			if err != nil {
				t.Fatal(err)
			}
			var out event
			if _, err := Unmarshal(data, &out); err != nil {
				t.Fatal(err)
			}
			if !out.At.Equal(want) || out.At.Nanosecond() != 0 {
				t.Errorf("got %v, want %v", out.At, want)
			}

			again, err := Marshal(out, format)
			if err != nil {
				t.Fatal(err)
			}
			if string(again) != string(data) {
				t.Error("re-encoding a decoded date changed the document")
			}
		})
	}
}

func TestMarshalXMLOnlyCharacters(t *testing.T) {
	in := page{URL: "u", Body: []byte{}, Children: []page{{URL: "c", Title: strPtr("t\x02"), Body: []byte{}}}}

	_, err := Marshal(in, XMLFormat)
	var enc *EncodingError
	if !errors.As(err, &enc) {
		t.Fatalf("got %v, want *EncodingError", err)
	}
	if enc.Path != "Children[0].Title" {
		t.Errorf("path = %q", enc.Path)
	}

	// The binary encoding carries any valid string.
	data, err := Marshal(in, BinaryFormat)
	if err != nil {
		t.Fatal(err)
	}
	var out page
	if _, err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, cmp.AllowUnexported(page{})); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestMapKeysAreSorted(t *testing.T) {
	got, err := marshalValue(map[string]int{"b": 1, "c": 2, "a": 3})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got.(*cfDictionary).keys); diff != "" {
		t.Error(diff)
	}
}

func TestUnmarshalAbsentAndEmpty(t *testing.T) {
	var absent, empty page
	if err := unmarshalValue(dict("URL", cfString("u"), "Body", cfData{}), &absent); err != nil {
		t.Fatal(err)
	}
	if err := unmarshalValue(dict("URL", cfString("u"), "Body", cfData{}, "Children", array()), &empty); err != nil {
		t.Fatal(err)
	}
	if absent.Children != nil {
		t.Errorf("absent Children = %#v, want nil", absent.Children)
	}
	if empty.Children == nil || len(empty.Children) != 0 {
		t.Errorf("empty Children = %#v, want empty non-nil", empty.Children)
	}
	if absent.Title != nil {
		t.Errorf("absent Title = %q", *absent.Title)
	}
}

func TestUnmarshalIgnoresUnknownKeys(t *testing.T) {
	var p page
	err := unmarshalValue(dict("Extra", integer(1), "URL", cfString("u"), "Body", cfData("x"), "hidden", integer(3)), &p)
	if err != nil {
		t.Fatal(err)
	}
	want := page{URL: "u", Body: []byte("x")}
	if diff := cmp.Diff(want, p, cmp.AllowUnexported(page{})); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUnmarshalSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		in   cfValue
		path string
		key  string
		msg  string
	}{
		{
			name: "missing required key",
			in:   dict("Body", cfData("x")),
			key:  "URL",
		},
		{
			name: "missing nested key",
			in: dict("URL", cfString("u"), "Body", cfData{}, "Children", array(
				dict("URL", cfString("c"), "Body", cfData{}),
				dict("Body", cfData{}),
			)),
			path: "Children[1]",
			key:  "URL",
		},
		{
			name: "wrong type",
			in:   dict("URL", integer(3), "Body", cfData{}),
			path: "URL",
			msg:  "cannot unmarshal integer into string",
		},
		{
			name: "array where dictionary expected",
			in:   array(),
			msg:  "cannot unmarshal array",
		},
		{
			name: "string into data",
			in:   dict("URL", cfString("u"), "Body", cfString("x")),
			path: "Body",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var p page
			err := unmarshalValue(test.in, &p)
			var schema *SchemaError
			if !errors.As(err, &schema) {
				t.Fatalf("got %v, want *SchemaError", err)
			}
			if schema.Path != test.path || schema.Key != test.key {
				t.Errorf("path, key = %q, %q; want %q, %q", schema.Path, schema.Key, test.path, test.key)
			}
			if test.key != "" && !errors.Is(err, errMissingKey) {
				t.Errorf("error %v does not wrap errMissingKey", err)
			}
			if test.msg != "" && !strings.Contains(err.Error(), test.msg) {
				t.Errorf("error %q does not mention %q", err, test.msg)
			}
		})
	}
}

func TestUnmarshalIntegerOverflow(t *testing.T) {
	var small struct {
		N int8 `plist:"n"`
	}
	if err := unmarshalValue(dict("n", integer(300)), &small); err == nil {
		t.Error("300 fit into int8")
	}
	var unsigned struct {
		N uint64 `plist:"n"`
	}
	if err := unmarshalValue(dict("n", integer(-1)), &unsigned); err == nil {
		t.Error("-1 fit into uint64")
	}
	var signed struct {
		N int64 `plist:"n"`
	}
	if err := unmarshalValue(dict("n", newUnsignedNumber(math.MaxUint64)), &signed); err == nil {
		t.Error("MaxUint64 fit into int64")
	}
}

func TestUnmarshalInterface(t *testing.T) {
	var got interface{}
	in := dict("a", array(integer(-1), newUnsignedNumber(2), cfString("s")), "b", cfUID(4))
	if err := unmarshalValue(in, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"a": []interface{}{int64(-1), uint64(2), "s"},
		"b": UID(4),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestUnmarshalNotPointer(t *testing.T) {
	var p page
	if err := unmarshalValue(dict(), p); err != errNotPointer {
		t.Errorf("got %v, want errNotPointer", err)
	}
}

func TestDecoderDetectsFormat(t *testing.T) {
	data, err := Marshal(map[string]string{"k": "v"}, BinaryFormat)
	if err != nil {
		t.Fatal(err)
	}
	if DetectFormat(data) != BinaryFormat {
		t.Fatal("binary document not detected")
	}
	d := NewDecoder(strings.NewReader(string(data)))
	var out map[string]string
	if err := d.Decode(&out); err != nil {
		t.Fatal(err)
	}
	if d.Format != BinaryFormat || out["k"] != "v" {
		t.Errorf("format %v, value %v", d.Format, out)
	}
}

func TestEncoders(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewBinaryEncoder(buf).Encode([]string{"a"}); err != nil {
		t.Fatal(err)
	}
	if DetectFormat(buf.Bytes()) != BinaryFormat {
		t.Errorf("NewBinaryEncoder wrote %q", buf.Bytes())
	}

	buf.Reset()
	if err := NewEncoder(buf).Encode([]string{"a"}); err != nil {
		t.Fatal(err)
	}
	if DetectFormat(buf.Bytes()) != XMLFormat {
		t.Errorf("NewEncoder wrote %q", buf.Bytes())
	}

	if err := NewEncoderForFormat(buf, InvalidFormat).Encode("a"); err == nil {
		t.Error("encoding with InvalidFormat succeeded")
	}
}

func TestFormatString(t *testing.T) {
	for format, name := range FormatNames {
		if format.String() != name {
			t.Errorf("%d.String() = %q, want %q", int(format), format.String(), name)
		}
	}
	if got := Format(9).String(); got != "Format(9)" {
		t.Errorf("got %q", got)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var out interface{}
	format, err := Unmarshal([]byte("not a plist"), &out)
	if format != InvalidFormat {
		t.Errorf("format = %v", format)
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Errorf("got %v, want *FormatError", err)
	}
}
