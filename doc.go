// Package webarchive reads and writes Apple Web Archive (.webarchive) files.
//
// A Web Archive is a property list with a fixed schema: a main resource, an
// optional list of subresources and an optional list of nested archives, one
// per subframe of the page. Both the XML and the binary property list
// encodings are supported; XML output is laid out exactly as Safari writes
// it.
//
//	a := webarchive.NewArchive(
//		webarchive.NewResource("about:hello", "text/plain", []byte("hello world"),
//			webarchive.WithTextEncodingName("utf-8")),
//	)
//	data, err := webarchive.EncodeXML(a)
//
// Decoding detects the encoding from the input:
//
//	a, err := webarchive.Decode(data)
//	if err != nil {
//		var missing *webarchive.SchemaError
//		if errors.As(err, &missing) {
//			// a valid property list, but not a web archive
//		}
//	}
//
// The package never touches the file system and keeps no state between
// calls.
package webarchive
