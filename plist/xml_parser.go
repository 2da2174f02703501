package plist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

type xmlPlistParser struct {
	xmlDecoder         *xml.Decoder
	whitespaceReplacer *strings.Replacer
	ntags              int
}

func (p *xmlPlistParser) parseDocument() (pval cfValue, parseError error) {
	defer func() { recoverError(recover(), &parseError) }()

	for {
		token := p.nextToken()
		switch token := token.(type) {
		case xml.StartElement:
			var root cfValue
			if token.Name.Local == xmlPlistTag {
				root = p.parsePlistElement(token)
			} else {
				root = p.parseXMLElement(token)
			}
			p.expectEOF()
			return root, nil
		case xml.CharData:
			p.expectWhitespace(token)
		case xml.EndElement:
			p.fail(fmt.Errorf("unexpected </%s>", token.Name.Local))
		}
	}
}

func (p *xmlPlistParser) fail(err error) {
	panic(&FormatError{Format: "XML", Offset: p.xmlDecoder.InputOffset(), Err: err})
}

// nextToken returns the next token, treating the end of input as an error.
func (p *xmlPlistParser) nextToken() xml.Token {
	token, err := p.xmlDecoder.Token()
	if err == io.EOF {
		if p.ntags == 0 {
			p.fail(errors.New("no elements encountered"))
		}
		p.fail(io.ErrUnexpectedEOF)
	}
	if err != nil {
		p.fail(err)
	}
	return token
}

func (p *xmlPlistParser) expectWhitespace(data xml.CharData) {
	if len(bytes.TrimSpace(data)) != 0 {
		p.fail(fmt.Errorf("unexpected text %q", bytes.TrimSpace(data)))
	}
}

func (p *xmlPlistParser) expectEOF() {
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			p.fail(err)
		}
		switch token := token.(type) {
		case xml.CharData:
			p.expectWhitespace(token)
		case xml.StartElement:
			p.fail(fmt.Errorf("unexpected <%s> after end of property list", token.Name.Local))
		case xml.EndElement:
			p.fail(fmt.Errorf("unexpected </%s> after end of property list", token.Name.Local))
		}
	}
}

// nextElement skips whitespace, comments and processing instructions and
// returns the next start or end element.
func (p *xmlPlistParser) nextElement() xml.Token {
	for {
		switch token := p.nextToken().(type) {
		case xml.StartElement:
			return token
		case xml.EndElement:
			return token
		case xml.CharData:
			p.expectWhitespace(token)
		}
	}
}

// text returns the character data of element, which must not contain
// nested elements.
func (p *xmlPlistParser) text(element xml.StartElement) string {
	var b strings.Builder
	for {
		switch token := p.nextToken().(type) {
		case xml.CharData:
			b.Write(token)
		case xml.StartElement:
			p.fail(fmt.Errorf("unexpected <%s> inside <%s>", token.Name.Local, element.Name.Local))
		case xml.EndElement:
			return b.String()
		}
	}
}

func (p *xmlPlistParser) expectEmpty(element xml.StartElement) {
	if s := p.text(element); strings.TrimSpace(s) != "" {
		p.fail(fmt.Errorf("<%s/> must be empty", element.Name.Local))
	}
}

func (p *xmlPlistParser) parsePlistElement(element xml.StartElement) cfValue {
	p.ntags++
	el, ok := p.nextElement().(xml.StartElement)
	if !ok {
		p.fail(errors.New("empty <plist>"))
	}
	pval := p.parseXMLElement(el)
	if end, ok := p.nextElement().(xml.EndElement); !ok || end.Name.Local != xmlPlistTag {
		p.fail(errors.New("<plist> must contain exactly one value"))
	}
	return pval
}

func (p *xmlPlistParser) parseXMLElement(element xml.StartElement) cfValue {
	switch element.Name.Local {
	case xmlStringTag:
		p.ntags++
		return cfString(p.text(element))
	case xmlIntegerTag:
		p.ntags++
		s := strings.TrimSpace(p.text(element))
		if len(s) == 0 {
			p.fail(errors.New("invalid empty <integer/>"))
		}
		if s[0] == '-' {
			digits, base := unsignedGetBase(s[1:])
			return newSignedNumber(p.mustParseInt("-"+digits, base))
		}
		digits, base := unsignedGetBase(strings.TrimPrefix(s, "+"))
		return newUnsignedNumber(p.mustParseUint(digits, base))
	case xmlRealTag:
		p.ntags++
		s := strings.TrimSpace(p.text(element))
		if len(s) == 0 {
			p.fail(errors.New("invalid empty <real/>"))
		}
		return &cfReal{wide: true, value: p.mustParseFloat(s)}
	case xmlTrueTag, xmlFalseTag:
		p.ntags++
		p.expectEmpty(element)
		return cfBoolean(element.Name.Local == xmlTrueTag)
	case xmlDateTag:
		p.ntags++
		t, err := time.ParseInLocation(time.RFC3339, strings.TrimSpace(p.text(element)), time.UTC)
		if err != nil {
			p.fail(err)
		}
		return cfDate(t.UTC())
	case xmlDataTag:
		p.ntags++
		str := p.whitespaceReplacer.Replace(p.text(element))
		data, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			p.fail(err)
		}
		if data == nil {
			data = []byte{}
		}
		return cfData(data)
	case xmlDictTag:
		p.ntags++
		return p.parseDictionary()
	case xmlArrayTag:
		p.ntags++
		values := make([]cfValue, 0, 10)
		for {
			switch el := p.nextElement().(type) {
			case xml.EndElement:
				return &cfArray{values}
			case xml.StartElement:
				values = append(values, p.parseXMLElement(el))
			}
		}
	}
	p.fail(fmt.Errorf("encountered unknown element %s", element.Name.Local))
	return nil
}

func (p *xmlPlistParser) parseDictionary() cfValue {
	var key *string
	keys := make([]string, 0, 32)
	values := make([]cfValue, 0, 32)
	seen := make(map[string]bool)
	for {
		switch el := p.nextElement().(type) {
		case xml.EndElement:
			if key != nil {
				p.fail(fmt.Errorf("%w for key %q", errMissingValue, *key))
			}
			dict := &cfDictionary{keys: keys, values: values}
			return dict.maybeUID()
		case xml.StartElement:
			if el.Name.Local == xmlKeyTag {
				if key != nil {
					p.fail(fmt.Errorf("%w for key %q", errMissingValue, *key))
				}
				k := p.text(el)
				if seen[k] {
					p.fail(fmt.Errorf("%w %q", errDuplicateKey, k))
				}
				seen[k] = true
				key = &k
				continue
			}
			if key == nil {
				p.fail(fmt.Errorf("missing key in dictionary before <%s>", el.Name.Local))
			}
			keys = append(keys, *key)
			values = append(values, p.parseXMLElement(el))
			key = nil
		}
	}
}

// unsignedGetBase strips a 0x prefix, returning the digits and their base.
func unsignedGetBase(s string) (string, int) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], 16
	}
	return s, 10
}

func (p *xmlPlistParser) mustParseInt(str string, base int) int64 {
	i, err := strconv.ParseInt(str, base, 64)
	if err != nil {
		p.fail(err)
	}
	return i
}

func (p *xmlPlistParser) mustParseUint(str string, base int) uint64 {
	i, err := strconv.ParseUint(str, base, 64)
	if err != nil {
		p.fail(err)
	}
	return i
}

func (p *xmlPlistParser) mustParseFloat(str string) float64 {
	switch strings.ToLower(str) {
	case "inf", "+inf", "infinity":
		return math.Inf(1)
	case "-inf", "-infinity":
		return math.Inf(-1)
	case "nan":
		return math.NaN()
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		p.fail(err)
	}
	return f
}

func newXMLPlistParser(r io.Reader) *xmlPlistParser {
	return &xmlPlistParser{
		xmlDecoder:         xml.NewDecoder(r),
		whitespaceReplacer: strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", ""),
		ntags:              0,
	}
}
