package plist

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	xmlHEADER     string = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	xmlDOCTYPE           = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
	xmlArrayTag          = "array"
	xmlDataTag           = "data"
	xmlDateTag           = "date"
	xmlDictTag           = "dict"
	xmlFalseTag          = "false"
	xmlIntegerTag        = "integer"
	xmlKeyTag            = "key"
	xmlPlistTag          = "plist"
	xmlRealTag           = "real"
	xmlStringTag         = "string"
	xmlTrueTag           = "true"

	xmlDateFormat = "2006-01-02T15:04:05Z"

	// xmlDataLineLen is the number of base64 characters per line inside
	// <data>, as written by CoreFoundation.
	xmlDataLineLen = 76
)

// xmlTextEscaper escapes markup characters. A carriage return is written as
// a character reference, since XML readers fold a literal one into "\n".
var xmlTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")

// isXMLChar reports whether r may appear in an XML 1.0 document.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}

func formatXMLFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type xmlPlistGenerator struct {
	*bufio.Writer

	indent string
	depth  int
	path   string
}

func (p *xmlPlistGenerator) writeIndent() {
	for i := 0; i < p.depth; i++ {
		p.WriteString(p.indent)
	}
}

func (p *xmlPlistGenerator) generateDocument(root cfValue) (err error) {
	defer func() { recoverError(recover(), &err) }()

	if root == nil {
		return errEmptyDocument
	}
	p.WriteString(xmlHEADER)
	p.WriteString(xmlDOCTYPE)

	p.WriteString(fmt.Sprintf("<%s version=\"1.0\">\n", xmlPlistTag))
	p.writePlistValue(root)
	p.WriteString(fmt.Sprintf("</%s>", xmlPlistTag))
	return p.Flush()
}

func (p *xmlPlistGenerator) openTag(tag string) {
	p.writeIndent()
	p.WriteString(fmt.Sprintf("<%s>\n", tag))
}

func (p *xmlPlistGenerator) closeTag(tag string) {
	p.writeIndent()
	p.WriteString(fmt.Sprintf("</%s>\n", tag))
}

func (p *xmlPlistGenerator) emptyTag(tag string) {
	p.writeIndent()
	p.WriteString(fmt.Sprintf("<%s/>\n", tag))
}

func (p *xmlPlistGenerator) element(tag string, value string) {
	for i, r := range value {
		if r == utf8.RuneError && !strings.HasPrefix(value[i:], "\uFFFD") {
			panic(&EncodingError{Path: p.path, Err: fmt.Errorf("<%s> text is not valid UTF-8", tag)})
		}
		if !isXMLChar(r) {
			panic(&EncodingError{Path: p.path, Err: fmt.Errorf("character %U cannot be written in XML", r)})
		}
	}
	p.writeIndent()
	p.WriteString(fmt.Sprintf("<%s>", tag))
	xmlTextEscaper.WriteString(p.Writer, value)
	p.WriteString(fmt.Sprintf("</%s>\n", tag))
}

func (p *xmlPlistGenerator) writeDictionary(dict *cfDictionary) {
	if len(dict.keys) == 0 {
		p.emptyTag(xmlDictTag)
		return
	}
	p.openTag(xmlDictTag)
	p.depth++
	parent := p.path
	for i, k := range dict.keys {
		p.element(xmlKeyTag, k)
		p.path = joinPath(parent, k)
		p.writePlistValue(dict.values[i])
		p.path = parent
	}
	p.depth--
	p.closeTag(xmlDictTag)
}

func (p *xmlPlistGenerator) writeArray(a *cfArray) {
	if len(a.values) == 0 {
		p.emptyTag(xmlArrayTag)
		return
	}
	p.openTag(xmlArrayTag)
	p.depth++
	parent := p.path
	for i, v := range a.values {
		p.path = fmt.Sprintf("%s[%d]", parent, i)
		p.writePlistValue(v)
	}
	p.path = parent
	p.depth--
	p.closeTag(xmlArrayTag)
}

// writeData writes the payload on its own lines, at the indentation of the
// enclosing tags.
func (p *xmlPlistGenerator) writeData(data cfData) {
	dataBase64 := base64.StdEncoding.EncodeToString(data)
	p.openTag(xmlDataTag)
	for i := 0; i < len(dataBase64); i += xmlDataLineLen {
		end := i + xmlDataLineLen
		if end > len(dataBase64) {
			end = len(dataBase64)
		}
		p.writeIndent()
		p.WriteString(dataBase64[i:end])
		p.WriteString("\n")
	}
	p.closeTag(xmlDataTag)
}

func (p *xmlPlistGenerator) writePlistValue(pval cfValue) {
	switch pval := pval.(type) {
	case cfString:
		p.element(xmlStringTag, string(pval))
	case *cfNumber:
		if pval.signed {
			p.element(xmlIntegerTag, strconv.FormatInt(int64(pval.value), 10))
		} else {
			p.element(xmlIntegerTag, strconv.FormatUint(pval.value, 10))
		}
	case *cfReal:
		p.element(xmlRealTag, formatXMLFloat(pval.value))
	case cfBoolean:
		if bool(pval) {
			p.emptyTag(xmlTrueTag)
		} else {
			p.emptyTag(xmlFalseTag)
		}
	case cfData:
		p.writeData(pval)
	case cfDate:
		p.element(xmlDateTag, time.Time(pval).In(time.UTC).Format(xmlDateFormat))
	case *cfDictionary:
		p.writeDictionary(pval)
	case *cfArray:
		p.writeArray(pval)
	case cfUID:
		p.writeDictionary(pval.toDict())
	default:
		panic(&EncodingError{Err: fmt.Errorf("unknown property list value %T", pval)})
	}
}

func newXMLPlistGenerator(w io.Writer) *xmlPlistGenerator {
	return &xmlPlistGenerator{Writer: bufio.NewWriter(w), indent: "\t"}
}
