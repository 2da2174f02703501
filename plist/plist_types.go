package plist

import "time"

// cfValue is a single node of a decoded or to-be-encoded property list.
// Containers own their children exclusively.
type cfValue interface {
	typeName() string
}

type cfString string

func (cfString) typeName() string { return "string" }

type cfData []byte

func (cfData) typeName() string { return "data" }

type cfBoolean bool

func (cfBoolean) typeName() string { return "boolean" }

// cfNumber holds any plist integer. signed is only set for negative values,
// so that numbers compare equal no matter which encoding produced them.
type cfNumber struct {
	signed bool
	value  uint64
}

func (*cfNumber) typeName() string { return "integer" }

func newSignedNumber(n int64) *cfNumber {
	return &cfNumber{signed: n < 0, value: uint64(n)}
}

func newUnsignedNumber(n uint64) *cfNumber {
	return &cfNumber{signed: false, value: n}
}

type cfReal struct {
	wide  bool
	value float64
}

func (*cfReal) typeName() string { return "real" }

type cfDate time.Time

func (cfDate) typeName() string { return "date" }

type cfUID uint64

func (cfUID) typeName() string { return "UID" }

func (u cfUID) toDict() *cfDictionary {
	return &cfDictionary{
		keys:   []string{"CF$UID"},
		values: []cfValue{newUnsignedNumber(uint64(u))},
	}
}

type cfArray struct {
	values []cfValue
}

func (*cfArray) typeName() string { return "array" }

type cfDictionary struct {
	keys   []string
	values []cfValue
}

func (*cfDictionary) typeName() string { return "dictionary" }

func (d *cfDictionary) get(key string) (cfValue, bool) {
	for i, k := range d.keys {
		if k == key {
			return d.values[i], true
		}
	}
	return nil, false
}

// maybeUID collapses a {"CF$UID": n} dictionary into a UID, as written by
// the XML encoding for UID objects.
func (d *cfDictionary) maybeUID() cfValue {
	if len(d.keys) != 1 || d.keys[0] != "CF$UID" {
		return d
	}
	if n, ok := d.values[0].(*cfNumber); ok && !n.signed {
		return cfUID(n.value)
	}
	return d
}
