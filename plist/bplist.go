package plist

import "time"

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x30
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagDictionary  uint8 = 0xD0
)

const (
	bplistMagic      = "bplist"
	bplistVersion    = "00"
	bplistHeaderLen  = 8
	bplistTrailerLen = 32

	// bplistExpansionFactor bounds how many nodes a decoded tree may hold
	// relative to the size of its encoding.
	bplistExpansionFactor = 8
)

// bplistEpoch is the reference date of binary plist dates.
var bplistEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

func validIntSize(n uint8) bool {
	return n == 1 || n == 2 || n == 4 || n == 8
}

// minimumSizeForInt returns the smallest of 1, 2, 4 or 8 bytes that can
// hold n.
func minimumSizeForInt(n uint64) uint8 {
	switch {
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	default:
		return 8
	}
}
