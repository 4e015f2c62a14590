package protocol

import (
	"encoding/binary"
	"strings"

	"github.com/tturner/cipstack/internal/cip/codec"
)

var le = binary.LittleEndian

// LogicalPath builds a padded class/instance[/attribute] EPATH.
func LogicalPath(class, instance uint32, attribute ...uint32) []byte {
	segs := []codec.Segment{codec.ClassSegment(class), codec.InstanceSegment(instance)}
	for _, a := range attribute {
		segs = append(segs, codec.AttributeSegment(a))
	}
	// Logical segments up to 32 bits on instance and 16 bits elsewhere never fail.
	path, _ := codec.EncodePath(true, segs...)
	return path
}

// ClassPath builds a padded EPATH addressing the class itself (instance 0).
func ClassPath(class uint32, attribute ...uint32) []byte {
	return LogicalPath(class, 0, attribute...)
}

// SymbolicPath builds an EPATH from a dotted tag name using ANSI extended
// symbolic segments.
func SymbolicPath(tag string) ([]byte, error) {
	var segs []codec.Segment
	for _, part := range strings.Split(tag, ".") {
		if part == "" {
			continue
		}
		segs = append(segs, codec.SymbolSegment(part))
	}
	return codec.EncodePath(true, segs...)
}

// ParsePath decodes a padded EPATH into segments.
func ParsePath(path []byte) ([]codec.Segment, error) {
	v, _, err := codec.Decode(codec.EPath{Padded: true, Length: len(path)}, path, 0)
	if err != nil {
		return nil, err
	}
	return v.([]codec.Segment), nil
}
