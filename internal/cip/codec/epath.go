package codec

import (
	"fmt"
	"strings"
)

// SegmentKind is the segment type carried in the top three bits of a segment byte.
type SegmentKind uint8

const (
	SegmentPort SegmentKind = iota
	SegmentLogical
	SegmentNetwork
	SegmentSymbolic
	SegmentData
	SegmentDataType
)

// LogicalType is the logical segment type (CIP Vol 1, C-1.4.2).
type LogicalType uint8

const (
	LogicalClass           LogicalType = 0
	LogicalInstance        LogicalType = 1
	LogicalMember          LogicalType = 2
	LogicalConnectionPoint LogicalType = 3
	LogicalAttribute       LogicalType = 4
	LogicalSpecial         LogicalType = 5
	LogicalServiceID       LogicalType = 6
)

var logicalNames = map[LogicalType]string{
	LogicalClass:           "class",
	LogicalInstance:        "instance",
	LogicalMember:          "member",
	LogicalConnectionPoint: "connection point",
	LogicalAttribute:       "attribute",
	LogicalSpecial:         "special",
	LogicalServiceID:       "service",
}

// Segment is one decoded EPATH segment. Which fields are set depends on Kind.
type Segment struct {
	Kind SegmentKind

	// Port
	Port uint16
	Link []byte

	// Logical
	Logical LogicalType
	Value   uint32

	// Symbolic and ANSI extended symbolic data
	Symbol string

	// Network, simple data, electronic key and constructed data type payloads
	Subtype uint8
	Data    []byte

	// Data type
	DataType Code
}

// ClassSegment returns a logical class segment.
func ClassSegment(class uint32) Segment {
	return Segment{Kind: SegmentLogical, Logical: LogicalClass, Value: class}
}

// InstanceSegment returns a logical instance segment.
func InstanceSegment(instance uint32) Segment {
	return Segment{Kind: SegmentLogical, Logical: LogicalInstance, Value: instance}
}

// AttributeSegment returns a logical attribute segment.
func AttributeSegment(attribute uint32) Segment {
	return Segment{Kind: SegmentLogical, Logical: LogicalAttribute, Value: attribute}
}

// ConnectionPointSegment returns a logical connection point segment.
func ConnectionPointSegment(point uint32) Segment {
	return Segment{Kind: SegmentLogical, Logical: LogicalConnectionPoint, Value: point}
}

// PortSegment returns a port segment routing out of port to the given link address.
func PortSegment(port uint16, link []byte) Segment {
	return Segment{Kind: SegmentPort, Port: port, Link: link}
}

// SymbolSegment returns an ANSI extended symbolic segment.
func SymbolSegment(name string) Segment {
	return Segment{Kind: SegmentData, Subtype: 0x11, Symbol: name}
}

// DataTypeSegment returns an elementary data type segment.
func DataTypeSegment(code Code) Segment {
	return Segment{Kind: SegmentDataType, DataType: code}
}

func (s Segment) String() string {
	switch s.Kind {
	case SegmentPort:
		return fmt.Sprintf("port %d link % X", s.Port, s.Link)
	case SegmentLogical:
		if s.Logical == LogicalSpecial {
			return fmt.Sprintf("key % X", s.Data)
		}
		return fmt.Sprintf("%s 0x%X", logicalNames[s.Logical], s.Value)
	case SegmentNetwork:
		return fmt.Sprintf("network 0x%02X % X", s.Subtype, s.Data)
	case SegmentSymbolic:
		return "symbol " + s.Symbol
	case SegmentData:
		if s.Symbol != "" {
			return "symbol " + s.Symbol
		}
		return fmt.Sprintf("data % X", s.Data)
	case SegmentDataType:
		if t, ok := TypeForCode(s.DataType); ok {
			return "type " + t.String()
		}
		return fmt.Sprintf("type 0x%02X", uint8(s.DataType))
	}
	return "unknown"
}

// FormatPath renders segments on one line.
func FormatPath(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// EncodePath encodes segments as a padded or packed EPATH.
func EncodePath(padded bool, segs ...Segment) ([]byte, error) {
	var out []byte
	var err error
	for _, s := range segs {
		out, err = appendSegment(out, s, padded)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendSegment(dst []byte, s Segment, padded bool) ([]byte, error) {
	switch s.Kind {
	case SegmentPort:
		start := len(dst)
		b := byte(0)
		if s.Port >= 0x0F {
			b = 0x0F
		} else {
			b = byte(s.Port)
		}
		extended := len(s.Link) != 1
		if extended {
			b |= 0x10
		}
		dst = append(dst, b)
		if extended {
			if len(s.Link) > 0xFF {
				return nil, fmt.Errorf("port link address too long: %d", len(s.Link))
			}
			dst = append(dst, byte(len(s.Link)))
		}
		if s.Port >= 0x0F {
			dst = AppendUint16(le, dst, s.Port)
		}
		dst = append(dst, s.Link...)
		if padded && (len(dst)-start)%2 == 1 {
			dst = append(dst, 0)
		}
		return dst, nil
	case SegmentLogical:
		b := 0x20 | byte(s.Logical)<<2
		if s.Logical == LogicalSpecial {
			return append(append(dst, b), s.Data...), nil
		}
		switch {
		case s.Value <= 0xFF:
			return append(dst, b, byte(s.Value)), nil
		case s.Value <= 0xFFFF:
			dst = append(dst, b|0x01)
			if padded {
				dst = append(dst, 0)
			}
			return AppendUint16(le, dst, uint16(s.Value)), nil
		default:
			if s.Logical != LogicalInstance && s.Logical != LogicalConnectionPoint {
				return nil, fmt.Errorf("%s value 0x%X does not fit 16 bits", logicalNames[s.Logical], s.Value)
			}
			dst = append(dst, b|0x02)
			if padded {
				dst = append(dst, 0)
			}
			return AppendUint32(le, dst, s.Value), nil
		}
	case SegmentSymbolic:
		if len(s.Symbol) == 0 || len(s.Symbol) > 0x1F {
			return nil, fmt.Errorf("symbolic segment length %d out of range", len(s.Symbol))
		}
		dst = append(dst, 0x60|byte(len(s.Symbol)))
		dst = append(dst, s.Symbol...)
		if padded && len(s.Symbol)%2 == 0 {
			dst = append(dst, 0)
		}
		return dst, nil
	case SegmentData:
		if s.Symbol != "" {
			if len(s.Symbol) > 0xFF {
				return nil, fmt.Errorf("symbol too long: %d", len(s.Symbol))
			}
			dst = append(dst, 0x91, byte(len(s.Symbol)))
			dst = append(dst, s.Symbol...)
			if len(s.Symbol)%2 == 1 {
				dst = append(dst, 0)
			}
			return dst, nil
		}
		if len(s.Data)%2 == 1 || len(s.Data) > 0x1FE {
			return nil, fmt.Errorf("simple data segment needs whole words, got %d bytes", len(s.Data))
		}
		dst = append(dst, 0x80, byte(len(s.Data)/2))
		return append(dst, s.Data...), nil
	case SegmentNetwork:
		dst = append(dst, 0x40|(s.Subtype&0x1F))
		if s.Subtype&0x10 != 0 {
			dst = append(dst, byte(len(s.Data)/2))
		}
		return append(dst, s.Data...), nil
	case SegmentDataType:
		if s.DataType >= CodeBOOL {
			return append(dst, byte(s.DataType)), nil
		}
		if len(s.Data) > 0xFF {
			return nil, fmt.Errorf("constructed data type segment too long: %d", len(s.Data))
		}
		dst = append(dst, byte(s.DataType), byte(len(s.Data)))
		return append(dst, s.Data...), nil
	}
	return nil, fmt.Errorf("unknown segment kind %d", s.Kind)
}

func decodePath(p EPath, buf []byte, off int) (any, int, error) {
	end := len(buf)
	if p.Length > 0 {
		end = off + p.Length
		if end > len(buf) {
			return nil, off, errShort(p, off)
		}
	}
	segs := make([]Segment, 0, 4)
	pos := off
	for pos < end {
		if p.Padded && buf[pos] == 0x00 {
			pos++
			continue
		}
		seg, next, err := decodeSegment(buf[:end], pos, p.Padded)
		if err != nil {
			return nil, pos, err
		}
		segs = append(segs, seg)
		pos = next
	}
	return segs, end, nil
}

func need(buf []byte, off, n int) error {
	if off+n > len(buf) {
		return errShort(EPath{}, off)
	}
	return nil
}

func decodeSegment(buf []byte, off int, padded bool) (Segment, int, error) {
	start := off
	b := buf[off]
	off++
	switch b >> 5 {
	case 0: // port
		s := Segment{Kind: SegmentPort, Port: uint16(b & 0x0F)}
		linkSize := 1
		if b&0x10 != 0 {
			if err := need(buf, off, 1); err != nil {
				return s, start, err
			}
			linkSize = int(buf[off])
			off++
		}
		if s.Port == 0x0F {
			if err := need(buf, off, 2); err != nil {
				return s, start, err
			}
			s.Port = le.Uint16(buf[off:])
			off += 2
		}
		if err := need(buf, off, linkSize); err != nil {
			return s, start, err
		}
		s.Link = append([]byte(nil), buf[off:off+linkSize]...)
		off += linkSize
		if padded && (off-start)%2 == 1 && off < len(buf) {
			off++
		}
		return s, off, nil
	case 1: // logical
		s := Segment{Kind: SegmentLogical, Logical: LogicalType((b >> 2) & 0x07)}
		if s.Logical == LogicalSpecial {
			if err := need(buf, off, 1); err != nil {
				return s, start, err
			}
			n := 1
			if buf[off] == 0x04 {
				n = 9
			}
			if err := need(buf, off, n); err != nil {
				return s, start, err
			}
			s.Data = append([]byte(nil), buf[off:off+n]...)
			s.Value = uint32(buf[off])
			return s, off + n, nil
		}
		switch b & 0x03 {
		case 0:
			if err := need(buf, off, 1); err != nil {
				return s, start, err
			}
			s.Value = uint32(buf[off])
			return s, off + 1, nil
		case 1:
			if padded {
				off++
			}
			if err := need(buf, off, 2); err != nil {
				return s, start, err
			}
			s.Value = uint32(le.Uint16(buf[off:]))
			return s, off + 2, nil
		case 2:
			if padded {
				off++
			}
			if err := need(buf, off, 4); err != nil {
				return s, start, err
			}
			s.Value = le.Uint32(buf[off:])
			return s, off + 4, nil
		}
		return s, start, errMalformed(EPath{}, start, fmt.Errorf("reserved logical format in 0x%02X", b))
	case 2: // network
		s := Segment{Kind: SegmentNetwork, Subtype: b & 0x1F}
		n := 1
		if s.Subtype&0x10 != 0 {
			if err := need(buf, off, 1); err != nil {
				return s, start, err
			}
			n = 2 * int(buf[off])
			off++
		}
		if err := need(buf, off, n); err != nil {
			return s, start, err
		}
		s.Data = append([]byte(nil), buf[off:off+n]...)
		return s, off + n, nil
	case 3: // symbolic
		n := int(b & 0x1F)
		if n == 0 {
			return Segment{}, start, errMalformed(EPath{}, start, fmt.Errorf("extended symbolic segments are not supported"))
		}
		if err := need(buf, off, n); err != nil {
			return Segment{}, start, err
		}
		s := Segment{Kind: SegmentSymbolic, Symbol: string(buf[off : off+n])}
		off += n
		if padded && (off-start)%2 == 1 && off < len(buf) {
			off++
		}
		return s, off, nil
	case 4: // data
		s := Segment{Kind: SegmentData, Subtype: b & 0x1F}
		if err := need(buf, off, 1); err != nil {
			return s, start, err
		}
		switch b {
		case 0x80:
			n := 2 * int(buf[off])
			off++
			if err := need(buf, off, n); err != nil {
				return s, start, err
			}
			s.Data = append([]byte(nil), buf[off:off+n]...)
			return s, off + n, nil
		case 0x91:
			n := int(buf[off])
			off++
			if err := need(buf, off, n); err != nil {
				return s, start, err
			}
			s.Symbol = string(buf[off : off+n])
			off += n
			if n%2 == 1 && off < len(buf) {
				off++
			}
			return s, off, nil
		}
		return s, start, errMalformed(EPath{}, start, fmt.Errorf("unsupported data segment 0x%02X", b))
	case 5, 6: // constructed and elementary data types
		s := Segment{Kind: SegmentDataType, DataType: Code(b)}
		if Code(b) >= CodeBOOL {
			return s, off, nil
		}
		if err := need(buf, off, 1); err != nil {
			return s, start, err
		}
		n := int(buf[off])
		off++
		if err := need(buf, off, n); err != nil {
			return s, start, err
		}
		s.Data = append([]byte(nil), buf[off:off+n]...)
		return s, off + n, nil
	}
	return Segment{}, start, errMalformed(EPath{}, start, fmt.Errorf("reserved segment type 0x%02X", b))
}
