package codec

import (
	"fmt"
	"unicode/utf16"
)

// stringType covers the length-prefixed character string types.
type stringType struct {
	code Code
	name string
}

func (s stringType) Code() Code     { return s.code }
func (s stringType) String() string { return s.name }
func (stringType) isType()          {}

var (
	// SHORT_STRING is a USINT length followed by that many bytes.
	SHORT_STRING Type = stringType{CodeSHORT_STRING, "SHORT_STRING"}
	// STRING is a UINT length followed by that many bytes.
	STRING Type = stringType{CodeSTRING, "STRING"}
	// STRING2 is a UINT length followed by that many UTF-16LE code units.
	STRING2 Type = stringType{CodeSTRING2, "STRING2"}
	// STRINGN is a UINT character width, a UINT length, then length characters.
	STRINGN Type = stringType{CodeSTRINGN, "STRINGN"}
)

// IntlString is one entry of a STRINGI value.
type IntlString struct {
	Language string
	Type     Code
	Charset  uint16
	Value    string
}

var intlEntry = Struct{
	Name: "STRINGI entry",
	Members: []Type{
		Transform{
			Name:  "language",
			Inner: ArrayOf(USINT, 3),
			Map:   bytesToASCII,
			Unmap: asciiToBytes,
		},
		EPath{Length: 1},
		UINT,
		Placeholder{},
	},
	Resolver: func(siblings []any, member Type) Type {
		p, ok := member.(Placeholder)
		if !ok || len(siblings) != 3 {
			return nil
		}
		segs, _ := siblings[1].([]Segment)
		if len(segs) != 1 || segs[0].Kind != SegmentDataType {
			return nil
		}
		t, ok := TypeForCode(segs[0].DataType)
		if !ok {
			return nil
		}
		return p.With(t)
	},
}

// STRINGI is a USINT count of internationalized strings, each tagged with an
// ISO 639-2/T language, its string type and a character set. Decodes to
// []IntlString.
var STRINGI Type = Transform{
	Name: "STRINGI",
	Inner: Struct{
		Name:    "STRINGI",
		Members: []Type{USINT, Placeholder{}},
		Resolver: func(siblings []any, member Type) Type {
			if len(siblings) != 1 {
				return nil
			}
			return Array{Item: intlEntry, Lower: Lit(0), Upper: Ref(0).Plus(-1)}
		},
	},
	Map:   toIntlStrings,
	Unmap: fromIntlStrings,
}

func bytesToASCII(v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("language is %T", v)
	}
	b := make([]byte, len(items))
	for i, it := range items {
		n, ok := ToInt(it)
		if !ok {
			return nil, fmt.Errorf("language byte %d is %T", i, it)
		}
		b[i] = byte(n)
	}
	return string(b), nil
}

func asciiToBytes(v any) (any, error) {
	s, ok := v.(string)
	if !ok || len(s) != 3 {
		return nil, fmt.Errorf("language must be a 3 letter string, got %v", v)
	}
	return []any{s[0], s[1], s[2]}, nil
}

func toIntlStrings(v any) (any, error) {
	fields, ok := v.([]any)
	if !ok || len(fields) != 2 {
		return nil, fmt.Errorf("malformed STRINGI value %T", v)
	}
	entries, _ := fields[1].([]any)
	out := make([]IntlString, 0, len(entries))
	for _, e := range entries {
		m, ok := e.([]any)
		if !ok || len(m) != 4 {
			return nil, fmt.Errorf("malformed STRINGI entry %T", e)
		}
		s := IntlString{}
		s.Language, _ = m[0].(string)
		if segs, ok := m[1].([]Segment); ok && len(segs) == 1 {
			s.Type = segs[0].DataType
		}
		s.Charset, _ = m[2].(uint16)
		s.Value, _ = m[3].(string)
		out = append(out, s)
	}
	return out, nil
}

func fromIntlStrings(v any) (any, error) {
	list, ok := v.([]IntlString)
	if !ok {
		return nil, fmt.Errorf("STRINGI value must be []IntlString, got %T", v)
	}
	if len(list) > 0xFF {
		return nil, fmt.Errorf("too many STRINGI entries: %d", len(list))
	}
	entries := make([]any, len(list))
	for i, s := range list {
		entries[i] = []any{
			s.Language,
			[]Segment{{Kind: SegmentDataType, DataType: s.Type}},
			s.Charset,
			s.Value,
		}
	}
	return []any{uint8(len(list)), entries}, nil
}

func decodeString(s stringType, buf []byte, off int) (any, int, error) {
	switch s.code {
	case CodeSHORT_STRING:
		if off+1 > len(buf) {
			return nil, off, errShort(s, off)
		}
		n := int(buf[off])
		off++
		if off+n > len(buf) {
			return nil, off, errShort(s, off)
		}
		return string(buf[off : off+n]), off + n, nil
	case CodeSTRING:
		if off+2 > len(buf) {
			return nil, off, errShort(s, off)
		}
		n := int(le.Uint16(buf[off:]))
		off += 2
		if off+n > len(buf) {
			return nil, off, errShort(s, off)
		}
		return string(buf[off : off+n]), off + n, nil
	case CodeSTRING2:
		if off+2 > len(buf) {
			return nil, off, errShort(s, off)
		}
		n := int(le.Uint16(buf[off:]))
		off += 2
		if off+2*n > len(buf) {
			return nil, off, errShort(s, off)
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = le.Uint16(buf[off+2*i:])
		}
		return string(utf16.Decode(units)), off + 2*n, nil
	case CodeSTRINGN:
		if off+4 > len(buf) {
			return nil, off, errShort(s, off)
		}
		width := int(le.Uint16(buf[off:]))
		n := int(le.Uint16(buf[off+2:]))
		off += 4
		if off+width*n > len(buf) {
			return nil, off, errShort(s, off)
		}
		var str string
		switch width {
		case 1:
			str = string(buf[off : off+n])
		case 2:
			units := make([]uint16, n)
			for i := range units {
				units[i] = le.Uint16(buf[off+2*i:])
			}
			str = string(utf16.Decode(units))
		case 4:
			runes := make([]rune, n)
			for i := range runes {
				runes[i] = rune(le.Uint32(buf[off+4*i:]))
			}
			str = string(runes)
		default:
			return nil, off, errMalformed(s, off, fmt.Errorf("character width %d", width))
		}
		return str, off + width*n, nil
	}
	return nil, off, errUnknown(s, off)
}

func encodeString(s stringType, dst []byte, v any) ([]byte, error) {
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s value must be a string, got %T", s.name, v)
	}
	switch s.code {
	case CodeSHORT_STRING:
		if len(str) > 0xFF {
			return nil, fmt.Errorf("SHORT_STRING too long: %d bytes", len(str))
		}
		dst = append(dst, byte(len(str)))
		return append(dst, str...), nil
	case CodeSTRING:
		if len(str) > 0xFFFF {
			return nil, fmt.Errorf("STRING too long: %d bytes", len(str))
		}
		dst = AppendUint16(le, dst, uint16(len(str)))
		return append(dst, str...), nil
	case CodeSTRING2:
		units := utf16.Encode([]rune(str))
		if len(units) > 0xFFFF {
			return nil, fmt.Errorf("STRING2 too long: %d units", len(units))
		}
		dst = AppendUint16(le, dst, uint16(len(units)))
		for _, u := range units {
			dst = AppendUint16(le, dst, u)
		}
		return dst, nil
	case CodeSTRINGN:
		units := utf16.Encode([]rune(str))
		if len(units) > 0xFFFF {
			return nil, fmt.Errorf("STRINGN too long: %d units", len(units))
		}
		dst = AppendUint16(le, dst, 2)
		dst = AppendUint16(le, dst, uint16(len(units)))
		for _, u := range units {
			dst = AppendUint16(le, dst, u)
		}
		return dst, nil
	}
	return nil, fmt.Errorf("unknown string type %s", s.name)
}
