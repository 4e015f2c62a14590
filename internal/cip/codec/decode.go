package codec

import (
	"fmt"
	"math"

	cipErrors "github.com/tturner/cipstack/internal/errors"
)

// Decode reads one value of type t from buf starting at offset and returns the
// value with the offset just past it. Decode keeps no state between calls.
func Decode(t Type, buf []byte, offset int) (any, int, error) {
	if offset < 0 || offset > len(buf) {
		return nil, offset, errShort(t, offset)
	}
	return decodeValue(t, buf, offset, nil)
}

// DecodeAll decodes t and fails if any bytes are left over.
func DecodeAll(t Type, buf []byte) (any, error) {
	v, next, err := Decode(t, buf, 0)
	if err != nil {
		return nil, err
	}
	if next != len(buf) {
		return v, errMalformed(t, next, fmt.Errorf("%d trailing bytes", len(buf)-next))
	}
	return v, nil
}

func decodeValue(t Type, buf []byte, off int, siblings []any) (any, int, error) {
	switch d := t.(type) {
	case Elementary:
		return decodeElementary(d, buf, off)
	case Bool:
		if off+1 > len(buf) {
			return nil, off, errShort(d, off)
		}
		return (buf[off]>>d.Position)&0x01 == 1, off + 1, nil
	case EPath:
		return decodePath(d, buf, off)
	case stringType:
		return decodeString(d, buf, off)
	case Struct:
		return decodeStruct(d, buf, off)
	case Array:
		lower, err := d.Lower.resolve(siblings)
		if err != nil {
			return nil, off, errMalformed(d, off, err)
		}
		upper, err := d.Upper.resolve(siblings)
		if err != nil {
			return nil, off, errMalformed(d, off, err)
		}
		n := upper - lower + 1
		if n < 0 {
			return nil, off, errMalformed(d, off, fmt.Errorf("bounds %d..%d", lower, upper))
		}
		return decodeItems(d.Item, buf, off, n)
	case AbbrevStruct:
		end := len(buf)
		if d.Size >= 0 {
			end = off + d.Size
			if end > len(buf) {
				return nil, off, errShort(d, off)
			}
		}
		data := append([]byte(nil), buf[off:end]...)
		return AbbrevStructValue{CRC: d.CRC, Data: data}, end, nil
	case AbbrevArray:
		return decodeItems(d.Item, buf, off, d.Length)
	case Transform:
		v, next, err := decodeValue(d.Inner, buf, off, siblings)
		if err != nil {
			return nil, off, err
		}
		if d.Map == nil {
			return v, next, nil
		}
		mapped, err := d.Map(v)
		if err != nil {
			return nil, off, errMalformed(d, off, err)
		}
		return mapped, next, nil
	case Placeholder:
		return nil, off, &cipErrors.DecodeError{Type: d.String(), Offset: off, Err: cipErrors.ErrUnresolvedPlaceholder}
	case nil:
		return nil, off, errUnknown(nil, off)
	}
	return nil, off, errUnknown(t, off)
}

func decodeElementary(e Elementary, buf []byte, off int) (any, int, error) {
	if off+e.size > len(buf) {
		return nil, off, errShort(e, off)
	}
	b := buf[off : off+e.size]
	next := off + e.size
	switch e.size {
	case 1:
		if e.kind == kindSigned {
			return int8(b[0]), next, nil
		}
		return b[0], next, nil
	case 2:
		u := le.Uint16(b)
		if e.kind == kindSigned {
			return int16(u), next, nil
		}
		return u, next, nil
	case 4:
		u := le.Uint32(b)
		switch e.kind {
		case kindSigned:
			return int32(u), next, nil
		case kindFloat:
			return math.Float32frombits(u), next, nil
		}
		return u, next, nil
	case 8:
		u := le.Uint64(b)
		switch e.kind {
		case kindSigned:
			return int64(u), next, nil
		case kindFloat:
			return math.Float64frombits(u), next, nil
		}
		return u, next, nil
	}
	return nil, off, errUnknown(e, off)
}

func decodeStruct(s Struct, buf []byte, off int) (any, int, error) {
	values := make([]any, 0, len(s.Members))
	pos := off
	for _, member := range s.Members {
		if s.Resolver != nil {
			if r := s.Resolver(values, member); r != nil {
				member = r
			}
		}
		v, next, err := decodeValue(member, buf, pos, values)
		if err != nil {
			return nil, off, err
		}
		values = append(values, v)
		pos = next
	}
	return values, pos, nil
}

// decodeItems decodes n items, or items until buf is exhausted when n < 0.
// A count taken from the wire is checked against the bytes left before any
// allocation.
func decodeItems(item Type, buf []byte, off, n int) (any, int, error) {
	remaining := len(buf) - off
	if remaining < 0 {
		remaining = 0
	}
	if w := minWidth(item); w > 0 && n > remaining/w {
		return nil, off, errShort(item, off)
	}
	capHint := min(max(n, 0), remaining)
	items := make([]any, 0, capHint)
	pos := off
	for i := 0; n < 0 && pos < len(buf) || i < n; i++ {
		v, next, err := decodeValue(item, buf, pos, nil)
		if err != nil {
			return nil, off, err
		}
		if next == pos && (n < 0 || i > remaining) {
			return nil, off, errMalformed(item, pos, fmt.Errorf("zero-width items exceed the %d bytes left", remaining))
		}
		items = append(items, v)
		pos = next
	}
	return items, pos, nil
}

// minWidth is the fewest bytes one item of t can occupy, 0 when unknown.
func minWidth(t Type) int {
	switch d := t.(type) {
	case Elementary:
		return d.size
	case Bool:
		return 1
	case Struct:
		if d.Resolver != nil {
			return 0
		}
		w := 0
		for _, m := range d.Members {
			w += minWidth(m)
		}
		return w
	}
	return 0
}

func errShort(t Type, off int) error {
	return &cipErrors.DecodeError{Type: typeName(t), Offset: off, Err: cipErrors.ErrShortBuffer}
}

func errUnknown(t Type, off int) error {
	return &cipErrors.DecodeError{Type: typeName(t), Offset: off, Err: cipErrors.ErrUnknownType}
}

func errMalformed(t Type, off int, cause error) error {
	return &cipErrors.DecodeError{Type: typeName(t), Offset: off, Err: fmt.Errorf("%w: %v", cipErrors.ErrMalformed, cause)}
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
