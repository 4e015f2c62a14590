package codec

import (
	"fmt"
	"math"
)

// Encode serializes value as type t. Value shapes mirror what Decode returns.
func Encode(t Type, value any) ([]byte, error) {
	return encodeValue(nil, t, value, nil)
}

func encodeValue(dst []byte, t Type, v any, siblings []any) ([]byte, error) {
	switch d := t.(type) {
	case Elementary:
		return encodeElementary(dst, d, v)
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s value must be bool, got %T", d, v)
		}
		if b {
			return append(dst, 1<<d.Position), nil
		}
		return append(dst, 0), nil
	case EPath:
		segs, ok := v.([]Segment)
		if !ok {
			return nil, fmt.Errorf("%s value must be []Segment, got %T", d, v)
		}
		path, err := EncodePath(d.Padded, segs...)
		if err != nil {
			return nil, err
		}
		if d.Length > 0 && len(path) != d.Length {
			return nil, fmt.Errorf("%s encodes to %d bytes, want %d", d, len(path), d.Length)
		}
		return append(dst, path...), nil
	case stringType:
		return encodeString(d, dst, v)
	case Struct:
		values, ok := v.([]any)
		if !ok || len(values) != len(d.Members) {
			return nil, fmt.Errorf("%s value must be []any of %d members, got %T", d, len(d.Members), v)
		}
		var err error
		for i, member := range d.Members {
			if d.Resolver != nil {
				if r := d.Resolver(values[:i], member); r != nil {
					member = r
				}
			}
			dst, err = encodeValue(dst, member, values[i], values[:i])
			if err != nil {
				return nil, fmt.Errorf("%s member %d: %w", d, i, err)
			}
		}
		return dst, nil
	case Array:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s value must be []any, got %T", d, v)
		}
		lower, err := d.Lower.resolve(siblings)
		if err != nil {
			return nil, err
		}
		upper, err := d.Upper.resolve(siblings)
		if err != nil {
			return nil, err
		}
		if len(items) != upper-lower+1 {
			return nil, fmt.Errorf("%s has %d items, bounds %d..%d", d, len(items), lower, upper)
		}
		return encodeItems(dst, d.Item, items)
	case AbbrevStruct:
		av, ok := v.(AbbrevStructValue)
		if !ok {
			return nil, fmt.Errorf("%s value must be AbbrevStructValue, got %T", d, v)
		}
		if d.Size >= 0 && len(av.Data) != d.Size {
			return nil, fmt.Errorf("%s holds %d bytes, want %d", d, len(av.Data), d.Size)
		}
		return append(dst, av.Data...), nil
	case AbbrevArray:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s value must be []any, got %T", d, v)
		}
		if d.Length >= 0 && len(items) != d.Length {
			return nil, fmt.Errorf("%s has %d items, want %d", d, len(items), d.Length)
		}
		return encodeItems(dst, d.Item, items)
	case Transform:
		if d.Unmap != nil {
			inner, err := d.Unmap(v)
			if err != nil {
				return nil, err
			}
			v = inner
		}
		return encodeValue(dst, d.Inner, v, siblings)
	case Placeholder:
		return nil, fmt.Errorf("cannot encode an unresolved placeholder")
	}
	return nil, fmt.Errorf("cannot encode type %v", t)
}

func encodeItems(dst []byte, item Type, items []any) ([]byte, error) {
	var err error
	for i, it := range items {
		dst, err = encodeValue(dst, item, it, nil)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return dst, nil
}

func encodeElementary(dst []byte, e Elementary, v any) ([]byte, error) {
	if e.kind == kindFloat {
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("%s value must be numeric, got %T", e, v)
		}
		if e.size == 4 {
			return AppendUint32(le, dst, math.Float32bits(float32(f))), nil
		}
		return AppendUint64(le, dst, math.Float64bits(f)), nil
	}
	u, ok := toUint64(v)
	if !ok {
		return nil, fmt.Errorf("%s value must be an integer, got %T", e, v)
	}
	switch e.size {
	case 1:
		return append(dst, byte(u)), nil
	case 2:
		return AppendUint16(le, dst, uint16(u)), nil
	case 4:
		return AppendUint32(le, dst, uint32(u)), nil
	default:
		return AppendUint64(le, dst, u), nil
	}
}
