package codec

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	cipErrors "github.com/tturner/cipstack/internal/errors"
)

func TestElementaryRoundTrip(t *testing.T) {
	tests := []struct {
		typ   Type
		value any
		wire  []byte
	}{
		{SINT, int8(-1), []byte{0xFF}},
		{INT, int16(-2), []byte{0xFE, 0xFF}},
		{DINT, int32(-100000), []byte{0x60, 0x79, 0xFE, 0xFF}},
		{LINT, int64(-1), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{USINT, uint8(0xAB), []byte{0xAB}},
		{UINT, uint16(0x1339), []byte{0x39, 0x13}},
		{UDINT, uint32(2000000), []byte{0x80, 0x84, 0x1E, 0x00}},
		{ULINT, uint64(math.MaxUint64), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{REAL, float32(1.5), []byte{0x00, 0x00, 0xC0, 0x3F}},
		{LREAL, float64(-2), []byte{0, 0, 0, 0, 0, 0, 0x00, 0xC0}},
		{BYTE, uint8(0x80), []byte{0x80}},
		{WORD, uint16(0xFFFF), []byte{0xFF, 0xFF}},
		{DWORD, uint32(1), []byte{1, 0, 0, 0}},
		{LWORD, uint64(2), []byte{2, 0, 0, 0, 0, 0, 0, 0}},
		{DATE, uint16(18000), []byte{0x50, 0x46}},
		{TIME_OF_DAY, uint32(3600000), []byte{0x80, 0xEE, 0x36, 0x00}},
		{STIME, int32(-5), []byte{0xFB, 0xFF, 0xFF, 0xFF}},
		{ITIME, int16(10), []byte{10, 0}},
		{FTIME, int32(1), []byte{1, 0, 0, 0}},
		{LTIME, int64(3), []byte{3, 0, 0, 0, 0, 0, 0, 0}},
		{TIME, int32(7), []byte{7, 0, 0, 0}},
		{ENGUNIT, uint16(0x1001), []byte{0x01, 0x10}},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			wire, err := Encode(tt.typ, tt.value)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(wire, tt.wire) {
				t.Fatalf("Encode = % X, want % X", wire, tt.wire)
			}
			got, next, err := Decode(tt.typ, append([]byte{0xEE}, wire...), 1)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if next != 1+len(wire) {
				t.Errorf("next = %d, want %d", next, 1+len(wire))
			}
			if got != tt.value {
				t.Errorf("Decode = %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	_, next, err := Decode(UDINT, []byte{1, 2, 3}, 0)
	if !cipErrors.Is(err, cipErrors.ErrShortBuffer) {
		t.Fatalf("err = %v, want ErrShortBuffer", err)
	}
	if next != 0 {
		t.Errorf("next = %d, want 0", next)
	}
	var de *cipErrors.DecodeError
	if !cipErrors.As(err, &de) || de.Type != "UDINT" {
		t.Errorf("DecodeError = %+v", de)
	}

	if _, _, err := Decode(USINT, []byte{1}, 2); !cipErrors.Is(err, cipErrors.ErrShortBuffer) {
		t.Errorf("offset past end: err = %v", err)
	}
}

func TestBool(t *testing.T) {
	v, next, err := Decode(Bool{Position: 3}, []byte{0x08}, 0)
	if err != nil || v != true || next != 1 {
		t.Fatalf("Decode = %v, %d, %v", v, next, err)
	}
	v, _, _ = Decode(Bool{Position: 2}, []byte{0x08}, 0)
	if v != false {
		t.Errorf("bit 2 of 0x08 = %v, want false", v)
	}
	wire, err := Encode(Bool{Position: 5}, true)
	if err != nil || !bytes.Equal(wire, []byte{0x20}) {
		t.Errorf("Encode = % X, %v", wire, err)
	}
}

func TestDependentLengthStruct(t *testing.T) {
	countThenItems := func(count Type) Struct {
		return Struct{
			Members: []Type{count, Placeholder{Resolve: func(args ...any) Type {
				n, _ := ToInt(args[0])
				return ArrayOf(UINT, n)
			}}},
			Resolver: func(siblings []any, member Type) Type {
				if p, ok := member.(Placeholder); ok && len(siblings) == 1 {
					return p.With(siblings[0])
				}
				return nil
			},
		}
	}

	t.Run("UINT count", func(t *testing.T) {
		buf := []byte{0x03, 0x00, 0x0A, 0x00, 0x0B, 0x00, 0x0C, 0x00}
		v, next, err := Decode(countThenItems(UINT), buf, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := []any{uint16(3), []any{uint16(10), uint16(11), uint16(12)}}
		if !reflect.DeepEqual(v, want) {
			t.Errorf("value = %#v, want %#v", v, want)
		}
		if next != 8 {
			t.Errorf("next = %d, want 8", next)
		}
	})

	t.Run("USINT count", func(t *testing.T) {
		buf := []byte{0x03, 0x0A, 0x00, 0x0B, 0x00, 0x0C, 0x00}
		v, next, err := Decode(countThenItems(USINT), buf, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := []any{uint8(3), []any{uint16(10), uint16(11), uint16(12)}}
		if !reflect.DeepEqual(v, want) || next != 7 {
			t.Errorf("Decode = %#v, %d", v, next)
		}
	})

	t.Run("sibling bound", func(t *testing.T) {
		typ := Struct{Members: []Type{USINT, Array{Item: UINT, Lower: Lit(0), Upper: Ref(0).Plus(-1)}}}
		buf := []byte{0x02, 0x01, 0x00, 0x02, 0x00, 0xFF}
		v, next, err := Decode(typ, buf, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := []any{uint8(2), []any{uint16(1), uint16(2)}}
		if !reflect.DeepEqual(v, want) || next != 5 {
			t.Errorf("Decode = %#v, %d", v, next)
		}
		wire, err := Encode(typ, want)
		if err != nil || !bytes.Equal(wire, buf[:5]) {
			t.Errorf("Encode = % X, %v", wire, err)
		}
	})

	t.Run("truncated items", func(t *testing.T) {
		_, _, err := Decode(countThenItems(UINT), []byte{0x03, 0x00, 0x0A, 0x00}, 0)
		if !cipErrors.Is(err, cipErrors.ErrShortBuffer) {
			t.Errorf("err = %v, want ErrShortBuffer", err)
		}
	})

	t.Run("count larger than buffer", func(t *testing.T) {
		typ := Struct{Members: []Type{UDINT, Array{Item: USINT, Lower: Lit(0), Upper: Ref(0).Plus(-1)}}}
		_, next, err := Decode(typ, []byte{0xFF, 0xFF, 0xFF, 0x7F, 0x01, 0x02}, 0)
		if !cipErrors.Is(err, cipErrors.ErrShortBuffer) {
			t.Errorf("err = %v, want ErrShortBuffer", err)
		}
		if next != 0 {
			t.Errorf("next = %d, want 0", next)
		}
	})

	t.Run("count of zero-width items larger than buffer", func(t *testing.T) {
		typ := Struct{Members: []Type{UDINT, Array{Item: Struct{}, Lower: Lit(0), Upper: Ref(0).Plus(-1)}}}
		_, _, err := Decode(typ, []byte{0xFF, 0xFF, 0xFF, 0x7F, 0x01, 0x02}, 0)
		if !cipErrors.Is(err, cipErrors.ErrMalformed) {
			t.Errorf("err = %v, want ErrMalformed", err)
		}
	})
}

func TestUnresolvedPlaceholder(t *testing.T) {
	typ := Struct{Members: []Type{USINT, Placeholder{}}}
	_, _, err := Decode(typ, []byte{1, 2}, 0)
	if !cipErrors.Is(err, cipErrors.ErrUnresolvedPlaceholder) {
		t.Fatalf("err = %v, want ErrUnresolvedPlaceholder", err)
	}
	if _, err := Encode(typ, []any{uint8(1), uint8(2)}); err == nil {
		t.Error("Encode of an unresolved placeholder should fail")
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	buf := []byte{
		0x02,
		'e', 'n', 'g', 0xDA, 0x04, 0x00, 0x02, 'h', 'i',
		'd', 'e', 'u', 0xD0, 0x04, 0x00, 0x03, 0x00, 'h', 'a', 'l',
	}
	v1, n1, err := Decode(STRINGI, buf, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v2, n2, err := Decode(STRINGI, buf, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n1 != n2 || !reflect.DeepEqual(v1, v2) {
		t.Errorf("decode differs: %v@%d vs %v@%d", v1, n1, v2, n2)
	}
}

func TestAbbreviated(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		v, next, err := Decode(AbbrevStruct{CRC: 0x0FCE, Size: 3}, []byte{1, 2, 3, 4}, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := AbbrevStructValue{CRC: 0x0FCE, Data: []byte{1, 2, 3}}
		if !reflect.DeepEqual(v, want) || next != 3 {
			t.Errorf("Decode = %#v, %d", v, next)
		}
	})

	t.Run("array fixed length", func(t *testing.T) {
		v, next, err := Decode(AbbrevArray{Item: UINT, Length: 2}, []byte{1, 0, 2, 0, 3, 0}, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !reflect.DeepEqual(v, []any{uint16(1), uint16(2)}) || next != 4 {
			t.Errorf("Decode = %#v, %d", v, next)
		}
	})

	t.Run("array to end", func(t *testing.T) {
		pair := Struct{Members: []Type{UINT, UINT}}
		v, next, err := Decode(AbbrevArray{Item: pair, Length: -1}, []byte{4, 0, 1, 0, 1, 0, 2, 0}, 0)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := []any{[]any{uint16(4), uint16(1)}, []any{uint16(1), uint16(2)}}
		if !reflect.DeepEqual(v, want) || next != 8 {
			t.Errorf("Decode = %#v, %d", v, next)
		}
	})
}

func TestTransform(t *testing.T) {
	typ := Transform{
		Inner: USINT,
		Map: func(v any) (any, error) {
			n, _ := ToInt(v)
			return n * 10, nil
		},
		Unmap: func(v any) (any, error) {
			n, _ := ToInt(v)
			return uint8(n / 10), nil
		},
	}
	v, next, err := Decode(typ, []byte{4, 9}, 0)
	if err != nil || v != 40 || next != 1 {
		t.Fatalf("Decode = %v, %d, %v", v, next, err)
	}
	wire, err := Encode(typ, 70)
	if err != nil || !bytes.Equal(wire, []byte{7}) {
		t.Errorf("Encode = % X, %v", wire, err)
	}
}

func TestDateAndTime(t *testing.T) {
	buf := []byte{0x80, 0xEE, 0x36, 0x00, 0x50, 0x46}
	v, next, err := Decode(DATE_AND_TIME, buf, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(v, []any{uint32(3600000), uint16(18000)}) || next != 6 {
		t.Errorf("Decode = %#v, %d", v, next)
	}
}

func TestDecodeAllTrailingBytes(t *testing.T) {
	if _, err := DecodeAll(UINT, []byte{1, 0, 0}); !cipErrors.Is(err, cipErrors.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
	v, err := DecodeAll(UINT, []byte{1, 0})
	if err != nil || v != uint16(1) {
		t.Errorf("DecodeAll = %v, %v", v, err)
	}
}

func TestTypeForCode(t *testing.T) {
	for _, code := range []Code{CodeUINT, CodeSHORT_STRING, CodeSTRING, CodeSTRING2, CodeSTRINGN, CodeLREAL} {
		typ, ok := TypeForCode(code)
		if !ok || typ.Code() != code {
			t.Errorf("TypeForCode(0x%02X) = %v, %v", uint8(code), typ, ok)
		}
	}
	if _, ok := TypeForCode(CodeSTRUCT); ok {
		t.Error("constructed codes have no fixed descriptor")
	}
}
