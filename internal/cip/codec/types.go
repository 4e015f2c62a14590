package codec

import "fmt"

// Code is a CIP data type code (CIP Vol 1, Appendix C).
type Code uint8

const (
	CodeBOOL          Code = 0xC1
	CodeSINT          Code = 0xC2
	CodeINT           Code = 0xC3
	CodeDINT          Code = 0xC4
	CodeLINT          Code = 0xC5
	CodeUSINT         Code = 0xC6
	CodeUINT          Code = 0xC7
	CodeUDINT         Code = 0xC8
	CodeULINT         Code = 0xC9
	CodeREAL          Code = 0xCA
	CodeLREAL         Code = 0xCB
	CodeSTIME         Code = 0xCC
	CodeDATE          Code = 0xCD
	CodeTIME_OF_DAY   Code = 0xCE
	CodeDATE_AND_TIME Code = 0xCF
	CodeSTRING        Code = 0xD0
	CodeBYTE          Code = 0xD1
	CodeWORD          Code = 0xD2
	CodeDWORD         Code = 0xD3
	CodeLWORD         Code = 0xD4
	CodeSTRING2       Code = 0xD5
	CodeFTIME         Code = 0xD6
	CodeLTIME         Code = 0xD7
	CodeITIME         Code = 0xD8
	CodeSTRINGN       Code = 0xD9
	CodeSHORT_STRING  Code = 0xDA
	CodeTIME          Code = 0xDB
	CodeEPATH         Code = 0xDC
	CodeENGUNIT       Code = 0xDD
	CodeSTRINGI       Code = 0xDE

	CodeABBREV_STRUCT Code = 0xA0
	CodeABBREV_ARRAY  Code = 0xA1
	CodeSTRUCT        Code = 0xA2
	CodeARRAY         Code = 0xA3

	// Not CIP codes; used for descriptors with no wire code of their own.
	CodePlaceholder Code = 0x00
	CodeTransform   Code = 0x01
)

// Type is a data type descriptor. The set of descriptors is closed.
type Type interface {
	Code() Code
	String() string
	isType()
}

type kind uint8

const (
	kindUnsigned kind = iota
	kindSigned
	kindFloat
)

// Elementary is a fixed-width little-endian scalar.
type Elementary struct {
	code Code
	name string
	size int
	kind kind
}

func (e Elementary) Code() Code     { return e.code }
func (e Elementary) String() string { return e.name }
func (e Elementary) Size() int      { return e.size }
func (Elementary) isType()          {}

var (
	SINT        = Elementary{CodeSINT, "SINT", 1, kindSigned}
	INT         = Elementary{CodeINT, "INT", 2, kindSigned}
	DINT        = Elementary{CodeDINT, "DINT", 4, kindSigned}
	LINT        = Elementary{CodeLINT, "LINT", 8, kindSigned}
	USINT       = Elementary{CodeUSINT, "USINT", 1, kindUnsigned}
	UINT        = Elementary{CodeUINT, "UINT", 2, kindUnsigned}
	UDINT       = Elementary{CodeUDINT, "UDINT", 4, kindUnsigned}
	ULINT       = Elementary{CodeULINT, "ULINT", 8, kindUnsigned}
	REAL        = Elementary{CodeREAL, "REAL", 4, kindFloat}
	LREAL       = Elementary{CodeLREAL, "LREAL", 8, kindFloat}
	STIME       = Elementary{CodeSTIME, "STIME", 4, kindSigned}
	DATE        = Elementary{CodeDATE, "DATE", 2, kindUnsigned}
	TIME_OF_DAY = Elementary{CodeTIME_OF_DAY, "TIME_OF_DAY", 4, kindUnsigned}
	BYTE        = Elementary{CodeBYTE, "BYTE", 1, kindUnsigned}
	WORD        = Elementary{CodeWORD, "WORD", 2, kindUnsigned}
	DWORD       = Elementary{CodeDWORD, "DWORD", 4, kindUnsigned}
	LWORD       = Elementary{CodeLWORD, "LWORD", 8, kindUnsigned}
	FTIME       = Elementary{CodeFTIME, "FTIME", 4, kindSigned}
	LTIME       = Elementary{CodeLTIME, "LTIME", 8, kindSigned}
	ITIME       = Elementary{CodeITIME, "ITIME", 2, kindSigned}
	TIME        = Elementary{CodeTIME, "TIME", 4, kindSigned}
	ENGUNIT     = Elementary{CodeENGUNIT, "ENGUNIT", 2, kindUnsigned}
)

// DATE_AND_TIME is milliseconds since midnight followed by days since 1972-01-01.
var DATE_AND_TIME = Struct{Name: "DATE_AND_TIME", Members: []Type{TIME_OF_DAY, DATE}}

// Bool is a single bit in one byte.
type Bool struct {
	Position uint8
}

func (Bool) Code() Code       { return CodeBOOL }
func (b Bool) String() string { return fmt.Sprintf("BOOL[%d]", b.Position) }
func (Bool) isType()          {}

// BOOL is bit zero of a byte.
var BOOL = Bool{}

// EPath is a sequence of path segments. Length > 0 bounds the path to that many
// bytes; zero consumes the rest of the buffer.
type EPath struct {
	Padded bool
	Length int
}

func (EPath) Code() Code { return CodeEPATH }
func (p EPath) String() string {
	if p.Padded {
		return "EPATH(padded)"
	}
	return "EPATH"
}
func (EPath) isType() {}

// Resolver is called before each struct member is decoded or encoded. It gets the
// values decoded so far and the declared member, and may return a replacement.
type Resolver func(siblings []any, member Type) Type

// Struct decodes members in order into a []any.
type Struct struct {
	Name     string
	Members  []Type
	Resolver Resolver
}

func (Struct) Code() Code { return CodeSTRUCT }
func (s Struct) String() string {
	if s.Name != "" {
		return s.Name
	}
	return "STRUCT"
}
func (Struct) isType() {}

// Bound is an array bound: a literal, or a sibling value plus an adjustment.
type Bound struct {
	Value   int
	Sibling int
	Ref     bool
}

// Lit returns a literal bound.
func Lit(n int) Bound { return Bound{Value: n} }

// Ref returns a bound taken from the sibling at index i.
func Ref(i int) Bound { return Bound{Sibling: i, Ref: true} }

// Plus adjusts a bound by n.
func (b Bound) Plus(n int) Bound {
	b.Value += n
	return b
}

func (b Bound) resolve(siblings []any) (int, error) {
	if !b.Ref {
		return b.Value, nil
	}
	if b.Sibling < 0 || b.Sibling >= len(siblings) {
		return 0, fmt.Errorf("bound refers to sibling %d of %d", b.Sibling, len(siblings))
	}
	n, ok := ToInt(siblings[b.Sibling])
	if !ok {
		return 0, fmt.Errorf("sibling %d is %T, not an integer", b.Sibling, siblings[b.Sibling])
	}
	return n + b.Value, nil
}

// Array decodes Upper-Lower+1 items into a []any.
type Array struct {
	Item  Type
	Lower Bound
	Upper Bound
}

func (Array) Code() Code       { return CodeARRAY }
func (a Array) String() string { return "ARRAY<" + a.Item.String() + ">" }
func (Array) isType()          {}

// ArrayOf returns an array of exactly n items.
func ArrayOf(item Type, n int) Array {
	return Array{Item: item, Lower: Lit(0), Upper: Lit(n - 1)}
}

// AbbrevStruct is an opaque structure identified by its CRC. Size < 0 takes the
// rest of the buffer.
type AbbrevStruct struct {
	CRC  uint16
	Size int
}

func (AbbrevStruct) Code() Code       { return CodeABBREV_STRUCT }
func (a AbbrevStruct) String() string { return fmt.Sprintf("ABBREV_STRUCT(0x%04X)", a.CRC) }
func (AbbrevStruct) isType()          {}

// AbbrevStructValue is the decoded form of an AbbrevStruct.
type AbbrevStructValue struct {
	CRC  uint16
	Data []byte
}

// AbbrevArray decodes Item exactly Length times, or until the buffer is
// exhausted when Length < 0.
type AbbrevArray struct {
	Item   Type
	Length int
}

func (AbbrevArray) Code() Code       { return CodeABBREV_ARRAY }
func (a AbbrevArray) String() string { return "ABBREV_ARRAY<" + a.Item.String() + ">" }
func (AbbrevArray) isType()          {}

// Placeholder stands for a member whose type depends on earlier siblings. It
// must be replaced by a Struct resolver before it is decoded.
type Placeholder struct {
	Resolve func(args ...any) Type
}

func (Placeholder) Code() Code     { return CodePlaceholder }
func (Placeholder) String() string { return "PLACEHOLDER" }
func (Placeholder) isType()        {}

// With resolves the placeholder. Without a Resolve func the first argument must
// itself be a Type.
func (p Placeholder) With(args ...any) Type {
	if p.Resolve != nil {
		return p.Resolve(args...)
	}
	if len(args) > 0 {
		if t, ok := args[0].(Type); ok {
			return t
		}
	}
	return nil
}

// Transform decodes Inner and maps the result. Unmap reverses Map for encoding.
type Transform struct {
	Name  string
	Inner Type
	Map   func(any) (any, error)
	Unmap func(any) (any, error)
}

func (Transform) Code() Code { return CodeTransform }
func (t Transform) String() string {
	if t.Name != "" {
		return t.Name
	}
	return "TRANSFORM<" + t.Inner.String() + ">"
}
func (Transform) isType() {}

// TypeForCode returns the descriptor for an elementary or string data type code.
func TypeForCode(code Code) (Type, bool) {
	t, ok := byCode[code]
	return t, ok
}

var byCode = map[Code]Type{
	CodeBOOL:          BOOL,
	CodeSINT:          SINT,
	CodeINT:           INT,
	CodeDINT:          DINT,
	CodeLINT:          LINT,
	CodeUSINT:         USINT,
	CodeUINT:          UINT,
	CodeUDINT:         UDINT,
	CodeULINT:         ULINT,
	CodeREAL:          REAL,
	CodeLREAL:         LREAL,
	CodeSTIME:         STIME,
	CodeDATE:          DATE,
	CodeTIME_OF_DAY:   TIME_OF_DAY,
	CodeDATE_AND_TIME: DATE_AND_TIME,
	CodeSTRING:        STRING,
	CodeBYTE:          BYTE,
	CodeWORD:          WORD,
	CodeDWORD:         DWORD,
	CodeLWORD:         LWORD,
	CodeSTRING2:       STRING2,
	CodeFTIME:         FTIME,
	CodeLTIME:         LTIME,
	CodeITIME:         ITIME,
	CodeSTRINGN:       STRINGN,
	CodeSHORT_STRING:  SHORT_STRING,
	CodeTIME:          TIME,
	CodeENGUNIT:       ENGUNIT,
}
