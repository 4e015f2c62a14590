// Package object describes CIP object classes as data: a class code plus
// class and instance attribute tables used to build requests and decode replies.
package object

import (
	"fmt"
	"sort"

	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
	cipErrors "github.com/tturner/cipstack/internal/errors"
)

// Attribute describes one attribute of a class or of its instances.
type Attribute struct {
	Code uint16
	Name string
	Type codec.Type
	// Map turns the decoded value into its presentation form.
	Map func(any) any
}

// Table is an attribute table keyed by attribute code.
type Table map[uint16]Attribute

func newTable(attrs ...Attribute) Table {
	t := make(Table, len(attrs))
	for _, a := range attrs {
		t[a.Code] = a
	}
	return t
}

// Codes returns the table's attribute codes in ascending order.
func (t Table) Codes() []uint16 {
	codes := make([]uint16, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Value is a decoded attribute.
type Value struct {
	Code  uint16
	Name  string
	Value any
}

func (v Value) String() string {
	return fmt.Sprintf("%s (%d): %v", v.Name, v.Code, v.Value)
}

// Object is a CIP object class.
type Object struct {
	Class              spec.ClassCode
	Name               string
	ClassAttributes    Table
	InstanceAttributes Table
	// GetAllOrder lists instance attributes in Get_Attributes_All reply order.
	GetAllOrder []uint16
}

// DecodeInstanceAttribute decodes instance attribute code from buf at off.
func (o *Object) DecodeInstanceAttribute(code uint16, buf []byte, off int) (Value, int, error) {
	return decodeFrom(o.InstanceAttributes, o.Name+" instance", code, buf, off)
}

// DecodeClassAttribute decodes class attribute code from buf at off.
func (o *Object) DecodeClassAttribute(code uint16, buf []byte, off int) (Value, int, error) {
	return decodeFrom(o.ClassAttributes, o.Name+" class", code, buf, off)
}

// DecodeInstanceAll decodes a Get_Attributes_All reply. Devices may stop
// after any whole attribute, so a reply that ends early is not an error.
func (o *Object) DecodeInstanceAll(buf []byte) ([]Value, error) {
	values := make([]Value, 0, len(o.GetAllOrder))
	off := 0
	for _, code := range o.GetAllOrder {
		if off >= len(buf) {
			break
		}
		v, next, err := o.DecodeInstanceAttribute(code, buf, off)
		if err != nil {
			return values, err
		}
		values = append(values, v)
		off = next
	}
	return values, nil
}

// GetInstanceAttributeRequest encodes Get_Attribute_Single for an instance attribute.
func (o *Object) GetInstanceAttributeRequest(instance uint32, code uint16) []byte {
	return protocol.EncodeRequest(spec.ServiceGetAttributeSingle, protocol.LogicalPath(uint32(o.Class), instance, uint32(code)), nil)
}

// GetClassAttributeRequest encodes Get_Attribute_Single for a class attribute.
func (o *Object) GetClassAttributeRequest(code uint16) []byte {
	return protocol.EncodeRequest(spec.ServiceGetAttributeSingle, protocol.ClassPath(uint32(o.Class), uint32(code)), nil)
}

// GetInstanceAttributesAllRequest encodes Get_Attributes_All for an instance.
func (o *Object) GetInstanceAttributesAllRequest(instance uint32) []byte {
	return protocol.EncodeRequest(spec.ServiceGetAttributesAll, protocol.LogicalPath(uint32(o.Class), instance), nil)
}

func decodeFrom(t Table, scope string, code uint16, buf []byte, off int) (Value, int, error) {
	attr, ok := t[code]
	if !ok {
		return Value{}, off, &cipErrors.DecodeError{
			Type:   fmt.Sprintf("%s attribute %d", scope, code),
			Offset: off,
			Err:    cipErrors.ErrUnknownType,
		}
	}
	v, next, err := codec.Decode(attr.Type, buf, off)
	if err != nil {
		return Value{}, off, fmt.Errorf("%s attribute %s: %w", scope, attr.Name, err)
	}
	if attr.Map != nil {
		v = attr.Map(v)
	}
	return Value{Code: code, Name: attr.Name, Value: v}, next, nil
}

// Named is a code with its display name.
type Named struct {
	Code uint16
	Name string
}

func (n Named) String() string { return fmt.Sprintf("%s (%d)", n.Name, n.Code) }

func nameFrom(names map[uint16]string) func(any) any {
	return func(v any) any {
		n, _ := codec.ToInt(v)
		name, ok := names[uint16(n)]
		if !ok {
			name = "Unknown"
		}
		return Named{Code: uint16(n), Name: name}
	}
}

// countedList is a UINT count followed by that many items. Decodes to []any
// holding the count and the items.
func countedList(name string, item codec.Type) codec.Struct {
	return codec.Struct{
		Name:    name,
		Members: []codec.Type{codec.UINT, codec.Placeholder{}},
		Resolver: func(siblings []any, member codec.Type) codec.Type {
			if len(siblings) != 1 {
				return nil
			}
			return codec.Array{Item: item, Lower: codec.Lit(0), Upper: codec.Ref(0).Plus(-1)}
		},
	}
}

// dropCount keeps only the items of a countedList value.
func dropCount(v any) any {
	fields, ok := v.([]any)
	if !ok || len(fields) != 2 {
		return v
	}
	return fields[1]
}

func uint16s(v any) []uint16 {
	items, _ := v.([]any)
	out := make([]uint16, 0, len(items))
	for _, it := range items {
		n, _ := codec.ToInt(it)
		out = append(out, uint16(n))
	}
	return out
}
