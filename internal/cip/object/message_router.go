package object

import (
	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/spec"
)

// Message Router instance attribute codes (CIP Vol 1, Table 5-3.3).
const (
	RouterObjectList        uint16 = 1
	RouterNumberAvailable   uint16 = 2
	RouterNumberActive      uint16 = 3
	RouterActiveConnections uint16 = 4
)

// ObjectList is the Message Router's supported object list.
var ObjectList = countedList("object list", codec.UINT)

// MessageRouter is the Message Router object, class 0x02.
var MessageRouter = &Object{
	Class:           spec.ClassMessageRouter,
	Name:            "Message Router",
	ClassAttributes: standardClassAttributes(),
	InstanceAttributes: newTable(
		Attribute{Code: RouterObjectList, Name: "Object List", Type: ObjectList, Map: func(v any) any { return uint16s(dropCount(v)) }},
		Attribute{Code: RouterNumberAvailable, Name: "Number Available", Type: codec.UINT},
		Attribute{Code: RouterNumberActive, Name: "Number Active", Type: codec.UINT},
		Attribute{Code: RouterActiveConnections, Name: "Active Connections", Type: codec.AbbrevArray{Item: codec.UINT, Length: -1}, Map: func(v any) any { return uint16s(v) }},
	),
}

// RouterInfo is the decoded Message Router instance.
type RouterInfo struct {
	Classes            []uint16
	MaximumConnections *uint16
	Connections        []uint16
}

// routerTail is the part after the object list: maximum connections, then the
// active connection IDs as a counted list.
var routerTail = codec.Struct{
	Name:    "message router connections",
	Members: []codec.Type{codec.UINT, countedList("active connections", codec.UINT)},
}

// DecodeSupportedClasses decodes the object list attribute.
func DecodeSupportedClasses(data []byte, off int) ([]uint16, int, error) {
	v, next, err := codec.Decode(ObjectList, data, off)
	if err != nil {
		return nil, off, err
	}
	return uint16s(dropCount(v)), next, nil
}

// DecodeRouterInstance decodes a Message Router Get_Attributes_All reply. The
// object list and the connection fields are each optional on the wire.
func DecodeRouterInstance(data []byte) (RouterInfo, error) {
	var info RouterInfo
	off := 0
	if off < len(data) {
		classes, next, err := DecodeSupportedClasses(data, off)
		if err != nil {
			return info, err
		}
		info.Classes = classes
		off = next
	}
	if off < len(data) {
		v, _, err := codec.Decode(routerTail, data, off)
		if err != nil {
			return info, err
		}
		fields := v.([]any)
		max := fields[0].(uint16)
		info.MaximumConnections = &max
		info.Connections = uint16s(dropCount(fields[1]))
	}
	return info, nil
}
