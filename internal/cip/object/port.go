package object

import (
	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/spec"
)

// Port instance attribute codes (CIP Vol 3, 3-7.3).
const (
	PortType        uint16 = 1
	PortNumber      uint16 = 2
	PortLink        uint16 = 3
	PortName        uint16 = 4
	PortTypeName    uint16 = 5
	PortDescription uint16 = 6
	PortNodeAddress uint16 = 7
	PortNodeRange   uint16 = 8
	PortKey         uint16 = 9
)

// Port class attribute codes.
const (
	PortClassMaxInstance       uint16 = 2
	PortClassNumberOfInstances uint16 = 3
	PortClassEntryPort         uint16 = 8
	PortClassInstanceInfo      uint16 = 9
)

var portTypeNames = map[uint16]string{
	0:     "Connection terminates in this device",
	1:     "Backplane",
	2:     "ControlNet",
	3:     "ControlNet redundant",
	4:     "EtherNet/IP",
	5:     "DeviceNet",
	200:   "CompoNet",
	201:   "Modbus/TCP",
	202:   "Modbus/SL",
	65535: "Unconfigured port",
}

// portLink is a UINT path size in words followed by a padded EPATH of that size.
var portLink = codec.Struct{
	Name: "port link",
	Members: []codec.Type{
		codec.UINT,
		codec.Placeholder{Resolve: func(args ...any) codec.Type {
			return codec.EPath{Padded: args[0].(bool), Length: args[1].(int)}
		}},
	},
	Resolver: func(siblings []any, member codec.Type) codec.Type {
		p, ok := member.(codec.Placeholder)
		if !ok || len(siblings) != 1 {
			return nil
		}
		words, _ := codec.ToInt(siblings[0])
		if words == 0 {
			return codec.AbbrevArray{Item: codec.USINT, Length: 0}
		}
		return p.With(true, 2*words)
	},
}

func linkSegments(v any) any {
	fields, ok := v.([]any)
	if !ok || len(fields) != 2 {
		return v
	}
	if segs, ok := fields[1].([]codec.Segment); ok {
		return segs
	}
	return []codec.Segment{}
}

var portInstanceType = codec.Struct{Members: []codec.Type{codec.UINT, codec.UINT}}

// Port is the Port object, class 0xF4.
var Port = &Object{
	Class: spec.ClassPort,
	Name:  "Port",
	ClassAttributes: newTable(
		Attribute{Code: 1, Name: "Revision", Type: codec.UINT},
		Attribute{Code: PortClassMaxInstance, Name: "Max Instance", Type: codec.UINT},
		Attribute{Code: PortClassNumberOfInstances, Name: "Number of Instances", Type: codec.UINT},
		Attribute{Code: PortClassEntryPort, Name: "Entry Port", Type: codec.UINT},
		Attribute{Code: PortClassInstanceInfo, Name: "Port Instance Info", Type: codec.AbbrevArray{Item: portInstanceType, Length: -1}, Map: toPortInstanceInfo},
	),
	InstanceAttributes: newTable(
		Attribute{Code: PortType, Name: "Port Type", Type: codec.UINT, Map: nameFrom(portTypeNames)},
		Attribute{Code: PortNumber, Name: "Port Number", Type: codec.UINT},
		Attribute{Code: PortLink, Name: "Link Object", Type: portLink, Map: linkSegments},
		Attribute{Code: PortName, Name: "Port Name", Type: codec.SHORT_STRING},
		Attribute{Code: PortTypeName, Name: "Port Type Name", Type: codec.SHORT_STRING},
		Attribute{Code: PortDescription, Name: "Port Description", Type: codec.SHORT_STRING},
		Attribute{Code: PortNodeAddress, Name: "Node Address", Type: codec.EPath{Padded: true}},
		Attribute{Code: PortNodeRange, Name: "Port Node Range", Type: codec.Struct{Members: []codec.Type{codec.UINT, codec.UINT}}},
		Attribute{Code: PortKey, Name: "Port Key", Type: codec.EPath{}},
	),
	GetAllOrder: []uint16{PortType, PortNumber, PortLink, PortName, PortNodeAddress},
}

// PortInstance is one entry of the Port class instance info attribute.
type PortInstance struct {
	Type   Named
	Number uint16
}

func toPortInstanceInfo(v any) any {
	items, _ := v.([]any)
	out := make([]PortInstance, 0, len(items))
	typeName := nameFrom(portTypeNames)
	for _, it := range items {
		fields, _ := it.([]any)
		if len(fields) != 2 {
			continue
		}
		n, _ := fields[1].(uint16)
		out = append(out, PortInstance{Type: typeName(fields[0]).(Named), Number: n})
	}
	return out
}
