package connection

// Connection Manager Forward Open and Forward Close bodies (CIP Vol 1, 3-5.4).

import (
	"encoding/binary"

	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
)

var order = binary.LittleEndian

// ConnectionManagerPath addresses the Connection Manager, class 0x06 instance 1.
var ConnectionManagerPath = protocol.LogicalPath(uint32(spec.ClassConnectionManager), 1)

// MessageRouterPath is the connection path for explicit messaging, class 0x02 instance 1.
var MessageRouterPath = protocol.LogicalPath(uint32(spec.ClassMessageRouter), 1)

// ForwardOpenRequest is the body of Forward Open and Large Forward Open.
type ForwardOpenRequest struct {
	Large            bool
	PriorityTick     uint8
	TimeoutTicks     uint8
	OToTConnectionID uint32
	TToOConnectionID uint32
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	Multiplier       uint8
	OToTRPI          uint32
	OToTParameters   uint32
	TToORPI          uint32
	TToOParameters   uint32
	Transport        uint8
	Path             []byte
}

// Encode builds the full Message Router request.
func (r ForwardOpenRequest) Encode() []byte {
	data := []byte{r.PriorityTick, r.TimeoutTicks}
	data = codec.AppendUint32(order, data, r.OToTConnectionID)
	data = codec.AppendUint32(order, data, r.TToOConnectionID)
	data = codec.AppendUint16(order, data, r.ConnectionSerial)
	data = codec.AppendUint16(order, data, r.VendorID)
	data = codec.AppendUint32(order, data, r.OriginatorSerial)
	data = append(data, r.Multiplier, 0, 0, 0)
	data = codec.AppendUint32(order, data, r.OToTRPI)
	data = r.appendParameters(data, r.OToTParameters)
	data = codec.AppendUint32(order, data, r.TToORPI)
	data = r.appendParameters(data, r.TToOParameters)
	data = append(data, r.Transport)
	data = appendPath(data, r.Path)

	service := spec.ServiceForwardOpen
	if r.Large {
		service = spec.ServiceLargeForwardOpen
	}
	return protocol.EncodeRequest(service, ConnectionManagerPath, data)
}

func (r ForwardOpenRequest) appendParameters(data []byte, code uint32) []byte {
	if r.Large {
		return codec.AppendUint32(order, data, code)
	}
	return codec.AppendUint16(order, data, uint16(code))
}

// appendPath appends a path size in words and the padded path.
func appendPath(data, path []byte) []byte {
	words := (len(path) + 1) / 2
	data = append(data, byte(words))
	data = append(data, path...)
	if len(path)%2 != 0 {
		data = append(data, 0)
	}
	return data
}

// ForwardOpenReply is the body of a successful Forward Open reply.
type ForwardOpenReply struct {
	OToTConnectionID uint32
	TToOConnectionID uint32
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	OToTAPI          uint32
	TToOAPI          uint32
	ApplicationReply []byte
}

func applicationReply(sizeIndex int) codec.Resolver {
	return func(siblings []any, member codec.Type) codec.Type {
		if len(siblings) != sizeIndex+2 {
			return nil
		}
		words, _ := codec.ToInt(siblings[sizeIndex])
		return codec.AbbrevStruct{Size: 2 * words}
	}
}

var forwardOpenReplyType = codec.Struct{
	Name: "forward open reply",
	Members: []codec.Type{
		codec.UDINT, codec.UDINT, // connection IDs
		codec.UINT, codec.UINT, codec.UDINT, // serial triple
		codec.UDINT, codec.UDINT, // actual packet intervals
		codec.USINT, codec.USINT, // application reply size, reserved
		codec.Placeholder{},
	},
	Resolver: applicationReply(7),
}

// ParseForwardOpenReply decodes the data of a successful Forward Open reply.
func ParseForwardOpenReply(data []byte) (ForwardOpenReply, error) {
	v, _, err := codec.Decode(forwardOpenReplyType, data, 0)
	if err != nil {
		return ForwardOpenReply{}, err
	}
	f := v.([]any)
	return ForwardOpenReply{
		OToTConnectionID: f[0].(uint32),
		TToOConnectionID: f[1].(uint32),
		ConnectionSerial: f[2].(uint16),
		VendorID:         f[3].(uint16),
		OriginatorSerial: f[4].(uint32),
		OToTAPI:          f[5].(uint32),
		TToOAPI:          f[6].(uint32),
		ApplicationReply: f[9].(codec.AbbrevStructValue).Data,
	}, nil
}

// ForwardOpenFailure is the body of an unsuccessful Forward Open reply.
type ForwardOpenFailure struct {
	ConnectionSerial  uint16
	VendorID          uint16
	OriginatorSerial  uint32
	RemainingPathSize uint8
}

var forwardOpenFailureType = codec.Struct{
	Name:    "forward open failure",
	Members: []codec.Type{codec.UINT, codec.UINT, codec.UDINT, codec.USINT},
}

// ParseForwardOpenFailure decodes the data of a failed Forward Open reply.
func ParseForwardOpenFailure(data []byte) (ForwardOpenFailure, error) {
	v, _, err := codec.Decode(forwardOpenFailureType, data, 0)
	if err != nil {
		return ForwardOpenFailure{}, err
	}
	f := v.([]any)
	return ForwardOpenFailure{
		ConnectionSerial:  f[0].(uint16),
		VendorID:          f[1].(uint16),
		OriginatorSerial:  f[2].(uint32),
		RemainingPathSize: f[3].(uint8),
	}, nil
}

// ForwardCloseRequest is the body of a Forward Close.
type ForwardCloseRequest struct {
	PriorityTick     uint8
	TimeoutTicks     uint8
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	Path             []byte
}

// Encode builds the full Message Router request.
func (r ForwardCloseRequest) Encode() []byte {
	data := []byte{r.PriorityTick, r.TimeoutTicks}
	data = codec.AppendUint16(order, data, r.ConnectionSerial)
	data = codec.AppendUint16(order, data, r.VendorID)
	data = codec.AppendUint32(order, data, r.OriginatorSerial)
	words := (len(r.Path) + 1) / 2
	data = append(data, byte(words), 0)
	data = append(data, r.Path...)
	if len(r.Path)%2 != 0 {
		data = append(data, 0)
	}
	return protocol.EncodeRequest(spec.ServiceForwardClose, ConnectionManagerPath, data)
}

// ForwardCloseReply is the body of a successful Forward Close reply.
type ForwardCloseReply struct {
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	ApplicationReply []byte
}

var forwardCloseReplyType = codec.Struct{
	Name: "forward close reply",
	Members: []codec.Type{
		codec.UINT, codec.UINT, codec.UDINT,
		codec.USINT, codec.USINT,
		codec.Placeholder{},
	},
	Resolver: applicationReply(3),
}

// ParseForwardCloseReply decodes the data of a successful Forward Close reply.
func ParseForwardCloseReply(data []byte) (ForwardCloseReply, error) {
	v, _, err := codec.Decode(forwardCloseReplyType, data, 0)
	if err != nil {
		return ForwardCloseReply{}, err
	}
	f := v.([]any)
	return ForwardCloseReply{
		ConnectionSerial: f[0].(uint16),
		VendorID:         f[1].(uint16),
		OriginatorSerial: f[2].(uint32),
		ApplicationReply: f[5].(codec.AbbrevStructValue).Data,
	}, nil
}
