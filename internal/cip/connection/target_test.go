package connection

// Target side of Forward Open and Forward Close, used by the fake targets in
// this package's tests.

import (
	"fmt"

	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
)

// parseForwardOpenRequest decodes a Forward Open or Large Forward Open request.
func parseForwardOpenRequest(b []byte) (ForwardOpenRequest, error) {
	req, err := protocol.ParseRequest(b)
	if err != nil {
		return ForwardOpenRequest{}, err
	}
	var r ForwardOpenRequest
	switch req.Service {
	case spec.ServiceForwardOpen:
	case spec.ServiceLargeForwardOpen:
		r.Large = true
	default:
		return r, fmt.Errorf("service 0x%02X is not a forward open", uint8(req.Service))
	}
	paramSize := 2
	if r.Large {
		paramSize = 4
	}
	p := req.Data
	fixed := 32 + 2*paramSize
	if len(p) < fixed {
		return r, fmt.Errorf("forward open too short: %d bytes", len(p))
	}
	r.PriorityTick, r.TimeoutTicks = p[0], p[1]
	r.OToTConnectionID = order.Uint32(p[2:])
	r.TToOConnectionID = order.Uint32(p[6:])
	r.ConnectionSerial = order.Uint16(p[10:])
	r.VendorID = order.Uint16(p[12:])
	r.OriginatorSerial = order.Uint32(p[14:])
	r.Multiplier = p[18]
	off := 22
	readParams := func() uint32 {
		var v uint32
		if r.Large {
			v = order.Uint32(p[off:])
		} else {
			v = uint32(order.Uint16(p[off:]))
		}
		off += paramSize
		return v
	}
	r.OToTRPI = order.Uint32(p[off:])
	off += 4
	r.OToTParameters = readParams()
	r.TToORPI = order.Uint32(p[off:])
	off += 4
	r.TToOParameters = readParams()
	r.Transport = p[off]
	off++
	words := int(p[off])
	off++
	if off+2*words > len(p) {
		return r, fmt.Errorf("connection path of %d words exceeds request", words)
	}
	r.Path = p[off : off+2*words]
	return r, nil
}

// encode builds the reply data a target sends for a successful open.
func (r ForwardOpenReply) encode() ([]byte, error) {
	if len(r.ApplicationReply)%2 != 0 {
		return nil, fmt.Errorf("application reply must be whole words, got %d bytes", len(r.ApplicationReply))
	}
	return codec.Encode(forwardOpenReplyType, []any{
		r.OToTConnectionID, r.TToOConnectionID,
		r.ConnectionSerial, r.VendorID, r.OriginatorSerial,
		r.OToTAPI, r.TToOAPI,
		uint8(len(r.ApplicationReply) / 2), uint8(0),
		codec.AbbrevStructValue{Data: r.ApplicationReply},
	})
}

// parseForwardCloseRequest decodes a Forward Close request.
func parseForwardCloseRequest(b []byte) (ForwardCloseRequest, error) {
	req, err := protocol.ParseRequest(b)
	if err != nil {
		return ForwardCloseRequest{}, err
	}
	if req.Service != spec.ServiceForwardClose {
		return ForwardCloseRequest{}, fmt.Errorf("service 0x%02X is not a forward close", uint8(req.Service))
	}
	p := req.Data
	if len(p) < 12 {
		return ForwardCloseRequest{}, fmt.Errorf("forward close too short: %d bytes", len(p))
	}
	r := ForwardCloseRequest{
		PriorityTick:     p[0],
		TimeoutTicks:     p[1],
		ConnectionSerial: order.Uint16(p[2:]),
		VendorID:         order.Uint16(p[4:]),
		OriginatorSerial: order.Uint32(p[6:]),
	}
	n := 2 * int(p[10])
	if 12+n > len(p) {
		return r, fmt.Errorf("connection path of %d bytes exceeds request", n)
	}
	r.Path = p[12 : 12+n]
	return r, nil
}

// encode builds the reply data a target sends for a successful close.
func (r ForwardCloseReply) encode() ([]byte, error) {
	return codec.Encode(forwardCloseReplyType, []any{
		r.ConnectionSerial, r.VendorID, r.OriginatorSerial,
		uint8(len(r.ApplicationReply) / 2), uint8(0),
		codec.AbbrevStructValue{Data: r.ApplicationReply},
	})
}
