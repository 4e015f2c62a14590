package protocol

// Message Router request and reply framing (CIP Vol 1, 2-4).

import (
	"fmt"

	"github.com/tturner/cipstack/internal/cip/codec"
	cipErrors "github.com/tturner/cipstack/internal/errors"
)

// ServiceCode represents a CIP service code.
type ServiceCode uint8

// ReplyFlag is set on the service code of every reply.
const ReplyFlag = 0x80

// Reply returns the service code a reply to s carries.
func (s ServiceCode) Reply() ServiceCode { return s | ReplyFlag }

// Request is a Message Router request.
type Request struct {
	Service ServiceCode
	Path    []byte // padded EPATH
	Data    []byte
}

// Encode frames the request as service, path size in words, path and data.
func (r Request) Encode() []byte {
	path := r.Path
	if len(path)%2 != 0 {
		path = append(append([]byte(nil), path...), 0x00)
	}
	out := make([]byte, 0, 2+len(path)+len(r.Data))
	out = append(out, byte(r.Service), byte(len(path)/2))
	out = append(out, path...)
	return append(out, r.Data...)
}

// EncodeRequest is a shorthand for Request{...}.Encode().
func EncodeRequest(service ServiceCode, path, data []byte) []byte {
	return Request{Service: service, Path: path, Data: data}.Encode()
}

// ParseRequest splits an encoded request into its parts.
func ParseRequest(b []byte) (Request, error) {
	if len(b) < 2 {
		return Request{}, fmt.Errorf("request too short: %d bytes", len(b))
	}
	n := int(b[1]) * 2
	if len(b) < 2+n {
		return Request{}, fmt.Errorf("incomplete EPATH: need %d bytes, have %d", n, len(b)-2)
	}
	return Request{Service: ServiceCode(b[0]), Path: b[2 : 2+n], Data: b[2+n:]}, nil
}

// Status is the general and extended status of a reply.
type Status struct {
	Code        uint8
	Extended    []uint16
	Error       bool
	Description string
}

// Reply is a Message Router reply.
type Reply struct {
	Service ServiceCode
	Status  Status
	Data    []byte
}

// Err returns a *errors.ProtocolStatusError for a failed reply, nil otherwise.
func (r Reply) Err() error {
	if !r.Status.Error {
		return nil
	}
	return &cipErrors.ProtocolStatusError{
		Service:     uint8(r.Service &^ ReplyFlag),
		Code:        r.Status.Code,
		Extended:    r.Status.Extended,
		Description: r.Status.Description,
	}
}

// ParseReply decodes service, reserved, general status, extended status size
// in words, extended status and reply data.
func ParseReply(b []byte) (Reply, error) {
	if len(b) < 4 {
		return Reply{}, &cipErrors.DecodeError{Type: "reply", Offset: len(b), Err: cipErrors.ErrShortBuffer}
	}
	r := Reply{Service: ServiceCode(b[0])}
	r.Status.Code = b[2]
	extWords := int(b[3])
	off := 4
	if len(b) < off+2*extWords {
		return r, &cipErrors.DecodeError{Type: "extended status", Offset: off, Err: cipErrors.ErrShortBuffer}
	}
	for i := 0; i < extWords; i++ {
		r.Status.Extended = append(r.Status.Extended, uint16(b[off])|uint16(b[off+1])<<8)
		off += 2
	}
	r.Status.Error = r.Status.Code != 0x00
	r.Status.Description = StatusDescription(r.Status.Code, r.Status.Extended)
	r.Data = b[off:]
	return r, nil
}

// EncodeReply frames a reply. Used by tests and loopback peers.
func EncodeReply(service ServiceCode, status uint8, extended []uint16, data []byte) []byte {
	out := []byte{byte(service | ReplyFlag), 0x00, status, byte(len(extended))}
	for _, e := range extended {
		out = codec.AppendUint16(le, out, e)
	}
	return append(out, data...)
}
