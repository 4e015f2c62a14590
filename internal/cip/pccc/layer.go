package pccc

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tturner/cipstack/internal/cip/layer"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
	"github.com/tturner/cipstack/internal/logging"
)

// HeaderLength is the size of the requester ID that precedes every PCCC
// command in Execute PCCC: its own length, a vendor ID and a serial number.
const HeaderLength = 7

const (
	DefaultVendorID     uint16 = 0x0001
	DefaultSerialNumber uint32 = 0x01020304
)

// Options identify the requester to the PCCC object.
type Options struct {
	VendorID     uint16
	SerialNumber uint32
}

type result struct {
	data []byte
	err  error
}

// Layer sends PCCC commands as unconnected Execute PCCC requests to the PCCC
// object, class 0x67 instance 1.
type Layer struct {
	lower  layer.Lower
	log    *logging.Logger
	header []byte
	tns    atomic.Uint32
	calls  layer.Contexts[chan result]
}

// New creates a PCCC layer above lower and binds it.
func New(lower layer.Lower, opts Options, logger *logging.Logger) *Layer {
	if opts.VendorID == 0 {
		opts.VendorID = DefaultVendorID
	}
	if opts.SerialNumber == 0 {
		opts.SerialNumber = DefaultSerialNumber
	}
	header := []byte{HeaderLength}
	header = order.AppendUint16(header, opts.VendorID)
	header = order.AppendUint32(header, opts.SerialNumber)

	l := &Layer{lower: lower, log: logger, header: header}
	lower.Bind(l)
	return l
}

// HandleData resolves the Execute PCCC request the reply belongs to.
func (l *Layer) HandleData(data []byte, info *layer.Info, msgCtx any) {
	tok, ok := msgCtx.(layer.Token)
	if !ok {
		l.log.Debug("Unsolicited PCCC data dropped (%d bytes)", len(data))
		return
	}
	if ch, ok := l.calls.Take(tok); ok {
		ch <- result{data: data}
	}
}

// HandleError fails the request sent with msgCtx.
func (l *Layer) HandleError(msgCtx any, err error) {
	tok, ok := msgCtx.(layer.Token)
	if !ok {
		return
	}
	if ch, ok := l.calls.Take(tok); ok {
		ch <- result{err: err}
	}
}

func (l *Layer) nextTNS() uint16 {
	for {
		if tns := uint16(l.tns.Add(1)); tns != 0 {
			return tns
		}
	}
}

// Execute sends one PCCC command and returns its reply. A zero TNS is replaced
// by the next transaction number. A reply with a non-zero STS is returned
// together with a *StatusError.
func (l *Layer) Execute(ctx context.Context, req Request) (Response, error) {
	if req.TNS == 0 {
		req.TNS = l.nextTNS()
	}
	body := append(append([]byte{}, l.header...), req.Encode()...)
	msg := protocol.EncodeRequest(spec.ServiceExecutePCCC, protocol.LogicalPath(uint32(spec.ClassPCCC), 1), body)

	ch := make(chan result, 1)
	tok := l.calls.Register(ch)
	if err := l.lower.Send(msg, &layer.Info{}, false, tok); err != nil {
		l.calls.Take(tok)
		return Response{}, err
	}

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		l.calls.Take(tok)
		return Response{}, ctx.Err()
	}
	if res.err != nil {
		return Response{}, res.err
	}

	reply, err := protocol.ParseReply(res.data)
	if err != nil {
		return Response{}, err
	}
	if reply.Service != spec.ServiceExecutePCCC.Reply() {
		return Response{}, fmt.Errorf("unexpected reply service 0x%02X to Execute PCCC", uint8(reply.Service))
	}
	if err := reply.Err(); err != nil {
		return Response{}, err
	}
	if len(reply.Data) == 0 || int(reply.Data[0]) > len(reply.Data) {
		return Response{}, fmt.Errorf("malformed requester ID in Execute PCCC reply")
	}
	resp, err := ParseResponse(reply.Data[reply.Data[0]:])
	if err != nil {
		return Response{}, err
	}
	if resp.TNS != req.TNS {
		return resp, fmt.Errorf("PCCC reply TNS %d does not match request TNS %d", resp.TNS, req.TNS)
	}
	l.log.Verbose("PCCC %s %s TNS %d status 0x%02X", req.Command, req.Function, resp.TNS, resp.Status)
	return resp, resp.Err()
}

// ReadTyped reads count elements starting at a data table address.
func (l *Layer) ReadTyped(ctx context.Context, address string, count int) ([]byte, error) {
	a, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}
	size := a.FileType.ElementSize()
	if a.HasSub {
		size = 2
	}
	byteCount := size * count
	if byteCount > 0xFF {
		return nil, fmt.Errorf("read of %d bytes exceeds the 255 byte PCCC limit", byteCount)
	}
	resp, err := l.Execute(ctx, TypedRead(0, a, uint8(byteCount)))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// WriteTyped writes raw element bytes starting at a data table address.
func (l *Layer) WriteTyped(ctx context.Context, address string, data []byte) error {
	a, err := ParseAddress(address)
	if err != nil {
		return err
	}
	if len(data) > 0xFF {
		return fmt.Errorf("write of %d bytes exceeds the 255 byte PCCC limit", len(data))
	}
	_, err = l.Execute(ctx, TypedWrite(0, a, data))
	return err
}

// Echo sends payload and returns what the processor echoed.
func (l *Layer) Echo(ctx context.Context, payload []byte) ([]byte, error) {
	resp, err := l.Execute(ctx, Echo(0, payload))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
