// Package pccc tunnels PCCC commands to SLC-500/PLC-5/MicroLogix processors
// through the CIP Execute PCCC service.
//
// A PCCC message is CMD, STS, TNS (little endian) and, for extended
// commands, an FNC byte, followed by command data. Replies with a non-zero
// STS carry an extended status byte before the data.
package pccc

import (
	"encoding/binary"
	"fmt"
)

// MinMessageLen is CMD + STS + TNS.
const MinMessageLen = 4

// ReplyFlag is set in the CMD byte of a reply.
const ReplyFlag = 0x40

var order = binary.LittleEndian

// Request is a PCCC command.
type Request struct {
	Command  Command
	TNS      uint16
	Function FunctionCode
	Data     []byte
}

// Encode frames the request.
func (r Request) Encode() []byte {
	out := []byte{byte(r.Command), 0}
	out = order.AppendUint16(out, r.TNS)
	if r.Command.HasFunctionCode() {
		out = append(out, byte(r.Function))
	}
	return append(out, r.Data...)
}

// ParseRequest decodes a PCCC command.
func ParseRequest(b []byte) (Request, error) {
	if len(b) < MinMessageLen {
		return Request{}, fmt.Errorf("PCCC request too short: %d bytes (minimum %d)", len(b), MinMessageLen)
	}
	r := Request{Command: Command(b[0]), TNS: order.Uint16(b[2:4])}
	off := MinMessageLen
	if r.Command.HasFunctionCode() {
		if len(b) <= off {
			return Request{}, fmt.Errorf("PCCC extended command missing function code")
		}
		r.Function = FunctionCode(b[off])
		off++
	}
	if off < len(b) {
		r.Data = b[off:]
	}
	return r, nil
}

// Response is a PCCC reply.
type Response struct {
	Command  Command
	Status   uint8
	TNS      uint16
	Function FunctionCode
	// ExtendedStatus is only present when Status is non-zero.
	ExtendedStatus uint8
	Data           []byte
}

// Encode frames the reply. Command should already carry ReplyFlag.
func (r Response) Encode() []byte {
	out := []byte{byte(r.Command), r.Status}
	out = order.AppendUint16(out, r.TNS)
	if (r.Command &^ ReplyFlag).HasFunctionCode() {
		out = append(out, byte(r.Function))
	}
	if r.Status != 0 {
		out = append(out, r.ExtendedStatus)
	}
	return append(out, r.Data...)
}

// ParseResponse decodes a PCCC reply.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < MinMessageLen {
		return Response{}, fmt.Errorf("PCCC response too short: %d bytes (minimum %d)", len(b), MinMessageLen)
	}
	r := Response{Command: Command(b[0]), Status: b[1], TNS: order.Uint16(b[2:4])}
	off := MinMessageLen
	if (r.Command &^ ReplyFlag).HasFunctionCode() {
		if len(b) <= off {
			return Response{}, fmt.Errorf("PCCC extended response missing function code")
		}
		r.Function = FunctionCode(b[off])
		off++
	}
	if r.Status != 0 && off < len(b) {
		r.ExtendedStatus = b[off]
		off++
	}
	if off < len(b) {
		r.Data = b[off:]
	}
	return r, nil
}

// Err returns a *StatusError when the processor reported a failure.
func (r Response) Err() error {
	if r.Status == 0 {
		return nil
	}
	return &StatusError{Status: r.Status, Extended: r.ExtendedStatus}
}

// StatusError is a non-zero PCCC STS.
type StatusError struct {
	Status   uint8
	Extended uint8
}

func (e *StatusError) Error() string {
	desc, ok := statusDescriptions[e.Status&0xF0]
	if e.Status&0x0F != 0 {
		desc, ok = localStatusDescriptions[e.Status&0x0F]
	}
	if !ok {
		desc = "unknown status"
	}
	if e.Status == 0xF0 {
		return fmt.Sprintf("PCCC status 0x%02X (%s), extended 0x%02X", e.Status, desc, e.Extended)
	}
	return fmt.Sprintf("PCCC status 0x%02X (%s)", e.Status, desc)
}

var localStatusDescriptions = map[uint8]string{
	0x01: "destination node out of buffer space",
	0x02: "cannot guarantee delivery",
	0x03: "duplicate token holder detected",
	0x04: "local port is disconnected",
	0x05: "application layer timed out waiting for a response",
	0x06: "duplicate node detected",
	0x07: "station is offline",
	0x08: "hardware fault",
}

var statusDescriptions = map[uint8]string{
	0x10: "illegal command or format",
	0x20: "host has a problem and will not communicate",
	0x30: "remote node host is missing, disconnected, or shut down",
	0x40: "host could not complete function due to hardware fault",
	0x50: "addressing problem or memory protect rungs",
	0x60: "function not allowed due to command protection selection",
	0x70: "processor is in program mode",
	0x80: "compatibility mode file missing or communication zone problem",
	0x90: "remote node cannot buffer command",
	0xA0: "wait ACK (1775-KA buffer full)",
	0xB0: "remote node problem due to download",
	0xC0: "wait ACK (1775-KA buffer full)",
	0xF0: "error code in the EXT STS byte",
}

// addressData encodes byte count, file number, file type, element and
// sub-element. Elements above 254 use the 0xFF escape and a 16-bit value.
func addressData(a Address, byteCount uint8) []byte {
	out := []byte{byteCount, a.FileNumber, byte(a.FileType)}
	if a.Element >= 0xFF {
		out = append(out, 0xFF)
		out = order.AppendUint16(out, a.Element)
	} else {
		out = append(out, byte(a.Element))
	}
	return append(out, a.SubElement)
}

// TypedRead builds a protected typed logical read with three address fields.
func TypedRead(tns uint16, a Address, byteCount uint8) Request {
	return Request{Command: CmdExtended, TNS: tns, Function: FncTypedRead3Addr, Data: addressData(a, byteCount)}
}

// TypedWrite builds a protected typed logical write with three address fields.
func TypedWrite(tns uint16, a Address, data []byte) Request {
	body := append(addressData(a, uint8(len(data))), data...)
	return Request{Command: CmdExtended, TNS: tns, Function: FncTypedWrite3Addr, Data: body}
}

// Echo builds an echo request.
func Echo(tns uint16, payload []byte) Request {
	return Request{Command: CmdExtended, TNS: tns, Function: FncEcho, Data: payload}
}

// DiagnosticStatus builds a diagnostic status request.
func DiagnosticStatus(tns uint16) Request {
	return Request{Command: CmdExtended, TNS: tns, Function: FncDiagnosticRead}
}
