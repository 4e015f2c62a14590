package protocol

import (
	"fmt"

	"github.com/tturner/cipstack/internal/cip/codec"
)

// Unconnected Send (CIP Vol 1, 3-5.5.2) wraps a request for a target reached
// through a route. It is addressed to the Connection Manager.
const unconnectedSendService ServiceCode = 0x52

// EncodeUnconnectedSend wraps message for delivery along route.
func EncodeUnconnectedSend(message, route []byte, priorityTick, timeoutTicks uint8) []byte {
	data := []byte{priorityTick, timeoutTicks}
	data = codec.AppendUint16(le, data, uint16(len(message)))
	data = append(data, message...)
	if len(message)%2 != 0 {
		data = append(data, 0x00)
	}
	routeWords := (len(route) + 1) / 2
	data = append(data, byte(routeWords), 0x00)
	data = append(data, route...)
	if len(route)%2 != 0 {
		data = append(data, 0x00)
	}
	return EncodeRequest(unconnectedSendService, LogicalPath(0x06, 1), data)
}

// ParseUnconnectedSendRequest extracts the embedded message and route.
func ParseUnconnectedSendRequest(req Request) (message, route []byte, err error) {
	p := req.Data
	if len(p) < 4 {
		return nil, nil, fmt.Errorf("unconnected send too short: %d bytes", len(p))
	}
	size := int(le.Uint16(p[2:4]))
	off := 4
	if off+size > len(p) {
		return nil, nil, fmt.Errorf("embedded message size %d exceeds payload", size)
	}
	message = p[off : off+size]
	off += size
	if size%2 != 0 {
		off++
	}
	if off+2 > len(p) {
		return message, nil, nil
	}
	routeBytes := int(p[off]) * 2
	off += 2
	if off+routeBytes > len(p) {
		return nil, nil, fmt.Errorf("route size %d exceeds payload", routeBytes)
	}
	return message, p[off : off+routeBytes], nil
}

// UnwrapUnconnectedSendReply returns the target's reply. A failure in the
// routing itself comes back as an Unconnected Send reply carrying the status.
func UnwrapUnconnectedSendReply(b []byte) (Reply, error) {
	r, err := ParseReply(b)
	if err != nil {
		return r, err
	}
	if r.Service == unconnectedSendService.Reply() && r.Status.Error {
		return r, r.Err()
	}
	return r, nil
}
