// Package enip carries CIP messages over EtherNet/IP encapsulation on TCP.
package enip

import (
	"encoding/binary"
	"fmt"
)

// Encapsulation command codes.
const (
	CommandNOP               uint16 = 0x0000
	CommandListServices      uint16 = 0x0004
	CommandListIdentity      uint16 = 0x0063
	CommandListInterfaces    uint16 = 0x0064
	CommandRegisterSession   uint16 = 0x0065
	CommandUnregisterSession uint16 = 0x0066
	CommandSendRRData        uint16 = 0x006F
	CommandSendUnitData      uint16 = 0x0070
)

// Common Packet Format item type IDs.
const (
	CPFItemNullAddress      uint16 = 0x0000
	CPFItemListIdentity     uint16 = 0x000C
	CPFItemConnectedAddress uint16 = 0x00A1
	CPFItemConnectedData    uint16 = 0x00B1
	CPFItemUnconnectedData  uint16 = 0x00B2
	CPFItemListServices     uint16 = 0x0100
)

// HeaderSize is the fixed encapsulation header length.
const HeaderSize = 24

// StatusSuccess is the encapsulation status of a successful reply.
const StatusSuccess uint32 = 0

var order = binary.LittleEndian

// Encapsulation is one encapsulation frame.
type Encapsulation struct {
	Command       uint16
	SessionID     uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
	Data          []byte
}

// Encode frames the header and data. The length field is taken from Data.
func (e Encapsulation) Encode() []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(e.Data))
	order.PutUint16(out[0:2], e.Command)
	order.PutUint16(out[2:4], uint16(len(e.Data)))
	order.PutUint32(out[4:8], e.SessionID)
	order.PutUint32(out[8:12], e.Status)
	copy(out[12:20], e.SenderContext[:])
	order.PutUint32(out[20:24], e.Options)
	return append(out, e.Data...)
}

// Decode parses one complete frame.
func Decode(data []byte) (Encapsulation, error) {
	if len(data) < HeaderSize {
		return Encapsulation{}, fmt.Errorf("encapsulation too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}
	var e Encapsulation
	e.Command = order.Uint16(data[0:2])
	length := int(order.Uint16(data[2:4]))
	e.SessionID = order.Uint32(data[4:8])
	e.Status = order.Uint32(data[8:12])
	copy(e.SenderContext[:], data[12:20])
	e.Options = order.Uint32(data[20:24])
	if len(data) < HeaderSize+length {
		return e, fmt.Errorf("encapsulation data truncated: have %d bytes, header says %d", len(data)-HeaderSize, length)
	}
	if length > 0 {
		e.Data = data[HeaderSize : HeaderSize+length]
	}
	return e, nil
}

// ValidCommand reports whether cmd is an encapsulation command this package knows.
func ValidCommand(cmd uint16) bool {
	switch cmd {
	case CommandNOP,
		CommandListServices,
		CommandListIdentity,
		CommandListInterfaces,
		CommandRegisterSession,
		CommandUnregisterSession,
		CommandSendRRData,
		CommandSendUnitData:
		return true
	default:
		return false
	}
}

// SplitFrames splits complete frames off the front of a stream buffer and
// returns them with the unconsumed remainder. Bytes that cannot start a frame
// are skipped.
func SplitFrames(buffer []byte) ([]Encapsulation, []byte) {
	var frames []Encapsulation
	offset := 0
	for len(buffer[offset:]) >= HeaderSize {
		command := order.Uint16(buffer[offset : offset+2])
		if !ValidCommand(command) {
			offset++
			continue
		}
		total := HeaderSize + int(order.Uint16(buffer[offset+2:offset+4]))
		if len(buffer[offset:]) < total {
			break
		}
		frame, err := Decode(buffer[offset : offset+total])
		if err != nil {
			offset++
			continue
		}
		frames = append(frames, frame)
		offset += total
	}
	if offset == 0 {
		return frames, buffer
	}
	remaining := make([]byte, len(buffer)-offset)
	copy(remaining, buffer[offset:])
	return frames, remaining
}

// CPFItem is one Common Packet Format item.
type CPFItem struct {
	TypeID uint16
	Data   []byte
}

// EncodeCPFItems encodes an item count followed by the items.
func EncodeCPFItems(items []CPFItem) []byte {
	out := order.AppendUint16(nil, uint16(len(items)))
	for _, it := range items {
		out = order.AppendUint16(out, it.TypeID)
		out = order.AppendUint16(out, uint16(len(it.Data)))
		out = append(out, it.Data...)
	}
	return out
}

// ParseCPFItems decodes an item count followed by the items.
func ParseCPFItems(data []byte) ([]CPFItem, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("CPF data too short: %d bytes", len(data))
	}
	count := int(order.Uint16(data[0:2]))
	off := 2
	items := make([]CPFItem, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < off+4 {
			return nil, fmt.Errorf("CPF item %d header too short", i)
		}
		typeID := order.Uint16(data[off:])
		length := int(order.Uint16(data[off+2:]))
		off += 4
		if len(data) < off+length {
			return nil, fmt.Errorf("CPF item %d (0x%04X) data too short: need %d, have %d", i, typeID, length, len(data)-off)
		}
		var payload []byte
		if length > 0 {
			payload = data[off : off+length]
		}
		items = append(items, CPFItem{TypeID: typeID, Data: payload})
		off += length
	}
	return items, nil
}

// BuildRegisterSession builds a RegisterSession request for protocol version 1.
func BuildRegisterSession(senderContext [8]byte) []byte {
	data := order.AppendUint16(nil, 1)
	data = order.AppendUint16(data, 0)
	return Encapsulation{Command: CommandRegisterSession, SenderContext: senderContext, Data: data}.Encode()
}

// BuildUnregisterSession builds an UnregisterSession request.
func BuildUnregisterSession(sessionID uint32) []byte {
	return Encapsulation{Command: CommandUnregisterSession, SessionID: sessionID}.Encode()
}

// BuildSendRRData wraps an unconnected message in a null address item and an
// unconnected data item.
func BuildSendRRData(sessionID uint32, senderContext [8]byte, message []byte) []byte {
	data := order.AppendUint32(nil, 0) // interface handle, CIP
	data = order.AppendUint16(data, 0) // timeout
	data = append(data, EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemNullAddress},
		{TypeID: CPFItemUnconnectedData, Data: message},
	})...)
	return Encapsulation{Command: CommandSendRRData, SessionID: sessionID, SenderContext: senderContext, Data: data}.Encode()
}

// BuildSendUnitData wraps a connected datagram in a connected address item
// and a connected data item.
func BuildSendUnitData(sessionID, connectionID uint32, datagram []byte) []byte {
	data := order.AppendUint32(nil, 0)
	data = order.AppendUint16(data, 0)
	data = append(data, EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemConnectedAddress, Data: order.AppendUint32(nil, connectionID)},
		{TypeID: CPFItemConnectedData, Data: datagram},
	})...)
	return Encapsulation{Command: CommandSendUnitData, SessionID: sessionID, Data: data}.Encode()
}

// ParseSendRRData returns the message in the unconnected data item of a
// SendRRData body.
func ParseSendRRData(data []byte) ([]byte, error) {
	items, err := parseCommandItems(data)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.TypeID == CPFItemUnconnectedData {
			return it.Data, nil
		}
	}
	return nil, fmt.Errorf("missing unconnected data item")
}

// ParseSendUnitData returns the connection ID and datagram of a SendUnitData body.
func ParseSendUnitData(data []byte) (uint32, []byte, error) {
	items, err := parseCommandItems(data)
	if err != nil {
		return 0, nil, err
	}
	var (
		connID   uint32
		datagram []byte
		haveAddr bool
		haveData bool
	)
	for _, it := range items {
		switch it.TypeID {
		case CPFItemConnectedAddress:
			if len(it.Data) < 4 {
				return 0, nil, fmt.Errorf("connected address item too short: %d bytes", len(it.Data))
			}
			connID = order.Uint32(it.Data)
			haveAddr = true
		case CPFItemConnectedData:
			datagram = it.Data
			haveData = true
		}
	}
	if !haveAddr {
		return 0, nil, fmt.Errorf("missing connected address item")
	}
	if !haveData {
		return 0, nil, fmt.Errorf("missing connected data item")
	}
	return connID, datagram, nil
}

func parseCommandItems(data []byte) ([]CPFItem, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("command data too short: %d bytes (minimum 6)", len(data))
	}
	items, err := ParseCPFItems(data[6:])
	if err != nil {
		return nil, fmt.Errorf("CPF items: %w", err)
	}
	return items, nil
}
