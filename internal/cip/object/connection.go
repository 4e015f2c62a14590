package object

import (
	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/spec"
)

// Connection instance attribute codes (CIP Vol 1, Table 3-4.9).
const (
	ConnState                        uint16 = 1
	ConnType                         uint16 = 2
	ConnTransportClassTrigger        uint16 = 3
	ConnDeviceNetProducedID          uint16 = 4
	ConnDeviceNetConsumedID          uint16 = 5
	ConnDeviceNetInitialCommChar     uint16 = 6
	ConnProducedConnectionSize       uint16 = 7
	ConnConsumedConnectionSize       uint16 = 8
	ConnExpectedPacketRate           uint16 = 9
	ConnProducedConnectionID         uint16 = 10
	ConnConsumedConnectionID         uint16 = 11
	ConnWatchdogTimeoutAction        uint16 = 12
	ConnProducedConnectionPathLength uint16 = 13
	ConnProducedConnectionPath       uint16 = 14
	ConnConsumedConnectionPathLength uint16 = 15
	ConnConsumedConnectionPath       uint16 = 16
	ConnProductionInhibitTime        uint16 = 17
	ConnTimeoutMultiplier            uint16 = 18
	ConnBindingList                  uint16 = 19
)

// CIP Vol 1, Table 3-4.10.
var connectionStateNames = map[uint16]string{
	0: "Non-existent",
	1: "Configuring",
	2: "Waiting for connection ID",
	3: "Established",
	4: "Timed out",
	5: "Deferred delete",
	6: "Closing",
}

// CIP Vol 1, Table 3-4.11.
var connectionTypeNames = map[uint16]string{
	0: "Explicit Messaging",
	1: "I/O",
	2: "CIP Bridged",
}

// Connection is the Connection object, class 0x05.
var Connection = &Object{
	Class:           spec.ClassConnection,
	Name:            "Connection",
	ClassAttributes: standardClassAttributes(),
	InstanceAttributes: newTable(
		Attribute{Code: ConnState, Name: "State", Type: codec.USINT, Map: nameFrom(connectionStateNames)},
		Attribute{Code: ConnType, Name: "Instance Type", Type: codec.USINT, Map: nameFrom(connectionTypeNames)},
		Attribute{Code: ConnTransportClassTrigger, Name: "Transport Class Trigger", Type: codec.BYTE},
		Attribute{Code: ConnDeviceNetProducedID, Name: "DeviceNet Produced Connection ID", Type: codec.UINT},
		Attribute{Code: ConnDeviceNetConsumedID, Name: "DeviceNet Consumed Connection ID", Type: codec.UINT},
		Attribute{Code: ConnDeviceNetInitialCommChar, Name: "DeviceNet Initial Comm Characteristics", Type: codec.BYTE},
		Attribute{Code: ConnProducedConnectionSize, Name: "Produced Connection Size", Type: codec.UINT},
		Attribute{Code: ConnConsumedConnectionSize, Name: "Consumed Connection Size", Type: codec.UINT},
		Attribute{Code: ConnExpectedPacketRate, Name: "Expected Packet Rate", Type: codec.UINT},
		Attribute{Code: ConnProducedConnectionID, Name: "CIP Produced Connection ID", Type: codec.UDINT},
		Attribute{Code: ConnConsumedConnectionID, Name: "CIP Consumed Connection ID", Type: codec.UDINT},
		Attribute{Code: ConnWatchdogTimeoutAction, Name: "Watchdog Timeout Action", Type: codec.USINT},
		Attribute{Code: ConnProducedConnectionPathLength, Name: "Produced Connection Path Length", Type: codec.UINT},
		Attribute{Code: ConnProducedConnectionPath, Name: "Produced Connection Path", Type: codec.EPath{}},
		Attribute{Code: ConnConsumedConnectionPathLength, Name: "Consumed Connection Path Length", Type: codec.UINT},
		Attribute{Code: ConnConsumedConnectionPath, Name: "Consumed Connection Path", Type: codec.EPath{}},
		Attribute{Code: ConnProductionInhibitTime, Name: "Production Inhibit Time", Type: codec.UINT},
		Attribute{Code: ConnTimeoutMultiplier, Name: "Connection Timeout Multiplier", Type: codec.USINT},
		Attribute{Code: ConnBindingList, Name: "Connection Binding List", Type: countedList("binding list", codec.UINT), Map: func(v any) any { return uint16s(dropCount(v)) }},
	),
}

// TransportClassTrigger splits the transport class/trigger byte into its
// direction, production trigger and transport class fields.
func TransportClassTrigger(b uint8) (direction, trigger, class uint8) {
	return b >> 7, (b >> 4) & 0x07, b & 0x0F
}
