package object

import (
	"fmt"
	"strings"

	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/spec"
)

// Identity instance attribute codes (CIP Vol 1, Table 5-2.3).
const (
	IdentityVendorID          uint16 = 1
	IdentityDeviceType        uint16 = 2
	IdentityProductCode       uint16 = 3
	IdentityRevision          uint16 = 4
	IdentityStatus            uint16 = 5
	IdentitySerialNumber      uint16 = 6
	IdentityProductName       uint16 = 7
	IdentityState             uint16 = 8
	IdentityConfigConsistency uint16 = 9
	IdentityHeartbeatInterval uint16 = 10
	IdentityActiveLanguage    uint16 = 11
	IdentitySupportedLangs    uint16 = 12
	IdentityIntlProductName   uint16 = 13
	IdentitySemaphore         uint16 = 14
	IdentityAssignedName      uint16 = 15
	IdentityAssignedDesc      uint16 = 16
	IdentityGeoLocation       uint16 = 17
)

var deviceTypeNames = map[uint16]string{
	0x00: "Generic Device (deprecated)",
	0x02: "AC Drive",
	0x03: "Motor Overload",
	0x04: "Limit Switch",
	0x05: "Inductive Proximity Switch",
	0x06: "Photoelectric Sensor",
	0x07: "General Purpose Discrete I/O",
	0x09: "Resolver",
	0x0C: "Communications Adapter",
	0x0E: "Programmable Logic Controller",
	0x10: "Position Controller",
	0x13: "DC Drive",
	0x15: "Contactor",
	0x16: "Motor Starter",
	0x17: "Soft Start",
	0x18: "Human-Machine Interface",
	0x1A: "Mass Flow Controller",
	0x1B: "Pneumatic Valve",
	0x1C: "Vacuum Pressure Gauge",
	0x1D: "Process Control Value",
	0x1E: "Residual Gas Analyzer",
	0x1F: "DC Power Generator",
	0x20: "RF Power Generator",
	0x21: "Turbomolecular Vacuum Pump",
	0x22: "Encoder",
	0x23: "Safety Discrete I/O Device",
	0x24: "Fluid Flow Controller",
	0x25: "CIP Motion Drive",
	0x26: "CompoNet Repeater",
	0x27: "Mass Flow Controller, Enhanced",
	0x28: "CIP Modbus Device",
	0x29: "CIP Modbus Translator",
	0x2A: "Safety Analog I/O Device",
	0x2B: "Generic Device (keyable)",
	0x2C: "Managed Ethernet Switch",
	0x32: "ControlNet Physical Layer Component",
}

var identityStateNames = map[uint16]string{
	0:   "Nonexistent",
	1:   "Device Self Testing",
	2:   "Standby",
	3:   "Operational",
	4:   "Major Recoverable Fault",
	5:   "Major Unrecoverable Fault",
	255: "Default Value",
}

// Revision is a major.minor product revision.
type Revision struct {
	Major uint8
	Minor uint8
}

func (r Revision) String() string { return fmt.Sprintf("%d.%03d", r.Major, r.Minor) }

// DeviceStatus is the Identity status word.
type DeviceStatus uint16

func (s DeviceStatus) Owned() bool      { return s&0x0001 != 0 }
func (s DeviceStatus) Configured() bool { return s&0x0004 != 0 }

// Extended returns the extended device status nibble.
func (s DeviceStatus) Extended() uint8 { return uint8(s>>4) & 0x0F }

func (s DeviceStatus) String() string {
	var flags []string
	if s.Owned() {
		flags = append(flags, "owned")
	}
	if s.Configured() {
		flags = append(flags, "configured")
	}
	faults := []string{"minor recoverable fault", "minor unrecoverable fault", "major recoverable fault", "major unrecoverable fault"}
	for i, f := range faults {
		if s&(1<<(8+i)) != 0 {
			flags = append(flags, f)
		}
	}
	if len(flags) == 0 {
		return fmt.Sprintf("0x%04X", uint16(s))
	}
	return fmt.Sprintf("0x%04X (%s)", uint16(s), strings.Join(flags, ", "))
}

func toRevision(v any) any {
	fields, _ := v.([]any)
	if len(fields) != 2 {
		return v
	}
	major, _ := fields[0].(uint8)
	minor, _ := fields[1].(uint8)
	return Revision{Major: major, Minor: minor}
}

func toDeviceStatus(v any) any {
	n, _ := v.(uint16)
	return DeviceStatus(n)
}

func toLanguage(v any) any {
	items, _ := v.([]any)
	b := make([]byte, 0, len(items))
	for _, it := range items {
		c, _ := it.(uint8)
		b = append(b, c)
	}
	return string(b)
}

var language = codec.ArrayOf(codec.USINT, 3)

// Identity is the Identity object, class 0x01.
var Identity = &Object{
	Class:           spec.ClassIdentity,
	Name:            "Identity",
	ClassAttributes: standardClassAttributes(),
	InstanceAttributes: newTable(
		Attribute{Code: IdentityVendorID, Name: "Vendor ID", Type: codec.UINT},
		Attribute{Code: IdentityDeviceType, Name: "Device Type", Type: codec.UINT, Map: nameFrom(deviceTypeNames)},
		Attribute{Code: IdentityProductCode, Name: "Product Code", Type: codec.UINT},
		Attribute{Code: IdentityRevision, Name: "Revision", Type: codec.Struct{Members: []codec.Type{codec.USINT, codec.USINT}}, Map: toRevision},
		Attribute{Code: IdentityStatus, Name: "Status", Type: codec.WORD, Map: toDeviceStatus},
		Attribute{Code: IdentitySerialNumber, Name: "Serial Number", Type: codec.UDINT},
		Attribute{Code: IdentityProductName, Name: "Product Name", Type: codec.SHORT_STRING},
		Attribute{Code: IdentityState, Name: "State", Type: codec.USINT, Map: nameFrom(identityStateNames)},
		Attribute{Code: IdentityConfigConsistency, Name: "Configuration Consistency Value", Type: codec.UINT},
		Attribute{Code: IdentityHeartbeatInterval, Name: "Heartbeat Interval", Type: codec.USINT},
		Attribute{Code: IdentityActiveLanguage, Name: "Active Language", Type: language, Map: toLanguage},
		Attribute{Code: IdentitySupportedLangs, Name: "Supported Language List", Type: codec.AbbrevArray{Item: language, Length: -1}},
		Attribute{Code: IdentityIntlProductName, Name: "International Product Name", Type: codec.STRINGI},
		Attribute{Code: IdentitySemaphore, Name: "Semaphore", Type: codec.Struct{Members: []codec.Type{codec.UINT, codec.UDINT, codec.ITIME}}},
		Attribute{Code: IdentityAssignedName, Name: "Assigned Name", Type: codec.STRINGI},
		Attribute{Code: IdentityAssignedDesc, Name: "Assigned Description", Type: codec.STRINGI},
		Attribute{Code: IdentityGeoLocation, Name: "Geographic Location", Type: codec.STRINGI},
	),
	GetAllOrder: []uint16{
		IdentityVendorID, IdentityDeviceType, IdentityProductCode, IdentityRevision,
		IdentityStatus, IdentitySerialNumber, IdentityProductName, IdentityState,
		IdentityConfigConsistency, IdentityHeartbeatInterval,
	},
}

// IdentityInfo is a decoded Identity instance.
type IdentityInfo struct {
	VendorID     uint16
	DeviceType   Named
	ProductCode  uint16
	Revision     Revision
	Status       DeviceStatus
	SerialNumber uint32
	ProductName  string
	State        *Named
}

// DecodeIdentity decodes an Identity Get_Attributes_All reply.
func DecodeIdentity(data []byte) (IdentityInfo, error) {
	values, err := Identity.DecodeInstanceAll(data)
	if err != nil {
		return IdentityInfo{}, err
	}
	var info IdentityInfo
	for _, v := range values {
		switch v.Code {
		case IdentityVendorID:
			info.VendorID, _ = v.Value.(uint16)
		case IdentityDeviceType:
			info.DeviceType, _ = v.Value.(Named)
		case IdentityProductCode:
			info.ProductCode, _ = v.Value.(uint16)
		case IdentityRevision:
			info.Revision, _ = v.Value.(Revision)
		case IdentityStatus:
			info.Status, _ = v.Value.(DeviceStatus)
		case IdentitySerialNumber:
			info.SerialNumber, _ = v.Value.(uint32)
		case IdentityProductName:
			info.ProductName, _ = v.Value.(string)
		case IdentityState:
			if n, ok := v.Value.(Named); ok {
				info.State = &n
			}
		}
	}
	return info, nil
}

// standardClassAttributes are class attributes 1-7 common to all objects
// (CIP Vol 1, Table 4-4.2).
func standardClassAttributes() Table {
	return newTable(
		Attribute{Code: 1, Name: "Revision", Type: codec.UINT},
		Attribute{Code: 2, Name: "Max Instance", Type: codec.UINT},
		Attribute{Code: 3, Name: "Number of Instances", Type: codec.UINT},
		Attribute{Code: 4, Name: "Optional Attribute List", Type: countedList("optional attributes", codec.UINT), Map: dropCount},
		Attribute{Code: 5, Name: "Optional Service List", Type: countedList("optional services", codec.UINT), Map: dropCount},
		Attribute{Code: 6, Name: "Maximum ID Number Class Attributes", Type: codec.UINT},
		Attribute{Code: 7, Name: "Maximum ID Number Instance Attributes", Type: codec.UINT},
	)
}
