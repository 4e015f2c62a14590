package spec

import (
	"fmt"

	"github.com/tturner/cipstack/internal/cip/protocol"
)

var serviceNames = map[uint8]string{
	0x01: "Get_Attributes_All",
	0x02: "Set_Attributes_All",
	0x03: "Get_Attribute_List",
	0x04: "Set_Attribute_List",
	0x05: "Reset",
	0x06: "Start",
	0x07: "Stop",
	0x08: "Create",
	0x09: "Delete",
	0x0A: "Multiple_Service_Packet",
	0x0D: "Apply_Attributes",
	0x0E: "Get_Attribute_Single",
	0x10: "Set_Attribute_Single",
	0x11: "Find_Next_Object_Instance",
	0x14: "Error_Response",
	0x15: "Restore",
	0x16: "Save",
	0x17: "No_Op",
	0x18: "Get_Member",
	0x19: "Set_Member",
	0x1A: "Insert_Member",
	0x1B: "Remove_Member",
	0x1C: "Group_Sync",
	0x4B: "Execute_PCCC",
	0x4C: "Read_Tag",
	0x4D: "Write_Tag",
	0x4E: "Read_Modify_Write",
	0x52: "Read_Tag_Fragmented",
	0x53: "Write_Tag_Fragmented",
	0x55: "Get_Instance_Attribute_List",
}

// Services of the Connection Manager that reuse object-specific codes.
var connectionManagerServiceNames = map[uint8]string{
	0x4E: "Forward_Close",
	0x52: "Unconnected_Send",
	0x54: "Forward_Open",
	0x56: "Get_Connection_Data",
	0x57: "Search_Connection_Data",
	0x5A: "Get_Connection_Owner",
	0x5B: "Large_Forward_Open",
}

var classNames = map[ClassCode]string{
	ClassIdentity:          "Identity",
	ClassMessageRouter:     "Message Router",
	ClassDeviceNet:         "DeviceNet",
	ClassAssembly:          "Assembly",
	ClassConnection:        "Connection",
	ClassConnectionManager: "Connection Manager",
	ClassRegister:          "Register",
	ClassDiscreteInput:     "Discrete Input Point",
	ClassDiscreteOutput:    "Discrete Output Point",
	ClassAnalogInput:       "Analog Input Point",
	ClassAnalogOutput:      "Analog Output Point",
	ClassPresenceSensing:   "Presence Sensing",
	ClassParameter:         "Parameter",
	ClassParameterGroup:    "Parameter Group",
	ClassGroup:             "Group",
	ClassDiscreteInputGrp:  "Discrete Input Group",
	ClassDiscreteOutputGrp: "Discrete Output Group",
	ClassDiscreteGroup:     "Discrete Group",
	ClassAnalogInputGroup:  "Analog Input Group",
	ClassAnalogOutputGroup: "Analog Output Group",
	ClassAnalogGroup:       "Analog Group",
	ClassPositionSensor:    "Position Sensor",
	ClassPositionCtrlSuper: "Position Controller Supervisor",
	ClassPositionCtrl:      "Position Controller",
	ClassBlockSequencer:    "Block Sequencer",
	ClassCommandBlock:      "Command Block",
	ClassMotorData:         "Motor Data",
	ClassControlSupervisor: "Control Supervisor",
	ClassACDCDrive:         "AC/DC Drive",
	ClassAcknowledgeHndlr:  "Acknowledge Handler",
	ClassOverload:          "Overload",
	ClassSoftstart:         "Softstart",
	ClassSelection:         "Selection",
	ClassSDeviceSupervisor: "S-Device Supervisor",
	ClassSAnalogSensor:     "S-Analog Sensor",
	ClassSAnalogActuator:   "S-Analog Actuator",
	ClassSSingleStageCtrl:  "S-Single Stage Controller",
	ClassSGasCalibration:   "S-Gas Calibration",
	ClassTripPoint:         "Trip Point",
	ClassFile:              "File",
	ClassSPartialPressure:  "S-Partial Pressure",
	ClassSafetySupervisor:  "Safety Supervisor",
	ClassSafetyValidator:   "Safety Validator",
	ClassPCCC:              "PCCC",
	ClassSymbol:            "Symbol",
	ClassTemplate:          "Template",
	ClassWallClockTime:     "Wall Clock Time",
	ClassControlNet:        "ControlNet",
	ClassControlNetKeeper:  "ControlNet Keeper",
	ClassControlNetSched:   "ControlNet Scheduling",
	ClassConnectionConfig:  "Connection Configuration",
	ClassPort:              "Port",
	ClassTCPIPInterface:    "TCP/IP Interface",
	ClassEthernetLink:      "Ethernet Link",
	ClassCompoNetLink:      "CompoNet Link",
	ClassCompoNetRepeater:  "CompoNet Repeater",
}

// ServiceName returns a display name for a service code, without class context.
func ServiceName(code protocol.ServiceCode) string {
	c := uint8(code) &^ protocol.ReplyFlag
	if name, ok := serviceNames[c]; ok {
		return name
	}
	if name, ok := connectionManagerServiceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", c)
}

// ServiceNameFor returns a display name for a service code sent to class.
// Object-specific codes in the 0x4B-0x63 range mean different things per class.
func ServiceNameFor(class ClassCode, code protocol.ServiceCode) string {
	c := uint8(code) &^ protocol.ReplyFlag
	if class == ClassConnectionManager {
		if name, ok := connectionManagerServiceNames[c]; ok {
			return name
		}
	}
	if name, ok := serviceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", c)
}

// IsKnownService returns true when a service code is recognized.
func IsKnownService(code protocol.ServiceCode) bool {
	c := uint8(code) &^ protocol.ReplyFlag
	_, ok := serviceNames[c]
	if !ok {
		_, ok = connectionManagerServiceNames[c]
	}
	return ok
}

// ClassName returns a display name for a class code.
func ClassName(class ClassCode) string {
	if name, ok := classNames[class]; ok {
		return name
	}
	if class >= 0x64 && class <= 0xC7 || class >= 0x300 && class <= 0x4FF {
		return fmt.Sprintf("Vendor Specific(0x%02X)", uint16(class))
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint16(class))
}
