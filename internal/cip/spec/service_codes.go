package spec

import "github.com/tturner/cipstack/internal/cip/protocol"

// CIP service codes.
const (
	ServiceGetAttributesAll      protocol.ServiceCode = 0x01
	ServiceSetAttributesAll      protocol.ServiceCode = 0x02
	ServiceGetAttributeList      protocol.ServiceCode = 0x03
	ServiceSetAttributeList      protocol.ServiceCode = 0x04
	ServiceReset                 protocol.ServiceCode = 0x05
	ServiceStart                 protocol.ServiceCode = 0x06
	ServiceStop                  protocol.ServiceCode = 0x07
	ServiceCreate                protocol.ServiceCode = 0x08
	ServiceDelete                protocol.ServiceCode = 0x09
	ServiceMultipleServicePacket protocol.ServiceCode = 0x0A
	ServiceApplyAttributes       protocol.ServiceCode = 0x0D
	ServiceGetAttributeSingle    protocol.ServiceCode = 0x0E
	ServiceSetAttributeSingle    protocol.ServiceCode = 0x10
	ServiceFindNextObjectInst    protocol.ServiceCode = 0x11
	ServiceRestore               protocol.ServiceCode = 0x15
	ServiceSave                  protocol.ServiceCode = 0x16
	ServiceNoOp                  protocol.ServiceCode = 0x17
	ServiceGetMember             protocol.ServiceCode = 0x18
	ServiceSetMember             protocol.ServiceCode = 0x19
	ServiceInsertMember          protocol.ServiceCode = 0x1A
	ServiceRemoveMember          protocol.ServiceCode = 0x1B
	ServiceGroupSync             protocol.ServiceCode = 0x1C

	// Object-specific services. Several share a value and are told apart by class.
	ServiceExecutePCCC         protocol.ServiceCode = 0x4B
	ServiceForwardClose        protocol.ServiceCode = 0x4E
	ServiceUnconnectedSend     protocol.ServiceCode = 0x52
	ServiceForwardOpen         protocol.ServiceCode = 0x54
	ServiceGetConnectionData   protocol.ServiceCode = 0x56
	ServiceSearchConnection    protocol.ServiceCode = 0x57
	ServiceGetConnectionOwner  protocol.ServiceCode = 0x5A
	ServiceLargeForwardOpen    protocol.ServiceCode = 0x5B
	ServiceReadTag             protocol.ServiceCode = 0x4C
	ServiceWriteTag            protocol.ServiceCode = 0x4D
	ServiceReadModifyWrite     protocol.ServiceCode = 0x4E
	ServiceReadTagFragmented   protocol.ServiceCode = 0x52
	ServiceWriteTagFragmented  protocol.ServiceCode = 0x53
	ServiceGetInstanceAttrList protocol.ServiceCode = 0x55
)

// ClassCode identifies a CIP object class.
type ClassCode uint16

// CIP object class codes (CIP Vol 1, Table 5-1.1 and vendor classes seen on Logix).
const (
	ClassIdentity          ClassCode = 0x01
	ClassMessageRouter     ClassCode = 0x02
	ClassDeviceNet         ClassCode = 0x03
	ClassAssembly          ClassCode = 0x04
	ClassConnection        ClassCode = 0x05
	ClassConnectionManager ClassCode = 0x06
	ClassRegister          ClassCode = 0x07
	ClassDiscreteInput     ClassCode = 0x08
	ClassDiscreteOutput    ClassCode = 0x09
	ClassAnalogInput       ClassCode = 0x0A
	ClassAnalogOutput      ClassCode = 0x0B
	ClassPresenceSensing   ClassCode = 0x0E
	ClassParameter         ClassCode = 0x0F
	ClassParameterGroup    ClassCode = 0x10
	ClassGroup             ClassCode = 0x12
	ClassDiscreteInputGrp  ClassCode = 0x1D
	ClassDiscreteOutputGrp ClassCode = 0x1E
	ClassDiscreteGroup     ClassCode = 0x1F
	ClassAnalogInputGroup  ClassCode = 0x20
	ClassAnalogOutputGroup ClassCode = 0x21
	ClassAnalogGroup       ClassCode = 0x22
	ClassPositionSensor    ClassCode = 0x23
	ClassPositionCtrlSuper ClassCode = 0x24
	ClassPositionCtrl      ClassCode = 0x25
	ClassBlockSequencer    ClassCode = 0x26
	ClassCommandBlock      ClassCode = 0x27
	ClassMotorData         ClassCode = 0x28
	ClassControlSupervisor ClassCode = 0x29
	ClassACDCDrive         ClassCode = 0x2A
	ClassAcknowledgeHndlr  ClassCode = 0x2B
	ClassOverload          ClassCode = 0x2C
	ClassSoftstart         ClassCode = 0x2D
	ClassSelection         ClassCode = 0x2E
	ClassSDeviceSupervisor ClassCode = 0x30
	ClassSAnalogSensor     ClassCode = 0x31
	ClassSAnalogActuator   ClassCode = 0x32
	ClassSSingleStageCtrl  ClassCode = 0x33
	ClassSGasCalibration   ClassCode = 0x34
	ClassTripPoint         ClassCode = 0x35
	ClassFile              ClassCode = 0x37
	ClassSPartialPressure  ClassCode = 0x38
	ClassSafetySupervisor  ClassCode = 0x39
	ClassSafetyValidator   ClassCode = 0x3A
	ClassPCCC              ClassCode = 0x67
	ClassSymbol            ClassCode = 0x6B
	ClassTemplate          ClassCode = 0x6C
	ClassWallClockTime     ClassCode = 0x8B
	ClassControlNet        ClassCode = 0xF0
	ClassControlNetKeeper  ClassCode = 0xF1
	ClassControlNetSched   ClassCode = 0xF2
	ClassConnectionConfig  ClassCode = 0xF3
	ClassPort              ClassCode = 0xF4
	ClassTCPIPInterface    ClassCode = 0xF5
	ClassEthernetLink      ClassCode = 0xF6
	ClassCompoNetLink      ClassCode = 0xF7
	ClassCompoNetRepeater  ClassCode = 0xF8
)
