package pccc

import "fmt"

// Command is the PCCC CMD byte.
type Command uint8

const (
	CmdProtectedWrite   Command = 0x01
	CmdUnprotectedRead  Command = 0x02
	CmdProtectedRead    Command = 0x05
	CmdUnprotectedWrite Command = 0x08
	// CmdExtended carries a function code byte after the TNS.
	CmdExtended Command = 0x0F
)

var commandNames = map[Command]string{
	CmdProtectedWrite:   "Protected_Write",
	CmdUnprotectedRead:  "Unprotected_Read",
	CmdProtectedRead:    "Protected_Read",
	CmdUnprotectedWrite: "Unprotected_Write",
	CmdExtended:         "Extended",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", uint8(c))
}

// HasFunctionCode reports whether the command is followed by an FNC byte.
func (c Command) HasFunctionCode() bool { return c == CmdExtended }

// FunctionCode is the PCCC FNC byte of an extended command.
type FunctionCode uint8

const (
	FncWordRangeWrite  FunctionCode = 0x00
	FncWordRangeRead   FunctionCode = 0x01
	FncEcho            FunctionCode = 0x06
	FncBitWrite        FunctionCode = 0x26
	FncBitRead         FunctionCode = 0x29
	FncSetCPUMode      FunctionCode = 0x3A
	FncDiagnosticRead  FunctionCode = 0x41
	FncTypedWrite      FunctionCode = 0x67
	FncTypedRead       FunctionCode = 0x68
	FncChangeMode      FunctionCode = 0x80
	FncReadSLCFileInfo FunctionCode = 0x87
	FncTypedRead3Addr  FunctionCode = 0xA2
	FncTypedWrite3Addr FunctionCode = 0xAA
)

type functionInfo struct {
	name  string
	read  bool
	write bool
}

var functions = map[FunctionCode]functionInfo{
	FncWordRangeWrite:  {name: "Word_Range_Write", write: true},
	FncWordRangeRead:   {name: "Word_Range_Read", read: true},
	FncEcho:            {name: "Echo", read: true},
	FncBitWrite:        {name: "Bit_Write", write: true},
	FncBitRead:         {name: "Bit_Read", read: true},
	FncSetCPUMode:      {name: "Set_CPU_Mode"},
	FncDiagnosticRead:  {name: "Diagnostic_Read", read: true},
	FncTypedWrite:      {name: "Typed_Write", write: true},
	FncTypedRead:       {name: "Typed_Read", read: true},
	FncChangeMode:      {name: "Change_Mode"},
	FncReadSLCFileInfo: {name: "Read_SLC_File_Info", read: true},
	FncTypedRead3Addr:  {name: "Typed_Read_3Addr", read: true},
	FncTypedWrite3Addr: {name: "Typed_Write_3Addr", write: true},
}

func (f FunctionCode) String() string {
	if info, ok := functions[f]; ok {
		return info.name
	}
	return fmt.Sprintf("Function(0x%02X)", uint8(f))
}

// Known reports whether f is a function code this package names.
func (f FunctionCode) Known() bool {
	_, ok := functions[f]
	return ok
}

// IsRead reports whether f reads from the processor.
func (f FunctionCode) IsRead() bool { return functions[f].read }

// IsWrite reports whether f writes to the processor.
func (f FunctionCode) IsWrite() bool { return functions[f].write }

// FileType is a data table file type code.
type FileType uint8

const (
	FileTypeOutput  FileType = 0x82
	FileTypeInput   FileType = 0x83
	FileTypeStatus  FileType = 0x84
	FileTypeBit     FileType = 0x85
	FileTypeTimer   FileType = 0x86
	FileTypeCounter FileType = 0x87
	FileTypeControl FileType = 0x88
	FileTypeInteger FileType = 0x89
	FileTypeFloat   FileType = 0x8A
	FileTypeString  FileType = 0x8D
	FileTypeASCII   FileType = 0x8E
	FileTypeLong    FileType = 0x91
)

type fileTypeInfo struct {
	prefix string
	// defaultFile is the conventional file number, and the implied one for
	// O, I and S addresses that omit it.
	defaultFile uint8
	elementSize int
	// subElements maps member names to word offsets for structured files.
	subElements map[string]uint8
}

var fileTypes = map[FileType]fileTypeInfo{
	FileTypeOutput:  {prefix: "O", defaultFile: 0, elementSize: 2},
	FileTypeInput:   {prefix: "I", defaultFile: 1, elementSize: 2},
	FileTypeStatus:  {prefix: "S", defaultFile: 2, elementSize: 2},
	FileTypeBit:     {prefix: "B", defaultFile: 3, elementSize: 2},
	FileTypeTimer:   {prefix: "T", defaultFile: 4, elementSize: 6, subElements: timerMembers},
	FileTypeCounter: {prefix: "C", defaultFile: 5, elementSize: 6, subElements: counterMembers},
	FileTypeControl: {prefix: "R", defaultFile: 6, elementSize: 6, subElements: controlMembers},
	FileTypeInteger: {prefix: "N", defaultFile: 7, elementSize: 2},
	FileTypeFloat:   {prefix: "F", defaultFile: 8, elementSize: 4},
	FileTypeString:  {prefix: "ST", defaultFile: 9, elementSize: 84},
	FileTypeASCII:   {prefix: "A", defaultFile: 10, elementSize: 2},
	FileTypeLong:    {prefix: "L", defaultFile: 11, elementSize: 4},
}

// Status bits live in the control word, sub-element 0.
var (
	timerMembers   = map[string]uint8{"CTL": 0, "CON": 0, "EN": 0, "TT": 0, "DN": 0, "PRE": 1, "ACC": 2}
	counterMembers = map[string]uint8{"CTL": 0, "CON": 0, "CU": 0, "CD": 0, "DN": 0, "OV": 0, "UN": 0, "PRE": 1, "ACC": 2}
	controlMembers = map[string]uint8{"CTL": 0, "CON": 0, "EN": 0, "EU": 0, "DN": 0, "EM": 0, "ER": 0, "UL": 0, "IN": 0, "FD": 0, "LEN": 1, "POS": 2}
)

func (ft FileType) String() string {
	if info, ok := fileTypes[ft]; ok {
		return info.prefix
	}
	return "?"
}

// ElementSize is the size in bytes of one element of the file type.
func (ft FileType) ElementSize() int {
	if info, ok := fileTypes[ft]; ok {
		return info.elementSize
	}
	return 2
}

// Structured reports whether elements of the file type have sub-elements.
func (ft FileType) Structured() bool { return fileTypes[ft].subElements != nil }

// DefaultFileNumber returns the conventional file number of a file type, N7
// for integers, B3 for bits and so on.
func DefaultFileNumber(ft FileType) uint8 { return fileTypes[ft].defaultFile }
