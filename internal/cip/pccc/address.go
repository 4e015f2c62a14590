package pccc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address is a parsed data table address such as N7:0, B3:1/5 or T4:2.ACC.
type Address struct {
	FileType   FileType
	FileNumber uint8
	Element    uint16
	SubElement uint8
	HasSub     bool
	// Bit is -1 when the address names a whole element.
	Bit int8
	Raw string
}

func (a Address) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	s := fmt.Sprintf("%s%d:%d", a.FileType, a.FileNumber, a.Element)
	if a.Bit >= 0 {
		s += fmt.Sprintf("/%d", a.Bit)
	}
	if a.HasSub {
		s += fmt.Sprintf(".%d", a.SubElement)
	}
	return s
}

// file prefix, file number, element, bit, sub-element
var addressPattern = regexp.MustCompile(`^(ST|[NBTCRFALOIS])(\d*):(\d+)(?:/(\d+))?(?:\.(\w+))?$`)

var prefixes = func() map[string]FileType {
	m := make(map[string]FileType, len(fileTypes))
	for ft, info := range fileTypes {
		m[info.prefix] = ft
	}
	return m
}()

// ParseAddress parses an SLC-500/PLC-5 style data table address. O, I and S
// addresses may omit the file number.
func ParseAddress(addr string) (Address, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	m := addressPattern.FindStringSubmatch(strings.ToUpper(addr))
	if m == nil {
		return Address{}, fmt.Errorf("invalid data table address %q", addr)
	}

	ft := prefixes[m[1]]
	a := Address{FileType: ft, Bit: -1, Raw: addr}

	switch {
	case m[2] != "":
		n, err := strconv.ParseUint(m[2], 10, 8)
		if err != nil {
			return Address{}, fmt.Errorf("invalid file number in %q: %w", addr, err)
		}
		a.FileNumber = uint8(n)
	case ft == FileTypeOutput || ft == FileTypeInput || ft == FileTypeStatus:
		a.FileNumber = DefaultFileNumber(ft)
	default:
		return Address{}, fmt.Errorf("missing file number in %q", addr)
	}

	n, err := strconv.ParseUint(m[3], 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("invalid element number in %q: %w", addr, err)
	}
	a.Element = uint16(n)

	if m[4] != "" {
		bit, err := strconv.ParseUint(m[4], 10, 8)
		if err != nil || bit > 15 {
			return Address{}, fmt.Errorf("invalid bit number in %q (must be 0-15)", addr)
		}
		a.Bit = int8(bit)
	}

	if m[5] != "" {
		sub, err := subElement(ft, m[5])
		if err != nil {
			return Address{}, fmt.Errorf("%w in %q", err, addr)
		}
		a.SubElement = sub
		a.HasSub = true
	}
	return a, nil
}

func subElement(ft FileType, name string) (uint8, error) {
	if n, err := strconv.ParseUint(name, 10, 8); err == nil {
		return uint8(n), nil
	}
	members := fileTypes[ft].subElements
	if members == nil {
		return 0, fmt.Errorf("file type %s has no named sub-elements", ft)
	}
	sub, ok := members[name]
	if !ok {
		return 0, fmt.Errorf("unknown %s sub-element %q", ft, name)
	}
	return sub, nil
}
