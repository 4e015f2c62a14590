package spec

import (
	"testing"

	"github.com/tturner/cipstack/internal/cip/protocol"
)

func TestServiceNameFor(t *testing.T) {
	tests := []struct {
		class ClassCode
		code  protocol.ServiceCode
		want  string
	}{
		{ClassConnectionManager, ServiceForwardClose, "Forward_Close"},
		{ClassSymbol, ServiceReadModifyWrite, "Read_Modify_Write"},
		{ClassConnectionManager, ServiceUnconnectedSend, "Unconnected_Send"},
		{ClassSymbol, ServiceReadTagFragmented, "Read_Tag_Fragmented"},
		{ClassConnectionManager, ServiceLargeForwardOpen, "Large_Forward_Open"},
		{ClassIdentity, ServiceGetAttributesAll, "Get_Attributes_All"},
		{ClassIdentity, ServiceGetAttributesAll | protocol.ServiceCode(protocol.ReplyFlag), "Get_Attributes_All"},
		{ClassIdentity, 0x7F, "Unknown(0x7F)"},
	}
	for _, tt := range tests {
		if got := ServiceNameFor(tt.class, tt.code); got != tt.want {
			t.Errorf("ServiceNameFor(0x%02X, 0x%02X) = %q, want %q", uint16(tt.class), uint8(tt.code), got, tt.want)
		}
	}
}

func TestServiceName(t *testing.T) {
	if got := ServiceName(ServiceForwardOpen); got != "Forward_Open" {
		t.Errorf("ServiceName(0x54) = %q", got)
	}
	if !IsKnownService(ServiceLargeForwardOpen) {
		t.Error("0x5B should be known")
	}
	if IsKnownService(0x70) {
		t.Error("0x70 should be unknown")
	}
}

func TestClassName(t *testing.T) {
	tests := []struct {
		class ClassCode
		want  string
	}{
		{ClassIdentity, "Identity"},
		{ClassPort, "Port"},
		{0x70, "Vendor Specific(0x70)"},
		{0xE0, "Unknown(0xE0)"},
	}
	for _, tt := range tests {
		if got := ClassName(tt.class); got != tt.want {
			t.Errorf("ClassName(0x%02X) = %q, want %q", uint16(tt.class), got, tt.want)
		}
	}
}
