package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestDecodeError_Unwrap(t *testing.T) {
	err := fmt.Errorf("identity: %w", &DecodeError{Type: "SHORT_STRING", Offset: 14, Err: ErrShortBuffer})
	if !Is(err, ErrShortBuffer) {
		t.Fatal("errors.Is should find ErrShortBuffer")
	}
	var de *DecodeError
	if !As(err, &de) {
		t.Fatal("errors.As should find *DecodeError")
	}
	if de.Offset != 14 {
		t.Errorf("Offset = %d, want 14", de.Offset)
	}
	if !strings.Contains(err.Error(), "SHORT_STRING at offset 14") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConnectionError
		want string
	}{
		{"status", &ConnectionError{Op: "forward open", Status: &ProtocolStatusError{Service: 0x5B, Code: 0x01, Description: "Connection failure", Extended: []uint16{0x0100}}}, "forward open failed: service 0x5B: status 0x01 (Connection failure) extended [0100]"},
		{"cause", &ConnectionError{Op: "forward close", Err: ErrClosed}, "forward close failed: layer closed"},
		{"bare", &ConnectionError{Op: "connect"}, "connect failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	var status *ProtocolStatusError
	if !As(tests[0].err, &status) || status.Code != 0x01 {
		t.Error("ConnectionError should unwrap to its status")
	}
}

func TestProgrammingError(t *testing.T) {
	err := &ProgrammingError{Msg: "connected send without context"}
	if got := err.Error(); got != "programming error: connected send without context" {
		t.Errorf("Error() = %q", got)
	}
}
