package connection

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/tturner/cipstack/internal/cip/spec"
	cipErrors "github.com/tturner/cipstack/internal/errors"
)

func TestForwardOpenRequestEncoding(t *testing.T) {
	tests := []struct {
		name    string
		large   bool
		service byte
		length  int
	}{
		{name: "normal", service: byte(spec.ServiceForwardOpen), length: 6 + 36 + 4},
		{name: "large", large: true, service: byte(spec.ServiceLargeForwardOpen), length: 6 + 40 + 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ForwardOpenRequest{
				Large:            tt.large,
				PriorityTick:     defaultPriorityTick,
				TimeoutTicks:     defaultTimeoutTicks,
				TToOConnectionID: 0xCAFEF00D,
				ConnectionSerial: 0x1234,
				VendorID:         0x1339,
				OriginatorSerial: 42,
				Multiplier:       1,
				OToTRPI:          2000000,
				OToTParameters:   0x43F4,
				TToORPI:          2000000,
				TToOParameters:   0x43F4,
				Transport:        0xA3,
				Path:             MessageRouterPath,
			}
			b := req.Encode()
			if b[0] != tt.service {
				t.Fatalf("service = 0x%02X, want 0x%02X", b[0], tt.service)
			}
			if !bytes.Equal(b[1:6], []byte{0x02, 0x20, 0x06, 0x24, 0x01}) {
				t.Errorf("connection manager path = % X", b[1:6])
			}
			if len(b) != tt.length {
				t.Errorf("length = %d, want %d", len(b), tt.length)
			}
			got, err := parseForwardOpenRequest(b)
			if err != nil {
				t.Fatalf("parseForwardOpenRequest: %v", err)
			}
			if !reflect.DeepEqual(got, req) {
				t.Errorf("parsed %+v, want %+v", got, req)
			}
		})
	}
}

func TestParseForwardOpenRequestErrors(t *testing.T) {
	good := ForwardOpenRequest{Path: MessageRouterPath}.Encode()
	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"wrong service", ForwardCloseRequest{}.Encode()},
		{"truncated body", good[:20]},
		{"truncated path", good[:len(good)-2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseForwardOpenRequest(tt.b); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestForwardOpenReply(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x11, 0x11, // O->T
		0x02, 0x00, 0x22, 0x22, // T->O
		0x34, 0x12, // serial
		0x39, 0x13, // vendor
		0x2A, 0x00, 0x00, 0x00, // originator serial
		0x80, 0x84, 0x1E, 0x00, // O->T API 2s
		0x40, 0x42, 0x0F, 0x00, // T->O API 1s
		0x01, 0x00, // one word of application reply
		0xAB, 0xCD,
	}
	r, err := ParseForwardOpenReply(data)
	if err != nil {
		t.Fatalf("ParseForwardOpenReply: %v", err)
	}
	want := ForwardOpenReply{
		OToTConnectionID: 0x11110001,
		TToOConnectionID: 0x22220002,
		ConnectionSerial: 0x1234,
		VendorID:         0x1339,
		OriginatorSerial: 42,
		OToTAPI:          2000000,
		TToOAPI:          1000000,
		ApplicationReply: []byte{0xAB, 0xCD},
	}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("got %+v, want %+v", r, want)
	}
	encoded, err := want.encode()
	if err != nil || !bytes.Equal(encoded, data) {
		t.Errorf("Encode = % X, %v", encoded, err)
	}

	_, err = ParseForwardOpenReply(data[:len(data)-1])
	if !cipErrors.Is(err, cipErrors.ErrShortBuffer) {
		t.Errorf("truncated reply: err = %v", err)
	}
	if _, err := (ForwardOpenReply{ApplicationReply: []byte{1}}).encode(); err == nil {
		t.Error("odd application reply should not encode")
	}
}

func TestForwardOpenFailureBody(t *testing.T) {
	f, err := ParseForwardOpenFailure([]byte{0x34, 0x12, 0x39, 0x13, 0x2A, 0, 0, 0, 0x03, 0x00})
	if err != nil {
		t.Fatalf("ParseForwardOpenFailure: %v", err)
	}
	if f.ConnectionSerial != 0x1234 || f.VendorID != 0x1339 || f.OriginatorSerial != 42 || f.RemainingPathSize != 3 {
		t.Errorf("failure = %+v", f)
	}
}

func TestForwardClose(t *testing.T) {
	req := ForwardCloseRequest{
		PriorityTick:     defaultPriorityTick,
		TimeoutTicks:     defaultTimeoutTicks,
		ConnectionSerial: 0x1234,
		VendorID:         0x1339,
		OriginatorSerial: 42,
		Path:             append([]byte{0x01, 0x00}, MessageRouterPath...),
	}
	b := req.Encode()
	if b[0] != byte(spec.ServiceForwardClose) {
		t.Fatalf("service = 0x%02X", b[0])
	}
	got, err := parseForwardCloseRequest(b)
	if err != nil {
		t.Fatalf("parseForwardCloseRequest: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("parsed %+v, want %+v", got, req)
	}

	reply := ForwardCloseReply{ConnectionSerial: 0x1234, VendorID: 0x1339, OriginatorSerial: 42}
	data, err := reply.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != 10 {
		t.Errorf("reply length = %d", len(data))
	}
	parsed, err := ParseForwardCloseReply(data)
	if err != nil {
		t.Fatalf("ParseForwardCloseReply: %v", err)
	}
	if !reflect.DeepEqual(parsed, reply) {
		t.Errorf("parsed %+v, want %+v", parsed, reply)
	}
}
