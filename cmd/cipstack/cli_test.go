package main

import (
	"bytes"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tturner/cipstack/internal/cip/client"
	"github.com/tturner/cipstack/internal/cip/object"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
	"github.com/tturner/cipstack/internal/enip"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/metrics"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in      string
		bits    int
		want    uint64
		wantErr bool
	}{
		{"0x01", 16, 1, false},
		{"244", 16, 244, false},
		{" 0xF4 ", 16, 0xF4, false},
		{"0x10000", 16, 0, true},
		{"abc", 32, 0, true},
	}
	for _, tt := range tests {
		got, err := parseUint(tt.in, tt.bits)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseUint(%q, %d) = %d, %v", tt.in, tt.bits, got, err)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := map[string][]byte{
		"2A00":        {0x2A, 0x00},
		"0x0102":      {0x01, 0x02},
		"de ad be ef": {0xDE, 0xAD, 0xBE, 0xEF},
		"01:02":       {0x01, 0x02},
		"":            {},
	}
	for in, want := range tests {
		got, err := parseHex(in)
		if err != nil {
			t.Errorf("parseHex(%q): %v", in, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("parseHex(%q) = % X, want % X", in, got, want)
		}
	}
	if _, err := parseHex("0g"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestAttributeRowsDecodeKnownObjects(t *testing.T) {
	attrs := []client.AttributeData{
		{Code: 1, Data: []byte{0x01, 0x00}},
		{Code: 99, Data: []byte{0xAA}},
	}
	rows := attributeRows(knownObjects[spec.ClassIdentity], false, attrs)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if !strings.Contains(rows[0].label, "Vendor") || rows[0].value != "1" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].label != "#99" || rows[1].value != "AA" {
		t.Errorf("undecodable attribute should fall back to hex, got %+v", rows[1])
	}

	raw := attributeRows(nil, false, attrs)
	if raw[0].value != "01 00" {
		t.Errorf("unknown class row = %+v", raw[0])
	}
}

func TestIdentityRowsIncludeState(t *testing.T) {
	rows := identityRows(object.IdentityInfo{SerialNumber: 0xC0FFEE01, State: &object.Named{Code: 3, Name: "Operational"}})
	var serial, state bool
	for _, r := range rows {
		if r.label == "Serial number" && r.value == "0xC0FFEE01" {
			serial = true
		}
		if r.label == "State" {
			state = true
		}
	}
	if !serial || !state {
		t.Errorf("rows = %+v", rows)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cipstack.yaml", "cipstack.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if _, err := runCLI(t, "config", "init", path); err != nil {
				t.Fatalf("config init: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("config file not written: %v", err)
			}
			out, err := runCLI(t, "config", "show", path)
			if err != nil {
				t.Fatalf("config show: %v", err)
			}
			if !strings.Contains(out, "44818") {
				t.Errorf("show output missing port:\n%s", out)
			}
		})
	}
}

func TestExploreRequiresClass(t *testing.T) {
	_, err := runCLI(t, "explore", "--ip", "127.0.0.1")
	if err == nil || !strings.Contains(err.Error(), "--class") {
		t.Fatalf("err = %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cipstack version dev") {
		t.Errorf("output = %q", out)
	}
}

// serveIdentity accepts one EtherNet/IP session and answers every unconnected
// request with an Identity Get_Attributes_All reply.
func serveIdentity(t *testing.T) (port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var buffer []byte
		chunk := make([]byte, 4096)
		for {
			n, err := conn.Read(chunk)
			if err != nil {
				return
			}
			var frames []enip.Encapsulation
			frames, buffer = enip.SplitFrames(append(buffer, chunk[:n]...))
			for _, f := range frames {
				switch f.Command {
				case enip.CommandRegisterSession:
					conn.Write(enip.Encapsulation{Command: f.Command, SessionID: 7, SenderContext: f.SenderContext, Data: f.Data}.Encode())
				case enip.CommandSendRRData:
					msg, _ := enip.ParseSendRRData(f.Data)
					req, _ := protocol.ParseRequest(msg)
					conn.Write(enip.BuildSendRRData(f.SessionID, f.SenderContext, protocol.EncodeReply(req.Service, 0, nil, identityData())))
				case enip.CommandUnregisterSession:
					return
				}
			}
		}
	}()
	_, port, _ = net.SplitHostPort(ln.Addr().String())
	return port
}

func identityData() []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = binary.LittleEndian.AppendUint16(b, 0x0E)
	b = binary.LittleEndian.AppendUint16(b, 0x36)
	b = append(b, 20, 11)
	b = binary.LittleEndian.AppendUint16(b, 0x0064)
	b = binary.LittleEndian.AppendUint32(b, 0xC0FFEE01)
	name := "1756-L61/B LOGIX5561"
	b = append(b, byte(len(name)))
	return append(b, name...)
}

func TestIdentityCommand(t *testing.T) {
	port := serveIdentity(t)
	dir := t.TempDir()
	capturePath := filepath.Join(dir, "identity.pcap")
	metricsPath := filepath.Join(dir, "identity.csv")
	out, err := runCLI(t, "identity", "--ip", "127.0.0.1", "--port", port, "--log-level", "silent",
		"--capture", capturePath, "--metrics-file", metricsPath)
	if err != nil {
		t.Fatalf("identity: %v\n%s", err, out)
	}
	for _, want := range []string{"1756-L61/B LOGIX5561", "20.011", "0xC0FFEE01", "Total Operations: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	info, err := os.Stat(capturePath)
	if err != nil {
		t.Fatalf("capture not written: %v", err)
	}
	if info.Size() <= 24 {
		t.Errorf("capture holds no packets (%d bytes)", info.Size())
	}
	recorded, err := metrics.ReadMetricsCSV(metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if len(recorded) != 1 || !recorded[0].Success {
		t.Errorf("metrics = %+v", recorded)
	}
}

func TestWrapOperationError(t *testing.T) {
	status := &cipErrors.ProtocolStatusError{Service: 0x0E, Code: 0x14, Description: "Attribute not supported"}
	err := wrapOperationError("explore", status)
	var friendly cipErrors.UserFriendlyError
	if !cipErrors.As(err, &friendly) || !strings.Contains(friendly.Reason, "0x14") {
		t.Fatalf("err = %v", err)
	}
	if !cipErrors.Is(err, status) {
		t.Error("wrapped error lost its cause")
	}
	if again := wrapOperationError("explore", err); again != err {
		t.Error("already wrapped error was wrapped twice")
	}
	if wrapOperationError("explore", nil) != nil {
		t.Error("nil error was wrapped")
	}
}
