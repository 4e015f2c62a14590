package capture

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func TestRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	r, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	local := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 51000}
	remote := &net.TCPAddr{IP: net.ParseIP("10.0.0.20"), Port: 44818}

	frames := [][]byte{
		{0x65, 0x00, 0x04, 0x00},
		{0x65, 0x00, 0x04, 0x00, 0x01},
		{0x6F, 0x00},
	}
	directions := []bool{true, false, true}
	for i, f := range frames {
		if err := r.Record(local, remote, directions[i], f); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if r.Packets() != 3 {
		t.Errorf("Packets = %d, want 3", r.Packets())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	reader, err := pcapgo.NewReader(file)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if reader.LinkType() != layers.LinkTypeEthernet {
		t.Errorf("link type = %v", reader.LinkType())
	}

	var seqs []uint32
	for i := range frames {
		data, _, err := reader.ReadPacketData()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
		ip, _ := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		tcp, _ := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if ip == nil || tcp == nil {
			t.Fatalf("packet %d missing IPv4/TCP layers", i)
		}
		wantSrc, wantPort := "10.0.0.5", layers.TCPPort(51000)
		if !directions[i] {
			wantSrc, wantPort = "10.0.0.20", layers.TCPPort(44818)
		}
		if ip.SrcIP.String() != wantSrc || tcp.SrcPort != wantPort {
			t.Errorf("packet %d from %s:%d, want %s:%d", i, ip.SrcIP, tcp.SrcPort, wantSrc, wantPort)
		}
		if !bytes.Equal(tcp.Payload, frames[i]) {
			t.Errorf("packet %d payload = % X, want % X", i, tcp.Payload, frames[i])
		}
		if directions[i] {
			seqs = append(seqs, tcp.Seq)
		}
	}
	// Outbound sequence numbers advance by the previous payload length.
	if len(seqs) != 2 || seqs[1]-seqs[0] != uint32(len(frames[0])) {
		t.Errorf("outbound seqs = %v", seqs)
	}
}

func TestRecorderNonTCPAddresses(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRecorder(&buf)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if err := r.Record(a.LocalAddr(), a.RemoteAddr(), true, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	reader, err := pcapgo.NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	data, _, err := reader.ReadPacketData()
	if err != nil {
		t.Fatalf("ReadPacketData: %v", err)
	}
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	tcp, _ := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if tcp == nil || tcp.DstPort != 44818 {
		t.Fatalf("tcp = %+v", tcp)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on writer-backed recorder: %v", err)
	}
}
