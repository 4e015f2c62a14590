// Package capture records the encapsulation frames a session exchanges as a
// pcap file readable by Wireshark. Frames are wrapped in synthetic Ethernet,
// IPv4 and TCP headers carrying the socket's real addresses and ports.
package capture

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

var (
	localMAC  = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	remoteMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Recorder writes one packet per recorded frame.
type Recorder struct {
	mu      sync.Mutex
	writer  *pcapgo.Writer
	closer  io.Closer
	seq     map[bool]uint32
	packets int
	now     func() time.Time
}

// Create opens path for writing and writes the pcap file header.
func Create(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	r, err := NewRecorder(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewRecorder writes the pcap file header to w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Recorder{
		writer: writer,
		seq:    map[bool]uint32{true: 1, false: 1},
		now:    time.Now,
	}, nil
}

// Record writes frame as a TCP segment from local to remote when outbound, and
// from remote to local otherwise.
func (r *Recorder) Record(local, remote net.Addr, outbound bool, frame []byte) error {
	localIP, localPort := endpoint(local, 50000)
	remoteIP, remotePort := endpoint(remote, 44818)

	r.mu.Lock()
	defer r.mu.Unlock()

	eth := &layers.Ethernet{SrcMAC: localMAC, DstMAC: remoteMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: localIP, DstIP: remoteIP}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(localPort),
		DstPort: layers.TCPPort(remotePort),
		Seq:     r.seq[outbound],
		Ack:     r.seq[!outbound],
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}
	if !outbound {
		eth.SrcMAC, eth.DstMAC = eth.DstMAC, eth.SrcMAC
		ip.SrcIP, ip.DstIP = ip.DstIP, ip.SrcIP
		tcp.SrcPort, tcp.DstPort = tcp.DstPort, tcp.SrcPort
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(frame)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: r.now(), CaptureLength: len(data), Length: len(data)}
	if err := r.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	r.seq[outbound] += uint32(len(frame))
	r.packets++
	return nil
}

// Packets returns the number of packets written.
func (r *Recorder) Packets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packets
}

// Close closes the underlying file when the recorder opened it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func endpoint(addr net.Addr, fallbackPort int) (net.IP, int) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		if ip4 := tcp.IP.To4(); ip4 != nil {
			return ip4, tcp.Port
		}
	}
	return net.IPv4(127, 0, 0, 1).To4(), fallbackPort
}
