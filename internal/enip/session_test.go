package enip

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tturner/cipstack/internal/cip/layer"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
)

const testSession uint32 = 0x00C0FFEE

// fakeTarget answers encapsulation requests on the far end of a pipe.
type fakeTarget struct {
	conn net.Conn
	// rrStatus is returned as the encapsulation status of SendRRData replies.
	rrStatus     uint32
	unregistered chan struct{}
}

func (ft *fakeTarget) serve() {
	var buffer []byte
	chunk := make([]byte, 4096)
	for {
		n, err := ft.conn.Read(chunk)
		if err != nil {
			return
		}
		var frames []Encapsulation
		frames, buffer = SplitFrames(append(buffer, chunk[:n]...))
		for _, f := range frames {
			ft.answer(f)
		}
	}
}

func (ft *fakeTarget) answer(f Encapsulation) {
	switch f.Command {
	case CommandRegisterSession:
		ft.conn.Write(Encapsulation{Command: CommandRegisterSession, SessionID: testSession, SenderContext: f.SenderContext, Data: f.Data}.Encode())
	case CommandSendRRData:
		msg, _ := ParseSendRRData(f.Data)
		reply := append([]byte{msg[0] | 0x80, 0, 0, 0}, msg[1:]...)
		frame := BuildSendRRData(f.SessionID, f.SenderContext, reply)
		if ft.rrStatus != 0 {
			frame = Encapsulation{Command: CommandSendRRData, SessionID: f.SessionID, Status: ft.rrStatus, SenderContext: f.SenderContext}.Encode()
		}
		ft.conn.Write(frame)
	case CommandSendUnitData:
		id, datagram, _ := ParseSendUnitData(f.Data)
		ft.conn.Write(BuildSendUnitData(f.SessionID, id+1, datagram))
	case CommandUnregisterSession:
		close(ft.unregistered)
	}
}

type delivery struct {
	data   []byte
	info   layer.Info
	ctx    any
	err    error
	failed bool
}

type recordingUpper struct {
	got chan delivery
}

func (u *recordingUpper) HandleData(data []byte, info *layer.Info, msgCtx any) {
	u.got <- delivery{data: data, info: *info, ctx: msgCtx}
}

func (u *recordingUpper) HandleError(msgCtx any, err error) {
	u.got <- delivery{ctx: msgCtx, err: err, failed: true}
}

func (u *recordingUpper) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-u.got:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

type frameLog struct {
	mu       sync.Mutex
	outbound int
	inbound  int
}

func (r *frameLog) Record(local, remote net.Addr, outbound bool, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outbound {
		r.outbound++
	} else {
		r.inbound++
	}
	return nil
}

func newTestSession(t *testing.T, ft *fakeTarget, opts Options) (*Session, *recordingUpper) {
	t.Helper()
	client, server := net.Pipe()
	ft.conn = server
	ft.unregistered = make(chan struct{})
	go ft.serve()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := NewSession(ctx, client, opts, logging.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		server.Close()
	})
	upper := &recordingUpper{got: make(chan delivery, 16)}
	s.Bind(upper)
	return s, upper
}

func TestSessionRegisters(t *testing.T) {
	s, _ := newTestSession(t, &fakeTarget{}, Options{})
	if s.SessionID() != testSession {
		t.Errorf("session = 0x%08X, want 0x%08X", s.SessionID(), testSession)
	}
}

func TestSessionUnconnectedReply(t *testing.T) {
	s, upper := newTestSession(t, &fakeTarget{}, Options{})
	type caller struct{ id int }
	first, second := &caller{1}, &caller{2}

	if err := s.Send([]byte{0x01, 0x02, 0x20, 0x01, 0x24, 0x01}, &layer.Info{}, false, first); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send([]byte{0x0E, 0x02, 0x20, 0x01, 0x24, 0x02}, nil, false, second); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, want := range []*caller{first, second} {
		d := upper.next(t)
		if d.failed {
			t.Fatalf("unexpected error %v", d.err)
		}
		if d.ctx != want {
			t.Errorf("context = %v, want %v", d.ctx, want)
		}
		if d.info.Connected {
			t.Error("unconnected reply marked connected")
		}
		if d.data[0]&0x80 == 0 {
			t.Errorf("reply = % X", d.data)
		}
	}
}

func TestSessionEncapsulationStatus(t *testing.T) {
	s, upper := newTestSession(t, &fakeTarget{rrStatus: 0x65}, Options{})
	if err := s.Send([]byte{0x01, 0x02, 0x20, 0x01, 0x24, 0x01}, &layer.Info{}, false, "ctx"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d := upper.next(t)
	if !d.failed || d.ctx != "ctx" {
		t.Fatalf("delivery = %+v, want failure for ctx", d)
	}
}

func TestSessionConnectedData(t *testing.T) {
	s, upper := newTestSession(t, &fakeTarget{}, Options{})
	datagram := []byte{0x05, 0x00, 0x0E, 0x02, 0x20, 0x01, 0x24, 0x01}
	if err := s.Send(datagram, &layer.Info{Connected: true, ConnectionID: 0x100}, false, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d := upper.next(t)
	if !d.info.Connected || d.info.ConnectionID != 0x101 {
		t.Errorf("info = %+v", d.info)
	}
	if d.ctx != nil {
		t.Errorf("context = %v, want nil", d.ctx)
	}
	if !bytes.Equal(d.data, datagram) {
		t.Errorf("datagram = % X", d.data)
	}
}

func TestSessionCloseFailsOutstanding(t *testing.T) {
	ft := &fakeTarget{}
	s, upper := newTestSession(t, ft, Options{})
	// Hold a context the target never answers.
	s.calls.Register("pending")

	if err := s.Close(); err != nil {
		t.Logf("Close: %v", err)
	}
	<-ft.unregistered

	d := upper.next(t)
	if !d.failed || d.ctx != "pending" || !cipErrors.Is(d.err, cipErrors.ErrClosed) {
		t.Fatalf("delivery = %+v, want ErrClosed for pending", d)
	}
	d = upper.next(t)
	if !d.failed || d.ctx != nil {
		t.Fatalf("delivery = %+v, want transport failure", d)
	}
	if err := s.Send([]byte{0x01}, &layer.Info{}, false, "late"); !cipErrors.Is(err, cipErrors.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestSessionRecordsFrames(t *testing.T) {
	rec := &frameLog{}
	s, upper := newTestSession(t, &fakeTarget{}, Options{Recorder: rec})
	if err := s.Send([]byte{0x01, 0x02, 0x20, 0x01, 0x24, 0x01}, &layer.Info{}, false, 1); err != nil {
		t.Fatalf("Send: %v", err)
	}
	upper.next(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	// RegisterSession and SendRRData each way.
	if rec.outbound != 2 || rec.inbound != 2 {
		t.Errorf("recorded %d out, %d in; want 2 and 2", rec.outbound, rec.inbound)
	}
}
