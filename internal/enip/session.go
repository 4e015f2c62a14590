package enip

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/cipstack/internal/cip/layer"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
)

// DefaultPort is the EtherNet/IP explicit messaging TCP port.
const DefaultPort = 44818

// DefaultDialTimeout bounds Dial when the context has no deadline.
const DefaultDialTimeout = 5 * time.Second

// Recorder receives every frame written to or read from the socket.
type Recorder interface {
	Record(local, remote net.Addr, outbound bool, frame []byte) error
}

// Options configure a Session.
type Options struct {
	DialTimeout time.Duration
	Recorder    Recorder
}

// Session is a registered EtherNet/IP session. Unconnected messages travel in
// SendRRData and are matched to replies through the sender context; connected
// datagrams travel in SendUnitData.
type Session struct {
	conn      net.Conn
	log       *logging.Logger
	recorder  Recorder
	sessionID uint32

	writeMu sync.Mutex

	upperMu sync.RWMutex
	upper   layer.Upper

	calls  layer.Contexts[any]
	closed atomic.Bool
	done   chan struct{}
}

var _ layer.Lower = (*Session)(nil)

// Dial connects to address and registers a session.
func Dial(ctx context.Context, address string, opts Options, logger *logging.Logger) (*Session, error) {
	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		host, portStr, splitErr := net.SplitHostPort(address)
		if splitErr != nil {
			return nil, fmt.Errorf("dial %s: %w", address, err)
		}
		port, _ := strconv.Atoi(portStr)
		return nil, cipErrors.WrapNetworkError(err, host, port)
	}
	s, err := NewSession(ctx, conn, opts, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSession registers a session over an open stream and starts its reader.
func NewSession(ctx context.Context, conn net.Conn, opts Options, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Session{
		conn:     conn,
		log:      logger,
		recorder: opts.Recorder,
		done:     make(chan struct{}),
	}
	rest, err := s.register(ctx)
	if err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	s.log.Verbose("Registered session 0x%08X with %s", s.sessionID, conn.RemoteAddr())
	go s.readLoop(rest)
	return s, nil
}

// SessionID returns the session handle assigned by the target.
func (s *Session) SessionID() uint32 { return s.sessionID }

// Done is closed when the reader stops.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) register(ctx context.Context) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultDialTimeout)
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	defer s.conn.SetDeadline(time.Time{})

	if err := s.write(BuildRegisterSession([8]byte{})); err != nil {
		return nil, err
	}

	var buffer []byte
	chunk := make([]byte, 4096)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
			var frames []Encapsulation
			frames, buffer = SplitFrames(buffer)
			for _, f := range frames {
				s.record(false, f.Encode())
				if f.Command != CommandRegisterSession {
					s.log.Debug("Ignoring command 0x%04X before registration", f.Command)
					continue
				}
				if f.Status != StatusSuccess {
					return nil, fmt.Errorf("target returned encapsulation status 0x%08X", f.Status)
				}
				s.sessionID = f.SessionID
				return buffer, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// Bind registers the layer that receives replies.
func (s *Session) Bind(upper layer.Upper) {
	s.upperMu.Lock()
	s.upper = upper
	s.upperMu.Unlock()
}

// Send writes one message. Connected messages go to info.ConnectionID and
// carry no context; the reply to an unconnected message is delivered with
// msgCtx.
func (s *Session) Send(message []byte, info *layer.Info, broadcast bool, msgCtx any) error {
	if s.closed.Load() {
		return cipErrors.ErrClosed
	}
	if info != nil && info.Connected {
		return s.write(BuildSendUnitData(s.sessionID, info.ConnectionID, message))
	}

	tok := s.calls.Register(msgCtx)
	var senderContext [8]byte
	order.PutUint64(senderContext[:], uint64(tok))
	if err := s.write(BuildSendRRData(s.sessionID, senderContext, message)); err != nil {
		s.calls.Take(tok)
		return err
	}
	return nil
}

func (s *Session) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("write encapsulation: %w", err)
	}
	s.log.LogHex("ENIP TX", frame)
	s.record(true, frame)
	return nil
}

func (s *Session) record(outbound bool, frame []byte) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(s.conn.LocalAddr(), s.conn.RemoteAddr(), outbound, frame); err != nil {
		s.log.Debug("Capture write failed: %v", err)
	}
}

func (s *Session) currentUpper() layer.Upper {
	s.upperMu.RLock()
	defer s.upperMu.RUnlock()
	return s.upper
}

func (s *Session) readLoop(buffer []byte) {
	defer close(s.done)
	chunk := make([]byte, 4096)
	for {
		var frames []Encapsulation
		frames, buffer = SplitFrames(buffer)
		for _, f := range frames {
			s.record(false, f.Encode())
			s.dispatch(f)
		}

		n, err := s.conn.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
		}
		if err != nil {
			if s.closed.Load() {
				err = cipErrors.ErrClosed
			} else {
				err = fmt.Errorf("read encapsulation: %w", err)
			}
			s.fail(err)
			return
		}
	}
}

func (s *Session) dispatch(f Encapsulation) {
	upper := s.currentUpper()
	switch f.Command {
	case CommandSendRRData:
		tok := layer.Token(order.Uint64(f.SenderContext[:]))
		msgCtx, ok := s.calls.Take(tok)
		if !ok {
			s.log.Debug("SendRRData reply with unknown sender context %X dropped", f.SenderContext)
			return
		}
		if upper == nil {
			return
		}
		if f.Status != StatusSuccess {
			upper.HandleError(msgCtx, fmt.Errorf("encapsulation status 0x%08X", f.Status))
			return
		}
		message, err := ParseSendRRData(f.Data)
		if err != nil {
			upper.HandleError(msgCtx, err)
			return
		}
		s.log.LogHex("ENIP RX", message)
		upper.HandleData(message, &layer.Info{}, msgCtx)
	case CommandSendUnitData:
		connID, datagram, err := ParseSendUnitData(f.Data)
		if err != nil {
			s.log.Debug("Malformed SendUnitData dropped: %v", err)
			return
		}
		if upper == nil {
			return
		}
		upper.HandleData(datagram, &layer.Info{Connected: true, ConnectionID: connID}, nil)
	default:
		s.log.Debug("Unsolicited command 0x%04X ignored", f.Command)
	}
}

// fail reports err for every outstanding unconnected message and then for the
// transport itself.
func (s *Session) fail(err error) {
	upper := s.currentUpper()
	for _, msgCtx := range s.calls.Drain() {
		if upper != nil {
			upper.HandleError(msgCtx, err)
		}
	}
	if upper != nil {
		upper.HandleError(nil, err)
	}
}

// Close unregisters the session and closes the socket. Outstanding messages
// fail with errors.ErrClosed.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = s.conn.Write(BuildUnregisterSession(s.sessionID))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}
