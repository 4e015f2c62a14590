// Package connection implements CIP connected messaging on top of an
// unconnected request/reply layer: Forward Open and Forward Close, sequence
// counted datagrams, keep-alive resend and reply demultiplexing.
package connection

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/cipstack/internal/cip/layer"
	"github.com/tturner/cipstack/internal/cip/object"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
)

// State is the session state.
type State int32

const (
	StateClosing     State = -1
	StateIdle        State = 0
	StateOpening     State = 1
	StateEstablished State = 2
)

func (s State) String() string {
	switch s {
	case StateClosing:
		return "closing"
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateEstablished:
		return "established"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SessionInfo is a snapshot of the negotiated session.
type SessionInfo struct {
	State            State
	Large            bool
	MaximumSize      uint16
	OToTConnectionID uint32
	TToOConnectionID uint32
	ConnectionSerial uint16
	VendorID         uint16
	OriginatorSerial uint32
	OToTAPI          uint32
	TToOAPI          uint32
	Timeout          time.Duration
}

type op uint8

const (
	opExternal op = iota
	opForwardOpen
	opForwardClose
)

// unconnectedContext is what this layer hands to the lower layer with every
// unconnected send.
type unconnectedContext struct {
	op      op
	routed  bool
	context any
}

type outbound struct {
	message   []byte
	connected bool
	context   any
}

type pending struct {
	context any
	request []byte
}

// Connection is a CIP connection. All session state is owned by one event
// loop goroutine; public methods post work to it.
type Connection struct {
	lower layer.Lower
	log   *logging.Logger

	events chan func()
	done   chan struct{}
	once   sync.Once

	state    atomic.Int32
	infoMu   sync.Mutex
	snapshot SessionInfo

	// Owned by the event loop.
	upper             layer.Upper
	opts              Options
	network           NetworkParameters
	transport         uint8
	session           SessionInfo
	sequence          uint16
	queue             layer.Queue[outbound]
	pending           map[uint16]pending
	ticks             []func()
	fellBack          bool
	lastDatagram      []byte
	resendTimer       *time.Timer
	resendGen         uint64
	closeTimer        *time.Timer
	closeGen          uint64
	connectWaiters    []chan error
	disconnectWaiters []chan error
}

// New creates a connection above lower and binds itself as lower's upper layer.
// No traffic is sent until a connected request is queued or Connect is called.
func New(lower layer.Lower, opts Options, logger *logging.Logger) (*Connection, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("connection options: %w", err)
	}
	opts = opts.withDefaults()
	transport, _ := opts.Transport.Code()
	c := &Connection{
		lower:     lower,
		log:       logger,
		events:    make(chan func(), 256),
		done:      make(chan struct{}),
		opts:      opts,
		network:   *opts.Network,
		transport: transport,
		pending:   make(map[uint16]pending),
		// The first connected datagram carries count 0.
		sequence: 0xFFFF,
	}
	c.publish()
	lower.Bind(c)
	go c.run()
	return c, nil
}

func (c *Connection) run() {
	for {
		if len(c.ticks) > 0 {
			select {
			case fn := <-c.events:
				fn()
			case <-c.done:
				return
			default:
				fn := c.ticks[0]
				c.ticks[0] = nil
				c.ticks = c.ticks[1:]
				fn()
			}
			continue
		}
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

// post hands fn to the event loop. It reports false once the connection is destroyed.
func (c *Connection) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// later runs fn on the loop after events already waiting.
func (c *Connection) later(fn func()) {
	c.ticks = append(c.ticks, fn)
}

// State returns the current session state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Info returns a snapshot of the session.
func (c *Connection) Info() SessionInfo {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	return c.snapshot
}

func (c *Connection) setState(s State) {
	c.session.State = s
	c.state.Store(int32(s))
	c.publish()
}

func (c *Connection) publish() {
	c.session.Large = c.network.Large()
	c.session.MaximumSize = c.network.MaximumSize
	c.infoMu.Lock()
	c.snapshot = c.session
	c.infoMu.Unlock()
}

// Bind registers the layer above.
func (c *Connection) Bind(upper layer.Upper) {
	c.post(func() { c.upper = upper })
}

// Send queues message. A nil info or info.Connected sends it on the
// connection, opening it first if needed; such sends must carry a context.
// While the connection is Established every send goes on it.
func (c *Connection) Send(message []byte, info *layer.Info, broadcast bool, msgCtx any) error {
	connected := info == nil || info.Connected
	if connected && msgCtx == nil {
		return &cipErrors.ProgrammingError{Msg: "connected messages must include a context"}
	}
	item := outbound{message: message, connected: connected, context: msgCtx}
	if !c.post(func() {
		c.queue.Push(item)
		c.sendNext()
	}) {
		return cipErrors.ErrClosed
	}
	return nil
}

// Connect opens the connection and waits until it is established.
func (c *Connection) Connect(ctx context.Context) error {
	errc := make(chan error, 1)
	if !c.post(func() { c.connect(errc) }) {
		return cipErrors.ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection with Forward Close. It returns once the
// target confirms or the disconnect timeout passes.
func (c *Connection) Disconnect(ctx context.Context) error {
	errc := make(chan error, 1)
	if !c.post(func() { c.disconnect(errc) }) {
		return cipErrors.ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy stops the connection without closing it on the target. Queued and
// pending requests are abandoned.
func (c *Connection) Destroy() {
	c.once.Do(func() {
		finished := make(chan struct{})
		if c.post(func() {
			c.teardown(cipErrors.ErrClosed)
			close(finished)
		}) {
			<-finished
		}
		close(c.done)
	})
}

// DecodeInstanceAttribute decodes a Connection object instance attribute.
func (c *Connection) DecodeInstanceAttribute(code uint16, buf []byte, off int) (object.Value, int, error) {
	return object.Connection.DecodeInstanceAttribute(code, buf, off)
}

// HandleData receives replies from the lower layer.
func (c *Connection) HandleData(data []byte, info *layer.Info, msgCtx any) {
	c.post(func() {
		if msgCtx != nil {
			c.handleUnconnected(data, info, msgCtx)
			return
		}
		c.handleConnected(data, info)
	})
}

// HandleError receives send failures from the lower layer. A nil context means
// the transport itself failed.
func (c *Connection) HandleError(msgCtx any, err error) {
	c.post(func() {
		uc, ok := msgCtx.(*unconnectedContext)
		switch {
		case ok && uc.op == opForwardOpen:
			c.failOpen(&cipErrors.ConnectionError{Op: "forward open", Err: err})
		case ok && uc.op == opForwardClose:
			c.finishClose(&cipErrors.ConnectionError{Op: "forward close", Err: err})
		case ok:
			c.forwardError(uc.context, err)
		default:
			c.log.Error("Transport failed: %v", err)
			c.teardown(err)
		}
	})
}

func (c *Connection) sendNext() {
	switch c.State() {
	case StateIdle:
		head, ok := c.queue.Peek()
		if !ok {
			return
		}
		if head.connected {
			c.connect(nil)
			return
		}
		c.queue.Next()
		c.sendUnconnected(head)
	case StateEstablished:
		item, ok := c.queue.Next()
		if !ok {
			return
		}
		c.sendConnected(item)
	default:
		return
	}
	if c.queue.Len() > 0 {
		c.later(c.sendNext)
	}
}

func (c *Connection) sendUnconnected(item outbound) {
	message := item.message
	uc := &unconnectedContext{op: opExternal, context: item.context}
	if len(c.opts.Route) > 0 {
		message = protocol.EncodeUnconnectedSend(message, c.opts.Route, defaultPriorityTick, defaultTimeoutTicks)
		uc.routed = true
	}
	if err := c.lower.Send(message, nil, false, uc); err != nil {
		c.forwardError(item.context, err)
	}
}

func (c *Connection) sendConnected(item outbound) {
	c.sequence++
	seq := c.sequence
	if _, busy := c.pending[seq]; busy {
		c.log.Verbose("Sequence count %d reused while a reply is outstanding", seq)
	}
	c.pending[seq] = pending{context: item.context, request: item.message}

	datagram := make([]byte, 2+len(item.message))
	order.PutUint16(datagram, seq)
	copy(datagram[2:], item.message)

	if err := c.lower.Send(datagram, c.sendInfo(), false, nil); err != nil {
		delete(c.pending, seq)
		c.forwardError(item.context, err)
		return
	}
	c.lastDatagram = datagram
	c.startResend()
}

func (c *Connection) sendInfo() *layer.Info {
	return &layer.Info{
		Connected:    true,
		ConnectionID: c.session.OToTConnectionID,
		ResponseID:   c.session.TToOConnectionID,
	}
}

func (c *Connection) connect(waiter chan error) {
	switch c.State() {
	case StateEstablished:
		if waiter != nil {
			waiter <- nil
		}
		return
	case StateClosing:
		if waiter != nil {
			waiter <- &cipErrors.ConnectionError{Op: "connect", Err: fmt.Errorf("connection is closing")}
		}
		return
	}
	if waiter != nil {
		c.connectWaiters = append(c.connectWaiters, waiter)
	}
	if c.State() == StateOpening {
		return
	}
	c.open()
}

func (c *Connection) open() {
	c.setState(StateOpening)
	c.session.ConnectionSerial = uint16(rand.Uint32())
	c.session.VendorID = c.opts.VendorID
	c.session.OriginatorSerial = c.opts.OriginatorSerial
	c.publish()

	params := c.network.Code()
	path := append(append([]byte(nil), c.opts.Route...), MessageRouterPath...)
	req := ForwardOpenRequest{
		Large:            c.network.Large(),
		PriorityTick:     defaultPriorityTick,
		TimeoutTicks:     defaultTimeoutTicks,
		TToOConnectionID: rand.Uint32(),
		ConnectionSerial: c.session.ConnectionSerial,
		VendorID:         c.opts.VendorID,
		OriginatorSerial: c.opts.OriginatorSerial,
		Multiplier:       c.opts.TimeoutMultiplier,
		OToTRPI:          c.opts.OToTRPI,
		OToTParameters:   params,
		TToORPI:          c.opts.TToORPI,
		TToOParameters:   params,
		Transport:        c.transport,
		Path:             path,
	}
	c.log.Verbose("Forward open: large=%v size=%d serial=0x%04X", req.Large, c.network.MaximumSize, req.ConnectionSerial)
	if err := c.lower.Send(req.Encode(), nil, false, &unconnectedContext{op: opForwardOpen}); err != nil {
		c.failOpen(&cipErrors.ConnectionError{Op: "forward open", Err: err})
	}
}

func (c *Connection) handleForwardOpen(data []byte) {
	if c.State() != StateOpening {
		c.log.Debug("Forward open reply in state %s ignored", c.State())
		return
	}
	reply, err := protocol.ParseReply(data)
	if err != nil {
		c.failOpen(&cipErrors.ConnectionError{Op: "forward open", Err: err})
		return
	}
	if reply.Status.Error {
		status := statusError(reply)
		if reply.Service == spec.ServiceLargeForwardOpen.Reply() &&
			reply.Status.Code == protocol.StatusServiceNotSupported && !c.fellBack {
			c.fellBack = true
			c.network.MaximumSize = FallbackSize
			c.log.Info("Large forward open not supported, retrying with forward open")
			c.setState(StateIdle)
			c.open()
			return
		}
		c.failOpen(&cipErrors.ConnectionError{Op: "forward open", Status: status})
		return
	}
	fo, err := ParseForwardOpenReply(reply.Data)
	if err != nil {
		c.failOpen(&cipErrors.ConnectionError{Op: "forward open", Err: err})
		return
	}
	c.session.OToTConnectionID = fo.OToTConnectionID
	c.session.TToOConnectionID = fo.TToOConnectionID
	c.session.ConnectionSerial = fo.ConnectionSerial
	c.session.OToTAPI = fo.OToTAPI
	c.session.TToOAPI = fo.TToOAPI
	c.session.Timeout = InactivityTimeout(fo.OToTAPI, fo.TToOAPI, c.opts.TimeoutMultiplier)
	c.setState(StateEstablished)
	c.log.Info("Connection established: O->T 0x%08X T->O 0x%08X timeout %s",
		fo.OToTConnectionID, fo.TToOConnectionID, c.session.Timeout)

	waiters := c.connectWaiters
	c.connectWaiters = nil
	for _, w := range waiters {
		w <- nil
	}
	c.later(c.sendNext)
}

func statusError(reply protocol.Reply) *cipErrors.ProtocolStatusError {
	var status *cipErrors.ProtocolStatusError
	cipErrors.As(reply.Err(), &status)
	return status
}

// failOpen returns to Idle and fails everyone waiting on the connection.
// Queued unconnected sends are still delivered.
func (c *Connection) failOpen(err error) {
	c.log.Error("CIP connection failed: %v", err)
	c.setState(StateIdle)
	if c.abandonOpen(err) > 0 {
		c.later(c.sendNext)
	}
}

// abandonOpen fails connect waiters and queued connected sends with err and
// returns how many unconnected sends remain queued.
func (c *Connection) abandonOpen(err error) int {
	waiters := c.connectWaiters
	c.connectWaiters = nil
	for _, w := range waiters {
		w <- err
	}
	var keep []outbound
	for _, item := range c.queue.Drain() {
		if item.connected {
			c.forwardError(item.context, err)
			continue
		}
		keep = append(keep, item)
	}
	for _, item := range keep {
		c.queue.Push(item)
	}
	return len(keep)
}

func (c *Connection) disconnect(waiter chan error) {
	switch c.State() {
	case StateIdle:
		waiter <- nil
		return
	case StateClosing:
		c.disconnectWaiters = append(c.disconnectWaiters, waiter)
		return
	}
	c.disconnectWaiters = append(c.disconnectWaiters, waiter)
	c.stopResend()
	if c.State() == StateOpening {
		c.abandonOpen(&cipErrors.ConnectionError{Op: "connect", Err: cipErrors.ErrClosed})
	}
	c.setState(StateClosing)

	c.closeGen++
	gen := c.closeGen
	c.closeTimer = time.AfterFunc(c.opts.DisconnectTimeout, func() {
		c.post(func() {
			if gen != c.closeGen || c.State() != StateClosing {
				return
			}
			c.log.Info("Forward close not answered within %s", c.opts.DisconnectTimeout)
			c.finishClose(nil)
		})
	})

	path := append(append([]byte(nil), c.opts.Route...), MessageRouterPath...)
	req := ForwardCloseRequest{
		PriorityTick:     defaultPriorityTick,
		TimeoutTicks:     defaultTimeoutTicks,
		ConnectionSerial: c.session.ConnectionSerial,
		VendorID:         c.session.VendorID,
		OriginatorSerial: c.session.OriginatorSerial,
		Path:             path,
	}
	if err := c.lower.Send(req.Encode(), nil, false, &unconnectedContext{op: opForwardClose}); err != nil {
		c.finishClose(&cipErrors.ConnectionError{Op: "forward close", Err: err})
	}
}

func (c *Connection) handleForwardClose(data []byte) {
	if c.State() != StateClosing {
		return
	}
	reply, err := protocol.ParseReply(data)
	if err != nil {
		c.finishClose(&cipErrors.ConnectionError{Op: "forward close", Err: err})
		return
	}
	if reply.Status.Error {
		c.finishClose(&cipErrors.ConnectionError{Op: "forward close", Status: statusError(reply)})
		return
	}
	if _, err := ParseForwardCloseReply(reply.Data); err != nil {
		c.log.Verbose("Forward close reply body: %v", err)
	}
	c.log.Info("Connection closed")
	c.finishClose(nil)
}

// finishClose leaves Closing for Idle and resolves disconnect waiters with err.
// Connected requests still awaiting a reply fail.
func (c *Connection) finishClose(err error) {
	c.stopResend()
	c.stopCloseTimer()
	c.clearSession()
	c.setState(StateIdle)
	c.failPending(&cipErrors.ConnectionError{Op: "forward close", Err: cipErrors.ErrClosed})
	waiters := c.disconnectWaiters
	c.disconnectWaiters = nil
	for _, w := range waiters {
		w <- err
	}
	if c.queue.Len() > 0 {
		c.later(c.sendNext)
	}
}

func (c *Connection) failPending(err error) {
	for seq, p := range c.pending {
		delete(c.pending, seq)
		c.forwardError(p.context, err)
	}
}

func (c *Connection) clearSession() {
	c.session.OToTConnectionID = 0
	c.session.TToOConnectionID = 0
	c.session.OToTAPI = 0
	c.session.TToOAPI = 0
	c.session.Timeout = 0
	c.lastDatagram = nil
}

func (c *Connection) handleUnconnected(data []byte, info *layer.Info, msgCtx any) {
	uc, ok := msgCtx.(*unconnectedContext)
	if !ok {
		c.log.Debug("Unconnected reply with foreign context %T dropped", msgCtx)
		return
	}
	switch uc.op {
	case opForwardOpen:
		c.handleForwardOpen(data)
	case opForwardClose:
		c.handleForwardClose(data)
	default:
		if uc.routed {
			if _, err := protocol.UnwrapUnconnectedSendReply(data); err != nil {
				c.forwardError(uc.context, err)
				return
			}
		}
		c.forwardData(data, info, uc.context)
	}
}

func (c *Connection) handleConnected(data []byte, info *layer.Info) {
	if c.State() != StateEstablished || info == nil {
		c.log.Debug("Connected data while %s dropped", c.State())
		return
	}
	if info.ConnectionID != c.session.TToOConnectionID {
		c.log.Info("Connected data for connection 0x%08X, expected 0x%08X; dropped", info.ConnectionID, c.session.TToOConnectionID)
		return
	}
	if len(data) < 2 {
		c.log.Debug("Connected datagram of %d bytes dropped", len(data))
		return
	}
	seq := order.Uint16(data)
	p, ok := c.pending[seq]
	if !ok {
		// Reply to a keep-alive resend.
		return
	}
	delete(c.pending, seq)
	c.forwardData(data[2:], &layer.Info{
		Connected:    true,
		ConnectionID: c.session.OToTConnectionID,
		ResponseID:   c.session.TToOConnectionID,
	}, p.context)
}

func (c *Connection) forwardData(data []byte, info *layer.Info, msgCtx any) {
	if c.upper == nil {
		c.log.Debug("No upper layer; %d bytes dropped", len(data))
		return
	}
	c.upper.HandleData(data, info, msgCtx)
}

func (c *Connection) forwardError(msgCtx any, err error) {
	if c.upper == nil || msgCtx == nil {
		return
	}
	c.upper.HandleError(msgCtx, err)
}

func (c *Connection) startResend() {
	c.stopResend()
	interval := c.session.Timeout * 3 / 4
	if interval <= 0 {
		return
	}
	gen := c.resendGen
	var fire func()
	fire = func() {
		c.post(func() {
			if gen != c.resendGen || c.State() != StateEstablished || c.lastDatagram == nil {
				return
			}
			if err := c.lower.Send(c.lastDatagram, c.sendInfo(), false, nil); err != nil {
				c.log.Verbose("Keep-alive resend failed: %v", err)
			}
			c.resendTimer = time.AfterFunc(interval, fire)
		})
	}
	c.resendTimer = time.AfterFunc(interval, fire)
}

func (c *Connection) stopResend() {
	c.resendGen++
	if c.resendTimer != nil {
		c.resendTimer.Stop()
		c.resendTimer = nil
	}
}

func (c *Connection) stopCloseTimer() {
	c.closeGen++
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
}

// teardown abandons the session and everything waiting on it.
func (c *Connection) teardown(err error) {
	c.stopResend()
	c.stopCloseTimer()
	c.clearSession()
	c.setState(StateIdle)
	for _, w := range c.connectWaiters {
		w <- err
	}
	for _, w := range c.disconnectWaiters {
		w <- err
	}
	c.connectWaiters = nil
	c.disconnectWaiters = nil
	c.failPending(err)
	for _, item := range c.queue.Drain() {
		c.forwardError(item.context, err)
	}
	c.ticks = nil
}
