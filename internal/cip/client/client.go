// Package client issues CIP requests through a lower layer and decodes the
// replies of the common objects: Identity, Message Router and Port.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tturner/cipstack/internal/cip/codec"
	"github.com/tturner/cipstack/internal/cip/layer"
	"github.com/tturner/cipstack/internal/cip/object"
	"github.com/tturner/cipstack/internal/cip/protocol"
	"github.com/tturner/cipstack/internal/cip/spec"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
	"github.com/tturner/cipstack/internal/metrics"
)

// DefaultExploreMax is the highest attribute ExploreAttributes probes when no
// maximum is given.
const DefaultExploreMax = 20

// Options configure a Client.
type Options struct {
	// Connected sends the object requests over the CIP connection rather
	// than as unconnected messages.
	Connected bool
	// Metrics, when set, receives the outcome and round-trip time of every
	// request.
	Metrics *metrics.Sink
}

type result struct {
	data []byte
	err  error
}

// Client correlates requests with replies through a per-client token table.
type Client struct {
	lower     layer.Lower
	log       *logging.Logger
	connected bool
	metrics   *metrics.Sink
	calls     layer.Contexts[chan result]
}

// New creates a client above lower and binds it as lower's upper layer.
func New(lower layer.Lower, opts Options, logger *logging.Logger) *Client {
	c := &Client{lower: lower, log: logger, connected: opts.Connected, metrics: opts.Metrics}
	lower.Bind(c)
	return c
}

// HandleData resolves the request the reply belongs to. Replies for requests
// whose caller gave up are dropped.
func (c *Client) HandleData(data []byte, info *layer.Info, msgCtx any) {
	tok, ok := msgCtx.(layer.Token)
	if !ok {
		c.log.Debug("Reply without a request token dropped (%d bytes)", len(data))
		return
	}
	if ch, ok := c.calls.Take(tok); ok {
		ch <- result{data: data}
	}
}

// HandleError fails the request sent with msgCtx.
func (c *Client) HandleError(msgCtx any, err error) {
	tok, ok := msgCtx.(layer.Token)
	if !ok {
		return
	}
	if ch, ok := c.calls.Take(tok); ok {
		ch <- result{err: err}
	}
}

// Pending returns the number of requests awaiting a reply.
func (c *Client) Pending() int { return c.calls.Len() }

// Request sends one Message Router request and waits for its reply. A reply
// with a non-zero general status is returned along with a
// *errors.ProtocolStatusError.
func (c *Client) Request(ctx context.Context, connected bool, service protocol.ServiceCode, path, data []byte) (protocol.Reply, error) {
	start := time.Now()
	reply, err := c.request(ctx, connected, service, path, data)
	rtt := float64(time.Since(start).Microseconds()) / 1000
	name, target, code := spec.ServiceName(service), describePath(path), fmt.Sprintf("0x%02X", uint8(service))
	c.log.LogOperation(name, target, code, err == nil, rtt, reply.Status.Code, err)

	m := metrics.Metric{Operation: name, Target: target, ServiceCode: code, Connected: connected, Success: err == nil, Status: reply.Status.Code}
	if err == nil {
		m.RTTMs = rtt
	} else {
		m.Error = err.Error()
	}
	if werr := c.metrics.Record(m); werr != nil {
		c.log.Error("Record metric: %v", werr)
	}
	return reply, err
}

func (c *Client) request(ctx context.Context, connected bool, service protocol.ServiceCode, path, data []byte) (protocol.Reply, error) {
	msg := protocol.EncodeRequest(service, path, data)
	c.log.LogHex("Request", msg)

	ch := make(chan result, 1)
	tok := c.calls.Register(ch)
	if err := c.lower.Send(msg, &layer.Info{Connected: connected}, false, tok); err != nil {
		c.calls.Take(tok)
		return protocol.Reply{}, err
	}

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.calls.Take(tok)
		return protocol.Reply{}, ctx.Err()
	}
	if res.err != nil {
		return protocol.Reply{}, res.err
	}
	c.log.LogHex("Reply", res.data)

	reply, err := protocol.ParseReply(res.data)
	if err != nil {
		return reply, err
	}
	if reply.Service != service.Reply() {
		return reply, fmt.Errorf("reply service 0x%02X does not match request service 0x%02X", uint8(reply.Service), uint8(service))
	}
	return reply, reply.Err()
}

func describePath(path []byte) string {
	segs, err := protocol.ParsePath(path)
	if err != nil {
		return fmt.Sprintf("path % X", path)
	}
	return codec.FormatPath(segs)
}

// GetAttributesAll reads all attributes of an instance.
func (c *Client) GetAttributesAll(ctx context.Context, class, instance uint32) ([]byte, error) {
	reply, err := c.Request(ctx, c.connected, spec.ServiceGetAttributesAll, protocol.LogicalPath(class, instance), nil)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// GetAttributeSingle reads one attribute. Instance 0 addresses the class.
func (c *Client) GetAttributeSingle(ctx context.Context, class, instance, attribute uint32) ([]byte, error) {
	reply, err := c.Request(ctx, c.connected, spec.ServiceGetAttributeSingle, protocol.LogicalPath(class, instance, attribute), nil)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// Identity reads and decodes Identity instance 1.
func (c *Client) Identity(ctx context.Context) (object.IdentityInfo, error) {
	data, err := c.GetAttributesAll(ctx, uint32(spec.ClassIdentity), 1)
	if err != nil {
		return object.IdentityInfo{}, err
	}
	return object.DecodeIdentity(data)
}

// SupportedClasses reads the Message Router object list.
func (c *Client) SupportedClasses(ctx context.Context) ([]uint16, error) {
	data, err := c.GetAttributeSingle(ctx, uint32(spec.ClassMessageRouter), 1, uint32(object.RouterObjectList))
	if err != nil {
		return nil, err
	}
	classes, _, err := object.DecodeSupportedClasses(data, 0)
	return classes, err
}

// MessageRouterInstanceAttributes reads all attributes of Message Router instance 1.
func (c *Client) MessageRouterInstanceAttributes(ctx context.Context) (object.RouterInfo, error) {
	data, err := c.GetAttributesAll(ctx, uint32(spec.ClassMessageRouter), 1)
	if err != nil {
		return object.RouterInfo{}, err
	}
	return object.DecodeRouterInstance(data)
}

// AttributeData is the raw value of one attribute found by ExploreAttributes.
type AttributeData struct {
	Code uint16
	Data []byte
}

// ExploreAttributes reads attributes 1 through max of an instance one at a
// time. Attributes the target does not support are skipped. Any other error
// stops the walk and is returned with what was read so far.
func (c *Client) ExploreAttributes(ctx context.Context, class, instance uint32, max uint16) ([]AttributeData, error) {
	if max == 0 {
		max = DefaultExploreMax
	}
	var attrs []AttributeData
	for code := uint16(1); code <= max; code++ {
		data, err := c.GetAttributeSingle(ctx, class, instance, uint32(code))
		if err != nil {
			var status *cipErrors.ProtocolStatusError
			if cipErrors.As(err, &status) && status.Code == protocol.StatusAttributeNotSupported {
				continue
			}
			return attrs, err
		}
		attrs = append(attrs, AttributeData{Code: code, Data: data})
		if code == 0xFFFF {
			break
		}
	}
	return attrs, nil
}

// ReadAttribute reads one attribute and decodes it with obj's tables.
// Instance 0 reads a class attribute.
func (c *Client) ReadAttribute(ctx context.Context, obj *object.Object, instance uint32, code uint16) (object.Value, error) {
	data, err := c.GetAttributeSingle(ctx, uint32(obj.Class), instance, uint32(code))
	if err != nil {
		return object.Value{}, err
	}
	var v object.Value
	if instance == 0 {
		v, _, err = obj.DecodeClassAttribute(code, data, 0)
	} else {
		v, _, err = obj.DecodeInstanceAttribute(code, data, 0)
	}
	return v, err
}

// PortInstanceAttributesAll reads and decodes all attributes of a Port instance.
func (c *Client) PortInstanceAttributesAll(ctx context.Context, instance uint32) ([]object.Value, error) {
	data, err := c.GetAttributesAll(ctx, uint32(spec.ClassPort), instance)
	if err != nil {
		return nil, err
	}
	return object.Port.DecodeInstanceAll(data)
}

// PortClassAttribute reads and decodes a Port class attribute.
func (c *Client) PortClassAttribute(ctx context.Context, code uint16) (object.Value, error) {
	return c.ReadAttribute(ctx, object.Port, 0, code)
}
