package connection

import (
	"fmt"
	"time"
)

// Network connection types (CIP Vol 1, 3-5.4.1.1).
const (
	TypeNull         uint8 = 0
	TypeMulticast    uint8 = 1
	TypePointToPoint uint8 = 2
)

// Network connection priorities.
const (
	PriorityLow       uint8 = 0
	PriorityHigh      uint8 = 1
	PriorityScheduled uint8 = 2
	PriorityUrgent    uint8 = 3
)

// Connection size types.
const (
	SizeFixed    uint8 = 0
	SizeVariable uint8 = 1
)

// Transport classes, production triggers and directions for the transport
// class/trigger byte.
const (
	TransportClass0 uint8 = 0
	TransportClass1 uint8 = 1
	TransportClass2 uint8 = 2
	TransportClass3 uint8 = 3

	TriggerCyclic            uint8 = 0
	TriggerChangeOfState     uint8 = 1
	TriggerApplicationObject uint8 = 2

	DirectionClient uint8 = 0
	DirectionServer uint8 = 1
)

const (
	// MaximumNormalSize is the largest connection size a 16-bit parameter word carries.
	MaximumNormalSize = 0x1FF
	// MaximumLargeSize is the largest connection size a 32-bit parameter word carries.
	MaximumLargeSize = 0xFFFF
	// FallbackSize is used after a device rejects Large Forward Open.
	FallbackSize = 500

	defaultVendorID         = 0x1339
	defaultOriginatorSerial = 42
	defaultMultiplier       = 1
	defaultRPI              = 2000000
	defaultMaximumSize      = 4002
	defaultDisconnectWait   = 10 * time.Second

	// Priority/time tick and timeout ticks for Connection Manager requests:
	// 2^10 ms ticks, 14 ticks.
	defaultPriorityTick = 0x0A
	defaultTimeoutTicks = 0x0E
)

// NetworkParameters describe one direction of the connection.
type NetworkParameters struct {
	RedundantOwner uint8
	Type           uint8
	Priority       uint8
	SizeType       uint8
	MaximumSize    uint16
}

// Large reports whether the parameters need the 32-bit encoding.
func (p NetworkParameters) Large() bool { return p.MaximumSize > MaximumNormalSize }

// Code packs the parameters into the 16-bit (normal) or 32-bit (large) field.
func (p NetworkParameters) Code() uint32 {
	var code uint32
	if p.Large() {
		code |= uint32(p.RedundantOwner&1) << 31
		code |= uint32(p.Type&3) << 29
		code |= uint32(p.Priority&3) << 26
		code |= uint32(p.SizeType&1) << 25
		code |= uint32(p.MaximumSize) & MaximumLargeSize
		return code
	}
	code |= uint32(p.RedundantOwner&1) << 15
	code |= uint32(p.Type&3) << 13
	code |= uint32(p.Priority&3) << 10
	code |= uint32(p.SizeType&1) << 9
	code |= uint32(p.MaximumSize) & MaximumNormalSize
	return code
}

// Transport is the transport class/trigger of the connection.
type Transport struct {
	Class     uint8
	Trigger   uint8
	Direction uint8
}

// Code packs the transport into its byte form.
func (t Transport) Code() (uint8, error) {
	if t.Class > TransportClass3 {
		return 0, fmt.Errorf("invalid transport class %d", t.Class)
	}
	if t.Trigger > TriggerApplicationObject {
		return 0, fmt.Errorf("invalid transport production trigger %d", t.Trigger)
	}
	if t.Direction > DirectionServer {
		return 0, fmt.Errorf("invalid transport direction %d", t.Direction)
	}
	return t.Direction<<7 | t.Trigger<<4 | t.Class, nil
}

// Options configure a Connection. Zero fields take their defaults.
type Options struct {
	Network           *NetworkParameters
	Transport         *Transport
	VendorID          uint16
	OriginatorSerial  uint32
	TimeoutMultiplier uint8
	OToTRPI           uint32 // microseconds
	TToORPI           uint32 // microseconds
	// Route is a padded port-segment EPATH to the target. It is prefixed to
	// the Forward Open connection path and unconnected requests are carried
	// in Unconnected Send along it.
	Route []byte
	// DisconnectTimeout bounds how long Disconnect waits for a Forward Close reply.
	DisconnectTimeout time.Duration
}

// DefaultOptions returns the options a zero Options resolves to.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	network := NetworkParameters{
		Type:        TypePointToPoint,
		Priority:    PriorityLow,
		SizeType:    SizeVariable,
		MaximumSize: defaultMaximumSize,
	}
	if o.Network != nil {
		network = *o.Network
		if network.MaximumSize == 0 {
			network.MaximumSize = defaultMaximumSize
		}
	}
	o.Network = &network

	transport := Transport{Class: TransportClass3, Trigger: TriggerApplicationObject, Direction: DirectionServer}
	if o.Transport != nil {
		transport = *o.Transport
	}
	o.Transport = &transport

	if o.VendorID == 0 {
		o.VendorID = defaultVendorID
	}
	if o.OriginatorSerial == 0 {
		o.OriginatorSerial = defaultOriginatorSerial
	}
	if o.TimeoutMultiplier == 0 {
		o.TimeoutMultiplier = defaultMultiplier
	}
	if o.OToTRPI == 0 {
		o.OToTRPI = defaultRPI
	}
	if o.TToORPI == 0 {
		o.TToORPI = defaultRPI
	}
	if o.DisconnectTimeout == 0 {
		o.DisconnectTimeout = defaultDisconnectWait
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if _, err := o.Transport.Code(); err != nil {
		return err
	}
	if o.Network.Type > TypePointToPoint {
		return fmt.Errorf("invalid network connection type %d", o.Network.Type)
	}
	if o.TimeoutMultiplier > 7 {
		return fmt.Errorf("timeout multiplier %d out of range 0-7", o.TimeoutMultiplier)
	}
	if len(o.Route)%2 != 0 {
		return fmt.Errorf("route must be a padded EPATH, got %d bytes", len(o.Route))
	}
	return nil
}

// InactivityTimeout is 4 x the smaller actual packet interval x 2^multiplier.
func InactivityTimeout(oToTAPI, tToOAPI uint32, multiplier uint8) time.Duration {
	api := oToTAPI
	if tToOAPI < api {
		api = tToOAPI
	}
	return time.Duration(4*uint64(api)<<multiplier) * time.Microsecond
}
