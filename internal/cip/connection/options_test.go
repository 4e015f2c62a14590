package connection

import (
	"testing"
	"time"
)

func TestNetworkParametersCode(t *testing.T) {
	tests := []struct {
		name   string
		params NetworkParameters
		want   uint32
		large  bool
	}{
		{"default large", *DefaultOptions().Network, 0x42000FA2, true},
		{"fallback normal", NetworkParameters{Type: TypePointToPoint, SizeType: SizeVariable, MaximumSize: FallbackSize}, 0x43F4, false},
		{"normal limit", NetworkParameters{MaximumSize: MaximumNormalSize}, 0x01FF, false},
		{"large all bits", NetworkParameters{RedundantOwner: 1, Type: TypeMulticast, Priority: PriorityUrgent, SizeType: SizeVariable, MaximumSize: 0xFFFF}, 0x80000000 | 1<<29 | 3<<26 | 1<<25 | 0xFFFF, true},
		{"normal priority", NetworkParameters{Type: TypeMulticast, Priority: PriorityScheduled, MaximumSize: 64}, 1<<13 | 2<<10 | 64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Code(); got != tt.want {
				t.Errorf("Code() = 0x%08X, want 0x%08X", got, tt.want)
			}
			if tt.params.Large() != tt.large {
				t.Errorf("Large() = %v", tt.params.Large())
			}
		})
	}
}

func TestTransportCode(t *testing.T) {
	tests := []struct {
		name      string
		transport Transport
		want      uint8
		hasError  bool
	}{
		{"default", *DefaultOptions().Transport, 0xA3, false},
		{"class 1 cyclic client", Transport{Class: TransportClass1}, 0x01, false},
		{"bad class", Transport{Class: 4}, 0, true},
		{"bad trigger", Transport{Trigger: 3}, 0, true},
		{"bad direction", Transport{Direction: 2}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.transport.Code()
			if (err != nil) != tt.hasError {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("Code() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := DefaultOptions()
	if o.VendorID != 0x1339 || o.OriginatorSerial != 42 || o.TimeoutMultiplier != 1 {
		t.Errorf("defaults = %+v", o)
	}
	if o.OToTRPI != 2000000 || o.TToORPI != 2000000 || o.DisconnectTimeout != 10*time.Second {
		t.Errorf("defaults = %+v", o)
	}
	if o.Network.MaximumSize != 4002 || o.Network.Type != TypePointToPoint || o.Network.SizeType != SizeVariable {
		t.Errorf("network = %+v", *o.Network)
	}

	custom := Options{Network: &NetworkParameters{Type: TypePointToPoint}}.withDefaults()
	if custom.Network.MaximumSize != 4002 {
		t.Errorf("zero maximum size should default, got %d", custom.Network.MaximumSize)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		hasError bool
	}{
		{"zero", Options{}, false},
		{"bad transport", Options{Transport: &Transport{Class: 9}}, true},
		{"bad network type", Options{Network: &NetworkParameters{Type: 3}}, true},
		{"multiplier", Options{TimeoutMultiplier: 8}, true},
		{"odd route", Options{Route: []byte{0x01}}, true},
		{"route", Options{Route: []byte{0x01, 0x00}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); (err != nil) != tt.hasError {
				t.Errorf("Validate() = %v, hasError %v", err, tt.hasError)
			}
		})
	}
	if _, err := New(newFakeLower(nil), Options{Transport: &Transport{Trigger: 7}}, nil); err == nil {
		t.Error("New accepted an invalid transport")
	}
}

func TestInactivityTimeout(t *testing.T) {
	tests := []struct {
		oToT, tToO uint32
		multiplier uint8
		want       time.Duration
	}{
		{2000000, 2000000, 1, 16 * time.Second},
		{2000000, 500000, 0, 2 * time.Second},
		{10000, 20000, 3, 320 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := InactivityTimeout(tt.oToT, tt.tToO, tt.multiplier); got != tt.want {
			t.Errorf("InactivityTimeout(%d, %d, %d) = %s, want %s", tt.oToT, tt.tToO, tt.multiplier, got, tt.want)
		}
	}
}
