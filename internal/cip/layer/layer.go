// Package layer defines how protocol layers are stacked: each layer sends
// through the one below it and receives data and errors from it.
package layer

// Info carries per-message routing information between layers.
type Info struct {
	// Connected marks a message sent or received on an established connection.
	Connected bool
	// ConnectionID is the O->T connection ID used for outbound connected data,
	// or the connection ID an inbound connected datagram was addressed to.
	ConnectionID uint32
	// ResponseID is the T->O connection ID replies are expected on.
	ResponseID uint32
}

// Upper receives what a lower layer delivers.
type Upper interface {
	// HandleData delivers a message together with the context it was sent with.
	// Context is nil for unsolicited data.
	HandleData(data []byte, info *Info, context any)
	// HandleError reports that the message sent with context failed.
	HandleError(context any, err error)
}

// Lower accepts messages from the layer above it.
type Lower interface {
	// Send queues a message. Context is handed back with the reply.
	Send(message []byte, info *Info, broadcast bool, context any) error
	// Bind registers the layer above.
	Bind(upper Upper)
}
