package transport

import (
	"github.com/richard-senior/poolleague/pkg/protocol"
)

// Transport defines the interface for communication methods.
// ReadRequest returns a *protocol.JsonRpcError with code ErrParse when a message
// arrived but could not be parsed; any other error ends the session.
type Transport interface {
	ReadRequest() (*protocol.JsonRpcRequest, error)
	WriteResponse(*protocol.JsonRpcResponse) error
}
