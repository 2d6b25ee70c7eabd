// Package transport carries both tiers' APIs over HTTP/2 cleartext (h2c)
// with JSON bodies.
//
// Errors travel as {"error":"<CODE>","message":"..."} with the wire codes
// of types.ErrorCode and are rebuilt on the client with
// types.ErrorFromCode, so errors.Is works across the network. Network
// failures on the client side match types.ErrUnreachable.
package transport
