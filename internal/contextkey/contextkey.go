// Package contextkey centralizes the context.Context keys shared across
// middleware and handlers, avoiding collisions between unrelated packages.
package contextkey

type key int

const (
	ContextKeyRequestID key = iota
)
