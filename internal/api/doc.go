// Package api exposes the memory engine's public operations as a small
// REST façade: JSON in, JSON out, no business logic of its own. Every
// handler validates its request shape and otherwise delegates straight
// to internal/engine.
package api
