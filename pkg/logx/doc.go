// Package logx is keylock's structured logging on top of zerolog.
//
// Console output is human-readable with a short caller; the optional file
// sink is JSON. Service.Apply swaps sinks at runtime for config reloads.
package logx
