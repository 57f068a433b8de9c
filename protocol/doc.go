// Package protocol implements version 01 of the Seymour masking controller's
// RS232 command language.
//
// Every request and response is a bracketed ASCII frame: '[' followed by the
// two-character protocol version "01", a one-letter command or status code,
// optional arguments and ']'. For example:
//
//	[01S]      status query
//	[01P178]   status reply: stopped at ratio 178
//	[01M178]   move to ratio 178
//	[01OTJ]    jog the top mask outward
//
// The package provides the Command constructors and their wire encoding, a
// streaming Decoder that turns arbitrary read chunks into complete Frames, and
// parsers for the typed responses (status, positions, system info, ratio
// settings). It also defines the error taxonomy surfaced by the link and
// client layers.
package protocol
