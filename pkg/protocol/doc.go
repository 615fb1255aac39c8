// Package protocol implements the framed radar protocol.
package protocol

// The protocol is spoken on two kinds of serial lines:
//
// The host line carries requests from a host (master) to the radar and
// the radar's replies. The sensor line carries requests from the radar
// to the distance sensor and the sensor's replies.
//
// Every frame starts with a two-byte header (frame type + type code),
// followed by a big-endian 16-bit device address, an opcode and an
// opcode-specific body. The last two bytes are the big-endian low 16 bits
// of the additive sum of all preceding bytes.
//
// There is no sequence number. A request is correlated with its response
// only by timing, so at most one request may be outstanding on a line.
