// Package codec encodes and decodes RCX containers.
//
// Layout (all multi-byte fields little-endian):
//
//	offset  size       field
//	0       4          magic "RCX\x00"
//	4       8          rule count (uint64)
//	12      5*count    rule records: opcode (1) + address (4)
//	12+5*n  remainder  heap payload, copied verbatim into the arena
//
// The rule section size is derived from the declared count, never from the
// total buffer length. Decoding is all-or-nothing: a malformed container
// returns *DecodeError and no partially populated program.
package codec
