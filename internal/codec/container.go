package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/roach88/rcx/internal/ir"
)

// Magic is the container tag "RCX\x00" read as a little-endian uint32.
const Magic uint32 = 0x00584352

// HeaderSize is the fixed prefix: magic + rule count.
const HeaderSize = 12

// Encode serializes a program. It never fails: any program whose rules fit
// in memory has a well-formed encoding.
func Encode(p ir.Program) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(p.Rules)*ir.RuleSize+len(p.Heap))
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint64(out[4:12], uint64(len(p.Rules)))
	for _, r := range p.Rules {
		b := r.Bytes()
		out = append(out, b[:]...)
	}
	return append(out, p.Heap...)
}

// Decode parses a container. The returned program owns copies of its data;
// the input buffer may be reused by the caller.
func Decode(data []byte) (ir.Program, error) {
	if len(data) < HeaderSize {
		return ir.Program{}, &DecodeError{
			Reason: ErrShortInput,
			Offset: len(data),
			Detail: fmt.Sprintf("have %d bytes, need %d", len(data), HeaderSize),
		}
	}

	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		return ir.Program{}, &DecodeError{
			Reason: ErrBadMagic,
			Offset: 0,
			Detail: fmt.Sprintf("got 0x%08x, want 0x%08x", magic, Magic),
		}
	}

	count := binary.LittleEndian.Uint64(data[4:12])
	body := data[HeaderSize:]
	// Compare by division so a huge declared count cannot overflow
	if count > uint64(len(body))/ir.RuleSize {
		return ir.Program{}, &DecodeError{
			Reason: ErrTruncatedRules,
			Offset: 4,
			Detail: fmt.Sprintf("count %d needs %s bytes, have %d", count, ruleBytes(count), len(body)),
		}
	}

	n := int(count)
	p := ir.Program{
		Rules: make([]ir.Rule, n),
	}
	for i := 0; i < n; i++ {
		var rec [ir.RuleSize]byte
		copy(rec[:], body[i*ir.RuleSize:])
		p.Rules[i] = ir.RuleFromBytes(rec)
	}

	heap := body[n*ir.RuleSize:]
	p.Heap = make([]byte, len(heap))
	copy(p.Heap, heap)

	return p, nil
}

// ruleBytes formats count*RuleSize without overflowing.
func ruleBytes(count uint64) string {
	if count > (1<<64-1)/ir.RuleSize {
		return fmt.Sprintf("%d*%d", count, ir.RuleSize)
	}
	return fmt.Sprintf("%d", count*ir.RuleSize)
}

// Read consumes all bytes from r and decodes them. This is the byte-in
// collaborator the engine relies on: the stream is read whole before any
// decoding starts.
func Read(r io.Reader) (ir.Program, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ir.Program{}, nil, fmt.Errorf("read container: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		return ir.Program{}, data, err
	}
	return p, data, nil
}

// Write encodes p and writes it to w in one call.
func Write(w io.Writer, p ir.Program) error {
	if _, err := w.Write(Encode(p)); err != nil {
		return fmt.Errorf("write container: %w", err)
	}
	return nil
}
