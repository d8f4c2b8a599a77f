package pldm

import (
	"encoding/binary"
	"fmt"
)

// reader walks a packed little-endian record. The first short read latches
// ErrTruncated and every later read returns zero values.
type reader struct {
	b   []byte
	off int
	err error
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b)-r.off < n {
		r.err = ErrTruncated
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) remaining() int {
	return len(r.b) - r.off
}

// VersionString is a typed, length-prefixed string as carried in PLDM records.
type VersionString struct {
	Type  uint8
	Value []byte
}

func NewASCIIVersion(s string) VersionString {
	return VersionString{Type: StringTypeASCII, Value: []byte(s)}
}

func (v VersionString) String() string {
	return string(v.Value)
}

func (v VersionString) check() error {
	if len(v.Value) > 0xff {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(v.Value))
	}
	return nil
}

// completion reads the completion code of a response payload and turns a
// non-success code into a *CompletionError.
func completion(cmd Command, p []byte) (CompletionCode, error) {
	if len(p) < 1 {
		return 0, ErrTruncated
	}
	cc := CompletionCode(p[0])
	if cc != CodeSuccess {
		return cc, &CompletionError{Command: cmd, Code: cc}
	}
	return cc, nil
}

// exact checks a fixed-size response payload after its completion code.
func exact(cmd Command, p []byte, want int) error {
	if len(p) != want {
		return fmt.Errorf("%w: %s payload %d want %d", ErrInvalidLength, cmd, len(p), want)
	}
	return nil
}

func appendU16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }
func appendU32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }
func appendU64(b []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(b, v) }
