package packet

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/juju/errors"
)

// bodyWriter appends fields in declaration order, no padding.
type bodyWriter struct {
	b []byte
}

func newBodyWriter(size int) *bodyWriter { return &bodyWriter{b: make([]byte, 0, size)} }

func (self *bodyWriter) u8(v uint8) { self.b = append(self.b, v) }
func (self *bodyWriter) bool(v bool) {
	if v {
		self.u8(1)
	} else {
		self.u8(0)
	}
}
func (self *bodyWriter) u16(v uint16) {
	self.b = append(self.b, byte(v), byte(v>>8))
}
func (self *bodyWriter) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	self.b = append(self.b, tmp[:]...)
}
func (self *bodyWriter) f32(v float32) { self.u32(math.Float32bits(v)) }
func (self *bodyWriter) f64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	self.b = append(self.b, tmp[:]...)
}

// str writes bounded string and terminator.
func (self *bodyWriter) str(s string) {
	s = BoundString(s)
	self.b = append(self.b, s...)
	self.b = append(self.b, 0)
}

func (self *bodyWriter) bytes() []byte { return self.b }

// BoundString cuts at first NUL and at MaxString bytes.
func BoundString(s string) string {
	if i := bytes.IndexByte([]byte(s), 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > MaxString {
		s = s[:MaxString]
	}
	return s
}

// bodyReader is sticky on first error, check err once at the end.
type bodyReader struct {
	b   []byte
	off int
	err error
}

func newBodyReader(b []byte) *bodyReader { return &bodyReader{b: b} }

func (self *bodyReader) take(n int) []byte {
	if self.err != nil {
		return nil
	}
	if self.off+n > len(self.b) {
		self.err = errors.Annotatef(ErrBodyLength, "need=%d at=%d len=%d", n, self.off, len(self.b))
		return nil
	}
	x := self.b[self.off : self.off+n]
	self.off += n
	return x
}

func (self *bodyReader) u8() uint8 {
	if x := self.take(1); x != nil {
		return x[0]
	}
	return 0
}
func (self *bodyReader) bool() bool { return self.u8() != 0 }
func (self *bodyReader) u16() uint16 {
	if x := self.take(2); x != nil {
		return binary.LittleEndian.Uint16(x)
	}
	return 0
}
func (self *bodyReader) u32() uint32 {
	if x := self.take(4); x != nil {
		return binary.LittleEndian.Uint32(x)
	}
	return 0
}
func (self *bodyReader) f32() float32 { return math.Float32frombits(self.u32()) }
func (self *bodyReader) f64() float64 {
	if x := self.take(8); x != nil {
		return math.Float64frombits(binary.LittleEndian.Uint64(x))
	}
	return 0
}

// str reads the terminated string, which must end the body exactly.
func (self *bodyReader) str() string {
	if self.err != nil {
		return ""
	}
	rest := self.b[self.off:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		self.err = errors.Annotatef(ErrBodyLength, "string not terminated at=%d", self.off)
		return ""
	}
	if i > MaxString {
		self.err = errors.NotValidf("string length=%d > max=%d", i, MaxString)
		return ""
	}
	self.off += i + 1
	return string(rest[:i])
}

// end verifies whole body was consumed.
func (self *bodyReader) end() error {
	if self.err == nil && self.off != len(self.b) {
		self.err = errors.Annotatef(ErrBodyLength, "consumed=%d len=%d", self.off, len(self.b))
	}
	return self.err
}
