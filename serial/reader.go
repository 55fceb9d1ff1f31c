// Package serial frames the inbound byte stream of the inter-node serial link
// and provides the outbound link transport.
//
// Frame classes by first byte:
//   b&0xe8 == 0 binary (version and secondary header bits clear),
//               length from header bytes 4-5
//   '['         text, until LF
//   'O' or 'o'  keepalive, single byte then LF
//   other       raw ascii debug line, until LF
package serial

import (
	"fmt"
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/skybus/packet"
)

const MaxBuffer = packet.MaxFrame

// headerFixedBits of the first header byte are always zero on the wire.
const headerFixedBits = 0xe8

const (
	KeepaliveOK   byte = 'O'
	KeepaliveDeaf byte = 'o'
)

type State uint8

const (
	StateIdle State = iota
	StateBinary
	StateText
	StateKeepalive
	StateAscii
	StateError
)

var stateNames = [...]string{"idle", "binary", "text", "keepalive", "ascii", "error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Handler receives complete frames and link events.
// Frame slices are only valid during the call.
type Handler interface {
	SerialBinary(frame []byte)
	SerialText(line []byte)
	SerialAscii(line []byte)
	SerialEvent(severity packet.Severity, msg string)
}

// Reader is the inbound framing state machine plus link state.
// Not safe for concurrent use, except SinceRx.
type Reader struct {
	h         Handler
	state     State
	buf       []byte
	want      int
	cr        bool
	keepalive byte

	connected bool
	debug     bool
	lastRx    atomic_clock.Clock

	frames      uint16
	errors      uint16
	framesTotal uint64
	errorsTotal uint64
}

func NewReader(h Handler) *Reader {
	return &Reader{h: h, buf: make([]byte, 0, MaxBuffer)}
}

func (self *Reader) State() State    { return self.state }
func (self *Reader) Connected() bool { return self.connected }

// SetDebug enables debug-over-serial: link faults do not mark connection down.
func (self *Reader) SetDebug(on bool) { self.debug = on }
func (self *Reader) Debug() bool      { return self.debug }

// Counters since last ResetCycle.
func (self *Reader) Counters() (frames, errors uint16) { return self.frames, self.errors }
func (self *Reader) ResetCycle()                       { self.frames, self.errors = 0, 0 }
func (self *Reader) Totals() (frames, errors uint64)   { return self.framesTotal, self.errorsTotal }

// SinceRx is time since last complete frame or keepalive, zero if never.
func (self *Reader) SinceRx() time.Duration {
	if self.lastRx.IsZero() {
		return 0
	}
	return atomic_clock.Since(&self.lastRx)
}

// Expire marks connection down when nothing arrived for timeout.
func (self *Reader) Expire(timeout time.Duration) bool {
	if !self.connected || self.debug || self.lastRx.IsZero() || self.SinceRx() < timeout {
		return false
	}
	self.connected = false
	self.h.SerialEvent(packet.SeverityWarning, fmt.Sprintf("link timeout after=%v", timeout.Round(time.Millisecond)))
	return true
}

// Write feeds bytes, never fails.
func (self *Reader) Write(p []byte) (int, error) {
	for _, b := range p {
		self.Feed(b)
	}
	return len(p), nil
}

func (self *Reader) Feed(b byte) {
	switch self.state {
	case StateIdle:
		self.start(b)

	case StateBinary:
		self.buf = append(self.buf, b)
		if len(self.buf) == packet.HeaderSize {
			self.want = packet.HeaderSize + (int(self.buf[4])<<8 | int(self.buf[5])) + 1
			if self.want > MaxBuffer {
				self.want = MaxBuffer
			}
		}
		if len(self.buf) == self.want {
			self.complete(StateBinary)
		}

	case StateText, StateAscii:
		if self.cr {
			self.cr = false
			if b == '\n' {
				self.complete(self.state)
			} else {
				self.fail(packet.SeverityWarning, "carriage return without line feed", false)
			}
			return
		}
		switch b {
		case '\r':
			self.cr = true
		case '\n':
			self.complete(self.state)
		default:
			self.buf = append(self.buf, b)
			if len(self.buf) >= MaxBuffer {
				self.fail(packet.SeverityError, fmt.Sprintf("buffer overflow state=%s len=%d", self.state, len(self.buf)), true)
			}
		}

	case StateKeepalive:
		if self.cr {
			self.cr = false
			if b == '\n' {
				self.completeKeepalive()
			} else {
				self.fail(packet.SeverityWarning, "carriage return without line feed", false)
			}
			return
		}
		switch b {
		case '\n':
			self.completeKeepalive()
		case '\r':
			self.cr = true
		default:
			// line differs from pure keepalive
			self.state = StateAscii
			self.buf = append(self.buf[:0], self.keepalive, b)
		}

	case StateError:
		if b == '\n' {
			self.reset()
		}
	}
}

func (self *Reader) start(b byte) {
	self.buf = self.buf[:0]
	self.cr = false
	if b&headerFixedBits == 0 {
		self.state = StateBinary
		self.want = MaxBuffer
		self.buf = append(self.buf, b)
		return
	}
	switch b {
	case '[':
		self.state = StateText
		self.buf = append(self.buf, b)
	case KeepaliveOK, KeepaliveDeaf:
		self.state = StateKeepalive
		self.keepalive = b
	case '\n', '\r':
		// trailing framing of previous line
	default:
		self.state = StateAscii
		self.buf = append(self.buf, b)
	}
}

func (self *Reader) reset() {
	self.state = StateIdle
	self.buf = self.buf[:0]
	self.cr = false
	self.want = 0
}

func (self *Reader) fail(sev packet.Severity, msg string, markDown bool) {
	self.errors++
	self.errorsTotal++
	self.reset()
	self.state = StateError
	if markDown && !self.debug {
		self.connected = false
	}
	self.h.SerialEvent(sev, msg)
}

func (self *Reader) established() {
	self.lastRx.SetNow()
	if !self.connected {
		self.connected = true
		self.h.SerialEvent(packet.SeverityInfo, "connection established")
	}
}

func (self *Reader) complete(state State) {
	frame := self.buf
	self.reset()
	self.frames++
	self.framesTotal++
	self.established()
	switch state {
	case StateBinary:
		self.h.SerialBinary(frame)
	case StateText:
		self.h.SerialText(frame)
	case StateAscii:
		self.h.SerialAscii(frame)
	}
}

func (self *Reader) completeKeepalive() {
	ka := self.keepalive
	self.reset()
	self.lastRx.SetNow()
	switch ka {
	case KeepaliveOK:
		self.established()
	case KeepaliveDeaf:
		if self.debug {
			return
		}
		self.connected = false
		self.h.SerialEvent(packet.SeverityWarning, "counterpart not receiving")
	}
}
