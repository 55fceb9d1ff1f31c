package bus

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

// serial.Handler

func (self *Bus) SerialBinary(frame []byte) {
	_, p, err := packet.DecodeBinary(frame)
	if err != nil {
		self.rejectFrame("binary", frame, err)
		return
	}
	self.receive(p)
}

func (self *Bus) SerialText(line []byte) {
	_, p, err := packet.DecodeText(line)
	if err != nil {
		self.rejectFrame("text", line, err)
		return
	}
	self.receive(p)
}

// SerialAscii relays raw debug line to the UDP debug channel, never decoded.
func (self *Bus) SerialAscii(line []byte) {
	p := self.Publishers[routing.UDPDebug]
	if p == nil || !self.Config.ChannelEnabled(routing.UDPDebug) {
		return
	}
	b := make([]byte, len(line)+1)
	copy(b, line)
	b[len(line)] = '\n'
	if err := p.Enqueue(b); err != nil {
		self.log.Debugf("relay ascii err=%v", err)
	}
}

func (self *Bus) SerialEvent(sev packet.Severity, msg string) {
	self.PublishEvent(self.local, packet.SubSerial, sev, msg)
}

func (self *Bus) rejectFrame(form string, b []byte, err error) {
	sev := packet.SeverityWarning
	if errors.Cause(err) == packet.ErrUnknownAPID {
		sev = packet.SeverityError
	}
	if len(b) > 16 {
		b = b[:16]
	}
	self.PublishEvent(self.local, packet.SubSerial, sev, fmt.Sprintf("drop %s frame=%x err=%v", form, b, err))
}

// receive routes decoded counterpart packet: commands to Dispatch,
// counterpart telemetry relayed as is.
func (self *Bus) receive(p packet.Packet) {
	k := p.Kind()
	if !k.ExpectedBy(self.local) {
		self.PublishEvent(self.local, packet.SubSerial, packet.SeverityError,
			fmt.Sprintf("unexpected packet %s apid=%d", k, k.APID()))
		return
	}
	if c, ok := p.(*packet.Command); ok {
		_ = self.Dispatch(c)
		return
	}
	self.Registry.Set(p)
	if err := self.PublishPacket(k); err != nil {
		self.log.Errorf("relay %s err=%v", k, err)
	}
}
