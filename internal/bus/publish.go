package bus

import (
	"github.com/juju/errors"
	"github.com/temoto/skybus/channel"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

// Radio summary flag bits.
const (
	RadioFlagGpsFix uint8 = 1 << iota
	RadioFlagSerialConnected
	RadioFlagDataLoss
)

// PublishPacket refreshes live packet of kind k, encodes it once and enqueues
// the frame on every enabled channel routing k, in routing.FanOut order.
// Per-cycle fields are reset afterwards.
func (self *Bus) PublishPacket(k packet.Kind) error {
	if !k.Valid() {
		return errors.Annotatef(packet.ErrUnknownPacket, "kind=%d", uint8(k))
	}
	self.refresh(k)
	frames, err := self.Registry.Encode(k)
	if err != nil {
		return errors.Annotatef(err, "publish %s", k)
	}
	for _, ch := range routing.FanOut {
		p := self.Publishers[ch]
		if p == nil || !self.Config.ChannelEnabled(ch) || !self.Tables.IsRouted(ch, k) {
			continue
		}
		// radio link budget fits only the summary
		if ch == routing.Radio && k != packet.TmRadio {
			continue
		}
		frame := frames.Binary
		if self.Config.ChannelText(ch) {
			frame = frames.Text
		}
		if err := p.Enqueue(frame); err != nil && err != channel.ErrNotConnected {
			self.log.Debugf("publish %s channel=%s err=%v", k, ch, err)
		}
	}
	self.resetCycle(k)
	return nil
}

// PublishEvent fills Status packet of node and publishes it.
// Every event is logged at level matching severity.
func (self *Bus) PublishEvent(node packet.Node, sub packet.Subsystem, sev packet.Severity, msg string) {
	st := self.Registry.Status(node)
	st.Uptime = self.Uptime()
	st.Severity = sev
	st.Subsystem = sub
	st.Message = packet.BoundString(msg)
	switch sev {
	case packet.SeverityError:
		self.log.Errorf("event %s", st)
	case packet.SeverityWarning, packet.SeverityCmdFail:
		self.log.Warningf("event %s", st)
	default:
		self.log.Infof("event %s", st)
	}
	if err := self.PublishPacket(st.Kind()); err != nil {
		self.log.Errorf("event %s err=%v", st, err)
	}
}

// PublishCommand fills Command packet addressed to target and publishes it.
func (self *Bus) PublishCommand(target packet.Node, op packet.Opcode, params packet.Params) error {
	c := self.Registry.Command(target)
	c.Opcode = op
	c.Params = append(packet.Params(nil), params...)
	return self.PublishPacket(c.Kind())
}

// refresh brings locally produced packet up to date before encoding.
func (self *Bus) refresh(k packet.Kind) {
	if k.IsCommand() || k.Owner() != self.local {
		return
	}
	p := self.Registry.Get(k)
	if s := self.samplers[k]; s != nil {
		s(self.Uptime(), p)
		return
	}
	switch k {
	case self.local.HousekeepingKind():
		self.fillHousekeeping(p.(*packet.Housekeeping))
	case packet.TmRadio:
		self.fillRadio(p.(*packet.Radio))
	}
}

func (self *Bus) resetCycle(k packet.Kind) {
	self.Registry.Get(k).ResetCycle()
	if k == self.local.HousekeepingKind() {
		for _, p := range self.Publishers {
			if p != nil {
				p.ResetRate()
			}
		}
		self.Reader.ResetCycle()
	}
}

func clampU16(n int) uint16 {
	if n > 0xffff {
		return 0xffff
	}
	return uint16(n)
}

func (self *Bus) fillHousekeeping(hk *packet.Housekeeping) {
	c := self.Config
	hk.Uptime = self.Uptime()
	hk.Mode = self.Mode
	hk.Flags = 0
	for _, f := range []struct {
		on  bool
		bit uint16
	}{
		{c.Sensors.Gps, packet.FlagGps},
		{c.Sensors.Imu, packet.FlagImu},
		{c.Sensors.Baro, packet.FlagBaro},
		{c.Sensors.Camera, packet.FlagCamera},
		{c.Radio.Enable, packet.FlagRadio},
		{self.Reader.Connected(), packet.FlagSerialConnected},
		{self.Reader.Debug(), packet.FlagDebugSerial},
		{c.UDP.Enable, packet.FlagUdp},
		{c.Ground.Enable, packet.FlagGround},
		{c.FS.Enable, packet.FlagFs},
		{c.SD.Enable, packet.FlagSd},
	} {
		if f.on {
			hk.Flags |= f.bit
		}
	}
	hk.FreeMemKB = 0
	if self.opt.MemoryProbe != nil {
		hk.FreeMemKB = uint32(self.opt.MemoryProbe() >> 10)
	}
	hk.DataLoss = 0
	for ch, p := range self.Publishers {
		if p == nil {
			hk.QueueDepth[ch], hk.Rate[ch] = 0, 0
			continue
		}
		hk.QueueDepth[ch] = clampU16(p.Depth())
		hk.Rate[ch] = p.Rate()
		if p.DataLoss() {
			hk.DataLoss |= 1 << uint(ch)
		}
	}
	hk.SerialFrames, hk.SerialErrors = self.Reader.Counters()
}

func (self *Bus) fillRadio(r *packet.Radio) {
	gps := self.Registry.Get(packet.TmGps).(*packet.Gps)
	baro := self.Registry.Get(packet.TmBaro).(*packet.Baro)
	r.Uptime = self.Uptime()
	r.Lat = float32(gps.Lat)
	r.Lon = float32(gps.Lon)
	r.AltM = gps.AltM
	r.BaroAltM = baro.AltM
	r.Mode = self.Mode
	r.Sats = gps.Sats
	r.Flags = 0
	if gps.Fix != 0 {
		r.Flags |= RadioFlagGpsFix
	}
	if self.Reader.Connected() {
		r.Flags |= RadioFlagSerialConnected
	}
	for _, p := range self.Publishers {
		if p != nil && p.DataLoss() {
			r.Flags |= RadioFlagDataLoss
			break
		}
	}
}

// ResetDataLoss clears the sticky data loss flag of every channel.
func (self *Bus) ResetDataLoss() {
	for _, p := range self.Publishers {
		if p != nil {
			p.ResetDataLoss()
		}
	}
}
