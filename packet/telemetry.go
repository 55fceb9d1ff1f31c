package packet

// ChannelSlots is the number of output channels reported in housekeeping.
const ChannelSlots = 8

// Housekeeping flag bits.
const (
	FlagGps uint16 = 1 << iota
	FlagImu
	FlagBaro
	FlagCamera
	FlagRadio
	FlagSerialConnected
	FlagDebugSerial
	FlagUdp
	FlagGround
	FlagFs
	FlagSd
)

// Housekeeping is node status telemetry (tm_main, tm_cam).
// Rate and receive counters are per cycle.
type Housekeeping struct {
	node         Node
	Uptime       uint32               `json:"uptime"`
	Mode         Mode                 `json:"mode"`
	Flags        uint16               `json:"flags"`
	FreeMemKB    uint32               `json:"free_kb"`
	QueueDepth   [ChannelSlots]uint16 `json:"queue"`
	Rate         [ChannelSlots]uint16 `json:"rate"`
	DataLoss     uint8                `json:"loss"`
	SerialFrames uint16               `json:"rx_frames"`
	SerialErrors uint16               `json:"rx_errors"`
}

const housekeepingSize = 4 + 1 + 2 + 4 + ChannelSlots*2*2 + 1 + 2 + 2

func NewHousekeeping(node Node) *Housekeeping { return &Housekeeping{node: node} }

func (self *Housekeeping) Kind() Kind { return self.node.HousekeepingKind() }
func (self *Housekeeping) Node() Node { return self.node }

func (self *Housekeeping) ResetCycle() {
	self.Rate = [ChannelSlots]uint16{}
	self.SerialFrames = 0
	self.SerialErrors = 0
}

func (self *Housekeeping) MarshalBody() []byte {
	w := newBodyWriter(housekeepingSize)
	w.u32(self.Uptime)
	w.u8(uint8(self.Mode))
	w.u16(self.Flags)
	w.u32(self.FreeMemKB)
	for _, d := range self.QueueDepth {
		w.u16(d)
	}
	for _, r := range self.Rate {
		w.u16(r)
	}
	w.u8(self.DataLoss)
	w.u16(self.SerialFrames)
	w.u16(self.SerialErrors)
	return w.bytes()
}

func (self *Housekeeping) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.Mode = Mode(r.u8())
	self.Flags = r.u16()
	self.FreeMemKB = r.u32()
	for i := range self.QueueDepth {
		self.QueueDepth[i] = r.u16()
	}
	for i := range self.Rate {
		self.Rate[i] = r.u16()
	}
	self.DataLoss = r.u8()
	self.SerialFrames = r.u16()
	self.SerialErrors = r.u16()
	return r.end()
}

type Gps struct {
	Uptime  uint32  `json:"uptime"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	AltM    float32 `json:"alt"`
	SpeedMS float32 `json:"speed"`
	Sats    uint8   `json:"sats"`
	Fix     uint8   `json:"fix"`
	Current bool    `json:"current"`
}

func (*Gps) Kind() Kind { return TmGps }
func (self *Gps) ResetCycle() { self.Current = false }
func (self *Gps) MarshalBody() []byte {
	w := newBodyWriter(31)
	w.u32(self.Uptime)
	w.f64(self.Lat)
	w.f64(self.Lon)
	w.f32(self.AltM)
	w.f32(self.SpeedMS)
	w.u8(self.Sats)
	w.u8(self.Fix)
	w.bool(self.Current)
	return w.bytes()
}
func (self *Gps) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.Lat = r.f64()
	self.Lon = r.f64()
	self.AltM = r.f32()
	self.SpeedMS = r.f32()
	self.Sats = r.u8()
	self.Fix = r.u8()
	self.Current = r.bool()
	return r.end()
}

type Imu struct {
	Uptime  uint32     `json:"uptime"`
	Accel   [3]float32 `json:"accel"`
	Gyro    [3]float32 `json:"gyro"`
	Mag     [3]float32 `json:"mag"`
	TempC   float32    `json:"temp"`
	Current bool       `json:"current"`
}

func (*Imu) Kind() Kind { return TmImu }
func (self *Imu) ResetCycle() { self.Current = false }
func (self *Imu) MarshalBody() []byte {
	w := newBodyWriter(45)
	w.u32(self.Uptime)
	for _, vec := range [][3]float32{self.Accel, self.Gyro, self.Mag} {
		for _, x := range vec {
			w.f32(x)
		}
	}
	w.f32(self.TempC)
	w.bool(self.Current)
	return w.bytes()
}
func (self *Imu) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	for _, vec := range []*[3]float32{&self.Accel, &self.Gyro, &self.Mag} {
		for i := range vec {
			vec[i] = r.f32()
		}
	}
	self.TempC = r.f32()
	self.Current = r.bool()
	return r.end()
}

type Baro struct {
	Uptime     uint32  `json:"uptime"`
	PressurePa float32 `json:"pressure"`
	TempC      float32 `json:"temp"`
	AltM       float32 `json:"alt"`
	Current    bool    `json:"current"`
}

func (*Baro) Kind() Kind { return TmBaro }
func (self *Baro) ResetCycle() { self.Current = false }
func (self *Baro) MarshalBody() []byte {
	w := newBodyWriter(17)
	w.u32(self.Uptime)
	w.f32(self.PressurePa)
	w.f32(self.TempC)
	w.f32(self.AltM)
	w.bool(self.Current)
	return w.bytes()
}
func (self *Baro) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.PressurePa = r.f32()
	self.TempC = r.f32()
	self.AltM = r.f32()
	self.Current = r.bool()
	return r.end()
}

// Radio is the fixed size summary sent over the low rate radio.
type Radio struct {
	Uptime   uint32  `json:"uptime"`
	Lat      float32 `json:"lat"`
	Lon      float32 `json:"lon"`
	AltM     float32 `json:"alt"`
	BaroAltM float32 `json:"baro_alt"`
	Mode     Mode    `json:"mode"`
	Sats     uint8   `json:"sats"`
	Flags    uint8   `json:"flags"`
}

const RadioBodySize = 4 + 4*4 + 3

func (*Radio) Kind() Kind { return TmRadio }
func (*Radio) ResetCycle() {}
func (self *Radio) MarshalBody() []byte {
	w := newBodyWriter(RadioBodySize)
	w.u32(self.Uptime)
	w.f32(self.Lat)
	w.f32(self.Lon)
	w.f32(self.AltM)
	w.f32(self.BaroAltM)
	w.u8(uint8(self.Mode))
	w.u8(self.Sats)
	w.u8(self.Flags)
	return w.bytes()
}
func (self *Radio) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.Lat = r.f32()
	self.Lon = r.f32()
	self.AltM = r.f32()
	self.BaroAltM = r.f32()
	self.Mode = Mode(r.u8())
	self.Sats = r.u8()
	self.Flags = r.u8()
	return r.end()
}

// Camera is the one-off event for a stored image.
type Camera struct {
	Uptime    uint32 `json:"uptime"`
	Index     uint32 `json:"index"`
	SizeBytes uint32 `json:"size"`
	Filename  string `json:"file"`
}

func (*Camera) Kind() Kind { return TmCamera }
func (*Camera) ResetCycle() {}
func (self *Camera) MarshalBody() []byte {
	w := newBodyWriter(12 + len(self.Filename) + 1)
	w.u32(self.Uptime)
	w.u32(self.Index)
	w.u32(self.SizeBytes)
	w.str(self.Filename)
	return w.bytes()
}
func (self *Camera) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.Index = r.u32()
	self.SizeBytes = r.u32()
	self.Filename = r.str()
	return r.end()
}

// Timer is the one-off event of a fired mission timer.
type Timer struct {
	Uptime   uint32 `json:"uptime"`
	TimerID  uint8  `json:"timer"`
	Fired    uint32 `json:"fired"`
	PeriodMS uint32 `json:"period_ms"`
}

func (*Timer) Kind() Kind { return TmTimer }
func (*Timer) ResetCycle() {}
func (self *Timer) MarshalBody() []byte {
	w := newBodyWriter(13)
	w.u32(self.Uptime)
	w.u8(self.TimerID)
	w.u32(self.Fired)
	w.u32(self.PeriodMS)
	return w.bytes()
}
func (self *Timer) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.TimerID = r.u8()
	self.Fired = r.u32()
	self.PeriodMS = r.u32()
	return r.end()
}
