package packet

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackets() []Packet {
	st := NewStatus(NodeCam)
	st.Uptime = 123456
	st.Severity = SeverityWarning
	st.Subsystem = SubCamera
	st.Message = "sd card slow write=840ms"
	hk := NewHousekeeping(NodeMain)
	hk.Uptime = 99000
	hk.Mode = ModeArmed
	hk.Flags = FlagGps | FlagBaro | FlagSerialConnected
	hk.FreeMemKB = 172
	hk.QueueDepth = [ChannelSlots]uint16{1, 0, 14, 0, 3, 3, 0, 0}
	hk.Rate = [ChannelSlots]uint16{9, 9, 5, 1, 9, 9, 0, 0}
	hk.DataLoss = 0x04
	hk.SerialFrames = 31
	hk.SerialErrors = 2
	cmd := NewCommand(NodeCam)
	cmd.Opcode = OpSetRouting
	cmd.Params = Params{{"table", "serial"}, {"load", "all"}, {"tm_gps", "0"}}
	return []Packet{
		NewStatus(NodeMain),
		st,
		hk,
		NewHousekeeping(NodeCam),
		&Gps{Uptime: 5000, Lat: 55.751244, Lon: 37.618423, AltM: 181.5, SpeedMS: 3.25, Sats: 9, Fix: 3, Current: true},
		&Imu{Uptime: 5001, Accel: [3]float32{0.01, -0.02, 9.81}, Gyro: [3]float32{0.5, 0, -0.25}, Mag: [3]float32{21.5, -3, 40}, TempC: 31.5, Current: true},
		&Baro{Uptime: 5002, PressurePa: 101325, TempC: 24.75, AltM: 120.5, Current: false},
		&Radio{Uptime: 5003, Lat: 55.75, Lon: 37.625, AltM: 181.5, BaroAltM: 120.5, Mode: ModeFlight, Sats: 9, Flags: 0x0f},
		&Camera{Uptime: 6000, Index: 17, SizeBytes: 182044, Filename: "/sd/img/00017.jpg"},
		&Timer{Uptime: 7000, TimerID: 2, Fired: 40, PeriodMS: 250},
		NewCommand(NodeMain),
		cmd,
	}
}

func TestSampleCoversAllKinds(t *testing.T) {
	t.Parallel()
	seen := map[Kind]bool{}
	for _, p := range samplePackets() {
		seen[p.Kind()] = true
	}
	assert.Len(t, seen, KindCount)
}

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	for _, p := range samplePackets() {
		p := p
		t.Run(p.Kind().String(), func(t *testing.T) {
			t.Parallel()
			frame, err := EncodeBinary(4242, p)
			require.NoError(t, err)
			h, decoded, err := DecodeBinary(frame)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
			assert.Equal(t, p.Kind().APID(), h.APID)
			assert.Equal(t, uint16(4242), h.Seq)
			// length field invariant
			assert.Equal(t, len(frame)-HeaderSize, int(h.Length)+1)
			assert.Equal(t, len(p.MarshalBody()), h.BodyLen())
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	t.Parallel()
	for _, p := range samplePackets() {
		p := p
		t.Run(p.Kind().String(), func(t *testing.T) {
			t.Parallel()
			line, err := EncodeText(77, p)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(string(line), `["`+p.Kind().String()+`",77,{`), string(line))
			require.Equal(t, byte('\n'), line[len(line)-1])
			seq, decoded, err := DecodeText(line)
			require.NoError(t, err)
			assert.Equal(t, uint16(77), seq)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestTextFixedKeys(t *testing.T) {
	t.Parallel()
	st := NewStatus(NodeMain)
	st.Uptime = 10
	st.Severity = SeverityCmdResp
	st.Subsystem = SubCmd
	st.Message = "ok"
	line, err := EncodeText(3, st)
	require.NoError(t, err)
	assert.Equal(t, `["status_main",3,{"uptime":10,"severity":"cmd_resp","subsystem":"cmd","msg":"ok"}]`+"\n", string(line))

	cmd := NewCommand(NodeCam)
	cmd.Opcode = OpSetOpsMode
	cmd.Params = Params{{"mode", "ready"}}
	line, err = EncodeText(0, cmd)
	require.NoError(t, err)
	assert.Equal(t, `["cmd_cam",0,{"op":"set_opsmode","params":"mode:ready"}]`+"\n", string(line))
}

func TestHeaderBits(t *testing.T) {
	t.Parallel()
	type Case struct {
		name   string
		header Header
		expect string
	}
	cases := []Case{
		{"tm_main", Header{Type: 0, APID: TmMain.APID(), Seq: 0x1234, Length: 9}, "002cd2340009"},
		{"cmd_cam", Header{Type: 1, APID: CmdCam.APID(), Seq: 1, Length: 0x0102}, "1035c0010102"},
		{"apid-high-bits", Header{Type: 0, APID: 0x7ff, Seq: 0x3fff, Length: 0xffff}, "07ffffffffff"},
		{"seq-masked-14bit", Header{Type: 0, APID: 42, Seq: 0x3fff, Length: 0}, "002affff0000"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var b [HeaderSize]byte
			EncodeHeader(c.header, b[:])
			assert.Equal(t, c.expect, hex.EncodeToString(b[:]))
			h, err := DecodeHeader(b[:])
			require.NoError(t, err)
			assert.Equal(t, c.header, h)
		})
	}
}

func TestDecodeBinaryErrors(t *testing.T) {
	t.Parallel()
	type Case struct {
		name   string
		input  string
		expect error
	}
	cases := []Case{
		{"short", "002cc000", ErrFrameShort},
		{"apid-below", "0029c0000000aa", ErrUnknownAPID},
		{"apid-above", "0036c0000000aa", ErrUnknownAPID},
		{"length-mismatch", "0031c0000003" + "aabb", ErrFrameLength},
		{"body-too-short-for-kind", "0033c0000001" + "aabb", ErrBodyLength},
		{"status-unterminated", "002ac0000005" + "000000000102", ErrBodyLength},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			input, err := hex.DecodeString(c.input)
			require.NoError(t, err)
			_, p, err := DecodeBinary(input)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Equal(t, c.expect, errors.Cause(err), err.Error())
		})
	}
}

func TestDecodeBinaryTypeMismatch(t *testing.T) {
	t.Parallel()
	frame, err := EncodeBinary(0, &Timer{})
	require.NoError(t, err)
	frame[0] |= 0x10
	_, _, err = DecodeBinary(frame)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

func TestDecodeTextErrors(t *testing.T) {
	t.Parallel()
	type Case struct {
		name  string
		input string
		cause error
	}
	cases := []Case{
		{"empty", "", ErrNotText},
		{"ascii", "hello\n", ErrNotText},
		{"unknown-name", `["tm_nope",1,{}]`, ErrUnknownPacket},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := DecodeText([]byte(c.input))
			require.Error(t, err)
			assert.Equal(t, c.cause, errors.Cause(err))
		})
	}
	for _, input := range []string{`[`, `["tm_gps",1]`, `["tm_gps",-1,{}]`, `["status_main",1,{"severity":"loud"}]`} {
		_, _, err := DecodeText([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestStringBound(t *testing.T) {
	t.Parallel()
	st := NewStatus(NodeMain)
	st.Message = strings.Repeat("x", 300)
	body := st.MarshalBody()
	assert.Len(t, body, statusPrefix+MaxString+1)
	decoded := NewStatus(NodeMain)
	require.NoError(t, decoded.UnmarshalBody(body))
	assert.Equal(t, strings.Repeat("x", MaxString), decoded.Message)

	assert.Equal(t, "ab", BoundString("ab\x00cd"))
	cam := &Camera{Filename: "a"}
	assert.Len(t, cam.MarshalBody(), 12+1+1)
}

func TestRegistrySequence(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	f1, err := r.Encode(TmGps)
	require.NoError(t, err)
	f2, err := r.Encode(TmGps)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), f1.Seq)
	assert.Equal(t, uint16(1), f2.Seq)
	assert.Equal(t, uint16(0), r.Seq(TmBaro), "counters are per kind")

	h, _, err := DecodeBinary(f2.Binary)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), h.Seq)
	seq, _, err := DecodeText(f2.Text)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), seq)

	r.seq[TmGps] = 0xffff
	f3, err := r.Encode(TmGps)
	require.NoError(t, err)
	f4, err := r.Encode(TmGps)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), f3.Seq)
	assert.Equal(t, uint16(0), f4.Seq)
	h, _, err = DecodeBinary(f3.Binary)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3fff), h.Seq)
}

func TestRegistryEncodeErrorKeepsCounter(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Encode(Kind(KindCount))
	assert.Equal(t, ErrUnknownPacket, errors.Cause(err))
	r.Command(NodeCam).Params = Params{{Key: strings.Repeat("k", MaxString)}}
	_, err = r.Encode(CmdCam)
	assert.Equal(t, ErrFrameLength, errors.Cause(err))
	assert.Equal(t, uint16(0), r.Seq(CmdCam))
}

func TestTextFitsFrame(t *testing.T) {
	t.Parallel()
	type Case struct {
		name string
		msg  string
	}
	cases := []Case{
		{"plain", strings.Repeat("m", MaxString)},
		{"escaped", strings.Repeat("\x01", MaxString)},
		{"multibyte", strings.Repeat("ж", MaxString/2)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			st := NewStatus(NodeCam)
			st.Uptime = math.MaxUint32
			st.Severity = SeverityCmdResp
			st.Subsystem = SubStorage
			st.Message = c.msg
			line, err := EncodeText(0xffff, st)
			require.NoError(t, err)
			assert.True(t, len(line) <= MaxFrame, "len=%d", len(line))
			_, p, err := DecodeText(line)
			require.NoError(t, err)
			got := p.(*Status).Message
			assert.NotEmpty(t, got)
			assert.True(t, strings.HasPrefix(c.msg, got))
			assert.Equal(t, c.msg, st.Message, "live packet untouched")
		})
	}
}

func TestTextNonFinite(t *testing.T) {
	t.Parallel()
	gps := &Gps{Lat: math.NaN(), Lon: 37.5, AltM: float32(math.Inf(1)), Sats: 3}
	line, err := EncodeText(1, gps)
	require.NoError(t, err)
	_, p, err := DecodeText(line)
	require.NoError(t, err)
	got := p.(*Gps)
	assert.Equal(t, float64(0), got.Lat)
	assert.Equal(t, float32(0), got.AltM)
	assert.Equal(t, 37.5, got.Lon)
	assert.Equal(t, uint8(3), got.Sats)
	assert.True(t, math.IsNaN(gps.Lat), "live packet untouched")

	imu := &Imu{Accel: [3]float32{1, float32(math.NaN()), 2}}
	line, err = EncodeText(1, imu)
	require.NoError(t, err)
	_, p, err = DecodeText(line)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 0, 2}, p.(*Imu).Accel)

	r := NewRegistry()
	r.Get(TmGps).(*Gps).Lat = math.NaN()
	frames, err := r.Encode(TmGps)
	require.NoError(t, err)
	_, bin, err := DecodeBinary(frames.Binary)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(bin.(*Gps).Lat), "binary form keeps NaN")
}

func TestTextUnknownOpcode(t *testing.T) {
	t.Parallel()
	_, p, err := DecodeText([]byte(`["cmd_cam",4,{"op":"selfdestruct","params":"now:1"}]`))
	require.NoError(t, err)
	c := p.(*Command)
	assert.Equal(t, OpUnknown, c.Opcode)
	assert.False(t, c.Opcode.Valid())
	assert.Equal(t, Params{{"now", "1"}}, c.Params)
}

func TestKindLookup(t *testing.T) {
	t.Parallel()
	for _, k := range AllKinds() {
		byName, err := KindByName(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, byName)
		byAPID, err := KindByAPID(k.APID())
		require.NoError(t, err)
		assert.Equal(t, k, byAPID)
		assert.Equal(t, uint16(k.PID())+42, k.APID())
	}
	assert.True(t, TmCam.ExpectedBy(NodeMain))
	assert.False(t, TmGps.ExpectedBy(NodeMain))
	assert.True(t, CmdMain.ExpectedBy(NodeMain))
	assert.True(t, TmGps.ExpectedBy(NodeCam))
	assert.Equal(t, CmdCam, NodeMain.Counterpart().CommandKind())
}

func TestParams(t *testing.T) {
	t.Parallel()
	ps := ParseParams(" gps:1 ,imu:0,,flag,rate_tm_gps:500")
	assert.Equal(t, Params{{"gps", "1"}, {"imu", "0"}, {"flag", ""}, {"rate_tm_gps", "500"}}, ps)
	v, ok := ps.Get("rate_tm_gps")
	assert.True(t, ok)
	assert.Equal(t, "500", v)
	_, ok = ps.Get("baro")
	assert.False(t, ok)
	assert.Equal(t, "gps:1,imu:0,flag:,rate_tm_gps:500", ps.String())
	assert.Nil(t, ParseParams(""))
}
