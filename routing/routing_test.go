package routing

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/skybus/packet"
)

func TestPresetAllNone(t *testing.T) {
	t.Parallel()
	rt := NewTables(packet.NodeMain)
	for _, ch := range FanOut {
		require.NoError(t, rt.LoadPreset(ch, PresetNone))
		for _, k := range packet.AllKinds() {
			assert.False(t, rt.IsRouted(ch, k), "%s/%s", ch, k)
		}
		require.NoError(t, rt.LoadPreset(ch, PresetAll))
		for _, k := range packet.AllKinds() {
			assert.True(t, rt.IsRouted(ch, k), "%s/%s", ch, k)
		}
	}
}

func TestOverrideTouchesOnlyTarget(t *testing.T) {
	t.Parallel()
	rt := NewTables(packet.NodeMain)
	require.NoError(t, rt.LoadPreset(Ground, PresetNone))
	before := rt.Get(Ground)
	require.NoError(t, rt.SetEntry(Ground, packet.TmBaro, true))
	after := rt.Get(Ground)
	for _, k := range packet.AllKinds() {
		if k == packet.TmBaro {
			assert.True(t, after[k])
		} else {
			assert.Equal(t, before[k], after[k], k.String())
		}
	}
}

func TestUnknownRoutingLeavesState(t *testing.T) {
	t.Parallel()
	rt := NewTables(packet.NodeCam)
	before := rt.Snapshot()

	_, err := ChannelByName("usb")
	assert.Equal(t, ErrUnknownRouting, errors.Cause(err))
	err = rt.LoadPreset(Serial, "everything")
	assert.Equal(t, ErrUnknownRouting, errors.Cause(err))
	err = rt.LoadPreset(Channel(ChannelCount), PresetAll)
	assert.Equal(t, ErrUnknownRouting, errors.Cause(err))
	_, _, err = rt.Apply(Channel(99), []Override{{"tm_gps", "1"}})
	assert.Equal(t, ErrUnknownRouting, errors.Cause(err))

	assert.Equal(t, before, rt.Snapshot())
}

func TestApply(t *testing.T) {
	t.Parallel()
	type Case struct {
		name      string
		overrides []Override
		changed   int
		skipped   int
		expect    string
	}
	cases := []Case{
		{"empty", nil, 0, 0, ""},
		{"none-valid", []Override{{"tm_nope", "1"}, {"tm_gps", "maybe"}}, 0, 2, ""},
		{"mixed", []Override{{"tm_gps", "1"}, {"bogus", "1"}, {"tm_baro", "on"}}, 2, 1, "tm_gps,tm_baro"},
		{"last-wins", []Override{{"tm_imu", "1"}, {"tm_imu", "false"}}, 2, 0, ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			rt := NewTables(packet.NodeMain)
			require.NoError(t, rt.LoadPreset(UDPDebug, PresetNone))
			changed, skipped, err := rt.Apply(UDPDebug, c.overrides)
			require.NoError(t, err)
			assert.Equal(t, c.changed, changed)
			assert.Len(t, skipped, c.skipped)
			assert.Equal(t, c.expect, rt.Get(UDPDebug).String())
		})
	}
}

func TestDefaultPresetsNodeAware(t *testing.T) {
	t.Parallel()
	main := NewTables(packet.NodeMain)
	cam := NewTables(packet.NodeCam)

	assert.True(t, main.IsRouted(Serial, packet.TmGps))
	assert.True(t, main.IsRouted(Serial, packet.CmdCam))
	assert.False(t, main.IsRouted(Serial, packet.CmdMain))
	assert.False(t, main.IsRouted(Serial, packet.TmCam), "counterpart telemetry is not echoed back")

	assert.True(t, cam.IsRouted(Serial, packet.TmCamera))
	assert.True(t, cam.IsRouted(Serial, packet.StatusCam))
	assert.True(t, cam.IsRouted(Serial, packet.CmdMain))
	assert.False(t, cam.IsRouted(Serial, packet.TmGps))

	assert.Equal(t, "tm_radio", main.Get(Radio).String())
	assert.False(t, main.IsRouted(FSText, packet.CmdMain))
	assert.True(t, main.IsRouted(FSBinary, packet.CmdMain))

	require.NoError(t, main.LoadPreset(Serial, PresetDebug))
	assert.True(t, main.IsRouted(Serial, packet.CmdMain))
}

func TestChannelNames(t *testing.T) {
	t.Parallel()
	for _, ch := range FanOut {
		byName, err := ChannelByName(ch.String())
		require.NoError(t, err)
		assert.Equal(t, ch, byName)
	}
	assert.Equal(t, []Channel{Serial, UDPDebug, Ground, Radio, FSText, FSBinary, SDText, SDBinary}, FanOut[:])
}

func TestParseBool(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"1", "true", "on", "yes", "enable", "ON"} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"0", "false", "off", "no", "disable"} {
		v, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBool("2")
	assert.True(t, errors.IsNotValid(err))
}
