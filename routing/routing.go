// Package routing keeps per-channel packet routing tables.
package routing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/skybus/packet"
)

var ErrUnknownRouting = errors.New("unknown routing")

// Channel identifies an output channel. Values are also housekeeping slots.
type Channel uint8

const (
	Serial Channel = iota
	UDPDebug
	Ground
	Radio
	FSText
	FSBinary
	SDText
	SDBinary
)

const ChannelCount = 8

var channelNames = [ChannelCount]string{
	Serial:   "serial",
	UDPDebug: "udp",
	Ground:   "ground",
	Radio:    "radio",
	FSText:   "fs_text",
	FSBinary: "fs_bin",
	SDText:   "sd_text",
	SDBinary: "sd_bin",
}

// FanOut is the fixed channel service order of one publish.
var FanOut = [ChannelCount]Channel{Serial, UDPDebug, Ground, Radio, FSText, FSBinary, SDText, SDBinary}

func (c Channel) Valid() bool { return c < ChannelCount }
func (c Channel) String() string {
	if c.Valid() {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

func ChannelByName(name string) (Channel, error) {
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, errors.Annotatef(ErrUnknownRouting, "table=%s", name)
}

const (
	PresetAll     = "all"
	PresetNone    = "none"
	PresetDefault = "default"
	PresetDebug   = "debug"
)

func PresetNames() []string { return []string{PresetAll, PresetNone, PresetDefault, PresetDebug} }

// Vector is indexed by packet.Kind.
type Vector [packet.KindCount]bool

func vectorOf(kinds ...packet.Kind) Vector {
	var v Vector
	for _, k := range kinds {
		v[k] = true
	}
	return v
}

func vectorWhere(f func(packet.Kind) bool) Vector {
	var v Vector
	for _, k := range packet.AllKinds() {
		v[k] = f(k)
	}
	return v
}

func (self Vector) String() string {
	names := make([]string, 0, packet.KindCount)
	for k, on := range self {
		if on {
			names = append(names, packet.Kind(k).String())
		}
	}
	return strings.Join(names, ",")
}

// Override is one explicit per-kind entry, Kind by packet name.
type Override struct {
	Kind  string
	Value string
}

// Tables is not safe for concurrent use.
type Tables struct {
	node    packet.Node
	current [ChannelCount]Vector
	presets [ChannelCount]map[string]Vector
}

// NewTables builds presets for the local node and loads "default" everywhere.
func NewTables(node packet.Node) *Tables {
	self := &Tables{node: node}
	all := vectorWhere(func(packet.Kind) bool { return true })
	none := Vector{}
	local := func(k packet.Kind) bool { return !k.IsCommand() && k.Owner() == node }
	noCommands := vectorWhere(func(k packet.Kind) bool { return !k.IsCommand() })

	// serial carries own telemetry and commands to counterpart
	serialDefault := vectorWhere(func(k packet.Kind) bool {
		return local(k) || k == node.Counterpart().CommandKind()
	})
	serialDebug := vectorWhere(func(k packet.Kind) bool { return local(k) || k.IsCommand() })
	groundDefault := vectorOf(packet.StatusMain, packet.StatusCam, packet.TmMain, packet.TmCam,
		packet.TmGps, packet.TmBaro, packet.TmCamera, packet.TmTimer)

	defaults := [ChannelCount][2]Vector{
		Serial:   {serialDefault, serialDebug},
		UDPDebug: {all, all},
		Ground:   {groundDefault, all},
		Radio:    {vectorOf(packet.TmRadio), vectorOf(packet.TmRadio)},
		FSText:   {noCommands, all},
		FSBinary: {all, all},
		SDText:   {noCommands, all},
		SDBinary: {all, all},
	}
	for ch := range self.presets {
		self.presets[ch] = map[string]Vector{
			PresetAll:     all,
			PresetNone:    none,
			PresetDefault: defaults[ch][0],
			PresetDebug:   defaults[ch][1],
		}
		self.current[ch] = defaults[ch][0]
	}
	return self
}

func (self *Tables) IsRouted(ch Channel, k packet.Kind) bool {
	if !ch.Valid() || !k.Valid() {
		return false
	}
	return self.current[ch][k]
}

func (self *Tables) Get(ch Channel) Vector { return self.current[ch] }

func (self *Tables) LoadPreset(ch Channel, preset string) error {
	if !ch.Valid() {
		return errors.Annotatef(ErrUnknownRouting, "channel=%d", uint8(ch))
	}
	v, ok := self.presets[ch][preset]
	if !ok {
		return errors.Annotatef(ErrUnknownRouting, "table=%s preset=%s", ch, preset)
	}
	self.current[ch] = v
	return nil
}

func (self *Tables) SetEntry(ch Channel, k packet.Kind, enabled bool) error {
	if !ch.Valid() {
		return errors.Annotatef(ErrUnknownRouting, "channel=%d", uint8(ch))
	}
	if !k.Valid() {
		return errors.Annotatef(packet.ErrUnknownPacket, "kind=%d", uint8(k))
	}
	self.current[ch][k] = enabled
	return nil
}

// Apply validates overrides and applies the valid ones together.
// Returns number applied; zero valid overrides is not an error.
// Invalid ones are reported in `skipped` for the caller to log.
func (self *Tables) Apply(ch Channel, overrides []Override) (changed int, skipped []error, err error) {
	if !ch.Valid() {
		return 0, nil, errors.Annotatef(ErrUnknownRouting, "channel=%d", uint8(ch))
	}
	v := self.current[ch]
	for _, o := range overrides {
		k, err := packet.KindByName(o.Kind)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		on, err := ParseBool(o.Value)
		if err != nil {
			skipped = append(skipped, errors.Annotatef(err, "kind=%s", o.Kind))
			continue
		}
		v[k] = on
		changed++
	}
	self.current[ch] = v
	return changed, skipped, nil
}

// Snapshot and Restore copy current vectors, presets are rebuilt by NewTables.
func (self *Tables) Snapshot() [ChannelCount]Vector { return self.current }
func (self *Tables) Restore(s [ChannelCount]Vector) { self.current = s }

func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "enable":
		return true, nil
	case "off", "no", "disable":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.NotValidf("bool=%q", s)
	}
	return b, nil
}
