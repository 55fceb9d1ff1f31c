// Package packet is the static catalog of bus packet kinds,
// their body layouts and the binary/text frame codecs.
//
// Binary frame: 6 byte header (CCSDS-like, big-endian) + body.
// Body fields follow declaration order without padding, little-endian,
// strings are null-terminated and always the last field.
// Text frame: ["<name>",<seq>,{...}] terminated by line-feed.
package packet

import (
	"fmt"

	"github.com/juju/errors"
)

type Kind uint8

const (
	StatusMain Kind = iota
	StatusCam
	TmMain
	TmCam
	TmGps
	TmImu
	TmBaro
	TmRadio
	TmCamera
	TmTimer
	CmdMain
	CmdCam
)

const KindCount = 12

// APID = PID + APIDOffset
const APIDOffset = 42

// MaxString bounds every string field, terminator excluded.
const MaxString = 250

var (
	ErrUnknownPacket = errors.New("unknown packet")
	ErrUnknownAPID   = errors.New("unknown apid")
	ErrFrameLength   = errors.New("frame length mismatch")
	ErrFrameShort    = errors.New("frame too short")
	ErrBodyLength    = errors.New("body length mismatch")
	ErrNotText       = errors.New("not a text frame")
)

type kindInfo struct {
	name    string
	owner   Node
	command bool
}

var kinds = [KindCount]kindInfo{
	StatusMain: {"status_main", NodeMain, false},
	StatusCam:  {"status_cam", NodeCam, false},
	TmMain:     {"tm_main", NodeMain, false},
	TmCam:      {"tm_cam", NodeCam, false},
	TmGps:      {"tm_gps", NodeMain, false},
	TmImu:      {"tm_imu", NodeMain, false},
	TmBaro:     {"tm_baro", NodeMain, false},
	TmRadio:    {"tm_radio", NodeMain, false},
	TmCamera:   {"tm_camera", NodeCam, false},
	TmTimer:    {"tm_timer", NodeMain, false},
	CmdMain:    {"cmd_main", NodeMain, true},
	CmdCam:     {"cmd_cam", NodeCam, true},
}

func AllKinds() []Kind {
	ks := make([]Kind, KindCount)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

func (k Kind) Valid() bool { return k < KindCount }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kinds[k].name
}

func (k Kind) PID() uint8 { return uint8(k) }
func (k Kind) APID() uint16 { return uint16(k) + APIDOffset }
func (k Kind) IsCommand() bool { return k.Valid() && kinds[k].command }

// Owner is the node that produces the kind. For command kinds it is the addressee.
func (k Kind) Owner() Node { return kinds[k].owner }

// Type is the header type bit: 0 telemetry, 1 command.
func (k Kind) Type() uint8 {
	if k.IsCommand() {
		return 1
	}
	return 0
}

// ExpectedBy reports whether `local` accepts the kind from the serial link:
// telemetry produced by the counterpart, and every command.
func (k Kind) ExpectedBy(local Node) bool {
	if !k.Valid() {
		return false
	}
	return k.IsCommand() || k.Owner() != local
}

func KindByName(name string) (Kind, error) {
	for i, info := range kinds {
		if info.name == name {
			return Kind(i), nil
		}
	}
	return 0, errors.Annotatef(ErrUnknownPacket, "name=%s", name)
}

func KindByAPID(apid uint16) (Kind, error) {
	if apid < APIDOffset || apid-APIDOffset >= KindCount {
		return 0, errors.Annotatef(ErrUnknownAPID, "apid=%d", apid)
	}
	return Kind(apid - APIDOffset), nil
}

// New returns zero value packet of given kind.
func New(k Kind) Packet {
	switch k {
	case StatusMain:
		return NewStatus(NodeMain)
	case StatusCam:
		return NewStatus(NodeCam)
	case TmMain:
		return NewHousekeeping(NodeMain)
	case TmCam:
		return NewHousekeeping(NodeCam)
	case TmGps:
		return &Gps{}
	case TmImu:
		return &Imu{}
	case TmBaro:
		return &Baro{}
	case TmRadio:
		return &Radio{}
	case TmCamera:
		return &Camera{}
	case TmTimer:
		return &Timer{}
	case CmdMain:
		return NewCommand(NodeMain)
	case CmdCam:
		return NewCommand(NodeCam)
	}
	panic(fmt.Sprintf("code error packet.New kind=%d", uint8(k)))
}
