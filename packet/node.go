package packet

import (
	"fmt"

	"github.com/juju/errors"
)

type Node uint8

const (
	NodeMain Node = iota
	NodeCam
)

func ParseNode(s string) (Node, error) {
	switch s {
	case "main":
		return NodeMain, nil
	case "cam":
		return NodeCam, nil
	}
	return 0, errors.NotValidf("node=%s", s)
}

func (n Node) String() string {
	switch n {
	case NodeMain:
		return "main"
	case NodeCam:
		return "cam"
	}
	return fmt.Sprintf("node(%d)", uint8(n))
}

func (n Node) Counterpart() Node {
	if n == NodeMain {
		return NodeCam
	}
	return NodeMain
}

func (n Node) StatusKind() Kind {
	if n == NodeCam {
		return StatusCam
	}
	return StatusMain
}

func (n Node) HousekeepingKind() Kind {
	if n == NodeCam {
		return TmCam
	}
	return TmMain
}

func (n Node) CommandKind() Kind {
	if n == NodeCam {
		return CmdCam
	}
	return CmdMain
}

// Mode is the node operating mode reported in housekeeping.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeReady
	ModeArmed
	ModeFlight
	ModeRecovery
	ModeDebug
)

var modeNames = [...]string{
	ModeIdle:     "idle",
	ModeReady:    "ready",
	ModeArmed:    "armed",
	ModeFlight:   "flight",
	ModeRecovery: "recovery",
	ModeDebug:    "debug",
}

func ModeNames() []string { return append([]string(nil), modeNames[:]...) }

func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return 0, false
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (m *Mode) UnmarshalText(b []byte) error {
	if x, ok := ParseMode(string(b)); ok {
		*m = x
		return nil
	}
	return errors.NotValidf("mode=%s", string(b))
}
