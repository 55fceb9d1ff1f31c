package packet

import (
	"fmt"
	"strings"
)

type Opcode uint8

const (
	OpReboot Opcode = iota
	OpRebootCounterpart
	OpGetPacket
	OpSetOpsMode
	OpSetParameter
	OpSetRouting
	opcodeCount
)

// OpUnknown stands for any opcode name this node does not know,
// so the receiver can answer with cmd_fail instead of dropping the frame.
const OpUnknown Opcode = 0xff

var opcodeNames = [...]string{
	OpReboot:            "reboot",
	OpRebootCounterpart: "reboot_counterpart",
	OpGetPacket:         "get_packet",
	OpSetOpsMode:        "set_opsmode",
	OpSetParameter:      "set_parameter",
	OpSetRouting:        "set_routing",
}

func (o Opcode) Valid() bool { return o < opcodeCount }

func (o Opcode) String() string {
	if o.Valid() {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

func ParseOpcode(s string) (Opcode, bool) {
	for i, name := range opcodeNames {
		if name == s {
			return Opcode(i), true
		}
	}
	return 0, false
}

func (o Opcode) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o *Opcode) UnmarshalText(b []byte) error {
	x, ok := ParseOpcode(string(b))
	if !ok {
		x = OpUnknown
	}
	*o = x
	return nil
}

type Param struct {
	Key   string
	Value string
}

// Params is ordered key:value list, wire form "k:v,k:v".
type Params []Param

func ParseParams(s string) Params {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ps := make(Params, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p := Param{Key: part}
		if i := strings.IndexByte(part, ':'); i >= 0 {
			p.Key, p.Value = strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:])
		}
		ps = append(ps, p)
	}
	return ps
}

func (self Params) String() string {
	var b strings.Builder
	for i, p := range self {
		if i != 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte(':')
		b.WriteString(p.Value)
	}
	return b.String()
}

func (self Params) Get(key string) (string, bool) {
	for _, p := range self {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func (self Params) MarshalText() ([]byte, error) { return []byte(self.String()), nil }
func (self *Params) UnmarshalText(b []byte) error {
	*self = ParseParams(string(b))
	return nil
}

// Command is addressed to the node owning its kind.
type Command struct {
	node   Node
	Opcode Opcode `json:"op"`
	Params Params `json:"params"`
}

func NewCommand(target Node) *Command { return &Command{node: target} }

func (self *Command) Kind() Kind { return self.node.CommandKind() }
func (self *Command) Target() Node { return self.node }
func (self *Command) ResetCycle() {}
func (self *Command) String() string {
	return fmt.Sprintf("%s %s(%s)", self.node, self.Opcode, self.Params)
}

func (self *Command) MarshalBody() []byte {
	ps := self.Params.String()
	w := newBodyWriter(1 + len(ps) + 1)
	w.u8(uint8(self.Opcode))
	w.str(ps)
	return w.bytes()
}

func (self *Command) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Opcode = Opcode(r.u8())
	self.Params = ParseParams(r.str())
	return r.end()
}
