package packet

import (
	"fmt"

	"github.com/juju/errors"
)

type Packet interface {
	Kind() Kind
	MarshalBody() []byte
	UnmarshalBody(b []byte) error
	// ResetCycle clears transient per-cycle fields after publish.
	ResetCycle()
}

type Severity uint8

const (
	SeverityInit Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCmd
	SeverityCmdResp
	SeverityCmdFail
)

var severityNames = [...]string{
	SeverityInit:    "init",
	SeverityInfo:    "info",
	SeverityWarning: "warning",
	SeverityError:   "error",
	SeverityCmd:     "cmd",
	SeverityCmdResp: "cmd_resp",
	SeverityCmdFail: "cmd_fail",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if name == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return errors.NotValidf("severity=%s", string(b))
}

type Subsystem uint8

const (
	SubCore Subsystem = iota
	SubSerial
	SubCmd
	SubRouting
	SubGps
	SubImu
	SubBaro
	SubCamera
	SubRadio
	SubStorage
	SubNetwork
	SubGround
)

var subsystemNames = [...]string{
	SubCore:    "core",
	SubSerial:  "serial",
	SubCmd:     "cmd",
	SubRouting: "routing",
	SubGps:     "gps",
	SubImu:     "imu",
	SubBaro:    "baro",
	SubCamera:  "camera",
	SubRadio:   "radio",
	SubStorage: "storage",
	SubNetwork: "network",
	SubGround:  "ground",
}

func (s Subsystem) String() string {
	if int(s) < len(subsystemNames) {
		return subsystemNames[s]
	}
	return fmt.Sprintf("subsystem(%d)", uint8(s))
}

func (s Subsystem) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *Subsystem) UnmarshalText(b []byte) error {
	for i, name := range subsystemNames {
		if name == string(b) {
			*s = Subsystem(i)
			return nil
		}
	}
	return errors.NotValidf("subsystem=%s", string(b))
}

// Status carries one human readable event.
type Status struct {
	node      Node
	Uptime    uint32    `json:"uptime"`
	Severity  Severity  `json:"severity"`
	Subsystem Subsystem `json:"subsystem"`
	Message   string    `json:"msg"`
}

const statusPrefix = 4 + 1 + 1

func NewStatus(node Node) *Status { return &Status{node: node} }

func (self *Status) Kind() Kind { return self.node.StatusKind() }
func (self *Status) Node() Node { return self.node }
func (self *Status) ResetCycle() {}
func (self *Status) String() string {
	return fmt.Sprintf("%s %s/%s: %s", self.node, self.Subsystem, self.Severity, self.Message)
}

func (self *Status) MarshalBody() []byte {
	w := newBodyWriter(statusPrefix + len(self.Message) + 1)
	w.u32(self.Uptime)
	w.u8(uint8(self.Severity))
	w.u8(uint8(self.Subsystem))
	w.str(self.Message)
	return w.bytes()
}

func (self *Status) UnmarshalBody(b []byte) error {
	r := newBodyReader(b)
	self.Uptime = r.u32()
	self.Severity = Severity(r.u8())
	self.Subsystem = Subsystem(r.u8())
	self.Message = r.str()
	return r.end()
}
