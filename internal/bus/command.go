package bus

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

var (
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnknownMode      = errors.New("unknown mode")
	ErrNoValidParameter = errors.New("no valid parameter")
	ErrMissingParameter = errors.New("missing parameter")
)

// Dispatch executes command addressed to local node or forwards it to the
// counterpart. Failure is reported as one cmd_fail event and returned.
func (self *Bus) Dispatch(c *packet.Command) error {
	if c.Target() != self.local {
		if err := self.PublishCommand(c.Target(), c.Opcode, c.Params); err != nil {
			self.PublishEvent(self.local, packet.SubCmd, packet.SeverityCmdFail,
				fmt.Sprintf("forward %s err=%v", c, err))
			return err
		}
		self.PublishEvent(self.local, packet.SubCmd, packet.SeverityCmd, fmt.Sprintf("forward %s", c))
		return nil
	}

	self.log.Debugf("command %s", c)
	var err error
	switch c.Opcode {
	case packet.OpReboot:
		self.cmdReboot("command")

	case packet.OpRebootCounterpart:
		err = self.cmdRebootCounterpart()

	case packet.OpGetPacket:
		err = self.cmdGetPacket(c.Params)

	case packet.OpSetOpsMode:
		err = self.cmdSetOpsMode(c.Params)

	case packet.OpSetParameter:
		err = self.cmdSetParameter(c.Params)

	case packet.OpSetRouting:
		err = self.cmdSetRouting(c.Params)

	default:
		err = errors.Annotatef(ErrUnknownOpcode, "opcode=%d", uint8(c.Opcode))
	}
	if err != nil {
		self.PublishEvent(self.local, packet.SubCmd, packet.SeverityCmdFail, fmt.Sprintf("%s err=%v", c.Opcode, err))
	}
	return err
}

func (self *Bus) respond(format string, args ...interface{}) {
	self.PublishEvent(self.local, packet.SubCmd, packet.SeverityCmdResp, fmt.Sprintf(format, args...))
}

// argument is value of named key, or the first bare key: "name:tm_gps" or "tm_gps".
func argument(ps packet.Params, key string) (string, bool) {
	if v, ok := ps.Get(key); ok && v != "" {
		return v, true
	}
	if len(ps) != 0 && ps[0].Value == "" && ps[0].Key != "" {
		return ps[0].Key, true
	}
	return "", false
}

func (self *Bus) cmdReboot(reason string) {
	self.respond("reboot reason=%s", reason)
	self.Flush()
	if err := self.Close(); err != nil {
		self.log.Errorf("reboot close err=%v", err)
	}
	if self.opt.Rebooter == nil {
		self.log.Errorf("reboot requested without rebooter")
		return
	}
	self.opt.Rebooter.Reboot(reason)
}

func (self *Bus) cmdRebootCounterpart() error {
	if err := self.PublishCommand(self.local.Counterpart(), packet.OpReboot, nil); err != nil {
		return err
	}
	self.cmdReboot("counterpart")
	return nil
}

func (self *Bus) cmdGetPacket(ps packet.Params) error {
	name, ok := argument(ps, "name")
	if !ok {
		return errors.Annotate(ErrMissingParameter, "name")
	}
	k, err := packet.KindByName(name)
	if err != nil {
		return err
	}
	self.respond("get_packet %s", k)
	return self.PublishPacket(k)
}

func (self *Bus) cmdSetOpsMode(ps packet.Params) error {
	name, ok := argument(ps, "mode")
	if !ok {
		return errors.Annotate(ErrMissingParameter, "mode")
	}
	m, ok := packet.ParseMode(name)
	if !ok {
		return errors.Annotatef(ErrUnknownMode, "mode=%s valid=%s", name, strings.Join(packet.ModeNames(), ","))
	}
	self.Mode = m
	if self.opt.Overrides != nil {
		self.opt.Overrides.SetMode(m)
	}
	self.storeOverrides()
	self.respond("set_opsmode %s", m)
	return nil
}

// Each accepted key emits own response, rejected keys are logged.
func (self *Bus) cmdSetParameter(ps packet.Params) error {
	valid := 0
	for _, p := range ps {
		if err := self.Config.SetParameter(p.Key, p.Value); err != nil {
			self.log.Warningf("set_parameter skip err=%v", err)
			continue
		}
		valid++
		if self.opt.Overrides != nil {
			self.opt.Overrides.SetParam(p.Key, p.Value)
		}
		self.respond("set_parameter %s=%s", p.Key, p.Value)
	}
	if valid == 0 {
		return errors.Annotatef(ErrNoValidParameter, "params=%s", ps)
	}
	self.Reader.SetDebug(self.Config.Serial.Debug)
	self.storeOverrides()
	return nil
}

// set_routing table:<channel>[,load:<preset>][,<kind>:<bool>...]
// Only unknown table fails, bad preset or entries are reported and skipped.
func (self *Bus) cmdSetRouting(ps packet.Params) error {
	table, ok := ps.Get("table")
	if !ok || table == "" {
		return errors.Annotate(ErrMissingParameter, "table")
	}
	ch, err := routing.ChannelByName(table)
	if err != nil {
		return err
	}
	if preset, ok := ps.Get("load"); ok {
		if err := self.Tables.LoadPreset(ch, preset); err != nil {
			self.PublishEvent(self.local, packet.SubRouting, packet.SeverityWarning, err.Error())
		}
	}
	overrides := make([]routing.Override, 0, len(ps))
	for _, p := range ps {
		if p.Key == "table" || p.Key == "load" {
			continue
		}
		overrides = append(overrides, routing.Override{Kind: p.Key, Value: p.Value})
	}
	changed, skipped, err := self.Tables.Apply(ch, overrides)
	if err != nil {
		return err
	}
	for _, e := range skipped {
		self.log.Warningf("set_routing table=%s skip err=%v", ch, e)
	}
	if self.opt.Overrides != nil {
		self.opt.Overrides.SetRouting(ch, self.Tables.Get(ch))
	}
	self.storeOverrides()
	self.respond("set_routing %s changed=%d routed=%s", ch, changed, self.Tables.Get(ch))
	return nil
}

func (self *Bus) storeOverrides() {
	if err := self.store(); err != nil {
		self.PublishEvent(self.local, packet.SubStorage, packet.SeverityError, err.Error())
	}
}
