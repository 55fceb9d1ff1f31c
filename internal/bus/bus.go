// Package bus is the packet bus orchestrator: it owns all packet state,
// fans encoded frames out to channel publishers per routing tables,
// relays and dispatches frames from the serial link.
// Bus is driven by one control goroutine and is not safe for concurrent use.
package bus

import (
	"fmt"
	"io"
	"time"

	"github.com/temoto/skybus/channel"
	"github.com/temoto/skybus/helpers"
	"github.com/temoto/skybus/internal/config"
	"github.com/temoto/skybus/internal/persist"
	"github.com/temoto/skybus/internal/spool"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
	"github.com/temoto/skybus/serial"
)

// Rebooter restarts the node. Reboot is terminal for the bus,
// no further operation is expected after it.
type Rebooter interface {
	Reboot(reason string)
}

// Sampler refreshes sensor packet p before publish.
type Sampler func(uptime uint32, p packet.Packet)

// State is everything the bus mutates, passed explicitly.
type State struct {
	Registry   *packet.Registry
	Config     *config.Config
	Tables     *routing.Tables
	Mode       packet.Mode
	Publishers [routing.ChannelCount]*channel.Publisher
	Reader     *serial.Reader
}

type Options struct {
	// Serial is the outbound side of the inter-node link, nil = no serial channel.
	Serial io.Writer
	// Transports for other channels, nil entry = channel absent.
	Transports  [routing.ChannelCount]channel.Transport
	Rebooter    Rebooter
	Metrics     *channel.Metrics
	MemoryProbe channel.MemoryProbe
	Persist     *persist.Persist
	Overrides   *persist.Overrides
	Spool       *spool.Spool
	// Clock for uptime, default time.Now.
	Clock func() time.Time
}

type Bus struct {
	State
	log      *log2.Log
	local    packet.Node
	opt      Options
	link     *serial.Link
	started  time.Time
	samplers [packet.KindCount]Sampler
	next     [packet.KindCount]time.Time

	nextKeepalive time.Time
}

func New(cfg *config.Config, opt Options, log *log2.Log) *Bus {
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	if opt.Metrics == nil {
		opt.Metrics = channel.NewMetrics(nil)
	}
	local := cfg.LocalNode()
	mode, _ := packet.ParseMode(cfg.Mode)
	self := &Bus{
		State: State{
			Registry: packet.NewRegistry(),
			Config:   cfg,
			Tables:   routing.NewTables(local),
			Mode:     mode,
		},
		log:     log,
		local:   local,
		opt:     opt,
		started: opt.Clock(),
	}
	self.Reader = serial.NewReader(self)
	self.Reader.SetDebug(cfg.Serial.Debug)

	for table, preset := range cfg.Routing {
		ch, err := routing.ChannelByName(table)
		if err == nil {
			err = self.Tables.LoadPreset(ch, preset)
		}
		if err != nil {
			log.Errorf("config routing err=%v", err)
		}
	}

	transports := opt.Transports
	if opt.Serial != nil {
		self.link = serial.NewLink(opt.Serial, self.Reader)
		transports[routing.Serial] = self.link
	}
	for _, ch := range routing.FanOut {
		t := transports[ch]
		if t == nil {
			continue
		}
		self.Publishers[ch] = channel.NewPublisher(ch.String(), t, channel.Options{
			MaxFrame:      packet.MaxFrame,
			MaxEntries:    cfg.Memory.MaxEntries,
			MinFreeMemory: cfg.MinFreeMemory(),
			MemoryProbe:   opt.MemoryProbe,
			Unbuffered:    ch == routing.Radio,
			Metrics:       opt.Metrics,
		}, log)
	}
	return self
}

func (self *Bus) Local() packet.Node { return self.local }

func (self *Bus) SetSampler(k packet.Kind, s Sampler) { self.samplers[k] = s }

// Uptime in milliseconds since New.
func (self *Bus) Uptime() uint32 {
	return uint32(self.opt.Clock().Sub(self.started) / time.Millisecond)
}

// Start applies stored overrides, restores spooled backlog and reports boot.
func (self *Bus) Start() error {
	errs := make([]error, 0, 2)
	if self.opt.Persist != nil && self.opt.Overrides != nil {
		if err := self.opt.Persist.Load(); err != nil {
			errs = append(errs, err)
		} else if !self.opt.Overrides.Empty() {
			if m, ok := self.opt.Overrides.Apply(self.Config, self.Tables, self.log); ok {
				self.Mode = m
			}
			self.Reader.SetDebug(self.Config.Serial.Debug)
		}
	}
	if self.opt.Spool != nil {
		backlog, err := self.opt.Spool.Load()
		if err != nil {
			errs = append(errs, err)
		}
		for ch, frames := range backlog {
			if len(frames) == 0 {
				continue
			}
			if p := self.Publishers[ch]; p != nil {
				p.Restore(frames)
				self.log.Infof("spool restored channel=%s frames=%d", routing.Channel(ch), len(frames))
			} else {
				self.log.Errorf("spool channel=%s absent, dropped frames=%d", routing.Channel(ch), len(frames))
			}
		}
	}
	self.PublishEvent(self.local, packet.SubCore, packet.SeverityInit,
		fmt.Sprintf("start node=%s mode=%s", self.local, self.Mode))
	err := helpers.FoldErrors(errs)
	if err != nil {
		self.PublishEvent(self.local, packet.SubStorage, packet.SeverityError, err.Error())
	}
	return err
}

// Close moves buffered frames to the spool and stores overrides.
func (self *Bus) Close() error {
	var first error
	if self.opt.Spool != nil {
		for _, ch := range routing.FanOut {
			p := self.Publishers[ch]
			if p == nil {
				continue
			}
			if err := self.opt.Spool.Save(ch, p.Drain()); err != nil && first == nil {
				first = err
			}
		}
	}
	if err := self.store(); err != nil && first == nil {
		first = err
	}
	return first
}

func (self *Bus) store() error {
	if self.opt.Persist == nil {
		return nil
	}
	return self.opt.Persist.Store()
}

// Feed passes inbound serial bytes to the frame reader.
func (self *Bus) Feed(b []byte) { _, _ = self.Reader.Write(b) }

// Tick is one orchestrator cycle: publish every due periodic packet,
// service the serial link, flush every publisher.
func (self *Bus) Tick(now time.Time) {
	for _, k := range packet.AllKinds() {
		if k.IsCommand() || k.Owner() != self.local || !self.Config.KindEnabled(k) {
			continue
		}
		period := self.Config.Period(k)
		if period <= 0 || now.Before(self.next[k]) {
			continue
		}
		self.next[k] = now.Add(period)
		if err := self.PublishPacket(k); err != nil {
			self.log.Errorf("tick publish kind=%s err=%v", k, err)
		}
	}
	self.serviceLink(now)
	self.Flush()
}

// Flush gives every publisher one batch.
func (self *Bus) Flush() {
	for _, ch := range routing.FanOut {
		if p := self.Publishers[ch]; p != nil {
			p.Flush()
		}
	}
}

func (self *Bus) serviceLink(now time.Time) {
	self.Reader.SetDebug(self.Config.Serial.Debug)
	timeout := time.Duration(self.Config.Serial.LinkTimeoutMs) * time.Millisecond
	self.Reader.Expire(timeout)
	if self.link == nil || !self.Config.Serial.Enable || now.Before(self.nextKeepalive) {
		return
	}
	self.nextKeepalive = now.Add(time.Duration(self.Config.Serial.KeepaliveMs) * time.Millisecond)
	if err := self.link.Keepalive(timeout); err != nil {
		self.log.Errorf("serial keepalive err=%v", err)
	}
}
