// Package channel implements per-channel buffered publishing with lossy
// backpressure. One Publisher per output channel, driven by the bus cycle.
package channel

import (
	"github.com/juju/errors"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
)

const (
	DefaultBatchSize = 3
	// DefaultMaxFrame bounds a queue entry, either frame form.
	DefaultMaxFrame = packet.MaxFrame
	// Backpressure applies only above this queue length.
	BackpressureDepth = 10
)

var (
	ErrAllocation   = errors.New("queue allocation failed")
	ErrBackpressure = errors.New("backpressure")
	ErrNotConnected = errors.New("transport not connected")
)

// Transport is "publish a ready byte blob" plus readiness.
type Transport interface {
	Name() string
	Connected() bool
	Send(b []byte) error
}

type MemoryProbe func() uint64

type Options struct {
	BatchSize int
	MaxFrame  int
	// MaxEntries is optional pool limit, 0 = unbounded.
	MaxEntries    int
	MinFreeMemory uint64
	MemoryProbe   MemoryProbe
	// Unbuffered sends on enqueue, never queues (radio).
	Unbuffered bool
	Metrics    *Metrics
}

type Publisher struct {
	name string
	t    Transport
	opt  Options
	log  *log2.Log
	m    channelMetrics

	q        Queue
	dataLoss bool
	probe    bool
	rate     uint16

	sentTotal    uint64
	droppedTotal uint64
}

func NewPublisher(name string, t Transport, opt Options, log *log2.Log) *Publisher {
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultBatchSize
	}
	if opt.MaxFrame <= 0 {
		opt.MaxFrame = DefaultMaxFrame
	}
	if opt.Metrics == nil {
		opt.Metrics = NewMetrics(nil)
	}
	return &Publisher{
		name: name,
		t:    t,
		opt:  opt,
		log:  log.Sub(name),
		m:    opt.Metrics.forChannel(name),
	}
}

func (self *Publisher) Name() string         { return self.name }
func (self *Publisher) Transport() Transport { return self.t }
func (self *Publisher) Depth() int           { return self.q.Len() }
func (self *Publisher) DataLoss() bool       { return self.dataLoss }
func (self *Publisher) SentTotal() uint64    { return self.sentTotal }
func (self *Publisher) DroppedTotal() uint64 { return self.droppedTotal }

// Rate is frames transmitted since last ResetRate.
func (self *Publisher) Rate() uint16 { return self.rate }
func (self *Publisher) ResetRate()   { self.rate = 0 }

func (self *Publisher) ResetDataLoss() {
	self.dataLoss = false
	self.m.dataLoss.Set(0)
}

// Enqueue appends frame to the tail. Rejected frames set the sticky data loss
// flag and arm a one-shot drain attempt for the next Flush.
// Frame ownership passes to the publisher, caller must not modify it.
func (self *Publisher) Enqueue(frame []byte) error {
	if self.opt.Unbuffered {
		return self.sendNow(frame)
	}
	if err := self.admit(frame); err != nil {
		self.reject()
		return err
	}
	self.q.Push(frame)
	self.m.depth.Set(float64(self.q.Len()))
	return nil
}

func (self *Publisher) admit(frame []byte) error {
	if len(frame) > self.opt.MaxFrame {
		return errors.Annotatef(ErrAllocation, "frame=%d > max=%d", len(frame), self.opt.MaxFrame)
	}
	if self.opt.MaxEntries > 0 && self.q.Len() >= self.opt.MaxEntries {
		return errors.Annotatef(ErrAllocation, "entries=%d", self.q.Len())
	}
	if self.opt.MemoryProbe != nil && self.q.Len() > BackpressureDepth {
		if free := self.opt.MemoryProbe(); free < self.opt.MinFreeMemory {
			return errors.Annotatef(ErrBackpressure, "free=%d min=%d depth=%d", free, self.opt.MinFreeMemory, self.q.Len())
		}
	}
	return nil
}

func (self *Publisher) reject() {
	if !self.dataLoss {
		self.log.Warningf("data loss depth=%d", self.q.Len())
	}
	self.markLoss(1)
	self.probe = self.q.Len() > 0
}

func (self *Publisher) markLoss(dropped int) {
	self.dataLoss = true
	self.droppedTotal += uint64(dropped)
	self.m.dropped.Add(float64(dropped))
	self.m.dataLoss.Set(1)
}

func (self *Publisher) sendNow(frame []byte) error {
	if !self.t.Connected() {
		self.droppedTotal++
		self.m.dropped.Inc()
		return ErrNotConnected
	}
	if err := self.t.Send(frame); err != nil {
		self.markLoss(1)
		return errors.Annotatef(err, "%s send", self.name)
	}
	self.sent()
	return nil
}

func (self *Publisher) sent() {
	self.rate++
	self.sentTotal++
	self.m.sent.Inc()
}

// Flush sends up to BatchSize oldest frames if transport is connected or a
// drain attempt is armed. On send failure the rest of the batch is dropped.
// Returns number of frames delivered.
func (self *Publisher) Flush() int {
	if self.q.Len() == 0 {
		self.probe = false
		return 0
	}
	if !self.t.Connected() && !self.probe {
		return 0
	}
	self.probe = false
	batch := self.q.PopN(self.opt.BatchSize)
	n := 0
	for i, frame := range batch {
		if err := self.t.Send(frame); err != nil {
			lost := len(batch) - i
			self.log.Errorf("send err=%v lost=%d", err, lost)
			self.markLoss(lost)
			break
		}
		self.sent()
		n++
	}
	self.m.depth.Set(float64(self.q.Len()))
	return n
}

// Drain empties the queue without sending, for spooling at shutdown.
func (self *Publisher) Drain() [][]byte {
	frames := self.q.Drain()
	self.m.depth.Set(0)
	return frames
}

// Restore puts frames back at the head, ahead of anything queued.
func (self *Publisher) Restore(frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	rest := self.q.Drain()
	for _, f := range frames {
		self.q.Push(f)
	}
	for _, f := range rest {
		self.q.Push(f)
	}
	self.m.depth.Set(float64(self.q.Len()))
}
