// Package spool keeps unsent channel frames across restart in a persistent
// queue (spq over leveldb).
package spool

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/skybus/crc"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/routing"
	"github.com/temoto/spq"
)

// Record: type, channel, crc8 of frame, frame.
const (
	qFrame byte = 1
	qEnd   byte = 2
)

type Spool struct {
	log *log2.Log
	q   *spq.Queue
}

// Open path or spq.OnlyForTesting for memory storage.
func Open(path string, log *log2.Log) (*Spool, error) {
	q, err := spq.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "spool open path=%s", path)
	}
	return &Spool{log: log, q: q}, nil
}

func (self *Spool) Close() error { return self.q.Close() }

// Save appends frames of one channel in order.
func (self *Spool) Save(ch routing.Channel, frames [][]byte) error {
	for i, f := range frames {
		b := make([]byte, 0, 3+len(f))
		b = append(b, qFrame, byte(ch), crc.Sum8(0, f))
		b = append(b, f...)
		if err := self.q.Push(b); err != nil {
			return errors.Annotatef(err, "spool save channel=%s saved=%d lost=%d", ch, i, len(frames)-i)
		}
	}
	if len(frames) != 0 {
		self.log.Debugf("spool saved channel=%s frames=%d", ch, len(frames))
	}
	return nil
}

// Load removes every stored frame and returns them grouped by channel,
// FIFO within channel. Never blocks: an end marker is pushed first and
// reading stops when it comes back. Markers of interrupted loads are skipped.
func (self *Spool) Load() ([routing.ChannelCount][][]byte, error) {
	var out [routing.ChannelCount][][]byte
	marker := make([]byte, 9)
	marker[0] = qEnd
	binary.BigEndian.PutUint64(marker[1:], uint64(time.Now().UnixNano()))
	if err := self.q.Push(marker); err != nil {
		return out, errors.Annotate(err, "spool load marker")
	}
	for {
		box, err := self.q.Peek()
		if err != nil {
			return out, errors.Annotate(err, "spool load")
		}
		b := box.Bytes()
		if err = self.q.Delete(box); err != nil {
			return out, errors.Annotatef(err, "spool delete b=%x", b)
		}
		if bytes.Equal(b, marker) {
			return out, nil
		}
		if len(b) != 0 && b[0] == qEnd {
			continue
		}
		if len(b) < 3 || b[0] != qFrame || !routing.Channel(b[1]).Valid() {
			self.log.Errorf("spool skip invalid b=%x", b)
			continue
		}
		if sum := crc.Sum8(0, b[3:]); sum != b[2] {
			self.log.Errorf("spool skip corrupt channel=%s crc=%02x expected=%02x", routing.Channel(b[1]), sum, b[2])
			continue
		}
		ch := routing.Channel(b[1])
		out[ch] = append(out[ch], b[3:])
	}
}
