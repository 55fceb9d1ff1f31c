// Package ground is the ground segment receiver: decodes frames arriving
// over UDP and stores every packet as an InfluxDB point.
package ground

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/juju/errors"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
)

// PointWriter is satisfied by influxdb2 api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sample is one decoded packet flattened for storage.
type Sample struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
}

type Receiver struct {
	packets uint64 // atomic
	errors  uint64 // atomic
	log     *log2.Log
	w       PointWriter
}

func NewReceiver(w PointWriter, log *log2.Log) *Receiver {
	return &Receiver{log: log, w: w}
}

func (self *Receiver) Counters() (packets, errors uint64) {
	return atomic.LoadUint64(&self.packets), atomic.LoadUint64(&self.errors)
}

// Serve reads datagrams until ctx is done.
func (self *Receiver) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	buf := make([]byte, 64<<10)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Annotate(err, "ground read")
		}
		self.log.Debugf("datagram from=%s len=%d", from, n)
		if err := self.Ingest(ctx, buf[:n], time.Now()); err != nil {
			self.log.Errorf("ingest err=%v", err)
		}
	}
}

// Ingest stores every packet of one datagram: single binary frame or text lines.
// Undecodable frames are counted and skipped.
func (self *Receiver) Ingest(ctx context.Context, datagram []byte, now time.Time) error {
	samples := decode(datagram)
	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		if s.err != nil {
			atomic.AddUint64(&self.errors, 1)
			self.log.Warningf("drop frame err=%v", s.err)
			continue
		}
		atomic.AddUint64(&self.packets, 1)
		points = append(points, influxdb2.NewPoint(s.Measurement, s.Tags, s.Fields, now))
	}
	if len(points) == 0 {
		return nil
	}
	return errors.Annotatef(self.w.WritePoint(ctx, points...), "write points=%d", len(points))
}

type decoded struct {
	Sample
	err error
}

func decode(datagram []byte) []decoded {
	if len(datagram) == 0 {
		return nil
	}
	if datagram[0] != '[' {
		h, p, err := packet.DecodeBinary(datagram)
		if err != nil {
			return []decoded{{err: err}}
		}
		s, err := NewSample(h.Seq, p)
		return []decoded{{s, err}}
	}
	lines := bytes.Split(datagram, []byte{'\n'})
	result := make([]decoded, 0, len(lines))
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		seq, p, err := packet.DecodeText(line)
		if err != nil {
			result = append(result, decoded{err: err})
			continue
		}
		s, err := NewSample(seq, p)
		result = append(result, decoded{s, err})
	}
	return result
}

// NewSample flattens packet text form: arrays become name_i fields.
func NewSample(seq uint16, p packet.Packet) (Sample, error) {
	k := p.Kind()
	s := Sample{
		Measurement: k.String(),
		Tags:        map[string]string{"node": k.Owner().String()},
		Fields:      map[string]interface{}{"seq": int64(seq)},
	}
	b, err := json.Marshal(p)
	if err != nil {
		return s, errors.Annotatef(err, "kind=%s", k)
	}
	var m map[string]interface{}
	if err = json.Unmarshal(b, &m); err != nil {
		return s, errors.Annotatef(err, "kind=%s", k)
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch v := m[key].(type) {
		case []interface{}:
			for i, x := range v {
				s.Fields[fmt.Sprintf("%s_%d", key, i)] = x
			}
		case nil:
		default:
			s.Fields[key] = v
		}
	}
	return s, nil
}
