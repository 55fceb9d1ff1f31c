package transport

import (
	"net"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/skybus/helpers"
)

// Net sends each frame to a datagram or stream endpoint.
// Stream connection is dialed lazily and dropped on write failure.
type Net struct {
	name    string
	network string
	addr    string
	timeout time.Duration
	ready   Ready
	conn    net.Conn
	redial  helpers.Backoff
}

func NewUDP(name, addr string, ready Ready) *Net { return newNet(name, "udp", addr, ready) }
func NewTCP(name, addr string, ready Ready) *Net { return newNet(name, "tcp", addr, ready) }

func newNet(name, network, addr string, ready Ready) *Net {
	return &Net{
		name:    name,
		network: network,
		addr:    addr,
		timeout: DefaultTimeout,
		ready:   ready,
		redial:  helpers.Backoff{Min: 100 * time.Millisecond, Max: 10 * time.Second, K: 2},
	}
}

func (self *Net) Name() string { return self.name }

// Connected is false while a failed stream dial waits out its backoff,
// so frames stay queued instead of failing one batch per cycle.
func (self *Net) Connected() bool {
	if self.conn == nil && self.redial.DelayBefore() > 0 {
		return false
	}
	return self.ready.ok()
}

func (self *Net) Send(b []byte) error {
	if self.conn == nil {
		if wait := self.redial.DelayBefore(); wait > 0 {
			return errors.Errorf("%s redial in %v", self.name, wait)
		}
		conn, err := net.DialTimeout(self.network, self.addr, self.timeout)
		self.redial.Update(err == nil)
		if err != nil {
			return errors.Annotatef(err, "%s dial %s://%s", self.name, self.network, self.addr)
		}
		self.conn = conn
	}
	_ = self.conn.SetWriteDeadline(time.Now().Add(self.timeout))
	if err := helpers.WriteAll(self.conn, b); err != nil {
		_ = self.Close()
		return errors.Annotatef(err, "%s write", self.name)
	}
	return nil
}

func (self *Net) Close() error {
	if self.conn == nil {
		return nil
	}
	err := self.conn.Close()
	self.conn = nil
	return err
}
