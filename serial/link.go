package serial

import (
	"io"
	"time"

	"github.com/juju/errors"
)

// Link is the outbound transport of the serial channel.
// Connectivity follows the inbound Reader link state.
type Link struct {
	w io.Writer
	r *Reader
}

func NewLink(w io.Writer, r *Reader) *Link { return &Link{w: w, r: r} }

func (self *Link) Name() string { return "serial" }

// Connected in debug mode is always true, the link carries debug output regardless.
func (self *Link) Connected() bool { return self.r.Connected() || self.r.Debug() }

func (self *Link) Send(b []byte) error {
	if _, err := self.w.Write(b); err != nil {
		return errors.Annotate(err, "serial write")
	}
	return nil
}

// Keepalive writes 'O' while counterpart frames arrive within timeout, 'o' otherwise.
func (self *Link) Keepalive(timeout time.Duration) error {
	ka := KeepaliveDeaf
	if since := self.r.SinceRx(); !self.r.lastRx.IsZero() && since < timeout {
		ka = KeepaliveOK
	}
	_, err := self.w.Write([]byte{ka, '\n'})
	return errors.Annotate(err, "serial keepalive")
}
