package serial

import (
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/tarm/serial"
)

// Port is the UART of the inter-node link.
type Port struct {
	name string
	p    *serial.Port
}

func OpenPort(name string, baud int, readTimeout time.Duration) (*Port, error) {
	c := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, errors.Annotatef(err, "serial open name=%s baud=%d", name, baud)
	}
	return &Port{name: name, p: p}, nil
}

func (self *Port) Name() string { return self.name }

// Read returns 0, nil on timeout.
func (self *Port) Read(b []byte) (int, error) {
	n, err := self.p.Read(b)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (self *Port) Write(b []byte) (int, error) { return self.p.Write(b) }
func (self *Port) Flush() error                { return self.p.Flush() }
func (self *Port) Close() error                { return self.p.Close() }

// ReadLoop forwards received chunks to out until stop is closed or read fails.
// Chunks are fresh slices, safe to pass to another goroutine.
func ReadLoop(r io.Reader, out chan<- []byte, stop <-chan struct{}) error {
	var buf [MaxBuffer]byte
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		n, err := r.Read(buf[:])
		if err != nil {
			return errors.Annotate(err, "serial read")
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case out <- chunk:
		case <-stop:
			return nil
		}
	}
}
