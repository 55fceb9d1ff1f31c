// Package transport provides channel transports: network sinks, append-only
// files, MQTT and SPI radio. Bring-up of the underlying network or storage
// belongs to the system, transports only observe readiness.
package transport

import (
	"os"
	"time"
)

// Ready reports whether underlying medium (network, mount) is up.
// Nil Ready is always up.
type Ready func() bool

func (r Ready) ok() bool { return r == nil || r() }

const DefaultTimeout = 3 * time.Second

// DirReady is up when dir exists.
func DirReady(dir string) Ready {
	return func() bool {
		st, err := os.Stat(dir)
		return err == nil && st.IsDir()
	}
}

// Discard is always connected and drops everything, for disabled outputs.
type Discard struct{ name string }

func NewDiscard(name string) Discard { return Discard{name} }
func (self Discard) Name() string { return self.name }
func (Discard) Connected() bool { return true }
func (Discard) Send(b []byte) error { return nil }
