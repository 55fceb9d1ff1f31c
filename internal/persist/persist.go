// Package persist keeps command overrides across reboot in extremofile
// storage (checksummed main+backup files).
package persist

import (
	"bytes"
	"encoding"
	"io"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/temoto/skybus/log2"
)

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds target to directory root/tag.
// Nil *Persist is disabled storage: Load and Store do nothing.
// Not safe for concurrent use, the bus control goroutine owns it.
type Persist struct {
	log     *log2.Log
	tag     string
	target  Stater
	storage storage
	// last payload known to be on storage, equal Store is skipped
	last    []byte
	writes  int
}

func Open(root, tag string, target Stater, log *log2.Log) (*Persist, error) {
	if root == "" {
		return nil, errors.NotValidf("persist %s root=empty", tag)
	}
	if target == nil {
		return nil, errors.NotValidf("persist %s target=nil", tag)
	}
	s := extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return newPersist(tag, target, s, log), nil
}

func newPersist(tag string, target Stater, s storage, log *log2.Log) *Persist {
	return &Persist{log: log, tag: tag, target: target, storage: s}
}

// Writes counts payloads actually written since Open.
func (self *Persist) Writes() int {
	if self == nil {
		return 0
	}
	return self.writes
}

// Load fills target from storage. Missing data leaves target unchanged,
// corrupt data is logged and target stays clean.
func (self *Persist) Load() error {
	if self == nil {
		return nil
	}
	b, err := self.storage.Read()
	if b != nil {
		if err != nil {
			// backup copy recovered
			self.log.Errorf("persist %s ignore non-critical storage err=%v", self.tag, err)
		}
		if err = self.target.UnmarshalBinary(b); err == nil {
			self.last = b
		}
	}
	if extremofile.IsCorrupt(err) {
		self.log.Errorf("persist %s corrupt, starting clean", self.tag)
		return nil
	}
	return errors.Annotatef(err, "persist %s Load", self.tag)
}

// Store writes target unless storage already holds the same payload.
func (self *Persist) Store() error {
	if self == nil {
		return nil
	}
	b, err := self.target.MarshalBinary()
	if err != nil {
		return errors.Annotatef(err, "persist %s Store", self.tag)
	}
	if self.last != nil && bytes.Equal(b, self.last) {
		self.log.Debugf("persist %s unchanged", self.tag)
		return nil
	}
	if _, err = self.storage.Write(b); err != nil {
		return errors.Annotatef(err, "persist %s Store", self.tag)
	}
	self.last = b
	self.writes++
	return nil
}
