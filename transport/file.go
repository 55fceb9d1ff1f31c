package transport

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/temoto/skybus/helpers"
	"github.com/temoto/skybus/internal/sysinfo"
)

// File appends frames to a log file. Text and binary logs are separate files.
type File struct {
	name    string
	path    string
	minFree uint64
	ready   Ready
	f       *os.File
}

func NewFile(name, path string, minFree uint64, ready Ready) *File {
	if ready == nil {
		ready = DirReady(filepath.Dir(path))
	}
	return &File{name: name, path: path, minFree: minFree, ready: ready}
}

func (self *File) Name() string { return self.name }
func (self *File) Path() string { return self.path }

// Connected requires medium ready and free space above minimum.
func (self *File) Connected() bool {
	if !self.ready.ok() {
		return false
	}
	if self.minFree == 0 {
		return true
	}
	free, err := self.Free()
	return err == nil && free >= self.minFree
}

func (self *File) Free() (uint64, error) { return sysinfo.FreeDisk(filepath.Dir(self.path)) }

func (self *File) Send(b []byte) error {
	if self.f == nil {
		f, err := os.OpenFile(self.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return errors.Annotatef(err, "%s open", self.name)
		}
		self.f = f
	}
	if err := helpers.WriteAll(self.f, b); err != nil {
		_ = self.Close()
		return errors.Annotatef(err, "%s write path=%s", self.name, self.path)
	}
	return nil
}

func (self *File) Close() error {
	if self.f == nil {
		return nil
	}
	err := self.f.Close()
	self.f = nil
	return err
}
