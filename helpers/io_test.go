package helpers

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// chunkWriter accepts at most n bytes per call.
type chunkWriter struct {
	buf bytes.Buffer
	n   int
}

func (self *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > self.n {
		p = p[:self.n]
	}
	return self.buf.Write(p)
}

func TestWriteAll(t *testing.T) {
	t.Parallel()
	frame := []byte(`["tm_gps",7,{"sats":9}]` + "\n")
	cases := []struct {
		name   string
		chunk  int
		expect error
	}{
		{"whole", 512, nil},
		{"short-writes", 7, nil},
		{"one-byte", 1, nil},
		{"stuck", 0, io.ErrShortWrite},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			w := &chunkWriter{n: c.chunk}
			err := WriteAll(w, frame)
			assert.Equal(t, c.expect, err)
			if c.expect == nil {
				assert.Equal(t, frame, w.buf.Bytes())
			}
		})
	}
}
