package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum8(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input  []byte
		expect byte
	}{
		{nil, 0x00},
		{[]byte{0x00}, 0x00},
		{[]byte{0x55}, 0x86},
		{[]byte{0xaa}, 0x9f},
		{[]byte{0xff}, 0x19},
		{[]byte{0x80, 0x00}, 0x74},
		{[]byte{0xe0, 0x78}, 0xc9},
		{[]byte{0x03, 0x01}, 0xc8},
		{[]byte{0x06, 0x00, 0xbe, 0xeb, 0xee}, 0x75},
		{[]byte{0x04, 0x0f, 0x30}, 0xf7},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, Sum8(0, c.input), "input=%x", c.input)
	}
}

func TestTableMatchesReference(t *testing.T) {
	t.Parallel()
	for i := 0; i < 256; i++ {
		assert.Equal(t, update(Poly93, 0, byte(i)), table93[i], "i=%02x", i)
	}
	// split input continues the same sum
	data := []byte("[\"tm_gps\",1,{}]\n")
	assert.Equal(t, Sum8(0, data), Sum8(Sum8(0, data[:5]), data[5:]))
}
