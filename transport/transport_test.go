package transport

import (
	"io/ioutil"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/skybus/channel"
	"github.com/temoto/skybus/log2"
)

func TestUDP(t *testing.T) {
	t.Parallel()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	up := false
	u := NewUDP("udp", pc.LocalAddr().String(), func() bool { return up })
	defer u.Close()
	assert.False(t, u.Connected())
	up = true
	assert.True(t, u.Connected())
	require.NoError(t, u.Send([]byte("frame-1")))

	buf := make([]byte, 64)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(buf[:n]))
}

func TestTCP(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			got <- err.Error()
			return
		}
		defer conn.Close()
		b, _ := ioutil.ReadAll(conn)
		got <- string(b)
	}()
	tcp := NewTCP("ground", ln.Addr().String(), nil)
	assert.True(t, tcp.Connected())
	require.NoError(t, tcp.Send([]byte("a")))
	require.NoError(t, tcp.Send([]byte("b")))
	require.NoError(t, tcp.Close())
	assert.Equal(t, "ab", <-got)
	ln.Close()
}

func TestTCPConnectFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	tcp := NewTCP("ground", addr, nil)
	err = tcp.Send([]byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ground dial tcp://"+addr)
}

func TestFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	f := NewFile("fs_text", path, 1, nil)
	assert.True(t, f.Connected())
	require.NoError(t, f.Send([]byte("[a]\n")))
	require.NoError(t, f.Send([]byte("[b]\n")))
	require.NoError(t, f.Close())
	// reopen appends
	require.NoError(t, f.Send([]byte("[c]\n")))
	require.NoError(t, f.Close())
	b, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[a]\n[b]\n[c]\n", string(b))

	missing := NewFile("sd_bin", filepath.Join(dir, "unmounted", "log.bin"), 0, nil)
	assert.False(t, missing.Connected())
	assert.Error(t, missing.Send([]byte{0}))

	full := NewFile("sd_text", path, 1<<62, nil)
	assert.False(t, full.Connected(), "free space below minimum")
}

func TestRadio(t *testing.T) {
	t.Parallel()
	var sent [][]byte
	r := NewRadioTx(func(send, recv []byte) error {
		sent = append(sent, append([]byte(nil), send...))
		return nil
	})
	assert.True(t, r.Connected())
	err := r.Send(make([]byte, 10))
	assert.True(t, errors.IsNotValid(err))
	require.NoError(t, r.Send(make([]byte, RadioFrameSize)))
	assert.Len(t, sent, 1)
	assert.NoError(t, r.Close())

	assert.False(t, (&Radio{}).Connected())
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	d := NewDiscard("udp")
	assert.Equal(t, "udp", d.Name())
	assert.True(t, d.Connected())
	assert.NoError(t, d.Send([]byte("x")))
}

func TestTCPRedialBackoff(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	tcp := NewTCP("ground", addr, nil)
	tcp.redial.Min = time.Hour
	tcp.redial.Max = time.Hour
	require.Error(t, tcp.Send([]byte("x")))
	err = tcp.Send([]byte("y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ground redial in")
	assert.False(t, tcp.Connected(), "waiting out backoff")
}

func TestTCPBackoffKeepsQueue(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	tcp := NewTCP("ground", addr, nil)
	tcp.redial.Min = time.Hour
	tcp.redial.Max = time.Hour
	p := channel.NewPublisher("ground", tcp, channel.Options{}, log2.NewTest(t, log2.LDebug))
	for i := 0; i < 9; i++ {
		require.NoError(t, p.Enqueue([]byte{byte(i)}))
	}
	assert.True(t, tcp.Connected(), "first dial is not delayed")
	assert.Equal(t, 0, p.Flush())
	assert.Equal(t, 6, p.Depth(), "failed dial loses one batch")
	for cycle := 0; cycle < 5; cycle++ {
		assert.Equal(t, 0, p.Flush())
		assert.Equal(t, 6, p.Depth(), "cycle=%d", cycle)
	}
	assert.Equal(t, uint64(3), p.DroppedTotal())
}
