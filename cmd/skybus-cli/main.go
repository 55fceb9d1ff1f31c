package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/skybus/helpers/cli"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/serial"
)

const usage = `syntax: [loop=N] <node> <opcode> [key:value ...]
nodes: main cam
opcodes: reboot reboot_counterpart get_packet set_opsmode set_parameter set_routing

examples:
- main get_packet tm_gps
- cam set_opsmode mode:flight
- main set_parameter gps:1 rate_tm_gps:500
- main set_routing table:ground load:all tm_imu:0

(meta)
- help      show this text
- binary    send binary frames
- text      send text frames
`

var log = log2.NewStderr(log2.LDebug)

type commander struct {
	w      io.Writer
	binary bool
	seq    uint16
}

type request struct {
	cmd  *packet.Command
	loop int
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	devicePath := cmdline.String("device", "", "serial device, empty = write frames to stdout")
	baud := cmdline.Int("baud", 115200, "")
	binary := cmdline.Bool("binary", false, "send binary frames")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	c := &commander{w: os.Stdout, binary: *binary}
	a := alive.NewAlive()
	if *devicePath != "" {
		port, err := serial.OpenPort(*devicePath, *baud, 100*time.Millisecond)
		if err != nil {
			log.Fatal(errors.ErrorStack(err))
		}
		defer port.Close()
		c.w = port
		a.Add(1)
		go monitor(port, a)
	}

	err := cli.MainLoop("skybus-cli", c.execute, newCompleter())
	a.Stop()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func (self *commander) execute(line string) {
	switch strings.TrimSpace(line) {
	case "":
		return
	case "help":
		log.Infof(usage)
		return
	case "binary", "text":
		self.binary = line == "binary"
		return
	}
	req, err := parseLine(line)
	if err != nil {
		log.Errorf(errors.ErrorStack(err))
		return
	}
	for i := 0; i < req.loop; i++ {
		if err := self.send(req.cmd); err != nil {
			log.Errorf(errors.ErrorStack(err))
			return
		}
	}
}

func (self *commander) send(c *packet.Command) error {
	var frame []byte
	var err error
	if self.binary {
		frame, err = packet.EncodeBinary(self.seq, c)
	} else {
		frame, err = packet.EncodeText(self.seq, c)
	}
	if err != nil {
		return err
	}
	self.seq++
	log.Debugf("> %s", c)
	_, err = self.w.Write(frame)
	return errors.Annotate(err, "send")
}

func parseLine(line string) (request, error) {
	req := request{loop: 1}
	words := strings.Fields(line)
	if len(words) != 0 && strings.HasPrefix(words[0], "loop=") {
		n, err := strconv.ParseUint(words[0][5:], 10, 16)
		if err != nil || n == 0 {
			return req, errors.NotValidf("word=%s", words[0])
		}
		req.loop = int(n)
		words = words[1:]
	}
	if len(words) < 2 {
		return req, errors.NotValidf("line='%s' expected <node> <opcode>", line)
	}
	node, err := packet.ParseNode(words[0])
	if err != nil {
		return req, err
	}
	op, ok := packet.ParseOpcode(words[1])
	if !ok {
		return req, errors.NotFoundf("opcode=%s", words[1])
	}
	req.cmd = packet.NewCommand(node)
	req.cmd.Opcode = op
	req.cmd.Params = packet.ParseParams(strings.Join(words[2:], ","))
	return req, nil
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	nodes := []prompt.Suggest{
		{Text: "main", Description: "main node"},
		{Text: "cam", Description: "camera node"},
		{Text: "loop=N", Description: "repeat command N times"},
		{Text: "help", Description: "show usage"},
	}
	ops := []prompt.Suggest{
		{Text: "reboot", Description: "restart target node"},
		{Text: "reboot_counterpart", Description: "restart both nodes"},
		{Text: "get_packet", Description: "publish packet now, arg: name"},
		{Text: "set_opsmode", Description: "arg: mode"},
		{Text: "set_parameter", Description: "args: key:value ..."},
		{Text: "set_routing", Description: "args: table:<channel> [load:<preset>] [kind:bool ...]"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		before := strings.Fields(d.TextBeforeCursor())
		n := len(before)
		if word != "" {
			n--
		}
		if n > 0 && strings.HasPrefix(before[0], "loop=") {
			n--
		}
		switch n {
		case 0:
			return prompt.FilterFuzzy(nodes, word, true)
		case 1:
			return prompt.FilterFuzzy(ops, word, true)
		}
		return nil
	}
}

// monitor prints every frame the node sends back.
func monitor(port *serial.Port, a *alive.Alive) {
	defer a.Done()
	rx := make(chan []byte, 16)
	go func() {
		if err := serial.ReadLoop(port, rx, a.StopChan()); err != nil && a.IsRunning() {
			log.Errorf("monitor err=%v", err)
		}
	}()
	r := serial.NewReader(printer{})
	r.SetDebug(true)
	for {
		select {
		case <-a.StopChan():
			return
		case chunk := <-rx:
			_, _ = r.Write(chunk)
		}
	}
}

type printer struct{}

func (printer) SerialBinary(frame []byte) {
	h, p, err := packet.DecodeBinary(frame)
	if err != nil {
		log.Errorf("< binary frame=%x err=%v", frame, err)
		return
	}
	printPacket(h.Seq, p)
}

func (printer) SerialText(line []byte) {
	seq, p, err := packet.DecodeText(line)
	if err != nil {
		log.Errorf("< text line=%q err=%v", line, err)
		return
	}
	printPacket(seq, p)
}

func (printer) SerialAscii(line []byte) { log.Infof("< ascii %s", line) }

func (printer) SerialEvent(sev packet.Severity, msg string) { log.Infof("link %s %s", sev, msg) }

func printPacket(seq uint16, p packet.Packet) {
	b, err := packet.EncodeText(seq, p)
	if err != nil {
		log.Errorf("< %s err=%v", p.Kind(), err)
		return
	}
	fmt.Printf("< %s", b)
}
