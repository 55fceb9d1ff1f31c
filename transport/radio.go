package transport

import (
	"github.com/juju/errors"
	"github.com/temoto/skybus/packet"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const DefaultSpiSpeed = 1 * physic.MegaHertz

// RadioFrameSize is the only frame the modem accepts: header + radio summary body.
const RadioFrameSize = packet.HeaderSize + packet.RadioBodySize

type RadioConfig struct {
	SpiBus   string
	SpiMode  int
	SpiSpeed string
}

type SpiTxFunc func(send, recv []byte) error

// Radio pushes fixed size summary frames into the modem over SPI.
type Radio struct {
	tx   SpiTxFunc
	port spi.PortCloser
}

func OpenRadio(c RadioConfig) (*Radio, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	port, err := spireg.Open(c.SpiBus)
	if err != nil {
		return nil, errors.Annotatef(err, "SPI Open bus=%s", c.SpiBus)
	}
	speed := DefaultSpiSpeed
	if c.SpiSpeed != "" {
		if err = speed.Set(c.SpiSpeed); err != nil {
			port.Close()
			return nil, errors.Annotate(err, "SPI speed parse")
		}
	}
	conn, err := port.Connect(speed, spi.Mode(c.SpiMode), 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotate(err, "SPI Connect")
	}
	return &Radio{tx: conn.Tx, port: port}, nil
}

// NewRadioTx wraps an existing transfer function.
func NewRadioTx(tx SpiTxFunc) *Radio { return &Radio{tx: tx} }

func (self *Radio) Name() string { return "radio" }
func (self *Radio) Connected() bool { return self.tx != nil }

func (self *Radio) Send(b []byte) error {
	if len(b) != RadioFrameSize {
		return errors.NotValidf("radio frame length=%d expected=%d", len(b), RadioFrameSize)
	}
	return errors.Annotate(self.tx(b, nil), "SPI Tx")
}

func (self *Radio) Close() error {
	if self.port == nil {
		return nil
	}
	return self.port.Close()
}
