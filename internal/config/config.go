// Package config is the node configuration: hcl file with includes, defaults,
// and runtime mutation by command parameters.
package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/skybus/helpers"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

const (
	EncodingBinary = "binary"
	EncodingText   = "text"
)

const (
	GroundUDP  = "udp"
	GroundTCP  = "tcp"
	GroundMQTT = "mqtt"
)

type Link struct {
	Enable   bool   `hcl:"enable"`
	Addr     string `hcl:"addr"`
	Encoding string `hcl:"encoding"`
}

type Storage struct {
	Enable    bool   `hcl:"enable"`
	Dir       string `hcl:"dir"`
	Text      bool   `hcl:"text"`
	Binary    bool   `hcl:"binary"`
	MinFreeKB int    `hcl:"min_free_kb"`
}

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Node     string `hcl:"node"`
	Mode     string `hcl:"mode"`
	LogLevel string `hcl:"log_level"`
	CycleMs  int    `hcl:"cycle_ms"`

	Persist struct {
		Root string `hcl:"root"`
	} `hcl:"persist"`

	Metrics struct {
		Listen string `hcl:"listen"`
	} `hcl:"metrics"`

	Memory struct {
		MinFreeKB  int `hcl:"min_free_kb"`
		MaxEntries int `hcl:"max_entries"`
	} `hcl:"memory"`

	Serial struct {
		Enable        bool   `hcl:"enable"`
		Device        string `hcl:"device"`
		Baud          int    `hcl:"baud"`
		Encoding      string `hcl:"encoding"`
		Debug         bool   `hcl:"debug"`
		KeepaliveMs   int    `hcl:"keepalive_ms"`
		LinkTimeoutMs int    `hcl:"link_timeout_ms"`
	} `hcl:"serial"`

	UDP Link `hcl:"udp"`

	Ground struct {
		Link `hcl:",squash"`
		Mode string `hcl:"mode"`
		Mqtt struct {
			Broker   string `hcl:"broker"`
			ClientID string `hcl:"client_id"`
			Username string `hcl:"username"`
			Password string `hcl:"password"`
			Topic    string `hcl:"topic"`
			QoS      int    `hcl:"qos"`
		} `hcl:"mqtt"`
	} `hcl:"ground"`

	Radio struct {
		Enable   bool   `hcl:"enable"`
		SpiBus   string `hcl:"spi_bus"`
		SpiMode  int    `hcl:"spi_mode"`
		SpiSpeed string `hcl:"spi_speed"`
	} `hcl:"radio"`

	FS Storage `hcl:"fs"`
	SD Storage `hcl:"sd"`

	Sensors struct {
		Gps    bool `hcl:"gps"`
		Imu    bool `hcl:"imu"`
		Baro   bool `hcl:"baro"`
		Camera bool `hcl:"camera"`
	} `hcl:"sensors"`

	// Rate is publish period in milliseconds by packet name, 0 = on demand only.
	Rate map[string]int `hcl:"rate"`
	// Routing is startup preset by table name.
	Routing map[string]string `hcl:"routing"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

var defaultRates = map[packet.Kind]int{
	packet.TmMain:  1000,
	packet.TmCam:   1000,
	packet.TmGps:   1000,
	packet.TmImu:   200,
	packet.TmBaro:  500,
	packet.TmRadio: 2000,
}

// Default returns config as if read from empty file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	setDefault := func(s *string, v string) {
		if *s == "" {
			*s = v
		}
	}
	setDefaultInt := func(i *int, v int) {
		if *i == 0 {
			*i = v
		}
	}
	setDefault(&c.Node, "main")
	setDefault(&c.Mode, packet.ModeIdle.String())
	setDefault(&c.LogLevel, "info")
	setDefaultInt(&c.CycleMs, 100)
	setDefault(&c.Persist.Root, "/var/lib/skybus")
	setDefaultInt(&c.Memory.MinFreeKB, 64)
	setDefault(&c.Serial.Device, "/dev/ttyS1")
	setDefaultInt(&c.Serial.Baud, 115200)
	setDefault(&c.Serial.Encoding, EncodingBinary)
	setDefaultInt(&c.Serial.KeepaliveMs, 1000)
	setDefaultInt(&c.Serial.LinkTimeoutMs, 3000)
	setDefault(&c.UDP.Encoding, EncodingText)
	setDefault(&c.Ground.Encoding, EncodingBinary)
	setDefault(&c.Ground.Mode, GroundUDP)
	setDefault(&c.FS.Dir, "/var/log/skybus")
	setDefault(&c.SD.Dir, "/mnt/sd/skybus")
	if c.Rate == nil {
		c.Rate = make(map[string]int)
	}
	for k, ms := range defaultRates {
		if _, ok := c.Rate[k.String()]; !ok {
			c.Rate[k.String()] = ms
		}
	}
	if c.Routing == nil {
		c.Routing = make(map[string]string)
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	if _, err := packet.ParseNode(c.Node); err != nil {
		errs = append(errs, err)
	}
	if _, ok := packet.ParseMode(c.Mode); !ok {
		errs = append(errs, errors.NotValidf("mode=%s", c.Mode))
	}
	if _, ok := log2.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, errors.NotValidf("log_level=%s", c.LogLevel))
	}
	for key, enc := range map[string]string{"serial": c.Serial.Encoding, "udp": c.UDP.Encoding, "ground": c.Ground.Encoding} {
		if enc != EncodingBinary && enc != EncodingText {
			errs = append(errs, errors.NotValidf("%s encoding=%s", key, enc))
		}
	}
	switch c.Ground.Mode {
	case GroundUDP, GroundTCP, GroundMQTT:
	default:
		errs = append(errs, errors.NotValidf("ground mode=%s", c.Ground.Mode))
	}
	for name := range c.Rate {
		if _, err := packet.KindByName(name); err != nil {
			errs = append(errs, errors.Annotate(err, "rate"))
		}
	}
	for table, preset := range c.Routing {
		if _, err := routing.ChannelByName(table); err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(routing.PresetNames(), preset) {
			errs = append(errs, errors.NotValidf("routing table=%s preset=%s", table, preset))
		}
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) LocalNode() packet.Node {
	n, _ := packet.ParseNode(c.Node)
	return n
}

func (c *Config) Level() log2.Level {
	l, _ := log2.ParseLevel(c.LogLevel)
	return l
}

func (c *Config) Cycle() time.Duration { return time.Duration(c.CycleMs) * time.Millisecond }

func (c *Config) MinFreeMemory() uint64 { return uint64(c.Memory.MinFreeKB) << 10 }

// Period of periodic publishing, 0 = on demand only.
func (c *Config) Period(k packet.Kind) time.Duration {
	return time.Duration(c.Rate[k.String()]) * time.Millisecond
}

// KindEnabled reports whether producer of kind is turned on.
func (c *Config) KindEnabled(k packet.Kind) bool {
	switch k {
	case packet.TmGps:
		return c.Sensors.Gps
	case packet.TmImu:
		return c.Sensors.Imu
	case packet.TmBaro:
		return c.Sensors.Baro
	case packet.TmCamera:
		return c.Sensors.Camera
	case packet.TmRadio:
		return c.Radio.Enable
	}
	return true
}

// ChannelEnabled reports whether channel and its encoding are turned on.
func (c *Config) ChannelEnabled(ch routing.Channel) bool {
	switch ch {
	case routing.Serial:
		return c.Serial.Enable
	case routing.UDPDebug:
		return c.UDP.Enable
	case routing.Ground:
		return c.Ground.Enable
	case routing.Radio:
		return c.Radio.Enable
	case routing.FSText:
		return c.FS.Enable && c.FS.Text
	case routing.FSBinary:
		return c.FS.Enable && c.FS.Binary
	case routing.SDText:
		return c.SD.Enable && c.SD.Text
	case routing.SDBinary:
		return c.SD.Enable && c.SD.Binary
	}
	return false
}

// ChannelText reports whether channel carries text frames.
func (c *Config) ChannelText(ch routing.Channel) bool {
	switch ch {
	case routing.Serial:
		return c.Serial.Encoding == EncodingText
	case routing.UDPDebug:
		return c.UDP.Encoding == EncodingText
	case routing.Ground:
		return c.Ground.Encoding == EncodingText
	case routing.FSText, routing.SDText:
		return true
	}
	return false
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads names in order, later sources override earlier ones.
// Relative includes of an OsFullReader resolve against the first file directory.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	c.applyDefaults()
	if len(errs) == 0 {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
