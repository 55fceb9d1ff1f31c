package config

import (
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, packet.NodeMain, c.LocalNode())
			assert.Equal(t, "idle", c.Mode)
			assert.Equal(t, log2.LInfo, c.Level())
			assert.Equal(t, 100*time.Millisecond, c.Cycle())
			assert.Equal(t, EncodingBinary, c.Serial.Encoding)
			assert.Equal(t, EncodingText, c.UDP.Encoding)
			assert.Equal(t, GroundUDP, c.Ground.Mode)
			assert.Equal(t, uint64(64<<10), c.MinFreeMemory())
			assert.Equal(t, 200*time.Millisecond, c.Period(packet.TmImu))
			assert.Equal(t, time.Duration(0), c.Period(packet.StatusMain))
			assert.False(t, c.ChannelEnabled(routing.Serial))
		}, ""},

		{"cam-node",
			`node = "cam" serial { enable = true encoding = "text" }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, packet.NodeCam, c.LocalNode())
				assert.True(t, c.ChannelEnabled(routing.Serial))
				assert.True(t, c.ChannelText(routing.Serial))
			},
			"",
		},

		{"ground-squash",
			`ground { enable = true addr = "10.0.0.1:7000" mode = "tcp" mqtt { topic = "sky" } }`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Ground.Enable)
				assert.Equal(t, "10.0.0.1:7000", c.Ground.Addr)
				assert.Equal(t, GroundTCP, c.Ground.Mode)
				assert.Equal(t, "sky", c.Ground.Mqtt.Topic)
				assert.False(t, c.ChannelText(routing.Ground))
			},
			"",
		},

		{"storage",
			`fs { enable = true text = true } sd { enable = true binary = true dir = "/sd" }`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.ChannelEnabled(routing.FSText))
				assert.False(t, c.ChannelEnabled(routing.FSBinary))
				assert.False(t, c.ChannelEnabled(routing.SDText))
				assert.True(t, c.ChannelEnabled(routing.SDBinary))
				assert.Equal(t, "/sd", c.SD.Dir)
				assert.True(t, c.ChannelText(routing.FSText))
			},
			"",
		},

		{"rate-routing",
			`rate { tm_gps = 250 } routing { serial = "all" radio = "none" }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 250*time.Millisecond, c.Period(packet.TmGps))
				assert.Equal(t, time.Second, c.Period(packet.TmMain), "default kept")
				assert.Equal(t, "all", c.Routing["serial"])
			},
			"",
		},

		{"include-normalize", `
mode = "ready"
include "./empty" {}`,
			func(t testing.TB, c *Config) { assert.Equal(t, "ready", c.Mode) }, ""},

		{"include-optional", `
include "sensors-on" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.KindEnabled(packet.TmGps))
				assert.True(t, c.KindEnabled(packet.TmCamera))
				assert.False(t, c.KindEnabled(packet.TmRadio))
				assert.True(t, c.KindEnabled(packet.TmMain))
			}, ""},

		{"include-overwrites", `
cycle_ms = 20
include "cycle-50" {}`,
			func(t testing.TB, c *Config) { assert.Equal(t, 50, c.CycleMs) }, ""},

		{"error-required-include", `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-node", `node = "ground"`, nil, "ground"},
		{"error-mode", `mode = "cruise"`, nil, "mode=cruise"},
		{"error-encoding", `udp { encoding = "xml" }`, nil, "udp encoding=xml"},
		{"error-ground-mode", `ground { mode = "pigeon" }`, nil, "ground mode=pigeon"},
		{"error-rate-name", `rate { tm_sonar = 1 }`, nil, "tm_sonar"},
		{"error-routing-table", `routing { modem = "all" }`, nil, "table=modem"},
		{"error-routing-preset", `routing { serial = "most" }`, nil, "preset=most"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"sensors-on":   "sensors { gps = true imu = true baro = true camera = true }",
				"cycle-50":     "cycle_ms = 50",
				"error-syntax": "hello",
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				if !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, mkCheck(c))
	}
}

func TestDefaultValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestSetParameter(t *testing.T) {
	t.Parallel()

	type Case struct {
		key       string
		value     string
		check     func(testing.TB, *Config)
		expectErr func(error) bool
	}
	cases := []Case{
		{"gps", "on", func(t testing.TB, c *Config) { assert.True(t, c.Sensors.Gps) }, nil},
		{"camera", "true", func(t testing.TB, c *Config) {
			assert.True(t, c.Sensors.Camera)
			assert.False(t, c.Sensors.Gps, "camera key must not touch gps")
		}, nil},
		{"radio", "yes", func(t testing.TB, c *Config) { assert.True(t, c.Radio.Enable) }, nil},
		{"fs_bin", "1", func(t testing.TB, c *Config) { assert.True(t, c.FS.Binary) }, nil},
		{"debug_serial", "enable", func(t testing.TB, c *Config) { assert.True(t, c.Serial.Debug) }, nil},
		{"serial", "off", func(t testing.TB, c *Config) { assert.False(t, c.Serial.Enable) }, nil},
		{"ground_enc", "text", func(t testing.TB, c *Config) { assert.Equal(t, EncodingText, c.Ground.Encoding) }, nil},
		{"mem_min_kb", "128", func(t testing.TB, c *Config) { assert.Equal(t, uint64(128<<10), c.MinFreeMemory()) }, nil},
		{"rate_tm_baro", "50", func(t testing.TB, c *Config) {
			assert.Equal(t, 50*time.Millisecond, c.Period(packet.TmBaro))
		}, nil},
		{" imu ", " on ", func(t testing.TB, c *Config) { assert.True(t, c.Sensors.Imu) }, nil},
		{"gps", "maybe", nil, errors.IsNotValid},
		{"udp_enc", "xml", nil, errors.IsNotValid},
		{"mem_min_kb", "-1", nil, errors.IsNotValid},
		{"rate_tm_gps", "fast", nil, errors.IsNotValid},
		{"rate_tm_sonar", "1", nil, errors.IsNotFound},
		{"volume", "11", nil, errors.IsNotFound},
	}
	for _, c := range cases {
		c := c
		t.Run(strings.TrimSpace(c.key)+"="+strings.TrimSpace(c.value), func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			cfg.Serial.Enable = true
			before := *cfg
			err := cfg.SetParameter(c.key, c.value)
			if c.expectErr != nil {
				require.Error(t, err)
				assert.True(t, c.expectErr(err), err.Error())
				assert.Equal(t, before.Sensors, cfg.Sensors)
				assert.Equal(t, before.Memory, cfg.Memory)
				return
			}
			require.NoError(t, err)
			c.check(t, cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestParameterNames(t *testing.T) {
	t.Parallel()
	names := ParameterNames()
	cfg := Default()
	for _, name := range names {
		err := cfg.SetParameter(name, "1")
		assert.False(t, errors.IsNotFound(err), name)
	}
	assert.Contains(t, names, "rate_tm_main")
	assert.Contains(t, names, "sd_text")
}
