package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/routing"
)

const ratePrefix = "rate_"

type boolField func(*Config) *bool

var boolParams = map[string]boolField{
	"gps":          func(c *Config) *bool { return &c.Sensors.Gps },
	"imu":          func(c *Config) *bool { return &c.Sensors.Imu },
	"baro":         func(c *Config) *bool { return &c.Sensors.Baro },
	"camera":       func(c *Config) *bool { return &c.Sensors.Camera },
	"radio":        func(c *Config) *bool { return &c.Radio.Enable },
	"serial":       func(c *Config) *bool { return &c.Serial.Enable },
	"udp":          func(c *Config) *bool { return &c.UDP.Enable },
	"ground":       func(c *Config) *bool { return &c.Ground.Enable },
	"fs":           func(c *Config) *bool { return &c.FS.Enable },
	"sd":           func(c *Config) *bool { return &c.SD.Enable },
	"fs_text":      func(c *Config) *bool { return &c.FS.Text },
	"fs_bin":       func(c *Config) *bool { return &c.FS.Binary },
	"sd_text":      func(c *Config) *bool { return &c.SD.Text },
	"sd_bin":       func(c *Config) *bool { return &c.SD.Binary },
	"debug_serial": func(c *Config) *bool { return &c.Serial.Debug },
}

var encodingParams = map[string]func(*Config) *string{
	"serial_enc": func(c *Config) *string { return &c.Serial.Encoding },
	"udp_enc":    func(c *Config) *string { return &c.UDP.Encoding },
	"ground_enc": func(c *Config) *string { return &c.Ground.Encoding },
}

// ParameterNames lists every key accepted by SetParameter, rate keys included.
func ParameterNames() []string {
	names := make([]string, 0, len(boolParams)+len(encodingParams)+1+packet.KindCount)
	for k := range boolParams {
		names = append(names, k)
	}
	for k := range encodingParams {
		names = append(names, k)
	}
	names = append(names, "mem_min_kb")
	for _, k := range packet.AllKinds() {
		names = append(names, ratePrefix+k.String())
	}
	sort.Strings(names)
	return names
}

// SetParameter changes exactly one field named by key.
// Unknown key returns NotFound, unacceptable value NotValid.
func (c *Config) SetParameter(key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if f, ok := boolParams[key]; ok {
		b, err := routing.ParseBool(value)
		if err != nil {
			return errors.Annotatef(err, "parameter %s", key)
		}
		*f(c) = b
		return nil
	}
	if f, ok := encodingParams[key]; ok {
		if value != EncodingBinary && value != EncodingText {
			return errors.NotValidf("parameter %s=%s", key, value)
		}
		*f(c) = value
		return nil
	}
	if key == "mem_min_kb" {
		n, err := parseNonNegative(key, value)
		if err != nil {
			return err
		}
		c.Memory.MinFreeKB = n
		return nil
	}
	if strings.HasPrefix(key, ratePrefix) {
		k, err := packet.KindByName(key[len(ratePrefix):])
		if err != nil {
			return errors.NotFoundf("parameter %s", key)
		}
		n, err := parseNonNegative(key, value)
		if err != nil {
			return err
		}
		if c.Rate == nil {
			c.Rate = make(map[string]int)
		}
		c.Rate[k.String()] = n
		return nil
	}
	return errors.NotFoundf("parameter %s", key)
}

func parseNonNegative(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.NotValidf("parameter %s=%s", key, value)
	}
	return n, nil
}
