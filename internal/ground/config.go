package ground

import (
	"os"

	"github.com/juju/errors"
	"github.com/temoto/skybus/log2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen string `yaml:"listen"`
	Influx struct {
		URL    string `yaml:"url"`
		Token  string `yaml:"token"`
		Org    string `yaml:"org"`
		Bucket string `yaml:"bucket"`
	} `yaml:"influx"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func ParseConfig(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "ground config")
	}
	if c.Listen == "" {
		c.Listen = ":7500"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Influx.URL == "" || c.Influx.Bucket == "" {
		return nil, errors.NotValidf("ground config influx url and bucket required")
	}
	if _, ok := log2.ParseLevel(c.Log.Level); !ok {
		return nil, errors.NotValidf("ground config log level=%s", c.Log.Level)
	}
	return c, nil
}

func ReadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "ground config path=%s", path)
	}
	return ParseConfig(b)
}

func (c *Config) Level() log2.Level {
	l, _ := log2.ParseLevel(c.Log.Level)
	return l
}
