package main

import (
	"io"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/temoto/skybus/channel"
	"github.com/temoto/skybus/internal/config"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/routing"
	"github.com/temoto/skybus/transport"
)

// openTransports fills ts for every configured channel except serial.
// Disabled channels still get a transport so that set_parameter can turn them on.
func openTransports(cfg *config.Config, ts *[routing.ChannelCount]channel.Transport, log *log2.Log) ([]io.Closer, error) {
	closers := make([]io.Closer, 0, routing.ChannelCount)

	if cfg.UDP.Addr != "" {
		t := transport.NewUDP("udp", cfg.UDP.Addr, nil)
		ts[routing.UDPDebug], closers = t, append(closers, t)
	}

	if cfg.Ground.Addr != "" || cfg.Ground.Mode == config.GroundMQTT {
		switch cfg.Ground.Mode {
		case config.GroundUDP:
			t := transport.NewUDP("ground", cfg.Ground.Addr, nil)
			ts[routing.Ground], closers = t, append(closers, t)
		case config.GroundTCP:
			t := transport.NewTCP("ground", cfg.Ground.Addr, nil)
			ts[routing.Ground], closers = t, append(closers, t)
		case config.GroundMQTT:
			m := cfg.Ground.Mqtt
			t := transport.NewMQTT("ground", transport.MQTTConfig{
				Broker:   m.Broker,
				ClientID: m.ClientID,
				Username: m.Username,
				Password: m.Password,
				Topic:    m.Topic,
				QoS:      byte(m.QoS),
			}, log)
			// client keeps reconnecting, frames queue meanwhile
			if err := t.Connect(); err != nil {
				log.Errorf("ground err=%v", err)
			}
			ts[routing.Ground], closers = t, append(closers, t)
		}
	}

	if cfg.Radio.Enable {
		t, err := transport.OpenRadio(transport.RadioConfig{
			SpiBus:   cfg.Radio.SpiBus,
			SpiMode:  cfg.Radio.SpiMode,
			SpiSpeed: cfg.Radio.SpiSpeed,
		})
		if err != nil {
			return closers, errors.Annotate(err, "radio")
		}
		ts[routing.Radio], closers = t, append(closers, t)
	}

	node := cfg.LocalNode().String()
	for _, s := range []struct {
		storage      *config.Storage
		text, binary routing.Channel
		name         string
	}{
		{&cfg.FS, routing.FSText, routing.FSBinary, "fs"},
		{&cfg.SD, routing.SDText, routing.SDBinary, "sd"},
	} {
		if s.storage.Dir == "" {
			continue
		}
		ready := transport.DirReady(s.storage.Dir)
		minFree := uint64(s.storage.MinFreeKB) << 10
		text := transport.NewFile(s.name+"_text", filepath.Join(s.storage.Dir, node+".txt"), minFree, ready)
		bin := transport.NewFile(s.name+"_bin", filepath.Join(s.storage.Dir, node+".bin"), minFree, ready)
		ts[s.text], ts[s.binary] = text, bin
		closers = append(closers, text, bin)
	}
	return closers, nil
}
