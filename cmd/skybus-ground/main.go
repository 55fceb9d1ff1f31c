package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/juju/errors"
	"github.com/temoto/skybus/internal/ground"
	"github.com/temoto/skybus/log2"
)

var log = log2.NewStderr(log2.LDebug)

func main() {
	flagConfig := flag.String("config", "ground.yaml", "")
	flag.Parse()

	log.SetFlags(log2.LInteractiveFlags)
	cfg, err := ground.ReadConfig(*flagConfig)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	log.SetLevel(cfg.Level())

	client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer client.Close()
	r := ground.NewReceiver(client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), log)

	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	log.Infof("listen=%s influx=%s bucket=%s", conn.LocalAddr(), cfg.Influx.URL, cfg.Influx.Bucket)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := r.Serve(ctx, conn); err != nil {
		log.Error(errors.ErrorStack(err))
	}
	packets, errs := r.Counters()
	log.Infof("stop packets=%d errors=%d", packets, errs)
}
