package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/alive/v2"
	"github.com/temoto/skybus/channel"
	"github.com/temoto/skybus/internal/bus"
	"github.com/temoto/skybus/internal/config"
	"github.com/temoto/skybus/internal/persist"
	"github.com/temoto/skybus/internal/spool"
	"github.com/temoto/skybus/internal/sysinfo"
	"github.com/temoto/skybus/log2"
	"github.com/temoto/skybus/packet"
	"github.com/temoto/skybus/serial"
)

const (
	// exit codes, supervisor restarts on non-zero
	exitReboot int32 = 3
	exitFail   int32 = 1
)

var log = log2.NewStderr(log2.LDebug)

// rebooter finishes the control loop, process supervisor does the restart.
type rebooter struct {
	a    *alive.Alive
	code int32 // atomic
}

func (self *rebooter) Reboot(reason string) {
	log.Infof("reboot reason=%s", reason)
	self.stop(exitReboot)
}

func (self *rebooter) stop(code int32) {
	atomic.CompareAndSwapInt32(&self.code, 0, code)
	self.a.Stop()
}

func (self *rebooter) exitCode() int { return int(atomic.LoadInt32(&self.code)) }

// errorEvents carries errors logged outside the bus to the control loop,
// which publishes them as status events. Full buffer drops.
type errorEvents chan error

func (self errorEvents) hook(e error) {
	select {
	case self <- e:
	default:
	}
}

func main() {
	flagConfig := flag.String("config", "skybus.hcl", "")
	flag.Parse()

	if sdnotify("STATUS=starting") || !isatty.IsTerminal(os.Stderr.Fd()) {
		// under systemd journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	cfg := config.MustReadConfig(log, config.NewOsFullReader(), *flagConfig)
	log.SetLevel(cfg.Level())
	log.Debugf("config=%+v", cfg)

	a := alive.NewAlive()
	reboot := &rebooter{a: a}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := channel.NewMetrics(reg)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen, reg, a)
	}

	opt := bus.Options{
		Rebooter:    reboot,
		Metrics:     metrics,
		MemoryProbe: sysinfo.MemoryProbe,
	}

	var port *serial.Port
	if cfg.Serial.Enable {
		var err error
		port, err = serial.OpenPort(cfg.Serial.Device, cfg.Serial.Baud, cfg.Cycle())
		if err != nil {
			log.Fatal(errors.ErrorStack(err))
		}
		opt.Serial = port
	}

	closers, err := openTransports(cfg, &opt.Transports, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	overrides := &persist.Overrides{}
	opt.Overrides = overrides
	if cfg.Persist.Root != "" {
		p, err := persist.Open(cfg.Persist.Root, "overrides", overrides, log)
		if err != nil {
			log.Errorf("persist open err=%v", errors.ErrorStack(err))
		} else {
			opt.Persist = p
		}
		sp, err := spool.Open(filepath.Join(cfg.Persist.Root, "spool"), log)
		if err != nil {
			log.Errorf("spool open err=%v", errors.ErrorStack(err))
		} else {
			opt.Spool = sp
			closers = append(closers, sp)
		}
	}

	// bus logs its own events, hook would echo them
	b := bus.New(cfg, opt, log.Clone(cfg.Level()))
	if err := b.Start(); err != nil {
		log.Errorf("start err=%v", errors.ErrorStack(err))
	}

	rx := make(chan []byte, 16)
	if port != nil {
		a.Add(1)
		go func() {
			defer a.Done()
			if err := serial.ReadLoop(port, rx, a.StopChan()); err != nil && a.IsRunning() {
				log.Errorf("serial err=%v", errors.ErrorStack(err))
				reboot.stop(exitFail)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-sigCh
		log.Infof("signal=%v", s)
		a.Stop()
	}()

	errCh := make(errorEvents, 8)
	log.SetErrorFunc(errCh.hook)

	sdnotify(daemon.SdNotifyReady)
	log.Infof("node=%s running cycle=%v", b.Local(), cfg.Cycle())

	ticker := time.NewTicker(cfg.Cycle())
	stopCh := a.StopChan()
	for a.IsRunning() {
		select {
		case <-stopCh:
		case chunk := <-rx:
			b.Feed(chunk)
		case e := <-errCh:
			b.PublishEvent(b.Local(), packet.SubCore, packet.SeverityError, e.Error())
		case now := <-ticker.C:
			b.Tick(now)
		}
	}
	ticker.Stop()
	log.SetErrorFunc(nil)
	sdnotify(daemon.SdNotifyStopping)

	// reboot command has already closed the bus
	if reboot.exitCode() != int(exitReboot) {
		b.Flush()
		if err := b.Close(); err != nil {
			log.Errorf("close err=%v", errors.ErrorStack(err))
		}
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Errorf("close err=%v", err)
		}
	}
	if port != nil {
		_ = port.Close()
	}
	a.Wait()
	os.Exit(reboot.exitCode())
}

func serveMetrics(addr string, reg *prometheus.Registry, a *alive.Alive) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Infof("metrics listen=%s", addr)
	go func() {
		<-a.StopChan()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("metrics err=%v", err)
	}
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
