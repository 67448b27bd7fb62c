package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
	"github.com/ericogr/as7341-to-mqtt/pkg/output"
	"github.com/ericogr/as7341-to-mqtt/pkg/output/console"
	"github.com/ericogr/as7341-to-mqtt/pkg/output/mqtt"
	promout "github.com/ericogr/as7341-to-mqtt/pkg/output/prometheus"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor/as7341"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatal(err)
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}
	log.Info("starting...")

	modules, err := setupModules(cfg.Modules)
	if err != nil {
		log.Fatal(err)
	}
	outs, err := initOutputs(cfg)
	if err != nil {
		_ = closeAll(modules, nil)
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	run(ctx, cfg.Inputs, modules, outs)

	log.Info("stopping...")
	if err := shutdown(stop, modules, outs); err != nil {
		log.WithError(err).Error("shutdown")
		os.Exit(1)
	}
}

// shutdown restores default signal handling before releasing modules and
// outputs, so it must run before any os.Exit.
func shutdown(stop context.CancelFunc, modules map[string]sensor.Module, outs []output.Output) error {
	stop()
	return closeAll(modules, outs)
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// setupModules builds and sets up every configured module exactly once.
func setupModules(cfgs []config.ModuleConfig) (map[string]sensor.Module, error) {
	modules := make(map[string]sensor.Module, len(cfgs))
	for _, mc := range cfgs {
		m, err := sensor.New(mc)
		if err != nil {
			_ = closeAll(modules, nil)
			return nil, err
		}
		log.WithFields(log.Fields{"module": mc.Name, "type": mc.Module, "simulate": mc.Simulate}).Info("module ready")
		modules[mc.Name] = m
	}
	return modules, nil
}

func initOutputs(cfg config.Config) ([]output.Output, error) {
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		var (
			o   output.Output
			err error
		)
		switch oc.Type {
		case "console":
			o = console.NewConsole()
		case "mqtt":
			mc := config.MQTTConfig{}
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			o, err = mqtt.NewMQTT(mc, cfg.Inputs)
		case "prometheus":
			pc := config.PrometheusConfig{}
			if oc.Prometheus != nil {
				pc = *oc.Prometheus
			}
			o, err = promout.New(pc)
		default:
			err = fmt.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			_ = closeAll(nil, outs)
			return nil, err
		}
		outs = append(outs, o)
	}
	return outs, nil
}

// run polls every input on its own interval until ctx is done.
func run(ctx context.Context, inputs []config.InputConfig, modules map[string]sensor.Module, outs []output.Output) {
	var wg sync.WaitGroup
	for _, in := range inputs {
		mod, ok := modules[in.Module]
		if !ok {
			log.WithFields(log.Fields{"sensor": in.Name, "module": in.Module}).Error("input references unknown module")
			continue
		}
		wg.Add(1)
		go func(in config.InputConfig, mod sensor.Module) {
			defer wg.Done()
			ticker := time.NewTicker(time.Duration(in.IntervalMs) * time.Millisecond)
			defer ticker.Stop()
			for {
				_ = pollOnce(in, mod, outs, time.Now())
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}(in, mod)
	}
	wg.Wait()
}

// pollOnce reads one value for in and publishes it to every output. Read
// errors are logged and counted; output errors are logged only.
func pollOnce(in config.InputConfig, mod sensor.Module, outs []output.Output, now time.Time) error {
	channel := in.TypeName()
	if c, ok := mod.(sensor.Channeler); ok {
		channel = c.Channel(in)
	}
	l := log.WithFields(log.Fields{"sensor": in.Name, "module": in.Module, "channel": channel})

	v, err := mod.Value(in)
	if err != nil {
		var cerr *as7341.ConfigurationError
		if errors.As(err, &cerr) {
			l.WithError(err).Error("invalid sensor configuration")
		} else {
			l.WithError(err).Error("sensor read failed")
		}
		for _, o := range outs {
			if r, ok := o.(output.ErrorRecorder); ok {
				r.RecordError(in.Name, err)
			}
		}
		return err
	}

	reading := sensor.Reading{
		Sensor:    in.Name,
		Module:    in.Module,
		Channel:   channel,
		Value:     round(v, in.DigitsOrDefault()),
		Timestamp: now,
	}
	l.WithField("value", reading.Value).Debug("read")
	var perr error
	for _, o := range outs {
		if err := o.Publish([]sensor.Reading{reading}); err != nil {
			l.WithError(err).Error("publish failed")
			perr = multierr.Append(perr, err)
		}
	}
	return perr
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

func closeAll(modules map[string]sensor.Module, outs []output.Output) error {
	var err error
	for _, o := range outs {
		err = multierr.Append(err, o.Close())
	}
	for name, m := range modules {
		if cerr := m.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("module %s: %w", name, cerr))
		}
	}
	return err
}
