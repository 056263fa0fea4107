/*
 * lasercnc motioncore - Controller entry point.
 *
 * Copyright 2026, The lasercnc Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command lasercnc is the laser-cutter CNC motion-core daemon: it
// wires settings, the hardware surface, the FSM aggregator, and the
// CLI transports into one running process, then waits for a shutdown
// signal. Structured the way the teacher's main.go is structured (flag
// parsing, a single long-lived orchestration object, a signal-driven
// shutdown), generalized from "boot an S/370 CPU and telnet servers"
// to "boot a motion core and CLI transports."
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lasercnc/motioncore/internal/console"
	"github.com/lasercnc/motioncore/internal/hardware/driverregs"
	"github.com/lasercnc/motioncore/internal/hardware/evdev"
	"github.com/lasercnc/motioncore/internal/hardware/pulsefifo"
	"github.com/lasercnc/motioncore/internal/logx"
	"github.com/lasercnc/motioncore/internal/machine"
	"github.com/lasercnc/motioncore/internal/scheduler"
	"github.com/lasercnc/motioncore/internal/serialcli"
	"github.com/lasercnc/motioncore/internal/settings"
	"github.com/lasercnc/motioncore/internal/tcpcli"
)

// version is the welcome-banner version string, per spec.md §6.
const version = "0.1.0"

// limitChannels/switchChannels name the evdev vectors' channel counts:
// one limit switch per axis, two interlocks (door, laser enable).
const (
	limitChannels  = settings.NumAxes
	switchChannels = 2
)

func main() {
	optConfig := flag.String("config", "", "Configuration file (YAML/TOML/JSON)")
	optLogFile := flag.String("log", "", "Log file (stderr if unset)")
	optTransport := flag.String("transport", "tcp", "CLI transport: tcp, serial, or console")
	flag.Parse()

	var logOut *os.File = os.Stderr
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lasercnc: open log file: %v\n", err)
			os.Exit(1)
		}
		logOut = f
	}
	log := logx.New(logOut, slog.LevelInfo)
	slog.SetDefault(log)
	log.Info("lasercnc starting", "version", version)

	cfg, err := settings.Load(*optConfig)
	if err != nil {
		log.Error("lasercnc: failed to load settings", "err", err)
		os.Exit(1)
	}

	pulse, err := pulsefifo.Open(pulsefifoConfig(cfg))
	if err != nil {
		log.Error("lasercnc: failed to open pulse FIFO", "err", err)
		os.Exit(1)
	}
	defer pulse.Close()

	axisRegs := [settings.NumAxes]*driverregs.AxisRegisters{}
	for i, dir := range cfg.AxisRegisterDirs {
		axisRegs[i] = driverregs.Open(dir)
		// Bring-up verification per spec.md §7: poll DRV_STATUS up to
		// 10 rounds before treating a non-responding driver as a fault.
		// A mismatch here is logged, not fatal, since a simulated or
		// partially-assembled machine may have no driver attached yet.
		if err := driverregs.VerifyBringUp(axisRegs[i], driverregs.RegDrvStatus, 0); err != nil {
			log.Warn("lasercnc: stepper driver bring-up check failed", "axis", i, "err", err)
		}
	}

	limits := evdev.NewVector(limitChannels, make([]bool, limitChannels))
	switches := evdev.NewVector(switchChannels, make([]bool, switchChannels))

	m := machine.New(machine.Config{
		Settings: cfg,
		Log:      log,
		Hardware: pulse,
		Pulse:    pulse,
		Limits:   limits,
		Switches: switches,
		Version:  version,
	})

	startEvdevWatcher(log, cfg.LimitSwitchDevicePath, limits, func(err error) {
		log.Error("lasercnc: limit switch device fault", "err", err)
		m.ReportHardwareFault()
	})
	startEvdevWatcher(log, cfg.InterlockSwitchDevicePath, switches, func(err error) {
		log.Error("lasercnc: interlock switch device fault", "err", err)
		m.ReportHardwareFault()
	})

	m.Start()

	sched := &scheduler.Native{CPU: cfg.StepperCPU, Priority: cfg.StepperPriority}
	if err := m.RunScheduler(sched); err != nil {
		log.Error("lasercnc: failed to start step generator", "err", err)
		os.Exit(1)
	}

	if *optTransport == "console" {
		// The console transport is a foreground REPL (bring-up/bench use,
		// no network peer to wait on), so it replaces the signal-wait
		// path entirely rather than returning a background shutdown func.
		console.Run(m, version, "lasercnc> ", log)
		log.Info("lasercnc shutting down")
		m.Stop()
		log.Info("lasercnc stopped")
		return
	}

	shutdown := startTransport(*optTransport, cfg, m, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("lasercnc shutting down")
	m.Stop()
	shutdown()
	log.Info("lasercnc stopped")
}

// pulsefifoConfig derives the sysfs-style attribute-file paths from
// settings.Machine's StepperSysfsDir, per spec.md §6's "sysfs-like
// surface" (enable/disable/run/stop/state/step-frequency attribute
// files living alongside one another in a device class directory).
func pulsefifoConfig(cfg *settings.Machine) pulsefifo.Config {
	dir := cfg.StepperSysfsDir
	return pulsefifo.Config{
		PulsePath:   cfg.PulseDevicePath,
		StatePath:   dir + "/state",
		EnablePath:  dir + "/enable",
		DisablePath: dir + "/disable",
		RunPath:     dir + "/run",
		StopPath:    dir + "/stop",
		FreqPath:    dir + "/step_frequency",
	}
}

// startEvdevWatcher opens an input-event device and launches its
// watcher goroutine, per spec.md §6's "input-event devices delivering
// typed code/value records." A device that fails to open is logged as
// a warning and left unwatched rather than aborting startup, since a
// machine missing one interlock channel is still safer running
// degraded than not running at all during bring-up.
func startEvdevWatcher(log *slog.Logger, path string, vec *evdev.Vector, onFault func(error)) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("lasercnc: input-event device unavailable", "path", path, "err", err)
		return
	}
	w := evdev.NewWatcher(f, vec, onFault)
	go w.Run()
}

// startTransport brings up the configured CLI transport and returns a
// shutdown func, per spec.md §1's "CLI transports (serial line vs.
// TCP)" external collaborators.
func startTransport(kind string, cfg *settings.Machine, m *machine.Machine, log *slog.Logger) func() {
	switch kind {
	case "serial":
		sess, err := serialcli.Open(serialcli.Config{
			Name:    cfg.SerialDevice,
			Baud:    cfg.SerialBaud,
			Machine: m,
			Version: version,
			Log:     log,
		})
		if err != nil {
			log.Error("lasercnc: failed to open serial CLI", "err", err)
			os.Exit(1)
		}
		return sess.Close
	default:
		addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
		srv, err := tcpcli.Listen(addr, m, version, log)
		if err != nil {
			log.Error("lasercnc: failed to listen", "addr", addr, "err", err)
			os.Exit(1)
		}
		log.Info("lasercnc listening", "addr", srv.Addr().String())
		return srv.Stop
	}
}
