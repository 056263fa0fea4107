/*
 * lasercnc motioncore - Pulse FIFO device surface.
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

package pulsefifo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writeFile %s: %v", name, err)
	}
	return p
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		PulsePath:   writeFile(t, dir, "pulse", ""),
		StatePath:   writeFile(t, dir, "state", "idle\n"),
		EnablePath:  writeFile(t, dir, "enable", ""),
		DisablePath: writeFile(t, dir, "disable", ""),
		RunPath:     writeFile(t, dir, "run", ""),
		StopPath:    writeFile(t, dir, "stop", ""),
		FreqPath:    writeFile(t, dir, "freq", ""),
	}
}

func TestWritePulseWritesSingleByte(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if err := dev.WritePulse(0b1011); err != nil {
		t.Fatalf("WritePulse: %v", err)
	}

	got, err := os.ReadFile(cfg.PulsePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 1 || got[0] != 0b1011 {
		t.Fatalf("pulse file = %v, want [0b1011]", got)
	}
}

func TestStateReadsAttribute(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	st, err := dev.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st != StateIdle {
		t.Fatalf("State() = %v, want idle", st)
	}
}

func TestStateRejectsUnknownValue(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.StatePath, []byte("bogus"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if _, err := dev.State(); err == nil {
		t.Fatalf("expected an error for an unrecognised state attribute")
	}
}

func TestEnableDisableRunStopWriteOne(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	checks := []struct {
		name string
		fn   func() error
		path string
	}{
		{"Enable", dev.Enable, cfg.EnablePath},
		{"Disable", dev.Disable, cfg.DisablePath},
		{"Run", dev.Run, cfg.RunPath},
		{"Stop", dev.Stop, cfg.StopPath},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		got, err := os.ReadFile(c.path)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", c.path, err)
		}
		if string(got) != "1" {
			t.Fatalf("%s wrote %q, want \"1\"", c.name, got)
		}
	}
}

func TestSetStepFrequencyWritesDecimal(t *testing.T) {
	cfg := testConfig(t)
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close()

	if err := dev.SetStepFrequency(30000); err != nil {
		t.Fatalf("SetStepFrequency: %v", err)
	}
	got, err := os.ReadFile(cfg.FreqPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "30000" {
		t.Fatalf("freq file = %q, want \"30000\"", got)
	}
}

func TestOpenFailsForMissingPulseFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PulsePath = filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected an error opening a missing pulse FIFO")
	}
}
