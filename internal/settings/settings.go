/*
 * lasercnc motioncore - Machine settings.
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

// Package settings loads the compile-time machine configuration named
// in spec.md §6: per-axis kinematics, ring capacities, step timing,
// real-time scheduling hints, and transport addresses. The settings
// loader itself is an external collaborator (spec.md §1 Non-goals);
// this package only supplies the interface it would satisfy, the way
// the S370 emulator's config/configparser package supplied a
// declarative key table for a loader that lived outside this spec's
// scope.
package settings

import (
	"fmt"

	"github.com/spf13/viper"
)

// Axis indices, fixed at three (X, Y, Z) per spec.md §3.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
	NumAxes = 3
)

// Axis holds the per-axis kinematic limits from spec.md §6.
type Axis struct {
	StepsPerMM  float64 `mapstructure:"steps_per_mm"`
	Acceleration float64 `mapstructure:"acceleration_mm_s2"`
	MaxRateMMPerMin float64 `mapstructure:"max_rate_mm_per_min"`
	MaxTravelMM float64 `mapstructure:"max_travel_mm"`
}

// Machine is the full compile-time configuration table from spec.md §6.
type Machine struct {
	Axes [NumAxes]Axis `mapstructure:"axes"`

	JunctionDeviationMM float64 `mapstructure:"junction_deviation_mm"`
	MinJunctionSpeedMMPerMin float64 `mapstructure:"min_junction_speed_mm_per_min"`
	ArcToleranceMM      float64 `mapstructure:"arc_tolerance_mm"`

	StepFrequencyHz        int `mapstructure:"step_frequency_hz"`
	MicrostepCount         int `mapstructure:"microstep_count"`
	AccelerationTicksPerSec int `mapstructure:"acceleration_ticks_per_sec"`

	GCodeQueueSize   int `mapstructure:"gcode_queue_size"`
	PlannerRingSize  int `mapstructure:"planner_ring_size"`
	SegmentRingSize  int `mapstructure:"segment_ring_size"`

	StepperCPU      int `mapstructure:"stepper_cpu"`
	StepperPriority int `mapstructure:"stepper_priority"`

	ListenAddress string `mapstructure:"listen_address"`
	ListenPort    int    `mapstructure:"listen_port"`
	SerialDevice  string `mapstructure:"serial_device"`
	SerialBaud    int    `mapstructure:"serial_baud"`

	DefaultMDIMode bool `mapstructure:"default_mdi_mode"`

	UnitsInches bool `mapstructure:"units_inches"`

	// Hardware attribute-file paths, per spec.md §6's sysfs-like surface.
	PulseDevicePath  string      `mapstructure:"pulse_device_path"`
	StepperSysfsDir  string      `mapstructure:"stepper_sysfs_dir"`
	AxisRegisterDirs [NumAxes]string `mapstructure:"axis_register_dirs"`

	LimitSwitchDevicePath     string `mapstructure:"limit_switch_device_path"`
	InterlockSwitchDevicePath string `mapstructure:"interlock_switch_device_path"`
}

// Default returns a conservative embedded default configuration,
// usable without a config file present (bring-up / tests).
func Default() *Machine {
	m := &Machine{
		JunctionDeviationMM:      0.01,
		MinJunctionSpeedMMPerMin: 0,
		ArcToleranceMM:           0.002,
		StepFrequencyHz:          30000,
		MicrostepCount:           16,
		AccelerationTicksPerSec:  100,
		GCodeQueueSize:           16,
		PlannerRingSize:          16,
		SegmentRingSize:          6,
		StepperCPU:               3,
		StepperPriority:          90,
		ListenAddress:            "0.0.0.0",
		ListenPort:               23,
		SerialDevice:             "/dev/ttyS0",
		SerialBaud:               115200,
		DefaultMDIMode:           false,
		PulseDevicePath:          "/dev/lasercnc-pulse",
		StepperSysfsDir:          "/sys/class/lasercnc/stepper",
		AxisRegisterDirs: [NumAxes]string{
			"/sys/class/lasercnc/axis0",
			"/sys/class/lasercnc/axis1",
			"/sys/class/lasercnc/axis2",
		},
		LimitSwitchDevicePath:     "/dev/input/lasercnc-limits",
		InterlockSwitchDevicePath: "/dev/input/lasercnc-switches",
	}
	for i := range m.Axes {
		m.Axes[i] = Axis{
			StepsPerMM:      80,
			Acceleration:    500,
			MaxRateMMPerMin: 6000,
			MaxTravelMM:     300,
		}
	}
	return m
}

// Load reads a YAML/TOML/JSON config file (viper auto-detects by
// extension) and environment overrides (prefix LASERCNC_), merging
// over Default() for any keys left unset.
func Load(path string) (*Machine, error) {
	m := Default()

	v := viper.New()
	v.SetEnvPrefix("LASERCNC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := v.Unmarshal(m); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants the rest of the motion core assumes
// hold for the lifetime of the process (spec.md §3: rings sized,
// axis parameters positive).
func (m *Machine) Validate() error {
	if m.PlannerRingSize < 2 {
		return fmt.Errorf("planner_ring_size must be >= 2, got %d", m.PlannerRingSize)
	}
	if m.SegmentRingSize < 2 {
		return fmt.Errorf("segment_ring_size must be >= 2, got %d", m.SegmentRingSize)
	}
	if m.StepFrequencyHz <= 0 {
		return fmt.Errorf("step_frequency_hz must be positive, got %d", m.StepFrequencyHz)
	}
	if m.AccelerationTicksPerSec <= 0 {
		return fmt.Errorf("acceleration_ticks_per_sec must be positive, got %d", m.AccelerationTicksPerSec)
	}
	for i, a := range m.Axes {
		if a.StepsPerMM <= 0 {
			return fmt.Errorf("axis %d: steps_per_mm must be positive, got %v", i, a.StepsPerMM)
		}
		if a.Acceleration <= 0 {
			return fmt.Errorf("axis %d: acceleration_mm_s2 must be positive, got %v", i, a.Acceleration)
		}
		if a.MaxRateMMPerMin <= 0 {
			return fmt.Errorf("axis %d: max_rate_mm_per_min must be positive, got %v", i, a.MaxRateMMPerMin)
		}
	}
	return nil
}

// DTSegment returns DT_SEGMENT, the target segment duration in
// minutes used throughout spec.md §4.3.
func (m *Machine) DTSegment() float64 {
	return 1.0 / (float64(m.AccelerationTicksPerSec) * 60.0)
}
