// Package config loads the immutable device configuration: logical channel
// assignments, temperature limits, the vacuum gear table, PID gains and all
// sampling periods. The loaded Config is treated as read-only by every other
// package.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the device configuration.
type Config struct {
	Channels    ChannelConfig     `yaml:"channels"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Pressure    PressureConfig    `yaml:"pressure"`
	UI          UIConfig          `yaml:"ui"`
	Safety      SafetyConfig      `yaml:"safety"`
	Status      StatusConfig      `yaml:"status"`
	Mock        MockConfig        `yaml:"mock"`

	// LockTimeout bounds every shared-state lock acquisition. A write that
	// cannot take the lock in time is skipped for that cycle.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// ChannelConfig names the logical channels the core talks through. These
// are bus/chip identifiers and line offsets, not physical pin numbers.
type ChannelConfig struct {
	I2CBus       string `yaml:"i2c_bus"`       // pressure transducer bus
	PressureAddr uint16 `yaml:"pressure_addr"` // 7-bit device address
	SPIPort      string `yaml:"spi_port"`      // thermocouple converter port
	GPIOChip     string `yaml:"gpio_chip"`
	ButtonStop   int    `yaml:"button_stop"` // line offsets on GPIOChip
	ButtonUp     int    `yaml:"button_up"`
	ButtonDown   int    `yaml:"button_down"`
	HeatPWM      string `yaml:"heat_pwm"` // sysfs pwm attributes, 0-255
	PumpPWM      string `yaml:"pump_pwm"`
}

// PIDGains holds one control loop's gains.
type PIDGains struct {
	Kp          float32 `yaml:"kp"`
	Ki          float32 `yaml:"ki"`
	Kd          float32 `yaml:"kd"`
	IntegralMax float32 `yaml:"integral_max"`
}

// TemperatureConfig contains the heating loop parameters.
type TemperatureConfig struct {
	TargetC    float32       `yaml:"target_c"`
	MinC       float32       `yaml:"min_c"`
	MaxC       float32       `yaml:"max_c"`
	EmergencyC float32       `yaml:"emergency_c"`
	Gains      PIDGains      `yaml:"gains"`
	Period     time.Duration `yaml:"period"`
}

// PressureConfig contains the vacuum loop parameters. FullTargetKPa is the
// pressure at the top gear; each gear scales it linearly.
type PressureConfig struct {
	FullTargetKPa float32 `yaml:"full_target_kpa"`
	Gears         int     `yaml:"gears"`
	DefaultGear   int     `yaml:"default_gear"`

	// Policy selects the control variant: "gear" (banded duty over the gear
	// table) or "continuous" (PID toward an additively adjusted target).
	Policy   string  `yaml:"policy"`
	DeltaKPa float32 `yaml:"delta_kpa"` // UP/DOWN step in continuous mode

	BandKPa   float32 `yaml:"band_kpa"`
	RaiseDuty uint8   `yaml:"raise_duty"`
	LowerDuty uint8   `yaml:"lower_duty"`
	HoldDuty  uint8   `yaml:"hold_duty"`

	Gains  PIDGains      `yaml:"gains"`
	Period time.Duration `yaml:"period"`

	// SettleTime is the conversion delay between triggering the transducer
	// and reading its data registers (datasheet window 5-10ms).
	SettleTime time.Duration `yaml:"settle_time"`
	CoefA      float32       `yaml:"coef_a"`
	CoefB      float32       `yaml:"coef_b"`
}

// UIConfig contains the input-scan loop parameters.
type UIConfig struct {
	Period      time.Duration `yaml:"period"`
	Debounce    time.Duration `yaml:"debounce"`
	LongPress   time.Duration `yaml:"long_press"`
	StatusEvery time.Duration `yaml:"status_every"`
}

// SafetyConfig contains the safety-monitor loop parameters.
type SafetyConfig struct {
	Period     time.Duration `yaml:"period"`
	AlarmEvery time.Duration `yaml:"alarm_every"` // over-temperature alarm
	ChirpEvery time.Duration `yaml:"chirp_every"` // operator-stop chirp
	WarnEvery  time.Duration `yaml:"warn_every"`  // invalid-sensor warning
}

// StatusConfig names the optional serial status sink. An empty port
// disables it (snapshots still go to the log).
type StatusConfig struct {
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

// MockConfig parameterizes the simulated plant used by -mock runs.
type MockConfig struct {
	AmbientC   float32 `yaml:"ambient_c"`
	HeatRate   float32 `yaml:"heat_rate"` // °C/s at full duty
	CoolRate   float32 `yaml:"cool_rate"` // °C/s toward ambient
	AmbientKPa float32 `yaml:"ambient_kpa"`
	PumpRate   float32 `yaml:"pump_rate"`  // kPa/s toward vacuum at full duty
	LeakRate   float32 `yaml:"leak_rate"`  // kPa/s back toward ambient
	FailEvery  int     `yaml:"fail_every"` // inject a bus fault every Nth read (0 = never)
}

// Default returns a configuration matching the shipped device.
func Default() *Config {
	return &Config{
		Channels: ChannelConfig{
			I2CBus:       "/dev/i2c-1",
			PressureAddr: 0x7F,
			SPIPort:      "/dev/spidev0.0",
			GPIOChip:     "gpiochip0",
			ButtonStop:   19,
			ButtonUp:     20,
			ButtonDown:   21,
			HeatPWM:      "/sys/class/hwmon/hwmon0/pwm1",
			PumpPWM:      "/sys/class/hwmon/hwmon0/pwm2",
		},
		Temperature: TemperatureConfig{
			TargetC:    37.0,
			MinC:       30.0,
			MaxC:       42.0,
			EmergencyC: 45.0,
			Gains:      PIDGains{Kp: 25.0, Ki: 0.5, Kd: 5.0, IntegralMax: 100.0},
			Period:     500 * time.Millisecond,
		},
		Pressure: PressureConfig{
			FullTargetKPa: -2.0,
			Gears:         10,
			DefaultGear:   5,
			Policy:        "gear",
			DeltaKPa:      0.2,
			BandKPa:       0.2,
			RaiseDuty:     204,
			LowerDuty:     102,
			HoldDuty:      153,
			Gains:         PIDGains{Kp: 60.0, Ki: 4.0, Kd: 0.0, IntegralMax: 50.0},
			Period:        100 * time.Millisecond,
			SettleTime:    8 * time.Millisecond,
			CoefA:         7.5,
			CoefB:         -3.75,
		},
		UI: UIConfig{
			Period:      50 * time.Millisecond,
			Debounce:    50 * time.Millisecond,
			LongPress:   3 * time.Second,
			StatusEvery: 10 * time.Second,
		},
		Safety: SafetyConfig{
			Period:     500 * time.Millisecond,
			AlarmEvery: 1 * time.Second,
			ChirpEvery: 2 * time.Second,
			WarnEvery:  5 * time.Second,
		},
		Status: StatusConfig{
			SerialPort: "",
			BaudRate:   115200,
		},
		Mock: MockConfig{
			AmbientC:   25.0,
			HeatRate:   0.8,
			CoolRate:   0.05,
			AmbientKPa: 0.0,
			PumpRate:   0.5,
			LeakRate:   0.1,
		},
		LockTimeout: 10 * time.Millisecond,
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; partial files are backfilled field by field.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations the safety design cannot honor.
func (c *Config) Validate() error {
	t := c.Temperature
	if t.MinC >= t.MaxC {
		return fmt.Errorf("temperature limits inverted: min %.1f >= max %.1f", t.MinC, t.MaxC)
	}
	if t.MaxC >= t.EmergencyC {
		return fmt.Errorf("temperature max %.1f must stay below emergency threshold %.1f", t.MaxC, t.EmergencyC)
	}
	if t.TargetC < t.MinC || t.TargetC > t.MaxC {
		return fmt.Errorf("default target %.1f outside [%.1f, %.1f]", t.TargetC, t.MinC, t.MaxC)
	}
	p := c.Pressure
	if p.Gears < 1 {
		return fmt.Errorf("gear count must be positive, got %d", p.Gears)
	}
	if p.DefaultGear < 1 || p.DefaultGear > p.Gears {
		return fmt.Errorf("default gear %d outside 1..%d", p.DefaultGear, p.Gears)
	}
	switch p.Policy {
	case "gear", "continuous":
	default:
		return fmt.Errorf("unknown pressure policy %q", p.Policy)
	}
	return nil
}

// ensureDefaults backfills zero-valued fields from Default.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Channels.GPIOChip == "" {
		c.Channels.GPIOChip = def.Channels.GPIOChip
	}
	if c.Channels.PressureAddr == 0 {
		c.Channels.PressureAddr = def.Channels.PressureAddr
	}
	if c.Channels.HeatPWM == "" {
		c.Channels.HeatPWM = def.Channels.HeatPWM
	}
	if c.Channels.PumpPWM == "" {
		c.Channels.PumpPWM = def.Channels.PumpPWM
	}

	if c.Temperature.EmergencyC == 0 {
		c.Temperature.EmergencyC = def.Temperature.EmergencyC
	}
	if c.Temperature.Period == 0 {
		c.Temperature.Period = def.Temperature.Period
	}
	if c.Temperature.Gains == (PIDGains{}) {
		c.Temperature.Gains = def.Temperature.Gains
	}
	if c.Temperature.MinC == 0 && c.Temperature.MaxC == 0 {
		c.Temperature.MinC = def.Temperature.MinC
		c.Temperature.MaxC = def.Temperature.MaxC
	}
	if c.Temperature.TargetC == 0 {
		c.Temperature.TargetC = def.Temperature.TargetC
	}

	if c.Pressure.FullTargetKPa == 0 {
		c.Pressure.FullTargetKPa = def.Pressure.FullTargetKPa
	}
	if c.Pressure.Gears == 0 {
		c.Pressure.Gears = def.Pressure.Gears
	}
	if c.Pressure.DefaultGear == 0 {
		c.Pressure.DefaultGear = def.Pressure.DefaultGear
	}
	if c.Pressure.Policy == "" {
		c.Pressure.Policy = def.Pressure.Policy
	}
	if c.Pressure.Period == 0 {
		c.Pressure.Period = def.Pressure.Period
	}
	if c.Pressure.SettleTime == 0 {
		c.Pressure.SettleTime = def.Pressure.SettleTime
	}
	if c.Pressure.CoefA == 0 {
		c.Pressure.CoefA = def.Pressure.CoefA
		c.Pressure.CoefB = def.Pressure.CoefB
	}
	if c.Pressure.Gains == (PIDGains{}) {
		c.Pressure.Gains = def.Pressure.Gains
	}
	if c.Pressure.RaiseDuty == 0 && c.Pressure.LowerDuty == 0 && c.Pressure.HoldDuty == 0 {
		c.Pressure.RaiseDuty = def.Pressure.RaiseDuty
		c.Pressure.LowerDuty = def.Pressure.LowerDuty
		c.Pressure.HoldDuty = def.Pressure.HoldDuty
	}
	if c.Pressure.BandKPa == 0 {
		c.Pressure.BandKPa = def.Pressure.BandKPa
	}
	if c.Pressure.DeltaKPa == 0 {
		c.Pressure.DeltaKPa = def.Pressure.DeltaKPa
	}

	if c.UI.Period == 0 {
		c.UI.Period = def.UI.Period
	}
	if c.UI.Debounce == 0 {
		c.UI.Debounce = def.UI.Debounce
	}
	if c.UI.LongPress == 0 {
		c.UI.LongPress = def.UI.LongPress
	}
	if c.UI.StatusEvery == 0 {
		c.UI.StatusEvery = def.UI.StatusEvery
	}

	if c.Safety.Period == 0 {
		c.Safety.Period = def.Safety.Period
	}
	if c.Safety.AlarmEvery == 0 {
		c.Safety.AlarmEvery = def.Safety.AlarmEvery
	}
	if c.Safety.ChirpEvery == 0 {
		c.Safety.ChirpEvery = def.Safety.ChirpEvery
	}
	if c.Safety.WarnEvery == 0 {
		c.Safety.WarnEvery = def.Safety.WarnEvery
	}

	if c.Status.BaudRate == 0 {
		c.Status.BaudRate = def.Status.BaudRate
	}

	if c.Mock.AmbientC == 0 {
		c.Mock.AmbientC = def.Mock.AmbientC
	}
	if c.Mock.HeatRate == 0 {
		c.Mock.HeatRate = def.Mock.HeatRate
	}
	if c.Mock.CoolRate == 0 {
		c.Mock.CoolRate = def.Mock.CoolRate
	}
	if c.Mock.PumpRate == 0 {
		c.Mock.PumpRate = def.Mock.PumpRate
	}
	if c.Mock.LeakRate == 0 {
		c.Mock.LeakRate = def.Mock.LeakRate
	}

	if c.LockTimeout == 0 {
		c.LockTimeout = def.LockTimeout
	}
}
