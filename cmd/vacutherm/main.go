// Command vacutherm runs the control core of the heated negative-pressure
// eyewear device: the heating loop, the vacuum loop, the input scan and the
// safety monitor, against real buses or a simulated plant (-mock).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/alert"
	"github.com/oculab/vacutherm/pkg/bus"
	"github.com/oculab/vacutherm/pkg/button"
	"github.com/oculab/vacutherm/pkg/config"
	"github.com/oculab/vacutherm/pkg/control"
	"github.com/oculab/vacutherm/pkg/pid"
	"github.com/oculab/vacutherm/pkg/safety"
	"github.com/oculab/vacutherm/pkg/sensor"
	"github.com/oculab/vacutherm/pkg/state"
	"github.com/oculab/vacutherm/pkg/status"
	"github.com/oculab/vacutherm/pkg/task"
)

func main() {
	var (
		configFlag    = flag.String("config", "vacutherm.yaml", "Configuration file path")
		portFlag      = flag.String("p", "", "Serial status port override (e.g., /dev/ttyACM0)")
		mockFlag      = flag.Bool("mock", false, "Run against a simulated plant instead of hardware")
		calibrateFlag = flag.Bool("calibrate", false, "Zero the pressure transducer before starting")
		debugFlag     = flag.Bool("debug", false, "Verbose development logging")
	)
	flag.Parse()

	logger, err := newLogger(*debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if *portFlag != "" {
		cfg.Status.SerialPort = *portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *mockFlag, *calibrateFlag); err != nil {
		logger.Fatal("device run failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// hardware bundles the opened device endpoints so run can close them in
// one place.
type hardware struct {
	thermo   bus.FrameBus
	pressure bus.RegisterBus
	heatAct  control.Actuator
	pumpAct  control.Actuator
	stopPin  button.Pin
	upPin    button.Pin
	downPin  button.Pin
}

func (h *hardware) close(log *zap.Logger) {
	for _, c := range []interface{ Close() error }{h.thermo, h.pressure, h.stopPin, h.upPin, h.downPin} {
		if err := c.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}
}

func openReal(cfg *config.Config) (*hardware, error) {
	thermo, err := bus.OpenSPI(cfg.Channels.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("thermocouple port: %w", err)
	}
	press, err := bus.OpenI2C(cfg.Channels.I2CBus, cfg.Channels.PressureAddr)
	if err != nil {
		return nil, fmt.Errorf("pressure bus: %w", err)
	}
	heat, err := control.OpenSysfsPWM(cfg.Channels.HeatPWM)
	if err != nil {
		return nil, fmt.Errorf("heater output: %w", err)
	}
	pump, err := control.OpenSysfsPWM(cfg.Channels.PumpPWM)
	if err != nil {
		return nil, fmt.Errorf("pump output: %w", err)
	}
	h := &hardware{thermo: thermo, pressure: press, heatAct: heat, pumpAct: pump}
	for _, b := range []struct {
		offset int
		dst    *button.Pin
	}{
		{cfg.Channels.ButtonStop, &h.stopPin},
		{cfg.Channels.ButtonUp, &h.upPin},
		{cfg.Channels.ButtonDown, &h.downPin},
	} {
		pin, err := button.RequestPin(cfg.Channels.GPIOChip, b.offset)
		if err != nil {
			return nil, fmt.Errorf("button line %d: %w", b.offset, err)
		}
		*b.dst = pin
	}
	return h, nil
}

func openMock(cfg *config.Config) *hardware {
	plant := bus.NewPlant(bus.PlantConfig{
		AmbientC:   cfg.Mock.AmbientC,
		HeatRate:   cfg.Mock.HeatRate,
		CoolRate:   cfg.Mock.CoolRate,
		AmbientKPa: cfg.Mock.AmbientKPa,
		PumpRate:   cfg.Mock.PumpRate,
		LeakRate:   cfg.Mock.LeakRate,
		FailEvery:  cfg.Mock.FailEvery,
		CoefA:      cfg.Pressure.CoefA,
		CoefB:      cfg.Pressure.CoefB,
	}, time.Now())
	return &hardware{
		thermo:   plant.ThermoPort(),
		pressure: plant.PressurePort(),
		heatAct:  control.ActuatorFunc(plant.SetHeatDuty),
		pumpAct:  control.ActuatorFunc(plant.SetPumpDuty),
		stopPin:  &button.FakePin{},
		upPin:    &button.FakePin{},
		downPin:  &button.FakePin{},
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, mock, calibrate bool) error {
	var hw *hardware
	if mock {
		log.Info("running against simulated plant")
		hw = openMock(cfg)
	} else {
		var err error
		hw, err = openReal(cfg)
		if err != nil {
			return err
		}
	}
	defer hw.close(log)

	tempSensor := sensor.NewTemperature(hw.thermo)
	pressSensor := sensor.NewPressure(hw.pressure, cfg.Pressure.CoefA, cfg.Pressure.CoefB, cfg.Pressure.SettleTime)

	if err := tempSensor.Probe(); err != nil {
		log.Warn("thermocouple probe failed, starting fail-soft", zap.Error(err))
	} else if junction, err := tempSensor.ReadInternal(); err == nil {
		log.Info("thermocouple online", zap.Float32("junction_c", junction))
	}
	if err := pressSensor.Probe(); err != nil {
		log.Warn("pressure transducer probe failed, starting fail-soft", zap.Error(err))
	}
	if calibrate {
		offset, err := pressSensor.CalibrateZero()
		if err != nil {
			log.Warn("zero calibration incomplete", zap.Error(err))
		} else {
			log.Info("pressure zero calibrated", zap.Float32("offset_kpa", offset))
		}
	}

	policy, err := control.ParsePolicy(cfg.Pressure.Policy)
	if err != nil {
		return err
	}

	store := state.New(state.Params{
		LockTimeout: cfg.LockTimeout,
		MinTargetC:  cfg.Temperature.MinC,
		MaxTargetC:  cfg.Temperature.MaxC,
		InitialPressure: state.PressureGroup{
			Gear:   cfg.Pressure.DefaultGear,
			Target: control.TargetForGear(cfg.Pressure.FullTargetKPa, cfg.Pressure.DefaultGear, cfg.Pressure.Gears),
		},
		InitialMode: state.ModeGroup{Enabled: true},
	})
	if err := store.SetTargetTemperature(cfg.Temperature.TargetC); err != nil {
		return err
	}

	tg := cfg.Temperature.Gains
	heat := control.NewHeating(
		pid.New(tg.Kp, tg.Ki, tg.Kd, tg.IntegralMax),
		hw.heatAct,
		control.HeatingLimits{MinC: cfg.Temperature.MinC, MaxC: cfg.Temperature.MaxC, EmergencyC: cfg.Temperature.EmergencyC},
	)

	pg := cfg.Pressure.Gains
	pump := control.NewPump(policy, control.PumpBands{
		BandKPa:   cfg.Pressure.BandKPa,
		RaiseDuty: cfg.Pressure.RaiseDuty,
		LowerDuty: cfg.Pressure.LowerDuty,
		HoldDuty:  cfg.Pressure.HoldDuty,
	}, pid.New(pg.Kp, pg.Ki, pg.Kd, pg.IntegralMax), hw.pumpAct)

	sounder := alert.NewLogger(log)
	sounder.Beep() // power-on acknowledgement

	sink, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	monitor := safety.NewMonitor(sounder, log, safety.Intervals{
		AlarmEvery: cfg.Safety.AlarmEvery,
		ChirpEvery: cfg.Safety.ChirpEvery,
		WarnEvery:  cfg.Safety.WarnEvery,
	})

	ui := task.NewUI(
		button.NewWithDebounce(hw.stopPin, cfg.UI.Debounce),
		button.NewWithDebounce(hw.upPin, cfg.UI.Debounce),
		button.NewWithDebounce(hw.downPin, cfg.UI.Debounce),
		store, sounder, sink, log,
		task.UIParams{
			Period:        cfg.UI.Period,
			LongPress:     cfg.UI.LongPress,
			Policy:        policy,
			FullTargetKPa: cfg.Pressure.FullTargetKPa,
			Gears:         cfg.Pressure.Gears,
			DeltaKPa:      cfg.Pressure.DeltaKPa,
			EmergencyC:    cfg.Temperature.EmergencyC,
			StatusEvery:   cfg.UI.StatusEvery,
		})

	log.Info("control core starting",
		zap.Float32("target_c", cfg.Temperature.TargetC),
		zap.Int("gear", cfg.Pressure.DefaultGear),
		zap.String("policy", string(policy)))

	return task.Group(ctx, log,
		task.NewTemperature(tempSensor, heat, store, log, cfg.Temperature.Period),
		task.NewPressure(pressSensor, pump, store, log, cfg.Pressure.Period),
		ui,
		task.NewSafety(monitor, store, cfg.Safety.Period),
	)
}

func buildSink(cfg *config.Config, log *zap.Logger) (status.Sink, error) {
	sinks := []status.Sink{status.NewLogSink(log)}
	if cfg.Status.SerialPort != "" {
		serial, err := status.OpenSerialSink(cfg.Status.SerialPort, cfg.Status.BaudRate)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, serial)
	}
	return status.NewMultiSink(sinks...), nil
}
