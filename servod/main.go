package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/potservo/pkg/acquire"
	"github.com/itohio/potservo/pkg/config"
	"github.com/itohio/potservo/pkg/hbridge"
	"github.com/itohio/potservo/pkg/relay"
	"github.com/itohio/potservo/pkg/serialport"
	"github.com/itohio/potservo/pkg/servo"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated ADC and motors instead of serial devices")
		portFlag   = flag.String("p", "", "Telemetry serial port override (empty = stdout)")
		adcFlag    = flag.String("adc", "", "ADC serial port override")
		listFlag   = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := serialport.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			log.Printf("%s\t%s", p.Name, p.Description)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *mockFlag {
		cfg.Acquisition.Source = config.DriverMock
		cfg.Actuator.Driver = config.DriverMock
	}
	if *portFlag != "" {
		cfg.Telemetry.Serial.Port = *portFlag
	}
	if *adcFlag != "" {
		cfg.Acquisition.Serial.Port = *adcFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Diagnostics stay on stderr; stdout may carry telemetry.
	diag := log.New(os.Stderr, "potservo: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, diag); err != nil && !errors.Is(err, context.Canceled) {
		diag.Fatalf("Servo stopped: %v", err)
	}
	diag.Printf("Shutting down")
}

func run(ctx context.Context, cfg *config.Config, diag *log.Logger) error {
	n := cfg.Acquisition.Motors

	adcLink, actLink, err := sharedLink(cfg, openPort)
	if err != nil {
		return err
	}
	if adcLink != nil {
		// No-op once the ADC reader has taken over and closed it.
		defer adcLink.Close()
	}

	var (
		actuators []hbridge.Actuator
		plant     *hbridge.Mock
	)
	switch cfg.Actuator.Driver {
	case config.DriverSerial:
		drv := hbridge.NewSerial(cfg.Actuator.Serial.Port, cfg.Actuator.Serial.BaudRate, cfg.Actuator.PWMFrequency, n)
		if actLink != nil {
			err = drv.Attach(actLink)
			if err != nil {
				actLink.Close()
			}
		} else {
			err = drv.Connect()
		}
		if err != nil {
			return err
		}
		defer drv.Close()
		actuators = drv.Actuators()
	default:
		plant = hbridge.NewMock(&cfg.Mock, n)
		actuators = plant.Actuators()
	}

	out, closeSinks, err := telemetrySinks(ctx, cfg, diag)
	if err != nil {
		return err
	}
	defer closeSinks()

	sys, err := servo.New(cfg, servo.Options{
		Actuators: actuators,
		Telemetry: out,
		Logger:    diag,
	})
	if err != nil {
		return err
	}

	var src acquire.Source
	switch cfg.Acquisition.Source {
	case config.DriverSerial:
		adc := acquire.NewSerial(cfg.Acquisition.Serial.Port, cfg.Acquisition.Serial.BaudRate, sys.Pool())
		if adcLink != nil {
			if err := adc.Attach(adcLink); err != nil {
				return err
			}
		}
		src = adc
	default:
		if plant == nil {
			plant = hbridge.NewMock(&cfg.Mock, n)
		}
		src = acquire.NewMock(sys.Pool(), plant, n, cfg.Acquisition.FramesPerBlock, cfg.BlockPeriod(), cfg.Mock.Noise)
	}
	if err := src.Start(ctx); err != nil {
		return err
	}
	defer src.Close()

	return sys.Run(ctx)
}

func openPort(name string, baudRate int) (io.ReadWriteCloser, error) {
	return serialport.Open(name, baudRate)
}

// sharedLink opens the companion MCU port once when samples and motor
// commands use the same port, and returns one handle for each side.
// Otherwise both are nil and each driver opens its own port.
func sharedLink(cfg *config.Config, open func(string, int) (io.ReadWriteCloser, error)) (adc, act io.ReadWriteCloser, err error) {
	if !cfg.SharedLink() {
		return nil, nil, nil
	}
	port, err := open(cfg.Acquisition.Serial.Port, cfg.Acquisition.Serial.BaudRate)
	if err != nil {
		return nil, nil, err
	}
	h := serialport.Share(port, 2)
	return h[0], h[1], nil
}

// telemetrySinks opens the telemetry stream and the optional relays.
func telemetrySinks(ctx context.Context, cfg *config.Config, diag *log.Logger) (io.Writer, func(), error) {
	if !cfg.Telemetry.Enabled {
		return nil, func() {}, nil
	}

	var (
		writers []io.Writer
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if cfg.Telemetry.MQTT.Broker != "" {
		m, err := relay.DialMQTT(cfg.Telemetry.MQTT, diag)
		if err != nil {
			return nil, closeAll, err
		}
		writers = append(writers, m)
		closers = append(closers, m)
	}

	if cfg.Telemetry.Websocket.Listen != "" {
		hub := relay.NewHub(diag)
		go func() {
			if err := relay.Serve(ctx, cfg.Telemetry.Websocket.Listen, hub); err != nil {
				diag.Printf("Websocket relay stopped: %v", err)
			}
		}()
		writers = append(writers, hub)
		closers = append(closers, hub)
	}

	// The serial stream goes last: io.MultiWriter stops at the first failing
	// writer, and the relays never fail.
	if cfg.Telemetry.Serial.Port != "" {
		port, err := serialport.Open(cfg.Telemetry.Serial.Port, cfg.Telemetry.Serial.BaudRate)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		writers = append(writers, port)
		closers = append(closers, port)
	} else {
		writers = append(writers, os.Stdout)
	}

	return io.MultiWriter(writers...), closeAll, nil
}
