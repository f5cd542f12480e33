package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/rig"
	"github.com/stevensll/ee90/pkg/sample"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		backendFlag        = flag.String("backend", "", "Device backend override: mock, serial, i2c or smbus")
		profileFlag        = flag.String("profile", "", "Run profile override: constant, staged or onoff")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
		printStateFlag     = flag.Bool("print-state", false, "Print one divider reading and the temperature, then exit")
		listPortsFlag      = flag.Bool("list-ports", false, "List serial ports, then exit")
		verboseFlag        = flag.Bool("v", false, "Log every tick")
	)
	flag.Parse()

	if *listPortsFlag {
		if err := listPorts(os.Stdout, rig.Ports); err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line overrides
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *backendFlag != "" {
		cfg.Device.Backend = *backendFlag
	}
	if *profileFlag != "" {
		cfg.Run.Profile = *profileFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Run.AverageSamples = *averageSamplesFlag
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	device, err := openDevice(cfg)
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}
	if err := device.Connect(); err != nil {
		log.Fatalf("Failed to connect %s device: %v", cfg.Device.Backend, err)
	}
	closeDevice := func() {
		if err := device.Close(); err != nil {
			log.Printf("Error closing device: %v", err)
		}
	}

	sampler := sample.NewAverager(device, cfg.Run.AverageSamples)

	if *printStateFlag {
		if err := inspect(cfg, device, sampler); err != nil {
			log.Printf("Failed to read state: %v", err)
			os.Exit(1)
		}
		return
	}

	line, err := openEnableLine(cfg.GPIO)
	if err != nil {
		closeDevice()
		log.Fatalf("Failed to open heater enable line: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = execute(ctx, cfg, device, sampler, line, *verboseFlag)
	stop()

	if line != nil {
		if cerr := line.Close(); cerr != nil {
			log.Printf("Error closing enable line: %v", cerr)
		}
	}
	closeDevice()

	if err != nil {
		log.Printf("Run aborted: %v", err)
		os.Exit(1)
	}
}
