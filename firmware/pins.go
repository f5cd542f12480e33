//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS          = 1  // ADC read interval in milliseconds (same for both ADCs)
	NUM_SAMPLES                 = 20 // Number of samples to average
	IGNORE_SAMPLES_AFTER_CHANGE = 10 // Ignore this many samples after a DAC change

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// ADC pins
	PIN_SENSE_ADC      = machine.A1  // Thermistor tap
	PIN_EXCITATION_ADC = machine.A10 // Divider excitation, through a 1:1 divider

	// The heater transistor is driven from the DAC on A0.
	// Code 0 turns the heater fully on; full scale turns it off.
	DAC_CODE_OFF = 0xFFFF

	// Serial configuration
	// Format "unix_micros,excitation,sense,code\n"
	// Example: "1234567890123456,4095,4095,65535\n" = ~34 bytes max per line
	// 50 outputs/sec * 34 bytes/line = 1,700 bytes/sec
	// 115200 baud (11,520 bytes/sec) leaves ~6.8x headroom
	UART_BAUD_RATE = 115200
)
