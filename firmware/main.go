//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcSense      machine.ADC
	adcExcitation machine.ADC
	dac           = machine.DAC0
	uart          = machine.UART0

	// DAC state
	dacCode         uint16 = DAC_CODE_OFF
	ignoreCountdown int

	// ADC averaging - running sums and counts
	senseSum        uint32
	excitationSum   uint32
	senseCount      int // Current count of samples (resets after N samples)
	excitationCount int // Current count of samples (resets after N samples)

	// Timing
	lastADCRead time.Time

	// Serial buffer for reading lines: 'D' plus up to 5 digits
	serialBuffer [6]byte
	serialPos    int
)

func main() {
	// Park the heater before anything else
	dac.Configure(machine.DACConfig{})
	dac.Set(dacCode)

	PIN_SENSE_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_EXCITATION_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcSense = machine.ADC{Pin: PIN_SENSE_ADC}
	adcExcitation = machine.ADC{Pin: PIN_EXCITATION_ADC}

	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}

	adcSense.Configure(adcConfig)
	adcExcitation.Configure(adcConfig)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastADCRead = time.Now()

	for {
		now := time.Now()

		processSerial()

		if now.Sub(lastADCRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			readADCs()
			lastADCRead = now
		}

		if senseCount >= NUM_SAMPLES || excitationCount >= NUM_SAMPLES {
			outputAveragedValues()
			resetAveraging()
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func readADCs() {
	if ignoreCountdown > 0 {
		ignoreCountdown--
		return
	}

	// machine.ADC.Get returns a left-aligned 16-bit value
	senseSum += uint32(adcSense.Get() >> (16 - ADC_RESOLUTION))
	senseCount++
	excitationSum += uint32(adcExcitation.Get() >> (16 - ADC_RESOLUTION))
	excitationCount++
}

func resetAveraging() {
	senseSum = 0
	senseCount = 0
	excitationSum = 0
	excitationCount = 0
}

func average(sum uint32, count int) uint16 {
	if count > NUM_SAMPLES {
		count = NUM_SAMPLES
	}
	if count == 0 {
		count = 1
	}
	return uint16(sum / uint32(count))
}

func outputAveragedValues() {
	timestampMicros := time.Now().UnixNano() / 1000

	// Output format: "unix_micros,excitation,sense,code\n"
	print(timestampMicros)
	print(",")
	print(average(excitationSum, excitationCount))
	print(",")
	print(average(senseSum, senseCount))
	print(",")
	print(dacCode)
	print("\n")
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 1 {
				applyCommand()
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		switch {
		case serialPos == 0 && data == 'D':
			serialBuffer[0] = data
			serialPos = 1
		case serialPos > 0 && data >= '0' && data <= '9':
			if serialPos < len(serialBuffer) {
				serialBuffer[serialPos] = data
				serialPos++
			}
		default:
			// Invalid character - reset buffer
			serialPos = 0
		}
	}
}

func applyCommand() {
	var code uint32
	for _, c := range serialBuffer[1:serialPos] {
		code = code*10 + uint32(c-'0')
	}
	if code > 0xFFFF {
		return
	}

	if uint16(code) != dacCode {
		dacCode = uint16(code)
		dac.Set(dacCode)

		// Let the divider settle before averaging again
		ignoreCountdown = IGNORE_SAMPLES_AFTER_CHANGE
		resetAveraging()
	}
}
