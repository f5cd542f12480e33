package rig

import "time"

// ADS1015 registers and single-shot configuration used by the SMBus backend.
const (
	ads1015RegConversion = 0x00
	ads1015RegConfig     = 0x01

	ads1015StartSingle = 0x8000 // OS: start a conversion / conversion done
	ads1015MuxSingle   = 0x4000 // AINx vs GND, channel in bits 13:12
	ads1015PGA4096     = 0x0200 // +/-4.096 V full scale
	ads1015ModeSingle  = 0x0100
	ads1015Rate1600    = 0x0080
	ads1015CompDisable = 0x0003

	// ads1015LSB is one 12-bit count at +/-4.096 V full scale.
	ads1015LSB = 4.096 / 2048

	// ads1015ConvTime covers one conversion at 1600 SPS with margin.
	ads1015ConvTime = 2 * time.Millisecond
)

// ads1015Config returns the config register bytes (big-endian) starting a
// single-shot conversion of channel against ground.
func ads1015Config(channel int) []byte {
	cfg := uint16(ads1015StartSingle | ads1015MuxSingle | ads1015PGA4096 |
		ads1015ModeSingle | ads1015Rate1600 | ads1015CompDisable)
	cfg |= uint16(channel&0x03) << 12
	return []byte{byte(cfg >> 8), byte(cfg)}
}

// ads1015Ready reports whether the config register read back says the
// conversion finished.
func ads1015Ready(cfg []byte) bool {
	return len(cfg) == 2 && cfg[0]&0x80 != 0
}

// ads1015Volts converts the conversion register (big-endian, 12-bit
// left-aligned two's complement) to volts.
func ads1015Volts(conv []byte) float64 {
	raw := int16(uint16(conv[0])<<8|uint16(conv[1])) >> 4
	return float64(raw) * ads1015LSB
}
