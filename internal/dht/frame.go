// Package dht decodes the single-wire protocol spoken by DHT11 and DHT22/AM2302
// temperature/humidity sensors. All timing goes through a Clock and all line
// access through a pin.Pin, so the decoder runs unchanged against FakePin.
package dht

import (
	"fmt"
	"strings"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Frame is the 40-bit payload of one exchange:
// [humidity-int, humidity-frac, temperature-int(+sign), temperature-frac, checksum].
type Frame [5]byte

// Family selects how a frame's bytes are interpreted.
type Family int

const (
	// DHT11 packs humidity and temperature as whole-number bytes.
	DHT11 Family = iota + 1
	// DHT22 packs each value as 16 bits in tenths; bit 7 of byte 2 is the sign.
	DHT22
	// AM2302 is a DHT22 in a different housing.
	AM2302 = DHT22
)

func (f Family) String() string {
	switch f {
	case DHT11:
		return "DHT11"
	case DHT22:
		return "DHT22"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily maps a configured sensor type to a Family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToUpper(s) {
	case "DHT11":
		return DHT11, nil
	case "DHT22", "AM2302":
		return DHT22, nil
	}
	return 0, fmt.Errorf("dht: unknown sensor family %q", s)
}

// Measurement is a decoded, range-checked frame.
type Measurement struct {
	Humidity    float64 // %RH
	Temperature float64 // °C
}

func (m Measurement) String() string {
	return fmt.Sprintf("Temp: %.1f°C, Hum: %.1f%%", m.Temperature, m.Humidity)
}

// physical ranges per family, from the datasheets.
type limits struct {
	minTemp, maxTemp float64
	minHum, maxHum   float64
}

var familyLimits = map[Family]limits{
	DHT11: {minTemp: 0, maxTemp: 50, minHum: 0, maxHum: 100},
	DHT22: {minTemp: -40, maxTemp: 80, minHum: 0, maxHum: 100},
}

// Checksum returns the low 8 bits of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// ValidateChecksum fails with ErrInvalidData when byte 4 does not match the sum
// of bytes 0..3 modulo 256. A failing frame is never corrected.
func ValidateChecksum(f Frame) error {
	if got, want := f[4], f.Checksum(); got != want {
		return fmt.Errorf("dht: %w: checksum 0x%02x, computed 0x%02x", device.ErrInvalidData, got, want)
	}
	return nil
}

// Decode reconstructs humidity and temperature from a checksum-valid frame.
// Values outside the family's physical range are rejected, which also catches
// frames decoded under the wrong family.
func Decode(f Frame, family Family) (Measurement, error) {
	lim, ok := familyLimits[family]
	if !ok {
		return Measurement{}, fmt.Errorf("dht: %w: unsupported family %v", device.ErrInvalidData, family)
	}

	var m Measurement
	switch family {
	case DHT11:
		if f[2]&0x80 != 0 {
			return Measurement{}, fmt.Errorf("dht11: %w: sign bit set in temperature byte 0x%02x", device.ErrInvalidData, f[2])
		}
		m.Humidity = float64(f[0])
		m.Temperature = float64(f[2])
	case DHT22:
		m.Humidity = float64(uint16(f[0])<<8|uint16(f[1])) / 10
		m.Temperature = float64(uint16(f[2]&0x7f)<<8|uint16(f[3])) / 10
		if f[2]&0x80 != 0 {
			m.Temperature = -m.Temperature
		}
	}

	if m.Humidity < lim.minHum || m.Humidity > lim.maxHum {
		return Measurement{}, fmt.Errorf("%v: %w: humidity %.1f%% out of range", family, device.ErrInvalidData, m.Humidity)
	}
	if m.Temperature < lim.minTemp || m.Temperature > lim.maxTemp {
		return Measurement{}, fmt.Errorf("%v: %w: temperature %.1f°C out of range", family, device.ErrInvalidData, m.Temperature)
	}
	return m, nil
}
