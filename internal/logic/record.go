package logic

import "fmt"

// TempInt returns the integer part of the temperature, truncated toward zero.
func (r Reading) TempInt() int {
	return r.TempTenths / 10
}

// TempDecimal returns the single decimal digit of the temperature.
func (r Reading) TempDecimal() int {
	d := r.TempTenths % 10
	if d < 0 {
		d = -d
	}
	return d
}

// Temperature formats the temperature with one decimal digit.
// Readings between -1.0 and 0 keep their sign ("-0.5").
func (r Reading) Temperature() string {
	sign := ""
	if r.TempTenths < 0 && r.TempInt() == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%d", sign, r.TempInt(), r.TempDecimal())
}

// BatteryFlag returns 1 when the battery is OK and 0 otherwise.
func (r Reading) BatteryFlag() int {
	if r.BatteryOK {
		return 1
	}
	return 0
}

// Record renders the reading in the rtl_433 style textual record published to MQTT.
func (r Reading) Record() string {
	return fmt.Sprintf(`{"time" : "%s", "model" : "%s", "id" : %d, "channel" : %d, "battery_ok" : %d, "temperature_C" : %s, "humidity" : %d}`,
		r.Time.UTC().Format(TimeLayout),
		Model,
		r.ID,
		r.Channel,
		r.BatteryFlag(),
		r.Temperature(),
		r.Humidity,
	)
}
