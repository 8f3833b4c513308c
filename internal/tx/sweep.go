package tx

import "fmt"

// Setting is one transmitter configuration tried by a troubleshooting sweep.
type Setting struct {
	CarrierHz  int  `json:"carrier_hz"`
	PowerBoost bool `json:"power_boost"`
}

func (s Setting) String() string {
	power := "Standard: ~78% duty cycle"
	if s.PowerBoost {
		power = "High Power: 100% duty cycle"
	}
	return fmt.Sprintf("%s, %dkHz", power, s.CarrierHz/1000)
}

// Result is the outcome of sending one sweep setting.
type Result struct {
	Setting Setting `json:"setting"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
}

// Sweep returns the troubleshooting settings in the order they are tried:
// standard then boosted duty at 38, 36 and 40 kHz.
func Sweep() []Setting {
	var out []Setting
	for _, hz := range []int{38000, 36000, 40000} {
		out = append(out, Setting{CarrierHz: hz}, Setting{CarrierHz: hz, PowerBoost: true})
	}
	return out
}

// Apply returns req with the setting's carrier and power boost.
func (s Setting) Apply(req Request) Request {
	req.CarrierHz = s.CarrierHz
	req.PowerBoost = s.PowerBoost
	return req
}
