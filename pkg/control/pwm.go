package control

import (
	"fmt"
	"os"
	"strconv"
)

// SysfsPWM drives an actuator through a hwmon-style pwm attribute that
// accepts a bare 0-255 value.
type SysfsPWM struct {
	path string
}

var _ Actuator = (*SysfsPWM)(nil)

// OpenSysfsPWM verifies the attribute is writable by commanding zero duty.
func OpenSysfsPWM(path string) (*SysfsPWM, error) {
	a := &SysfsPWM{path: path}
	if err := a.SetDuty(0); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SysfsPWM) SetDuty(duty uint8) error {
	if err := os.WriteFile(a.path, []byte(strconv.Itoa(int(duty))), 0644); err != nil {
		return fmt.Errorf("pwm %s: %w", a.path, err)
	}
	return nil
}
