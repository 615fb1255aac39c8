// Package actuator maps steering gear angles to PWM duty values.
package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// MaxSteerings is the number of PWM channels available to steering gears.
const MaxSteerings = 5

var (
	// ErrNoSteering indicates the steering gear doesn't exist.
	ErrNoSteering = errors.New("no such steering gear")
	// ErrAngle indicates an angle beyond the scope.
	ErrAngle = errors.New("angle out of scope")
	// ErrHighTime indicates a high level time beyond the PWM period.
	ErrHighTime = errors.New("high level time out of period")
)

// PWM is the duty cycle output.
type PWM interface {
	SetDuty(channel int, duty uint32) error
}

// PWMFunc is func form of PWM.
type PWMFunc func(channel int, duty uint32) error

// SetDuty implements PWM.
func (f PWMFunc) SetDuty(channel int, duty uint32) error {
	return f(channel, duty)
}

// LogPWM only logs duty changes.
var LogPWM = PWMFunc(func(channel int, duty uint32) error {
	glog.V(3).Infof("PWM channel %d duty %d", channel, duty)
	return nil
})

// Timer is the PWM timer shared by all channels.
type Timer struct {
	Frequency  int `yaml:"frequency"`
	Resolution int `yaml:"resolution"`
}

// TotalDuty is the duty value of a full period.
func (t Timer) TotalDuty() uint32 {
	return 1 << uint(t.Resolution)
}

// PeriodUs is the PWM period in microseconds.
func (t Timer) PeriodUs() int {
	return 1000000 / t.Frequency
}

// SteeringConfig configures one steering gear.
type SteeringConfig struct {
	Channel   int `yaml:"channel"`
	Scope     int `yaml:"scope"`
	MinHighUs int `yaml:"min_high_us"`
	MaxHighUs int `yaml:"max_high_us"`
}

// Steering is the state of one steering gear.
type Steering struct {
	// Name is 1-based.
	Name      int
	Channel   int
	Scope     int
	MinHighUs int
	MaxHighUs int

	angle int
	// duty coefficients scaled by 1e6: baseDuty at 0 degree,
	// spanDuty across the whole scope
	baseDuty uint64
	spanDuty uint64
}

// Angle returns the current angle.
func (s *Steering) Angle() int {
	return s.angle
}

func (s *Steering) recalc(t Timer) {
	unit := uint64(t.Frequency) * uint64(t.TotalDuty())
	s.baseDuty = uint64(s.MinHighUs) * unit
	if s.MaxHighUs > s.MinHighUs {
		s.spanDuty = uint64(s.MaxHighUs-s.MinHighUs) * unit
	} else {
		s.spanDuty = 0
	}
}

// duty converts angle to duty value, angle is clamped to the scope.
func (s *Steering) duty(angle int) uint32 {
	if angle < 0 {
		angle = 0
	} else if angle > s.Scope {
		angle = s.Scope
	}
	scope := uint64(s.Scope)
	return uint32((s.baseDuty*scope + uint64(angle)*s.spanDuty) / (1e6 * scope))
}

// Driver owns the steering gears.
type Driver struct {
	Timer        Timer
	DefaultAngle int

	steerings []*Steering
	pwm       PWM
	lock      sync.Mutex
}

// NewDriver creates a Driver with one steering gear per config.
func NewDriver(timer Timer, defaultAngle int, pwm PWM, configs ...SteeringConfig) (*Driver, error) {
	if len(configs) == 0 || len(configs) > MaxSteerings {
		return nil, fmt.Errorf("steering count %d not in 1..%d", len(configs), MaxSteerings)
	}
	if timer.Frequency <= 0 || timer.Resolution <= 0 || timer.Resolution > 20 {
		return nil, fmt.Errorf("invalid PWM timer %+v", timer)
	}
	if pwm == nil {
		pwm = LogPWM
	}
	d := &Driver{Timer: timer, DefaultAngle: defaultAngle, pwm: pwm}
	for n, conf := range configs {
		if conf.Scope <= 0 {
			return nil, fmt.Errorf("steering %d: invalid scope %d", n+1, conf.Scope)
		}
		if conf.MinHighUs <= 0 || conf.MaxHighUs > timer.PeriodUs() || conf.MinHighUs >= conf.MaxHighUs {
			return nil, fmt.Errorf("steering %d: invalid high time %d..%dus", n+1, conf.MinHighUs, conf.MaxHighUs)
		}
		s := &Steering{
			Name:      n + 1,
			Channel:   conf.Channel,
			Scope:     conf.Scope,
			MinHighUs: conf.MinHighUs,
			MaxHighUs: conf.MaxHighUs,
			angle:     defaultAngle,
		}
		s.recalc(timer)
		d.steerings = append(d.steerings, s)
	}
	return d, nil
}

// Count returns the number of steering gears.
func (d *Driver) Count() int {
	return len(d.steerings)
}

// Scope returns the angle scope of steering gear index (0-based).
func (d *Driver) Scope(index int) (int, error) {
	if index < 0 || index >= len(d.steerings) {
		return 0, ErrNoSteering
	}
	return d.steerings[index].Scope, nil
}

// Angle returns the current angle of steering gear index.
func (d *Driver) Angle(index int) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	if index < 0 || index >= len(d.steerings) {
		return 0
	}
	return d.steerings[index].angle
}

// Duty returns the duty value of the current angle of steering gear index.
func (d *Driver) Duty(index int) uint32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	if index < 0 || index >= len(d.steerings) {
		return 0
	}
	s := d.steerings[index]
	return s.duty(s.angle)
}

// SetTarget validates and records a new angle without driving the output.
func (d *Driver) SetTarget(index, angle int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if index < 0 || index >= len(d.steerings) {
		return ErrNoSteering
	}
	s := d.steerings[index]
	if angle < 0 || angle > s.Scope {
		return ErrAngle
	}
	s.angle = angle
	return nil
}

// ChangeAngle drives steering gear index to angle, clamped to the scope.
func (d *Driver) ChangeAngle(index, angle int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if index < 0 || index >= len(d.steerings) {
		return ErrNoSteering
	}
	return d.drive(d.steerings[index], angle)
}

// Reassert drives every steering gear to its recorded angle.
func (d *Driver) Reassert() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, s := range d.steerings {
		if err := d.drive(s, s.angle); err != nil {
			return err
		}
	}
	return nil
}

// ResetAngle drives every steering gear to DefaultAngle.
func (d *Driver) ResetAngle() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, s := range d.steerings {
		if err := d.drive(s, d.DefaultAngle); err != nil {
			return err
		}
	}
	return nil
}

// Calibrate updates one endpoint of steering gear name (1-based) and
// drives it to the matching end of its scope.
func (d *Driver) Calibrate(name, highUs int, max bool) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if name < 1 || name > len(d.steerings) {
		return ErrNoSteering
	}
	if highUs < 1 || highUs > d.Timer.PeriodUs() {
		return ErrHighTime
	}
	s := d.steerings[name-1]
	angle := 0
	if max {
		s.MaxHighUs, angle = highUs, s.Scope
	} else {
		s.MinHighUs = highUs
	}
	s.recalc(d.Timer)
	glog.Infof("steering %d calibrated %d..%dus", s.Name, s.MinHighUs, s.MaxHighUs)
	return d.drive(s, angle)
}

func (d *Driver) drive(s *Steering, angle int) error {
	if angle < 0 {
		angle = 0
	} else if angle > s.Scope {
		angle = s.Scope
	}
	if err := d.pwm.SetDuty(s.Channel, s.duty(angle)); err != nil {
		return fmt.Errorf("steering %d: %w", s.Name, err)
	}
	s.angle = angle
	return nil
}
