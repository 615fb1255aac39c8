package radar

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Sensor measures distance.
type Sensor interface {
	MeasureDistance(ctx context.Context) (uint16, error)
}

// Sample is one completed measurement.
type Sample struct {
	Angle    int
	Distance uint16
	Address  uint16
	Time     time.Time
}

// SampleHandler consumes samples.
type SampleHandler interface {
	HandleSample(ctx context.Context, s Sample)
}

// HandleSampleFunc is func form of SampleHandler.
type HandleSampleFunc func(context.Context, Sample)

// HandleSample implements SampleHandler.
func (f HandleSampleFunc) HandleSample(ctx context.Context, s Sample) {
	f(ctx, s)
}

// Measurer samples the sensor each time the steering gears are in place.
type Measurer struct {
	Sensor   Sensor
	Status   *Status
	Primary  int
	Handlers []SampleHandler
}

// Run implements Runnable.
func (m *Measurer) Run(ctx context.Context) error {
	for {
		round, err := m.Status.Events.TakeActuated(ctx)
		if err != nil {
			return err
		}
		m.measure(ctx)
		m.Status.Events.Measured(round)
	}
}

func (m *Measurer) measure(ctx context.Context) {
	distance, err := m.Sensor.MeasureDistance(ctx)
	if err != nil {
		glog.Warningf("measure failed, keeping %d: %v", m.Status.Distance(), err)
		return
	}
	m.Status.SetDistance(distance)
	sample := Sample{
		Angle:    m.Status.Actuators.Angle(m.Primary),
		Distance: distance,
		Address:  m.Status.Address.Get(),
		Time:     time.Now(),
	}
	glog.V(2).Infof("distance %d at %d", sample.Distance, sample.Angle)
	for _, h := range m.Handlers {
		h.HandleSample(ctx, sample)
	}
}
