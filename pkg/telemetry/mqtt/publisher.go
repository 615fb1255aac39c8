package mqtt

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"

	fx "github.com/robotalks/radar.go/pkg/framework"
	"github.com/robotalks/radar.go/pkg/radar"
)

// Topics relative to the radar id.
const (
	TopicSample = "sample"
	TopicState  = "state"
	TopicCmd    = "cmd"
	TopicReply  = "reply"
)

// Topic builds the topic of a radar.
func Topic(id, leaf string) string {
	return id + "/" + leaf
}

// Publisher publishes samples and the radar state.
type Publisher struct {
	Queue *Queue
	ID    string
	// Status and Sweep are reported on the state topic when set.
	Status *radar.Status
	Sweep  *radar.Sweep
}

// NewPublisher creates a Publisher connecting to brokerURL.
// The retained state is cleared when the radar goes offline.
func NewPublisher(brokerURL, id string) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+Topic(id, TopicState), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("radar:" + id)
	}
	return &Publisher{Queue: NewQueue(opts, topicPrefix), ID: id}, nil
}

// HandleSample implements radar.SampleHandler.
func (p *Publisher) HandleSample(ctx context.Context, s radar.Sample) {
	payload, err := EncodeSample(s)
	if err != nil {
		glog.Errorf("encode sample: %v", err)
		return
	}
	p.Queue.Pub(Topic(p.ID, TopicSample), payload)
}

// StateJSON renders the radar state.
func (p *Publisher) StateJSON() (string, error) {
	fields := map[string]*structpb.Value{
		"id": stringValue(p.ID),
	}
	if p.Status != nil {
		fields["address"] = numberValue(float64(p.Status.Address.Get()))
		fields["scan_rate"] = numberValue(float64(p.Status.ScanRate()))
		fields["work_mode"] = numberValue(float64(p.Status.WorkMode()))
		fields["measure_mode"] = numberValue(float64(p.Status.MeasureMode()))
		fields["distance"] = numberValue(float64(p.Status.Distance()))
		angles := make([]*structpb.Value, p.Status.Actuators.Count())
		for i := range angles {
			angles[i] = numberValue(float64(p.Status.Actuators.Angle(i)))
		}
		fields["angles"] = &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: angles}}}
	}
	if p.Sweep != nil {
		fields["sweep"] = stringValue(p.Sweep.State().String())
	}
	return (&jsonpb.Marshaler{}).MarshalToString(&structpb.Struct{Fields: fields})
}

// Control implements Controller, publishing the retained state.
func (p *Publisher) Control(cc fx.ControlContext) error {
	state, err := p.StateJSON()
	if err != nil {
		return fmt.Errorf("render state: %w", err)
	}
	p.Queue.PubWith(Topic(p.ID, TopicState), []byte(state), 0, true)
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Publisher) AddToLoop(loop *fx.Loop) {
	loop.AddController(p)
}

// Run implements Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	token := p.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect: %w", err)
	}
	<-ctx.Done()
	p.Queue.PubWith(Topic(p.ID, TopicState), nil, 1, true).Wait()
	p.Queue.Close()
	return ctx.Err()
}
