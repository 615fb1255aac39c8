package mqtt

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/radar.go/pkg/radar"
)

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}

// EncodeSample encodes a sample as a protobuf Struct.
func EncodeSample(s radar.Sample) ([]byte, error) {
	ts, err := ptypes.TimestampProto(s.Time)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"angle":    numberValue(float64(s.Angle)),
		"distance": numberValue(float64(s.Distance)),
		"address":  numberValue(float64(s.Address)),
		"time":     stringValue(ptypes.TimestampString(ts)),
	}})
}

// DecodeSample decodes a sample encoded by EncodeSample.
func DecodeSample(payload []byte) (radar.Sample, error) {
	var st structpb.Struct
	var s radar.Sample
	if err := proto.Unmarshal(payload, &st); err != nil {
		return s, err
	}
	number := func(name string) (float64, error) {
		v, ok := st.Fields[name].GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, fmt.Errorf("sample field %q missing", name)
		}
		return v.NumberValue, nil
	}
	angle, err := number("angle")
	if err != nil {
		return s, err
	}
	distance, err := number("distance")
	if err != nil {
		return s, err
	}
	address, err := number("address")
	if err != nil {
		return s, err
	}
	s.Angle, s.Distance, s.Address = int(angle), uint16(distance), uint16(address)
	if t := st.Fields["time"].GetStringValue(); t != "" {
		if s.Time, err = time.Parse(time.RFC3339Nano, t); err != nil {
			return s, err
		}
	}
	return s, nil
}
