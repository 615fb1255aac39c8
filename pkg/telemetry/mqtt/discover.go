package mqtt

import (
	"context"
	"strings"
	"time"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// RadarInfo is a radar found on the broker.
type RadarInfo struct {
	ID    string
	State string
}

// Discover lists radars which published their retained state.
func Discover(ctx context.Context, brokerURL string, timeout time.Duration) (res []RadarInfo, err error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		return nil, token.Error()
	}
	defer q.Close()

	resCh := make(chan RadarInfo, 16)
	q.Sub("+/"+TopicState, func(topic string, payload []byte) {
		if info, ok := parseStateTopic(topic, payload); ok {
			select {
			case resCh <- info:
			case <-time.After(time.Second):
			}
		}
	})

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case info := <-resCh:
			res = append(res, info)
		case <-timer.C:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func parseStateTopic(topic string, payload []byte) (RadarInfo, bool) {
	items := strings.Split(topic, "/")
	if len(items) != 2 || items[1] != TopicState || len(payload) == 0 {
		return RadarInfo{}, false
	}
	return RadarInfo{ID: items[0], State: string(payload)}, true
}
