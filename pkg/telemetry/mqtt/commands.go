package mqtt

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radar.go/pkg/uart"
)

// replyWriter publishes what is written to the reply topic.
type replyWriter struct {
	queue *Queue
	topic string
}

func (w *replyWriter) Write(p []byte) (int, error) {
	token := w.queue.Pub(w.topic, append([]byte(nil), p...))
	token.Wait()
	return len(p), token.Error()
}

// CommandLine feeds text commands received on the cmd topic to Handler
// and publishes its replies on the reply topic.
type CommandLine struct {
	Queue   *Queue
	ID      string
	Handler uart.DataHandler
	// Handled is called after each command, may be nil.
	Handled func()
}

// Run implements Runnable.
func (l *CommandLine) Run(ctx context.Context) error {
	w := &replyWriter{queue: l.Queue, topic: Topic(l.ID, TopicReply)}
	cmdCh := make(chan []byte, 4)
	sub := l.Queue.Sub(Topic(l.ID, TopicCmd), func(topic string, payload []byte) {
		select {
		case cmdCh <- payload:
		default:
			glog.Warningf("text command dropped: %q", payload)
		}
	})
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-cmdCh:
			l.Handler.HandleData(ctx, w, cmd)
			if l.Handled != nil {
				l.Handled()
			}
		}
	}
}

// TextClient sends text commands to a radar.
type TextClient struct {
	Queue   *Queue
	ID      string
	Timeout time.Duration

	replyCh chan string
	sub     *Subscription
}

// DefaultTextTimeout is the default time to wait for a reply.
const DefaultTextTimeout = 2 * time.Second

// DialText connects to brokerURL and subscribes to replies of radar id.
func DialText(brokerURL, id string) (*TextClient, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	c := &TextClient{
		Queue:   NewQueue(opts, topicPrefix),
		ID:      id,
		Timeout: DefaultTextTimeout,
		replyCh: make(chan string, 4),
	}
	token := c.Queue.Connect()
	if token.Wait(); token.Error() != nil {
		return nil, token.Error()
	}
	c.sub = c.Queue.Sub(Topic(id, TopicReply), func(topic string, payload []byte) {
		select {
		case c.replyCh <- strings.TrimRight(string(payload), "\r\n"):
		default:
		}
	})
	if c.sub.Token.Wait(); c.sub.Token.Error() != nil {
		c.Queue.Close()
		return nil, c.sub.Token.Error()
	}
	return c, nil
}

// Exec sends one command line and waits for the reply.
func (c *TextClient) Exec(ctx context.Context, line string) (string, error) {
	for {
		select {
		case <-c.replyCh:
			continue
		default:
		}
		break
	}
	token := c.Queue.Pub(Topic(c.ID, TopicCmd), []byte(line))
	if token.Wait(); token.Error() != nil {
		return "", token.Error()
	}
	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()
	select {
	case reply := <-c.replyCh:
		return reply, nil
	case <-timer.C:
		return "", context.DeadlineExceeded
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close implements io.Closer.
func (c *TextClient) Close() error {
	c.sub.Close()
	return c.Queue.Close()
}
