package mqtt

import (
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-mirror/internal/logic"
)

const (
	appID          = "button-mirror"
	bufferCapacity = 256
	systemTimeout  = 5 * time.Second
)

// ClientID derives a stable client ID from the machine ID so several
// mirrors can share a broker. Falls back to the bare application name.
func ClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil || len(id) < 8 {
		return appID
	}
	return appID + "-" + id[:8]
}

// RealPublisher publishes to an actual MQTT broker.
// It never blocks the caller waiting for a connection: while the broker is
// unreachable messages are buffered and replayed on reconnect, ahead of
// anything published after the reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu    sync.Mutex
	buf   *ringBuffer
	ready bool // connected and buffer replayed
}

func newRealPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{
		client: client,
		topic:  Topic,
		buf:    newRingBuffer(bufferCapacity),
	}
}

// NewRealPublisher starts connecting to the given broker in the background.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := newRealPublisher(nil)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// onConnect replays the buffer oldest-first. Messages sent while it runs are
// buffered behind the replayed ones; ready is set once the buffer is empty.
func (p *RealPublisher) onConnect(c paho.Client) {
	replayed := 0
	for {
		p.mu.Lock()
		msgs := p.buf.drainAll()
		if len(msgs) == 0 {
			p.ready = true
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range msgs {
			c.Publish(m.topic, m.qos, m.retained, m.payload)
		}
		replayed += len(msgs)
	}
	log.WithField("replayed", replayed).Info("mqtt: connected")
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()
	log.WithError(err).Warn("mqtt: connection lost")
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// send publishes msg, or buffers it while disconnected or replaying. It
// returns the token when a publish was attempted.
func (p *RealPublisher) send(msg bufferedMsg) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready || !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

// Publish sends a transition event to the MQTT broker.
// QoS 0 (at-most-once), not retained; the token is not awaited.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return errors.Wrap(err, "format payload")
	}
	p.send(bufferedMsg{topic: p.topic, payload: payload})
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
// QoS 1 (at-least-once); waits briefly for the broker to acknowledge.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}

	token := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
	if token == nil {
		return nil
	}
	if !token.WaitTimeout(systemTimeout) {
		return errors.New("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "publish system")
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		log.WithField("buffered", n).Warn("mqtt: closing with unsent messages")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
