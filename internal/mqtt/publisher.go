// Package mqtt announces finished training runs to a broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/types"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
	poll           = 200 * time.Millisecond
)

var ErrStopped = errors.New("publisher stopped")

type Publisher struct {
	client    paho.Client
	topic     string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg.MQTTTopic, logger)

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	// A training run publishes once and exits, so there is nothing to reconnect for.
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	return p
}

func newPublisher(client paho.Client, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the broker connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	if err := p.wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.setConnected(true)
	return nil
}

// PublishRun sends run as a retained message, so late subscribers see the
// current model right away.
func (p *Publisher) PublishRun(ctx context.Context, run types.TrainingRun) error {
	if !p.IsConnected() {
		if err := p.Connect(ctx); err != nil {
			return err
		}
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.wait(ctx, p.client.Publish(p.topic, qos, true, data)); err != nil {
		p.logger.Error("failed to publish run", "topic", p.topic, "error", err)
		return fmt.Errorf("publish run %s: %w", run.ID, err)
	}

	p.logger.Debug("published run", "topic", p.topic, "run_id", run.ID)
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the connection. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		// Paho quiesces in-flight work for the given ms.
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) wait(ctx context.Context, token paho.Token) error {
	for {
		if token.WaitTimeout(poll) {
			return token.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrStopped
		default:
		}
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
