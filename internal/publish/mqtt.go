package publish

import (
	"context"
	"net/url"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const (
	DefaultKeepAlive      = 30
	DefaultConnectTimeout = 10 * time.Second
	reconnectBackoff      = 3 * time.Second
)

// Config describes the broker connection and the topic prefix.
type Config struct {
	Broker         string
	ClientID       string
	Topic          string
	KeepAlive      uint16
	ConnectTimeout time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Topic == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "topic is required")
	}
	if c.ClientID == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "client id is required")
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return errFactory.Wrap(ErrInvalidConfig, err).WithMessage("invalid broker URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return errFactory.WithData(ErrInvalidConfig, c.Broker).WithMessage("broker URL needs scheme and host")
	}

	return nil
}

// MQTTClient is a Client backed by an autopaho connection manager, which
// reconnects on its own after the broker goes away.
type MQTTClient struct {
	cm  *autopaho.ConnectionManager
	log logger.Logger
}

// Connect starts the connection manager. It does not wait for the broker;
// publishes block until the connection is up or their context ends.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*MQTTClient, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt")
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	brokerURL, _ := url.Parse(cfg.Broker)
	c := &MQTTClient{log: log}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:       []*url.URL{brokerURL},
		KeepAlive:        cfg.KeepAlive,
		ConnectTimeout:   cfg.ConnectTimeout,
		ReconnectBackoff: autopaho.NewConstantBackoff(reconnectBackoff),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connection established")
		},
		OnConnectError: func(err error) {
			log.Warn().Err(err).Msg("MQTT connection failed, retrying")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				log.Warn().Err(err).Msg("MQTT client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				ev := log.Warn().Int("reason_code", int(d.ReasonCode))
				if d.Properties != nil {
					ev = ev.Str("reason", d.Properties.ReasonString)
				}
				ev.Msg("MQTT server requested disconnect")
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, errFactory.Wrap(ErrConnect, err)
	}
	c.cm = cm

	return c, nil
}

func (c *MQTTClient) Publish(ctx context.Context, topic string, retain bool, payload []byte) error {
	if err := c.cm.AwaitConnection(ctx); err != nil {
		return errors.New().Wrap(ErrPublish, err).WithData(topic)
	}
	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Retain:  retain,
		Payload: payload,
	}); err != nil {
		return errors.New().Wrap(ErrPublish, err).WithData(topic)
	}

	return nil
}

func (c *MQTTClient) Disconnect(ctx context.Context) error {
	if err := c.cm.Disconnect(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	c.log.Info().Msg("MQTT client disconnected")

	return nil
}
