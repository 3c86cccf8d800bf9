// Package publish mirrors the published vehicle state to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/ignition"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 5 * time.Second

var publishes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vehiclectl_mqtt_publishes_total",
		Help: "MQTT publishes by subject and result.",
	},
	[]string{"subject", "result"},
)

func init() {
	prometheus.MustRegister(publishes)
}

// Client publishes a payload to a topic.
type Client interface {
	Publish(ctx context.Context, topic string, retain bool, payload []byte) error
}

// Sink publishes every new snapshot and ignition state under a topic
// prefix. Snapshots are retained so late subscribers get the current state.
type Sink struct {
	client Client
	prefix string
	log    logger.Logger
}

func NewSink(client Client, prefix string, log logger.Logger) *Sink {
	if log == nil {
		log = logger.New("publish")
	}
	return &Sink{client: client, prefix: prefix, log: log}
}

func (s *Sink) SnapshotTopic() string { return s.prefix + "/snapshot" }

func (s *Sink) IgnitionTopic() string { return s.prefix + "/ignition" }

// Run publishes until ctx is done. A value already in a cell is published
// immediately. Failed publishes are logged and counted, never retried; the
// next change supersedes them.
func (s *Sink) Run(ctx context.Context, snapshots *telemetry.Cell[telemetry.VehicleSnapshot], states *telemetry.Cell[ignition.State]) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		follow(ctx, snapshots, func(v telemetry.VehicleSnapshot) {
			s.publish(ctx, "snapshot", s.SnapshotTopic(), true, v)
		})
		return nil
	})
	g.Go(func() error {
		follow(ctx, states, func(v ignition.State) {
			s.publish(ctx, "ignition", s.IgnitionTopic(), false, ignitionMessage{
				Raw:       v.Raw,
				Label:     v.Label(),
				IsOn:      v.IsOn(),
				Timestamp: v.Timestamp,
			})
		})
		return nil
	})

	return g.Wait()
}

type ignitionMessage struct {
	Raw       int       `json:"raw"`
	Label     string    `json:"label"`
	IsOn      bool      `json:"is_on"`
	Timestamp time.Time `json:"timestamp"`
}

// follow calls fn with the cell's value whenever a new version appears,
// starting with the current one if anything was stored yet.
func follow[T any](ctx context.Context, cell *telemetry.Cell[T], fn func(T)) {
	var after uint64
	for {
		v, ver, err := cell.Wait(ctx, after)
		if err != nil {
			return
		}
		after = ver
		fn(v)
	}
}

func (s *Sink) publish(ctx context.Context, subject, topic string, retain bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		publishes.WithLabelValues(subject, "error").Inc()
		s.log.ErrorWithCode(errors.New().Wrap(ErrEncode, err)).Str("topic", topic).Send()
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.client.Publish(pubCtx, topic, retain, payload); err != nil {
		if ctx.Err() != nil {
			return
		}
		publishes.WithLabelValues(subject, "error").Inc()
		s.log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish")
		return
	}
	publishes.WithLabelValues(subject, "ok").Inc()
	s.log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Published")
}
