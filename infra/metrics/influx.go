package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
	"github.com/kilianp07/dispatchmap/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes engine events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMessage writes one reduced message.
func (s *InfluxSink) RecordMessage(ev coremetrics.MessageEvent) error {
	p := write.NewPointWithMeasurement("message_reduced").
		AddTag("kind", ev.Kind).
		AddTag("phase", ev.Phase).
		AddField("seq", ev.Seq).
		AddField("commands", ev.Commands).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCommand writes a gateway command outcome.
func (s *InfluxSink) RecordCommand(ev coremetrics.CommandEvent) error {
	p := write.NewPointWithMeasurement("gateway_command").
		AddTag("op", ev.Op).
		AddTag("outcome", ev.Outcome).
		AddTag("command_id", ev.CommandID).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordConnection writes a channel connectivity change.
func (s *InfluxSink) RecordConnection(ev coremetrics.ConnectionEvent) error {
	p := write.NewPointWithMeasurement("channel_connection").
		AddTag("reconnect", strconv.FormatBool(ev.Reconnect)).
		AddField("connected", ev.Connected)
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordScene writes the size of the rendered scene.
func (s *InfluxSink) RecordScene(ev coremetrics.SceneEvent) error {
	p := write.NewPointWithMeasurement("scene").
		AddTag("phase", ev.Phase).
		AddField("tracked", ev.Tracked).
		AddField("pending_trips", ev.Pending).
		AddField("ops", ev.Ops).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
