package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Time:            time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Cycle:           150,
		Mode:            "turbo",
		SpeedLimit:      80,
		Direction:       "fwd",
		Headlights:      true,
		Drive:           42,
		Steer:           -7,
		Lights:          "head",
		LED:             "white",
		Gamepad:         "connected",
		Hub:             "connected",
		ReportsReceived: 149,
	}
}

func TestSnapshotJSONKeepsFieldOrder(t *testing.T) {
	data, err := json.Marshal(sampleSnapshot())
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `{"time":"2025-03-01T12:00:00Z","cycle":150,"mode":"turbo"`), "got %s", s)
	assert.Less(t, strings.Index(s, `"drive"`), strings.Index(s, `"steer"`))
	assert.Less(t, strings.Index(s, `"gamepad"`), strings.Index(s, `"reports_received"`))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(42), decoded["drive"])
	assert.Equal(t, true, decoded["headlights"])
}

func TestSnapshotPairs(t *testing.T) {
	pairs := sampleSnapshot().Pairs()

	require.Equal(t, 0, len(pairs)%2)
	assert.Equal(t, "time", pairs[0])
	assert.Equal(t, "cycle", pairs[2])
	assert.Equal(t, "150", pairs[3])

	fields := map[any]any{}
	for i := 0; i < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	assert.Equal(t, "-7", fields["steer"])
	assert.Equal(t, "true", fields["headlights"])
	assert.Equal(t, "false", fields["taillights"])
}

type recordingSink struct {
	published []Snapshot
	err       error
	closed    bool
}

func (r *recordingSink) Publish(_ context.Context, s Snapshot) error {
	r.published = append(r.published, s)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestFanoutPublishesToAllSinks(t *testing.T) {
	// GOAL: One failing sink MUST NOT stop delivery to the others
	failing := &recordingSink{err: errors.New("broker down")}
	ok := &recordingSink{}
	fan := Fanout{failing, ok}

	err := fan.Publish(context.Background(), sampleSnapshot())

	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, failing.published, 1)
	assert.Len(t, ok.published, 1, "sinks after a failing one MUST still receive the snapshot")

	assert.Error(t, fan.Close())
	assert.True(t, ok.closed)
}

func TestEmptyFanout(t *testing.T) {
	assert.NoError(t, Fanout(nil).Publish(context.Background(), sampleSnapshot()))
	assert.NoError(t, Fanout(nil).Close())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	sink := NewLogSink(logger, logrus.InfoLevel)
	require.NoError(t, sink.Publish(context.Background(), sampleSnapshot()))

	out := buf.String()
	assert.Contains(t, out, `msg=Status`)
	assert.Contains(t, out, `mode=turbo`)
	assert.Contains(t, out, `drive=42`)
	assert.NotContains(t, out, "2025-03-01", "snapshot time MUST NOT duplicate the log timestamp")
}

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeMQTTClient implements only the calls the sink makes
type fakeMQTTClient struct {
	mqtt.Client

	token        *fakeToken
	topic        string
	qos          byte
	retained     bool
	payload      []byte
	disconnected bool
}

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic, f.qos, f.retained = topic, qos, retained
	f.payload, _ = payload.([]byte)
	return f.token
}

func (f *fakeMQTTClient) Disconnect(uint) { f.disconnected = true }

func TestMQTTSinkPublishesJSON(t *testing.T) {
	client := &fakeMQTTClient{token: &fakeToken{complete: true}}
	sink := newMQTTSink(client, MQTTOptions{Topic: "padbridge/status", QoS: 1}, nil)

	require.NoError(t, sink.Publish(context.Background(), sampleSnapshot()))

	assert.Equal(t, "padbridge/status", client.topic)
	assert.Equal(t, byte(1), client.qos)
	assert.False(t, client.retained)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.payload, &decoded))
	assert.Equal(t, "turbo", decoded["mode"])

	require.NoError(t, sink.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTSinkErrors(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
		want  string
	}{
		{"broker error", &fakeToken{complete: true, err: errors.New("not authorized")}, "not authorized"},
		{"timeout", &fakeToken{complete: false}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMQTTSink(&fakeMQTTClient{token: tt.token}, MQTTOptions{Topic: "t"}, nil)
			err := sink.Publish(context.Background(), sampleSnapshot())
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewMQTTSinkRequiresBroker(t *testing.T) {
	_, err := NewMQTTSink(MQTTOptions{Topic: "t"}, nil)
	assert.Error(t, err)
}

func TestNewRedisSinkValidation(t *testing.T) {
	_, err := NewRedisSink(context.Background(), RedisOptions{})
	assert.ErrorContains(t, err, "address is required")
}

func TestNewRedisSinkUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisSink(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
