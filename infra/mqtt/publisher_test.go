package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/events"
	"github.com/hausnetz/eos/core/model"
	"github.com/hausnetz/eos/internal/eventbus"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	mu       sync.Mutex
	messages map[string][]any
}

func (c *fakeClient) IsConnected() bool   { return true }
func (c *fakeClient) Connect() paho.Token { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)     {}
func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = map[string][]any{}
	}
	c.messages[topic] = append(c.messages[topic], payload)
	return &fakeToken{}
}

func (c *fakeClient) topicCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newFakePublisher(t *testing.T) (*Publisher, *fakeClient) {
	t.Helper()
	fake := &fakeClient{}
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	t.Cleanup(func() { newMQTTClient = orig })

	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	return p, fake
}

func TestPublishPlanTopics(t *testing.T) {
	p, fake := newFakePublisher(t)
	plan := model.NewDispatchPlan(time.Now().UTC(), 15*time.Minute, []model.StepDecision{
		{BatteryChargeKW: 2, GridExportKW: 1},
	})
	require.NoError(t, p.PublishPlan(plan))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.messages["eos/plan"], 1)
	var got model.DispatchPlan
	require.NoError(t, json.Unmarshal(fake.messages["eos/plan"][0].([]byte), &got))
	assert.Equal(t, plan.ID, got.ID)

	require.Len(t, fake.messages["eos/setpoint/battery_charge_kw"], 1)
	assert.Equal(t, "2", fake.messages["eos/setpoint/battery_charge_kw"][0])
	assert.Equal(t, "1", fake.messages["eos/setpoint/grid_export_kw"][0])
}

func TestStartTelemetryPublishesOnEvent(t *testing.T) {
	p, fake := newFakePublisher(t)
	bus := eventbus.New()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartTelemetry(ctx, bus, p)

	plan := model.NewIdlePlan(time.Now().UTC(), 15*time.Minute, 2)
	bus.Publish(events.PlanPublishedEvent{Plan: plan})

	assert.Eventually(t, func() bool { return fake.topicCount() > 0 }, time.Second, 5*time.Millisecond)
}
