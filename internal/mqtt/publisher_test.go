package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/render"
	"solax-flow/internal/state"
)

func byTopic(msgs []Message) map[string]string {
	out := make(map[string]string, len(msgs))
	for _, m := range msgs {
		out[m.Topic] = string(m.Payload)
	}
	return out
}

func TestMessagesTilesAndWires(t *testing.T) {
	visual := state.Idle()
	visual.Right = state.SideState{Solar: state.Offline, Grid: state.Offline, Load: state.Offline, Battery: state.Offline}

	msgs, err := Messages("solax", render.TilesPatch(visual))
	require.NoError(t, err)
	require.Len(t, msgs, 16)

	topics := byTopic(msgs)
	assert.Equal(t, "waiting", topics["solax/left/solar/state"])
	assert.Equal(t, "ok", topics["solax/left/load/state"])
	assert.Equal(t, "offline", topics["solax/right/grid/state"])
	assert.Equal(t, "online", topics["solax/left/battery/wire"])
	assert.Equal(t, "offline", topics["solax/right/battery/wire"])
}

func TestMessagesTextsAndRects(t *testing.T) {
	p := render.Patch{
		Texts: []render.TextWrite{
			{Side: inverter.SideLeft, Field: render.FieldGridPower, Text: "0.30", Value: 0.3},
			{Field: render.FieldTotal, Text: "1.20 kW", Value: 1.2},
		},
		Rects: []render.RectWrite{
			{Side: inverter.SideLeft, Part: render.PartHub, Rect: layout.Rect{X: 193, Y: 398, W: 14, H: 14}},
		},
	}

	msgs, err := Messages("solax", p)
	require.NoError(t, err)

	topics := byTopic(msgs)
	assert.Equal(t, "0.30", topics["solax/left/grid-power"])
	assert.Equal(t, "1.20 kW", topics["solax/total"])
	assert.JSONEq(t, `{"x":193,"y":398,"w":14,"h":14}`, topics["solax/left/layout/hub"])
}

func TestDiscoveryMessages(t *testing.T) {
	msgs, err := DiscoveryMessages("solax", inverter.DefaultSlots)
	require.NoError(t, err)
	require.Len(t, msgs, 2*len(sensors)+1)

	var cfg map[string]any
	for _, m := range msgs {
		if m.Topic == "homeassistant/sensor/solaxflow/right_battery-soc/config" {
			require.NoError(t, json.Unmarshal(m.Payload, &cfg))
		}
		assert.True(t, strings.HasPrefix(m.Topic, "homeassistant/sensor/solaxflow/"))
	}
	require.NotNil(t, cfg)
	assert.Equal(t, "solax/right/battery-soc", cfg["state_topic"])
	assert.Equal(t, "%", cfg["unit_of_measurement"])
	device := cfg["device"].(map[string]any)
	assert.Equal(t, "SolaX SNKT6MEJKR", device["name"])

	last := msgs[len(msgs)-1]
	require.NoError(t, json.Unmarshal(last.Payload, &cfg))
	assert.Equal(t, "solax/total", cfg["state_topic"])
	assert.Contains(t, cfg, "value_template")
}

func TestDisabledPublisher(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, p.Apply(context.Background(), render.TilesPatch(state.Idle())))
	assert.NoError(t, p.PublishHomeAssistantDiscovery(context.Background(), inverter.DefaultSlots))
	assert.False(t, p.IsConnected())
	assert.NotPanics(t, p.Close)
}

func TestDefaultClientID(t *testing.T) {
	a, b := DefaultClientID(), DefaultClientID()
	assert.True(t, strings.HasPrefix(a, "solax-flow-"))
	assert.Len(t, a, len("solax-flow-")+8)
	assert.NotEqual(t, a, b)
}
