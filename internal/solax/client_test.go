package solax

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "inverters": [
    {"sn": "SNPG285F4M", "pvPower": 1500, "batteryFlow": -200, "soc": 64.4,
     "gridFlow": -300, "gridStatus": "online", "consumption": 900},
    {"sn": "SNKT6MEJKR", "pvPower": null, "batteryFlow": "n/a", "soc": 12,
     "gridFlow": 0, "gridStatus": 0}
  ],
  "total": {"consumption": 1200}
}`

func TestClientRealtime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	data, err := NewClient(server.URL).Realtime(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Len(t, data.Inverters, 2)
	require.NotNil(t, data.Total)

	first := data.Inverters[0]
	assert.Equal(t, "SNPG285F4M", first.SN)
	assert.Equal(t, 1500.0, first.PVPower.Float())
	assert.Equal(t, -300.0, first.GridFlow.Float())
	text, ok := first.GridStatus.Text()
	assert.True(t, ok)
	assert.Equal(t, "online", text)

	second := data.Inverters[1]
	assert.True(t, math.IsNaN(second.PVPower.Float()), "null decodes as NaN")
	assert.True(t, math.IsNaN(second.BatteryFlow.Float()), "string decodes as NaN")
	assert.True(t, math.IsNaN(second.Consumption.Float()), "missing decodes as NaN")
	num, ok := second.GridStatus.Numeric()
	assert.True(t, ok)
	assert.Equal(t, 0.0, num)

	assert.Equal(t, 1200.0, data.Total.Consumption.Float())
}

func TestClientRealtimeNullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer server.Close()

	data, err := NewClient(server.URL).Realtime(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClientRealtimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(server.URL).Realtime(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestGridStatusRoundTrip(t *testing.T) {
	var status GridStatus
	require.NoError(t, status.UnmarshalJSON([]byte(`"No-Grid"`)))
	assert.Equal(t, "No-Grid", status.String())

	require.NoError(t, status.UnmarshalJSON([]byte(`null`)))
	assert.True(t, status.IsAbsent())

	out, err := NumericStatus(1).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
}

func TestNumberNullIsAbsent(t *testing.T) {
	var rec InverterRecord
	require.NoError(t, json.Unmarshal([]byte(`{"sn":"X","pvPower":null,"soc":" null "}`), &rec))
	assert.True(t, math.IsNaN(rec.PVPower.Float()))
	assert.True(t, math.IsNaN(rec.SOC.Float()))

	var n Number
	require.NoError(t, n.UnmarshalJSON([]byte(" null ")))
	assert.True(t, math.IsNaN(n.Float()))

	require.NoError(t, n.UnmarshalJSON([]byte("0")))
	assert.Equal(t, 0.0, n.Float(), "zero stays present")
}
