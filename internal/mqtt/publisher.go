package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solax-flow/internal/inverter"
	"solax-flow/internal/render"
)

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
	log         zerolog.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
	Logger      zerolog.Logger
}

// Message is one retained publish.
type Message struct {
	Topic   string
	Payload []byte
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	log := cfg.Logger.With().Str("component", "mqtt").Logger()
	if !cfg.Enabled {
		return &Publisher{enabled: false, log: log}, nil
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
		log:         log,
	}, nil
}

// DefaultClientID is unique per process so two instances never kick each
// other off the broker.
func DefaultClientID() string {
	return "solax-flow-" + uuid.NewString()[:8]
}

func (p *Publisher) Name() string { return "mqtt" }

// Apply publishes every write of patch as a retained message.
func (p *Publisher) Apply(ctx context.Context, patch render.Patch) error {
	if !p.enabled {
		return nil
	}
	msgs, err := Messages(p.topicPrefix, patch)
	if err != nil {
		return err
	}
	return p.publish(ctx, msgs)
}

func (p *Publisher) publish(ctx context.Context, msgs []Message) error {
	var errs []error
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.client.Publish(m.Topic, 0, true, m.Payload)
		token.Wait()
		if token.Error() != nil {
			errs = append(errs, fmt.Errorf("failed to publish to %s: %w", m.Topic, token.Error()))
		}
	}
	return errors.Join(errs...)
}

// Messages maps a patch onto topics under prefix:
//
//	{prefix}/{side}/{role}/state    tile state
//	{prefix}/{side}/{role}/wire     "online" or "offline"
//	{prefix}/{side}/{field}         value text
//	{prefix}/total                  installation total
//	{prefix}/{side}/layout/{part}   JSON rect
func Messages(prefix string, patch render.Patch) ([]Message, error) {
	msgs := make([]Message, 0, len(patch.Tiles)+len(patch.Wires)+len(patch.Texts)+len(patch.Rects))

	for _, t := range patch.Tiles {
		msgs = append(msgs, Message{
			Topic:   fmt.Sprintf("%s/%s/%s/state", prefix, t.Side, t.Role),
			Payload: []byte(t.State.String()),
		})
	}
	for _, w := range patch.Wires {
		role, ok := render.RoleForWire(w.Part)
		if !ok {
			continue
		}
		status := "online"
		if w.Offline {
			status = "offline"
		}
		msgs = append(msgs, Message{
			Topic:   fmt.Sprintf("%s/%s/%s/wire", prefix, w.Side, role),
			Payload: []byte(status),
		})
	}
	for _, t := range patch.Texts {
		topic := fmt.Sprintf("%s/%s/%s", prefix, t.Side, t.Field)
		if t.Field == render.FieldTotal {
			topic = prefix + "/total"
		}
		msgs = append(msgs, Message{Topic: topic, Payload: []byte(t.Text)})
	}
	for _, r := range patch.Rects {
		payload, err := json.Marshal(r.Rect)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rect: %w", err)
		}
		msgs = append(msgs, Message{
			Topic:   fmt.Sprintf("%s/%s/layout/%s", prefix, r.Side, r.Part),
			Payload: payload,
		})
	}
	return msgs, nil
}

type sensor struct {
	Name        string
	Field       render.Field
	Unit        string
	DeviceClass string
}

var sensors = []sensor{
	{"Solar Power", render.FieldSolarPower, "kW", "power"},
	{"Load Power", render.FieldLoadPower, "kW", "power"},
	{"Battery Flow", render.FieldBatteryFlow, "kW", "power"},
	{"Battery SOC", render.FieldBatterySOC, "%", "battery"},
	{"Grid Power", render.FieldGridPower, "kW", "power"},
}

// DiscoveryMessages builds the Home Assistant sensor configs for every value
// slot. serials names the device of each side.
func DiscoveryMessages(prefix string, serials inverter.Slots) ([]Message, error) {
	var msgs []Message
	add := func(id, name, stateTopic, unit, class string, device map[string]interface{}, extra map[string]interface{}) error {
		config := map[string]interface{}{
			"name":                name,
			"unique_id":           "solaxflow_" + id,
			"state_topic":         stateTopic,
			"unit_of_measurement": unit,
			"device_class":        class,
			"state_class":         "measurement",
			"device":              device,
		}
		for k, v := range extra {
			config[k] = v
		}
		payload, err := json.Marshal(config)
		if err != nil {
			return err
		}
		msgs = append(msgs, Message{
			Topic:   fmt.Sprintf("homeassistant/sensor/solaxflow/%s/config", id),
			Payload: payload,
		})
		return nil
	}

	for _, side := range inverter.Sides {
		serial := serials.Serial(side)
		device := map[string]interface{}{
			"identifiers":  []string{"solax_" + serial},
			"name":         "SolaX " + serial,
			"manufacturer": "SolaX",
		}
		for _, s := range sensors {
			id := fmt.Sprintf("%s_%s", side, s.Field)
			name := fmt.Sprintf("SolaX %s %s", sideTitle(side), s.Name)
			topic := fmt.Sprintf("%s/%s/%s", prefix, side, s.Field)
			if err := add(id, name, topic, s.Unit, s.DeviceClass, device, nil); err != nil {
				return nil, err
			}
		}
	}

	total := map[string]interface{}{
		"identifiers":  []string{"solaxflow_installation"},
		"name":         "SolaX installation",
		"manufacturer": "SolaX",
	}
	if err := add("total", "SolaX Total Consumption", prefix+"/total", "kW", "power", total,
		map[string]interface{}{"value_template": "{{ value.split(' ')[0] | float }}"}); err != nil {
		return nil, err
	}
	return msgs, nil
}

func sideTitle(side inverter.Side) string {
	if side == inverter.SideRight {
		return "Right"
	}
	return "Left"
}

// PublishHomeAssistantDiscovery announces the value sensors. The total topic
// carries a " kW" suffix, so Home Assistant reads it with a value template.
func (p *Publisher) PublishHomeAssistantDiscovery(ctx context.Context, serials inverter.Slots) error {
	if !p.enabled {
		return nil
	}
	msgs, err := DiscoveryMessages(p.topicPrefix, serials)
	if err != nil {
		return fmt.Errorf("failed to build discovery: %w", err)
	}
	return p.publish(ctx, msgs)
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
