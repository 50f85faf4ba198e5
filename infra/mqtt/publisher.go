package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/hausnetz/eos/core/model"
	"github.com/hausnetz/eos/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string `json:"broker" yaml:"broker"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
	Retain      bool   `json:"retain" yaml:"retain"`
	UseTLS      bool   `json:"use_tls" yaml:"use_tls"`
	CABundle    string `json:"ca_bundle" yaml:"ca_bundle"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher pushes plans and setpoints to an MQTT broker so dashboards and
// home-automation flows can consume them without polling the API.
type Publisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	retain bool
	log    logger.Logger
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := newClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-publisher")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	prefix := strings.TrimSuffix(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "eos"
	}
	return &Publisher{cli: cli, prefix: prefix, qos: cfg.QoS, retain: cfg.Retain, log: log}, nil
}

func newClientOptions(cfg Config) (*paho.ClientOptions, error) {
	id := cfg.ClientID
	if id == "" {
		id = "eos-" + uuid.NewString()
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(id)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.CABundle != "" {
			pem, err := os.ReadFile(cfg.CABundle)
			if err != nil {
				return nil, fmt.Errorf("mqtt: read ca bundle: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("mqtt: no certificates in %s", cfg.CABundle)
			}
			tlsCfg.RootCAs = pool
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// PublishPlan publishes the full plan as JSON on <prefix>/plan and the
// active setpoints on <prefix>/setpoint/<field>.
func (p *Publisher) PublishPlan(plan *model.DispatchPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	if token := p.cli.Publish(p.prefix+"/plan", p.qos, p.retain, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if plan.Horizon() == 0 {
		return nil
	}
	first := plan.Steps[0]
	setpoints := map[string]float64{
		"battery_charge_kw":    first.BatteryChargeKW,
		"battery_discharge_kw": first.BatteryDischargeKW,
		"ev_charge_kw":         first.EVChargeKW,
		"grid_import_kw":       first.GridImportKW,
		"grid_export_kw":       first.GridExportKW,
	}
	for field, value := range setpoints {
		topic := p.prefix + "/setpoint/" + field
		body := strconv.FormatFloat(value, 'f', -1, 64)
		if token := p.cli.Publish(topic, p.qos, p.retain, body); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.cli.Disconnect(250)
}
