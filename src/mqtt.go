package il2prx

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// MQTTPublisher sends every assembled packet to <prefix>/<run>/packet.
type MQTTPublisher struct {
	client mqtt.Client
	config MQTTConfig
	logger *log.Logger
}

// PacketMessage is the JSON published for each packet.
type PacketMessage struct {
	RunID              int64        `json:"run_id"`
	PacketIndex        int          `json:"packet_index"`
	Timestamp          int64        `json:"timestamp"`
	Addrs              string       `json:"addrs"`
	Header             HeaderFields `json:"header"`
	HeaderCorrections  int          `json:"header_corrections"`
	PayloadCorrections int          `json:"payload_corrections"`
	ScramblerOK        bool         `json:"scrambler_ok"`
	CRCOK              bool         `json:"crc_ok"`
	CRCComputed        uint16       `json:"crc16_computed"`
	CRCReceived        uint16       `json:"crc16_received"`
	Payload            string       `json:"payload"` // hex
	ErrorTags          []string     `json:"error_tags"`
}

func NewPacketMessage(p *Packet, now time.Time) PacketMessage {
	return PacketMessage{
		RunID:              p.RunID,
		PacketIndex:        p.PacketIndex,
		Timestamp:          now.Unix(),
		Addrs:              p.Fields.Addrs(),
		Header:             p.Fields,
		HeaderCorrections:  int(p.HeaderCorrections),
		PayloadCorrections: int(p.PayloadCorrections),
		ScramblerOK:        p.ScramblerOK,
		CRCOK:              p.CRCOK,
		CRCComputed:        p.ComputedFCS,
		CRCReceived:        p.ReceivedFCS,
		Payload:            hex.EncodeToString(p.Payload),
		ErrorTags:          p.ErrorTags,
	}
}

func (c MQTTConfig) topic(runID int64) string {
	var prefix = c.TopicPrefix
	if prefix == "" {
		prefix = "il2p"
	}
	return prefix + "/" + strconv.FormatInt(runID, 10) + "/packet"
}

// NewMQTTPublisher connects to the broker.  The connection is retried in
// the background if it drops later.
func NewMQTTPublisher(config MQTTConfig, logger *log.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("mqtt")

	var opts = mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID("il2prx_" + uuid.NewString())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info("connected", "broker", config.Broker)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn("connection lost", "err", err)
	})

	var client = mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", config.Broker, token.Error())
	}

	return &MQTTPublisher{client: client, config: config, logger: logger}, nil
}

func (mp *MQTTPublisher) PublishPacket(ctx context.Context, p *Packet) error {
	var data, err = json.Marshal(NewPacketMessage(p, time.Now()))
	if err != nil {
		return err
	}

	var token = mp.client.Publish(mp.config.topic(p.RunID), mp.config.QoS, mp.config.Retain, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mp *MQTTPublisher) Close() {
	mp.client.Disconnect(250)
}
