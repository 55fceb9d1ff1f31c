package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/skybus/log2"
)

type MQTTConfig struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
	Keepalive time.Duration
	Timeout   time.Duration
}

// MQTT publishes frames to one topic. Client reconnects in background.
type MQTT struct {
	name    string
	topic   string
	qos     byte
	timeout time.Duration
	log     *log2.Log
	m       mqtt.Client
}

func NewMQTT(name string, c MQTTConfig, log *log2.Log) *MQTT {
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Keepalive == 0 {
		c.Keepalive = 30 * time.Second
	}
	if c.Topic == "" {
		c.Topic = fmt.Sprintf("skybus/%s", c.ClientID)
	}
	self := &MQTT{name: name, topic: c.Topic, qos: c.QoS, timeout: c.Timeout, log: log}
	opt := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.ClientID).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetCleanSession(true).
		SetKeepAlive(c.Keepalive).
		SetPingTimeout(c.Timeout).
		SetConnectTimeout(c.Timeout).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(func(mqtt.Client) { self.log.Infof("%s mqtt connected broker=%s", self.name, c.Broker) }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { self.log.Errorf("%s mqtt connection lost err=%v", self.name, err) })
	self.m = mqtt.NewClient(opt)
	return self
}

// Connect starts connection, waits at most timeout.
func (self *MQTT) Connect() error {
	token := self.m.Connect()
	if !token.WaitTimeout(self.timeout) {
		return errors.Timeoutf("%s mqtt connect", self.name)
	}
	return errors.Annotatef(token.Error(), "%s mqtt connect", self.name)
}

func (self *MQTT) Name() string { return self.name }
func (self *MQTT) Connected() bool { return self.m.IsConnectionOpen() }

func (self *MQTT) Send(b []byte) error {
	token := self.m.Publish(self.topic, self.qos, false, b)
	if !token.WaitTimeout(self.timeout) {
		return errors.Timeoutf("%s mqtt publish topic=%s", self.name, self.topic)
	}
	return errors.Annotatef(token.Error(), "%s mqtt publish topic=%s", self.name, self.topic)
}

func (self *MQTT) Close() error {
	self.m.Disconnect(uint(self.timeout / time.Millisecond))
	return nil
}
