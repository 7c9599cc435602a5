// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"log/slog"

	"github.com/cartertinney/envmonitor/internal/background"
	"github.com/cartertinney/envmonitor/internal/wallclock"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/eclipse/paho.golang/paho"
)

// Session is one connected MQTT session. Received publishes on the sensor
// topics are handed to the consumer over Messages; the paho callbacks never
// touch anything else.
type Session struct {
	*background.Background

	client *paho.Client
	topics Topics
	qos    byte
	msgs   chan sensor.Message
	log    logger
}

// Dial opens the network connection and performs the MQTT handshake. The
// context bounds both; if it has no deadline the connection timeout from the
// settings applies.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	if _, ok := ctx.Deadline(); !ok && c.settings.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			c.settings.ConnectionTimeout,
			&ConnectionError{message: "connection timed out"},
		)
		defer cancel()
	}

	conn, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Background: background.New(),
		topics:     c.topics,
		qos:        c.qos,
		msgs:       make(chan sensor.Message, c.buffer),
		log:        c.log,
	}

	s.client = paho.NewClient(paho.ClientConfig{
		ClientID: c.settings.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			s.onPublishReceived,
		},
		OnClientError:      s.onClientError,
		OnServerDisconnect: s.onServerDisconnect,
	})

	packet := &paho.Connect{
		ClientID:   c.settings.ClientID,
		CleanStart: true,
		KeepAlive:  uint16(c.settings.KeepAlive.Seconds()),
	}
	if c.settings.Username != "" {
		packet.Username = c.settings.Username
		packet.UsernameFlag = true
	}
	if c.settings.Password != "" {
		packet.Password = []byte(c.settings.Password)
		packet.PasswordFlag = true
	}
	s.log.Packet(ctx, "connect", packet)

	connack, err := s.client.Connect(ctx, packet)
	if connack != nil {
		s.log.Packet(ctx, "connack", connack)
	}
	if err != nil || connack.ReasonCode >= 0x80 {
		_ = conn.Close()
		switch {
		case connack != nil && connack.ReasonCode >= 0x80:
			err = &ConnackError{ReasonCode: connack.ReasonCode}
		case context.Cause(ctx) != nil:
			err = context.Cause(ctx)
		default:
			err = &ConnectionError{message: "MQTT handshake failed", wrapped: err}
		}
		s.Background.Close(err)
		return nil, err
	}

	// The paho client shuts down on any connection error.
	go func() {
		select {
		case <-s.client.Done():
			s.Background.Close(&ConnectionError{message: "connection lost"})
		case <-s.Done():
		}
	}()

	s.log.Info(ctx, "MQTT session connected",
		slog.String("client_id", c.settings.ClientID))
	return s, nil
}

// Subscribe subscribes to every configured topic in one SUBSCRIBE packet.
func (s *Session) Subscribe(ctx context.Context) error {
	var subs []paho.SubscribeOptions
	for _, r := range s.topics.routes() {
		if r.filter != "" {
			subs = append(subs, paho.SubscribeOptions{Topic: r.filter, QoS: s.qos})
		}
	}
	if len(subs) == 0 {
		return &InvalidArgumentError{message: "no topics configured"}
	}

	ctx, cancel := s.With(ctx)
	defer cancel()

	packet := &paho.Subscribe{Subscriptions: subs}
	s.log.Packet(ctx, "subscribe", packet)

	suback, err := s.client.Subscribe(ctx, packet)
	if suback != nil {
		s.log.Packet(ctx, "suback", suback)
		for i, code := range suback.Reasons {
			if code >= 0x80 && i < len(subs) {
				return &SubackError{Topic: subs[i].Topic, ReasonCode: code}
			}
		}
	}
	if err != nil {
		return &ConnectionError{message: "subscribe failed", wrapped: err}
	}
	return nil
}

// Publish sends a message on the given topic.
func (s *Session) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
	qos byte,
) error {
	select {
	case <-s.Done():
		return &ClientStateError{State: Closed}
	default:
	}

	ctx, cancel := s.With(ctx)
	defer cancel()

	packet := &paho.Publish{Topic: topic, QoS: qos, Payload: payload}
	s.log.Packet(ctx, "publish", packet)
	if _, err := s.client.Publish(ctx, packet); err != nil {
		return &ConnectionError{message: "publish failed", wrapped: err}
	}
	return nil
}

// Messages delivers inbound sensor messages until the session is closed.
func (s *Session) Messages() <-chan sensor.Message {
	return s.msgs
}

// Close disconnects from the server. It is safe to call more than once.
func (s *Session) Close() error {
	select {
	case <-s.Done():
		return nil
	default:
	}
	s.Background.Close(nil)

	err := s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	s.log.Info(context.Background(), "MQTT session closed")
	if err != nil {
		return &ConnectionError{message: "disconnect failed", wrapped: err}
	}
	return nil
}

func (s *Session) onPublishReceived(p paho.PublishReceived) (bool, error) {
	ctx := context.Background()
	s.log.Packet(ctx, "publish received", p.Packet)

	ch, ok := s.topics.channel(p.Packet.Topic)
	if !ok {
		return false, nil
	}

	msg := sensor.Message{
		Channel:  ch,
		Payload:  p.Packet.Payload,
		Received: wallclock.Instance.Now(),
	}
	select {
	case s.msgs <- msg:
	case <-s.Done():
	}
	return true, nil
}

func (s *Session) onClientError(err error) {
	s.log.Err(context.Background(), err)
	s.Background.Close(&ConnectionError{message: "connection lost", wrapped: err})
}

func (s *Session) onServerDisconnect(d *paho.Disconnect) {
	s.log.Packet(context.Background(), "disconnect", d)
	s.Background.Close(&DisconnectError{ReasonCode: d.ReasonCode})
}
