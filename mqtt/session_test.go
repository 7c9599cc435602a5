// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cartertinney/envmonitor/broker"
	"github.com/cartertinney/envmonitor/mqtt"
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/stretchr/testify/require"
)

const (
	mochiTCPPort  = 18841
	mochiUserName = "gary"
	mochiPassword = "pineapple"
)

func startBroker(t *testing.T) *broker.Broker {
	b, err := broker.New(
		broker.WithAddress(fmt.Sprintf("localhost:%d", mochiTCPPort)),
		broker.WithCredentials{Username: mochiUserName, Password: mochiPassword},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newClient(t *testing.T, password string) *mqtt.Client {
	client, err := mqtt.NewClientFromConnectionString(
		fmt.Sprintf("HostName=localhost;TcpPort=%d;Username=%s;Password=%s",
			mochiTCPPort,
			mochiUserName,
			password,
		),
	)
	require.NoError(t, err)
	return client
}

func receive(t *testing.T, stream sensor.Stream) sensor.Message {
	select {
	case msg := <-stream.Messages():
		return msg
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no message received")
		return sensor.Message{}
	}
}

func TestWithMochi(t *testing.T) {
	b := startBroker(t)

	t.Run("TestChannels", func(t *testing.T) {
		stream, err := newClient(t, mochiPassword).Connect(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = stream.Close() })

		require.NoError(t, b.Publish("iot/temperature", []byte("21.5"), false))
		msg := receive(t, stream)
		require.Equal(t, sensor.Temperature, msg.Channel)
		require.Equal(t, "21.5", string(msg.Payload))
		require.False(t, msg.Received.IsZero())

		require.NoError(t, b.Publish("iot/humidity", []byte("48"), false))
		require.Equal(t, sensor.Humidity, receive(t, stream).Channel)

		require.NoError(t, b.Publish("iot/sensor/data",
			[]byte(`{"temperature":20,"humidity":40}`), false))
		require.Equal(t, sensor.Combined, receive(t, stream).Channel)
	})

	t.Run("TestSessionPublish", func(t *testing.T) {
		client := newClient(t, mochiPassword)
		stream, err := client.Connect(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = stream.Close() })

		publisher, err := newClient(t, mochiPassword).Dial(context.Background())
		require.NoError(t, err)

		require.NoError(t, publisher.Publish(context.Background(),
			client.Topics().Humidity, []byte("55.5"), 1))
		msg := receive(t, stream)
		require.Equal(t, sensor.Humidity, msg.Channel)
		require.Equal(t, "55.5", string(msg.Payload))

		require.NoError(t, publisher.Close())
		require.NoError(t, publisher.Close())

		err = publisher.Publish(context.Background(), "iot/humidity", nil, 0)
		var state *mqtt.ClientStateError
		require.ErrorAs(t, err, &state)
		require.Equal(t, mqtt.Closed, state.State)
	})

	t.Run("TestBadCredentials", func(t *testing.T) {
		_, err := newClient(t, "banana").Connect(context.Background())
		var connack *mqtt.ConnackError
		require.True(t, errors.As(err, &connack), "%v", err)
	})

	t.Run("TestCloseEndsStream", func(t *testing.T) {
		stream, err := newClient(t, mochiPassword).Connect(context.Background())
		require.NoError(t, err)
		require.NoError(t, stream.Close())

		select {
		case <-stream.Done():
		case <-time.After(5 * time.Second):
			require.FailNow(t, "stream not done after close")
		}
		require.NoError(t, stream.Err())
	})
}

func TestConnectionRefused(t *testing.T) {
	client, err := mqtt.NewClientFromConnectionString(
		"HostName=localhost;TcpPort=18849;ConnectionTimeout=PT2S")
	require.NoError(t, err)

	_, err = client.Connect(context.Background())
	var conn *mqtt.ConnectionError
	require.ErrorAs(t, err, &conn)
}

func TestLinkLoss(t *testing.T) {
	b, err := broker.New(broker.WithAddress("localhost:18842"))
	require.NoError(t, err)

	client, err := mqtt.NewClientFromConnectionString(
		"HostName=localhost;TcpPort=18842")
	require.NoError(t, err)
	stream, err := client.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })

	require.NoError(t, b.Close())
	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "stream not done after broker shutdown")
	}
	require.Error(t, stream.Err())
}
