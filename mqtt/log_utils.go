// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/iancoleman/strcase"
)

type logger struct{ log.Logger }

// Packet logs an MQTT packet at debug level with one attribute per populated
// field.
func (l logger) Packet(ctx context.Context, name string, packet any) {
	// This is expensive; bail out if we don't need it.
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}

	val := realValue(reflect.ValueOf(packet))
	if val.Kind() != reflect.Struct {
		return
	}
	l.Log(ctx, slog.LevelDebug, name, reflectAttrs(val)...)
}

func reflectAttrs(val reflect.Value) []slog.Attr {
	typ := val.Type()
	var attrs []slog.Attr
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		attrs = append(attrs, reflectAttr(
			strcase.ToSnake(f.Name),
			realValue(val.Field(i)),
		)...)
	}
	return attrs
}

func reflectAttr(name string, val reflect.Value) []slog.Attr {
	// Ignore zero values to keep the log cleaner.
	if val.Kind() == reflect.Invalid || val.IsZero() {
		return nil
	}

	switch name {
	// Paho's struct nesting is not particularly useful to log.
	case "properties":
		return reflectAttrs(val)

	// Credentials never reach the log.
	case "password":
		return []slog.Attr{slog.String(name, "***")}

	case "subscriptions":
		if subs, ok := val.Interface().([]paho.SubscribeOptions); ok {
			topics := make([]string, len(subs))
			for i, s := range subs {
				topics[i] = s.Topic
			}
			return []slog.Attr{slog.Any("topics", topics)}
		}

	// strcase splits QoS into two words.
	case "qo_s":
		return []slog.Attr{slog.Any("qos", val.Interface())}
	}

	switch v := val.Interface().(type) {
	case []byte:
		return []slog.Attr{slog.String(name, string(v))}

	case paho.UserProperties:
		attrs := make([]any, len(v))
		for i, p := range v {
			attrs[i] = slog.String(p.Key, p.Value)
		}
		return []slog.Attr{slog.Group(name, attrs...)}
	}

	if val.Kind() == reflect.Struct {
		as := reflectAttrs(val)
		if len(as) == 0 {
			return nil
		}
		group := make([]any, len(as))
		for i, a := range as {
			group[i] = a
		}
		return []slog.Attr{slog.Group(name, group...)}
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func realValue(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	return val
}
