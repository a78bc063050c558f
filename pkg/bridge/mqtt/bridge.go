// Package mqtt bridges device fields to an MQTT broker.
//
// Topics are relative to the broker URL prefix:
//
//	<device>/meta        retained JSON list of fields
//	<device>/<name>      values received from the device
//	<device>/<name>/get  any payload requests the value
//	<device>/<name>/set  payload is sent to the device as the new value
package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// FieldMeta describes a field in the meta topic.
type FieldMeta struct {
	Name     string `json:"name"`
	ID       byte   `json:"id"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// Bridge publishes field values and serves get/set requests.
type Bridge struct {
	Device   *field.Device
	PubSub   PubSub
	Format   Format
	DeviceID string

	queue   *Queue
	lock    sync.Mutex
	closers []io.Closer
	cancels []func()
}

// NewBridge creates a Bridge connected through a broker URL.
func NewBridge(brokerURL, deviceID string, device *field.Device) (*Bridge, error) {
	opts, err := ParseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := opts.TopicPrefix + deviceID + "/meta"
	opts.Client.SetBinaryWill(metaTopic, nil, 1, true)
	if opts.Client.ClientID == "" {
		opts.Client.SetClientID("fieldlink:" + deviceID)
	}
	q := NewQueue(opts.Client, opts.TopicPrefix)
	b := &Bridge{
		Device:   device,
		PubSub:   q,
		Format:   opts.Format,
		DeviceID: deviceID,
		queue:    q,
	}
	q.OnConnect = func(*Queue) { b.PublishMeta() }
	return b, nil
}

// Topic returns the topic for a field, with optional suffix.
func (b *Bridge) Topic(name string, suffix ...string) string {
	topic := b.DeviceID + "/" + name
	for _, s := range suffix {
		topic += "/" + s
	}
	return topic
}

// Meta returns the description of all fields.
func (b *Bridge) Meta() []FieldMeta {
	fields := b.Device.Fields()
	meta := make([]FieldMeta, len(fields))
	for i, f := range fields {
		meta[i] = FieldMeta{Name: f.Name(), ID: f.ID(), Type: f.Type().String(), Quantity: f.Quantity()}
	}
	return meta
}

// PublishMeta publishes the retained meta topic.
func (b *Bridge) PublishMeta() {
	data, err := json.Marshal(b.Meta())
	if err != nil {
		panic(err)
	}
	if err := b.PubSub.Publish(b.Topic("meta"), data, true); err != nil {
		glog.Warningf("publish meta: %v", err)
	}
}

// Start watches all fields and subscribes their get/set topics.
func (b *Bridge) Start() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, f := range b.Device.Fields() {
		f := f
		b.cancels = append(b.cancels, f.Watch(func(v field.Value) { b.publishValue(f, v) }))
		b.closers = append(b.closers,
			b.PubSub.Subscribe(b.Topic(f.Name(), "get"), func(string, []byte) { b.handleGet(f) }),
			b.PubSub.Subscribe(b.Topic(f.Name(), "set"), func(_ string, payload []byte) { b.handleSet(f, payload) }),
		)
	}
}

// Stop undoes Start and clears the retained meta.
func (b *Bridge) Stop() {
	b.lock.Lock()
	cancels, closers := b.cancels, b.closers
	b.cancels, b.closers = nil, nil
	b.lock.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			glog.Warningf("unsubscribe: %v", err)
		}
	}
	if err := b.PubSub.Publish(b.Topic("meta"), nil, true); err != nil {
		glog.Warningf("clear meta: %v", err)
	}
}

// Run starts the bridge and stops it when ctx is done. A bridge created by
// NewBridge also connects to and disconnects from the broker.
func (b *Bridge) Run(ctx context.Context) error {
	b.Start()
	if q := b.queue; q != nil {
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			b.Stop()
			return token.Error()
		}
		defer q.Close()
	}
	<-ctx.Done()
	b.Stop()
	return ctx.Err()
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

func (b *Bridge) publishValue(f *field.Field, v field.Value) {
	data, err := b.Format.EncodeValue(f, v)
	if err != nil {
		glog.Warningf("encode %s: %v", f.Name(), err)
		return
	}
	if err := b.PubSub.Publish(b.Topic(f.Name()), data, false); err != nil {
		glog.Warningf("publish %s: %v", f.Name(), err)
	}
}

func (b *Bridge) handleGet(f *field.Field) {
	// the value is published by the watcher
	if err := f.Get(func(field.Value) {}); err != nil {
		glog.Warningf("get %s: %v", f.Name(), err)
	}
}

func (b *Bridge) handleSet(f *field.Field, payload []byte) {
	v, err := b.Format.DecodeValue(f, payload)
	if err == nil {
		err = f.Set(v)
	}
	if err != nil {
		glog.Warningf("set %s: %v", f.Name(), err)
	}
}
