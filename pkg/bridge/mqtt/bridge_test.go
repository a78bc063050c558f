package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/fieldlink/pkg/l0/comm"
	"github.com/robotalks/fieldlink/pkg/l0/field"
)

type published struct {
	topic   string
	payload string
	retain  bool
}

type fakePubSub struct {
	lock      sync.Mutex
	handlers  map[string]Handler
	published []published
}

type fakeSubscription struct {
	ps    *fakePubSub
	topic string
}

func (s *fakeSubscription) Close() error {
	s.ps.lock.Lock()
	defer s.ps.lock.Unlock()
	delete(s.ps.handlers, s.topic)
	return nil
}

func (p *fakePubSub) Subscribe(topic string, handler Handler) io.Closer {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.handlers == nil {
		p.handlers = make(map[string]Handler)
	}
	p.handlers[topic] = handler
	return &fakeSubscription{ps: p, topic: topic}
}

func (p *fakePubSub) Publish(topic string, payload []byte, retain bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.published = append(p.published, published{topic: topic, payload: string(payload), retain: retain})
	return nil
}

func (p *fakePubSub) deliver(topic string, payload []byte) {
	p.lock.Lock()
	h := p.handlers[topic]
	p.lock.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func (p *fakePubSub) take() []published {
	p.lock.Lock()
	defer p.lock.Unlock()
	res := p.published
	p.published = nil
	return res
}

type bufferWriter struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (w *bufferWriter) Read([]byte) (int, error) { return 0, io.EOF }

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.Write(p)
}

func (w *bufferWriter) take() []byte {
	w.lock.Lock()
	defer w.lock.Unlock()
	data := append([]byte(nil), w.buf.Bytes()...)
	w.buf.Reset()
	return data
}

type bridgeTestEnv struct {
	rw     *bufferWriter
	ps     *fakePubSub
	device *field.Device
	bridge *Bridge
}

func newBridgeTestEnv(format Format) *bridgeTestEnv {
	env := &bridgeTestEnv{rw: &bufferWriter{}, ps: &fakePubSub{}}
	env.device = field.NewDevice(env.rw)
	env.device.MustRegister("speed", 4, field.TypeInt, 1)
	env.device.MustRegister("pos", 9, field.TypeFloat, 2)
	env.device.MustRegister("name", 10, field.TypeByte, 2)
	env.bridge = &Bridge{Device: env.device, PubSub: env.ps, Format: format, DeviceID: "dev1"}
	return env
}

func (e *bridgeTestEnv) receive(f *comm.Frame) {
	e.device.Receive(context.Background(), f.Bytes()...)
}

func TestBridgeMeta(t *testing.T) {
	env := newBridgeTestEnv(FormatJSON)
	env.bridge.PublishMeta()
	pubs := env.ps.take()
	require.Len(t, pubs, 1)
	require.Equal(t, "dev1/meta", pubs[0].topic)
	require.True(t, pubs[0].retain)
	var meta []FieldMeta
	require.NoError(t, json.Unmarshal([]byte(pubs[0].payload), &meta))
	require.Equal(t, []FieldMeta{
		{Name: "speed", ID: 4, Type: "int", Quantity: 1},
		{Name: "pos", ID: 9, Type: "float", Quantity: 2},
		{Name: "name", ID: 10, Type: "byte", Quantity: 2},
	}, meta)
}

func TestBridgePublishesValues(t *testing.T) {
	env := newBridgeTestEnv(FormatJSON)
	env.bridge.Start()
	env.receive(comm.NewSet(4, field.Ints(300).Encode()))
	env.receive(comm.NewSet(9, field.Floats(1.5, -2).Encode()))
	require.Equal(t, []published{
		{topic: "dev1/speed", payload: "300"},
		{topic: "dev1/pos", payload: "[1.5,-2]"},
	}, env.ps.take())

	env.bridge.Stop()
	env.receive(comm.NewSet(4, field.Ints(1).Encode()))
	require.Equal(t, []published{{topic: "dev1/meta", retain: true}}, env.ps.take())
}

func TestBridgeGetSet(t *testing.T) {
	env := newBridgeTestEnv(FormatJSON)
	env.bridge.Start()
	defer env.bridge.Stop()

	env.ps.deliver("dev1/speed/get", nil)
	require.Equal(t, []byte{'G', 4, comm.Checksum(0, 'G', 4)}, env.rw.take())
	require.Equal(t, 1, env.device.Field("speed").Pending())

	env.ps.deliver("dev1/speed/set", []byte("300"))
	require.Equal(t, comm.NewSet(4, []byte{0, 0, 1, 0x2c}).Bytes(), env.rw.take())

	env.ps.deliver("dev1/pos/set", []byte("[1.5, 1]"))
	require.Equal(t, comm.NewSet(9, field.Floats(1.5, 1).Encode()).Bytes(), env.rw.take())

	env.ps.deliver("dev1/name/set", []byte(`"ok"`))
	require.Equal(t, comm.NewSet(10, []byte("ok")).Bytes(), env.rw.take())

	// rejected values are not sent
	env.ps.deliver("dev1/speed/set", []byte("1.5"))
	env.ps.deliver("dev1/pos/set", []byte("1"))
	env.ps.deliver("dev1/speed/set", []byte("{"))
	require.Empty(t, env.rw.take())
}

func TestBridgeProtoFormat(t *testing.T) {
	env := newBridgeTestEnv(FormatProto)
	env.bridge.Start()
	defer env.bridge.Stop()

	env.receive(comm.NewSet(4, field.Ints(-5).Encode()))
	pubs := env.ps.take()
	require.Len(t, pubs, 1)
	var pv structpb.Value
	require.NoError(t, proto.Unmarshal([]byte(pubs[0].payload), &pv))
	require.Equal(t, -5.0, pv.GetNumberValue())

	data, err := proto.Marshal(&structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: 7}})
	require.NoError(t, err)
	env.ps.deliver("dev1/speed/set", data)
	require.Equal(t, comm.NewSet(4, field.Ints(7).Encode()).Bytes(), env.rw.take())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("proto")
	require.NoError(t, err)
	require.Equal(t, FormatProto, f)
	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestFormatDescribe(t *testing.T) {
	desc, err := FormatJSON.Describe([]byte("[1, 2.5]"))
	require.NoError(t, err)
	require.Equal(t, "[1,2.5]", desc)

	data, err := proto.Marshal(&structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: 3}})
	require.NoError(t, err)
	desc, err = FormatProto.Describe(data)
	require.NoError(t, err)
	require.Equal(t, "3", desc)

	_, err = FormatJSON.Describe([]byte("nope"))
	require.Error(t, err)
}
