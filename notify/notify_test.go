package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/radarlapse/catalog"
)

func sample() Notification {
	return Notification{
		Entry:   catalog.Entry{ID: 7, City: "Powell River", Zoom: 1, Source: "windy+satellite", Filename: "a.gif"},
		Evicted: []string{"old.gif"},
	}
}

func TestRouter_FanOutContinuesAfterError(t *testing.T) {
	boom := errors.New("boom")
	var got atomic.Int32
	r := NewRouter(nil,
		NewCallback(func(context.Context, Notification) error { return boom }),
		NewCallback(func(context.Context, Notification) error { got.Add(1); return nil }),
	)
	if err := r.Send(context.Background(), sample()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if got.Load() != 1 {
		t.Fatal("second sink not called")
	}
}

func TestRouter_OnCommit(t *testing.T) {
	var seen Notification
	r := NewRouter(nil, NewCallback(func(_ context.Context, n Notification) error {
		seen = n
		return nil
	}))
	r.OnCommit(time.Second)(catalog.Commit{Entry: catalog.Entry{Filename: "x.gif"}, Evicted: []string{"y.gif"}})
	r.Drain()
	if seen.Entry.Filename != "x.gif" || len(seen.Evicted) != 1 {
		t.Fatalf("got %+v", seen)
	}
}

func TestRouter_OnCommitDoesNotWaitForSlowSink(t *testing.T) {
	release := make(chan struct{})
	var delivered atomic.Int32
	r := NewRouter(nil, NewCallback(func(context.Context, Notification) error {
		<-release
		delivered.Add(1)
		return nil
	}))
	hook := r.OnCommit(time.Minute)

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			hook(catalog.Commit{Entry: catalog.Entry{Filename: fmt.Sprintf("f%d.gif", i)}})
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("commit hook blocked on a stalled sink")
	}
	if delivered.Load() != 0 {
		t.Fatalf("delivered before release: %d", delivered.Load())
	}

	close(release)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if delivered.Load() != 3 {
		t.Fatalf("delivered: got %d, want 3", delivered.Load())
	}
}

func TestRouter_DrainWithoutOnCommit(t *testing.T) {
	r := NewRouter(nil)
	r.Drain()
	r.Drain()
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	s.Send(context.Background(), sample())
	s.Send(context.Background(), sample())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	var env struct {
		Type string       `json:"type"`
		Data Notification `json:"data"`
	}
	if err := json.Unmarshal(lines[0], &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "artifact" || env.Data.Entry.Filename != "a.gif" {
		t.Fatalf("got %+v", env)
	}
}

func TestWebhook_SingleAttemptByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Send(context.Background(), sample()); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("attempts: got %d, want 1", hits.Load())
	}
}

func TestWebhook_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Send(context.Background(), sample()); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic        string
	qos          byte
	payload      []byte
	err          error
	disconnected bool
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) pahomqtt.Token {
	p.topic, p.qos, p.payload = topic, qos, payload.([]byte)
	return doneToken(p.err)
}

func (p *fakePublisher) Disconnect(uint) { p.disconnected = true }

func TestMQTT_PublishTopic(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, "radar/", 1)
	if err := m.Send(context.Background(), sample()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.topic != "radar/Powell_River/windy_satellite" {
		t.Fatalf("topic: got %q", pub.topic)
	}
	if pub.qos != 1 {
		t.Fatalf("qos: got %d, want 1", pub.qos)
	}
	if !bytes.Contains(pub.payload, []byte(`"a.gif"`)) {
		t.Fatalf("payload: %s", pub.payload)
	}
	m.Close()
	if !pub.disconnected {
		t.Fatal("Close did not disconnect")
	}
}

func TestMQTT_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	m := NewMQTT(&fakePublisher{err: boom}, "", 0)
	if err := m.Send(context.Background(), sample()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want broker down", err)
	}
}

func TestMQTT_Timeout(t *testing.T) {
	m := NewMQTT(stuckPublisher{}, "", 1)
	m.timeout = 10 * time.Millisecond
	if err := m.Send(context.Background(), sample()); !errors.Is(err, ErrMQTTTimeout) {
		t.Fatalf("got %v, want ErrMQTTTimeout", err)
	}
}

type stuckPublisher struct{}

func (stuckPublisher) Publish(string, byte, bool, interface{}) pahomqtt.Token {
	return &fakeToken{done: make(chan struct{})}
}

func (stuckPublisher) Disconnect(uint) {}

func TestMQTTConfig_QoSDefaultsToOne(t *testing.T) {
	var cfg MQTTConfig
	if err := yaml.Unmarshal([]byte("broker: tcp://localhost:1883\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.QoS != DefaultMQTTQoS {
		t.Fatalf("qos: got %d, want %d", cfg.QoS, DefaultMQTTQoS)
	}
	if cfg.Broker != "tcp://localhost:1883" {
		t.Fatalf("broker: got %q", cfg.Broker)
	}
}

func TestMQTTConfig_ExplicitQoSZero(t *testing.T) {
	var cfg MQTTConfig
	if err := yaml.Unmarshal([]byte("broker: tcp://localhost:1883\nqos: 0\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.QoS != 0 {
		t.Fatalf("qos: got %d, want 0", cfg.QoS)
	}
}
