package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/n3tuk/maintenance-gate/internal/model"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func testRecord() *model.MaintenanceRecord {
	now := time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC)
	rec := model.StatusUpdate{Active: true, Message: "Upgrade", CreatedBy: model.ActorAdmin}.NewRecord(now)
	rec.ID = 7
	return rec
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicStatusChanged, StatusChanged{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNewStatusChanged(t *testing.T) {
	rec := testRecord()

	ev, err := NewStatusChanged(rec, "a1")
	if err != nil {
		t.Fatalf("NewStatusChanged() error = %v", err)
	}

	if !strings.HasPrefix(ev.ID, idPrefix) || len(ev.ID) != len(idPrefix)+idLength {
		t.Errorf("ID = %q, want %s followed by %d characters", ev.ID, idPrefix, idLength)
	}
	if ev.RecordID != 7 || !ev.Active || ev.Message != "Upgrade" || ev.CreatedBy != model.ActorAdmin || ev.AdminID != "a1" {
		t.Errorf("NewStatusChanged() = %+v", ev)
	}
	if !ev.OccurredAt.Equal(rec.UpdatedAt) {
		t.Errorf("OccurredAt = %v, want %v", ev.OccurredAt, rec.UpdatedAt)
	}

	other, _ := NewStatusChanged(rec, "a1")
	if other.ID == ev.ID {
		t.Errorf("two events share id %q", ev.ID)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	if !pub.Connected() {
		t.Fatal("publisher not connected")
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicStatusChanged, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	_ = nc.Flush()

	ev, _ := NewStatusChanged(testRecord(), "a1")
	if err := pub.Publish(context.Background(), TopicStatusChanged, ev); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	_ = pub.conn.Flush()

	select {
	case msg := <-ch:
		var got StatusChanged
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.ID != ev.ID || !got.Active || got.Message != "Upgrade" {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pub.Publish(ctx, TopicStatusChanged, StatusChanged{}); err == nil {
		t.Error("Publish() with canceled context returned nil error")
	}
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1", nats.Timeout(200*time.Millisecond)); err == nil {
		t.Error("NewNATSPublisher() to closed port returned nil error")
	}
}

func TestNATSSubscriber_StatusChanges(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := sub.SubscribeStatusChanges(ctx)
	if err != nil {
		t.Fatalf("SubscribeStatusChanges() error = %v", err)
	}

	// Garbage on the topic is skipped.
	_ = pub.conn.Publish(TopicStatusChanged, []byte("not json"))

	ev, _ := NewStatusChanged(testRecord(), "a1")
	if err := pub.Publish(ctx, TopicStatusChanged, ev); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	_ = pub.conn.Flush()

	select {
	case got := <-ch:
		if got.ID != ev.ID {
			t.Errorf("received event %q, want %q", got.ID, ev.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status change")
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel delivered an event after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
