package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
)

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return m
	default:
		t.Fatal("expected a queued message")
	}
	return Message{}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Send:
		t.Fatal("unexpected message")
	default:
	}
}

func TestValidTopic(t *testing.T) {
	valid := []string{TopicAll, DoctorTopic(uuid.New()), RoomTopic(uuid.New()), DateTopic("2030-01-15")}
	for _, tp := range valid {
		if !ValidTopic(tp) {
			t.Errorf("ValidTopic(%q) = false", tp)
		}
	}
	for _, tp := range []string{"", "doctor:", "doctor:abc", "nurse:" + uuid.NewString(), "date:15-01", "everything"} {
		if ValidTopic(tp) {
			t.Errorf("ValidTopic(%q) = true", tp)
		}
	}
}

func TestHub_PublishRoutesByTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctor, otherDoctor, room := uuid.New(), uuid.New(), uuid.New()

	byDoctor := NewClient(4)
	byDoctor.Topics = []string{DoctorTopic(doctor)}
	byRoom := NewClient(4)
	byRoom.Topics = []string{RoomTopic(room)}
	other := NewClient(4)
	other.Topics = []string{DoctorTopic(otherDoctor)}
	for _, c := range []*Client{byDoctor, byRoom, other} {
		hub.Register(c)
	}

	e := events.Event{Type: events.AppointmentBooked, DoctorID: doctor, RoomID: &room, Date: "2030-01-15", Slot: "10:00-10:30"}
	if err := hub.Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	if m := recv(t, byDoctor); m.Event.Slot != "10:00-10:30" || m.Event.ID == uuid.Nil {
		t.Errorf("unexpected message: %+v", m)
	}
	recv(t, byRoom)
	assertEmpty(t, other)
}

func TestHub_DeliversOncePerClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctor := uuid.New()
	c := NewClient(4)
	c.Topics = []string{TopicAll, DoctorTopic(doctor), DateTopic("2030-01-15")}
	hub.Register(c)

	hub.Publish(context.Background(), events.Event{Type: events.AppointmentCancelled, DoctorID: doctor, Date: "2030-01-15"})
	recv(t, c)
	assertEmpty(t, c)
}

func TestHub_RescheduleReachesPreviousDate(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(4)
	c.Topics = []string{DateTopic("2030-01-15")}
	hub.Register(c)

	hub.Publish(context.Background(), events.Event{
		Type: events.AppointmentRescheduled, DoctorID: uuid.New(),
		Date: "2030-01-16", PreviousDate: "2030-01-15",
	})
	recv(t, c)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(4)
	hub.Register(c)
	topic := DateTopic("2030-01-15")

	rejected := hub.Subscribe(c, []string{topic, "bogus", topic})
	if len(rejected) != 1 || rejected[0] != "bogus" {
		t.Errorf("rejected = %v", rejected)
	}
	if len(c.Topics) != 1 || hub.TopicCount(topic) != 1 {
		t.Errorf("expected one subscription, got %v", c.Topics)
	}

	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{topic}})
	if len(c.Topics) != 0 || hub.TopicCount(topic) != 0 {
		t.Errorf("expected no subscriptions, got %v", c.Topics)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(1)
	c.Topics = []string{TopicAll}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicAll) != 0 {
		t.Error("client not removed")
	}
	if _, ok := <-c.Send; ok {
		t.Error("Send should be closed")
	}
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(1)
	c.Topics = []string{TopicAll}
	hub.Register(c)

	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), events.Event{Type: events.AppointmentBooked}); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.Send) != 1 {
		t.Errorf("expected queue capped at 1, got %d", len(c.Send))
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := NewClient(1), NewClient(1)
	a.Topics = []string{TopicAll}
	hub.Register(a)
	hub.Register(b)

	hub.Close()
	if hub.ClientCount() != 0 || hub.TopicCount(TopicAll) != 0 {
		t.Fatal("expected hub empty after Close")
	}
	for _, c := range []*Client{a, b} {
		if _, ok := <-c.Send; ok {
			t.Error("Send should be closed")
		}
	}
	hub.Unregister(a)
}
