package queue

import (
	"context"
	"testing"
	"time"
)

func TestChanQueuePublishConsumeRoundTrip(t *testing.T) {
	q := NewChanQueue(4)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := q.Publish(ctx, "tasks", Message{Key: "a", Value: []byte("1")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ch, err := q.Consume(ctx, "tasks")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-ch:
		if msg.Key != "a" || string(msg.Value) != "1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestChanQueuePublishAfterCloseErrors(t *testing.T) {
	q := NewChanQueue(1)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Publish(context.Background(), "tasks", Message{Key: "a"}); err == nil {
		t.Fatal("expected Publish after Close to error")
	}
}

func TestChanQueueTopicsAreIndependent(t *testing.T) {
	q := NewChanQueue(4)
	defer q.Close()
	ctx := context.Background()

	if err := q.Publish(ctx, "a", Message{Key: "x"}); err != nil {
		t.Fatal(err)
	}
	chB, _ := q.Consume(ctx, "b")
	select {
	case <-chB:
		t.Fatal("topic b should not see topic a's message")
	default:
	}
}
