package forwarder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakePusher struct {
	mu     sync.Mutex
	lines  []string
	failOn string
}

func (p *fakePusher) PushEventJSON(_ context.Context, raw []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, string(raw))
	if string(raw) == p.failOn {
		return errors.New("loki unavailable")
	}
	return nil
}

func TestForwarder_Run(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("transient")},
		queue: []kafka.Message{
			{Offset: 1, Value: []byte(`{"eventType":"token_issued"}`)},
			{Offset: 2, Value: []byte(`bad`)},
			{Offset: 3, Value: []byte(`{"eventType":"token_redeemed"}`)},
		},
	}
	pusher := &fakePusher{failOn: "bad"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(reader, pusher, nil).Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(reader.commits()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("committed %v, want 3 offsets", reader.commits())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := reader.commits()
	for i, want := range []int64{1, 2, 3} {
		if got[i] != want {
			t.Errorf("commit[%d] = %d, want %d", i, got[i], want)
		}
	}
	if len(pusher.lines) != 3 {
		t.Errorf("pushed %d lines, want 3", len(pusher.lines))
	}
}
