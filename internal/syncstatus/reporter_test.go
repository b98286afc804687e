// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package syncstatus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/replay"
)

type fakeDepth struct {
	mu  sync.Mutex
	n   int
	err error
}

func (f *fakeDepth) Len(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n, f.err
}

func (f *fakeDepth) set(n int, err error) {
	f.mu.Lock()
	f.n, f.err = n, err
	f.mu.Unlock()
}

// fakeDrainer empties depth on each pass and records triggers.
type fakeDrainer struct {
	mu       sync.Mutex
	depth    *fakeDepth
	result   replay.Result
	err      error
	triggers []replay.Trigger
	calls    chan replay.Trigger
}

func (f *fakeDrainer) DrainFor(_ context.Context, trigger replay.Trigger) (replay.Result, error) {
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	res, err := f.result, f.err
	f.mu.Unlock()
	if err == nil && f.depth != nil {
		f.depth.set(res.Failed, nil)
	}
	if f.calls != nil {
		f.calls <- trigger
	}
	res.Trigger = trigger
	return res, err
}

func (f *fakeDrainer) recorded() []replay.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]replay.Trigger(nil), f.triggers...)
}

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func TestRefreshUpdatesDepth(t *testing.T) {
	depth := &fakeDepth{n: 4}
	r := New(depth, &fakeDrainer{}, nil, nil, Config{})

	n, err := r.Refresh(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("Refresh = %d, %v", n, err)
	}
	if got := r.Snapshot().Depth; got != 4 {
		t.Errorf("Depth = %d", got)
	}

	depth.set(0, errors.New("store busy"))
	if _, err := r.Refresh(context.Background()); err == nil {
		t.Error("expected poll error")
	}
	if got := r.Snapshot().Depth; got != 4 {
		t.Errorf("Depth after missed poll = %d, want previous value 4", got)
	}
}

func TestSyncNowRecordsResult(t *testing.T) {
	depth := &fakeDepth{n: 3}
	drainer := &fakeDrainer{depth: depth, result: replay.Result{Success: 2, Failed: 1}}
	r := New(depth, drainer, nil, nil, Config{})

	res, err := r.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if res.Success != 2 || res.Failed != 1 || res.Trigger != replay.TriggerManual {
		t.Errorf("result = %+v", res)
	}

	s := r.Snapshot()
	if s.Syncing {
		t.Error("Syncing still true")
	}
	if s.Depth != 1 {
		t.Errorf("Depth = %d, want 1", s.Depth)
	}
	if s.LastResult == nil || s.LastResult.Failed != 1 || s.LastSyncAt == nil {
		t.Errorf("status = %+v", s)
	}
}

func TestSyncNowWhileDraining(t *testing.T) {
	depth := &fakeDepth{n: 1}
	drainer := &fakeDrainer{err: replay.ErrDrainInProgress}
	r := New(depth, drainer, nil, nil, Config{})

	if _, err := r.SyncNow(context.Background()); !errors.Is(err, replay.ErrDrainInProgress) {
		t.Errorf("SyncNow = %v", err)
	}
	if s := r.Snapshot(); s.LastError != "" || s.LastResult != nil {
		t.Errorf("a rejected pass must not overwrite the last result: %+v", s)
	}
}

func TestPollDrainsWhenOnline(t *testing.T) {
	depth := &fakeDepth{n: 3}
	drainer := &fakeDrainer{depth: depth}
	pinger := &fakePinger{}
	r := New(depth, drainer, pinger, nil, Config{AutoSync: true})
	ctx := context.Background()

	r.poll(ctx)
	depth.set(2, nil)
	r.poll(ctx)

	got := drainer.recorded()
	want := []replay.Trigger{replay.TriggerReconnect, replay.TriggerAuto}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("triggers = %v, want %v", got, want)
	}
	if !r.Snapshot().Online {
		t.Error("Online = false after successful ping")
	}
}

func TestPollSkipsDrain(t *testing.T) {
	tests := []struct {
		name     string
		depth    int
		pingErr  error
		autoSync bool
	}{
		{"offline", 5, errors.New("no route to host"), true},
		{"empty queue", 0, nil, true},
		{"auto sync off", 5, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drainer := &fakeDrainer{}
			r := New(&fakeDepth{n: tt.depth}, drainer, &fakePinger{err: tt.pingErr}, nil, Config{AutoSync: tt.autoSync})
			r.poll(context.Background())
			if n := len(drainer.recorded()); n != 0 {
				t.Errorf("drained %d times, want 0", n)
			}
		})
	}
}

func TestSetOnlineTriggersDrain(t *testing.T) {
	depth := &fakeDepth{n: 2}
	drainer := &fakeDrainer{depth: depth, calls: make(chan replay.Trigger, 4)}
	r := New(depth, drainer, nil, nil, Config{AutoSync: true, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Serve(ctx) }()

	r.SetOnline(true)

	select {
	case trig := <-drainer.calls:
		if trig != replay.TriggerReconnect {
			t.Errorf("trigger = %s, want reconnect", trig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no drain after coming online")
	}

	// Already online: no second transition.
	r.SetOnline(true)
	select {
	case trig := <-drainer.calls:
		t.Errorf("unexpected drain %s", trig)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}
}

func TestReporterPublishesEvents(t *testing.T) {
	ps := NewPubSub()
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msgs, err := ps.Subscribe(ctx, Topic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	r := New(&fakeDepth{n: 7}, &fakeDrainer{}, nil, NewPublisher(ps), Config{})
	go func() {
		_, _ = r.Refresh(ctx)
		r.Notify("Synced create-project")
	}()

	var events []Event
	for len(events) < 2 {
		select {
		case msg := <-msgs:
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			msg.Ack()
			events = append(events, ev)
		case <-ctx.Done():
			t.Fatalf("received %d events before timeout", len(events))
		}
	}

	byKind := map[string]Event{}
	for _, ev := range events {
		byKind[ev.Kind] = ev
	}
	if st := byKind[EventStatus].Status; st == nil || st.Depth != 7 {
		t.Errorf("status event = %+v", byKind[EventStatus])
	}
	if msg := byKind[EventMessage].Message; msg != "Synced create-project" {
		t.Errorf("message event = %q", msg)
	}
	if r.Snapshot().LastMessage != "Synced create-project" {
		t.Errorf("LastMessage = %q", r.Snapshot().LastMessage)
	}
}

// collectStatuses acks every event on Topic and keeps the status ones.
func collectStatuses(t *testing.T, ctx context.Context, ps message.Subscriber) func() []Status {
	t.Helper()
	msgs, err := ps.Subscribe(ctx, Topic)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	var mu sync.Mutex
	var got []Status
	go func() {
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err == nil && ev.Status != nil {
				mu.Lock()
				got = append(got, *ev.Status)
				mu.Unlock()
			}
			msg.Ack()
		}
	}()
	return func() []Status {
		mu.Lock()
		defer mu.Unlock()
		return append([]Status(nil), got...)
	}
}

func TestStatusEventsArriveInOrder(t *testing.T) {
	ps := NewPubSub()
	defer ps.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statuses := collectStatuses(t, ctx, ps)

	depth := &fakeDepth{}
	r := New(depth, &fakeDrainer{}, nil, NewPublisher(ps), Config{})
	const n = 200
	for i := 1; i <= n; i++ {
		depth.set(i, nil)
		if _, err := r.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	got := statuses()
	if len(got) != n {
		t.Fatalf("received %d status events, want %d", len(got), n)
	}
	for i, st := range got {
		if st.Depth != i+1 {
			t.Fatalf("event %d carries depth %d, want %d", i, st.Depth, i+1)
		}
	}
}

func TestConcurrentUpdatesEndOnCurrentStatus(t *testing.T) {
	ps := NewPubSub()
	defer ps.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statuses := collectStatuses(t, ctx, ps)

	depth := &fakeDepth{}
	r := New(depth, &fakeDrainer{}, nil, NewPublisher(ps), Config{})
	var tick atomic.Int64
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Millisecond) }

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.SetOnline(j%2 == 0)
				depth.set(g*100+j, nil)
				_, _ = r.Refresh(ctx)
			}
		}(g)
	}
	wg.Wait()

	got := statuses()
	if len(got) == 0 {
		t.Fatal("no status events received")
	}
	for i := 1; i < len(got); i++ {
		if !got[i].UpdatedAt.After(got[i-1].UpdatedAt) {
			t.Fatalf("event %d (%s) not newer than event %d (%s)",
				i, got[i].UpdatedAt, i-1, got[i-1].UpdatedAt)
		}
	}
	last, snap := got[len(got)-1], r.Snapshot()
	if last.Depth != snap.Depth || last.Online != snap.Online || !last.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("last pushed status = %+v, current = %+v", last, snap)
	}
}

type collector struct {
	mu   sync.Mutex
	got  [][]byte
	recv chan struct{}
}

func (c *collector) BroadcastRaw(data []byte) {
	c.mu.Lock()
	c.got = append(c.got, data)
	c.mu.Unlock()
	select {
	case c.recv <- struct{}{}:
	default:
	}
}

func TestRelayForwardsToBroadcaster(t *testing.T) {
	ps := NewPubSub()
	defer ps.Close()
	out := &collector{recv: make(chan struct{}, 1)}
	relay := NewRelay(ps, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Serve(ctx) }()

	pub := NewPublisher(ps)
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-out.recv:
			out.mu.Lock()
			payload := out.got[0]
			out.mu.Unlock()
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil || ev.Message != "hello" {
				t.Errorf("relayed %s (%v)", payload, err)
			}
			return
		case <-ticker.C:
			// The relay subscribes asynchronously; gochannel drops messages
			// published before that.
			pub.PublishMessage("hello")
		case <-deadline:
			t.Fatal("relay never forwarded an event")
		}
	}
}
