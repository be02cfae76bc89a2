package channel

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// fakeTransport is a scriptable in-memory transport.
type fakeTransport struct {
	mu         sync.Mutex
	events     chan core.TransportEvent
	sent       []string
	startErr   error
	closeCount int
	closeOnce  sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan core.TransportEvent, 16)}
}

func (f *fakeTransport) Start(context.Context) (<-chan core.TransportEvent, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.events, nil
}

func (f *fakeTransport) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+":"+body)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closeCount++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeTransport) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

// recordingObserver captures events on a channel for assertion.
type recordingObserver struct {
	events chan core.ObserverEvent
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{events: make(chan core.ObserverEvent, 16)}
}

func (r *recordingObserver) Notify(event core.ObserverEvent) {
	r.events <- event
}

func (r *recordingObserver) next(t *testing.T) core.ObserverEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected an observer event")
		return nil
	}
}

func waitForState(t *testing.T, c *Connector, want core.ConnectorState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connector never reached state %s (still %s)", want, c.State())
}

func TestConnectorLifecycle(t *testing.T) {
	transport := newFakeTransport()
	observer := newRecordingObserver()
	bot := &core.Bot{ID: "b1"}

	c := NewConnector(bot, transport, observer)
	assert.Equal(t, core.StateIdle, c.State())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, core.StateInitializing, c.State())

	transport.events <- core.PairingEvent{Code: "pair-1"}
	waitForState(t, c, core.StateAwaitingPairing)

	payload, ok := observer.next(t).(core.PairingPayload)
	require.True(t, ok)
	assert.Equal(t, "b1", payload.BotID)
	assert.Equal(t, PairingArtifact("pair-1"), payload.Payload)

	transport.events <- core.ReadyEvent{SelfAddress: "self@example"}
	waitForState(t, c, core.StateOnline)

	_, ok = observer.next(t).(core.SessionOnline)
	assert.True(t, ok)

	require.NoError(t, c.Destroy())
	assert.Equal(t, 1, transport.closes())
}

func TestConnectorForwardsReissuedPairingCodes(t *testing.T) {
	transport := newFakeTransport()
	observer := newRecordingObserver()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, observer)
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	transport.events <- core.PairingEvent{Code: "pair-1"}
	transport.events <- core.PairingEvent{Code: "pair-2"}

	first, ok := observer.next(t).(core.PairingPayload)
	require.True(t, ok)
	second, ok := observer.next(t).(core.PairingPayload)
	require.True(t, ok)

	assert.Equal(t, PairingArtifact("pair-1"), first.Payload)
	assert.Equal(t, PairingArtifact("pair-2"), second.Payload)
}

func TestConnectorRoutesMessagesToHandler(t *testing.T) {
	transport := newFakeTransport()
	observer := newRecordingObserver()
	handled := make(chan core.MessageEvent, 4)

	c := NewConnector(&core.Bot{ID: "b1"}, transport, observer, func(o *Options) {
		o.Handler = HandlerFunc(func(_ context.Context, bot *core.Bot, sender Sender, _ core.Observer, msg core.MessageEvent) {
			assert.Equal(t, "b1", bot.ID)
			assert.NotNil(t, sender)
			handled <- msg
		})
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	transport.events <- core.ReadyEvent{}
	transport.events <- core.MessageEvent{From: "alice@example", Body: "hi"}

	select {
	case msg := <-handled:
		assert.Equal(t, "alice@example", msg.From)
		assert.Equal(t, "hi", msg.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("message never reached the handler")
	}
}

func TestConnectorDropsMessagesInTerminalState(t *testing.T) {
	transport := newFakeTransport()
	observer := newRecordingObserver()
	handled := make(chan core.MessageEvent, 4)

	c := NewConnector(&core.Bot{ID: "b1"}, transport, observer, func(o *Options) {
		o.Handler = HandlerFunc(func(_ context.Context, _ *core.Bot, _ Sender, _ core.Observer, msg core.MessageEvent) {
			handled <- msg
		})
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	transport.events <- core.DisconnectedEvent{Reason: "remote logout"}
	waitForState(t, c, core.StateDisconnected)

	transport.events <- core.MessageEvent{From: "alice@example", Body: "too late"}

	select {
	case <-handled:
		t.Fatal("terminal connector must not route messages")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectorDisconnectAndAuthFailure(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		transport := newFakeTransport()
		observer := newRecordingObserver()
		c := NewConnector(&core.Bot{ID: "b1"}, transport, observer)
		require.NoError(t, c.Start(context.Background()))
		defer c.Destroy()

		transport.events <- core.DisconnectedEvent{Reason: "network"}
		waitForState(t, c, core.StateDisconnected)

		off, ok := observer.next(t).(core.SessionOffline)
		require.True(t, ok)
		assert.Equal(t, "network", off.Reason)
	})

	t.Run("auth failed", func(t *testing.T) {
		transport := newFakeTransport()
		observer := newRecordingObserver()
		c := NewConnector(&core.Bot{ID: "b1"}, transport, observer)
		require.NoError(t, c.Start(context.Background()))
		defer c.Destroy()

		transport.events <- core.AuthFailedEvent{Err: fmt.Errorf("bad credential")}
		waitForState(t, c, core.StateAuthFailed)
		assert.True(t, c.State().Terminal())

		errEv, ok := observer.next(t).(core.SessionError)
		require.True(t, ok)
		assert.Error(t, errEv.Err)
	})
}

func TestObserverScopingBetweenConnectors(t *testing.T) {
	transportA := newFakeTransport()
	transportB := newFakeTransport()
	observerA := newRecordingObserver()
	observerB := newRecordingObserver()

	a := NewConnector(&core.Bot{ID: "bot-a"}, transportA, observerA)
	b := NewConnector(&core.Bot{ID: "bot-b"}, transportB, observerB)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Destroy()
	defer b.Destroy()

	transportA.events <- core.PairingEvent{Code: "pair-a"}

	payload, ok := observerA.next(t).(core.PairingPayload)
	require.True(t, ok)
	assert.Equal(t, "bot-a", payload.BotID)

	select {
	case ev := <-observerB.events:
		t.Fatalf("observer B received foreign event %T", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectorStartTwice(t *testing.T) {
	transport := newFakeTransport()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, newRecordingObserver())
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	err := c.Start(context.Background())
	assert.Error(t, err)
}

func TestConnectorDestroyIdempotent(t *testing.T) {
	transport := newFakeTransport()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, newRecordingObserver())
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Destroy())
	require.NoError(t, c.Destroy())
	assert.Equal(t, 1, transport.closes())
}

func TestConnectorDestroyWithoutStart(t *testing.T) {
	transport := newFakeTransport()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, newRecordingObserver())

	require.NoError(t, c.Destroy())
	assert.Equal(t, 1, transport.closes())
}

func TestConnectorStartAfterDestroyFails(t *testing.T) {
	transport := newFakeTransport()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, newRecordingObserver())

	require.NoError(t, c.Destroy())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroyed")

	// Destroy stays idempotent afterwards.
	require.NoError(t, c.Destroy())
}

func TestConnectorTransitionsUseStructuredLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = buf
	cfg.AddSource = false

	transport := newFakeTransport()
	observer := newRecordingObserver()
	c := NewConnector(&core.Bot{ID: "b1"}, transport, observer, func(o *Options) {
		o.Logger = logging.NewLogger(cfg)
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	transport.events <- core.PairingEvent{Code: "pair-1"}
	observer.next(t)

	out := buf.String()
	assert.Contains(t, out, "Connector state changed")
	assert.Contains(t, out, `"from":"initializing"`)
	assert.Contains(t, out, `"to":"awaiting_pairing"`)
}

func TestConnectorUpdatesBotStatus(t *testing.T) {
	transport := newFakeTransport()
	observer := newRecordingObserver()
	statuses := &statusRecorder{}

	c := NewConnector(&core.Bot{ID: "b1"}, transport, observer, func(o *Options) {
		o.BotStore = statuses
	})
	require.NoError(t, c.Start(context.Background()))
	defer c.Destroy()

	// Observer events are emitted after the status write, so receiving them
	// means the store has been updated.
	transport.events <- core.ReadyEvent{}
	_, ok := observer.next(t).(core.SessionOnline)
	require.True(t, ok)

	transport.events <- core.DisconnectedEvent{}
	_, ok = observer.next(t).(core.SessionOffline)
	require.True(t, ok)

	assert.Equal(t, []core.BotStatus{core.StatusOnline, core.StatusOffline}, statuses.all())
}

// statusRecorder is a BotStore that records status writes only.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []core.BotStatus
}

func (s *statusRecorder) Get(context.Context, string) (*core.Bot, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *statusRecorder) SetStatus(_ context.Context, _ string, status core.BotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *statusRecorder) RecordActivity(context.Context, string) error { return nil }

func (s *statusRecorder) all() []core.BotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BotStatus(nil), s.statuses...)
}
