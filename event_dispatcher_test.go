package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/castellan/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSink parks every Record call until released.
type blockingSink struct {
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	events []auth.SecurityEvent
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) Record(_ context.Context, event auth.SecurityEvent) error {
	s.started <- struct{}{}
	<-s.release

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *blockingSink) Names() []auth.SecurityEventName {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]auth.SecurityEventName, 0, len(s.events))
	for _, event := range s.events {
		names = append(names, event.Name)
	}
	return names
}

func TestEventDispatcher(t *testing.T) {
	t.Run("delivers events in order", func(t *testing.T) {
		capture := &CaptureEventSink{}
		dispatcher := auth.NewEventDispatcher(capture, 16)

		for _, name := range []auth.SecurityEventName{
			auth.EventSignIn,
			auth.EventPasswordChangeSuccess,
			auth.EventSignOut,
		} {
			require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: name}))
		}
		dispatcher.Close()

		assert.Equal(t, []auth.SecurityEventName{
			auth.EventSignIn,
			auth.EventPasswordChangeSuccess,
			auth.EventSignOut,
		}, capture.Names())
		assert.Zero(t, dispatcher.Dropped())
	})

	t.Run("never blocks when the buffer is full", func(t *testing.T) {
		sink := newBlockingSink()
		dispatcher := auth.NewEventDispatcher(sink, 1)

		// First event is picked up by the drain goroutine and parks in the
		// sink, the second fills the buffer, the third has nowhere to go.
		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventSignIn}))
		<-sink.started

		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventSignOut}))
		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventPasswordChangeSuccess}))

		assert.Equal(t, uint64(1), dispatcher.Dropped())

		close(sink.release)
		dispatcher.Close()

		assert.Equal(t, []auth.SecurityEventName{auth.EventSignIn, auth.EventSignOut}, sink.Names())
	})

	t.Run("close drains buffered events", func(t *testing.T) {
		capture := &CaptureEventSink{}
		dispatcher := auth.NewEventDispatcher(capture, 16)

		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventSignIn}))
		dispatcher.Close()

		assert.Equal(t, []auth.SecurityEventName{auth.EventSignIn}, capture.Names())
	})

	t.Run("record after close is a no-op", func(t *testing.T) {
		capture := &CaptureEventSink{}
		dispatcher := auth.NewEventDispatcher(capture, 16)
		dispatcher.Close()
		dispatcher.Close()

		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventSignIn}))
		assert.Empty(t, capture.Names())
	})

	t.Run("logs sink failures", func(t *testing.T) {
		failing := auth.SecurityEventSinkFunc(func(context.Context, auth.SecurityEvent) error {
			return assert.AnError
		})
		dispatcher := auth.NewEventDispatcher(failing, 16)

		require.NoError(t, dispatcher.Record(context.Background(), auth.SecurityEvent{Name: auth.EventSignIn}))
		dispatcher.Close()
	})
}
