package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type changed struct {
	data string
}

func bufferedLogger(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return logrus.NewEntry(log), buf
}

func TestBus_PublishDeliversInOrder(t *testing.T) {
	bus := New[changed](nil)
	var got []string
	bus.Subscribe(func(_ context.Context, e changed) error {
		got = append(got, "first:"+e.data)
		return nil
	})
	bus.Subscribe(func(_ context.Context, e changed) error {
		got = append(got, "second:"+e.data)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), changed{data: "x"}))
	require.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestBus_NoSubscribersIsNotAnError(t *testing.T) {
	log, buf := bufferedLogger(logrus.DebugLevel)
	bus := New[changed](log)
	require.NoError(t, bus.Publish(context.Background(), changed{}))
	require.Contains(t, buf.String(), "no subscribers")
}

func TestBus_HandlerErrorsAreJoined(t *testing.T) {
	bus := New[changed](nil)
	errA := errors.New("a")
	errB := errors.New("b")
	bus.Subscribe(func(context.Context, changed) error { return errA })
	bus.Subscribe(func(context.Context, changed) error { return errB })

	err := bus.Publish(context.Background(), changed{})
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
}

func TestBus_PanicRecovery(t *testing.T) {
	t.Parallel()

	t.Run("handler panic is caught and logged", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		bus := New[changed](log)
		bus.Subscribe(func(context.Context, changed) error {
			panic("intentional panic for testing")
		})

		err := bus.Publish(context.Background(), changed{data: "important-data"})
		require.Error(t, err)

		output := buf.String()
		require.True(t, strings.Contains(output, "panicked"), output)
		require.True(t, strings.Contains(output, "intentional panic for testing"), output)
		require.True(t, strings.Contains(output, "important-data"), output)
	})

	t.Run("remaining handlers still run", func(t *testing.T) {
		bus := New[changed](nil)
		called1, called2 := false, false
		bus.Subscribe(func(context.Context, changed) error {
			called1 = true
			return nil
		})
		bus.Subscribe(func(context.Context, changed) error {
			panic("handler 2 panic")
		})
		bus.Subscribe(func(context.Context, changed) error {
			called2 = true
			return nil
		})

		require.Error(t, bus.Publish(context.Background(), changed{}))
		require.True(t, called1)
		require.True(t, called2)
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New[changed](nil)
	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, changed) error {
		calls++
		return nil
	})
	bus.Subscribe(func(context.Context, changed) error { return nil })
	require.Equal(t, 2, bus.SubscribersCount())

	unsubscribe()
	require.Equal(t, 1, bus.SubscribersCount())
	require.NoError(t, bus.Publish(context.Background(), changed{}))
	require.Zero(t, calls)

	bus.Clear()
	require.Zero(t, bus.SubscribersCount())
}
