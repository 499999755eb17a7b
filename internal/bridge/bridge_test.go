package bridge

import (
	"fmt"
	"sync"
	"testing"

	"github.com/langyo/React-frontback-scaffold/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_SendWithoutConnection(t *testing.T) {
	b := New()
	err := b.Send("hi")
	require.ErrorIs(t, err, ErrNoConnection)
	assert.True(t, errors.HasCode(err, "E402"))
}

func TestBridge_ReceiveWithoutReceiver(t *testing.T) {
	b := New()
	assert.False(t, b.Receive(map[string]any{"a": 1}))
}

func TestBridge_RoutesToCurrentReceiver(t *testing.T) {
	b := New()
	var first, second []any
	b.BindReceiver("v1", func(msg any) { first = append(first, msg) })
	assert.True(t, b.Receive(1))

	b.BindReceiver("v2", func(msg any) { second = append(second, msg) })
	assert.True(t, b.Receive(2))

	assert.Equal(t, []any{1}, first)
	assert.Equal(t, []any{2}, second)
	assert.False(t, b.ReleaseReceiver("v1"))
	assert.True(t, b.ReleaseReceiver("v2"))
}

func TestBridge_BindNilReceiverClears(t *testing.T) {
	b := New()
	b.BindReceiver("v1", func(any) {})
	b.BindReceiver("v2", nil)
	assert.False(t, b.HasReceiver())
	assert.False(t, b.Receive("dropped"))
}

func TestBridge_ReleaseReceiverOnlyByOwner(t *testing.T) {
	b := New()
	b.BindReceiver("v1", func(any) {})
	assert.False(t, b.ReleaseReceiver("v0"))
	assert.True(t, b.HasReceiver())
	assert.True(t, b.ReleaseReceiver("v1"))
	assert.False(t, b.HasReceiver())
}

func TestBridge_SendUsesLatestConnection(t *testing.T) {
	b := New()
	var got []string
	b.BindSender("c1", func(msg any) error { got = append(got, "c1:"+fmt.Sprint(msg)); return nil })
	b.BindSender("c2", func(msg any) error { got = append(got, "c2:"+fmt.Sprint(msg)); return nil })

	require.NoError(t, b.Send("x"))
	assert.Equal(t, []string{"c2:x"}, got)
}

func TestBridge_ReleaseStaleSenderKeepsNewer(t *testing.T) {
	b := New()
	b.BindSender("c1", func(any) error { return nil })
	b.BindSender("c2", func(any) error { return nil })

	assert.False(t, b.ReleaseSender("c1"))
	assert.True(t, b.HasSender())

	assert.True(t, b.ReleaseSender("c2"))
	assert.ErrorIs(t, b.Send("x"), ErrNoConnection)
}

func TestBridge_SenderErrorPropagates(t *testing.T) {
	b := New()
	want := fmt.Errorf("broken pipe")
	b.BindSender("c1", func(any) error { return want })
	assert.ErrorIs(t, b.Send("x"), want)
}

func TestBridge_ReceiverRebindKeepsSender(t *testing.T) {
	b := New()
	b.BindSender("c1", func(any) error { return nil })
	b.BindReceiver("v1", func(any) {})
	b.BindReceiver("v2", func(any) {})
	assert.True(t, b.HasSender())
}

func TestBridge_Concurrent(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		owner := i
		go func() {
			defer wg.Done()
			b.BindReceiver(owner, func(any) {})
		}()
		go func() {
			defer wg.Done()
			b.BindSender(owner, func(any) error { return nil })
			b.ReleaseSender(owner)
		}()
		go func() {
			defer wg.Done()
			b.Receive(owner)
			_ = b.Send(owner)
		}()
	}
	wg.Wait()
	assert.True(t, b.HasReceiver())
}
