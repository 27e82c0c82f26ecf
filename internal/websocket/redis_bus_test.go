package websocket

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	req := require.New(t)
	req.Equal("room:General", channel("General"))
	req.Equal("General", roomFromChannel(channel("General")))
}

func TestNewRedisBus_BadURL(t *testing.T) {
	_, err := NewRedisBus(context.Background(), "not-a-url", slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

// Нужен живой redis: REDIS_TEST_URL=redis://localhost:6379/0
func TestRedisBus_RelaysBetweenInstances(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL is not set")
	}
	req := require.New(t)
	log := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := NewRedisBus(ctx, url, log)
	req.NoError(err)
	defer a.Close()
	b, err := NewRedisBus(ctx, url, log)
	req.NoError(err)
	defer b.Close()

	type relayed struct {
		room  string
		frame string
	}
	gotA := make(chan relayed, 1)
	gotB := make(chan relayed, 1)
	collect := func(ch chan relayed) func(string, []byte) {
		return func(room string, frame []byte) {
			select {
			case ch <- relayed{room, string(frame)}:
			default:
			}
		}
	}
	go a.Subscribe(ctx, collect(gotA))
	go b.Subscribe(ctx, collect(gotB))

	// подписка в redis асинхронна
	req.Eventually(func() bool {
		_ = a.Publish(ctx, "General", []byte(`{"content":"hi"}`))
		select {
		case r := <-gotB:
			req.Equal("General", r.room)
			req.JSONEq(`{"content":"hi"}`, r.frame)
			return true
		default:
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)

	select {
	case r := <-gotA:
		t.Fatalf("origin received its own message: %v", r)
	case <-time.After(200 * time.Millisecond):
	}
}
