package dialogue

import (
	"context"
	"errors"
	"testing"
)

func TestMock(t *testing.T) {
	t.Run("scripted replies", func(t *testing.T) {
		m := NewMock("one", "two")
		m.DefaultReply = "default"
		ctx := context.Background()

		for _, want := range []string{"one", "two", "default"} {
			got, err := m.SendMessage(ctx, "q")
			if err != nil || got != want {
				t.Errorf("SendMessage() = %q, %v, want %q", got, err, want)
			}
		}
		if m.CallCount("SendMessage") != 3 || len(m.Messages()) != 3 {
			t.Error("calls not recorded")
		}
	})

	t.Run("start failure", func(t *testing.T) {
		m := NewMock()
		m.StartConversationFunc = func(context.Context) error { return ErrMissingSecret }
		if err := m.StartConversation(context.Background()); !errors.Is(err, ErrMissingSecret) {
			t.Errorf("error = %v", err)
		}
		if m.IsConnected() {
			t.Error("connected after failure")
		}
	})

	t.Run("end", func(t *testing.T) {
		m := NewMock()
		_ = m.StartConversation(context.Background())
		m.EndConversation()
		if m.IsConnected() {
			t.Error("still connected")
		}
		m.Reset()
		if m.CallCount("StartConversation") != 0 {
			t.Error("Reset did not clear calls")
		}
	})
}
