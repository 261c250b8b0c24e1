package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"habitbot/internal/transport"
	"habitbot/pkg/logx"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []string
	cmdCalls int
	err      error
	delay    time.Duration
	stop     chan struct{}
}

func newFakeBot() *fakeBot { return &fakeBot{stop: make(chan struct{})} }

func (b *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.sent = append(b.sent, what.(string))
	return &tele.Message{ID: len(b.sent)}, nil
}

func (b *fakeBot) Handle(interface{}, tele.HandlerFunc, ...tele.MiddlewareFunc) {}

func (b *fakeBot) SetCommands(...interface{}) error {
	b.mu.Lock()
	b.cmdCalls++
	b.mu.Unlock()
	return nil
}

func (b *fakeBot) Start() { <-b.stop }

func (b *fakeBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    string
		limit int
		want  int
	}{
		{"short", "hello", 10, 1},
		{"exact", strings.Repeat("a", 10), 10, 1},
		{"hard split", strings.Repeat("a", 25), 10, 3},
		{"newline preferred", "aaaaaa\nbbbbbbbbb", 10, 2},
	}
	for _, tc := range cases {
		got := splitTelegramText(tc.in, tc.limit, "")
		if len(got) != tc.want {
			t.Fatalf("%s: got %d chunks (%q), want %d", tc.name, len(got), got, tc.want)
		}
		for _, c := range got {
			if len([]rune(c)) > tc.limit {
				t.Fatalf("%s: chunk too long: %q", tc.name, c)
			}
		}
	}
	if got := splitTelegramText("aaaaaa\nbbbbbbbbb", 10, ""); got[0] != "aaaaaa" {
		t.Fatalf("expected newline split, got %q", got)
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()
	b := newFakeBot()
	a := newAdapter(Config{Token: "x"}, b, logx.Nop())
	ref, err := a.SendText(context.Background(), transport.ChatTarget{ChatID: 99}, "Reminder: run at 08:00 park", nil)
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if ref.ChatID != 99 || ref.MessageID != 1 || len(b.sent) != 1 {
		t.Fatalf("unexpected ref %+v sent %v", ref, b.sent)
	}

	b.err = errors.New("chat not found")
	if _, err := a.SendText(context.Background(), transport.ChatTarget{ChatID: 1}, "x", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSendTextHonoursContext(t *testing.T) {
	t.Parallel()
	b := newFakeBot()
	b.delay = time.Second
	a := newAdapter(Config{Token: "x"}, b, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.SendText(ctx, transport.ChatTarget{ChatID: 1}, "x", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSetCommandsDedupes(t *testing.T) {
	t.Parallel()
	b := newFakeBot()
	a := newAdapter(Config{Token: "x"}, b, logx.Nop())
	cmds := []transport.BotCommand{{Command: "start", Description: "show chat id"}}
	_ = a.SetCommands(cmds)
	_ = a.SetCommands(cmds)
	if b.cmdCalls != 1 {
		t.Fatalf("SetCommands calls = %d, want 1", b.cmdCalls)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	b := newFakeBot()
	a := newAdapter(Config{Token: "x"}, b, logx.Nop())
	out := make(chan transport.Update, 1)
	if err := a.Start(context.Background(), out); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.sendUpdate(updateFromMessage(&tele.Message{ID: 3, Text: "/start", Chat: &tele.Chat{ID: 5}, Sender: &tele.User{ID: 6}}))
	up := <-out
	if up.Message == nil || up.Message.ChatID != 5 || up.Message.FromID != 6 {
		t.Fatalf("unexpected update %+v", up)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
