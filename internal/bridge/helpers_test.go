package bridge

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/Vovarama1992/wa-ai-bridge/internal/ai"
	"github.com/Vovarama1992/wa-ai-bridge/internal/logutil"
	"github.com/Vovarama1992/wa-ai-bridge/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type recordingGenerator struct {
	mu    sync.Mutex
	reply ai.Reply
	err   error
	calls int
	last  ai.Request
}

func (g *recordingGenerator) Generate(_ context.Context, req ai.Request) (ai.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	return g.reply, g.err
}

func (g *recordingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type sentMessage struct {
	ChatID string
	Text   string
}

type recordingOutbound struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (o *recordingOutbound) SendMessage(_ context.Context, chatID, text string) (Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return Receipt{}, o.err
	}
	o.sent = append(o.sent, sentMessage{ChatID: chatID, Text: text})
	return Receipt{IDMessage: "BAE5000000000001"}, nil
}

func (o *recordingOutbound) Sent() []sentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sentMessage(nil), o.sent...)
}

type testEnv struct {
	db   *sql.DB
	repo *SQLRepo
	gen  *recordingGenerator
	out  *recordingOutbound
	svc  Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	gen := &recordingGenerator{}
	out := &recordingOutbound{}
	svc := NewService(repo, repo, repo, gen, out, Options{
		HistoryWindow: 30,
		Pacer:         NoDelay{},
	}, logutil.Discard())
	return &testEnv{db: db, repo: repo, gen: gen, out: out, svc: svc}
}

func (e *testEnv) countMessages(t *testing.T, direction Direction) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE direction = $1`, string(direction)).Scan(&n); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func (e *testEnv) replyStatus(t *testing.T, providerMessageID string) (ReplyStatus, int) {
	t.Helper()
	var status string
	var attempts int
	err := e.db.QueryRow(`SELECT status, attempts FROM replies WHERE provider_message_id = $1`, providerMessageID).
		Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("reply status %s: %v", providerMessageID, err)
	}
	return ReplyStatus(status), attempts
}

func (e *testEnv) contact(t *testing.T, chatID string) *Contact {
	t.Helper()
	c, err := e.repo.GetContact(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if c == nil {
		t.Fatalf("contact %s not found", chatID)
	}
	return c
}
