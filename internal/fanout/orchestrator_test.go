package fanout_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/channel"
	"github.com/relayhub/fanout-gateway/internal/dispatcher"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/fanout"
	"github.com/relayhub/fanout-gateway/internal/ledger"
	"github.com/relayhub/fanout-gateway/internal/ratelimiter"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

// countingSender tracks how many sends run concurrently and can fail
// for chosen recipients.
type countingSender struct {
	name     domain.Channel
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	failFor  map[string]bool
}

func (s *countingSender) Name() domain.Channel { return s.name }

func (s *countingSender) Send(_ context.Context, out channel.Outbound) (string, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxSeen.Load()
		if cur <= max || s.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	if s.failFor[out.Recipient] {
		return "", &channel.SendError{Code: channel.CodeAPIError, Detail: "blocked"}
	}
	return "ok", nil
}

type env struct {
	orch     *fanout.Orchestrator
	sender   *countingSender
	messages *repository.MockMessageRepository
	usage    *repository.MockUsageRepository
	contacts *repository.MockContactRepository
}

func newEnv(concurrency, unknownQuota int) *env {
	sender := &countingSender{name: domain.ChannelTelegram, failFor: map[string]bool{}}
	messages := repository.NewMockMessageRepository()
	usage := repository.NewMockUsageRepository()
	contacts := repository.NewMockContactRepository()

	disp := dispatcher.New(messages, ratelimiter.New(10000), time.Second, zap.NewNop(),
		dispatcher.MetricHooks{}, sender)
	led := ledger.New(usage, contacts, domain.WindowCalendarDay, 1000, unknownQuota, zap.NewNop())
	orch := fanout.New(led, disp, 100, concurrency, zap.NewNop())

	return &env{orch: orch, sender: sender, messages: messages, usage: usage, contacts: contacts}
}

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("recipient-%03d", i)
	}
	return out
}

func TestBroadcast_AllSent(t *testing.T) {
	e := newEnv(10, 100)

	summary, err := e.orch.Broadcast(context.Background(), domain.BroadcastRequest{
		Recipients: recipients(20),
		Message:    "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 20 || summary.Successful != 20 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Details) != 20 {
		t.Fatalf("expected 20 details, got %d", len(summary.Details))
	}
	if len(e.messages.All()) != 20 {
		t.Fatalf("expected 20 message records, got %d", len(e.messages.All()))
	}
}

func TestBroadcast_MixedOutcomes(t *testing.T) {
	e := newEnv(5, 100)
	e.sender.failFor["recipient-003"] = true
	e.sender.failFor["recipient-007"] = true

	// recipient-001 has exhausted today's quota already.
	today := time.Now().UTC().Format("2006-01-02")
	e.usage.Seed("recipient-001", today, 100, false)

	summary, err := e.orch.Broadcast(context.Background(), domain.BroadcastRequest{
		Recipients: recipients(10),
		Message:    "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Successful != 7 || summary.Failed != 2 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Total != summary.Successful+summary.Failed+summary.Skipped {
		t.Fatal("counts do not add up to total")
	}

	for _, d := range summary.Details {
		if d.Recipient == "recipient-001" {
			if d.Outcome != domain.OutcomeSkipped {
				t.Fatalf("expected quota-denied recipient to be skipped, got %s", d.Outcome)
			}
			if d.MessageID != "" {
				t.Fatal("skipped recipient must not have a message record")
			}
		}
	}

	// Skipped recipients never reach the dispatcher: 9 records, not 10.
	if len(e.messages.All()) != 9 {
		t.Fatalf("expected 9 message records, got %d", len(e.messages.All()))
	}
}

func TestBroadcast_RejectsOversizedList(t *testing.T) {
	e := newEnv(10, 100)

	_, err := e.orch.Broadcast(context.Background(), domain.BroadcastRequest{
		Recipients: recipients(101),
		Message:    "hello",
	})
	if !errors.Is(err, domain.ErrTooManyRecipients) {
		t.Fatalf("expected ErrTooManyRecipients, got %v", err)
	}
	// Rejected whole: nothing was dispatched.
	if len(e.messages.All()) != 0 {
		t.Fatal("expected no message records for a rejected request")
	}
}

func TestBroadcast_ConcurrencyBounded(t *testing.T) {
	const bound = 4
	e := newEnv(bound, 1000)

	_, err := e.orch.Broadcast(context.Background(), domain.BroadcastRequest{
		Recipients: recipients(50),
		Message:    "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if max := e.sender.maxSeen.Load(); max > bound {
		t.Fatalf("observed %d concurrent sends, bound is %d", max, bound)
	}
}

func TestBroadcast_SkipCallbackFires(t *testing.T) {
	e := newEnv(5, 0) // unknown quota of zero skips everyone

	var skips atomic.Int32
	e.orch.OnSkipped = func(domain.Channel) { skips.Add(1) }

	summary, err := e.orch.Broadcast(context.Background(), domain.BroadcastRequest{
		Recipients: recipients(5),
		Message:    "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Skipped != 5 {
		t.Fatalf("expected 5 skips, got %d", summary.Skipped)
	}
	if skips.Load() != 5 {
		t.Fatalf("expected skip hook to fire 5 times, got %d", skips.Load())
	}
}
