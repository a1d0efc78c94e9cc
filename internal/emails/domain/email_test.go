package domain

import (
	"testing"
	"time"
)

func sentEmail() Email {
	now := time.Now()
	return Email{Status: StatusSent, SentAt: &now}
}

func TestRecordOpenTwiceKeepsFirstTimestamp(t *testing.T) {
	e := sentEmail()

	e.RecordOpen()
	if e.OpenedAt == nil {
		t.Fatal("opened_at not set on first open")
	}
	first := *e.OpenedAt

	e.RecordOpen()
	if e.OpenCount != 2 {
		t.Fatalf("open_count = %d, want 2", e.OpenCount)
	}
	if !e.OpenedAt.Equal(first) {
		t.Fatalf("opened_at moved on second open: %v != %v", e.OpenedAt, first)
	}
	if e.Status != StatusOpened {
		t.Fatalf("status = %q, want %q", e.Status, StatusOpened)
	}
}

func TestRecordOpenAfterClickDoesNotRegressStatus(t *testing.T) {
	e := sentEmail()
	e.RecordOpen()
	e.RecordClick()
	if e.Status != StatusClicked {
		t.Fatalf("status = %q, want %q", e.Status, StatusClicked)
	}

	e.RecordOpen()
	if e.Status != StatusClicked {
		t.Fatalf("status regressed to %q after open", e.Status)
	}
	if e.OpenCount != 2 {
		t.Fatalf("open_count = %d, want 2", e.OpenCount)
	}
}

func TestRecordReplyPinsFirstTimestamp(t *testing.T) {
	e := sentEmail()
	e.RecordReply()
	if e.Status != StatusReplied {
		t.Fatalf("status = %q, want %q", e.Status, StatusReplied)
	}
	first := *e.RepliedAt

	e.RecordReply()
	if !e.RepliedAt.Equal(first) {
		t.Fatal("replied_at moved on repeated reply")
	}
}

func TestRecordBounceFromTerminalIsNoop(t *testing.T) {
	e := Email{Status: StatusReplied}
	e.RecordBounce()
	if e.Status != StatusReplied {
		t.Fatalf("status = %q, want unchanged %q", e.Status, StatusReplied)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	e := Email{Status: StatusDraft}
	if err := e.Queue(); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if e.Status != StatusPending {
		t.Fatalf("status = %q, want %q", e.Status, StatusPending)
	}
	if err := e.MarkSent(); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if e.SentAt == nil {
		t.Fatal("sent_at not stamped")
	}
}

func TestMarkSentRequiresPending(t *testing.T) {
	e := Email{Status: StatusDraft}
	if err := e.MarkSent(); err == nil {
		t.Fatal("expected transition error for draft -> sent")
	}
	if e.SentAt != nil {
		t.Fatal("sent_at stamped on rejected transition")
	}
}

func TestMarkFailedFromPending(t *testing.T) {
	e := Email{Status: StatusPending}
	if err := e.MarkFailed(); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if e.Status != StatusFailed {
		t.Fatalf("status = %q, want %q", e.Status, StatusFailed)
	}
	if !Machine.IsTerminal(e.Status) {
		t.Fatal("failed should be terminal")
	}
}
