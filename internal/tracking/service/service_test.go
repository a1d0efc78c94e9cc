package service

import (
	"context"
	"testing"

	emaildomain "outreach_backend/internal/emails/domain"
	"outreach_backend/internal/events"
	"outreach_backend/internal/tracking/domain"
	"outreach_backend/internal/tracking/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore replays the repository's atomic record semantics in memory:
// append plus email counter/status mutation as one unit.
type fakeStore struct {
	tokens map[uuid.UUID]uuid.UUID
	emails map[uuid.UUID]*emaildomain.Email
	log    []domain.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens: make(map[uuid.UUID]uuid.UUID),
		emails: make(map[uuid.UUID]*emaildomain.Email),
	}
}

func (f *fakeStore) addSentEmail() (token, emailID uuid.UUID) {
	token = uuid.New()
	emailID = uuid.New()
	f.tokens[token] = emailID
	f.emails[emailID] = &emaildomain.Email{ID: emailID, LeadID: uuid.New(), TrackingID: token, Status: emaildomain.StatusSent}
	return token, emailID
}

func (f *fakeStore) ResolveTrackingID(_ context.Context, token uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, uuid.Nil, repository.ErrEmailNotFound
	}
	return id, f.emails[id].LeadID, nil
}

func (f *fakeStore) Record(_ context.Context, ev domain.Event) (domain.Event, error) {
	e, ok := f.emails[ev.EmailID]
	if !ok {
		return domain.Event{}, repository.ErrEmailNotFound
	}
	switch ev.EventType {
	case domain.EventOpen:
		e.RecordOpen()
	case domain.EventClick:
		e.RecordClick()
	case domain.EventReply:
		e.RecordReply()
	case domain.EventBounce:
		e.RecordBounce()
	}
	ev.ID = uuid.New()
	f.log = append(f.log, ev)
	return ev, nil
}

func (f *fakeStore) ListByEmail(_ context.Context, emailID uuid.UUID, _, _ int) ([]domain.Event, int, error) {
	out := make([]domain.Event, 0)
	for i := len(f.log) - 1; i >= 0; i-- {
		if f.log[i].EmailID == emailID {
			out = append(out, f.log[i])
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) CountByType(_ context.Context, emailID *uuid.UUID) (map[domain.EventType]int, error) {
	out := make(map[domain.EventType]int)
	for _, ev := range f.log {
		if emailID == nil || ev.EmailID == *emailID {
			out[ev.EventType]++
		}
	}
	return out, nil
}

func (f *fakeStore) UniqueOpens(_ context.Context, emailID uuid.UUID) (int, error) {
	seen := make(map[string]bool)
	for _, ev := range f.log {
		if ev.EmailID != emailID || ev.EventType != domain.EventOpen {
			continue
		}
		ip := ""
		if ev.IPAddress != nil {
			ip = *ev.IPAddress
		}
		seen[ip] = true
	}
	return len(seen), nil
}

func (f *fakeStore) CollectStats(_ context.Context, emailID *uuid.UUID) (repository.StatsCounts, error) {
	var counts repository.StatsCounts
	for id, e := range f.emails {
		if emailID != nil && id != *emailID {
			continue
		}
		switch e.Status {
		case emaildomain.StatusDraft, emaildomain.StatusPending, emaildomain.StatusFailed:
		default:
			counts.SentCount++
		}
	}
	opens := make(map[string]bool)
	clicks := make(map[string]bool)
	for _, ev := range f.log {
		if emailID != nil && ev.EmailID != *emailID {
			continue
		}
		ip := ""
		if ev.IPAddress != nil {
			ip = *ev.IPAddress
		}
		key := ev.EmailID.String() + "/" + ip
		switch ev.EventType {
		case domain.EventOpen:
			opens[key] = true
		case domain.EventClick:
			clicks[key] = true
		case domain.EventReply:
			counts.Replies++
		case domain.EventBounce:
			counts.Bounces++
		}
	}
	counts.UniqueOpens = len(opens)
	counts.UniqueClicks = len(clicks)
	return counts, nil
}

type capturingBus struct {
	published []events.Event
}

func (b *capturingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *capturingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *capturingBus) Subscribe(string, events.Handler) {}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func strPtr(s string) *string { return &s }

func newTestService(store Store) *Service {
	return New(store, nopBus{}, logger.New("test"))
}

func TestRecordOpenTwiceCountsTwiceKeepsOneTimestamp(t *testing.T) {
	store := newFakeStore()
	token, emailID := store.addSentEmail()
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.RecordOpen(ctx, token, RequestMeta{IPAddress: strPtr("1.1.1.1")}); err != nil {
		t.Fatalf("first RecordOpen: %v", err)
	}
	first := *store.emails[emailID].OpenedAt

	if err := svc.RecordOpen(ctx, token, RequestMeta{IPAddress: strPtr("1.1.1.1")}); err != nil {
		t.Fatalf("second RecordOpen: %v", err)
	}

	e := store.emails[emailID]
	if e.OpenCount != 2 {
		t.Fatalf("open_count = %d, want 2", e.OpenCount)
	}
	if !e.OpenedAt.Equal(first) {
		t.Fatal("opened_at moved on second open")
	}
}

func TestUniqueOpensCollapsesSharedIPs(t *testing.T) {
	store := newFakeStore()
	token, emailID := store.addSentEmail()
	svc := newTestService(store)
	ctx := context.Background()

	// three opens from one address, one from another
	for range 3 {
		if err := svc.RecordOpen(ctx, token, RequestMeta{IPAddress: strPtr("1.1.1.1")}); err != nil {
			t.Fatalf("RecordOpen: %v", err)
		}
	}
	if err := svc.RecordOpen(ctx, token, RequestMeta{IPAddress: strPtr("2.2.2.2")}); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}

	count, err := svc.UniqueOpens(ctx, emailID)
	if err != nil {
		t.Fatalf("UniqueOpens: %v", err)
	}
	if count != 2 {
		t.Fatalf("unique opens = %d, want 2", count)
	}
}

func TestUniqueOpensNullAddressesShareOneBucket(t *testing.T) {
	store := newFakeStore()
	token, emailID := store.addSentEmail()
	svc := newTestService(store)
	ctx := context.Background()

	for range 2 {
		if err := svc.RecordOpen(ctx, token, RequestMeta{}); err != nil {
			t.Fatalf("RecordOpen: %v", err)
		}
	}

	count, err := svc.UniqueOpens(ctx, emailID)
	if err != nil {
		t.Fatalf("UniqueOpens: %v", err)
	}
	if count != 1 {
		t.Fatalf("unique opens = %d, want 1", count)
	}
}

func TestCountByTypeOmitsAbsentTypes(t *testing.T) {
	store := newFakeStore()
	token, emailID := store.addSentEmail()
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.RecordOpen(ctx, token, RequestMeta{}); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if err := svc.RecordOpen(ctx, token, RequestMeta{}); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if err := svc.RecordClick(ctx, token, "https://example.com", RequestMeta{}); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}

	result, err := svc.CountByType(ctx, &emailID)
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if result.Counts["open"] != 2 || result.Counts["click"] != 1 {
		t.Fatalf("counts = %v, want open:2 click:1", result.Counts)
	}
	if _, present := result.Counts["reply"]; present {
		t.Fatal("absent type zero-filled")
	}
}

func TestStatsRatesZeroWhenNothingSent(t *testing.T) {
	svc := newTestService(newFakeStore())

	stats, err := svc.Stats(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.OpenRate != 0 || stats.ClickRate != 0 || stats.ReplyRate != 0 || stats.BounceRate != 0 {
		t.Fatalf("rates not zero for empty send set: %+v", stats)
	}
}

func TestStatsDerivesRates(t *testing.T) {
	store := newFakeStore()
	token, _ := store.addSentEmail()
	store.addSentEmail()
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.RecordOpen(ctx, token, RequestMeta{IPAddress: strPtr("1.1.1.1")}); err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if err := svc.RecordReply(ctx, token, nil); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}

	stats, err := svc.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.SentCount != 2 {
		t.Fatalf("sent_count = %d, want 2", stats.SentCount)
	}
	if stats.OpenRate != 0.5 {
		t.Fatalf("open_rate = %v, want 0.5", stats.OpenRate)
	}
	if stats.ReplyRate != 0.5 {
		t.Fatalf("reply_rate = %v, want 0.5", stats.ReplyRate)
	}
}

func TestRecordReplyPublishesEngagedWithLead(t *testing.T) {
	store := newFakeStore()
	token, emailID := store.addSentEmail()
	bus := &capturingBus{}
	svc := New(store, bus, logger.New("test"))

	if err := svc.RecordReply(context.Background(), token, nil); err != nil {
		t.Fatalf("RecordReply: %v", err)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	engaged, ok := bus.published[0].(events.EmailEngaged)
	if !ok {
		t.Fatalf("published %T, want EmailEngaged", bus.published[0])
	}
	if engaged.EventType != "reply" {
		t.Fatalf("event type = %q, want reply", engaged.EventType)
	}
	if engaged.EmailID != emailID {
		t.Fatalf("email id = %s, want %s", engaged.EmailID, emailID)
	}
	if engaged.LeadID != store.emails[emailID].LeadID {
		t.Fatalf("lead id = %s, want %s", engaged.LeadID, store.emails[emailID].LeadID)
	}
}

func TestRecordClickRequiresURL(t *testing.T) {
	store := newFakeStore()
	token, _ := store.addSentEmail()
	svc := newTestService(store)

	err := svc.RecordClick(context.Background(), token, "", RequestMeta{})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want Validation (err: %v)", apperr.GetKind(err), err)
	}
}

func TestRecordOpenUnknownTokenIsNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	err := svc.RecordOpen(context.Background(), uuid.New(), RequestMeta{})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want NotFound (err: %v)", apperr.GetKind(err), err)
	}
}
