package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:marketsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")
	// One pooled connection keeps concurrent test transactions serialized
	// instead of tripping SQLite shared-cache locking.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// recordingNotifier captures events so tests can assert on the
// persist-then-broadcast contract.
type recordingNotifier struct {
	mu       sync.Mutex
	room     []string // room IDs that received an event
	users    []string // user IDs that received an event
	excluded []string // user IDs skipped by except-sender fan-outs
}

func (n *recordingNotifier) RoomEvent(roomID string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.room = append(n.room, roomID)
}

func (n *recordingNotifier) RoomEventExcept(roomID, exceptUserID string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.room = append(n.room, roomID)
	n.excluded = append(n.excluded, exceptUserID)
}

func (n *recordingNotifier) UserEvent(userID string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func (n *recordingNotifier) userNotified(userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, u := range n.users {
		if u == userID {
			return true
		}
	}
	return false
}

func seedAgent(t *testing.T, db *gorm.DB, id string, services ...string) *domain.Partner {
	t.Helper()
	p := &domain.Partner{
		ID:     id,
		Name:   "Agent " + id,
		Role:   domain.RoleAgent,
		Status: domain.PartnerAvailable,
		Rating: 5,
		Agent: &domain.AgentProfile{
			PartnerID: id,
			Kind:      domain.AgentMobile,
			Services:  services,
		},
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed agent %s: %v", id, err)
	}
	return p
}

func seedVendor(t *testing.T, db *gorm.DB, id, shop string) *domain.Partner {
	t.Helper()
	p := &domain.Partner{
		ID:     id,
		Name:   "Vendor " + id,
		Role:   domain.RoleVendor,
		Status: domain.PartnerAvailable,
		Rating: 5,
		Vendor: &domain.VendorProfile{
			PartnerID: id,
			ShopName:  shop,
		},
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed vendor %s: %v", id, err)
	}
	return p
}

func TestWish_Create_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := NewWishService(db, nil, nil)

	cases := []CreateWishInput{
		{Category: "delivery", Title: "", Remuneration: 1200},
		{Category: "", Title: "Groceries", Remuneration: 1200},
		{Category: "delivery", Title: "Groceries", Remuneration: 0},
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), "wisher-1", in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestWish_Create_MatchesImmediately(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewWishService(db, NewDirectoryAllocator(db), &recordingNotifier{})

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Status != domain.WishStatusMatched {
		t.Fatalf("status = %q, want matched", w.Status)
	}
	if w.AssignedPartnerID == nil || *w.AssignedPartnerID != "agent-1" {
		t.Fatalf("assignee = %v, want agent-1", w.AssignedPartnerID)
	}
}

func TestWish_Create_NoCandidateStaysSearching(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "cleaning") // serves the wrong category
	svc := NewWishService(db, NewDirectoryAllocator(db), nil)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Status != domain.WishStatusSearching {
		t.Fatalf("status = %q, want searching", w.Status)
	}
	if w.AssignedPartnerID != nil {
		t.Fatalf("assignee = %v, want none", *w.AssignedPartnerID)
	}
}

func TestWish_Accept_DirectClaimOpensRoom(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	notify := &recordingNotifier{}
	svc := NewWishService(db, nil, notify)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, room, err := svc.Accept(context.Background(), "agent-1", w.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != domain.WishStatusAccepted {
		t.Fatalf("status = %q, want accepted", got.Status)
	}
	if room == nil || got.ChatRoomID == nil || *got.ChatRoomID != room.ID {
		t.Fatalf("chat room not linked: room=%v wish=%+v", room, got)
	}
	if room.WisherID != "wisher-1" || room.PartnerID != "agent-1" {
		t.Fatalf("room participants = %q/%q", room.WisherID, room.PartnerID)
	}

	// The room opens with the partner's greeting already on record.
	msgs, err := repo.ListMessages(context.Background(), db, room.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].SenderID != "agent-1" {
		t.Fatalf("greeting = %+v, want one message from agent-1", msgs)
	}
	if msgs[0].Content != "Hi! I'm Agent agent-1 and I can help with your request." {
		t.Fatalf("greeting content = %q", msgs[0].Content)
	}

	p, err := repo.GetPartner(context.Background(), db, "agent-1")
	if err != nil {
		t.Fatalf("get partner: %v", err)
	}
	if p.Status != domain.PartnerBusy {
		t.Fatalf("partner status = %q, want busy", p.Status)
	}
	if !notify.userNotified("wisher-1") {
		t.Fatal("wisher was not notified")
	}
}

func TestWish_Accept_RaceOneWinner(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	seedAgent(t, db, "agent-2", "delivery")
	svc := NewWishService(db, nil, nil)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, agent := range []string{"agent-1", "agent-2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := svc.Accept(context.Background(), id, w.ID)
			results <- err
		}(agent)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyAssigned):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("wins=%d losses=%d, want exactly one of each", wins, losses)
	}

	got, err := repo.GetWish(context.Background(), db, w.ID)
	if err != nil {
		t.Fatalf("get wish: %v", err)
	}
	if got.AssignedPartnerID == nil {
		t.Fatal("no assignee after the race")
	}
}

func TestWish_Accept_WrongCategoryForbidden(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "cleaning")
	svc := NewWishService(db, nil, nil)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Accept(context.Background(), "agent-1", w.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestWish_Decline_ReturnsToSearchingAndRematches(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	seedAgent(t, db, "agent-2", "delivery")
	notify := &recordingNotifier{}
	svc := NewWishService(db, NewDirectoryAllocator(db), notify)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := *w.AssignedPartnerID

	if err := svc.Decline(context.Background(), first, w.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	got, err := repo.GetWish(context.Background(), db, w.ID)
	if err != nil {
		t.Fatalf("get wish: %v", err)
	}
	if got.AssignedPartnerID == nil {
		t.Fatal("expected a re-match to the other agent")
	}
	if *got.AssignedPartnerID == first {
		t.Fatalf("re-matched to the decliner %s", first)
	}
	if got.Status != domain.WishStatusMatched {
		t.Fatalf("status = %q, want matched", got.Status)
	}
}

func TestWish_Decline_NotAssigned(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	seedAgent(t, db, "agent-2", "delivery")
	svc := NewWishService(db, NewDirectoryAllocator(db), nil)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stranger := "agent-2"
	if *w.AssignedPartnerID == stranger {
		stranger = "agent-1"
	}
	if err := svc.Decline(context.Background(), stranger, w.ID); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected ErrNotAssigned, got %v", err)
	}
}

func TestWish_Complete_SettlesEverythingAtomically(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	notify := &recordingNotifier{}
	svc := NewWishService(db, nil, notify)
	ctx := context.Background()

	w, err := svc.Create(ctx, "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Accept(ctx, "agent-1", w.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.Start(ctx, "agent-1", w.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := svc.Complete(ctx, "agent-1", w.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != domain.WishStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}

	// Ledger credit equals the remuneration.
	records, err := repo.ListEarnings(ctx, db, "agent-1", 0)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if len(records) != 1 || records[0].Amount != 1200 || records[0].Type != domain.EarningWish {
		t.Fatalf("earnings = %+v, want one wish record of 1200", records)
	}

	// Cumulative totals match the ledger.
	p, err := repo.GetPartner(ctx, db, "agent-1")
	if err != nil {
		t.Fatalf("get partner: %v", err)
	}
	if p.TotalTasks != 1 || p.TotalEarnings != 1200 {
		t.Fatalf("totals = %d/%v, want 1/1200", p.TotalTasks, p.TotalEarnings)
	}
	if p.Status != domain.PartnerAvailable {
		t.Fatalf("partner status = %q, want available", p.Status)
	}

	room, err := repo.GetRoom(ctx, db, *got.ChatRoomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.Status != domain.RoomStatusCompleted {
		t.Fatalf("room status = %q, want completed", room.Status)
	}
}

func TestWish_Complete_FromAcceptedWithoutStart(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewWishService(db, nil, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Accept(ctx, "agent-1", w.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Completion straight from accepted, no explicit start.
	got, err := svc.Complete(ctx, "agent-1", w.ID)
	if err != nil {
		t.Fatalf("complete from accepted: %v", err)
	}
	if got.Status != domain.WishStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	records, err := repo.ListEarnings(ctx, db, "agent-1", 0)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if len(records) != 1 || records[0].Amount != 1200 {
		t.Fatalf("earnings = %+v, want one record of 1200", records)
	}
}

func TestWish_Complete_RequiresAcceptance(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewWishService(db, NewDirectoryAllocator(db), nil)
	ctx := context.Background()

	// Matched but not yet accepted by the partner.
	w, err := svc.Create(ctx, "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Status != domain.WishStatusMatched {
		t.Fatalf("status = %q, want matched", w.Status)
	}
	if _, err := svc.Complete(ctx, "agent-1", w.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	// A failed completion must leave the ledger untouched.
	records, _ := repo.ListEarnings(ctx, db, "agent-1", 0)
	if len(records) != 0 {
		t.Fatalf("earnings after failed completion: %+v", records)
	}
}

func TestWish_Cancel_FreesPartnerAndClosesRoom(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewWishService(db, nil, nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Accept(ctx, "agent-1", w.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, err := svc.Cancel(ctx, "wisher-1", w.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.WishStatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
	p, _ := repo.GetPartner(ctx, db, "agent-1")
	if p.Status != domain.PartnerAvailable {
		t.Fatalf("partner status = %q, want available", p.Status)
	}
	room, _ := repo.GetRoom(ctx, db, *got.ChatRoomID)
	if room.Status != domain.RoomStatusClosed {
		t.Fatalf("room status = %q, want closed", room.Status)
	}

	// Terminal statuses admit nothing further.
	if _, err := svc.Cancel(ctx, "wisher-1", w.ID); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestWish_Cancel_OnlyOwner(t *testing.T) {
	db := newTestDB(t)
	svc := NewWishService(db, nil, nil)

	w, err := svc.Create(context.Background(), "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), "wisher-2", w.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestWish_Track(t *testing.T) {
	db := newTestDB(t)
	seedAgent(t, db, "agent-1", "delivery")
	svc := NewWishService(db, NewDirectoryAllocator(db), nil)
	ctx := context.Background()

	w, err := svc.Create(ctx, "wisher-1", CreateWishInput{
		Category: "delivery", Title: "Groceries run", Remuneration: 1200,
		Lat: 40.4168, Lng: -3.7038,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tr, err := svc.Track(ctx, w.ID)
	if err != nil {
		t.Fatalf("track before location: %v", err)
	}
	if tr.PartnerLocation != nil || tr.ETAMinutes != 0 {
		t.Fatalf("tracking before location = %+v, want status only", tr)
	}
	if tr.Status != domain.WishStatusMatched {
		t.Fatalf("status = %q, want matched", tr.Status)
	}

	// Roughly 8 km north of the wish.
	if err := repo.UpsertLocation(ctx, db, &domain.PartnerLocation{
		PartnerID: "agent-1", Lat: 40.49, Lng: -3.7038,
	}); err != nil {
		t.Fatalf("upsert location: %v", err)
	}

	tr, err = svc.Track(ctx, w.ID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if tr.PartnerLocation == nil || tr.PartnerLocation.PartnerID != "agent-1" {
		t.Fatalf("partner location = %+v", tr.PartnerLocation)
	}
	if tr.ETAMinutes < 10 || tr.ETAMinutes > 40 {
		t.Fatalf("eta = %d minutes at default speed, out of plausible range", tr.ETAMinutes)
	}

	if _, err := svc.Track(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown wish: expected ErrNotFound, got %v", err)
	}
}
