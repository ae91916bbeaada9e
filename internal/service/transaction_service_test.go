package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/events"
	"github.com/spec-kit/points-ledger/internal/repository/memory"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	store   *memory.Store
	svc     *TransactionService
	cashier *domain.User
	manager *domain.User
	alice   *domain.User
	bob     *domain.User

	mu        sync.Mutex
	published []events.Event
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memory.New()
	store.SetClock(func() time.Time { return fixedNow })

	f := &ledgerFixture{store: store}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, typ := range []events.EventType{
		events.EventTransactionCreated,
		events.EventRedemptionProcessed,
		events.EventTransactionSuspiciousChanged,
		events.EventEventPointsAwarded,
	} {
		dispatcher.Subscribe(typ, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, e)
			return nil
		})
	}

	f.svc = NewTransactionService(TransactionDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Clock:      func() time.Time { return fixedNow },
	})
	f.cashier = store.AddUser(domain.User{Utorid: "cash0001", Role: domain.RoleCashier, Verified: true})
	f.manager = store.AddUser(domain.User{Utorid: "mgr00001", Role: domain.RoleManager, Verified: true})
	f.alice = store.AddUser(domain.User{Utorid: "alice001", Verified: true})
	f.bob = store.AddUser(domain.User{Utorid: "bobby001", Verified: true})
	return f
}

// credit records a purchase for u through the fixture cashier.
func (f *ledgerFixture) credit(t *testing.T, u *domain.User, spent string) *domain.Transaction {
	t.Helper()
	tx, err := f.svc.CreatePurchase(context.Background(), f.cashier, PurchaseInput{
		Utorid: u.Utorid,
		Spent:  decimal.RequireFromString(spent),
	})
	require.NoError(t, err)
	return tx
}

func (f *ledgerFixture) user(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := f.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *ledgerFixture) points(t *testing.T, id int64) int64 {
	t.Helper()
	return f.user(t, id).Points
}

// assertConserved checks a balance equals the sum of applied deltas of the user's rows.
func (f *ledgerFixture) assertConserved(t *testing.T, id int64) {
	t.Helper()
	var sum int64
	for _, tx := range f.store.Transactions() {
		if tx.UserID == id {
			sum += tx.AppliedPoints()
		}
	}
	assert.Equal(t, sum, f.points(t, id), "balance of user %d diverged from its ledger", id)
}

func (f *ledgerFixture) eventsOf(typ events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

func ptr[T any](v T) *T { return &v }

func TestPurchase(t *testing.T) {
	t.Run("ten dollars earns forty points", func(t *testing.T) {
		f := newLedgerFixture(t)
		tx := f.credit(t, f.alice, "10.00")

		assert.Equal(t, domain.TransactionPurchase, tx.Type)
		assert.Equal(t, int64(40), tx.Earned)
		assert.Equal(t, "cash0001", tx.CreatedBy)
		assert.False(t, tx.Suspicious)
		assert.Empty(t, tx.PromotionIDs)
		assert.Equal(t, int64(40), f.points(t, f.alice.ID))
		f.assertConserved(t, f.alice.ID)

		created := f.eventsOf(events.EventTransactionCreated)
		require.Len(t, created, 1)
		payload := created[0].Payload.(events.TransactionCreatedPayload)
		assert.Equal(t, int64(40), payload.Balance)
		assert.Equal(t, tx.ID, created[0].TransactionID)
	})

	t.Run("base points round to nearest", func(t *testing.T) {
		assert.Equal(t, int64(1), BaseEarned(decimal.RequireFromString("0.13")))
		assert.Equal(t, int64(0), BaseEarned(decimal.RequireFromString("0.12")))
		assert.Equal(t, int64(4), BaseEarned(decimal.RequireFromString("0.99")))
	})

	t.Run("requires cashier", func(t *testing.T) {
		f := newLedgerFixture(t)
		_, err := f.svc.CreatePurchase(context.Background(), f.alice, PurchaseInput{
			Utorid: f.bob.Utorid, Spent: decimal.NewFromInt(5),
		})
		requireCode(t, err, apperrors.CodeForbidden)

		_, err = f.svc.CreatePurchase(context.Background(), nil, PurchaseInput{})
		requireCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()

		_, err := f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{Utorid: f.alice.Utorid, Spent: decimal.Zero})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{Utorid: f.alice.Utorid, Spent: decimal.RequireFromString("1.005")})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{Utorid: "nobody01", Spent: decimal.NewFromInt(1)})
		requireCode(t, err, apperrors.CodeNotFound)

		assert.Empty(t, f.store.Transactions())
	})

	t.Run("suspicious cashier credits nothing until cleared", func(t *testing.T) {
		f := newLedgerFixture(t)
		shady := f.store.AddUser(domain.User{Utorid: "cash0002", Role: domain.RoleCashier, Suspicious: true})

		tx, err := f.svc.CreatePurchase(context.Background(), shady, PurchaseInput{
			Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		assert.True(t, tx.Suspicious)
		assert.Equal(t, int64(40), tx.Earned, "would-be earnings are recorded")
		assert.Zero(t, f.points(t, f.alice.ID))
		f.assertConserved(t, f.alice.ID)

		_, err = f.svc.SetSuspicious(context.Background(), f.manager, tx.ID, false)
		require.NoError(t, err)
		assert.Equal(t, int64(40), f.points(t, f.alice.ID))
		f.assertConserved(t, f.alice.ID)
	})
}

func TestPurchasePromotions(t *testing.T) {
	window := func(p domain.Promotion) domain.Promotion {
		p.StartTime = fixedNow.Add(-time.Hour)
		p.EndTime = fixedNow.Add(time.Hour)
		return p
	}

	t.Run("recurring and one-time bonuses stack", func(t *testing.T) {
		f := newLedgerFixture(t)
		rate := decimal.RequireFromString("0.01")
		recurring := f.store.AddPromotion(window(domain.Promotion{Name: "Double", Type: domain.PromotionRecurring, Rate: &rate}))
		oneTime := f.store.AddPromotion(window(domain.Promotion{Name: "Welcome", Type: domain.PromotionOneTime, Points: 20}))

		tx, err := f.svc.CreatePurchase(context.Background(), f.cashier, PurchaseInput{
			Utorid:       f.alice.Utorid,
			Spent:        decimal.NewFromInt(10),
			PromotionIDs: []int64{recurring.ID, oneTime.ID, recurring.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(40+10+20), tx.Earned)
		assert.Equal(t, []int64{recurring.ID, oneTime.ID}, tx.PromotionIDs)
		assert.Equal(t, int64(70), f.points(t, f.alice.ID))
	})

	t.Run("one-time promotion applies once per user", func(t *testing.T) {
		f := newLedgerFixture(t)
		oneTime := f.store.AddPromotion(window(domain.Promotion{Name: "Welcome", Type: domain.PromotionOneTime, Points: 20}))
		ctx := context.Background()
		in := PurchaseInput{Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(1), PromotionIDs: []int64{oneTime.ID}}

		_, err := f.svc.CreatePurchase(ctx, f.cashier, in)
		require.NoError(t, err)
		require.Equal(t, int64(24), f.points(t, f.alice.ID))

		_, err = f.svc.CreatePurchase(ctx, f.cashier, in)
		requireCode(t, err, apperrors.CodeValidation)
		assert.Equal(t, int64(24), f.points(t, f.alice.ID), "rejected purchase applies nothing")
		assert.Len(t, f.store.Transactions(), 1)

		in.Utorid = f.bob.Utorid
		_, err = f.svc.CreatePurchase(ctx, f.cashier, in)
		require.NoError(t, err, "usage is tracked per user")
	})

	t.Run("unmet minimum skips without consuming", func(t *testing.T) {
		f := newLedgerFixture(t)
		min := decimal.NewFromInt(50)
		oneTime := f.store.AddPromotion(window(domain.Promotion{Name: "Big", Type: domain.PromotionOneTime, Points: 100, MinSpending: &min}))
		ctx := context.Background()

		tx, err := f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{
			Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(10), PromotionIDs: []int64{oneTime.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(40), tx.Earned)
		assert.Empty(t, tx.PromotionIDs)

		tx, err = f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{
			Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(50), PromotionIDs: []int64{oneTime.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(300), tx.Earned)
	})

	t.Run("missing or inactive promotion fails the purchase", func(t *testing.T) {
		f := newLedgerFixture(t)
		expired := f.store.AddPromotion(domain.Promotion{
			Name: "Old", Type: domain.PromotionRecurring, Points: 5,
			StartTime: fixedNow.Add(-2 * time.Hour), EndTime: fixedNow,
		})
		ctx := context.Background()

		_, err := f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{
			Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(1), PromotionIDs: []int64{expired.ID},
		})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreatePurchase(ctx, f.cashier, PurchaseInput{
			Utorid: f.alice.Utorid, Spent: decimal.NewFromInt(1), PromotionIDs: []int64{999},
		})
		requireCode(t, err, apperrors.CodeValidation)
		assert.Empty(t, f.store.Transactions())
	})
}

func TestAdjustment(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	purchase := f.credit(t, f.alice, "10")

	_, err := f.svc.CreateAdjustment(ctx, f.cashier, AdjustmentInput{Utorid: f.alice.Utorid, Amount: ptr(int64(5)), RelatedID: &purchase.ID})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.CreateAdjustment(ctx, f.manager, AdjustmentInput{Utorid: f.alice.Utorid, Amount: ptr(int64(5))})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.CreateAdjustment(ctx, f.manager, AdjustmentInput{Utorid: f.alice.Utorid, RelatedID: &purchase.ID})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.CreateAdjustment(ctx, f.manager, AdjustmentInput{Utorid: f.alice.Utorid, Amount: ptr(int64(5)), RelatedID: ptr(int64(999))})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.CreateAdjustment(ctx, f.manager, AdjustmentInput{Utorid: f.alice.Utorid, Amount: ptr(int64(-41)), RelatedID: &purchase.ID})
	requireCode(t, err, apperrors.CodeInsufficientBalance)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, int64(40), f.points(t, f.alice.ID))

	tx, err := f.svc.CreateAdjustment(ctx, f.manager, AdjustmentInput{
		Utorid: f.alice.Utorid, Amount: ptr(int64(-15)), RelatedID: &purchase.ID, Remark: "overcharge",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionAdjustment, tx.Type)
	assert.Equal(t, purchase.ID, *tx.RelatedID)
	assert.Equal(t, "mgr00001", tx.CreatedBy)
	assert.Equal(t, int64(25), f.points(t, f.alice.ID))
	f.assertConserved(t, f.alice.ID)
}

func TestTransfer(t *testing.T) {
	t.Run("moves exactly the amount", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.credit(t, f.alice, "25")
		sender := f.user(t, f.alice.ID)

		res, err := f.svc.CreateTransfer(context.Background(), sender, TransferInput{RecipientID: f.bob.ID, Amount: 30, Remark: "lunch"})
		require.NoError(t, err)

		assert.Equal(t, int64(70), f.points(t, f.alice.ID))
		assert.Equal(t, int64(30), f.points(t, f.bob.ID))
		assert.Equal(t, int64(-30), res.Sent.Amount)
		assert.Equal(t, int64(30), res.Received.Amount)
		assert.Equal(t, f.bob.ID, *res.Sent.RelatedID)
		assert.Equal(t, f.alice.ID, *res.Received.RelatedID)
		assert.Equal(t, "alice001", res.Received.CreatedBy)

		var transfers int
		for _, tx := range f.store.Transactions() {
			if tx.Type == domain.TransactionTransfer {
				transfers++
			}
		}
		assert.Equal(t, 2, transfers)
		f.assertConserved(t, f.alice.ID)
		f.assertConserved(t, f.bob.ID)
	})

	t.Run("rejections apply nothing", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.credit(t, f.alice, "5")
		sender := f.user(t, f.alice.ID)
		ctx := context.Background()

		_, err := f.svc.CreateTransfer(ctx, sender, TransferInput{RecipientID: f.bob.ID, Amount: 21})
		requireCode(t, err, apperrors.CodeInsufficientBalance)

		_, err = f.svc.CreateTransfer(ctx, sender, TransferInput{RecipientID: f.bob.ID, Amount: 0})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreateTransfer(ctx, sender, TransferInput{RecipientID: sender.ID, Amount: 1})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreateTransfer(ctx, sender, TransferInput{RecipientID: 999, Amount: 1})
		requireCode(t, err, apperrors.CodeNotFound)

		unverified := f.store.AddUser(domain.User{Utorid: "newbie01", Points: 50})
		_, err = f.svc.CreateTransfer(ctx, unverified, TransferInput{RecipientID: f.bob.ID, Amount: 1})
		requireCode(t, err, apperrors.CodeForbidden)

		assert.Equal(t, int64(20), f.points(t, f.alice.ID))
		assert.Zero(t, f.points(t, f.bob.ID))
		assert.Len(t, f.store.Transactions(), 1)
	})

	t.Run("concurrent transfers never overdraw", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.credit(t, f.alice, "25")
		sender := f.user(t, f.alice.ID)

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// each goroutine sees the stale 100 point balance
				s := *sender
				if _, err := f.svc.CreateTransfer(context.Background(), &s, TransferInput{RecipientID: f.bob.ID, Amount: 30}); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, ok)
		assert.Equal(t, int64(10), f.points(t, f.alice.ID))
		assert.Equal(t, int64(90), f.points(t, f.bob.ID))
		f.assertConserved(t, f.alice.ID)
		f.assertConserved(t, f.bob.ID)
	})
}

func TestRedemptionOneShot(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.credit(t, f.alice, "25")
	require.Equal(t, int64(100), f.points(t, f.alice.ID))

	tx, err := f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: 60})
	require.NoError(t, err)
	assert.Equal(t, int64(60), tx.Amount)
	require.NotNil(t, tx.Redemption)
	assert.True(t, tx.Redemption.Pending())
	assert.Equal(t, int64(100), f.points(t, f.alice.ID), "pending redemption debits nothing")
	f.assertConserved(t, f.alice.ID)

	_, err = f.svc.ProcessRedemption(ctx, f.alice, tx.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	processed, err := f.svc.ProcessRedemption(ctx, f.cashier, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "cash0001", processed.Redemption.ProcessedBy)
	assert.Equal(t, int64(40), f.points(t, f.alice.ID))

	_, err = f.svc.ProcessRedemption(ctx, f.cashier, tx.ID)
	requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, int64(40), f.points(t, f.alice.ID))
	f.assertConserved(t, f.alice.ID)

	require.Len(t, f.eventsOf(events.EventRedemptionProcessed), 1)
}

func TestRedemptionRejections(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	purchase := f.credit(t, f.alice, "10")

	_, err := f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: 41})
	requireCode(t, err, apperrors.CodeInsufficientBalance)

	_, err = f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: -1})
	requireCode(t, err, apperrors.CodeValidation)

	unverified := f.store.AddUser(domain.User{Utorid: "newbie01", Points: 50})
	_, err = f.svc.CreateRedemption(ctx, unverified, RedemptionInput{Amount: 10})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.ProcessRedemption(ctx, f.cashier, purchase.ID)
	requireCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.ProcessRedemption(ctx, f.cashier, 999)
	requireCode(t, err, apperrors.CodeNotFound)

	t.Run("balance spent before processing", func(t *testing.T) {
		tx, err := f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: 30})
		require.NoError(t, err)
		_, err = f.svc.CreateTransfer(ctx, f.user(t, f.alice.ID), TransferInput{RecipientID: f.bob.ID, Amount: 20})
		require.NoError(t, err)

		_, err = f.svc.ProcessRedemption(ctx, f.cashier, tx.ID)
		requireCode(t, err, apperrors.CodeInsufficientBalance)

		stored, err := f.store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.True(t, stored.Redemption.Pending(), "failed processing leaves the redemption pending")
		assert.Equal(t, int64(20), f.points(t, f.alice.ID))
	})
}

func TestSetSuspicious(t *testing.T) {
	t.Run("toggle restores the exact balance", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		f.credit(t, f.alice, "3.33")
		tx := f.credit(t, f.alice, "10")
		before := f.points(t, f.alice.ID)

		flagged, err := f.svc.SetSuspicious(ctx, f.manager, tx.ID, true)
		require.NoError(t, err)
		assert.True(t, flagged.Suspicious)
		assert.Equal(t, before-40, f.points(t, f.alice.ID))
		f.assertConserved(t, f.alice.ID)

		_, err = f.svc.SetSuspicious(ctx, f.manager, tx.ID, true)
		require.NoError(t, err)
		assert.Equal(t, before-40, f.points(t, f.alice.ID), "repeating the flag is a no-op")

		_, err = f.svc.SetSuspicious(ctx, f.manager, tx.ID, false)
		require.NoError(t, err)
		assert.Equal(t, before, f.points(t, f.alice.ID))
		f.assertConserved(t, f.alice.ID)

		assert.Len(t, f.eventsOf(events.EventTransactionSuspiciousChanged), 2)
	})

	t.Run("flagging a sent transfer refunds the sender", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		f.credit(t, f.alice, "25")
		res, err := f.svc.CreateTransfer(ctx, f.user(t, f.alice.ID), TransferInput{RecipientID: f.bob.ID, Amount: 30})
		require.NoError(t, err)

		_, err = f.svc.SetSuspicious(ctx, f.manager, res.Sent.ID, true)
		require.NoError(t, err)
		assert.Equal(t, int64(100), f.points(t, f.alice.ID))
		assert.Equal(t, int64(30), f.points(t, f.bob.ID))
	})

	t.Run("reversal cannot go negative", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		tx := f.credit(t, f.alice, "10")
		red, err := f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: 40})
		require.NoError(t, err)
		_, err = f.svc.ProcessRedemption(ctx, f.cashier, red.ID)
		require.NoError(t, err)

		_, err = f.svc.SetSuspicious(ctx, f.manager, tx.ID, true)
		requireCode(t, err, apperrors.CodeInsufficientBalance)
		stored, err := f.store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.False(t, stored.Suspicious)
		assert.Zero(t, f.points(t, f.alice.ID))
	})

	t.Run("rejections", func(t *testing.T) {
		f := newLedgerFixture(t)
		ctx := context.Background()
		f.credit(t, f.alice, "10")
		red, err := f.svc.CreateRedemption(ctx, f.user(t, f.alice.ID), RedemptionInput{Amount: 10})
		require.NoError(t, err)

		_, err = f.svc.SetSuspicious(ctx, f.manager, red.ID, true)
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.SetSuspicious(ctx, f.cashier, red.ID, true)
		requireCode(t, err, apperrors.CodeForbidden)

		_, err = f.svc.SetSuspicious(ctx, f.manager, 999, true)
		requireCode(t, err, apperrors.CodeNotFound)
	})
}

func TestEventAward(t *testing.T) {
	setup := func(t *testing.T) (*ledgerFixture, *domain.User, *domain.Event) {
		f := newLedgerFixture(t)
		org := f.store.AddUser(domain.User{Utorid: "org00001", Verified: true})
		e := f.store.AddEvent(domain.Event{
			Name:       "Pizza night",
			StartTime:  fixedNow.Add(-time.Hour),
			EndTime:    fixedNow.Add(time.Hour),
			Points:     100,
			Guests:     []domain.EventMember{{UserID: f.alice.ID}, {UserID: f.bob.ID}},
			Organizers: []domain.EventMember{{UserID: org.ID}},
		})
		return f, org, e
	}
	assertPool := func(t *testing.T, f *ledgerFixture, id, remain int64) {
		t.Helper()
		e, err := f.store.GetEvent(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, remain, e.PointsRemain)
		assert.Equal(t, e.Points, e.PointsAwarded+e.PointsRemain)
	}

	t.Run("single guest by organizer", func(t *testing.T) {
		f, org, e := setup(t)
		res, err := f.svc.CreateEventAward(context.Background(), org, EventAwardInput{EventID: e.ID, Utorid: f.alice.Utorid, Amount: 30})
		require.NoError(t, err)
		assert.True(t, res.Single)
		require.Len(t, res.Transactions, 1)
		tx := res.Transactions[0]
		assert.Equal(t, domain.TransactionEvent, tx.Type)
		assert.Equal(t, e.ID, *tx.RelatedID)
		assert.Equal(t, "org00001", tx.CreatedBy)
		assert.Equal(t, int64(70), res.PointsRemain)
		assert.Equal(t, int64(30), f.points(t, f.alice.ID))
		assertPool(t, f, e.ID, 70)
		f.assertConserved(t, f.alice.ID)
	})

	t.Run("every guest by manager", func(t *testing.T) {
		f, _, e := setup(t)
		res, err := f.svc.CreateEventAward(context.Background(), f.manager, EventAwardInput{EventID: e.ID, Amount: 50})
		require.NoError(t, err)
		assert.False(t, res.Single)
		assert.Len(t, res.Transactions, 2)
		assert.Equal(t, int64(50), f.points(t, f.alice.ID))
		assert.Equal(t, int64(50), f.points(t, f.bob.ID))
		assertPool(t, f, e.ID, 0)
		require.Len(t, f.eventsOf(events.EventEventPointsAwarded), 1)
	})

	t.Run("rejections leave the pool untouched", func(t *testing.T) {
		f, org, e := setup(t)
		ctx := context.Background()

		_, err := f.svc.CreateEventAward(ctx, f.cashier, EventAwardInput{EventID: e.ID, Utorid: f.alice.Utorid, Amount: 1})
		requireCode(t, err, apperrors.CodeForbidden)

		_, err = f.svc.CreateEventAward(ctx, org, EventAwardInput{EventID: e.ID, Utorid: "org00001", Amount: 1})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreateEventAward(ctx, org, EventAwardInput{EventID: e.ID, Amount: 51})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreateEventAward(ctx, org, EventAwardInput{EventID: e.ID, Utorid: f.alice.Utorid, Amount: 0})
		requireCode(t, err, apperrors.CodeValidation)

		_, err = f.svc.CreateEventAward(ctx, org, EventAwardInput{EventID: 999, Amount: 1})
		requireCode(t, err, apperrors.CodeNotFound)

		assertPool(t, f, e.ID, 100)
		assert.Empty(t, f.store.Transactions())
	})
}

func TestConcurrentEventAwards(t *testing.T) {
	t.Run("two organizers award the same guest", func(t *testing.T) {
		f := newLedgerFixture(t)
		orgA := f.store.AddUser(domain.User{Utorid: "org00001"})
		orgB := f.store.AddUser(domain.User{Utorid: "org00002"})
		e := f.store.AddEvent(domain.Event{
			Points:     500,
			Guests:     []domain.EventMember{{UserID: f.alice.ID}},
			Organizers: []domain.EventMember{{UserID: orgA.ID}, {UserID: orgB.ID}},
		})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, org := range []*domain.User{orgA, orgB} {
			wg.Add(1)
			go func(i int, org *domain.User) {
				defer wg.Done()
				_, errs[i] = f.svc.CreateEventAward(context.Background(), org, EventAwardInput{EventID: e.ID, Utorid: f.alice.Utorid, Amount: 50})
			}(i, org)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		got, err := f.store.GetEvent(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.PointsAwarded)
		assert.Equal(t, int64(400), got.PointsRemain)
		assert.Equal(t, int64(100), f.points(t, f.alice.ID))
	})

	t.Run("pool never goes negative", func(t *testing.T) {
		f := newLedgerFixture(t)
		e := f.store.AddEvent(domain.Event{Points: 100, Guests: []domain.EventMember{{UserID: f.alice.ID}}})

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.CreateEventAward(context.Background(), f.manager, EventAwardInput{EventID: e.ID, Utorid: f.alice.Utorid, Amount: 30})
				if err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := f.store.GetEvent(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, ok)
		assert.Equal(t, int64(10), got.PointsRemain)
		assert.Equal(t, int64(90), got.PointsAwarded)
		assert.Equal(t, int64(90), f.points(t, f.alice.ID))
	})
}

func TestGetTransaction(t *testing.T) {
	f := newLedgerFixture(t)
	tx := f.credit(t, f.alice, "1")

	got, err := f.svc.GetTransaction(context.Background(), f.manager, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, fixedNow, got.CreatedAt)

	_, err = f.svc.GetTransaction(context.Background(), f.cashier, tx.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}
