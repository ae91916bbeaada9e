// Package memory provides an in-process ledger store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/points-ledger/internal/domain"
	"github.com/spec-kit/points-ledger/internal/repository"
)

// Store keeps every ledger table in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex
	state
	now func() time.Time
}

type state struct {
	users        map[int64]*domain.User
	transactions map[int64]*domain.Transaction
	promotions   map[int64]*domain.Promotion
	events       map[int64]*domain.Event
	usages       map[int64]map[int64]int64 // user -> promotion -> transaction
	resets       map[string]*domain.PasswordReset

	nextUserID  int64
	nextTxID    int64
	nextPromoID int64
	nextEventID int64
}

var (
	_ repository.LedgerStore             = (*Store)(nil)
	_ repository.UserRepository          = (*Users)(nil)
	_ repository.PasswordResetRepository = (*Resets)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		state: state{
			users:        make(map[int64]*domain.User),
			transactions: make(map[int64]*domain.Transaction),
			promotions:   make(map[int64]*domain.Promotion),
			events:       make(map[int64]*domain.Event),
			usages:       make(map[int64]map[int64]int64),
			resets:       make(map[string]*domain.PasswordReset),
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users exposes the store as a UserRepository.
func (s *Store) Users() *Users { return &Users{s: s} }

// Resets exposes the store as a PasswordResetRepository.
func (s *Store) Resets() *Resets { return &Resets{s: s} }

// AddUser seeds a user and assigns its id.
func (s *Store) AddUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUser(u)
}

// AddPromotion seeds a promotion and assigns its id.
func (s *Store) AddPromotion(p domain.Promotion) *domain.Promotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPromoID++
	p.ID = s.nextPromoID
	s.promotions[p.ID] = &p
	cp := p
	return &cp
}

// AddEvent seeds an event. PointsRemain defaults to Points when neither
// PointsRemain nor PointsAwarded is set.
func (s *Store) AddEvent(e domain.Event) *domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	if e.PointsRemain == 0 && e.PointsAwarded == 0 {
		e.PointsRemain = e.Points
	}
	stored := cloneEvent(&e)
	s.events[e.ID] = stored
	return cloneEvent(stored)
}

// Transactions returns every stored transaction in id order.
func (s *Store) Transactions() []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) insertUser(u domain.User) *domain.User {
	s.nextUserID++
	u.ID = s.nextUserID
	if u.Role == "" {
		u.Role = domain.RoleRegular
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = &u
	cp := u
	return &cp
}

func (s *Store) GetUserByUtorid(_ context.Context, utorid string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userByUtorid(utorid)
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (s *Store) GetPromotions(_ context.Context, ids []int64) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Promotion
	for _, id := range ids {
		if p, ok := s.promotions[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UsedOneTimePromotions(_ context.Context, userID int64) (map[int64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	used := make(map[int64]struct{}, len(s.usages[userID]))
	for id := range s.usages[userID] {
		used[id] = struct{}{}
	}
	return used, nil
}

func (s *Store) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.resolveMembers(cloneEvent(e)), nil
}

// Atomically serializes fn against every other writer. State is restored
// from a snapshot when fn fails.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &ledgerTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) userByUtorid(utorid string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Utorid == utorid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// resolveMembers fills in utorids the seed may have omitted and orders members by user id.
func (s *Store) resolveMembers(e *domain.Event) *domain.Event {
	fill := func(members []domain.EventMember) {
		for i := range members {
			if u, ok := s.users[members[i].UserID]; ok {
				members[i].Utorid = u.Utorid
			}
		}
		sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	}
	fill(e.Guests)
	fill(e.Organizers)
	return e
}

// ledgerTx runs with Store.mu held for writing.
type ledgerTx struct {
	s *Store
}

func (t *ledgerTx) AdjustBalance(_ context.Context, userID, delta int64) (int64, error) {
	u, ok := t.s.users[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if u.Points+delta < 0 {
		return u.Points, repository.ErrInsufficientPoints
	}
	u.Points += delta
	return u.Points, nil
}

func (t *ledgerTx) AdjustPool(_ context.Context, eventID, amount int64) (int64, error) {
	e, ok := t.s.events[eventID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if e.PointsRemain < amount {
		return e.PointsRemain, repository.ErrPoolExhausted
	}
	e.PointsRemain -= amount
	e.PointsAwarded += amount
	return e.PointsRemain, nil
}

func (t *ledgerTx) InsertTransaction(_ context.Context, tx *domain.Transaction) error {
	if _, ok := t.s.users[tx.UserID]; !ok {
		return pgx.ErrNoRows
	}
	t.s.nextTxID++
	tx.ID = t.s.nextTxID
	tx.CreatedAt = t.s.now()
	t.s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (t *ledgerTx) LockTransaction(_ context.Context, id int64) (*domain.Transaction, error) {
	tx, ok := t.s.transactions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return tx.Clone(), nil
}

func (t *ledgerTx) SetSuspicious(_ context.Context, id int64, suspicious bool) error {
	tx, ok := t.s.transactions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	tx.Suspicious = suspicious
	return nil
}

func (t *ledgerTx) MarkRedemptionProcessed(_ context.Context, id int64, by string, at time.Time) error {
	tx, ok := t.s.transactions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if tx.Redemption == nil {
		tx.Redemption = &domain.Redemption{Status: domain.RedemptionPending}
	}
	if err := tx.Redemption.Process(by, at); err != nil {
		return repository.ErrAlreadyProcessed
	}
	return nil
}

func (t *ledgerTx) RecordPromotionUsage(_ context.Context, userID, transactionID int64, promotionIDs []int64) error {
	used := t.s.usages[userID]
	if used == nil {
		used = make(map[int64]int64)
		t.s.usages[userID] = used
	}
	for _, id := range promotionIDs {
		if _, ok := used[id]; ok {
			return repository.ErrPromotionAlreadyUsed
		}
		used[id] = transactionID
	}
	return nil
}

// Users implements repository.UserRepository on top of Store.
type Users struct {
	s *Store
}

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, err := u.s.userByUtorid(user.Utorid); err == nil {
		return repository.ErrDuplicate
	}
	created := u.s.insertUser(*user)
	*user = *created
	return nil
}

func (u *Users) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return u.s.GetUserByID(ctx, id)
}

func (u *Users) GetByUtorid(ctx context.Context, utorid string) (*domain.User, error) {
	return u.s.GetUserByUtorid(ctx, utorid)
}

func (u *Users) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

// Resets implements repository.PasswordResetRepository on top of Store.
type Resets struct {
	s *Store
}

func (r *Resets) Create(_ context.Context, reset *domain.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	reset.CreatedAt = r.s.now()
	cp := *reset
	r.s.resets[reset.Token] = &cp
	return nil
}

func (r *Resets) GetByToken(_ context.Context, token string) (*domain.PasswordReset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reset, ok := r.s.resets[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *reset
	return &cp, nil
}

func (r *Resets) MarkUsed(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reset := range r.s.resets {
		if reset.ID == id && reset.UsedAt == nil {
			at := r.s.now()
			reset.UsedAt = &at
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (st state) clone() state {
	cp := st
	cp.users = make(map[int64]*domain.User, len(st.users))
	for id, u := range st.users {
		u := *u
		cp.users[id] = &u
	}
	cp.transactions = make(map[int64]*domain.Transaction, len(st.transactions))
	for id, t := range st.transactions {
		cp.transactions[id] = t.Clone()
	}
	cp.promotions = make(map[int64]*domain.Promotion, len(st.promotions))
	for id, p := range st.promotions {
		p := *p
		cp.promotions[id] = &p
	}
	cp.events = make(map[int64]*domain.Event, len(st.events))
	for id, e := range st.events {
		cp.events[id] = cloneEvent(e)
	}
	cp.usages = make(map[int64]map[int64]int64, len(st.usages))
	for uid, used := range st.usages {
		m := make(map[int64]int64, len(used))
		for pid, tid := range used {
			m[pid] = tid
		}
		cp.usages[uid] = m
	}
	cp.resets = make(map[string]*domain.PasswordReset, len(st.resets))
	for tok, r := range st.resets {
		r := *r
		cp.resets[tok] = &r
	}
	return cp
}

func cloneEvent(e *domain.Event) *domain.Event {
	cp := *e
	cp.Guests = append([]domain.EventMember(nil), e.Guests...)
	cp.Organizers = append([]domain.EventMember(nil), e.Organizers...)
	return &cp
}
