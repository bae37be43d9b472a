// Package checkout is the client side of a fest registration: pick an event,
// fill the form, pay through the gateway and poll until the payment settles,
// then store the registration.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cache2k25/internal/catalog"
	"cache2k25/internal/dto"
	"cache2k25/internal/model"
)

type State string

const (
	StateEvents       State = "events"
	StateRegistration State = "registration"
	StatePayment      State = "payment"
	StateSuccess      State = "success"
	StateAdmin        State = "admin"
)

// API is the subset of the registration server the flow needs.
type API interface {
	CreatePayment(ctx context.Context, req dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error)
	PaymentStatus(ctx context.Context, merchantTransactionID string) (dto.StatusResponse, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
}

// Form is what the participant types in.
type Form struct {
	ParticipantName string
	Email           string
	Phone           string
	College         string
	RollNumber      string
	TeamMembers     []model.TeamMember
	GameIDs         []model.GameID
	PaymentMethod   model.PaymentMethod
}

type Options struct {
	Policy     RetryPolicy
	PendingTTL time.Duration
	Now        func() time.Time
}

type Flow struct {
	catalog *catalog.Catalog
	api     API
	pending PendingStore
	poller  *Poller
	ttl     time.Duration
	log     *zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	event   *model.Event
	draft   *dto.RegisterRequest
	session *Session
}

func NewFlow(cat *catalog.Catalog, api API, pending PendingStore, log *zerolog.Logger, opts Options) *Flow {
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultRetryPolicy()
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pending == nil {
		pending = NewMemoryStore()
	}
	return &Flow{
		catalog: cat,
		api:     api,
		pending: pending,
		poller:  NewPoller(opts.Policy, log),
		ttl:     opts.PendingTTL,
		log:     log,
		now:     opts.Now,
		state:   StateEvents,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Draft() (dto.RegisterRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return dto.RegisterRequest{}, false
	}
	return *f.draft, true
}

// SelectEvent moves from the event list to the form. Events past their
// deadline cannot be selected.
func (f *Flow) SelectEvent(eventID string) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateEvents {
		return model.Event{}, fmt.Errorf("%w: select event from %s", ErrInvalidTransition, f.state)
	}
	e, err := f.catalog.Lookup(eventID)
	if err != nil {
		return model.Event{}, err
	}
	if !catalog.IsOpen(e, f.now()) {
		return model.Event{}, fmt.Errorf("%w: %s closed on %s", ErrDeadlinePassed, e.ID, e.Deadline)
	}
	f.event = &e
	f.state = StateRegistration
	return e, nil
}

// SubmitRegistration checks required fields and builds the draft. The amount
// is the event price as listed.
func (f *Flow) SubmitRegistration(form Form) (dto.RegisterRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateRegistration || f.event == nil {
		return dto.RegisterRequest{}, fmt.Errorf("%w: submit form from %s", ErrInvalidTransition, f.state)
	}
	e := *f.event

	if err := requireFields(map[string]string{
		"participantName": form.ParticipantName,
		"email":           form.Email,
		"phone":           form.Phone,
		"college":         form.College,
		"rollNumber":      form.RollNumber,
	}); err != nil {
		return dto.RegisterRequest{}, err
	}

	draft := dto.RegisterRequest{
		EventID:         e.ID,
		EventName:       e.Name,
		ParticipantName: strings.TrimSpace(form.ParticipantName),
		Email:           strings.TrimSpace(form.Email),
		Phone:           strings.TrimSpace(form.Phone),
		College:         strings.TrimSpace(form.College),
		RollNumber:      strings.TrimSpace(form.RollNumber),
		TotalAmount:     e.Price,
		PaymentStatus:   model.PaymentPending,
		PaymentMethod:   form.PaymentMethod,
	}
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = model.MethodUPI
	}

	if slots := catalog.TeamSlots(e); slots > 0 {
		if len(form.TeamMembers) != slots {
			return dto.RegisterRequest{}, fmt.Errorf("%w: %d team members required, got %d", ErrMissingField, slots, len(form.TeamMembers))
		}
		for i, m := range form.TeamMembers {
			if err := requireFields(map[string]string{
				fmt.Sprintf("teamMembers[%d].name", i):       m.Name,
				fmt.Sprintf("teamMembers[%d].email", i):      m.Email,
				fmt.Sprintf("teamMembers[%d].phone", i):      m.Phone,
				fmt.Sprintf("teamMembers[%d].rollNumber", i): m.RollNumber,
			}); err != nil {
				return dto.RegisterRequest{}, err
			}
		}
		draft.TeamMembers = append([]model.TeamMember(nil), form.TeamMembers...)
	}

	if slots := catalog.GameIDSlots(e); slots > 0 {
		if len(form.GameIDs) != slots {
			return dto.RegisterRequest{}, fmt.Errorf("%w: %d game ids required, got %d", ErrMissingField, slots, len(form.GameIDs))
		}
		for i, g := range form.GameIDs {
			if err := requireFields(map[string]string{
				fmt.Sprintf("gameIds[%d].playerName", i): g.PlayerName,
				fmt.Sprintf("gameIds[%d].gameId", i):     g.GameID,
			}); err != nil {
				return dto.RegisterRequest{}, err
			}
		}
		draft.GameIDs = append([]model.GameID(nil), form.GameIDs...)
	}

	f.draft = &draft
	f.state = StatePayment
	return draft, nil
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}

// Pay creates the gateway payment, stages the draft under the merchant
// transaction id and starts polling. The returned session settles on its own;
// the checkout page itself is opened by the caller from PaymentURL.
func (f *Flow) Pay(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	if f.state != StatePayment || f.draft == nil {
		state := f.state
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: pay from %s", ErrInvalidTransition, state)
	}
	if f.session != nil && !f.session.settled() {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: payment already in progress", ErrInvalidTransition)
	}
	draft := *f.draft
	f.mu.Unlock()

	resp, err := f.api.CreatePayment(ctx, dto.CreatePaymentRequest{
		Amount: draft.TotalAmount,
		UserDetails: dto.UserDetails{
			Name:  draft.ParticipantName,
			Email: draft.Email,
			Phone: draft.Phone,
		},
		EventDetails: dto.EventDetails{EventID: draft.EventID, EventName: draft.EventName},
	})
	if err != nil {
		f.log.Error().Err(err).Str("event_id", draft.EventID).Msg("create payment failed")
		return nil, err
	}
	if !resp.Success || resp.MerchantTransactionID == "" {
		return nil, fmt.Errorf("%w: gateway did not start the payment", ErrPaymentFailed)
	}

	draft.MerchantTransactionID = resp.MerchantTransactionID
	if err := f.pending.Put(ctx, resp.MerchantTransactionID, draft, f.ttl); err != nil {
		return nil, fmt.Errorf("stage pending draft: %w", err)
	}

	return f.startSession(ctx, draft, resp.PaymentURL), nil
}

// Resume picks up polling for a draft staged by an earlier session.
func (f *Flow) Resume(ctx context.Context, merchantTransactionID string) (*Session, error) {
	draft, err := f.pending.Get(ctx, merchantTransactionID)
	if err != nil {
		return nil, err
	}
	e, err := f.catalog.Lookup(draft.EventID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.session != nil && !f.session.settled() {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: payment already in progress", ErrInvalidTransition)
	}
	f.event = &e
	f.draft = &draft
	f.state = StatePayment
	f.mu.Unlock()

	return f.startSession(ctx, draft, ""), nil
}

func (f *Flow) startSession(ctx context.Context, draft dto.RegisterRequest, paymentURL string) *Session {
	txnID := draft.MerchantTransactionID
	handle := f.poller.Start(ctx, func(ctx context.Context) (Status, error) {
		resp, err := f.api.PaymentStatus(ctx, txnID)
		if err != nil {
			return Status{}, err
		}
		return Classify(resp), nil
	})

	s := &Session{
		MerchantTransactionID: txnID,
		PaymentURL:            paymentURL,
		handle:                handle,
		done:                  make(chan struct{}),
	}

	f.mu.Lock()
	f.session = s
	f.mu.Unlock()

	f.log.Info().Str("merchant_transaction_id", txnID).Msg("polling payment status")
	go f.settle(ctx, s, draft)
	return s
}

func (f *Flow) settle(ctx context.Context, s *Session, draft dto.RegisterRequest) {
	defer close(s.done)

	st, err := s.handle.Result()
	switch {
	case errors.Is(err, ErrPaymentFailed):
		_ = f.pending.Delete(context.WithoutCancel(ctx), s.MerchantTransactionID)
		s.err = err
		return
	case err != nil:
		// timeouts and cancellations keep the staged draft until it expires
		s.err = err
		return
	}

	if staged, gerr := f.pending.Get(ctx, s.MerchantTransactionID); gerr == nil {
		draft = staged
	} else {
		f.log.Warn().Err(gerr).Str("merchant_transaction_id", s.MerchantTransactionID).Msg("staged draft unavailable, using local copy")
	}
	draft.TransactionID = st.TransactionID
	draft.PaymentStatus = model.PaymentCompleted

	resp, err := f.api.Register(ctx, draft)
	if err != nil {
		f.log.Error().Err(err).Str("merchant_transaction_id", s.MerchantTransactionID).Msg("failed to save registration after payment")
		s.err = err
		return
	}
	if err := f.pending.Delete(ctx, s.MerchantTransactionID); err != nil {
		f.log.Warn().Err(err).Msg("failed to clear staged draft")
	}

	s.registrationID = resp.RegistrationID

	f.mu.Lock()
	if f.session == s {
		f.state = StateSuccess
		f.draft = nil
	}
	f.mu.Unlock()

	f.log.Info().
		Str("registration_id", resp.RegistrationID).
		Str("transaction_id", st.TransactionID).
		Msg("registration completed")
}

// Back returns to the event list from any state, dropping the draft and
// stopping any poll in progress.
func (f *Flow) Back() {
	f.mu.Lock()
	s := f.session
	f.state = StateEvents
	f.event = nil
	f.draft = nil
	f.session = nil
	f.mu.Unlock()

	if s != nil {
		s.Cancel()
	}
}

// EnterAdmin opens the admin side state. It is not reachable mid-payment.
func (f *Flow) EnterAdmin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateEvents, StateSuccess, StateAdmin:
		f.state = StateAdmin
		return nil
	}
	return fmt.Errorf("%w: admin from %s", ErrInvalidTransition, f.state)
}

// Session is one payment attempt being polled.
type Session struct {
	MerchantTransactionID string
	PaymentURL            string

	handle         *Handle
	done           chan struct{}
	registrationID string
	err            error
}

func (s *Session) Cancel() { s.handle.Cancel() }

func (s *Session) Done() <-chan struct{} { return s.done }

// Result is valid once Done is closed.
func (s *Session) Result() (string, error) {
	<-s.done
	return s.registrationID, s.err
}

func (s *Session) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return s.registrationID, s.err
	}
}

func (s *Session) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
