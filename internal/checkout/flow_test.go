package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cache2k25/internal/catalog"
	"cache2k25/internal/dto"
	"cache2k25/internal/gateway"
	"cache2k25/internal/model"
)

var beforeDeadlines = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu         sync.Mutex
	createErr  error
	statuses   []dto.StatusResponse
	statusCall int
	registered []dto.RegisterRequest
}

func (f *fakeAPI) CreatePayment(_ context.Context, req dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &dto.CreatePaymentResponse{
		Success:               true,
		MerchantTransactionID: "TXN_abc",
		PaymentURL:            "https://gateway/pay/abc",
	}, nil
}

func (f *fakeAPI) PaymentStatus(context.Context, string) (dto.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCall
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusCall++
	return f.statuses[i], nil
}

func (f *fakeAPI) Register(_ context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	return &dto.RegisterResponse{Success: true, RegistrationID: "CACHE2K25_0001", Message: dto.RegistrationSavedText}, nil
}

func pendingStatus() dto.StatusResponse {
	return dto.StatusResponse{Success: true, Data: &gateway.Response{Code: CodePaymentPending}}
}

func paidStatus(txn string) dto.StatusResponse {
	raw, _ := json.Marshal(map[string]string{"transactionId": txn})
	return dto.StatusResponse{Success: true, Data: &gateway.Response{Success: true, Code: "PAYMENT_SUCCESS", Data: raw}}
}

func newTestFlow(api API, store PendingStore) *Flow {
	log := zerolog.Nop()
	f := NewFlow(catalog.Default(), api, store, &log, Options{Now: func() time.Time { return beforeDeadlines }})
	f.poller.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return f
}

func soloForm() Form {
	return Form{
		ParticipantName: "Asha",
		Email:           "asha@example.com",
		Phone:           "9876543210",
		College:         "VSMCOE",
		RollNumber:      "CS-42",
	}
}

func waitSession(t *testing.T, s *Session) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("session did not settle")
	}
	return id, err
}

func TestSelectEventDeadline(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	f.now = func() time.Time { return time.Date(2025, 9, 15, 0, 0, 0, 1, time.UTC) }

	if _, err := f.SelectEvent("web-dev"); !errors.Is(err, ErrDeadlinePassed) {
		t.Errorf("web-dev after deadline: %v", err)
	}
	if f.State() != StateEvents {
		t.Errorf("state = %s", f.State())
	}

	e, err := f.SelectEvent("photo-contest")
	if err != nil {
		t.Fatalf("photo-contest before deadline: %v", err)
	}
	if e.ID != "photo-contest" || f.State() != StateRegistration {
		t.Errorf("event=%s state=%s", e.ID, f.State())
	}

	if _, err := f.SelectEvent("web-dev"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second select: %v", err)
	}
}

func TestSelectEventOnDeadlineInstant(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	f.now = func() time.Time { return time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC) }
	if _, err := f.SelectEvent("web-dev"); err != nil {
		t.Errorf("event on its deadline should be open: %v", err)
	}
}

func TestSubmitRegistrationSolo(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	if _, err := f.SelectEvent("web-dev"); err != nil {
		t.Fatal(err)
	}

	form := soloForm()
	form.TeamMembers = []model.TeamMember{{Name: "ignored"}}
	draft, err := f.SubmitRegistration(form)
	if err != nil {
		t.Fatalf("SubmitRegistration: %v", err)
	}
	if draft.TotalAmount != 299 || draft.EventName != "Web Development Challenge" {
		t.Errorf("draft = %+v", draft)
	}
	if draft.TeamMembers != nil || draft.GameIDs != nil {
		t.Errorf("solo event carries team data: %+v", draft)
	}
	if draft.PaymentMethod != model.MethodUPI || draft.PaymentStatus != model.PaymentPending {
		t.Errorf("method=%s status=%s", draft.PaymentMethod, draft.PaymentStatus)
	}
	if f.State() != StatePayment {
		t.Errorf("state = %s", f.State())
	}
}

func TestSubmitRegistrationMissingFields(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	if _, err := f.SelectEvent("web-dev"); err != nil {
		t.Fatal(err)
	}
	form := soloForm()
	form.College = " "
	form.Phone = ""

	_, err := f.SubmitRegistration(form)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("err = %v", err)
	}
	if want := "required field is missing: college, phone"; err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
	if f.State() != StateRegistration {
		t.Errorf("state = %s", f.State())
	}
}

func TestSubmitRegistrationTeamEvent(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	if _, err := f.SelectEvent("bgmi-esports"); err != nil {
		t.Fatal(err)
	}

	form := soloForm()
	if _, err := f.SubmitRegistration(form); !errors.Is(err, ErrMissingField) {
		t.Fatalf("team event without members: %v", err)
	}

	for i := 0; i < 3; i++ {
		form.TeamMembers = append(form.TeamMembers, model.TeamMember{Name: "M", Email: "m@example.com", Phone: "1", RollNumber: "R"})
	}
	for i := 0; i < 4; i++ {
		form.GameIDs = append(form.GameIDs, model.GameID{PlayerName: "P", GameID: "G"})
	}
	draft, err := f.SubmitRegistration(form)
	if err != nil {
		t.Fatalf("SubmitRegistration: %v", err)
	}
	if len(draft.TeamMembers) != 3 || len(draft.GameIDs) != 4 || draft.TotalAmount != 199 {
		t.Errorf("draft = %+v", draft)
	}
}

func toPayment(t *testing.T, f *Flow) {
	t.Helper()
	if _, err := f.SelectEvent("web-dev"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.SubmitRegistration(soloForm()); err != nil {
		t.Fatal(err)
	}
}

func TestPaySucceedsAfterPendingChecks(t *testing.T) {
	statuses := make([]dto.StatusResponse, 0, 30)
	for i := 0; i < 29; i++ {
		statuses = append(statuses, pendingStatus())
	}
	statuses = append(statuses, paidStatus("T1"))
	api := &fakeAPI{statuses: statuses}
	store := NewMemoryStore()
	f := newTestFlow(api, store)
	toPayment(t, f)

	s, err := f.Pay(context.Background())
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if s.MerchantTransactionID != "TXN_abc" || s.PaymentURL != "https://gateway/pay/abc" {
		t.Errorf("session = %+v", s)
	}

	id, err := waitSession(t, s)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if id != "CACHE2K25_0001" {
		t.Errorf("registration id = %s", id)
	}
	if len(api.registered) != 1 {
		t.Fatalf("registered %d times", len(api.registered))
	}
	reg := api.registered[0]
	if reg.TransactionID != "T1" || reg.PaymentStatus != model.PaymentCompleted || reg.MerchantTransactionID != "TXN_abc" {
		t.Errorf("registered draft = %+v", reg)
	}
	if api.statusCall != 30 {
		t.Errorf("status checks = %d", api.statusCall)
	}
	if f.State() != StateSuccess {
		t.Errorf("state = %s", f.State())
	}
	if _, ok := f.Draft(); ok {
		t.Error("draft should be cleared")
	}
	if store.Len() != 0 {
		t.Errorf("pending records left: %d", store.Len())
	}
}

func TestPayTimesOutWithoutSaving(t *testing.T) {
	api := &fakeAPI{statuses: []dto.StatusResponse{pendingStatus()}}
	store := NewMemoryStore()
	f := newTestFlow(api, store)
	toPayment(t, f)

	s, err := f.Pay(context.Background())
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if _, err := waitSession(t, s); !errors.Is(err, ErrPaymentTimeout) {
		t.Fatalf("err = %v", err)
	}
	if len(api.registered) != 0 {
		t.Errorf("registered %d times", len(api.registered))
	}
	if api.statusCall != 30 {
		t.Errorf("status checks = %d", api.statusCall)
	}
	if f.State() != StatePayment {
		t.Errorf("state = %s", f.State())
	}
	if store.Len() != 1 {
		t.Errorf("staged draft should stay until expiry, len = %d", store.Len())
	}
}

func TestPayFailureHalts(t *testing.T) {
	api := &fakeAPI{statuses: []dto.StatusResponse{
		pendingStatus(),
		{Success: true, Data: &gateway.Response{Code: "PAYMENT_DECLINED"}},
		paidStatus("T2"),
	}}
	store := NewMemoryStore()
	f := newTestFlow(api, store)
	toPayment(t, f)

	s, err := f.Pay(context.Background())
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if _, err := waitSession(t, s); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("err = %v", err)
	}
	if api.statusCall != 2 || len(api.registered) != 0 || store.Len() != 0 {
		t.Errorf("calls=%d registered=%d pending=%d", api.statusCall, len(api.registered), store.Len())
	}

	// a failed attempt may be retried from the payment state
	api.statuses = []dto.StatusResponse{paidStatus("T3")}
	api.statusCall = 0
	s, err = f.Pay(context.Background())
	if err != nil {
		t.Fatalf("second Pay: %v", err)
	}
	if _, err := waitSession(t, s); err != nil {
		t.Fatalf("second session: %v", err)
	}
	if len(api.registered) != 1 || api.registered[0].TransactionID != "T3" {
		t.Errorf("registered = %+v", api.registered)
	}
}

func TestPayCreateError(t *testing.T) {
	api := &fakeAPI{createErr: &APIError{StatusCode: 400, Detail: "bad merchant"}}
	f := newTestFlow(api, nil)
	toPayment(t, f)

	var apiErr *APIError
	if _, err := f.Pay(context.Background()); !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if f.State() != StatePayment {
		t.Errorf("state = %s", f.State())
	}
}

func TestPayOutsidePaymentState(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	if _, err := f.Pay(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v", err)
	}
}

func TestBackCancelsPoll(t *testing.T) {
	api := &fakeAPI{statuses: []dto.StatusResponse{pendingStatus()}}
	log := zerolog.Nop()
	f := NewFlow(catalog.Default(), api, nil, &log, Options{
		Now:    func() time.Time { return beforeDeadlines },
		Policy: RetryPolicy{InitialDelay: time.Hour, Interval: time.Hour, MaxAttempts: 30},
	})
	toPayment(t, f)

	s, err := f.Pay(context.Background())
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	f.Back()

	if _, err := waitSession(t, s); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if f.State() != StateEvents {
		t.Errorf("state = %s", f.State())
	}
	if _, ok := f.Draft(); ok {
		t.Error("draft should be cleared")
	}
	if len(api.registered) != 0 {
		t.Errorf("registered %d times", len(api.registered))
	}
}

func TestResumeFromStagedDraft(t *testing.T) {
	store := NewMemoryStore()
	draft := dto.RegisterRequest{
		EventID: "web-dev", EventName: "Web Development Challenge", ParticipantName: "Asha",
		TotalAmount: 299, MerchantTransactionID: "TXN_old", PaymentStatus: model.PaymentPending,
	}
	if err := store.Put(context.Background(), "TXN_old", draft, time.Minute); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{statuses: []dto.StatusResponse{paidStatus("T7")}}
	f := newTestFlow(api, store)

	s, err := f.Resume(context.Background(), "TXN_old")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := waitSession(t, s); err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(api.registered) != 1 || api.registered[0].MerchantTransactionID != "TXN_old" || api.registered[0].TransactionID != "T7" {
		t.Errorf("registered = %+v", api.registered)
	}
	if _, err := f.Resume(context.Background(), "TXN_old"); !errors.Is(err, ErrPendingNotFound) {
		t.Errorf("second resume: %v", err)
	}
}

func TestEnterAdmin(t *testing.T) {
	f := newTestFlow(&fakeAPI{}, nil)
	if err := f.EnterAdmin(); err != nil || f.State() != StateAdmin {
		t.Fatalf("err=%v state=%s", err, f.State())
	}
	f.Back()
	toPayment(t, f)
	if err := f.EnterAdmin(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("admin mid-payment: %v", err)
	}
}
