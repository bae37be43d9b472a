package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"cache2k25/internal/catalog"
	"cache2k25/internal/dto"
	"cache2k25/internal/gateway"
	"cache2k25/internal/model"
	"cache2k25/internal/repo"
	"cache2k25/pkg/validator"
)

const (
	TxnPrefix    = "TXN_"
	callbackPath = "/api/payment-callback"
	exportName   = "registrations.csv"
)

type Service interface {
	Health(ctx *ginext.Context)
	Events(ctx *ginext.Context)
	CreatePayment(ctx *ginext.Context)
	PaymentCallback(ctx *ginext.Context)
	PaymentStatus(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	ListRegistrations(ctx *ginext.Context)
	ListByEvent(ctx *ginext.Context)
	ExportExcel(ctx *ginext.Context)
	DownloadExcel(ctx *ginext.Context)
}

// PaymentGateway is the part of gateway.Client the handlers use.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, amount float64, merchantTransactionID string, user gateway.UserDetails, callbackURL string) (*gateway.Payment, error)
	CheckStatus(ctx context.Context, merchantTransactionID string) (*gateway.Response, error)
}

type Publisher interface {
	Publish(ctx context.Context, message []byte) error
}

type service struct {
	gw          PaymentGateway
	repo        repo.Repository
	catalog     *catalog.Catalog
	pub         Publisher
	log         *zerolog.Logger
	frontendURL string
	now         func() time.Time
	newTxnID    func() string
}

// NewService wires the handlers. pub may be nil when messaging is disabled.
func NewService(gw PaymentGateway, repo repo.Repository, cat *catalog.Catalog, pub Publisher, logger *zerolog.Logger, frontendURL string) Service {
	return &service{
		gw:          gw,
		repo:        repo,
		catalog:     cat,
		pub:         pub,
		log:         logger,
		frontendURL: frontendURL,
		now:         time.Now,
		newTxnID:    NewMerchantTransactionID,
	}
}

func NewMerchantTransactionID() string {
	return TxnPrefix + uuid.NewString()
}

func (s *service) Health(ctx *ginext.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: "OK", Timestamp: s.now().UTC()})
}

func (s *service) Events(ctx *ginext.Context) {
	now := s.now()
	events := s.catalog.All()
	resp := make([]dto.EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.EventResponse{Event: e, Open: catalog.IsOpen(e, now)})
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *service) CreatePayment(ctx *ginext.Context) {
	var req dto.CreatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create payment request")
		dto.BadResponseError(ctx, dto.InvalidJSON)
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.FieldIncorrectError(ctx, verr)
		return
	}

	txnID := s.newTxnID()
	user := gateway.UserDetails{
		Name:   req.UserDetails.Name,
		Email:  req.UserDetails.Email,
		Phone:  req.UserDetails.Phone,
		UserID: req.UserDetails.UserID,
	}

	payment, err := s.gw.CreatePayment(ctx.Request.Context(), req.Amount, txnID, user, callbackURL(ctx.Request))
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			s.log.Error().Err(err).Str("merchant_transaction_id", txnID).Msg(dto.PaymentCreateFailed)
			dto.BadResponseError(ctx, gwErr.Detail())
			return
		}
		s.log.Error().Err(err).Str("merchant_transaction_id", txnID).Msg("unexpected create payment failure")
		dto.InternalServerError(ctx, dto.PaymentCreateFailed)
		return
	}

	s.log.Info().
		Str("merchant_transaction_id", txnID).
		Str("event_id", req.EventDetails.EventID).
		Float64("amount", req.Amount).
		Msg("payment created")

	ctx.JSON(http.StatusOK, dto.CreatePaymentResponse{
		Success:               true,
		MerchantTransactionID: txnID,
		PaymentURL:            payment.PaymentURL,
		Data:                  payment.Data,
	})
}

func (s *service) PaymentCallback(ctx *ginext.Context) {
	var req dto.CallbackRequest
	if err := ctx.ShouldBind(&req); err != nil || validator.Validate(ctx, req) != nil {
		s.log.Error().Msg("payment callback without merchant transaction id")
		ctx.Redirect(http.StatusFound, s.redirectURL("error", ""))
		return
	}

	status, err := s.gw.CheckStatus(ctx.Request.Context(), req.MerchantTransactionID)
	if err != nil {
		s.log.Warn().Err(err).Str("merchant_transaction_id", req.MerchantTransactionID).Msg("callback status check failed")
		ctx.Redirect(http.StatusFound, s.redirectURL("failed", req.MerchantTransactionID))
		return
	}

	if !status.Success {
		s.log.Info().Str("merchant_transaction_id", req.MerchantTransactionID).Str("code", status.Code).Msg("payment not confirmed")
		ctx.Redirect(http.StatusFound, s.redirectURL("failed", req.MerchantTransactionID))
		return
	}

	s.log.Info().Str("merchant_transaction_id", req.MerchantTransactionID).Msg("payment confirmed by callback")
	ctx.Redirect(http.StatusFound, s.redirectURL("success", req.MerchantTransactionID))
}

func (s *service) PaymentStatus(ctx *ginext.Context) {
	txnID := ctx.Param("merchantTransactionId")
	status, err := s.gw.CheckStatus(ctx.Request.Context(), txnID)
	if err != nil {
		s.log.Error().Err(err).Str("merchant_transaction_id", txnID).Msg(dto.PaymentStatusFailed)
		ctx.JSON(http.StatusOK, dto.StatusResponse{Success: false, Error: gateway.Detail(err)})
		return
	}
	ctx.JSON(http.StatusOK, dto.StatusResponse{Success: true, Data: status})
}

func (s *service) Register(ctx *ginext.Context) {
	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse registration")
		dto.BadResponseError(ctx, dto.InvalidJSON)
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.FieldIncorrectError(ctx, verr)
		return
	}

	reg := &model.Registration{
		RegistrationID:        repo.NewRegistrationID(),
		EventID:               req.EventID,
		EventName:             req.EventName,
		ParticipantName:       req.ParticipantName,
		Email:                 req.Email,
		Phone:                 req.Phone,
		College:               req.College,
		RollNumber:            req.RollNumber,
		TeamMembers:           req.TeamMembers,
		GameIDs:               req.GameIDs,
		TotalAmount:           req.TotalAmount,
		PaymentStatus:         model.PaymentCompleted,
		TransactionID:         req.TransactionID,
		MerchantTransactionID: req.MerchantTransactionID,
		TransactionDate:       s.now().UTC(),
		PaymentMethod:         req.PaymentMethod,
	}

	if err := s.repo.Save(ctx.Request.Context(), reg); err != nil {
		s.log.Error().Err(err).Str("registration_id", reg.RegistrationID).Msg("failed to save registration")
		dto.InternalServerError(ctx, dto.RegistrationFailed)
		return
	}

	s.log.Info().
		Str("registration_id", reg.RegistrationID).
		Str("event_id", reg.EventID).
		Msg("registration saved")

	s.publishSaved(ctx.Request.Context(), reg)

	ctx.JSON(http.StatusOK, dto.RegisterResponse{
		Success:        true,
		RegistrationID: reg.RegistrationID,
		Message:        dto.RegistrationSavedText,
	})
}

// publishSaved never fails the request; the record is already stored.
func (s *service) publishSaved(ctx context.Context, reg *model.Registration) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(dto.RegistrationSavedMessage{
		RegistrationID:  reg.RegistrationID,
		EventID:         reg.EventID,
		EventName:       reg.EventName,
		ParticipantName: reg.ParticipantName,
		Email:           reg.Email,
		TotalAmount:     reg.TotalAmount,
		TransactionID:   reg.TransactionID,
		SavedAt:         reg.CreatedAt,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal registration message")
		return
	}
	if err := s.pub.Publish(ctx, payload); err != nil {
		s.log.Error().Err(err).Str("registration_id", reg.RegistrationID).Msg("failed to publish registration message")
	}
}

func (s *service) ListRegistrations(ctx *ginext.Context) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg(dto.RegistrationsFailed)
		dto.InternalServerError(ctx, dto.RegistrationsFailed)
		return
	}
	ctx.JSON(http.StatusOK, regs)
}

func (s *service) ListByEvent(ctx *ginext.Context) {
	eventID := ctx.Param("eventId")
	regs, err := s.repo.ListByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg(dto.EventRegsFailed)
		dto.InternalServerError(ctx, dto.EventRegsFailed)
		return
	}
	ctx.JSON(http.StatusOK, regs)
}

func (s *service) exportRows(ctx *ginext.Context) ([]dto.ExportRow, bool) {
	regs, err := s.repo.ListAll(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg(dto.ExportFailed)
		dto.InternalServerError(ctx, dto.ExportFailed)
		return nil, false
	}
	rows := make([]dto.ExportRow, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, dto.NewExportRow(r))
	}
	return rows, true
}

func (s *service) ExportExcel(ctx *ginext.Context) {
	rows, ok := s.exportRows(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, rows)
}

func (s *service) DownloadExcel(ctx *ginext.Context) {
	rows, ok := s.exportRows(ctx)
	if !ok {
		return
	}

	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName))
	ctx.Status(http.StatusOK)

	w := csv.NewWriter(ctx.Writer)
	if err := w.Write(dto.ExportHeader); err != nil {
		s.log.Error().Err(err).Msg("failed to write export header")
		return
	}
	for _, r := range rows {
		if err := w.Write(r.Record()); err != nil {
			s.log.Error().Err(err).Msg("failed to write export row")
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.log.Error().Err(err).Msg("failed to flush export")
	}
}

func (s *service) redirectURL(outcome, txnID string) string {
	q := url.Values{}
	q.Set("payment", outcome)
	if txnID != "" {
		q.Set("txn", txnID)
	}
	return s.frontendURL + "?" + q.Encode()
}

func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + callbackPath
}
