package dto

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"cache2k25/internal/gateway"
	"cache2k25/internal/model"
)

const (
	InvalidJSON           = "Invalid JSON format"
	PaymentCreateFailed   = "Failed to create payment"
	PaymentStatusFailed   = "Failed to check payment status"
	RegistrationFailed    = "Failed to process registration"
	RegistrationsFailed   = "Failed to fetch registrations"
	EventRegsFailed       = "Failed to fetch event registrations"
	ExportFailed          = "Failed to export data"
	RegistrationSavedText = "Registration saved successfully"
)

type UserDetails struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	UserID string `json:"userId,omitempty"`
}

type EventDetails struct {
	EventID   string `json:"eventId" validate:"required"`
	EventName string `json:"eventName"`
}

type CreatePaymentRequest struct {
	Amount       float64      `json:"amount" validate:"positive"`
	UserDetails  UserDetails  `json:"userDetails"`
	EventDetails EventDetails `json:"eventDetails"`
}

type CreatePaymentResponse struct {
	Success               bool   `json:"success"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	PaymentURL            string `json:"paymentUrl"`
	Data                  any    `json:"data"`
}

// CallbackRequest arrives as JSON or as a form post from the gateway.
type CallbackRequest struct {
	MerchantTransactionID string `json:"merchantTransactionId" form:"merchantTransactionId" validate:"required"`
}

// StatusResponse mirrors the gateway client result: data on success, error otherwise.
type StatusResponse struct {
	Success bool              `json:"success"`
	Data    *gateway.Response `json:"data,omitempty"`
	Error   any               `json:"error,omitempty"`
}

// RegisterRequest is the client's registration draft after payment.
type RegisterRequest struct {
	EventID               string              `json:"eventId" validate:"required"`
	EventName             string              `json:"eventName" validate:"required"`
	ParticipantName       string              `json:"participantName" validate:"required"`
	Email                 string              `json:"email" validate:"required"`
	Phone                 string              `json:"phone" validate:"required"`
	College               string              `json:"college" validate:"required"`
	RollNumber            string              `json:"rollNumber" validate:"required"`
	TeamMembers           []model.TeamMember  `json:"teamMembers,omitempty" validate:"dive"`
	GameIDs               []model.GameID      `json:"gameIds,omitempty" validate:"dive"`
	TotalAmount           float64             `json:"totalAmount" validate:"gte=0"`
	PaymentStatus         model.PaymentStatus `json:"paymentStatus" validate:"paystatus"`
	TransactionID         string              `json:"transactionId"`
	MerchantTransactionID string              `json:"merchantTransactionId"`
	PaymentMethod         model.PaymentMethod `json:"paymentMethod" validate:"paymethod"`
}

type RegisterResponse struct {
	Success        bool   `json:"success"`
	RegistrationID string `json:"registrationId"`
	Message        string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type EventResponse struct {
	model.Event
	Open bool `json:"open"`
}

type ErrorResponse struct {
	Success bool `json:"success"`
	Error   any  `json:"error"`
}

func BadResponseError(c *ginext.Context, detail any) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: detail})
}

func InternalServerError(c *ginext.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Success: false, Error: msg})
}

func FieldIncorrectError(c *ginext.Context, err error) {
	BadResponseError(c, err.Error())
}

// RegistrationSavedMessage is published after a registration is stored.
type RegistrationSavedMessage struct {
	RegistrationID  string    `json:"registration_id"`
	EventID         string    `json:"event_id"`
	EventName       string    `json:"event_name"`
	ParticipantName string    `json:"participant_name"`
	Email           string    `json:"email"`
	TotalAmount     float64   `json:"total_amount"`
	TransactionID   string    `json:"transaction_id"`
	SavedAt         time.Time `json:"saved_at"`
}
