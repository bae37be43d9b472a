package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodUPI PaymentMethod = "upi"
	MethodQR  PaymentMethod = "qr"
)

type Category string

const (
	Technical    Category = "technical"
	NonTechnical Category = "non-technical"
)

// Event is a catalog entry. It is never persisted by the application.
type Event struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        Category `json:"category"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	MaxParticipants int      `json:"maxParticipants,omitempty"`
	RequiresTeam    bool     `json:"requiresTeam,omitempty"`
	TeamSize        int      `json:"teamSize,omitempty"`
	RequiresGameIDs bool     `json:"requiresGameIds,omitempty"`
	Image           string   `json:"image,omitempty"`
	Deadline        string   `json:"deadline"`
}

type TeamMember struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	RollNumber string `json:"rollNumber" validate:"required"`
}

type GameID struct {
	PlayerName    string `json:"playerName" validate:"required"`
	GameID        string `json:"gameId" validate:"required"`
	CharacterName string `json:"characterName,omitempty"`
}

type Registration struct {
	RegistrationID        string        `json:"registrationId"`
	EventID               string        `json:"eventId"`
	EventName             string        `json:"eventName"`
	ParticipantName       string        `json:"participantName"`
	Email                 string        `json:"email"`
	Phone                 string        `json:"phone"`
	College               string        `json:"college"`
	RollNumber            string        `json:"rollNumber"`
	TeamMembers           []TeamMember  `json:"teamMembers,omitempty"`
	GameIDs               []GameID      `json:"gameIds,omitempty"`
	TotalAmount           float64       `json:"totalAmount"`
	PaymentStatus         PaymentStatus `json:"paymentStatus"`
	TransactionID         string        `json:"transactionId,omitempty"`
	MerchantTransactionID string        `json:"merchantTransactionId,omitempty"`
	TransactionDate       time.Time     `json:"transactionDate"`
	PaymentMethod         PaymentMethod `json:"paymentMethod,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}
