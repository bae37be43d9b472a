package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"cache2k25/internal/model"
)

// ExportRow is one spreadsheet row; the JSON keys are the column headers.
type ExportRow struct {
	RegistrationID  string    `json:"Registration ID"`
	EventID         string    `json:"Event ID"`
	EventName       string    `json:"Event Name"`
	ParticipantName string    `json:"Participant Name"`
	Email           string    `json:"Email"`
	Phone           string    `json:"Phone"`
	College         string    `json:"College"`
	RollNumber      string    `json:"Roll Number"`
	TotalAmount     float64   `json:"Total Amount"`
	PaymentStatus   string    `json:"Payment Status"`
	TransactionID   string    `json:"Transaction ID"`
	TransactionDate time.Time `json:"Transaction Date"`
	TeamMembers     string    `json:"Team Members"`
	GameIDs         string    `json:"Game IDs"`
}

var ExportHeader = []string{
	"Registration ID", "Event ID", "Event Name", "Participant Name", "Email", "Phone", "College",
	"Roll Number", "Total Amount", "Payment Status", "Transaction ID", "Transaction Date",
	"Team Members", "Game IDs",
}

func NewExportRow(r model.Registration) ExportRow {
	return ExportRow{
		RegistrationID:  r.RegistrationID,
		EventID:         r.EventID,
		EventName:       r.EventName,
		ParticipantName: r.ParticipantName,
		Email:           r.Email,
		Phone:           r.Phone,
		College:         r.College,
		RollNumber:      r.RollNumber,
		TotalAmount:     r.TotalAmount,
		PaymentStatus:   string(r.PaymentStatus),
		TransactionID:   r.TransactionID,
		TransactionDate: r.TransactionDate,
		TeamMembers:     jsonOrEmpty(r.TeamMembers, len(r.TeamMembers)),
		GameIDs:         jsonOrEmpty(r.GameIDs, len(r.GameIDs)),
	}
}

// Record returns the row in ExportHeader column order.
func (r ExportRow) Record() []string {
	return []string{
		r.RegistrationID, r.EventID, r.EventName, r.ParticipantName, r.Email, r.Phone, r.College,
		r.RollNumber, strconv.FormatFloat(r.TotalAmount, 'f', -1, 64), r.PaymentStatus, r.TransactionID,
		r.TransactionDate.UTC().Format(time.RFC3339), r.TeamMembers, r.GameIDs,
	}
}

func jsonOrEmpty(v any, n int) string {
	if n == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
