package checkout

import (
	"encoding/json"

	"cache2k25/internal/dto"
)

const CodePaymentPending = "PAYMENT_PENDING"

type statusDetail struct {
	TransactionID string `json:"transactionId"`
}

// Classify maps a payment-status response onto a poll outcome. Only a
// response where both the endpoint and the gateway report success counts as
// paid; PAYMENT_PENDING keeps polling; anything else is a failure.
func Classify(resp dto.StatusResponse) Status {
	if resp.Data == nil {
		return Status{Outcome: OutcomeFailed}
	}
	st := Status{Code: resp.Data.Code}
	switch {
	case resp.Success && resp.Data.Success:
		st.Outcome = OutcomeSuccess
		var detail statusDetail
		if len(resp.Data.Data) > 0 && json.Unmarshal(resp.Data.Data, &detail) == nil {
			st.TransactionID = detail.TransactionID
		}
	case resp.Data.Code == CodePaymentPending:
		st.Outcome = OutcomePending
	default:
		st.Outcome = OutcomeFailed
	}
	return st
}
