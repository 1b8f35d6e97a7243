package dispatcher

import (
	"time"

	"github.com/blockedby/teamsheet/internal/models"
)

// StatusSummary aggregates recipient delivery states of one message.
type StatusSummary struct {
	Total       int        `json:"total"`
	Pending     int        `json:"pending"`
	Processing  int        `json:"processing"`
	Sent        int        `json:"sent"`
	Failed      int        `json:"failed"`
	SuccessRate float64    `json:"success_rate"`
	LastUpdated *time.Time `json:"last_updated"`
}

// Summarize counts recipients per status. SuccessRate is sent/total and 0 for
// an empty message; LastUpdated is the newest status change, nil if none.
func Summarize(recipients []models.MessageRecipient) StatusSummary {
	s := StatusSummary{Total: len(recipients)}

	for _, r := range recipients {
		switch r.Status {
		case models.DeliveryStatusPending:
			s.Pending++
		case models.DeliveryStatusProcessing:
			s.Processing++
		case models.DeliveryStatusSent:
			s.Sent++
		case models.DeliveryStatusFailed:
			s.Failed++
		}

		if r.StatusUpdatedAt != nil && (s.LastUpdated == nil || r.StatusUpdatedAt.After(*s.LastUpdated)) {
			t := *r.StatusUpdatedAt
			s.LastUpdated = &t
		}
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Sent) / float64(s.Total)
	}

	return s
}
