package handler

import (
	"bursa/internal/session/importer"
	"bursa/internal/session/models"
	"bursa/internal/session/service"
)

// DecisionRequest is the body of POST /candidates/{requestID}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// TransferRequest is the body of POST /quotas/transfer.
type TransferRequest struct {
	FromLevel   string `json:"from_level"`
	FromProgram string `json:"from_program"`
	ToLevel     string `json:"to_level"`
	ToProgram   string `json:"to_program"`
	Amount      int    `json:"amount"`
}

func (r TransferRequest) From() models.Bucket {
	return models.Bucket{Level: models.ParseLevel(r.FromLevel), Program: r.FromProgram}
}

func (r TransferRequest) To() models.Bucket {
	return models.Bucket{Level: models.ParseLevel(r.ToLevel), Program: r.ToProgram}
}

// SessionResponse is the body of GET /session.
type SessionResponse struct {
	Status service.SessionStatus `json:"status"`
	Stats  models.Stats          `json:"stats"`
}

// DecisionResponse confirms an applied decision.
type DecisionResponse struct {
	RequestID string          `json:"request_id"`
	Decision  models.Decision `json:"decision"`
}

// ImportResponse reports one completed import.
type ImportResponse struct {
	BatchID  string          `json:"batch_id"`
	Form     string          `json:"form"`
	Imported int             `json:"imported"`
	Report   importer.Report `json:"report"`
}
