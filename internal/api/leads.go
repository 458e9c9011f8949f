package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/lead"
	"github.com/moveis-planejados/lead-api/internal/model"
)

const (
	maxLeadBodyBytes = 64 << 10

	leadAcceptedMessage = "Lead recebido com sucesso!"
	leadInternalMessage = "Erro interno ao processar lead."
	methodNotAllowedPT  = "Método não permitido."
)

type leadResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	PipefyCardID *string `json:"pipefyCardId"`
	LojaID       *int    `json:"lojaId"`
}

func (s *server) handleLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost, errorBody{Error: methodNotAllowedPT})
		return
	}

	var sub model.Submission
	body := http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)
	if err := json.NewDecoder(body).Decode(&sub); err != nil {
		zap.L().Warn("api: decode lead",
			zap.String("stage", string(lead.StageInternalError)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: leadInternalMessage, Details: err.Error()})
		return
	}

	// A visitor closing the tab must not abandon a half-delivered lead; each
	// upstream call carries its own timeout.
	res, err := s.deps.Leads.Submit(context.WithoutCancel(r.Context()), sub)
	var ve *lead.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Message})
		return
	case err != nil:
		zap.L().Error("api: submit lead",
			zap.String("stage", string(lead.StageInternalError)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: leadInternalMessage, Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, leadResponse{
		Success:      res.Success,
		Message:      leadAcceptedMessage,
		PipefyCardID: res.CRMCardID,
		LojaID:       res.ValidatedStoreID,
	})
}
