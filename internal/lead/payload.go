package lead

import (
	"strconv"
	"strings"

	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/pkg/pipefy"
	"github.com/moveis-planejados/lead-api/pkg/wordpress"
)

// DefaultOrigin tags leads whose form did not say where it lives.
const DefaultOrigin = "site"

// Validate checks the required fields.
func Validate(s model.Submission) error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Email) == "" || strings.TrimSpace(s.Phone) == "" {
		return &ValidationError{Message: RequiredFieldsMessage}
	}
	return nil
}

// CardInput builds the Pipefy card for a submission. Absent optional fields are
// sent as empty strings; loja_id is sent only for a validated store.
func CardInput(pipeID string, s model.Submission, storeID *int) pipefy.CreateCardInput {
	fields := []pipefy.FieldValue{
		{FieldID: "nome", FieldValue: s.Name},
		{FieldID: "email", FieldValue: s.Email},
		{FieldID: "telefone", FieldValue: s.Phone},
		{FieldID: "cidade", FieldValue: s.City},
		{FieldID: "estado", FieldValue: s.State},
		{FieldID: "interesse", FieldValue: s.Interests.Joined()},
		{FieldID: "expectativa_de_investimento", FieldValue: s.InvestmentRange},
		{FieldID: "loja_regiao", FieldValue: s.StoreRegionLabel},
		{FieldID: "mensagem", FieldValue: s.MessageText()},
	}
	if storeID != nil {
		fields = append(fields, pipefy.FieldValue{FieldID: "loja_id", FieldValue: strconv.Itoa(*storeID)})
	}
	return pipefy.CreateCardInput{
		PipeID:           pipeID,
		Title:            s.Name,
		FieldsAttributes: fields,
	}
}

// LeadRecord builds the normalized CMS record for a submission.
func LeadRecord(s model.Submission, storeID *int, cardID *string) wordpress.LeadRecord {
	origin := strings.TrimSpace(s.Origin)
	if origin == "" {
		origin = DefaultOrigin
	}
	return wordpress.LeadRecord{
		Name:             s.Name,
		Email:            s.Email,
		Phone:            s.Phone,
		City:             s.City,
		State:            s.State,
		Interests:        s.Interests.Joined(),
		InvestmentRange:  s.InvestmentRange,
		StoreRegionLabel: s.StoreRegionLabel,
		Message:          s.MessageText(),
		Origin:           origin,
		StoreID:          storeID,
		CRMCardID:        cardID,
	}
}
