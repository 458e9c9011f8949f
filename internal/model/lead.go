package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Interests is the list of product interests ticked on a form. The site sends
// either an array or an already comma-joined string.
type Interests []string

// UnmarshalJSON accepts a JSON array of strings, a single string, or null.
func (in *Interests) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*in = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode interests")
		}
		if strings.TrimSpace(s) == "" {
			*in = nil
			return nil
		}
		*in = Interests{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return eris.Wrap(err, "model: decode interests")
	}
	*in = list
	return nil
}

// Joined returns the interests as the comma-separated string the CRM and CMS expect.
func (in Interests) Joined() string {
	return strings.Join(in, ", ")
}

// Submission is a lead posted by one of the site's entry forms. Only Name,
// Email and Phone are required; every other field may be absent.
type Submission struct {
	Name             string    `json:"nome"`
	Email            string    `json:"email"`
	Phone            string    `json:"telefone"`
	City             string    `json:"cidade,omitempty"`
	State            string    `json:"estado,omitempty"`
	Interests        Interests `json:"interesse,omitempty"`
	InvestmentRange  string    `json:"expectativaInvestimento,omitempty"`
	StoreRegionLabel string    `json:"lojaRegiao,omitempty"`
	StoreID          *StoreID  `json:"lojaId,omitempty"`
	Message          *string   `json:"mensagem,omitempty"`
	Origin           string    `json:"origem,omitempty"`
}

// HasStoreID reports whether the submitter picked a store.
func (s Submission) HasStoreID() bool {
	return s.StoreID != nil && strings.TrimSpace(string(*s.StoreID)) != ""
}

// MessageText returns the free-text message or an empty string.
func (s Submission) MessageText() string {
	if s.Message == nil {
		return ""
	}
	return *s.Message
}

// Result is what the submitter gets back once the lead was accepted.
// It never says which downstream system failed.
type Result struct {
	Success          bool
	CRMCardID        *string
	ValidatedStoreID *int
}
