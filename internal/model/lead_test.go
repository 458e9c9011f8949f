package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmission_DecodeWirePayload(t *testing.T) {
	body := `{
		"nome": "Maria Souza",
		"email": "maria@example.com",
		"telefone": "(11) 99999-0000",
		"cidade": "Campinas",
		"estado": "SP",
		"interesse": ["Cozinha", "Dormitório"],
		"expectativaInvestimento": "R$ 20 mil a R$ 50 mil",
		"lojaRegiao": "Interior SP",
		"lojaId": 42,
		"mensagem": "Gostaria de um orçamento."
	}`

	var s Submission
	require.NoError(t, json.Unmarshal([]byte(body), &s))

	assert.Equal(t, "Maria Souza", s.Name)
	assert.Equal(t, "Cozinha, Dormitório", s.Interests.Joined())
	require.True(t, s.HasStoreID())
	assert.Equal(t, StoreID("42"), *s.StoreID)
	assert.Equal(t, "Gostaria de um orçamento.", s.MessageText())
}

func TestSubmission_OptionalFieldsAbsent(t *testing.T) {
	var s Submission
	require.NoError(t, json.Unmarshal([]byte(`{"nome":"a","email":"b","telefone":"c","lojaId":null}`), &s))

	assert.False(t, s.HasStoreID())
	assert.Equal(t, "", s.MessageText())
	assert.Equal(t, "", s.Interests.Joined())
}

func TestInterests_Decode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"array", `["Cozinha","Sala"]`, "Cozinha, Sala"},
		{"string", `"Cozinha, Sala"`, "Cozinha, Sala"},
		{"empty string", `""`, ""},
		{"null", `null`, ""},
		{"empty array", `[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Interests
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, tt.want, in.Joined())
		})
	}
}

func TestInterests_DecodeRejectsObject(t *testing.T) {
	var in Interests
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &in))
}

func TestStoreID_Decode(t *testing.T) {
	tests := []struct {
		body string
		want StoreID
	}{
		{`"17"`, "17"},
		{`17`, "17"},
		{`" 17 "`, "17"},
		{`null`, ""},
		{`"loja-centro"`, "loja-centro"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var id StoreID
			require.NoError(t, json.Unmarshal([]byte(tt.body), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestStoreID_Int(t *testing.T) {
	n, ok := StoreID("17").Int()
	assert.True(t, ok)
	assert.Equal(t, 17, n)

	_, ok = StoreID("loja-centro").Int()
	assert.False(t, ok)
}

func TestCoordinate_IsZero(t *testing.T) {
	assert.True(t, Coordinate{}.IsZero())
	assert.False(t, Coordinate{Lat: -23.55, Lng: -46.63}.IsZero())
}
