package lead

// RequiredFieldsMessage is shown to the submitter when a required field is missing.
const RequiredFieldsMessage = "Nome, email e telefone são obrigatórios."

// ValidationError rejects a submission before any upstream is contacted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
