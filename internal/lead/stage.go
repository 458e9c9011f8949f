package lead

// Stage is a step in the life of one submission.
type Stage string

const (
	StageReceived      Stage = "RECEIVED"
	StageValidated     Stage = "VALIDATED"
	StageStoreChecked  Stage = "STORE_CHECKED"
	StageCRMWritten    Stage = "CRM_WRITTEN"
	StageCMSWritten    Stage = "CMS_WRITTEN"
	StageResponded     Stage = "RESPONDED"
	StageRejected      Stage = "REJECTED"
	StageInternalError Stage = "INTERNAL_ERROR"
)
