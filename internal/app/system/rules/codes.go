package rules

// Issue codes raised by the built-in rule families. Orphan codes come from the
// policy table.
const (
	CodeAmbiguousInference = "AMBIGUOUS_INFERENCE"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidRole        = "INVALID_ROLE"
	CodeDonorRoleUser      = "DONOR_ROLE_USER"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeNonIntegerAmount   = "NON_INTEGER_AMOUNT"
	CodeEphemeralBlobRef   = "EPHEMERAL_BLOB_REF"
	CodeCoachWithoutUser   = "COACH_WITHOUT_USER"
	CodeMissingCampaign    = "PUBLIC_DONOR_MISSING_CAMPAIGN"
	CodeMalformedRecord    = "MALFORMED_RECORD"
)
