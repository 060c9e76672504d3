package domain

// Outcome classifies a validation decision.
type Outcome string

const (
	// OutcomeNotApplicable: the recipient is not an exchange-intake wallet.
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeAccepted      Outcome = "accepted"
	// OutcomeRejected is a business rejection: the net value is negative.
	OutcomeRejected Outcome = "rejected"
	// OutcomeErrored means the decision could not be made (network, parsing, missing data).
	OutcomeErrored Outcome = "errored"
)

// Decision is the result of validating one transfer.
type Decision struct {
	Outcome   Outcome
	Message   string
	Valuation *Valuation
	Err       error
}

// Valid reports whether the transfer may proceed.
func (d Decision) Valid() bool {
	return d.Outcome == OutcomeNotApplicable || d.Outcome == OutcomeAccepted
}
