package wt

import "context"

// MfaEvaluator decides whether an identified user must complete a second
// factor before reaching [StrongLogin]. The controller consults it on every
// transition into StrongLogin except [Controller.ConfirmMfa], which is the
// completion of a step the evaluator already demanded.
//
// An evaluator error fails closed: the controller demands the MFA step.
type MfaEvaluator interface {
	HasMfaStep(ctx context.Context, user User) (bool, error)
}

// policyMfaEvaluator is the default evaluator driven by [MfaConfig]:
// when MFA is enabled and required, every user gets the step; when merely
// enabled, only users holding an identity for the configured provider do.
type policyMfaEvaluator struct {
	cfg MfaConfig
}

func (e policyMfaEvaluator) HasMfaStep(ctx context.Context, user User) (bool, error) {
	if !e.cfg.Enabled {
		return false, nil
	}
	if e.cfg.Required {
		return true, nil
	}
	if !user.Valid() {
		return false, nil
	}
	return user.Identity(e.cfg.Provider) != "", nil
}
