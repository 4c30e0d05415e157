package policies

import "mercator-hq/callisto/pkg/guardrail"

// contentFor returns the text a policy should inspect: the prompt text for
// the input phase, the produced (possibly partial) output otherwise.
func contentFor(ec *guardrail.EvalContext) string {
	if ec.Phase == guardrail.FlavorInput {
		return ec.Request.PromptText()
	}
	return ec.Output
}
