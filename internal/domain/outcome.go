package domain

// Outcome is the result of one upstream attempt, reported back by the
// caller. A zero StatusCode with a non-nil Err marks a non-protocol failure
// (network error, parse error).
type Outcome struct {
	StatusCode int
	Capability Capability
	Err        error
}

func SuccessOutcome() Outcome {
	return Outcome{}
}

func FailureOutcome(err error) Outcome {
	return Outcome{Err: err}
}

func HTTPOutcome(status int, err error) Outcome {
	return Outcome{StatusCode: status, Err: err}
}

func HTTPCapabilityOutcome(status int, capability Capability, err error) Outcome {
	return Outcome{StatusCode: status, Capability: capability, Err: err}
}

func (o Outcome) Failed() bool {
	return o.Err != nil || o.StatusCode >= 400
}

type ActionKind int

const (
	ActionReset ActionKind = iota
	ActionIgnore
	ActionCapabilityCooldown
	ActionGlobalCooldown
	ActionIncrementFailure
)

func (k ActionKind) String() string {
	switch k {
	case ActionReset:
		return "reset"
	case ActionIgnore:
		return "ignore"
	case ActionCapabilityCooldown:
		return "capability_cooldown"
	case ActionGlobalCooldown:
		return "global_cooldown"
	case ActionIncrementFailure:
		return "increment_failure"
	default:
		return "unknown"
	}
}

type Action struct {
	Kind       ActionKind
	Capability Capability
}

// Classify maps an upstream outcome to the health action to apply.
//
//   - success                     -> Reset
//   - 400                         -> Ignore (caller-side error)
//   - 429 with a capability tag   -> CapabilityCooldown for that capability
//   - 429 without a tag, 401, 403 -> GlobalCooldown (self-healing)
//   - anything else               -> IncrementFailure (permanent disable at threshold)
func Classify(o Outcome) Action {
	if !o.Failed() {
		return Action{Kind: ActionReset}
	}

	switch o.StatusCode {
	case 400:
		return Action{Kind: ActionIgnore}
	case 429:
		if o.Capability.Valid() {
			return Action{Kind: ActionCapabilityCooldown, Capability: o.Capability}
		}
		return Action{Kind: ActionGlobalCooldown}
	case 401, 403:
		return Action{Kind: ActionGlobalCooldown}
	default:
		return Action{Kind: ActionIncrementFailure}
	}
}
