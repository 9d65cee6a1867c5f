package usecase

import "fmt"

// Fallbacks are the fixed replies substituted whenever a real completion
// cannot be obtained.
type Fallbacks struct {
	Unavailable string
	HereToHelp  string
	Trouble     string
}

// DefaultFallbacks returns the clinic's fixed fallback replies.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Unavailable: "I'm currently unavailable. Please call us at +44 300 131 9797 for immediate assistance.",
		HereToHelp:  "I'm here to help! Please call us at +44 300 131 9797 for immediate assistance.",
		Trouble:     "I'm having trouble right now. Please call us at +44 300 131 9797 or email reception@willowsdentalgroup.co.uk for assistance.",
	}
}

// For returns the reply for an absorbed failure. Validation errors are not
// absorbed and report ok=false.
func (f Fallbacks) For(code ErrorCode) (string, bool) {
	switch code {
	case ErrorMissingCredential:
		return f.Unavailable, true
	case ErrorNoCandidate:
		return f.HereToHelp, true
	case ErrorMalformedRequest, ErrorUpstream, ErrorMalformedResponse:
		return f.Trouble, true
	case ErrorInvalidInput:
		return "", false
	default:
		return f.Trouble, true
	}
}

func (f Fallbacks) validate() error {
	for name, v := range map[string]string{
		"unavailable":  f.Unavailable,
		"here-to-help": f.HereToHelp,
		"trouble":      f.Trouble,
	} {
		if v == "" {
			return fmt.Errorf("usecase: %s fallback must not be empty", name)
		}
	}
	return nil
}
