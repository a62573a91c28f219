package models

import "fmt"

// PaymentVariant discriminates the three checkout flows that share the
// payments table.
type PaymentVariant string

const (
	VariantDirect PaymentVariant = "direct" // plan purchase with receipt
	VariantCourse PaymentVariant = "course" // course enrollment checkout
	VariantModal  PaymentVariant = "modal"  // modal checkout with amounts
)

// Canonical stored statuses.
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusRefunded = "refunded"
)

// StatusPolicy defines the status vocabulary of one payment variant: which
// external values are accepted, what they canonicalize to in storage, and
// how stored values read back out.
type StatusPolicy struct {
	Variant  PaymentVariant
	internal map[string]string // accepted external value -> stored value
	external map[string]string // stored value -> external value
}

var (
	// direct: stored {pending,success,failed}, exposed {pending,completed,rejected}
	directPolicy = StatusPolicy{
		Variant: VariantDirect,
		internal: map[string]string{
			"pending":   StatusPending,
			"completed": StatusSuccess,
			"rejected":  StatusFailed,
		},
		external: map[string]string{
			StatusPending: "pending",
			StatusSuccess: "completed",
			StatusFailed:  "rejected",
		},
	}

	// course: same canonical triple as direct, but the legacy aliases
	// "success" and "failed" are still accepted on input.
	coursePolicy = StatusPolicy{
		Variant: VariantCourse,
		internal: map[string]string{
			"pending":   StatusPending,
			"completed": StatusSuccess,
			"success":   StatusSuccess,
			"rejected":  StatusFailed,
			"failed":    StatusFailed,
		},
		external: map[string]string{
			StatusPending: "pending",
			StatusSuccess: "completed",
			StatusFailed:  "rejected",
		},
	}

	// modal: stored and exposed vocabularies coincide.
	modalPolicy = StatusPolicy{
		Variant: VariantModal,
		internal: map[string]string{
			"pending":  StatusPending,
			"approved": StatusApproved,
			"rejected": StatusRejected,
			"refunded": StatusRefunded,
		},
		external: map[string]string{
			StatusPending:  "pending",
			StatusApproved: "approved",
			StatusRejected: "rejected",
			StatusRefunded: "refunded",
		},
	}
)

// PolicyFor returns the status policy of a payment variant.
func PolicyFor(variant PaymentVariant) (*StatusPolicy, error) {
	switch variant {
	case VariantDirect:
		return &directPolicy, nil
	case VariantCourse:
		return &coursePolicy, nil
	case VariantModal:
		return &modalPolicy, nil
	}
	return nil, fmt.Errorf("unknown payment variant %q", variant)
}

// Valid reports whether an external status value belongs to the variant's
// vocabulary.
func (p *StatusPolicy) Valid(external string) bool {
	_, ok := p.internal[external]
	return ok
}

// Internalize maps an external status value to its stored form.
func (p *StatusPolicy) Internalize(external string) (string, error) {
	stored, ok := p.internal[external]
	if !ok {
		return "", fmt.Errorf("invalid status %q for variant %s (allowed: %v)", external, p.Variant, p.Allowed())
	}
	return stored, nil
}

// Externalize maps a stored status value to the form exposed by the API.
// Unknown stored values pass through unchanged.
func (p *StatusPolicy) Externalize(stored string) string {
	if ext, ok := p.external[stored]; ok {
		return ext
	}
	return stored
}

// Allowed lists the external values the variant accepts, in stable order.
func (p *StatusPolicy) Allowed() []string {
	order := []string{"pending", "completed", "success", "approved", "rejected", "failed", "refunded"}
	out := make([]string, 0, len(p.internal))
	for _, v := range order {
		if _, ok := p.internal[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// ExternalStatus is a convenience for handlers shaping responses.
func (pm *Payment) ExternalStatus() string {
	policy, err := PolicyFor(pm.Variant)
	if err != nil {
		return pm.Status
	}
	return policy.Externalize(pm.Status)
}
