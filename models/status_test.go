package models

import "testing"

func TestPolicyForUnknownVariant(t *testing.T) {
	if _, err := PolicyFor(PaymentVariant("wire")); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestDirectPolicyRoundTrip(t *testing.T) {
	policy, err := PolicyFor(VariantDirect)
	if err != nil {
		t.Fatalf("PolicyFor: %v", err)
	}

	// every accepted external value must survive internalize->externalize
	for _, external := range []string{"pending", "completed", "rejected"} {
		stored, err := policy.Internalize(external)
		if err != nil {
			t.Fatalf("Internalize(%q): %v", external, err)
		}
		if got := policy.Externalize(stored); got != external {
			t.Errorf("round trip %q -> %q -> %q", external, stored, got)
		}
	}
}

func TestDirectPolicyMapping(t *testing.T) {
	policy, _ := PolicyFor(VariantDirect)

	tests := []struct {
		external string
		stored   string
	}{
		{"pending", StatusPending},
		{"completed", StatusSuccess},
		{"rejected", StatusFailed},
	}
	for _, tt := range tests {
		stored, err := policy.Internalize(tt.external)
		if err != nil {
			t.Fatalf("Internalize(%q): %v", tt.external, err)
		}
		if stored != tt.stored {
			t.Errorf("Internalize(%q) = %q, want %q", tt.external, stored, tt.stored)
		}
	}

	if policy.Valid("approved") {
		t.Error("direct variant must not accept 'approved'")
	}
	if _, err := policy.Internalize("success"); err == nil {
		t.Error("direct variant must not accept the stored form 'success' as input")
	}
}

func TestCoursePolicyAliases(t *testing.T) {
	policy, _ := PolicyFor(VariantCourse)

	tests := []struct {
		external string
		stored   string
	}{
		{"pending", StatusPending},
		{"completed", StatusSuccess},
		{"success", StatusSuccess},
		{"rejected", StatusFailed},
		{"failed", StatusFailed},
	}
	for _, tt := range tests {
		stored, err := policy.Internalize(tt.external)
		if err != nil {
			t.Fatalf("Internalize(%q): %v", tt.external, err)
		}
		if stored != tt.stored {
			t.Errorf("Internalize(%q) = %q, want %q", tt.external, stored, tt.stored)
		}
	}

	// aliases collapse on the way out
	if got := policy.Externalize(StatusSuccess); got != "completed" {
		t.Errorf("Externalize(success) = %q, want completed", got)
	}
	if got := policy.Externalize(StatusFailed); got != "rejected" {
		t.Errorf("Externalize(failed) = %q, want rejected", got)
	}
}

func TestModalPolicyIdentity(t *testing.T) {
	policy, _ := PolicyFor(VariantModal)

	for _, status := range []string{"pending", "approved", "rejected", "refunded"} {
		stored, err := policy.Internalize(status)
		if err != nil {
			t.Fatalf("Internalize(%q): %v", status, err)
		}
		if stored != status {
			t.Errorf("Internalize(%q) = %q, want identity", status, stored)
		}
		if got := policy.Externalize(stored); got != status {
			t.Errorf("Externalize(%q) = %q, want identity", stored, got)
		}
	}

	if policy.Valid("completed") {
		t.Error("modal variant must not accept 'completed'")
	}
}

func TestExternalizeUnknownPassesThrough(t *testing.T) {
	policy, _ := PolicyFor(VariantDirect)
	if got := policy.Externalize("weird"); got != "weird" {
		t.Errorf("Externalize(weird) = %q", got)
	}
}

func TestExternalStatus(t *testing.T) {
	p := Payment{Variant: VariantDirect, Status: StatusSuccess}
	if got := p.ExternalStatus(); got != "completed" {
		t.Errorf("ExternalStatus() = %q, want completed", got)
	}
}
