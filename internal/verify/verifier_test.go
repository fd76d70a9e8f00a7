package verify_test

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/nk2it/license-store-backend/internal/verify"
)

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubResolver struct {
	records map[string][]*net.MX
	err     error
	calls   atomic.Int64
}

func (s *stubResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records[domain], nil
}

// ─── Verify ───────────────────────────────────────────────────────────────────

func TestVerify_InvalidFormatSkipsDNS(t *testing.T) {
	resolver := &stubResolver{}
	v := verify.NewVerifier(resolver)

	tests := []string{
		"",
		"plainstring",
		"missing@tld",
		"two@@example.com",
		"spaces in@example.com",
		"@example.com",
		"user@",
	}
	for _, email := range tests {
		t.Run(email, func(t *testing.T) {
			res := v.Verify(context.Background(), email)
			if res.IsValid {
				t.Error("IsValid = true, want false")
			}
			if res.Risk != verify.RiskHigh {
				t.Errorf("Risk = %q, want high", res.Risk)
			}
			if res.Reason != verify.ReasonInvalidFormat {
				t.Errorf("Reason = %q, want invalid_format", res.Reason)
			}
			if res.MXRecords == nil || len(res.MXRecords) != 0 {
				t.Errorf("MXRecords = %v, want empty non-nil slice", res.MXRecords)
			}
		})
	}
	if n := resolver.calls.Load(); n != 0 {
		t.Errorf("resolver called %d times for malformed input, want 0", n)
	}
}

func TestVerify_ValidDomainSortsMXByPriority(t *testing.T) {
	resolver := &stubResolver{records: map[string][]*net.MX{
		"example.com": {
			{Host: "backup.mx.example.com.", Pref: 20},
			{Host: "primary.mx.example.com.", Pref: 10},
		},
	}}
	v := verify.NewVerifier(resolver)

	res := v.Verify(context.Background(), "user@example.com")

	if !res.IsValid {
		t.Error("IsValid = false, want true")
	}
	if res.Risk != verify.RiskLow {
		t.Errorf("Risk = %q, want low", res.Risk)
	}
	if res.Reason != "" {
		t.Errorf("Reason = %q, want empty", res.Reason)
	}
	want := []string{"primary.mx.example.com", "backup.mx.example.com"}
	if !reflect.DeepEqual(res.MXRecords, want) {
		t.Errorf("MXRecords = %v, want %v (ascending priority, no trailing dot)", res.MXRecords, want)
	}
}

func TestVerify_LowercasesAddress(t *testing.T) {
	resolver := &stubResolver{records: map[string][]*net.MX{
		"example.com": {{Host: "mx.example.com.", Pref: 10}},
	}}
	v := verify.NewVerifier(resolver)

	res := v.Verify(context.Background(), "User.Name@EXAMPLE.COM")
	if res.Email != "user.name@example.com" {
		t.Errorf("Email = %q, want lowercased", res.Email)
	}
	if !res.IsValid {
		t.Error("IsValid = false, want true (lookup must use the lowercased domain)")
	}
}

func TestVerify_NoMXRecords(t *testing.T) {
	v := verify.NewVerifier(&stubResolver{records: map[string][]*net.MX{}})

	res := v.Verify(context.Background(), "user@mx-less.example")

	if res.IsValid {
		t.Error("IsValid = true, want false")
	}
	if res.Risk != verify.RiskMedium {
		t.Errorf("Risk = %q, want medium", res.Risk)
	}
	if res.Reason != verify.ReasonNoMXRecords {
		t.Errorf("Reason = %q, want no_mx_records", res.Reason)
	}
}

func TestVerify_DNSLookupFailed(t *testing.T) {
	v := verify.NewVerifier(&stubResolver{err: errors.New("no such host")})

	res := v.Verify(context.Background(), "user@unresolvable.example")

	if res.IsValid {
		t.Error("IsValid = true, want false")
	}
	if res.Risk != verify.RiskMedium {
		t.Errorf("Risk = %q, want medium", res.Risk)
	}
	if res.Reason != verify.ReasonDNSLookupFailed {
		t.Errorf("Reason = %q, want dns_lookup_failed", res.Reason)
	}
	if res.Detail != "no such host" {
		t.Errorf("Detail = %q, want the resolver error text", res.Detail)
	}
}

// ─── VerifyBatch ──────────────────────────────────────────────────────────────

func TestVerifyBatch_PreservesOrder(t *testing.T) {
	resolver := &stubResolver{records: map[string][]*net.MX{
		"good.example": {{Host: "mx.good.example.", Pref: 10}},
	}}
	v := verify.NewVerifier(resolver)

	emails := []string{"a@good.example", "bad-address", "c@empty.example", "d@good.example"}
	results := v.VerifyBatch(context.Background(), emails)

	if len(results) != len(emails) {
		t.Fatalf("got %d results, want %d", len(results), len(emails))
	}
	for i, email := range emails {
		if results[i].Email != email {
			t.Errorf("results[%d].Email = %q, want %q", i, results[i].Email, email)
		}
	}
	if !results[0].IsValid || !results[3].IsValid {
		t.Error("addresses on a domain with MX records should be valid")
	}
	if results[1].Reason != verify.ReasonInvalidFormat {
		t.Errorf("results[1].Reason = %q, want invalid_format", results[1].Reason)
	}
	if results[2].Reason != verify.ReasonNoMXRecords {
		t.Errorf("results[2].Reason = %q, want no_mx_records", results[2].Reason)
	}
}

func TestVerifyBatch_Empty(t *testing.T) {
	v := verify.NewVerifier(&stubResolver{})
	if results := v.VerifyBatch(context.Background(), nil); len(results) != 0 {
		t.Errorf("got %d results for empty input, want 0", len(results))
	}
}
