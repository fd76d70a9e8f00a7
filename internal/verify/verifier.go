// Package verify classifies email addresses into deliverability risk tiers
// using a format check followed by a DNS mail-exchanger lookup. Verification
// never fails: every outcome, including resolver errors, is expressed as a
// Result so callers can branch on risk instead of handling exceptions.
package verify

import (
	"context"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Risk is the coarse deliverability confidence tier for an address.
type Risk string

const (
	RiskLow     Risk = "low"
	RiskMedium  Risk = "medium"
	RiskHigh    Risk = "high"
	RiskUnknown Risk = "unknown"
)

// Reason codes explaining a non-valid result.
const (
	ReasonInvalidFormat   = "invalid_format"
	ReasonNoMXRecords     = "no_mx_records"
	ReasonDNSLookupFailed = "dns_lookup_failed"
)

// Result is the outcome of verifying one address. The shape is stable and
// JSON-serialisable so it can be returned at the API boundary and stored on
// delivery logs as-is.
type Result struct {
	// Email is the lowercased address that was checked.
	Email string `json:"email"`

	// IsValid reports whether the address passed both the format check and
	// the MX lookup.
	IsValid bool `json:"isValid"`

	// Risk is high for malformed addresses, medium when MX resolution gave no
	// usable answer, low when at least one exchanger exists.
	Risk Risk `json:"risk"`

	// Reason is set when IsValid is false: invalid_format, no_mx_records, or
	// dns_lookup_failed.
	Reason string `json:"reason,omitempty"`

	// MXRecords lists exchanger hostnames sorted by ascending priority.
	MXRecords []string `json:"mxRecords"`

	// Detail carries the underlying resolver error message for diagnostics.
	// Never used for control flow.
	Detail string `json:"detail,omitempty"`
}

// Resolver is the DNS dependency. Production uses the stdlib resolver; tests
// inject a stub.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

type netResolver struct{}

func (netResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}

// emailRE is a deliberately loose local@domain.tld pattern. Anything stricter
// rejects real addresses; anything the pattern passes still has to survive
// the MX lookup.
var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Verifier performs the verification decision sequence. Safe for concurrent
// use; it has no mutable state.
type Verifier struct {
	resolver Resolver
}

// NewVerifier constructs a Verifier. A nil resolver selects the stdlib one.
func NewVerifier(r Resolver) *Verifier {
	if r == nil {
		r = netResolver{}
	}
	return &Verifier{resolver: r}
}

// Verify runs the decision sequence for one address:
//
//  1. Lowercase and format-check. Malformed → high risk, no DNS lookup.
//  2. Resolve the domain's MX records.
//  3. One or more records → valid, low risk, hostnames sorted by ascending priority.
//  4. Zero records → medium risk, no_mx_records.
//  5. Lookup error → medium risk, dns_lookup_failed, error text in Detail.
func (v *Verifier) Verify(ctx context.Context, email string) Result {
	result := Result{
		Email:     strings.ToLower(email),
		Risk:      RiskUnknown,
		MXRecords: []string{},
	}

	if email == "" || !emailRE.MatchString(email) {
		result.Risk = RiskHigh
		result.Reason = ReasonInvalidFormat
		return result
	}

	domain := result.Email[strings.LastIndex(result.Email, "@")+1:]

	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		result.Risk = RiskMedium
		result.Reason = ReasonDNSLookupFailed
		result.Detail = err.Error()
		return result
	}

	if len(records) == 0 {
		result.Risk = RiskMedium
		result.Reason = ReasonNoMXRecords
		return result
	}

	sorted := make([]*net.MX, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pref < sorted[j].Pref })

	hosts := make([]string, len(sorted))
	for i, mx := range sorted {
		hosts[i] = strings.TrimSuffix(mx.Host, ".")
	}

	result.IsValid = true
	result.Risk = RiskLow
	result.MXRecords = hosts
	return result
}

// VerifyBatch verifies many addresses with all lookups in flight at once.
// The returned slice matches the input order; one address's lookup failure is
// captured in its own Result and never affects the others.
func (v *Verifier) VerifyBatch(ctx context.Context, emails []string) []Result {
	results := make([]Result, len(emails))

	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			results[i] = v.Verify(ctx, email)
		}(i, email)
	}
	wg.Wait()

	return results
}
