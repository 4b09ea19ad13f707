package classify

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the provenance assigned to an installed app.
type Verdict string

const (
	// ManagedPackage means an installed Homebrew cask accounts for the app.
	ManagedPackage Verdict = "homebrew"

	// CuratedStore means the app came from the Mac App Store.
	CuratedStore Verdict = "appstore"

	// Manual means nothing claims the app; it was dragged in by hand or by
	// a third-party installer.
	Manual Verdict = "manual"

	// Unknown means the signals conflict or a deciding check failed.
	// Unknown apps are excluded from migration by default.
	Unknown Verdict = "unknown"
)

// ParseVerdict maps a user-supplied type name to a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(strings.ToLower(strings.TrimSpace(s))) {
	case ManagedPackage:
		return ManagedPackage, nil
	case CuratedStore:
		return CuratedStore, nil
	case Manual:
		return Manual, nil
	case Unknown:
		return Unknown, nil
	}
	return "", fmt.Errorf("invalid type %q (must be homebrew, appstore, manual, or unknown)", s)
}

// ParseVerdicts parses a comma-separated type filter, as accepted by the
// --type flag.
func ParseVerdicts(csv string) ([]Verdict, error) {
	var verdicts []Verdict
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := ParseVerdict(part)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// Confidence grades how strongly the evidence supports a verdict.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Validity is the outcome of corroborating a store receipt against the
// store's own account listing.
type Validity string

const (
	// ValidityConfirmed means the store listing includes the app.
	ValidityConfirmed Validity = "confirmed"

	// ValidityUnconfirmed means the listing was consulted and does not
	// include the app.
	ValidityUnconfirmed Validity = "unconfirmed"

	// ValidityUnavailable means the validation tool is missing or failed,
	// so the receipt stands uncorroborated.
	ValidityUnavailable Validity = "unavailable"
)

// Signal is one observation in the evidence trail, in the order the checks
// ran.
type Signal struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Classification is the verdict for one app plus the trail that led to it.
type Classification struct {
	Verdict    Verdict    `json:"type"`
	Confidence Confidence `json:"confidence"`
	Evidence   []Signal   `json:"evidence"`
}

// AppRef identifies an installed app to an EvidenceProvider. Lookups may
// key off any combination of name, bundle id, and path.
type AppRef struct {
	DisplayName string
	BundleID    string
	Path        string
	Version     string
}

// EvidenceProvider answers the individual provenance checks. Implementations
// may cache; they must not classify.
type EvidenceProvider interface {
	// RegistryContains reports whether an installed cask records the app.
	RegistryContains(ctx context.Context, ref AppRef) (bool, error)

	// Receipt returns the path of the app's store receipt, or "" when the
	// bundle has none.
	Receipt(ctx context.Context, ref AppRef) (string, error)

	// ValidateReceipt corroborates a present receipt against the store
	// account's listing.
	ValidateReceipt(ctx context.Context, ref AppRef) (Validity, error)

	// SigningIdentity returns the signing authority of the bundle, or ""
	// when it is unsigned.
	SigningIdentity(ctx context.Context, ref AppRef) (string, error)
}

// Evidence is the explicit record of every check for one app. Classify
// reads it; Gather fills it. Provider errors are recorded, never raised.
type Evidence struct {
	InRegistry  bool
	RegistryErr error

	ReceiptPath string
	ReceiptErr  error

	Validity    Validity
	ValidityErr error

	SigningID  string
	SigningErr error
}
