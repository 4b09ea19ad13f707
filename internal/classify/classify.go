// Package classify decides where an installed app came from.
//
// The decision is split in two: Gather runs the provenance checks through an
// EvidenceProvider and records what each one said, then Classify turns the
// completed record into a verdict. Classify is a pure function, so every
// precedence rule is testable without touching brew, the store, or codesign.
package classify

import "context"

// StoreSigningIdentity is the signing authority the Mac App Store stamps on
// every app it distributes.
const StoreSigningIdentity = "Apple Mac OS Application Signing"

// Gather fills an Evidence record for one app. Receipt validation only runs
// when a receipt is present. Provider failures are captured in the record;
// a broken tool degrades the verdict, it never aborts the scan.
func Gather(ctx context.Context, provider EvidenceProvider, ref AppRef) Evidence {
	var ev Evidence

	ev.InRegistry, ev.RegistryErr = provider.RegistryContains(ctx, ref)
	ev.ReceiptPath, ev.ReceiptErr = provider.Receipt(ctx, ref)

	if ev.ReceiptPath != "" {
		validity, err := provider.ValidateReceipt(ctx, ref)
		if err != nil {
			ev.Validity = ValidityUnavailable
			ev.ValidityErr = err
		} else {
			ev.Validity = validity
		}
	}

	ev.SigningID, ev.SigningErr = provider.SigningIdentity(ctx, ref)

	return ev
}

// Classify turns an evidence record into a classification. Precedence,
// highest first:
//
//  1. Registry membership and a store receipt together are contradictory;
//     neither source can be trusted, so the app is Unknown.
//  2. Registry membership alone is decisive: ManagedPackage, high.
//  3. A failed registry or receipt check leaves the top of the precedence
//     order undecidable: Unknown rather than a guess.
//  4. A receipt is CuratedStore: high when the store listing confirms it,
//     medium when validation is unconfirmed or unavailable.
//  5. A store signing identity without a receipt is a weak store hint:
//     CuratedStore, low.
//  6. No signal at all is an ordinary hand-installed app: Manual, high.
//
// The signature check only corroborates; a failed codesign never makes an
// app Unknown on its own.
func Classify(ev Evidence) Classification {
	c := Classification{Evidence: ev.trail()}

	hasReceipt := ev.ReceiptPath != ""

	switch {
	case ev.InRegistry && hasReceipt:
		c.Verdict, c.Confidence = Unknown, Low
	case ev.InRegistry:
		c.Verdict, c.Confidence = ManagedPackage, High
	case ev.RegistryErr != nil:
		c.Verdict, c.Confidence = Unknown, Low
	case hasReceipt && ev.Validity == ValidityConfirmed:
		c.Verdict, c.Confidence = CuratedStore, High
	case hasReceipt:
		c.Verdict, c.Confidence = CuratedStore, Medium
	case ev.ReceiptErr != nil:
		c.Verdict, c.Confidence = Unknown, Low
	case ev.SigningID == StoreSigningIdentity:
		c.Verdict, c.Confidence = CuratedStore, Low
	default:
		c.Verdict, c.Confidence = Manual, High
	}

	return c
}

// trail renders the record as ordered signals: registry, receipt,
// validation, signature.
func (ev Evidence) trail() []Signal {
	var signals []Signal

	switch {
	case ev.RegistryErr != nil:
		signals = append(signals, Signal{Name: "registry", Value: "check failed: " + ev.RegistryErr.Error()})
	case ev.InRegistry:
		signals = append(signals, Signal{Name: "registry", Value: "installed cask records this app"})
	default:
		signals = append(signals, Signal{Name: "registry", Value: "no installed cask records this app"})
	}

	switch {
	case ev.ReceiptErr != nil:
		signals = append(signals, Signal{Name: "receipt", Value: "check failed: " + ev.ReceiptErr.Error()})
	case ev.ReceiptPath != "":
		signals = append(signals, Signal{Name: "receipt", Value: ev.ReceiptPath})
		signals = append(signals, validationSignal(ev))
	default:
		signals = append(signals, Signal{Name: "receipt", Value: "no store receipt"})
	}

	switch {
	case ev.SigningErr != nil:
		signals = append(signals, Signal{Name: "signature", Value: "check failed: " + ev.SigningErr.Error()})
	case ev.SigningID != "":
		signals = append(signals, Signal{Name: "signature", Value: ev.SigningID})
	default:
		signals = append(signals, Signal{Name: "signature", Value: "unsigned"})
	}

	return signals
}

func validationSignal(ev Evidence) Signal {
	switch ev.Validity {
	case ValidityConfirmed:
		return Signal{Name: "validation", Value: "store listing confirms this app"}
	case ValidityUnconfirmed:
		return Signal{Name: "validation", Value: "store listing does not include this app"}
	default:
		value := "validation tool unavailable"
		if ev.ValidityErr != nil {
			value += ": " + ev.ValidityErr.Error()
		}
		return Signal{Name: "validation", Value: value}
	}
}
