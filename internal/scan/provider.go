package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/index"
)

// RegistryChecker answers whether an installed cask accounts for an app.
// Satisfied by brew.Client.
type RegistryChecker interface {
	RecordsApp(ctx context.Context, displayName string) (bool, error)
	CaskInstalled(ctx context.Context, token string) (bool, error)
}

// StoreLister answers whether the store account's listing includes an app.
// Satisfied by mas.Client.
type StoreLister interface {
	Contains(ctx context.Context, displayName string) (bool, error)
}

// TokenSource resolves app names and bundle ids to cask tokens. Satisfied
// by index.Catalog; may be nil when the catalog is unavailable.
type TokenSource interface {
	LookupName(name string) []index.Entry
	LookupBundleID(id string) []index.Entry
}

// Provider is the on-machine evidence provider: Homebrew for the registry,
// the bundle's receipt file and the mas listing for the store, codesign for
// the signature.
type Provider struct {
	registry RegistryChecker
	store    StoreLister
	catalog  TokenSource
	meta     *metadata
}

// NewProvider wires the concrete checks together. catalog may be nil; the
// registry check then relies on name-derived tokens alone.
func NewProvider(registry RegistryChecker, store StoreLister, catalog TokenSource) *Provider {
	return &Provider{registry: registry, store: store, catalog: catalog, meta: newMetadata()}
}

// RegistryContains first tries tokens the catalog maps to the app's bundle
// id and name, then the name-derived token heuristics.
func (p *Provider) RegistryContains(ctx context.Context, ref classify.AppRef) (bool, error) {
	for _, token := range p.catalogTokens(ref) {
		installed, err := p.registry.CaskInstalled(ctx, token)
		if err != nil {
			return false, err
		}
		if installed {
			return true, nil
		}
	}
	return p.registry.RecordsApp(ctx, ref.DisplayName)
}

func (p *Provider) catalogTokens(ref classify.AppRef) []string {
	if p.catalog == nil {
		return nil
	}

	var entries []index.Entry
	if ref.BundleID != "" {
		entries = append(entries, p.catalog.LookupBundleID(ref.BundleID)...)
	}
	entries = append(entries, p.catalog.LookupName(ref.DisplayName)...)

	seen := make(map[string]bool, len(entries))
	var tokens []string
	for _, entry := range entries {
		if !seen[entry.Token] {
			seen[entry.Token] = true
			tokens = append(tokens, entry.Token)
		}
	}
	return tokens
}

// Receipt reports the bundle's store receipt path. Only a cleanly absent
// file means "no receipt"; unreadable is an error the classifier records.
func (p *Provider) Receipt(_ context.Context, ref classify.AppRef) (string, error) {
	receipt := filepath.Join(ref.Path, "Contents", "_MASReceipt", "receipt")
	if _, err := os.Stat(receipt); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return receipt, nil
}

func (p *Provider) ValidateReceipt(ctx context.Context, ref classify.AppRef) (classify.Validity, error) {
	listed, err := p.store.Contains(ctx, ref.DisplayName)
	if err != nil {
		return classify.ValidityUnavailable, err
	}
	if listed {
		return classify.ValidityConfirmed, nil
	}
	return classify.ValidityUnconfirmed, nil
}

func (p *Provider) SigningIdentity(ctx context.Context, ref classify.AppRef) (string, error) {
	return p.meta.SigningIdentity(ctx, ref.Path)
}
