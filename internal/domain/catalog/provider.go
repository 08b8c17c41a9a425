package catalog

// ---------------------------------------------------------------------------
// ProviderCode identifies the external system a record came from
// ---------------------------------------------------------------------------

// ProviderCode identifies an external ecommerce provider
type ProviderCode string

const (
	// ProviderBaselinker is the primary catalog provider
	ProviderBaselinker ProviderCode = "BASELINKER"
	// ProviderApilo is the secondary fulfillment provider
	ProviderApilo ProviderCode = "APILO"
)

// IsValid returns true if the provider code is valid
func (c ProviderCode) IsValid() bool {
	switch c {
	case ProviderBaselinker, ProviderApilo:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProviderCode
func (c ProviderCode) String() string {
	return string(c)
}

// IsPrimary returns true for the provider whose catalog data wins
// naming conflicts during merge.
func (c ProviderCode) IsPrimary() bool {
	return c == ProviderBaselinker
}

// DisplayName returns a human-readable name for the provider
func (c ProviderCode) DisplayName() string {
	switch c {
	case ProviderBaselinker:
		return "BaseLinker"
	case ProviderApilo:
		return "Apilo"
	default:
		return string(c)
	}
}
