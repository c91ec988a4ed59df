package pulse

// Variant names one combination of correction choices applied to a dataset.
type Variant string

// The four canonical variants.
const (
	VariantRaw            Variant = "pulses"
	VariantBaseline       Variant = "baseline corr pulses"
	VariantSmooth         Variant = "smooth pulses"
	VariantBaselineSmooth Variant = "baseline corr smooth pulses"
)

// VariantFor returns the variant produced by the given correction toggles.
func VariantFor(baseline, smooth bool) Variant {
	switch {
	case baseline && smooth:
		return VariantBaselineSmooth
	case baseline:
		return VariantBaseline
	case smooth:
		return VariantSmooth
	default:
		return VariantRaw
	}
}

// Variants lists the canonical variants in toggle order.
func Variants() []Variant {
	return []Variant{VariantRaw, VariantBaseline, VariantSmooth, VariantBaselineSmooth}
}

// Valid reports whether v is one of the canonical variant names.
func (v Variant) Valid() bool {
	switch v {
	case VariantRaw, VariantBaseline, VariantSmooth, VariantBaselineSmooth:
		return true
	default:
		return false
	}
}

func (v Variant) String() string {
	return string(v)
}
