package dedup

import (
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"

	"github.com/eawilson/elduderino/umi"
)

var rxTag = sam.Tag{'R', 'X'}

// BarcodePolicy selects how (or whether) a UMI barcode contributes to
// fingerprinting.
type BarcodePolicy int

const (
	// BarcodeNone ignores barcodes entirely; families are grouped by
	// alignment geometry alone.
	BarcodeNone BarcodePolicy = iota
	// BarcodePrism uses the RX tag verbatim.
	BarcodePrism
	// BarcodeThruplex uses the RX tag verbatim. Prism and thruplex
	// library preps differ in adapter structure upstream of this tool,
	// but by the time a read reaches dedup they are indistinguishable:
	// both carry their UMI in the RX tag with the same encoding.
	BarcodeThruplex
)

// ParseBarcodePolicy parses a policy name from the CLI.
func ParseBarcodePolicy(s string) (BarcodePolicy, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return BarcodeNone, nil
	case "prism":
		return BarcodePrism, nil
	case "thruplex":
		return BarcodeThruplex, nil
	default:
		return BarcodeNone, errors.Errorf("unrecognized barcode policy %q", s)
	}
}

// BarcodeExtractor derives a family's barcode key from a mate's RX tag,
// optionally snap-correcting it against a whitelist of known UMIs.
type BarcodeExtractor struct {
	Policy    BarcodePolicy
	Corrector *umi.SnapCorrector
}

// Key returns the barcode component of r's fingerprint. It returns the
// empty string when the policy is BarcodeNone or the record carries no
// RX tag, both of which fold every read into barcode-agnostic families.
func (e BarcodeExtractor) Key(r *sam.Record) string {
	if e.Policy == BarcodeNone {
		return ""
	}
	aux := r.AuxFields.Get(rxTag)
	if aux == nil {
		return ""
	}
	rx, ok := aux.Value().(string)
	if !ok || rx == "" {
		return ""
	}
	if e.Corrector != nil {
		if corrected, _, ok := e.Corrector.CorrectUMI(rx); ok {
			return corrected
		}
	}
	return rx
}
