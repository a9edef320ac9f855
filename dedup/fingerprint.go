package dedup

import (
	"github.com/biogo/hts/sam"
	farm "github.com/dgryski/go-farm"
)

// mateKey is the alignment-geometry signature of a single mate:
// reference, leftmost position, strand, and CIGAR shape. Two reads that
// are PCR copies of one another produce identical mateKeys for both of
// their mates.
type mateKey struct {
	ref    string
	pos    int
	strand byte
	cigar  string
}

func (k mateKey) less(o mateKey) bool {
	if k.ref != o.ref {
		return k.ref < o.ref
	}
	if k.pos != o.pos {
		return k.pos < o.pos
	}
	if k.strand != o.strand {
		return k.strand < o.strand
	}
	return k.cigar < o.cigar
}

// Fingerprint is the opaque equality key used to group read pairs into
// PCR-duplicate families. Two pairs with equal Fingerprints belong to
// the same family. It is comparable, so it can be used directly as a
// map key.
type Fingerprint struct {
	a, b    mateKey
	barcode string
}

// less orders fingerprints lexicographically by mate keys then
// barcode, providing the deterministic tie-break used when several
// families flush at the same reference position.
func (f Fingerprint) less(o Fingerprint) bool {
	if f.a != o.a {
		return f.a.less(o.a)
	}
	if f.b != o.b {
		return f.b.less(o.b)
	}
	return f.barcode < o.barcode
}

// positional is the fingerprint with both CIGARs blanked. Families
// that differ only in CIGAR share a positional key; they describe the
// same physical fragment seen through different alignments and compete
// for it at flush time.
func (f Fingerprint) positional() Fingerprint {
	f.a.cigar = ""
	f.b.cigar = ""
	return f
}

// Hash64 returns a fast, stable, non-cryptographic digest of the
// fingerprint, useful for logging or sharding without exposing the
// fingerprint's internal layout.
func (f Fingerprint) Hash64() uint64 {
	buf := make([]byte, 0, 128)
	buf = appendMateKey(buf, f.a)
	buf = append(buf, ':')
	buf = appendMateKey(buf, f.b)
	buf = append(buf, ':')
	buf = append(buf, f.barcode...)
	return farm.Hash64WithSeed(buf, 0)
}

func appendMateKey(buf []byte, k mateKey) []byte {
	buf = append(buf, k.ref...)
	buf = append(buf, ':')
	buf = appendInt(buf, k.pos)
	buf = append(buf, ':', k.strand, ':')
	buf = append(buf, k.cigar...)
	return buf
}

func appendInt(buf []byte, v int) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	neg := v < 0
	if neg {
		v = -v
	}
	start := len(buf)
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	if neg {
		buf = append(buf, '-')
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

func strandOf(r *sam.Record) byte {
	if r.Flags&sam.Reverse != 0 {
		return 'R'
	}
	return 'F'
}

func refName(ref *sam.Reference) string {
	if ref == nil {
		return "*"
	}
	return ref.Name()
}

// BuildFingerprint derives a family fingerprint from a resolved mate
// pair and its barcode key (empty when no barcode policy is in use).
// The two mates' keys are canonically ordered so that fingerprinting is
// independent of which mate happens to be read1 in the SAM stream.
func BuildFingerprint(r1, r2 *sam.Record, barcode string) Fingerprint {
	k1 := mateKey{ref: refName(r1.Ref), pos: r1.Pos, strand: strandOf(r1), cigar: r1.Cigar.String()}
	k2 := mateKey{ref: refName(r2.Ref), pos: r2.Pos, strand: strandOf(r2), cigar: r2.Cigar.String()}
	if k2.less(k1) {
		k1, k2 = k2, k1
	}
	return Fingerprint{a: k1, b: k2, barcode: barcode}
}
