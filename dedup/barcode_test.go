package dedup

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"

	"github.com/eawilson/elduderino/umi"
)

func TestParseBarcodePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    BarcodePolicy
		wantErr bool
	}{
		{"", BarcodeNone, false},
		{"none", BarcodeNone, false},
		{"prism", BarcodePrism, false},
		{"Prism", BarcodePrism, false},
		{"thruplex", BarcodeThruplex, false},
		{"THRUPLEX", BarcodeThruplex, false},
		{"duplex", BarcodeNone, true},
	}
	for _, test := range tests {
		got, err := ParseBarcodePolicy(test.in)
		if test.wantErr {
			expect.True(t, err != nil, "ParseBarcodePolicy(%q)", test.in)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, got, test.want, "ParseBarcodePolicy(%q)", test.in)
	}
}

func withRX(t *testing.T, value string) *sam.Record {
	t.Helper()
	r := mkRecord(t, "q", testChr1, 0, sam.Read1|sam.MateReverse, "7M", "AAATTTT", "aaaaaaa")
	if value != "" {
		aux, err := sam.NewAux(rxTag, value)
		assert.NoError(t, err)
		r.AuxFields = append(r.AuxFields, aux)
	}
	return r
}

func TestBarcodeExtractorKey(t *testing.T) {
	tagged := withRX(t, "ACGT")
	bare := withRX(t, "")

	none := BarcodeExtractor{Policy: BarcodeNone}
	expect.EQ(t, none.Key(tagged), "")

	prism := BarcodeExtractor{Policy: BarcodePrism}
	expect.EQ(t, prism.Key(tagged), "ACGT")
	expect.EQ(t, prism.Key(bare), "")

	thruplex := BarcodeExtractor{Policy: BarcodeThruplex}
	expect.EQ(t, thruplex.Key(tagged), "ACGT")

	expect.EQ(t, prism.Key(withRX(t, "acgt")), "acgt")
}

func TestBarcodeExtractorSnapCorrection(t *testing.T) {
	corrector := umi.NewSnapCorrector([]byte("AAA\nCCC\nGGG\nTTT"))
	e := BarcodeExtractor{Policy: BarcodePrism, Corrector: corrector}
	expect.EQ(t, e.Key(withRX(t, "AAT")), "AAA")
	expect.EQ(t, e.Key(withRX(t, "AAA")), "AAA")
}
