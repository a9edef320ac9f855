/*
elduderino reads an aligned, paired-end, coordinate-sorted SAM stream and
emits one FASTQ consensus read pair per PCR-duplicate family, collapsing
PCR duplicates before they ever reach a second round of alignment.

Usage:

	elduderino [input.sam] --output out.fastq [--min-family-size N] [--umi prism|thruplex]

The input path defaults to '-' (stdin); '-' as the output path writes to
stdout. Output is interleaved FASTQ, mate1 then mate2 per family, with
the family size carried as an XF:i tag on the read ID line.
*/
package main

import (
	"bufio"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"

	"github.com/eawilson/elduderino/dedup"
	"github.com/eawilson/elduderino/encoding/fastq"
	"github.com/eawilson/elduderino/umi"
)

var (
	outputPath   = flag.String("output", "-", "Output FASTQ path, or '-' for stdout")
	minFamily    = flag.Int("min-family-size", 1, "drop families with fewer than this many read pairs")
	barcodeFlag  = flag.String("umi", "none", "UMI barcode policy: none, prism, or thruplex")
	umiWhitelist = flag.String("umi-whitelist", "", "optional path to a list of known UMIs to snap-correct against")
	maxTemplate  = flag.Int("max-template-length", 0, "maximum expected template length, for bounding memory use (0 = default)")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	inputPath := "-"
	switch flag.NArg() {
	case 0:
	case 1:
		inputPath = flag.Arg(0)
	default:
		log.Fatalf("at most one input path expected, got '%s'", strings.Join(flag.Args(), " "))
	}
	if *minFamily < 1 {
		log.Fatalf("--min-family-size must be >= 1, got %d", *minFamily)
	}

	policy, err := dedup.ParseBarcodePolicy(*barcodeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	extractor := dedup.BarcodeExtractor{Policy: policy}
	if *umiWhitelist != "" {
		whitelist, err := os.ReadFile(*umiWhitelist)
		if err != nil {
			log.Fatalf("reading UMI whitelist: %v", err)
		}
		extractor.Corrector = umi.NewSnapCorrector(whitelist)
	}

	in, closeIn := openInput(inputPath)
	defer closeIn()
	out, closeOut := openOutput(*outputPath)

	w := fastq.NewWriter(out)

	opts := dedup.Options{
		MinFamilySize:     *minFamily,
		Barcode:           extractor,
		MaxTemplateLength: *maxTemplate,
	}

	family := 0
	stats, err := dedup.Run(in, opts, func(c dedup.Consensus) {
		family++
		if err := w.Write(consensusRead(family, "1", c.Size, c.FwdSeq, c.FwdQual)); err != nil {
			log.Fatalf("writing FASTQ: %v", err)
		}
		if err := w.Write(consensusRead(family, "2", c.Size, c.RevSeq, c.RevQual)); err != nil {
			log.Fatalf("writing FASTQ: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := closeOut(); err != nil {
		log.Fatalf("closing output: %v", err)
	}
	log.Debug.Printf("resolved %d pairs into %d families (%d incompatible mates, %d dangling mates dropped)",
		stats.PairsResolved, stats.FamiliesEmitted, stats.Incompatible, stats.Dangling)
}

func consensusRead(family int, mate string, size int, seq []byte, qual []int) *fastq.Read {
	return &fastq.Read{
		ID:   idLine(family, mate, size),
		Seq:  string(seq),
		Unk:  "+",
		Qual: string(dedup.EncodeQual(qual)),
	}
}

func idLine(family int, mate string, size int) string {
	return "@family" + itoa(family) + "/" + mate + " XF:i:" + itoa(size)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func openInput(path string) (io.Reader, func()) {
	if path == "-" {
		return os.Stdin, func() {}
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("opening input: %v", err)
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			log.Fatalf("opening gzipped input: %v", err)
		}
		return gz, func() { gz.Close(); f.Close() }
	}
	return bufio.NewReader(f), func() { f.Close() }
}

func openOutput(path string) (io.Writer, func() error) {
	if path == "-" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("creating output: %v", err)
	}
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		return gz, func() error {
			if err := gz.Close(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}
	}
	w := bufio.NewWriter(f)
	return w, func() error {
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}
