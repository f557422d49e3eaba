package arpa

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/dngram/dngram/evaluate"
	"github.com/dngram/dngram/ngram"
)

func buildModel(t *testing.T) (*evaluate.Model, [][]*ngram.FloatLmState) {
	t.Helper()
	unigram := &ngram.FloatLmState{
		Total: 20,
		Counts: []ngram.FloatWordCount{
			{Word: ngram.EOS, Count: 5},
			{Word: ngram.UNK, Count: 5},
			{Word: 4, Count: 10},
		},
	}
	bigramCtx := &ngram.FloatLmState{
		History:  []ngram.Word{ngram.BOS},
		Total:    10,
		Discount: 2,
		Counts:   []ngram.FloatWordCount{{Word: 4, Count: 8}},
	}
	byOrder := [][]*ngram.FloatLmState{{unigram}, {bigramCtx}}
	m, err := evaluate.NewModel(byOrder)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m, byOrder
}

func TestWritePreARPAEmitsBOSAtConventionalProb(t *testing.T) {
	m, byOrder := buildModel(t)
	var buf bytes.Buffer
	if err := WritePreARPA(&buf, m, byOrder); err != nil {
		t.Fatalf("WritePreARPA: %v", err)
	}
	if !strings.Contains(buf.String(), "1 1 -99.000000\n") {
		t.Errorf("missing conventional <s> line in output:\n%s", buf.String())
	}
}

func TestWritePreARPAEmitsBackoffBookkeepingLine(t *testing.T) {
	m, byOrder := buildModel(t)
	var buf bytes.Buffer
	if err := WritePreARPA(&buf, m, byOrder); err != nil {
		t.Fatalf("WritePreARPA: %v", err)
	}
	// bigramCtx has History=[BOS], Discount=2, Total=10 -> bow = log10(0.2).
	want := "0 1 " // word sequence for context [BOS] is just "1"
	found := false
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, want) {
			found = true
			fields := strings.Fields(line)
			got, err := parseFloatField(fields[len(fields)-1])
			if err != nil {
				t.Fatalf("bad float in %q: %v", line, err)
			}
			if math.Abs(got-math.Log10(0.2)) > 1e-6 {
				t.Errorf("backoff = %g, want %g", got, math.Log10(0.2))
			}
		}
	}
	if !found {
		t.Errorf("no backoff bookkeeping line found in:\n%s", buf.String())
	}
}

func parseFloatField(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func TestWriteARPARoundTripsThroughSort(t *testing.T) {
	m, byOrder := buildModel(t)
	var pre bytes.Buffer
	if err := WritePreARPA(&pre, m, byOrder); err != nil {
		t.Fatalf("WritePreARPA: %v", err)
	}

	lines := strings.Split(strings.TrimRight(pre.String(), "\n"), "\n")
	sort.Strings(lines)
	sorted := strings.Join(lines, "\n") + "\n"

	vocab := map[ngram.Word]string{
		ngram.BOS: "<s>",
		ngram.EOS: "</s>",
		ngram.UNK: "<unk>",
		4:         "the",
	}

	var out bytes.Buffer
	if err := WriteARPA(strings.NewReader(sorted), &out, vocab, 2); err != nil {
		t.Fatalf("WriteARPA: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, `\data\`) || !strings.Contains(got, `\end\`) {
		t.Errorf("missing ARPA header/footer:\n%s", got)
	}
	if !strings.Contains(got, "ngram 1=") || !strings.Contains(got, "ngram 2=1") {
		t.Errorf("unexpected ngram count lines:\n%s", got)
	}
	if !strings.Contains(got, "-99.000000\t<s>") {
		t.Errorf("missing <s> unigram entry:\n%s", got)
	}
	// The <s> unigram line should carry the bigram context's backoff weight.
	wantBow := math.Log10(0.2)
	found := false
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "-99.000000\t<s>\t") {
			found = true
			fields := strings.Split(line, "\t")
			bow, err := parseFloatField(fields[2])
			if err != nil {
				t.Fatalf("bad backoff field %q: %v", fields[2], err)
			}
			if math.Abs(bow-wantBow) > 1e-6 {
				t.Errorf("<s> backoff = %g, want %g", bow, wantBow)
			}
		}
	}
	if !found {
		t.Errorf("<s> line missing merged backoff:\n%s", got)
	}
	if !strings.Contains(got, "the\n") && !strings.Contains(got, "\tthe\n") {
		t.Errorf("missing bigram entry for <s> the:\n%s", got)
	}
}

func TestWriteARPARejectsOrderOutOfRange(t *testing.T) {
	bad := "3 1 2 3 -1.000000\n"
	var out bytes.Buffer
	if err := WriteARPA(strings.NewReader(bad), &out, map[ngram.Word]string{}, 2); err == nil {
		t.Fatal("expected error for out-of-range order")
	}
}

func TestLoadVocabParsesIDTokenPairs(t *testing.T) {
	src := "1 <s>\n2 </s>\n3 <unk>\n4 the\n"
	vocab, err := LoadVocab(strings.NewReader(src))
	if err != nil {
		t.Fatalf("LoadVocab: %v", err)
	}
	if vocab[4] != "the" {
		t.Errorf("vocab[4] = %q, want %q", vocab[4], "the")
	}
	if len(vocab) != 4 {
		t.Errorf("len(vocab) = %d, want 4", len(vocab))
	}
}

func TestLoadVocabRejectsMalformedLine(t *testing.T) {
	_, err := LoadVocab(strings.NewReader("1 <s> extra\n"))
	if err == nil {
		t.Fatal("expected error for malformed vocab line")
	}
}
