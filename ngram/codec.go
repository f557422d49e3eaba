package ngram

import (
	"encoding/binary"
	"fmt"
	"io"
)

// This file implements the binary record format from spec §6. Every
// integer field is a little-endian int32, every float field a
// little-endian float32 (IEEE-754 binary32); there is no framing beyond
// what each record type encodes itself.

func writeI32(w io.Writer, v int32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeF32(w io.Writer, v float32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readI32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readF32(r io.Reader) (float32, error) {
	var v float32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// WriteTo encodes s as:
//   [-discount:i32, hist_size:i32, num_counts:i32, history..., counts...]
// if Discount > 0, or the same without the leading discount field if
// Discount == 0 (the reader distinguishes the two forms by the sign of the
// first integer it reads).
func (s *IntLmState) WriteTo(w io.Writer) error {
	if s.Discount > 0 {
		if err := writeI32(w, -s.Discount); err != nil {
			return fmt.Errorf("ngram: write IntLmState discount: %w", err)
		}
	}
	if err := writeI32(w, int32(len(s.History))); err != nil {
		return fmt.Errorf("ngram: write IntLmState hist_size: %w", err)
	}
	if err := writeI32(w, int32(len(s.Counts))); err != nil {
		return fmt.Errorf("ngram: write IntLmState num_counts: %w", err)
	}
	for _, h := range s.History {
		if err := writeI32(w, int32(h)); err != nil {
			return fmt.Errorf("ngram: write IntLmState history word: %w", err)
		}
	}
	for _, wc := range s.Counts {
		if err := writeI32(w, int32(wc.Word)); err != nil {
			return fmt.Errorf("ngram: write IntLmState count word: %w", err)
		}
		if err := writeI32(w, wc.Count); err != nil {
			return fmt.Errorf("ngram: write IntLmState count value: %w", err)
		}
	}
	return nil
}

// readFrom decodes an IntLmState written by WriteTo. first is the value
// already read to decide whether a record is present at all (see
// ReadIntLmState); pass it in so callers doing peek-ahead don't need to
// re-read it.
func (s *IntLmState) readFrom(r io.Reader, first int32) error {
	var histSize, numCounts int32
	if first < 0 {
		s.Discount = -first
		var err error
		if histSize, err = readI32(r); err != nil {
			return fmt.Errorf("ngram: read IntLmState hist_size: %w", err)
		}
	} else {
		s.Discount = 0
		histSize = first
	}
	numCounts, err := readI32(r)
	if err != nil {
		return fmt.Errorf("ngram: read IntLmState num_counts: %w", err)
	}
	s.History = make([]Word, histSize)
	for i := range s.History {
		v, err := readI32(r)
		if err != nil {
			return fmt.Errorf("ngram: read IntLmState history word %d: %w", i, err)
		}
		s.History[i] = Word(v)
	}
	s.Counts = make([]WordCount, numCounts)
	for i := range s.Counts {
		w, err := readI32(r)
		if err != nil {
			return fmt.Errorf("ngram: read IntLmState count word %d: %w", i, err)
		}
		c, err := readI32(r)
		if err != nil {
			return fmt.Errorf("ngram: read IntLmState count value %d: %w", i, err)
		}
		s.Counts[i] = WordCount{Word: Word(w), Count: c}
	}
	return nil
}

// ReadIntLmState reads a single IntLmState from r. It returns io.EOF
// (unwrapped) if r is at end of stream before any bytes of a new record
// are read; any other short read is a wrapped io.ErrUnexpectedEOF.
func ReadIntLmState(r io.Reader) (*IntLmState, error) {
	first, err := readI32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read IntLmState leading field: %w", err)
	}
	s := &IntLmState{}
	if err := s.readFrom(r, first); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies the invariants from spec §3/§8 that apply at decode time.
func (s *IntLmState) Check() error {
	if err := checkHistory(s.History); err != nil {
		return fmt.Errorf("ngram: IntLmState: %w", err)
	}
	if s.Discount < 0 {
		return fmt.Errorf("ngram: IntLmState: negative discount %d", s.Discount)
	}
	var prev Word = -1
	for _, wc := range s.Counts {
		if err := checkPredicted(wc.Word); err != nil {
			return fmt.Errorf("ngram: IntLmState: %w", err)
		}
		if wc.Word <= prev {
			return fmt.Errorf("ngram: IntLmState: counts not strictly sorted at word %d", wc.Word)
		}
		if wc.Count < 1 {
			return fmt.Errorf("ngram: IntLmState: non-positive count %d for word %d", wc.Count, wc.Word)
		}
		prev = wc.Word
	}
	return nil
}

// WriteTo encodes s as:
//   [hist_size:i32, num_counts:i32, total:f32, discount:f32, history..., counts...]
func (s *FloatLmState) WriteTo(w io.Writer) error {
	if err := writeI32(w, int32(len(s.History))); err != nil {
		return fmt.Errorf("ngram: write FloatLmState hist_size: %w", err)
	}
	if err := writeI32(w, int32(len(s.Counts))); err != nil {
		return fmt.Errorf("ngram: write FloatLmState num_counts: %w", err)
	}
	if err := writeF32(w, s.Total); err != nil {
		return fmt.Errorf("ngram: write FloatLmState total: %w", err)
	}
	if err := writeF32(w, s.Discount); err != nil {
		return fmt.Errorf("ngram: write FloatLmState discount: %w", err)
	}
	for _, h := range s.History {
		if err := writeI32(w, int32(h)); err != nil {
			return fmt.Errorf("ngram: write FloatLmState history word: %w", err)
		}
	}
	for _, wc := range s.Counts {
		if err := writeI32(w, int32(wc.Word)); err != nil {
			return fmt.Errorf("ngram: write FloatLmState count word: %w", err)
		}
		if err := writeF32(w, wc.Count); err != nil {
			return fmt.Errorf("ngram: write FloatLmState count value: %w", err)
		}
	}
	return nil
}

// ReadFloatLmState reads a single FloatLmState from r.
func ReadFloatLmState(r io.Reader) (*FloatLmState, error) {
	histSize, err := readI32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read FloatLmState hist_size: %w", err)
	}
	numCounts, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: read FloatLmState num_counts: %w", err)
	}
	s := &FloatLmState{}
	if s.Total, err = readF32(r); err != nil {
		return nil, fmt.Errorf("ngram: read FloatLmState total: %w", err)
	}
	if s.Discount, err = readF32(r); err != nil {
		return nil, fmt.Errorf("ngram: read FloatLmState discount: %w", err)
	}
	if histSize != 0 {
		s.History = make([]Word, histSize)
	}
	for i := range s.History {
		v, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read FloatLmState history word %d: %w", i, err)
		}
		s.History[i] = Word(v)
	}
	s.Counts = make([]FloatWordCount, numCounts)
	for i := range s.Counts {
		w, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read FloatLmState count word %d: %w", i, err)
		}
		c, err := readF32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read FloatLmState count value %d: %w", i, err)
		}
		s.Counts[i] = FloatWordCount{Word: Word(w), Count: c}
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies the invariants from spec §3/§8 that apply at decode time.
func (s *FloatLmState) Check() error {
	if err := checkHistory(s.History); err != nil {
		return fmt.Errorf("ngram: FloatLmState: %w", err)
	}
	if s.Discount < 0 {
		return fmt.Errorf("ngram: FloatLmState: negative discount %g", s.Discount)
	}
	sum := s.Discount
	var prev Word = -1
	for _, wc := range s.Counts {
		if err := checkPredicted(wc.Word); err != nil {
			return fmt.Errorf("ngram: FloatLmState: %w", err)
		}
		if wc.Word <= prev {
			return fmt.Errorf("ngram: FloatLmState: counts not strictly sorted at word %d", wc.Word)
		}
		if wc.Count < 0 {
			return fmt.Errorf("ngram: FloatLmState: negative count %g for word %d", wc.Count, wc.Word)
		}
		sum += wc.Count
		prev = wc.Word
	}
	tol := float32(1e-4) * abs32(s.Total)
	if abs32(s.Total-sum) > tol && abs32(s.Total) > 1e-6 {
		return fmt.Errorf("ngram: FloatLmState: total=%g drifts from discount+Σcounts=%g by more than 1e-4 relative", s.Total, sum)
	}
	return nil
}

// WriteTo encodes s as:
//   [discount:f32, hist_size:i32, num_counts:i32, history..., counts...]
// where each Count serializes as four consecutive f32 (total, top1, top2, top3).
func (s *GeneralLmState) WriteTo(w io.Writer) error {
	if err := writeF32(w, s.Discount); err != nil {
		return fmt.Errorf("ngram: write GeneralLmState discount: %w", err)
	}
	if err := writeI32(w, int32(len(s.History))); err != nil {
		return fmt.Errorf("ngram: write GeneralLmState hist_size: %w", err)
	}
	if err := writeI32(w, int32(len(s.Counts))); err != nil {
		return fmt.Errorf("ngram: write GeneralLmState num_counts: %w", err)
	}
	for _, h := range s.History {
		if err := writeI32(w, int32(h)); err != nil {
			return fmt.Errorf("ngram: write GeneralLmState history word: %w", err)
		}
	}
	for _, wc := range s.Counts {
		if err := writeI32(w, int32(wc.Word)); err != nil {
			return fmt.Errorf("ngram: write GeneralLmState count word: %w", err)
		}
		if err := writeCount(w, wc.Count); err != nil {
			return fmt.Errorf("ngram: write GeneralLmState count value: %w", err)
		}
	}
	return nil
}

func writeCount(w io.Writer, c Count) error {
	for _, v := range [4]float32{c.Total, c.Top1, c.Top2, c.Top3} {
		if err := writeF32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readCount(r io.Reader) (Count, error) {
	var vals [4]float32
	for i := range vals {
		v, err := readF32(r)
		if err != nil {
			return Count{}, err
		}
		vals[i] = v
	}
	return Count{Total: vals[0], Top1: vals[1], Top2: vals[2], Top3: vals[3]}, nil
}

// ReadGeneralLmState reads a single GeneralLmState from r.
func ReadGeneralLmState(r io.Reader) (*GeneralLmState, error) {
	discount, err := readF32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read GeneralLmState discount: %w", err)
	}
	histSize, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: read GeneralLmState hist_size: %w", err)
	}
	numCounts, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: read GeneralLmState num_counts: %w", err)
	}
	s := &GeneralLmState{Discount: discount}
	s.History = make([]Word, histSize)
	for i := range s.History {
		v, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read GeneralLmState history word %d: %w", i, err)
		}
		s.History[i] = Word(v)
	}
	s.Counts = make([]WordGeneralCount, numCounts)
	for i := range s.Counts {
		w, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read GeneralLmState count word %d: %w", i, err)
		}
		c, err := readCount(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read GeneralLmState count value %d: %w", i, err)
		}
		s.Counts[i] = WordGeneralCount{Word: Word(w), Count: c}
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies the invariants from spec §3/§8 that apply at decode time.
func (s *GeneralLmState) Check() error {
	if err := checkHistory(s.History); err != nil {
		return fmt.Errorf("ngram: GeneralLmState: %w", err)
	}
	if s.Discount < 0 {
		return fmt.Errorf("ngram: GeneralLmState: negative discount %g", s.Discount)
	}
	var prev Word = -1
	for _, wc := range s.Counts {
		if err := checkPredicted(wc.Word); err != nil {
			return fmt.Errorf("ngram: GeneralLmState: %w", err)
		}
		if wc.Word <= prev {
			return fmt.Errorf("ngram: GeneralLmState: counts not strictly sorted at word %d", wc.Word)
		}
		if err := wc.Count.Check(); err != nil {
			return fmt.Errorf("ngram: GeneralLmState: word %d: %w", wc.Word, err)
		}
		prev = wc.Word
	}
	return nil
}

// WriteTo encodes s as: [hist_size:i32, num_predicted:i32, history..., predicted...]
func (s *NullLmState) WriteTo(w io.Writer) error {
	if err := writeI32(w, int32(len(s.History))); err != nil {
		return fmt.Errorf("ngram: write NullLmState hist_size: %w", err)
	}
	if err := writeI32(w, int32(len(s.Predicted))); err != nil {
		return fmt.Errorf("ngram: write NullLmState num_predicted: %w", err)
	}
	for _, h := range s.History {
		if err := writeI32(w, int32(h)); err != nil {
			return fmt.Errorf("ngram: write NullLmState history word: %w", err)
		}
	}
	for _, p := range s.Predicted {
		if err := writeI32(w, int32(p)); err != nil {
			return fmt.Errorf("ngram: write NullLmState predicted word: %w", err)
		}
	}
	return nil
}

// ReadNullLmState reads a single NullLmState from r.
func ReadNullLmState(r io.Reader) (*NullLmState, error) {
	histSize, err := readI32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read NullLmState hist_size: %w", err)
	}
	numPredicted, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: read NullLmState num_predicted: %w", err)
	}
	s := &NullLmState{}
	s.History = make([]Word, histSize)
	for i := range s.History {
		v, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read NullLmState history word %d: %w", i, err)
		}
		s.History[i] = Word(v)
	}
	s.Predicted = make([]Word, numPredicted)
	for i := range s.Predicted {
		v, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("ngram: read NullLmState predicted word %d: %w", i, err)
		}
		s.Predicted[i] = Word(v)
	}
	return s, nil
}

// WriteTo encodes the "body-only" derivative form: num_counts (as a
// verification int) followed by discount_deriv and the count derivatives.
// History is deliberately not written; derivative streams are always
// consumed in lock-step with the base record stream they differentiate.
func (d *FloatLmStateDerivs) WriteTo(w io.Writer) error {
	if err := writeI32(w, int32(len(d.CountDerivs))); err != nil {
		return fmt.Errorf("ngram: write FloatLmStateDerivs num_counts: %w", err)
	}
	if err := writeF32(w, d.DiscountDeriv); err != nil {
		return fmt.Errorf("ngram: write FloatLmStateDerivs discount_deriv: %w", err)
	}
	for _, v := range d.CountDerivs {
		if err := writeF32(w, v); err != nil {
			return fmt.Errorf("ngram: write FloatLmStateDerivs count_deriv: %w", err)
		}
	}
	return nil
}

// ReadFloatLmStateDerivs reads a body-only FloatLmStateDerivs record.
// wantCounts, if >= 0, is checked against the encoded verification int.
func ReadFloatLmStateDerivs(r io.Reader, wantCounts int) (*FloatLmStateDerivs, error) {
	n, err := readI32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read FloatLmStateDerivs num_counts: %w", err)
	}
	if wantCounts >= 0 && int(n) != wantCounts {
		return nil, fmt.Errorf("ngram: FloatLmStateDerivs count mismatch: file has %d, expected %d (record/derivative stream desync)", n, wantCounts)
	}
	d := &FloatLmStateDerivs{}
	if d.DiscountDeriv, err = readF32(r); err != nil {
		return nil, fmt.Errorf("ngram: read FloatLmStateDerivs discount_deriv: %w", err)
	}
	d.CountDerivs = make([]float32, n)
	for i := range d.CountDerivs {
		if d.CountDerivs[i], err = readF32(r); err != nil {
			return nil, fmt.Errorf("ngram: read FloatLmStateDerivs count_deriv %d: %w", i, err)
		}
	}
	return d, nil
}

// WriteTo encodes the body-only derivative form of a GeneralLmState: a
// verification count followed by discount_deriv and the per-word Count
// derivatives (each four f32, same layout writeCount uses).
func (d *GeneralLmStateDerivs) WriteTo(w io.Writer) error {
	if err := writeI32(w, int32(len(d.CountDerivs))); err != nil {
		return fmt.Errorf("ngram: write GeneralLmStateDerivs num_counts: %w", err)
	}
	if err := writeF32(w, d.DiscountDeriv); err != nil {
		return fmt.Errorf("ngram: write GeneralLmStateDerivs discount_deriv: %w", err)
	}
	for _, c := range d.CountDerivs {
		if err := writeCount(w, c); err != nil {
			return fmt.Errorf("ngram: write GeneralLmStateDerivs count_deriv: %w", err)
		}
	}
	return nil
}

// ReadGeneralLmStateDerivs reads a body-only GeneralLmStateDerivs record.
// wantCounts, if >= 0, is checked against the encoded verification int.
func ReadGeneralLmStateDerivs(r io.Reader, wantCounts int) (*GeneralLmStateDerivs, error) {
	n, err := readI32(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ngram: read GeneralLmStateDerivs num_counts: %w", err)
	}
	if wantCounts >= 0 && int(n) != wantCounts {
		return nil, fmt.Errorf("ngram: GeneralLmStateDerivs count mismatch: file has %d, expected %d (record/derivative stream desync)", n, wantCounts)
	}
	d := &GeneralLmStateDerivs{}
	if d.DiscountDeriv, err = readF32(r); err != nil {
		return nil, fmt.Errorf("ngram: read GeneralLmStateDerivs discount_deriv: %w", err)
	}
	d.CountDerivs = make([]Count, n)
	for i := range d.CountDerivs {
		if d.CountDerivs[i], err = readCount(r); err != nil {
			return nil, fmt.Errorf("ngram: read GeneralLmStateDerivs count_deriv %d: %w", i, err)
		}
	}
	return d, nil
}

// ReadAllIntLmStates reads records from r until io.EOF, returning everything
// seen. It exists because most stage binaries need a stream's full contents
// in memory (to group, sort, or random-access it) rather than one record at
// a time.
func ReadAllIntLmStates(r io.Reader) ([]*IntLmState, error) {
	var out []*IntLmState
	for {
		s, err := ReadIntLmState(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// ReadAllFloatLmStates reads records from r until io.EOF.
func ReadAllFloatLmStates(r io.Reader) ([]*FloatLmState, error) {
	var out []*FloatLmState
	for {
		s, err := ReadFloatLmState(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// ReadAllGeneralLmStates reads records from r until io.EOF.
func ReadAllGeneralLmStates(r io.Reader) ([]*GeneralLmState, error) {
	var out []*GeneralLmState
	for {
		s, err := ReadGeneralLmState(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// ReadAllNullLmStates reads records from r until io.EOF.
func ReadAllNullLmStates(r io.Reader) ([]*NullLmState, error) {
	var out []*NullLmState
	for {
		s, err := ReadNullLmState(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// WriteAllIntLmStates writes every record in states to w via WriteTo, stopping at the
// first error.
func WriteAllIntLmStates(w io.Writer, states []*IntLmState) error {
	for _, s := range states {
		if err := s.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteAllFloatLmStates writes every record in states to w via WriteTo.
func WriteAllFloatLmStates(w io.Writer, states []*FloatLmState) error {
	for _, s := range states {
		if err := s.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteAllGeneralLmStates writes every record in states to w via WriteTo.
func WriteAllGeneralLmStates(w io.Writer, states []*GeneralLmState) error {
	for _, s := range states {
		if err := s.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteAllNullLmStates writes every record in states to w via WriteTo.
func WriteAllNullLmStates(w io.Writer, states []*NullLmState) error {
	for _, s := range states {
		if err := s.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

func checkHistory(h []Word) error {
	for _, w := range h {
		if w <= 0 {
			return fmt.Errorf("non-positive history word %d", w)
		}
		if w == EOS {
			return fmt.Errorf("</s> found in history")
		}
	}
	return nil
}

func checkPredicted(w Word) error {
	if w <= 0 {
		return fmt.Errorf("non-positive predicted word %d", w)
	}
	if w == BOS {
		return fmt.Errorf("<s> predicted")
	}
	return nil
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
