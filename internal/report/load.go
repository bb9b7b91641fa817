package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Load reads and validates a persisted report.
func Load(path string) (*Report, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if err := ValidateJSON(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// LoadTraces reads a zstd JSON-lines trace sidecar.
func LoadTraces(path string) ([]OutcomeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open traces: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("open traces: %w", err)
	}
	defer dec.Close()

	var traces []OutcomeRecord
	jdec := json.NewDecoder(dec)
	for {
		var t OutcomeRecord
		err := jdec.Decode(&t)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode traces: %w", err)
		}
		traces = append(traces, t)
	}
	return traces, nil
}

// AttachTraces puts trace records back onto the phases they came from.
func (r *Report) AttachTraces(traces []OutcomeRecord) {
	byPhase := make(map[string][]OutcomeRecord)
	for _, t := range traces {
		byPhase[t.Phase] = append(byPhase[t.Phase], t)
	}
	for _, sr := range r.Scenarios {
		for i := range sr.Phases {
			sr.Phases[i].Outcomes = byPhase[sr.Phases[i].Name]
		}
	}
}
