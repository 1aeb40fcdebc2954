package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abm-sim/abm-sim/sim/trace"
)

// writeTrace writes one JSON execution record per line. Paths ending in
// .zst are zstd-compressed.
func writeTrace(path string, tr *trace.SimulationTrace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return encodeTrace(f, strings.HasSuffix(path, ".zst"), tr)
}

// encodeTrace writes tr to dst. With compress set, the zstd frame is closed
// before returning and its error is reported.
func encodeTrace(dst io.Writer, compress bool, tr *trace.SimulationTrace) (err error) {
	if compress {
		zw, zerr := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zerr != nil {
			return fmt.Errorf("creating zstd encoder: %w", zerr)
		}
		defer func() {
			if cerr := zw.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("closing zstd stream: %w", cerr)
			}
		}()
		dst = zw
	}

	w := bufio.NewWriterSize(dst, 128*1024)
	enc := json.NewEncoder(w)
	for _, r := range tr.Records() {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding trace record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing trace: %w", err)
	}
	return nil
}

// readTrace loads a trace written by writeTrace.
func readTrace(path string) (*trace.SimulationTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelExecutions})
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r trace.ExecutionRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decoding trace record: %w", err)
		}
		tr.RecordExecution(r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}
	return tr, nil
}

// writeMetrics writes the Prometheus text exposition of g to path.
func writeMetrics(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
