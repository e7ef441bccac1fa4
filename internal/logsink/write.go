package logsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const ResultsFile = "results.jsonl"

// Record is one found principal. The raw private key is deliberately absent;
// the mnemonic regenerates it.
type Record struct {
	Principal      string    `json:"principal"`
	Mnemonic       string    `json:"mnemonic"`
	Prefix         string    `json:"prefix"`
	Iterations     uint64    `json:"iterations"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	FoundAt        time.Time `json:"found_at"`
}

func WriteResult(dir string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return AppendJSONL(filepath.Join(dir, ResultsFile), b)
}

func AppendJSONL(path string, jsonBlob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := OpenAppend(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(jsonBlob, '\n')); err != nil {
		return err
	}
	return nil
}
