package lotledger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindLedger returns the unique ledger matching the name.
// If the query is meant to match all ledgers and the list is empty it returns
// an empty default ledger. In any other case it returns an error.
func FindLedger(path, query string) (*Ledger, error) {
	ledgerPaths, err := findLedgerPaths(path, query)
	if err != nil {
		return nil, err
	}
	switch len(ledgerPaths) {
	case 0:
		// nothing found, return an error by default unless the query was ""
		if query == "" {
			l := NewLedger()
			l.name = "lots"
			return l, nil
		}
		return nil, fmt.Errorf("could not find ledger %q", query)
	case 1:
		return loadLedgerFile(path, ledgerPaths[0])
	default:
		return nil, fmt.Errorf("multiple ledgers found for %q", query)
	}
}

// FindLedgers discovers and loads ledger files from a given base path.
// If query is empty, all ledgers (.jsonl files) in the path are loaded.
// A ledger name is its relative path from the base path, without the .jsonl
// extension.
func FindLedgers(path, query string) ([]*Ledger, error) {
	ledgerPaths, err := findLedgerPaths(path, query)
	if err != nil {
		return nil, err
	}

	var loadedLedgers []*Ledger
	for _, fullPath := range ledgerPaths {
		ledger, err := loadLedgerFile(path, fullPath)
		if err != nil {
			return nil, err
		}
		loadedLedgers = append(loadedLedgers, ledger)
	}
	return loadedLedgers, nil
}

// loadLedgerFile opens, decodes, and initializes a ledger from a given file
// path. It sets the ledger's name based on its relative path to the base path.
func loadLedgerFile(basePath, fullPath string) (*Ledger, error) {
	relPath, err := filepath.Rel(basePath, fullPath)
	if err != nil {
		return nil, fmt.Errorf("could not determine relative path for %q: %w", fullPath, err)
	}
	ledgerName := strings.TrimSuffix(relPath, ".jsonl")

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("could not open ledger file %q: %w", fullPath, err)
	}
	defer f.Close()

	ledger, err := DecodeLedger(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode ledger file %q: %w", fullPath, err)
	}
	ledger.name = ledgerName
	return ledger, nil
}

// SaveLedger writes a ledger back to its file under the base path. The write
// goes through a temporary file and a rename, so a crash mid-save never
// leaves a truncated ledger behind.
func SaveLedger(path string, ledger *Ledger) error {
	ledgerName := ledger.Name()
	if ledgerName == "" {
		return fmt.Errorf("cannot save ledger with an empty name")
	}

	filePath := filepath.Join(path, ledgerName+".jsonl")
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("could not create directory for ledger %q: %w", filePath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("error opening ledger file %q for writing: %w", filePath, err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeLedger(tmp, ledger); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

// findLedgerPaths scans a directory and returns the full paths of ledger
// files matching the query.
func findLedgerPaths(path, query string) ([]string, error) {
	var ledgers []string

	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".jsonl") {
			relPath, err := filepath.Rel(path, p)
			if err != nil {
				return err
			}
			ledgerName := strings.TrimSuffix(relPath, ".jsonl")
			// rudimentary matching, exact name or everything
			if query == "" || ledgerName == query {
				ledgers = append(ledgers, p)
			}
		}
		return nil
	})
	return ledgers, err
}
