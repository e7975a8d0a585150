package capture

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
)

func tableDelimiter(name string) rune {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tsv", ".tab":
		return '\t'
	default:
		return ','
	}
}

func decodeTable(name string, data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = tableDelimiter(name)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse table %s: %w", name, err)
	}
	return rows, nil
}

func encodeTable(name string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = tableDelimiter(name)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode table %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
