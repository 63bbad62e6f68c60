package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"meshtranslator/internal/translator"
)

// LoadCSV reads a file with the header row id,username,password and returns
// its entries as a static repository in file order. The file is read once.
func LoadCSV(fs afero.Fs, path string) (*Static, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open csv file %s: %w", path, err)
	}
	defer file.Close()

	return parseCSV(file)
}

func parseCSV(r io.Reader) (*Static, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var entries []Entry
	seen := map[string]struct{}{}
	header := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read csv record: %w", err)
		}
		if header {
			header = false
			continue
		}

		id := strings.TrimSpace(record[0])
		if id == "" {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("empty subject id in line %d", line)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate subject id %q", id)
		}
		seen[id] = struct{}{}
		entries = append(entries, Entry{
			SubjectID:  id,
			Credential: translator.Credential{Username: record[1], Password: record[2]},
		})
	}

	return NewOrdered(entries), nil
}
