// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes a project's articles as JSON Lines, a JSON array,
// CSV, or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pms/pkg/types"
)

// Format names an export file format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
)

// Formats lists the supported formats in help-text order.
var Formats = []Format{FormatJSONL, FormatJSON, FormatCSV, FormatYAML}

// csvHeader is the column order of CSV exports.
var csvHeader = []string{"pmid", "title", "abstract", "doi", "publication_date", "journal", "authors", "keywords"}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (want jsonl, json, csv, or yaml)", s)
}

// Write encodes articles to w in the given format.
func Write(w io.Writer, format Format, articles []types.Article) error {
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, a := range articles {
			if err := enc.Encode(a); err != nil {
				return fmt.Errorf("encoding article %s: %w", a.PMID, err)
			}
		}
		return nil
	case FormatJSON:
		if articles == nil {
			articles = []types.Article{}
		}
		data, err := json.MarshalIndent(articles, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatCSV:
		return writeCSV(w, articles)
	case FormatYAML:
		data, err := yaml.Marshal(articles)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile writes articles to path, creating parent directories.
func WriteFile(path string, format Format, articles []types.Article) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, format, articles); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, articles []types.Article) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, a := range articles {
		var date string
		if a.PublicationDate != nil {
			date = a.PublicationDate.Format("2006-01-02")
		}
		row := []string{
			a.PMID,
			a.Title,
			a.Abstract,
			types.Value(a.DOI),
			date,
			types.Value(a.Journal),
			authorList(a.Authors),
			strings.Join(a.Keywords, "; "),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %s: %w", a.PMID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// authorList renders authors as "Last, Fore; Last, Fore".
func authorList(authors []types.Author) string {
	names := make([]string, len(authors))
	for i, au := range authors {
		names[i] = au.LastName
		if fore := types.Value(au.ForeName); fore != "" {
			names[i] += ", " + fore
		}
	}
	return strings.Join(names, "; ")
}
