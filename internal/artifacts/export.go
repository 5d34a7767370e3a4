package artifacts

import (
	"bytes"
	"encoding/csv"
	"strings"
)

var exportHeader = []string{
	"id", "name", "description", "domain", "artifact_type", "status", "version", "tags", "created_at", "updated_at",
}

// WriteCSV serializes artifacts for download. Tag lists are joined with
// semicolons so the row stays one CSV record.
func WriteCSV(list []Artifact) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, a := range list {
		description := ""
		if a.Description != nil {
			description = *a.Description
		}
		record := []string{
			a.ID.String(),
			a.Name,
			description,
			string(a.Domain),
			string(a.Type),
			string(a.Status),
			a.Version,
			strings.Join(a.Tags, ";"),
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			a.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
