package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"fstash/internal/api"
)

func writeJSON(payload any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFileList(files []api.StoredFile) error {
	for _, f := range files {
		if err := writePlain("%6d  %-5s  %10s  %s  %s\n",
			f.ID, f.Type, formatSize(f.Size), f.Date, f.Name); err != nil {
			return err
		}
	}
	return nil
}

func writeStorageSummary(storage api.StorageInfo) error {
	return writePlain("storage: %s of %s used (%.1f%%)\n",
		formatSize(storage.Used), formatSize(storage.Total), storage.Percent)
}

func formatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

func formatCLIError(err error) []string {
	lines := []string{"error: " + err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "quota_exceeded":
			lines = append(lines, "hint: free space with 'fstash rm <id>' or raise max_total_bytes in the config")
		case "file_too_large":
			lines = append(lines, "hint: raise max_file_bytes in the config to allow larger files")
		case "not_found":
			lines = append(lines, "hint: 'fstash ls' shows the current file ids")
		}
	}
	return lines
}
