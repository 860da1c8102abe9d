package api

// DateLayout is the wire format for file dates.
const DateLayout = "2006-01-02 15:04:05"

// StoredFile is the wire representation of one catalog entry.
type StoredFile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Path string `json:"path"`
	Date string `json:"date"`
}

// StorageInfo is the usage snapshot returned with every mutating response.
type StorageInfo struct {
	Used    int64   `json:"used"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

// UploadResponse is the body of a successful POST /upload.
type UploadResponse struct {
	Success bool        `json:"success"`
	File    StoredFile  `json:"file"`
	Storage StorageInfo `json:"storage"`
}

// ListResponse is the body of GET /list.
type ListResponse struct {
	Success bool         `json:"success"`
	Files   []StoredFile `json:"files"`
	Storage StorageInfo  `json:"storage"`
}

// DeleteRequest is the body of DELETE /delete.
type DeleteRequest struct {
	ID int64 `json:"id"`
}

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Storage StorageInfo `json:"storage"`
}

// ReconcileResponse reports one reconciliation run.
type ReconcileResponse struct {
	DryRun          bool     `json:"dry_run"`
	OrphanBlobs     []string `json:"orphan_blobs"`
	MissingBlobs    []string `json:"missing_blobs"`
	LedgerBytes     int64    `json:"ledger_bytes"`
	CatalogBytes    int64    `json:"catalog_bytes"`
	RepairedLedger  bool     `json:"repaired_ledger"`
	DeletedOrphans  int      `json:"deleted_orphans"`
	FailedDeletions int      `json:"failed_deletions"`
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	DBPath        string         `json:"db_path"`
	SchemaVersion int            `json:"schema_version"`
	FileCounts    map[string]int `json:"file_counts"`
	TotalFiles    int            `json:"total_files"`
	Storage       StorageInfo    `json:"storage"`
}

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}
