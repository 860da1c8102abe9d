package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fstash/internal/blobstore"
	"fstash/internal/models"
	"fstash/internal/store"
)

const storageKeyMaxAttempts = 5

// Quota holds the storage limits the coordinator enforces.
type Quota struct {
	MaxTotalBytes int64
	MaxFileBytes  int64
}

// Usage is a point-in-time snapshot of ledger usage against the total quota.
type Usage struct {
	UsedBytes  int64
	TotalBytes int64
	Percent    float64
}

func usageFor(used, total int64) Usage {
	u := Usage{UsedBytes: used, TotalBytes: total}
	if total > 0 {
		u.Percent = float64(used) / float64(total) * 100
	}
	return u
}

// StorageService coordinates the blob store, the catalog, and the usage
// ledger so that every externally visible mutation leaves the three in
// agreement or compensates on the way out.
type StorageService struct {
	store  *store.Store
	blobs  blobstore.BlobStore
	quota  Quota
	logger *slog.Logger
}

// NewStorageService creates the storage coordinator.
func NewStorageService(st *store.Store, blobs blobstore.BlobStore, quota Quota, logger *slog.Logger) *StorageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageService{store: st, blobs: blobs, quota: quota, logger: logger}
}

// Quota returns the configured limits.
func (s *StorageService) Quota() Quota {
	return s.quota
}

// IngestInput describes one incoming file.
type IngestInput struct {
	Name         string
	DeclaredSize int64
	Content      io.Reader
}

// Ingest admits one file: quota checks, blob write, then the catalog and
// ledger update in a single transaction. The blob write happens before the
// catalog insert, so any failure after it deletes the just-written blob.
func (s *StorageService) Ingest(ctx context.Context, in IngestInput) (models.FileRecord, Usage, error) {
	var record models.FileRecord

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return record, Usage{}, badRequestCode(fmt.Errorf("file name is required"), ErrCodeMissingFile)
	}
	if in.Content == nil {
		return record, Usage{}, badRequestCode(fmt.Errorf("file content is required"), ErrCodeMissingFile)
	}
	if in.DeclaredSize < 0 {
		return record, Usage{}, badRequest(fmt.Errorf("declared size must be >= 0"))
	}
	if in.DeclaredSize > s.quota.MaxFileBytes {
		return record, Usage{}, fileTooLarge(s.quota.MaxFileBytes)
	}

	// Cheap pre-check on the declared size. The authoritative check runs
	// inside the catalog transaction after the true size is known.
	used, err := s.store.UsageBytes(ctx)
	if err != nil {
		return record, Usage{}, storeFailure(err)
	}
	if s.quota.MaxTotalBytes > 0 && used+in.DeclaredSize > s.quota.MaxTotalBytes {
		return record, Usage{}, quotaExceeded(used, s.quota.MaxTotalBytes)
	}

	key, err := s.newStorageKey(ctx, name)
	if err != nil {
		return record, Usage{}, storageWriteFailed(err)
	}

	// Cap the copy one byte past the limit so oversized content is detected
	// without reading it to the end.
	written, err := s.blobs.Put(ctx, key, io.LimitReader(in.Content, s.quota.MaxFileBytes+1))
	if err != nil {
		return record, Usage{}, storageWriteFailed(err)
	}
	if written > s.quota.MaxFileBytes {
		s.deleteBlobOrWarn(ctx, key, "oversized upload")
		return record, Usage{}, fileTooLarge(s.quota.MaxFileBytes)
	}

	record = models.FileRecord{
		Name:       name,
		Kind:       models.KindFromFilename(name),
		SizeBytes:  written,
		StorageKey: key,
		CreatedAt:  time.Now().UTC(),
	}

	usedAfter, err := s.store.CreateFileWithQuota(ctx, &record, s.quota.MaxTotalBytes)
	if err != nil {
		s.deleteBlobOrWarn(ctx, key, "failed catalog insert")
		if errors.Is(err, store.ErrQuotaExceeded) {
			return models.FileRecord{}, Usage{}, quotaExceeded(used, s.quota.MaxTotalBytes)
		}
		return models.FileRecord{}, Usage{}, catalogWriteFailed(err)
	}

	s.logger.Info("file ingested",
		"id", record.ID, "name", record.Name, "kind", record.Kind,
		"size_bytes", record.SizeBytes, "storage_key", record.StorageKey,
		"used_bytes", usedAfter)

	return record, usageFor(usedAfter, s.quota.MaxTotalBytes), nil
}

// List returns catalog entries newest first, optionally filtered by kind.
// The filter accepts "", "all", or one of the file kinds; anything else is
// rejected.
func (s *StorageService) List(ctx context.Context, filter string) ([]models.FileRecord, Usage, error) {
	var kind models.FileKind
	switch trimmed := strings.TrimSpace(filter); trimmed {
	case "", "all":
	default:
		parsed, err := models.ParseFileKind(trimmed)
		if err != nil {
			return nil, Usage{}, invalidFilter(trimmed)
		}
		kind = parsed
	}

	records, err := s.store.QueryFiles(ctx, kind)
	if err != nil {
		return nil, Usage{}, storeFailure(err)
	}
	used, err := s.store.UsageBytes(ctx)
	if err != nil {
		return nil, Usage{}, storeFailure(err)
	}
	return records, usageFor(used, s.quota.MaxTotalBytes), nil
}

// Evict removes one file: blob first, then the catalog row and ledger update
// in a single transaction. A blob that is already gone is logged and
// tolerated so a half-finished eviction can be retried.
func (s *StorageService) Evict(ctx context.Context, id int64) (models.FileRecord, Usage, error) {
	record, err := s.store.GetFile(ctx, id)
	if err != nil {
		return models.FileRecord{}, Usage{}, storeFailure(err)
	}
	if record == nil {
		return models.FileRecord{}, Usage{}, fileNotFound()
	}

	exists, err := s.blobs.Exists(ctx, record.StorageKey)
	if err != nil {
		return models.FileRecord{}, Usage{}, blobDeleteFailed(err)
	}
	if !exists {
		s.logger.Warn("blob already missing during evict", "id", id, "storage_key", record.StorageKey)
	} else if err := s.blobs.Delete(ctx, record.StorageKey); err != nil {
		return models.FileRecord{}, Usage{}, blobDeleteFailed(fmt.Errorf("blob %s: %w", record.StorageKey, err))
	}

	deleted, usedAfter, found, err := s.store.DeleteFileWithUsage(ctx, id)
	if err != nil {
		// The blob is gone but the catalog row survived. Reconcile repairs
		// this once the row is removed manually or the delete is retried.
		return models.FileRecord{}, Usage{}, inconsistencyDetected(fmt.Errorf("blob removed but catalog update failed: %w", err))
	}
	if !found {
		return models.FileRecord{}, Usage{}, fileNotFound()
	}

	s.logger.Info("file evicted",
		"id", deleted.ID, "name", deleted.Name, "size_bytes", deleted.SizeBytes,
		"used_bytes", usedAfter)

	return *deleted, usageFor(usedAfter, s.quota.MaxTotalBytes), nil
}

// OpenContent looks up a catalog entry by storage key and opens its blob.
func (s *StorageService) OpenContent(ctx context.Context, storageKey string) (io.ReadCloser, *models.FileRecord, error) {
	record, err := s.store.GetFileByStorageKey(ctx, storageKey)
	if err != nil {
		return nil, nil, storeFailure(err)
	}
	if record == nil {
		return nil, nil, contentNotFound()
	}
	rc, err := s.blobs.Open(ctx, record.StorageKey)
	if err != nil {
		return nil, nil, contentNotFound()
	}
	return rc, record, nil
}

// CurrentUsage reads the ledger.
func (s *StorageService) CurrentUsage(ctx context.Context) (Usage, error) {
	used, err := s.store.UsageBytes(ctx)
	if err != nil {
		return Usage{}, storeFailure(err)
	}
	return usageFor(used, s.quota.MaxTotalBytes), nil
}

// ReconcileResult reports one maintenance sweep over the three stores.
type ReconcileResult struct {
	DryRun          bool     `json:"dry_run"`
	OrphanBlobs     []string `json:"orphan_blobs"`
	MissingBlobs    []string `json:"missing_blobs"`
	LedgerBytes     int64    `json:"ledger_bytes"`
	CatalogBytes    int64    `json:"catalog_bytes"`
	RepairedLedger  bool     `json:"repaired_ledger"`
	DeletedOrphans  int      `json:"deleted_orphans"`
	FailedDeletions int      `json:"failed_deletions"`
}

// Reconcile compares the blob store, the catalog, and the ledger. Orphan
// blobs (on disk, not in the catalog) are deleted when apply is true. The
// ledger is reset to the catalog sum when the two drift apart. Catalog rows
// whose blob is missing are reported only; their content cannot be
// recovered here.
func (s *StorageService) Reconcile(ctx context.Context, apply bool) (ReconcileResult, error) {
	result := ReconcileResult{
		DryRun:       !apply,
		OrphanBlobs:  []string{},
		MissingBlobs: []string{},
	}

	blobKeys, err := s.blobs.Keys(ctx)
	if err != nil {
		return result, internalError(fmt.Errorf("list blobs: %w", err))
	}
	catalogKeys, err := s.store.ListStorageKeys(ctx)
	if err != nil {
		return result, storeFailure(err)
	}

	known := make(map[string]bool, len(catalogKeys))
	for _, key := range catalogKeys {
		known[key] = true
	}
	blobSet := make(map[string]bool, len(blobKeys))
	for _, key := range blobKeys {
		blobSet[key] = true
		if !known[key] {
			result.OrphanBlobs = append(result.OrphanBlobs, key)
		}
	}
	for _, key := range catalogKeys {
		if !blobSet[key] {
			result.MissingBlobs = append(result.MissingBlobs, key)
		}
	}
	sort.Strings(result.OrphanBlobs)
	sort.Strings(result.MissingBlobs)

	catalogSum, err := s.store.SumFileSizes(ctx)
	if err != nil {
		return result, storeFailure(err)
	}
	ledger, err := s.store.UsageBytes(ctx)
	if err != nil {
		return result, storeFailure(err)
	}
	result.CatalogBytes = catalogSum
	result.LedgerBytes = ledger

	if !apply {
		return result, nil
	}

	for _, key := range result.OrphanBlobs {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error("delete orphan blob", "storage_key", key, "error", err)
			result.FailedDeletions++
			continue
		}
		result.DeletedOrphans++
	}

	if ledger != catalogSum {
		if err := s.store.SetUsageBytes(ctx, catalogSum); err != nil {
			return result, storeFailure(err)
		}
		s.logger.Warn("ledger drift repaired", "ledger_bytes", ledger, "catalog_bytes", catalogSum)
		result.RepairedLedger = true
		result.LedgerBytes = catalogSum
	}

	return result, nil
}

func (s *StorageService) deleteBlobOrWarn(ctx context.Context, key, reason string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Error("compensating blob delete failed", "storage_key", key, "reason", reason, "error", err)
	}
}

// newStorageKey builds a key that is unique in the blob store:
// <sanitized base>_<unix ts>_<8 hex chars><original extension>.
func (s *StorageService) newStorageKey(ctx context.Context, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	base := sanitizeBaseName(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))

	for attempt := 0; attempt < storageKeyMaxAttempts; attempt++ {
		suffix := make([]byte, 4)
		if _, err := rand.Read(suffix); err != nil {
			return "", fmt.Errorf("generate storage key: %w", err)
		}
		key := fmt.Sprintf("%s_%d_%s%s", base, time.Now().Unix(), hex.EncodeToString(suffix), ext)
		exists, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("could not find a free storage key for %q", name)
}

func sanitizeBaseName(base string) string {
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "file"
	}
	const maxBaseLen = 80
	if len(out) > maxBaseLen {
		out = out[:maxBaseLen]
	}
	return out
}

func fileTooLarge(max int64) error {
	return makeAPIError(http.StatusBadRequest, "file_too_large", ErrCodeFileTooLarge,
		fmt.Errorf("file exceeds the maximum allowed size of %s", humanize.IBytes(uint64(max))))
}

func quotaExceeded(used, total int64) error {
	available := total - used
	if available < 0 {
		available = 0
	}
	return makeAPIError(http.StatusBadRequest, "quota_exceeded", ErrCodeQuotaExceeded,
		fmt.Errorf("insufficient storage space: %s used of %s, %s available",
			humanize.IBytes(uint64(used)), humanize.IBytes(uint64(total)), humanize.IBytes(uint64(available))))
}

func storageWriteFailed(err error) error {
	return makeAPIError(http.StatusBadRequest, "storage_write_failed", ErrCodeStorageWriteFailed,
		fmt.Errorf("failed to store file content: %w", err))
}

func blobDeleteFailed(err error) error {
	return makeAPIError(http.StatusBadRequest, "storage_delete_failed", ErrCodeStorageDeleteFailed,
		fmt.Errorf("failed to delete stored file content: %w", err))
}

func catalogWriteFailed(err error) error {
	return makeAPIError(http.StatusBadRequest, "catalog_write_failed", ErrCodeCatalogWriteFailed,
		fmt.Errorf("failed to record file metadata: %w", err))
}

func invalidFilter(raw string) error {
	return makeAPIError(http.StatusBadRequest, "invalid_filter", ErrCodeInvalidFilter,
		fmt.Errorf("invalid filter %q: expected all, image, video, pdf, or other", raw))
}

func inconsistencyDetected(err error) error {
	return makeAPIError(http.StatusBadRequest, "inconsistency_detected", ErrCodeInconsistency, err)
}
