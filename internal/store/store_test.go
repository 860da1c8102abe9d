package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"fstash/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreate(t *testing.T, st *Store, record *models.FileRecord, maxTotal int64) int64 {
	t.Helper()
	usedAfter, err := st.CreateFileWithQuota(context.Background(), record, maxTotal)
	if err != nil {
		t.Fatalf("create file %q: %v", record.Name, err)
	}
	return usedAfter
}

func TestCreateAndGetFile(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	record := &models.FileRecord{
		Name:       "holiday.jpg",
		Kind:       models.KindImage,
		SizeBytes:  1234,
		StorageKey: "holiday_1700000000_ab12cd34.jpg",
	}
	usedAfter := mustCreate(t, st, record, 0)
	if usedAfter != 1234 {
		t.Fatalf("expected ledger 1234 after insert, got %d", usedAfter)
	}
	if record.ID <= 0 {
		t.Fatalf("expected assigned id, got %d", record.ID)
	}

	got, err := st.GetFile(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Name != "holiday.jpg" || got.Kind != models.KindImage || got.SizeBytes != 1234 {
		t.Fatalf("unexpected record: %#v", got)
	}

	byKey, err := st.GetFileByStorageKey(ctx, record.StorageKey)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey == nil || byKey.ID != record.ID {
		t.Fatalf("expected record %d by storage key, got %#v", record.ID, byKey)
	}
}

func TestCreateFileQuotaRecheck(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	mustCreate(t, st, &models.FileRecord{
		Name: "base.bin", Kind: models.KindOther, SizeBytes: 90, StorageKey: "base_1_aa.bin",
	}, 100)

	// used = total - 10: an 11-byte file must fail, a 10-byte file must land
	// exactly on the quota.
	_, err := st.CreateFileWithQuota(ctx, &models.FileRecord{
		Name: "big.bin", Kind: models.KindOther, SizeBytes: 11, StorageKey: "big_1_bb.bin",
	}, 100)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	usedAfter, err := st.CreateFileWithQuota(ctx, &models.FileRecord{
		Name: "fit.bin", Kind: models.KindOther, SizeBytes: 10, StorageKey: "fit_1_cc.bin",
	}, 100)
	if err != nil {
		t.Fatalf("expected exact fit to succeed: %v", err)
	}
	if usedAfter != 100 {
		t.Fatalf("expected ledger 100, got %d", usedAfter)
	}
}

func TestQuotaFailureLeavesStoreUnchanged(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	mustCreate(t, st, &models.FileRecord{
		Name: "a.bin", Kind: models.KindOther, SizeBytes: 50, StorageKey: "a_1_aa.bin",
	}, 100)

	_, err := st.CreateFileWithQuota(ctx, &models.FileRecord{
		Name: "b.bin", Kind: models.KindOther, SizeBytes: 60, StorageKey: "b_1_bb.bin",
	}, 100)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	used, err := st.UsageBytes(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if used != 50 {
		t.Fatalf("ledger must be unchanged after a rejected insert, got %d", used)
	}
	records, err := st.QueryFiles(ctx, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("catalog must be unchanged after a rejected insert, got %d rows", len(records))
	}
}

func TestDeleteFileWithUsage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	record := &models.FileRecord{
		Name: "clip.mp4", Kind: models.KindVideo, SizeBytes: 400, StorageKey: "clip_1_aa.mp4",
	}
	mustCreate(t, st, record, 0)

	deleted, usedAfter, found, err := st.DeleteFileWithUsage(ctx, record.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !found {
		t.Fatal("expected row to be found")
	}
	if deleted.StorageKey != "clip_1_aa.mp4" {
		t.Fatalf("unexpected deleted record: %#v", deleted)
	}
	if usedAfter != 0 {
		t.Fatalf("expected ledger back to 0, got %d", usedAfter)
	}

	_, _, found, err = st.DeleteFileWithUsage(ctx, record.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if found {
		t.Fatal("expected second delete to report missing row")
	}
}

func TestDeleteClampsNegativeUsage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	record := &models.FileRecord{
		Name: "x.bin", Kind: models.KindOther, SizeBytes: 100, StorageKey: "x_1_aa.bin",
	}
	mustCreate(t, st, record, 0)

	// Simulate prior accounting drift below the record size.
	if err := st.SetUsageBytes(ctx, 40); err != nil {
		t.Fatalf("set usage: %v", err)
	}

	_, usedAfter, found, err := st.DeleteFileWithUsage(ctx, record.ID)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	if usedAfter != 0 {
		t.Fatalf("expected drift to clamp at 0, got %d", usedAfter)
	}
}

func TestQueryFilesOrderingAndFilter(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []*models.FileRecord{
		{Name: "one.png", Kind: models.KindImage, SizeBytes: 1, StorageKey: "one_1_aa.png", CreatedAt: base},
		{Name: "two.mp4", Kind: models.KindVideo, SizeBytes: 2, StorageKey: "two_1_bb.mp4", CreatedAt: base.Add(time.Minute)},
		{Name: "three.pdf", Kind: models.KindPDF, SizeBytes: 3, StorageKey: "three_1_cc.pdf", CreatedAt: base.Add(2 * time.Minute)},
		// Same timestamp as three.pdf: higher id wins.
		{Name: "four.pdf", Kind: models.KindPDF, SizeBytes: 4, StorageKey: "four_1_dd.pdf", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, record := range records {
		mustCreate(t, st, record, 0)
	}

	all, err := st.QueryFiles(ctx, "")
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	wantOrder := []string{"four.pdf", "three.pdf", "two.mp4", "one.png"}
	for i, want := range wantOrder {
		if all[i].Name != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, all[i].Name)
		}
	}

	pdfs, err := st.QueryFiles(ctx, models.KindPDF)
	if err != nil {
		t.Fatalf("query pdf: %v", err)
	}
	if len(pdfs) != 2 || pdfs[0].Name != "four.pdf" || pdfs[1].Name != "three.pdf" {
		t.Fatalf("unexpected pdf filter result: %#v", pdfs)
	}
}

func TestLedgerMatchesCatalogSum(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	sizes := []int64{10, 20, 30}
	ids := []int64{}
	for i, size := range sizes {
		record := &models.FileRecord{
			Name: "f.bin", Kind: models.KindOther, SizeBytes: size,
			StorageKey: fmt.Sprintf("f_%d_aa.bin", i),
		}
		mustCreate(t, st, record, 0)
		ids = append(ids, record.ID)
	}

	sum, err := st.SumFileSizes(ctx)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	used, err := st.UsageBytes(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if sum != 60 || used != 60 {
		t.Fatalf("expected ledger == catalog sum == 60, got sum=%d used=%d", sum, used)
	}

	if _, _, _, err := st.DeleteFileWithUsage(ctx, ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sum, _ = st.SumFileSizes(ctx)
	used, _ = st.UsageBytes(ctx)
	if sum != 40 || used != 40 {
		t.Fatalf("expected ledger == catalog sum == 40, got sum=%d used=%d", sum, used)
	}
}

func TestStorageKeyUniqueConstraint(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	mustCreate(t, st, &models.FileRecord{
		Name: "a.txt", Kind: models.KindOther, SizeBytes: 1, StorageKey: "same_key.txt",
	}, 0)

	_, err := st.CreateFileWithQuota(ctx, &models.FileRecord{
		Name: "b.txt", Kind: models.KindOther, SizeBytes: 1, StorageKey: "same_key.txt",
	}, 0)
	if err == nil {
		t.Fatal("expected unique constraint violation")
	}

	// The failed insert must not advance the ledger.
	used, _ := st.UsageBytes(ctx)
	if used != 1 {
		t.Fatalf("expected ledger 1, got %d", used)
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	mustCreate(t, st, &models.FileRecord{Name: "a.png", Kind: models.KindImage, SizeBytes: 5, StorageKey: "a_1_aa.png"}, 0)
	mustCreate(t, st, &models.FileRecord{Name: "b.png", Kind: models.KindImage, SizeBytes: 5, StorageKey: "b_1_bb.png"}, 0)
	mustCreate(t, st, &models.FileRecord{Name: "c.pdf", Kind: models.KindPDF, SizeBytes: 5, StorageKey: "c_1_cc.pdf"}, 0)

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SchemaVersion < 2 {
		t.Fatalf("expected schema version >= 2, got %d", info.SchemaVersion)
	}
	if info.TotalFiles != 3 || info.FileCounts["image"] != 2 || info.FileCounts["pdf"] != 1 {
		t.Fatalf("unexpected counts: %#v", info)
	}
	if info.UsedBytes != 15 {
		t.Fatalf("expected used 15, got %d", info.UsedBytes)
	}
}
