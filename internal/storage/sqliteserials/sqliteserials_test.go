package sqliteserials

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func rng(start, end, rid string) *models.SerialRangeEntry {
	return &models.SerialRangeEntry{
		SerialStart: start,
		SerialEnd:   end,
		RIDTracking: rid,
		Description: models.DescriptionRID,
		Status:      "accepted",
		SyncedAt:    ts("2026-01-01T00:00:00Z"),
	}
}

func TestExact_UpsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	got, err := s.GetExact(ctx, "2146BF3300000000")
	require.NoError(t, err)
	require.Nil(t, got)

	upd := ts("2025-06-01T10:00:00Z")
	e := &models.ExactSerialEntry{
		SerialNumber: "2146BF3300000000",
		RIDTracking:  "RID000001",
		Description:  models.DescriptionRID,
		Status:       "pending",
		Make:         "Contixo",
		Model:        "F33",
		SyncedAt:     ts("2026-01-01T00:00:00Z"),
		FAAUpdatedAt: &upd,
	}
	require.NoError(t, s.UpsertExact(ctx, e))

	got, err = s.GetExact(ctx, "2146BF3300000000")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.SameData(e))
	require.True(t, got.SyncedAt.Equal(e.SyncedAt))
	require.Nil(t, got.MfrSerial)

	e.Status = "accepted"
	e.MfrSerial = models.StrPtr("MFR-1")
	require.NoError(t, s.UpsertExact(ctx, e))

	got, err = s.GetExact(ctx, "2146BF3300000000")
	require.NoError(t, err)
	require.Equal(t, "accepted", got.Status)
	require.Equal(t, "MFR-1", models.Deref(got.MfrSerial))
}

func TestExact_EmptyMfrSerialStoredAsNull(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "A1",
		MfrSerial:    models.StrPtr(""),
		SyncedAt:     ts("2026-01-01T00:00:00Z"),
	}))
	empty := ""
	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "A2",
		MfrSerial:    &empty,
		SyncedAt:     ts("2026-01-01T00:00:00Z"),
	}))

	got, err := s.GetExact(ctx, "A2")
	require.NoError(t, err)
	require.Nil(t, got.MfrSerial)
}

func TestFindRange_Containment(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	require.NoError(t, s.UpsertRange(ctx, rng("1581F5BK0000", "1581F5BK0005", "RID1")))

	got, err := s.FindRange(ctx, "1581F5BK0003")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "RID1", got.RIDTracking)

	for _, serial := range []string{"1581F5BK0006", "1581F5BK003", "1581F5BK00030", "1581F5BJ9999"} {
		got, err := s.FindRange(ctx, serial)
		require.NoError(t, err)
		require.Nil(t, got, serial)
	}
}

func TestFindRange_TightestWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	require.NoError(t, s.UpsertRange(ctx, rng("AB0000", "AB9999", "WIDE")))
	require.NoError(t, s.UpsertRange(ctx, rng("AB1000", "AB1999", "MID")))
	require.NoError(t, s.UpsertRange(ctx, rng("AB1000", "AB1099", "NARROW")))

	got, err := s.FindRange(ctx, "AB1050")
	require.NoError(t, err)
	require.Equal(t, "NARROW", got.RIDTracking)

	got, err = s.FindRange(ctx, "AB1500")
	require.NoError(t, err)
	require.Equal(t, "MID", got.RIDTracking)

	got, err = s.FindRange(ctx, "AB5000")
	require.NoError(t, err)
	require.Equal(t, "WIDE", got.RIDTracking)
}

func TestFindRange_SkipsDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	r := rng("X100", "X199", "GONE")
	r.Deleted = true
	require.NoError(t, s.UpsertRange(ctx, r))

	got, err := s.FindRange(ctx, "X150")
	require.NoError(t, err)
	require.Nil(t, got)

	byKey, err := s.GetRangeByKey(ctx, r.Key())
	require.NoError(t, err)
	require.NotNil(t, byKey)
	require.True(t, byKey.Deleted)
}

func TestUpsertRange_NaturalKeyUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	r := rng("S0001", "S0009", "RID1")
	require.NoError(t, s.UpsertRange(ctx, r))
	firstID := r.ID
	require.NotZero(t, firstID)

	r2 := rng("S0001", "S0009", "RID1")
	r2.Status = "rejected"
	require.NoError(t, s.UpsertRange(ctx, r2))
	require.Equal(t, firstID, r2.ID)

	got, err := s.GetRangeByKey(ctx, r.Key())
	require.NoError(t, err)
	require.Equal(t, "rejected", got.Status)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.SerialRanges)
}

func TestUpsertRange_RejectsBadBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.ErrorIs(t, s.UpsertRange(ctx, rng("B9", "B1", "R")), models.ErrInvalidArgument)
	require.ErrorIs(t, s.UpsertRange(ctx, rng("B1", "B10", "R")), models.ErrInvalidArgument)
}

func TestApplyEntries_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	exact := []*models.ExactSerialEntry{{SerialNumber: "E1", SyncedAt: ts("2026-01-01T00:00:00Z")}}
	ranges := []*models.SerialRangeEntry{rng("Z9", "Z1", "R")}
	require.Error(t, s.ApplyEntries(ctx, exact, ranges))

	got, err := s.GetExact(ctx, "E1")
	require.NoError(t, err)
	require.Nil(t, got)

	ranges = []*models.SerialRangeEntry{rng("Z1", "Z9", "R")}
	require.NoError(t, s.ApplyEntries(ctx, exact, ranges))
	got, err = s.GetExact(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMetaAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, ok, err := s.GetMeta(ctx, models.MetaLastSyncDate)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetMeta(ctx, models.MetaLastSyncDate, "2026-01-01T00:00:00Z"))
	require.NoError(t, s.SetMeta(ctx, models.MetaLastSyncDate, "2026-02-01T00:00:00Z"))
	v, ok, err := s.GetMeta(ctx, models.MetaLastSyncDate)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2026-02-01T00:00:00Z", v)

	require.NoError(t, s.SetMetaBatch(ctx, map[string]string{
		models.MetaBuildMethod: "api",
		models.MetaTotalRIDs:   "2",
	}))
	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{SerialNumber: "E1", SyncedAt: ts("2026-01-01T00:00:00Z")}))
	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{SerialNumber: "E2", SyncedAt: ts("2026-01-01T00:00:00Z"), Deleted: true}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.ExactSerials)
	require.EqualValues(t, 0, st.SerialRanges)
	require.Equal(t, "api", st.Metadata[models.MetaBuildMethod])
	require.Len(t, st.Metadata, 3)
}

func TestOpenExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rid.db")

	_, err := OpenExisting(ctx, path)
	require.ErrorIs(t, err, models.ErrStoreUnavailable)

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(ctx, models.MetaBuildMethod, "api"))
	s.Close()

	s, err = OpenExisting(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.GetMeta(ctx, models.MetaBuildMethod)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "api", v)
}

func TestUpsert_OlderRemoteStampDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	newer := ts("2026-01-31T23:00:00Z")
	older := ts("2026-01-30T18:00:00Z")

	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "SERIALX0001", RIDTracking: "RID_NEW", SyncedAt: ts("2026-02-01T00:00:00Z"), FAAUpdatedAt: &newer,
	}))
	require.NoError(t, s.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "SERIALX0001", RIDTracking: "RID_OLD", SyncedAt: ts("2026-02-01T00:00:00Z"), FAAUpdatedAt: &older,
	}))
	got, err := s.GetExact(ctx, "SERIALX0001")
	require.NoError(t, err)
	require.Equal(t, "RID_NEW", got.RIDTracking)

	r := rng("S0001", "S0009", "RID1")
	r.FAAUpdatedAt = &newer
	require.NoError(t, s.UpsertRange(ctx, r))

	stale := rng("S0001", "S0009", "RID1")
	stale.Status = "rescinded"
	stale.FAAUpdatedAt = &older
	require.NoError(t, s.UpsertRange(ctx, stale))
	require.Equal(t, r.ID, stale.ID)

	gotRange, err := s.GetRangeByKey(ctx, r.Key())
	require.NoError(t, err)
	require.Equal(t, "accepted", gotRange.Status)

	// равный stamp перезаписывает
	same := rng("S0001", "S0009", "RID1")
	same.Status = "rejected"
	same.FAAUpdatedAt = &newer
	require.NoError(t, s.UpsertRange(ctx, same))
	gotRange, err = s.GetRangeByKey(ctx, r.Key())
	require.NoError(t, err)
	require.Equal(t, "rejected", gotRange.Status)
}

func TestRange_MultibyteBoundsUseByteLength(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	// 4 байта с обеих сторон, но разное число символов
	r := rng("aaaa", "éé", "RIDU")
	require.True(t, models.ValidBounds(r.SerialStart, r.SerialEnd))
	require.NoError(t, s.ApplyEntries(ctx, nil, []*models.SerialRangeEntry{r}))

	got, err := s.FindRange(ctx, "bbbb")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "RIDU", got.RIDTracking)

	got, err = s.FindRange(ctx, "é")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOpen_SingleConnection(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(t.TempDir(), "rid.db"))
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, 1, s.db.Stats().MaxOpenConnections)

	mem := newTestStorage(t)
	require.Equal(t, 1, mem.db.Stats().MaxOpenConnections)
}
