package pgserials

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/RIDBox/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "ridbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/ridbox_test?sslmode=disable"
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGSerials_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	upd := now.Add(-time.Hour)

	err := st.ApplyEntries(ctx,
		[]*models.ExactSerialEntry{{
			SerialNumber: "2146BF3300000000",
			RIDTracking:  "RID000001",
			Description:  models.DescriptionRID,
			Status:       "pending",
			Make:         "Contixo",
			Model:        "F33",
			SyncedAt:     now,
			FAAUpdatedAt: &upd,
		}},
		[]*models.SerialRangeEntry{
			{SerialStart: "AB0000", SerialEnd: "AB9999", RIDTracking: "WIDE", SyncedAt: now},
			{SerialStart: "AB1000", SerialEnd: "AB1099", RIDTracking: "NARROW", SyncedAt: now},
		},
	)
	require.NoError(t, err)

	e, err := st.GetExact(ctx, "2146BF3300000000")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, "Contixo", e.Make)
	require.True(t, e.FAAUpdatedAt.Equal(upd))
	require.Nil(t, e.MfrSerial)

	missing, err := st.GetExact(ctx, "NOPE")
	require.NoError(t, err)
	require.Nil(t, missing)

	r, err := st.FindRange(ctx, "AB1050")
	require.NoError(t, err)
	require.Equal(t, "NARROW", r.RIDTracking)

	r, err = st.FindRange(ctx, "AB5000")
	require.NoError(t, err)
	require.Equal(t, "WIDE", r.RIDTracking)

	r, err = st.FindRange(ctx, "AB10500")
	require.NoError(t, err)
	require.Nil(t, r)

	// lowercase sorts after uppercase byte-wise
	r, err = st.FindRange(ctx, "ab1050")
	require.NoError(t, err)
	require.Nil(t, r)

	wide := models.SerialRangeEntry{SerialStart: "AB0000", SerialEnd: "AB9999", RIDTracking: "WIDE", Status: "accepted", SyncedAt: now}
	require.NoError(t, st.UpsertRange(ctx, &wide))
	got, err := st.GetRangeByKey(ctx, wide.Key())
	require.NoError(t, err)
	require.Equal(t, "accepted", got.Status)
	require.Equal(t, wide.ID, got.ID)

	require.ErrorIs(t, st.UpsertRange(ctx, &models.SerialRangeEntry{SerialStart: "B9", SerialEnd: "B1", SyncedAt: now}),
		models.ErrInvalidArgument)

	require.NoError(t, st.SetMetaBatch(ctx, map[string]string{
		models.MetaLastSyncDate: now.Format(time.RFC3339),
		models.MetaBuildMethod:  "api",
	}))
	v, ok, err := st.GetMeta(ctx, models.MetaBuildMethod)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "api", v)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ExactSerials)
	require.EqualValues(t, 2, stats.SerialRanges)
	require.Len(t, stats.Metadata, 2)
}

func TestPGSerials_OlderRemoteStampDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	newer := now.Add(-time.Hour)
	older := now.Add(-30 * time.Hour)

	require.NoError(t, st.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "SERIALX0001", RIDTracking: "RID_NEW", SyncedAt: now, FAAUpdatedAt: &newer,
	}))
	require.NoError(t, st.UpsertExact(ctx, &models.ExactSerialEntry{
		SerialNumber: "SERIALX0001", RIDTracking: "RID_OLD", SyncedAt: now, FAAUpdatedAt: &older,
	}))
	e, err := st.GetExact(ctx, "SERIALX0001")
	require.NoError(t, err)
	require.Equal(t, "RID_NEW", e.RIDTracking)

	r := models.SerialRangeEntry{SerialStart: "S0001", SerialEnd: "S0009", RIDTracking: "RID1", Status: "accepted", SyncedAt: now, FAAUpdatedAt: &newer}
	require.NoError(t, st.UpsertRange(ctx, &r))
	stale := r
	stale.ID = 0
	stale.Status = "rescinded"
	stale.FAAUpdatedAt = &older
	require.NoError(t, st.UpsertRange(ctx, &stale))
	require.Equal(t, r.ID, stale.ID)

	got, err := st.GetRangeByKey(ctx, r.Key())
	require.NoError(t, err)
	require.Equal(t, "accepted", got.Status)
}
