package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// drivers runs a subtest against each embeddable backend so lifecycle
// semantics cannot drift between them.
func drivers(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newTestSQLiteStore(t))
	})
}

func testJob() model.Job {
	return model.Job{
		ID:       uuid.NewString(),
		Status:   model.JobStatusPending,
		Filename: "invoice.pdf",
		Path:     "/tmp/invoice.pdf",
		Progress: "queued",
	}
}

func TestStore_CreateAndGetStatus(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))

		got, err := st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, "invoice.pdf", got.Filename)
		assert.Equal(t, "queued", got.Progress)
		assert.Empty(t, got.Error)
	})
}

func TestStore_GetStatus_Missing(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		_, err := st.GetStatus(context.Background(), "no-such-job")
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFound))
	})
}

func TestStore_StatusLifecycle(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))

		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{
			Status:   model.JobStatusProcessing,
			Progress: model.Str("running ocr"),
		}))

		got, err := st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, got.Status)
		assert.Equal(t, "running ocr", got.Progress)

		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{
			Status:   model.JobStatusCompleted,
			Progress: model.Str("done"),
		}))

		got, err = st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
	})
}

func TestStore_BackwardTransitionRejected(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))

		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{Status: model.JobStatusProcessing}))
		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{Status: model.JobStatusCompleted}))

		err := st.PutStatus(ctx, job.ID, model.StatusUpdate{Status: model.JobStatusProcessing})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal transition")

		// Terminal status survives the rejected write.
		got, err := st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
	})
}

func TestStore_PartialUpdateKeepsStatus(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))
		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{Status: model.JobStatusProcessing}))

		// Progress-only update must not touch the status field.
		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{
			Progress: model.Str("classifying document"),
		}))

		got, err := st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, got.Status)
		assert.Equal(t, "classifying document", got.Progress)
	})
}

func TestStore_FailedJobKeepsError(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))
		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{Status: model.JobStatusProcessing}))

		require.NoError(t, st.PutStatus(ctx, job.ID, model.StatusUpdate{
			Status: model.JobStatusFailed,
			Error:  model.Str("ocr produced no text"),
		}))

		got, err := st.GetStatus(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, "ocr produced no text", got.Error)
	})
}

func TestStore_ResultRoundTrip(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := testJob()
		require.NoError(t, st.CreateJob(ctx, job))

		res := &model.Result{
			JobID:        job.ID,
			Status:       model.JobStatusCompleted,
			DocumentType: model.DocTypeStructured,
			ExtractedData: &model.ExtractedData{
				Supplier:      model.Str("Acme Corp"),
				InvoiceNumber: model.Str("INV-1001"),
				Total:         model.F64(1234.56),
				Currency:      model.Str("USD"),
			},
			ProcessingTime: 2.75,
			RawText:        "--- Page 1 ---\n\nInvoice INV-1001",
		}
		require.NoError(t, st.PutResult(ctx, job.ID, res))

		got, err := st.GetResult(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.JobID)
		assert.Equal(t, model.DocTypeStructured, got.DocumentType)
		require.NotNil(t, got.ExtractedData.Supplier)
		assert.Equal(t, "Acme Corp", *got.ExtractedData.Supplier)
		require.NotNil(t, got.ExtractedData.Total)
		assert.InDelta(t, 1234.56, *got.ExtractedData.Total, 0.001)
		assert.InDelta(t, 2.75, got.ProcessingTime, 0.001)
	})
}

func TestStore_GetResult_Missing(t *testing.T) {
	drivers(t, func(t *testing.T, st Store) {
		job := testJob()
		require.NoError(t, st.CreateJob(context.Background(), job))

		_, err := st.GetResult(context.Background(), job.ID)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFound))
	})
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestNew_DefaultsToMemory(t *testing.T) {
	st, err := New(context.Background(), "", "")
	require.NoError(t, err)
	_, ok := st.(*MemoryStore)
	assert.True(t, ok)
}
