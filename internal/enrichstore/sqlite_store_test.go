package enrichstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biopareto/server/internal/enrich"
)

func newJob(id string) *Job {
	return &Job{
		ID:     id,
		Status: JobStatusQueued,
		Params: JobParams{
			Provider: enrich.ProviderGProfiler,
			Organism: "hsapiens",
			Genes:    []string{"TP53", "EGFR"},
			Items:    []int{0, 2},
		},
		CreatedAt: time.Now(),
	}
}

func TestStore_JobLifecycle(t *testing.T) {
	s, err := NewStore(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateJob(newJob("j1")))
	job, err := s.GetJob("j1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, enrich.ProviderGProfiler, job.Provider)
	assert.Equal(t, []string{"TP53", "EGFR"}, job.Params.Genes)
	assert.Nil(t, job.StartedAt)

	require.NoError(t, s.UpdateJobStarted("j1"))
	queued, err := s.ListQueuedJobs()
	require.NoError(t, err)
	assert.Empty(t, queued)

	fdr := 0.02
	res := enrich.Result{
		Provider:      enrich.ProviderGProfiler,
		Organism:      "hsapiens",
		Validated:     []string{"EGFR", "TP53"},
		Unrecognized:  []string{},
		OriginalCount: 2,
		Terms: []enrich.Term{
			{Source: "GO:BP", TermName: "b", PValue: 0.2, IntersectionSize: 1, IntersectionGenes: []string{"TP53"}},
			{Source: "KEGG", TermName: "a", PValue: 0.001, IntersectionSize: 2, IntersectionGenes: []string{"EGFR", "TP53"}, FDR: &fdr},
		},
	}
	require.NoError(t, s.SaveResult("j1", res))
	require.NoError(t, s.UpdateJobStatus("j1", JobStatusCompleted, ""))

	job, err = s.GetJob("j1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.TermCount)
	assert.False(t, job.Empty)
	assert.NotNil(t, job.FinishedAt)

	terms, total, err := s.QueryTerms("j1", "", 0.05, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, terms, 1)
	assert.Equal(t, "a", terms[0].TermName)
	assert.Equal(t, []string{"EGFR", "TP53"}, terms[0].IntersectionGenes)
	require.NotNil(t, terms[0].FDR)

	got, err := s.GetResult("j1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.Validated, got.Validated)
	require.Len(t, got.Terms, 2)
	assert.Equal(t, "a", got.Terms[0].TermName)
	assert.Nil(t, got.Terms[1].FDR)
}

func TestStore_EmptyResultIsRecorded(t *testing.T) {
	s, err := NewStore(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateJob(newJob("j1")))
	require.NoError(t, s.SaveResult("j1", enrich.Result{Terms: []enrich.Term{}}))
	job, err := s.GetJob("j1")
	require.NoError(t, err)
	assert.True(t, job.Empty)
}

func TestStore_RecoveryAndDeletion(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "jobs.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateJob(newJob("queued")))
	require.NoError(t, s.CreateJob(newJob("running")))
	require.NoError(t, s.UpdateJobStarted("running"))

	require.NoError(t, s.MarkRunningAsFailed("server restarted"))
	job, err := s.GetJob("running")
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "server restarted", job.Error)

	queued, err := s.ListQueuedJobs()
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "queued", queued[0].ID)

	n, err := s.DeleteExpiredJobs(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.DeleteJob("queued"))
	missing, err := s.GetJob("queued")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListJobs()
	require.NoError(t, err)
	assert.Empty(t, all)
}
