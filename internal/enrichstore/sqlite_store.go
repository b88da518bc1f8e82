// Package enrichstore keeps enrichment job state and results in SQLite.
package enrichstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/biopareto/server/internal/enrich"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// JobStatus represents the current state of an enrichment job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobParams contains the parameters for an enrichment job.
type JobParams struct {
	Provider  enrich.Provider `json:"provider"`
	Organism  string          `json:"organism"`
	Genes     []string        `json:"genes"`
	Sources   []string        `json:"sources,omitempty"`
	Items     []int           `json:"items,omitempty"`
	ItemNames []string        `json:"item_names,omitempty"`
}

// Job is one enrichment submission.
type Job struct {
	ID         string          `json:"job_id"`
	Provider   enrich.Provider `json:"provider"`
	Status     JobStatus       `json:"status"`
	Params     JobParams       `json:"params"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	TermCount  int             `json:"term_count"`
	Empty      bool            `json:"empty"`
	Error      string          `json:"error,omitempty"`
}

type resultMeta struct {
	Organism      string   `json:"organism"`
	OrganismUsed  string   `json:"organism_used,omitempty"`
	Token         string   `json:"token,omitempty"`
	Validated     []string `json:"validated"`
	Unrecognized  []string `json:"unrecognized"`
	OriginalCount int      `json:"original_count"`
}

// Store provides persistent storage for enrichment jobs using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens the database at dbPath, or an in-memory one for MemoryPath.
func NewStore(dbPath string) (*Store, error) {
	memory := dbPath == "" || dbPath == MemoryPath
	if memory {
		dbPath = MemoryPath
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS enrich_jobs (
		job_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		params_json TEXT NOT NULL,
		meta_json TEXT DEFAULT '',
		term_count INTEGER DEFAULT 0,
		empty INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_enrich_jobs_status ON enrich_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_enrich_jobs_finished ON enrich_jobs(finished_at);

	CREATE TABLE IF NOT EXISTS enrich_terms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		source TEXT NOT NULL,
		term_name TEXT NOT NULL,
		description TEXT NOT NULL,
		p_value REAL NOT NULL,
		fdr REAL,
		term_size INTEGER NOT NULL,
		query_size INTEGER NOT NULL,
		intersection_size INTEGER NOT NULL,
		precision REAL NOT NULL,
		recall REAL NOT NULL,
		source_order TEXT NOT NULL,
		significant INTEGER NOT NULL,
		entities_found INTEGER NOT NULL,
		entities_total INTEGER NOT NULL,
		genes TEXT NOT NULL,
		FOREIGN KEY (job_id) REFERENCES enrich_jobs(job_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_enrich_terms_job ON enrich_terms(job_id);
	CREATE INDEX IF NOT EXISTS idx_enrich_terms_job_p ON enrich_terms(job_id, p_value);
	`
	_, err := s.db.Exec(schema)
	return err
}

const jobColumns = `job_id, provider, status, params_json, term_count, empty, error, created_at, started_at, finished_at`

// CreateJob creates a new job record with status=queued.
func (s *Store) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO enrich_jobs (job_id, provider, status, params_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		string(job.Params.Provider),
		string(job.Status),
		string(paramsJSON),
		job.Error,
		job.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// GetJob retrieves a job by ID. A missing job is (nil, nil).
func (s *Store) GetJob(jobID string) (*Job, error) {
	rows, err := s.db.Query(`SELECT `+jobColumns+` FROM enrich_jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs, err := s.scanJobs(rows)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return jobs[0], nil
}

// UpdateJobStatus updates the job status and error message.
func (s *Store) UpdateJobStatus(jobID string, status JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finishedAt *string
	if status.Terminal() {
		t := time.Now().Format(time.RFC3339)
		finishedAt = &t
	}

	_, err := s.db.Exec(`
		UPDATE enrich_jobs SET status = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE job_id = ?
	`, string(status), errMsg, finishedAt, jobID)
	return err
}

// UpdateJobStarted marks a job as running with start time.
func (s *Store) UpdateJobStarted(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		UPDATE enrich_jobs SET status = ?, started_at = ?
		WHERE job_id = ?
	`, string(JobStatusRunning), now, jobID)
	return err
}

// SaveResult stores the terms and validation summary of a finished call.
func (s *Store) SaveResult(jobID string, res enrich.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := json.Marshal(resultMeta{
		Organism:      res.Organism,
		OrganismUsed:  res.OrganismUsed,
		Token:         res.Token,
		Validated:     res.Validated,
		Unrecognized:  res.Unrecognized,
		OriginalCount: res.OriginalCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result meta: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO enrich_terms (job_id, source, term_name, description, p_value, fdr, term_size, query_size,
			intersection_size, precision, recall, source_order, significant, entities_found, entities_total, genes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range res.Terms {
		var fdr any
		if t.FDR != nil {
			fdr = *t.FDR
		}
		_, err := stmt.Exec(
			jobID, t.Source, t.TermName, t.Description, t.PValue, fdr,
			t.TermSize, t.QuerySize, t.IntersectionSize, t.Precision, t.Recall,
			t.SourceOrder, t.Significant, t.EntitiesFound, t.EntitiesTotal,
			strings.Join(t.IntersectionGenes, ","),
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		UPDATE enrich_jobs SET meta_json = ?, term_count = ?, empty = ?
		WHERE job_id = ?
	`, string(meta), len(res.Terms), res.Empty(), jobID); err != nil {
		return err
	}

	return tx.Commit()
}

// QueryTerms returns a page of terms with p below threshold, ordered by p
// value. threshold <= 0 returns every term.
func (s *Store) QueryTerms(jobID string, orderBy string, threshold float64, offset, limit int) ([]enrich.Term, int, error) {
	orderCol := "p_value ASC, intersection_size DESC"
	switch orderBy {
	case "intersection_size":
		orderCol = "intersection_size DESC, p_value ASC"
	case "source":
		orderCol = "source ASC, p_value ASC"
	case "term_name":
		orderCol = "term_name ASC"
	}
	if threshold <= 0 {
		threshold = 2
	}

	var total int
	err := s.db.QueryRow("SELECT COUNT(*) FROM enrich_terms WHERE job_id = ? AND p_value < ?", jobID, threshold).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = -1
	}

	query := fmt.Sprintf(`
		SELECT source, term_name, description, p_value, fdr, term_size, query_size, intersection_size,
			precision, recall, source_order, significant, entities_found, entities_total, genes
		FROM enrich_terms
		WHERE job_id = ? AND p_value < ?
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, orderCol)

	rows, err := s.db.Query(query, jobID, threshold, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	terms := []enrich.Term{}
	for rows.Next() {
		var t enrich.Term
		var fdr sql.NullFloat64
		var genes string
		err := rows.Scan(
			&t.Source, &t.TermName, &t.Description, &t.PValue, &fdr,
			&t.TermSize, &t.QuerySize, &t.IntersectionSize, &t.Precision, &t.Recall,
			&t.SourceOrder, &t.Significant, &t.EntitiesFound, &t.EntitiesTotal, &genes,
		)
		if err != nil {
			return nil, 0, err
		}
		if fdr.Valid {
			v := fdr.Float64
			t.FDR = &v
		}
		if genes != "" {
			t.IntersectionGenes = strings.Split(genes, ",")
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return terms, total, nil
}

// GetResult rebuilds the full result of a completed job.
func (s *Store) GetResult(jobID string) (*enrich.Result, error) {
	var provider, metaJSON string
	err := s.db.QueryRow("SELECT provider, meta_json FROM enrich_jobs WHERE job_id = ?", jobID).Scan(&provider, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var meta resultMeta
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result meta: %w", err)
		}
	}
	terms, _, err := s.QueryTerms(jobID, "", 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &enrich.Result{
		Provider:      enrich.Provider(provider),
		Organism:      meta.Organism,
		OrganismUsed:  meta.OrganismUsed,
		Token:         meta.Token,
		Terms:         terms,
		Validated:     meta.Validated,
		Unrecognized:  meta.Unrecognized,
		OriginalCount: meta.OriginalCount,
	}, nil
}

// ListJobs returns every job, newest first.
func (s *Store) ListJobs() ([]*Job, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM enrich_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanJobs(rows)
}

// ListQueuedJobs returns all queued jobs (for restart recovery).
func (s *Store) ListQueuedJobs() ([]*Job, error) {
	rows, err := s.db.Query(`SELECT `+jobColumns+` FROM enrich_jobs WHERE status = ? ORDER BY created_at ASC`,
		string(JobStatusQueued))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanJobs(rows)
}

// MarkRunningAsFailed marks all running jobs as failed (for restart recovery).
func (s *Store) MarkRunningAsFailed(errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		UPDATE enrich_jobs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, string(JobStatusFailed), errMsg, now, string(JobStatusRunning))
	return err
}

// DeleteExpiredJobs deletes jobs finished more than retentionDays ago.
func (s *Store) DeleteExpiredJobs(retentionDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	_, err := s.db.Exec(`
		DELETE FROM enrich_terms WHERE job_id IN (
			SELECT job_id FROM enrich_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
		)
	`, cutoff)
	if err != nil {
		return 0, err
	}

	result, err := s.db.Exec(`
		DELETE FROM enrich_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteJob deletes a job and its terms.
func (s *Store) DeleteJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM enrich_terms WHERE job_id = ?", jobID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("DELETE FROM enrich_jobs WHERE job_id = ?", jobID)
	return err
}

func (s *Store) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		var paramsJSON string
		var createdAtStr string
		var startedAtStr, finishedAtStr sql.NullString

		err := rows.Scan(
			&job.ID,
			&job.Provider,
			&job.Status,
			&paramsJSON,
			&job.TermCount,
			&job.Empty,
			&job.Error,
			&createdAtStr,
			&startedAtStr,
			&finishedAtStr,
		)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}

		job.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		if startedAtStr.Valid {
			t, _ := time.Parse(time.RFC3339, startedAtStr.String)
			job.StartedAt = &t
		}
		if finishedAtStr.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAtStr.String)
			job.FinishedAt = &t
		}

		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
