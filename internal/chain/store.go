package chain

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	SubmissionPending   = "pending"
	SubmissionConfirmed = "confirmed"
	SubmissionFailed    = "failed"
	// SubmissionUnknown marks a confirmation timeout: the transaction may
	// still be mined, so the record stays re-checkable rather than failed.
	SubmissionUnknown = "unknown"
)

// Submission is one journaled transaction against a Trade vault. The
// journal is what lets an operator reconcile after a confirmation timeout
// instead of blindly resubmitting.
type Submission struct {
	ID        string `json:"id"`
	Chain     string `json:"chain"`
	ChainID   int64  `json:"chain_id"`
	Kind      string `json:"kind"`
	TxHash    string `json:"tx_hash"`
	Status    string `json:"status"`
	Data      string `json:"data"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func NewSubmission(chain string, chainID int64, kind string, txHash common.Hash, data []byte, value *big.Int) Submission {
	if value == nil {
		value = new(big.Int)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return Submission{
		ID:        "sub_" + uuid.NewString(),
		Chain:     chain,
		ChainID:   chainID,
		Kind:      kind,
		TxHash:    txHash.Hex(),
		Status:    SubmissionPending,
		Data:      "0x" + hex.EncodeToString(data),
		Value:     value.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create submission store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create submission lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open submission sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS submissions (
			submission_id TEXT PRIMARY KEY,
			chain TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_submissions_status_updated ON submissions(status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init submission schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(sub Submission) error {
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("save submission: missing id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock submission store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock submission store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	sub.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	createdUnix := rfc3339Unix(sub.CreatedAt)
	updatedUnix := rfc3339Unix(sub.UpdatedAt)

	_, err = s.db.Exec(`
		INSERT INTO submissions (submission_id, chain, chain_id, kind, status, tx_hash, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(submission_id) DO UPDATE SET
			status=excluded.status,
			tx_hash=excluded.tx_hash,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, sub.ID, sub.Chain, sub.ChainID, sub.Kind, sub.Status, sub.TxHash, createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Store) List(status string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(status) == "" {
		rows, err = s.db.Query("SELECT payload FROM submissions ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM submissions WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]Submission, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		var sub Submission
		if err := json.Unmarshal(payload, &sub); err != nil {
			return nil, fmt.Errorf("decode submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}
	return subs, nil
}

func rfc3339Unix(v string) int64 {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Now().UTC().Unix()
	}
	return t.UTC().Unix()
}
