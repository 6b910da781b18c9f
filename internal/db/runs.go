package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/results"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded driver invocation.
type Run struct {
	RunID      string          `json:"run_id"`
	Dataset    string          `json:"dataset"`
	DetectType string          `json:"detect_type"`
	Config     json.RawMessage `json:"config"`
	Stats      json.RawMessage `json:"stats,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Entries    int             `json:"entries"`
	Identity   int             `json:"identity"`
}

// CreateRun inserts a run started at startedAt and returns its id. config
// is stored as JSON; nil stores an empty object.
func (db *DB) CreateRun(dataset, detectType string, config interface{}, startedAt time.Time) (string, error) {
	cfgJSON := []byte("{}")
	if config != nil {
		var err error
		if cfgJSON, err = json.Marshal(config); err != nil {
			return "", fmt.Errorf("marshal run config: %w", err)
		}
	}
	runID := uuid.New().String()
	err := retryOnBusy(func() error {
		_, err := db.Exec(`INSERT INTO runs (run_id, dataset, detect_type, config_json, started_at) VALUES (?, ?, ?, ?, ?)`,
			runID, dataset, detectType, string(cfgJSON), startedAt.UTC().Format(timeLayout))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// FinishRun marks the run finished and stores its stats as JSON.
func (db *DB) FinishRun(runID string, finishedAt time.Time, stats interface{}) error {
	statsJSON := []byte("{}")
	if stats != nil {
		var err error
		if statsJSON, err = json.Marshal(stats); err != nil {
			return fmt.Errorf("marshal run stats: %w", err)
		}
	}
	var n int64
	err := retryOnBusy(func() error {
		res, err := db.Exec(`UPDATE runs SET finished_at = ?, stats_json = ? WHERE run_id = ?`,
			finishedAt.UTC().Format(timeLayout), string(statsJSON), runID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// SavePoses writes every entry of store under runID in one transaction,
// replacing existing rows for the same keys.
func (db *DB) SavePoses(runID string, store *results.Store) error {
	return retryOnBusy(func() error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO poses (run_id, video_id, frame_id, object_id, pose_json, is_identity) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range store.Triples() {
			poseJSON, err := json.Marshal(e.Pose.Rows())
			if err != nil {
				return err
			}
			identity := 0
			if e.Pose.IsIdentity() {
				identity = 1
			}
			if _, err := stmt.Exec(runID, e.VideoID, e.FrameID, e.ObjectID, string(poseJSON), identity); err != nil {
				return fmt.Errorf("insert pose %s/%s/%d: %w", e.VideoID, e.FrameID, e.ObjectID, err)
			}
		}
		return tx.Commit()
	})
}

// LoadPoses rebuilds the results store of a run.
func (db *DB) LoadPoses(runID string) (*results.Store, error) {
	if _, err := db.GetRun(runID); err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT video_id, frame_id, object_id, pose_json FROM poses WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query poses: %w", err)
	}
	defer rows.Close()

	store := results.NewStore()
	for rows.Next() {
		var (
			videoID, frameID, poseJSON string
			obID                       int
		)
		if err := rows.Scan(&videoID, &frameID, &obID, &poseJSON); err != nil {
			return nil, err
		}
		var poseRows [][]float64
		if err := json.Unmarshal([]byte(poseJSON), &poseRows); err != nil {
			return nil, fmt.Errorf("pose %s/%s/%d: %w", videoID, frameID, obID, err)
		}
		p, err := geom.PoseFromRows(poseRows)
		if err != nil {
			return nil, fmt.Errorf("pose %s/%s/%d: %w", videoID, frameID, obID, err)
		}
		store.Set(videoID, frameID, obID, p)
	}
	return store, rows.Err()
}

const runColumns = `r.run_id, r.dataset, r.detect_type, r.config_json, r.stats_json, r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM poses p WHERE p.run_id = r.run_id),
	(SELECT COUNT(*) FROM poses p WHERE p.run_id = r.run_id AND p.is_identity = 1)`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		cfg, stats, started string
		finished            sql.NullString
	)
	if err := s.Scan(&r.RunID, &r.Dataset, &r.DetectType, &cfg, &stats, &started, &finished, &r.Entries, &r.Identity); err != nil {
		return Run{}, err
	}
	r.Config = json.RawMessage(cfg)
	if stats != "" && stats != "{}" {
		r.Stats = json.RawMessage(stats)
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.RunID, err)
	}
	r.StartedAt = t
	if finished.Valid {
		ft, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s finished_at: %w", r.RunID, err)
		}
		r.FinishedAt = &ft
	}
	return r, nil
}

// GetRun returns one run.
func (db *DB) GetRun(runID string) (Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns runs newest first; limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its poses.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
