package db

import (
	"fmt"
	"time"

	"github.com/banshee-data/posebench/internal/results"
)

// RecordRun stores a finished run in one call: the run row, every pose of
// store and the stats. It returns the new run id.
func (db *DB) RecordRun(dataset, detectType string, config interface{}, startedAt, finishedAt time.Time, stats interface{}, store *results.Store) (string, error) {
	runID, err := db.CreateRun(dataset, detectType, config, startedAt)
	if err != nil {
		return "", err
	}
	if err := db.SavePoses(runID, store); err != nil {
		return runID, fmt.Errorf("save poses for run %s: %w", runID, err)
	}
	if err := db.FinishRun(runID, finishedAt, stats); err != nil {
		return runID, err
	}
	return runID, nil
}
