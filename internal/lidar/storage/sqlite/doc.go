// Package sqlite persists DBH measurements in the SQLite schema managed by
// internal/db. The measurement pipeline itself never touches SQL; callers
// convert a lidar.Result with NewMeasurement and hand it to a store.
package sqlite
