package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

// Measurement is one stored DBH result.
type Measurement struct {
	MeasurementID string  `json:"measurement_id"`
	SourcePath    string  `json:"source_path"`
	CenterX       float64 `json:"center_x"`
	CenterY       float64 `json:"center_y"`
	RadiusM       float64 `json:"radius_m"`
	DBHM          float64 `json:"dbh_m"`
	BandLowM      float64 `json:"band_low_m"`
	BandHighM     float64 `json:"band_high_m"`
	GroundOffsetM float64 `json:"ground_offset_m"`
	TotalPoints   int     `json:"total_points"`
	SlicePoints   int     `json:"slice_points"`
	Iterations    int     `json:"iterations"`
	RMSResidualM  float64 `json:"rms_residual_m"`
	Retried       bool    `json:"retried"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAtNs   int64   `json:"created_at_ns"`
}

// NewMeasurement flattens a pipeline result for storage.
func NewMeasurement(sourcePath string, res *lidar.Result) *Measurement {
	m := &Measurement{
		SourcePath:    sourcePath,
		CenterX:       res.Circle.CenterX,
		CenterY:       res.Circle.CenterY,
		RadiusM:       res.Circle.Radius,
		DBHM:          res.DBH,
		BandLowM:      res.Band.Low,
		BandHighM:     res.Band.High,
		GroundOffsetM: res.GroundOffset,
		TotalPoints:   res.TotalPoints,
		SlicePoints:   len(res.Slice),
	}
	if res.Fit != nil {
		m.Iterations = res.Fit.Iterations
		m.RMSResidualM = res.Fit.RMSResidual
		m.Retried = res.Fit.Retried
	}
	return m
}

// Circle returns the stored fitted circle.
func (m *Measurement) Circle() lidar.CircleModel {
	return lidar.CircleModel{CenterX: m.CenterX, CenterY: m.CenterY, Radius: m.RadiusM}
}

// MeasurementStore provides persistence for DBH measurements.
type MeasurementStore struct {
	db *sql.DB
}

// NewMeasurementStore creates a new MeasurementStore.
func NewMeasurementStore(db *sql.DB) *MeasurementStore {
	return &MeasurementStore{db: db}
}

const measurementColumns = `
	measurement_id, source_path, center_x, center_y, radius_m, dbh_m,
	band_low_m, band_high_m, ground_offset_m, total_points, slice_points,
	iterations, rms_residual_m, retried, notes, created_at_ns`

// Insert stores m. A missing MeasurementID is filled with a new UUID and a
// zero CreatedAtNs with the current time.
func (s *MeasurementStore) Insert(m *Measurement) error {
	if m.MeasurementID == "" {
		m.MeasurementID = uuid.New().String()
	}
	if m.CreatedAtNs == 0 {
		m.CreatedAtNs = time.Now().UnixNano()
	}

	query := `INSERT INTO dbh_measurements (` + measurementColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		m.MeasurementID,
		m.SourcePath,
		m.CenterX,
		m.CenterY,
		m.RadiusM,
		m.DBHM,
		m.BandLowM,
		m.BandHighM,
		m.GroundOffsetM,
		m.TotalPoints,
		m.SlicePoints,
		m.Iterations,
		m.RMSResidualM,
		m.Retried,
		nullString(m.Notes),
		m.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// Get returns the measurement with the given ID, or sql.ErrNoRows.
func (s *MeasurementStore) Get(id string) (*Measurement, error) {
	row := s.db.QueryRow(`SELECT `+measurementColumns+` FROM dbh_measurements WHERE measurement_id = ?`, id)
	m, err := scanMeasurement(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	return m, nil
}

// ListBySource returns all measurements of sourcePath, oldest first.
func (s *MeasurementStore) ListBySource(sourcePath string) ([]*Measurement, error) {
	query := `SELECT ` + measurementColumns + `
		FROM dbh_measurements
		WHERE source_path = ?
		ORDER BY created_at_ns, measurement_id`

	rows, err := s.db.Query(query, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []*Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a measurement by ID.
func (s *MeasurementStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM dbh_measurements WHERE measurement_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete measurement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete measurement rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(r rowScanner) (*Measurement, error) {
	m := &Measurement{}
	var notes sql.NullString
	err := r.Scan(
		&m.MeasurementID, &m.SourcePath, &m.CenterX, &m.CenterY, &m.RadiusM, &m.DBHM,
		&m.BandLowM, &m.BandHighM, &m.GroundOffsetM, &m.TotalPoints, &m.SlicePoints,
		&m.Iterations, &m.RMSResidualM, &m.Retried, &notes, &m.CreatedAtNs,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		m.Notes = notes.String
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
