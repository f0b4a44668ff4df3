package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/edaniels/lidario"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

// WriteLAS stores cloud as a LAS 1.3 file with point format 0. Coordinates
// are quantized to 0.1 mm by the LAS integer encoding.
func WriteLAS(path string, cloud lidar.PointCloud) error {
	if len(cloud) == 0 {
		return errors.New("cannot write an empty point cloud to LAS")
	}

	lf, err := lidario.NewLasFile(path, "w")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	closed := false
	defer func() {
		if !closed {
			lf.Close()
		}
	}()

	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: 0}); err != nil {
		return fmt.Errorf("write LAS header: %w", err)
	}
	for i, p := range cloud {
		rec := &lidario.PointRecord0{
			X: p.X,
			Y: p.Y,
			Z: p.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			ClassBitField: lidario.ClassificationBitField{Value: 0},
			PointSourceID: 1,
		}
		if err := lf.AddLasPoint(rec); err != nil {
			return fmt.Errorf("add point %d: %w", i, err)
		}
	}

	closed = true
	if err := lf.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

// WriteXYZ writes one "x y z" record per line at full float64 precision.
func WriteXYZ(w io.Writer, cloud lidar.PointCloud) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 96)
	for _, p := range cloud {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, p.X, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Y, 'g', -1, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, p.Z, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
