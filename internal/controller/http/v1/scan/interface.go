package scan

import (
	"context"

	"busoptimizer/backend/internal/service/attendance"
)

type Recorder interface {
	RecordScans(ctx context.Context, scans []attendance.Scan, source string) ([]int64, error)
}
