package upload

import (
	"context"

	"busoptimizer/backend/internal/service/ingest"
)

type Importer interface {
	ImportMaster(ctx context.Context, filename string, data []byte) (ingest.MasterResult, error)
	ImportAttendance(ctx context.Context, filename string, data []byte, shift string) (ingest.AttendanceResult, error)
}
