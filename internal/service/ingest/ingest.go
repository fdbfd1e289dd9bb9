package ingest

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/service/attendance"
	"busoptimizer/backend/internal/service/reconcile"
	"busoptimizer/backend/internal/service/sheet"
)

const (
	KindMaster     = "master"
	KindAttendance = "attendance"
)

// Archiver keeps a copy of every uploaded workbook.
type Archiver interface {
	Save(ctx context.Context, kind, uploadID, filename string, data []byte) (string, error)
}

// Invalidator is told when committed data changed.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type MasterResult struct {
	UploadID        string `json:"upload_id"`
	SelectedSheet   string `json:"selected_sheet"`
	HeaderRowNumber int    `json:"header_row_number"`
	reconcile.Outcome
}

type AttendanceResult struct {
	UploadID        string `json:"upload_id"`
	SelectedSheet   string `json:"selected_sheet"`
	HeaderRowNumber int    `json:"header_row_number"`
	Shift           string `json:"shift"`
	attendance.Outcome
}

type Service struct {
	engine    *reconcile.Engine
	processor *attendance.Processor
	archive   Archiver
	cache     Invalidator
	log       logger.Logger
}

func NewService(engine *reconcile.Engine, processor *attendance.Processor, archive Archiver, cache Invalidator, log logger.Logger) *Service {
	return &Service{
		engine:    engine,
		processor: processor,
		archive:   archive,
		cache:     cache,
		log:       log.WithComponent("ingest"),
	}
}

func (s *Service) ImportMaster(ctx context.Context, filename string, data []byte) (MasterResult, error) {
	uploadID := uuid.NewString()

	table, err := locate(data, MasterTable)
	if err != nil {
		return MasterResult{}, err
	}
	s.save(ctx, KindMaster, uploadID, filename, data)

	out, err := s.engine.Reconcile(ctx, MasterRows(table))
	if err != nil {
		return MasterResult{}, errors.Wrap(err, "reconcile master list")
	}
	s.invalidate(ctx)

	s.log.WithFields(logger.Fields{
		"upload_id": uploadID,
		"file":      filename,
		"sheet":     table.SheetName,
		"header":    table.HeaderRow,
	}).Info("master list imported")

	return MasterResult{
		UploadID:        uploadID,
		SelectedSheet:   table.SheetName,
		HeaderRowNumber: table.HeaderRow,
		Outcome:         out,
	}, nil
}

// ImportAttendance records an attendance export. shift is an optional
// operator override applied to every row.
func (s *Service) ImportAttendance(ctx context.Context, filename string, data []byte, shift string) (AttendanceResult, error) {
	override, err := attendance.ParseShift(shift)
	if err != nil {
		return AttendanceResult{}, web.NewRequestError(err, http.StatusBadRequest)
	}

	uploadID := uuid.NewString()
	table, err := locate(data, AttendanceTable)
	if err != nil {
		return AttendanceResult{}, err
	}
	s.save(ctx, KindAttendance, uploadID, filename, data)

	out, err := s.processor.Process(ctx, AttendanceRows(table), override, filename)
	if err != nil {
		return AttendanceResult{}, errors.Wrap(err, "record attendance")
	}
	s.invalidate(ctx)

	s.log.WithFields(logger.Fields{
		"upload_id": uploadID,
		"file":      filename,
		"sheet":     table.SheetName,
		"header":    table.HeaderRow,
	}).Info("attendance imported")

	res := AttendanceResult{
		UploadID:        uploadID,
		SelectedSheet:   table.SheetName,
		HeaderRowNumber: table.HeaderRow,
		Outcome:         out,
	}
	if override != nil {
		res.Shift = string(*override)
	}
	return res, nil
}

// RecordScans stores a device batch and returns the acknowledged ids.
func (s *Service) RecordScans(ctx context.Context, scans []attendance.Scan, source string) ([]int64, error) {
	ids, err := s.processor.RecordScans(ctx, scans, source)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.invalidate(ctx)
	}
	return ids, nil
}

func locate(data []byte, cfg sheet.Config) (*sheet.Table, error) {
	table, err := sheet.Locate(data, cfg)
	switch {
	case errors.Is(err, sheet.ErrNoMatchingTable), errors.Is(err, sheet.ErrUnreadableWorkbook):
		return nil, web.NewRequestError(err, http.StatusBadRequest)
	case err != nil:
		return nil, errors.Wrap(err, "locate table")
	}
	return table, nil
}

func (s *Service) save(ctx context.Context, kind, uploadID, filename string, data []byte) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Save(ctx, kind, uploadID, filename, data); err != nil {
		s.log.WithError(err).WithField("upload_id", uploadID).Warn("archive upload failed")
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
