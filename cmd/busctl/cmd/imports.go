package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"busoptimizer/backend/internal/router"
	"busoptimizer/backend/internal/service/archive"
)

var importShift string

var importMasterCmd = &cobra.Command{
	Use:   "import-master <file>",
	Short: "Reconcile a master list workbook into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readWorkbook(args[0])
		if err != nil {
			return err
		}

		b, err := connect(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		services, err := router.NewServices(ctx, b.db, b.redis, b.cfg, b.log)
		if err != nil {
			return err
		}

		result, err := services.Ingest.ImportMaster(ctx, filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var importAttendanceCmd = &cobra.Command{
	Use:   "import-attendance <file>",
	Short: "Record the scans of an attendance workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readWorkbook(args[0])
		if err != nil {
			return err
		}

		b, err := connect(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		services, err := router.NewServices(ctx, b.db, b.redis, b.cfg, b.log)
		if err != nil {
			return err
		}

		result, err := services.Ingest.ImportAttendance(ctx, filepath.Base(args[0]), data, importShift)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func readWorkbook(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "workbook %s", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("workbook %s is a directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); !archive.InArray(ext, []string{".xlsx", ".xls"}) {
		return nil, errors.Wrap(archive.ErrInvalidFileType, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func init() {
	importAttendanceCmd.Flags().StringVar(&importShift, "shift", "morning", "shift of the scans: morning or night")

	rootCmd.AddCommand(importMasterCmd)
	rootCmd.AddCommand(importAttendanceCmd)
}
