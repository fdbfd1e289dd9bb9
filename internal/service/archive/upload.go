package archive

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidFileType = errors.New("only .xlsx and .xls workbooks are accepted")

var expectedContentType = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
	"application/octet-stream",
}

func InArray[T comparable](val T, array []T) bool {
	for _, v := range array {
		if val == v {
			return true
		}
	}
	return false
}

// ReadUpload reads a multipart workbook into memory, refusing files larger
// than maxBytes.
func ReadUpload(file *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if file == nil {
		return nil, errors.New("file is required")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		return nil, ErrInvalidFileType
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && !InArray(ct, expectedContentType) {
		return nil, ErrInvalidFileType
	}
	if maxBytes > 0 && file.Size > maxBytes {
		return nil, errors.Errorf("file is larger than %d bytes", maxBytes)
	}

	src, err := file.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open upload")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	return data, nil
}
