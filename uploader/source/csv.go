package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/gzip"

	"github.com/sentinelkit/go-ingestutils/uploader/batch"
)

type fileUnit struct {
	path      string
	name      string
	delimiter rune
	logger    log.Logger
}

func (u fileUnit) TableName() string {
	return u.name
}

func (u fileUnit) Records(ctx context.Context) ([]batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readDelimitedFile(u.path, u.delimiter, u.logger)
}

// readDelimitedFile parses a header-first delimited file into records. The
// first row names the columns; shorter data rows simply omit the trailing
// fields (field sets may vary between records without error).
func readDelimitedFile(path string, delimiter rune, logger log.Logger) ([]batch.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Errorf("failed to close file: %s", err)
		}
	}(file)

	var content io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer func(gzReader *gzip.Reader) {
			err := gzReader.Close()
			if err != nil {
				logger.Errorf("failed to close gzip stream: %s", err)
			}
		}(gzReader)
		content = gzReader
	}

	reader := csv.NewReader(content)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records []batch.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		record := make(batch.Record, len(header))
		for i, column := range header {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}

	return records, nil
}
