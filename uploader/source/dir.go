package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DirParams ...
type DirParams struct {
	// Dir is the directory whose files are uploaded. Not recursive.
	Dir string
	// TableName, when set, is reused for every file in the directory: all
	// files land in the same table. When empty, each file gets its own table
	// name derived from its file name. This asymmetry is a deliberate policy,
	// not an oversight.
	TableName string
	// Delimiter is the value separator. Zero means comma.
	Delimiter rune
}

// FromDir resolves every matching file in a directory into a Unit. With the
// default comma delimiter only *.csv files are selected; any other delimiter
// selects all files, since non-csv separators imply non-csv extensions.
func (r Resolver) FromDir(params DirParams) ([]Unit, error) {
	if params.Dir == "" {
		return nil, fmt.Errorf("directory path should not be empty")
	}

	delimiter := delimiterOrDefault(params.Delimiter)
	pattern := "*"
	if delimiter == defaultDelimiter {
		pattern = "*.csv"
	}

	matches, err := doublestar.Glob(os.DirFS(params.Dir), pattern, doublestar.WithNoFollow())
	if err != nil {
		return nil, fmt.Errorf("enumerate %s in %s: %w", pattern, params.Dir, err)
	}

	var units []Unit
	for _, match := range matches {
		path := filepath.Join(params.Dir, match)
		info, err := os.Stat(path)
		if err != nil {
			r.logger.Warnf("Skipping %s: %s", path, err)
			continue
		}
		if info.IsDir() {
			continue
		}

		tableName := params.TableName
		if tableName == "" {
			tableName = TableNameFromPath(path)
		}

		units = append(units, fileUnit{
			path:      path,
			name:      tableName,
			delimiter: delimiter,
			logger:    r.logger,
		})
	}

	return units, nil
}
