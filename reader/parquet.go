// Package reader loads Apache Parquet files into typed relations. It is
// one implementation of the row-producing source the evaluators consume;
// callers with other storage plug in their own.
package reader

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/nshrivastav1512/rowset/row"
)

// Reader reads one parquet file and produces a typed relation.
//
// It keeps both the OS file handle and the parquet file handle so Close
// can release everything.
type Reader struct {
	file   *os.File
	pqFile *parquet.File
	schema row.Schema
}

// NewReader opens and validates a parquet file and infers its relation
// schema.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "failed to stat file")
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "failed to open parquet file")
	}

	schema, err := InferSchema(pqFile.Schema())
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &Reader{file: file, pqFile: pqFile, schema: schema}, nil
}

// Schema returns the inferred relation schema.
func (r *Reader) Schema() row.Schema {
	return r.schema
}

// ReadRelation reads every row into memory as a typed relation. The whole
// file is materialized, so very large files need a streaming caller
// instead.
func (r *Reader) ReadRelation() (row.Relation, error) {
	pq := parquet.NewReader(r.pqFile)
	defer func() { _ = pq.Close() }()

	var rows []row.Row
	for {
		raw := make(map[string]interface{})
		err := pq.Read(&raw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return row.Relation{}, errors.Wrap(err, "failed to read row")
		}
		typed, err := coerceRow(r.schema, raw)
		if err != nil {
			return row.Relation{}, row.Wrapf(err, "row %d", len(rows))
		}
		rows = append(rows, typed)
	}

	return row.Relation{Schema: r.schema, Rows: rows}, nil
}

// Close releases the reader's resources. Safe to call more than once.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	f := r.file
	r.file = nil
	return f.Close()
}

// ReadFile reads a single parquet file into a typed relation.
func ReadFile(path string) (row.Relation, error) {
	r, err := NewReader(path)
	if err != nil {
		return row.Relation{}, err
	}
	defer func() { _ = r.Close() }()
	return r.ReadRelation()
}

// ReadGlob reads every parquet file matching the pattern concurrently and
// concatenates their rows in lexical filename order, so the result does
// not depend on scheduling. All files must share one schema.
func ReadGlob(pattern string) (row.Relation, error) {
	if !strings.ContainsAny(pattern, "*?[]{}") {
		return ReadFile(pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return row.Relation{}, errors.Wrap(err, "invalid glob pattern")
	}
	if len(matches) == 0 {
		return row.Relation{}, errors.Newf("no files match pattern: %s", pattern)
	}
	sort.Strings(matches)

	relations := make([]row.Relation, len(matches))
	var g errgroup.Group
	for i, path := range matches {
		i, path := i, path
		g.Go(func() error {
			rel, err := ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", path)
			}
			relations[i] = rel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return row.Relation{}, err
	}

	out := relations[0]
	for i, rel := range relations[1:] {
		if !sameSchema(out.Schema, rel.Schema) {
			return row.Relation{}, row.TypeMismatchf(
				"%s has schema %v, %s declared %v", matches[i+1], rel.Schema.Names(), matches[0], out.Schema.Names())
		}
		out.Rows = append(out.Rows, rel.Rows...)
	}
	return out, nil
}

func sameSchema(a, b row.Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
