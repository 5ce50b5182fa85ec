package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(imageCmd.Use, "image"))
	assert.NotEmpty(t, imageCmd.Short)
	assert.Same(t, imageCmd, GetImageCommand())

	for _, name := range []string{"format", "output", "headers", "headers-file", "engine", "workers", "raw", "include-extents", "recursive", "include", "exclude"} {
		assert.NotNil(t, imageCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestImageCommand_WholePageFragments(t *testing.T) {
	isolate(t)
	img, frags := sampleInputs(t)

	out, err := execute(t, nil, "image", img, "--whole-page", "--fragments-file", frags, "--format", "csv")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 5)
	assert.Equal(t, "Item,Qty,Price", got[0])
	assert.Equal(t, "Pears,12,0.80", got[3])
}

func TestImageCommand_Extents(t *testing.T) {
	isolate(t)
	img, frags := sampleInputs(t)

	out, err := execute(t, nil, "image", img, "--whole-page", "--fragments-file", frags,
		"--format", "csv", "--include-extents")
	require.NoError(t, err)
	assert.Equal(t, "Item,Qty,Price,row_min_x,row_max_x,row_min_y,row_max_y", lines(out)[0])
}

func TestImageCommand_MultipleFiles(t *testing.T) {
	isolate(t)
	img, frags := sampleInputs(t)

	out, err := execute(t, nil, "image", img, img, "--whole-page", "--fragments-file", frags, "--workers", "2")
	require.NoError(t, err)

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, img, r.File)
		assert.Equal(t, []string{"Item", "Qty", "Price"}, r.Result.Table.Columns)
	}

	out, err = execute(t, nil, "image", img, img, "--whole-page", "--fragments-file", frags, "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "# "+img+"\n"))
}

func TestImageCommand_Directory(t *testing.T) {
	isolate(t)
	img, frags := sampleInputs(t)
	dir := filepath.Dir(img)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	out, err := execute(t, nil, "image", dir, "--whole-page", "--fragments-file", frags, "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Item,Qty,Price", lines(out)[0])

	_, err = execute(t, nil, "image", dir, "--whole-page", "--fragments-file", frags, "--exclude", "*.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestImageCommand_Errors(t *testing.T) {
	isolate(t)
	_, frags := sampleInputs(t)

	_, err := execute(t, nil, "image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input files")

	require.NoError(t, os.WriteFile("notes.txt", []byte("x"), 0o600))
	_, err = execute(t, nil, "image", "notes.txt", "--whole-page", "--fragments-file", frags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")

	_, err = execute(t, nil, "image", "/non/existent/file.png", "--whole-page", "--fragments-file", frags)
	assert.Error(t, err)
}

func TestImageCommand_MissingModel(t *testing.T) {
	dir := isolate(t)
	img, frags := sampleInputs(t)

	_, err := execute(t, nil, "image", img, "--fragments-file", frags, "--models-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector model not found")
}

func TestFormatImageResults(t *testing.T) {
	res := &pipeline.TableResult{
		Found: true,
		Table: table.Grid{Columns: []string{"A"}, Rows: [][]table.Value{{table.Str("1")}}},
		Raw:   table.Grid{Columns: []string{"column 1"}, Rows: [][]table.Value{{table.Str("1")}}},
	}

	out, err := formatImageResults([]string{"a.png", "b.png"}, []*pipeline.TableResult{res, nil},
		pipeline.OutputOptions{Format: pipeline.FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "# a.png\nA\n1\n", out)

	_, err = formatImageResults([]string{"a.png"}, []*pipeline.TableResult{nil}, pipeline.OutputOptions{})
	assert.Error(t, err)
}
