package batch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/batchfs/internal/fileops"
)

func TestSummarize(t *testing.T) {
	read := fileops.Operation{Type: fileops.KindRead, Path: "/a", Encoding: fileops.EncodingUTF8}
	del := fileops.Operation{Type: fileops.KindDelete, Path: "/b"}

	outcomes := []*Outcome{
		NewSuccessOutcome(read, &fileops.Result{Type: read.Type, Path: read.Path, Success: true, Attempt: 1}),
		NewFailureOutcome(del, fileops.NewError(del, errors.New("boom"))),
		nil,
	}

	s := summarize(outcomes)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Attempted)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "/a", s.Results[0].Path)
	assert.Equal(t, fileops.CodeExecutionFailed, s.Errors[0].Code)
	assert.Equal(t, "delete /b: boom", s.Errors[0].Error)
}

func TestFormatSummary(t *testing.T) {
	s := summarize(make([]*Outcome, 2))
	s.BatchID = "b-1"
	s.State = StateStoppedEarly

	out, err := FormatSummary(s)
	require.NoError(t, err)

	assert.Contains(t, out, "\n  \"batchId\": \"b-1\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "stopped_early", decoded["state"])
	assert.InDelta(t, 2, decoded["total"], 0)
	assert.InDelta(t, 0, decoded["attempted"], 0)
	assert.Equal(t, []any{}, decoded["results"])
	assert.Equal(t, []any{}, decoded["errors"])
}

func TestFormatSummary_FailureRecord(t *testing.T) {
	op := fileops.Operation{Type: fileops.KindCopy, Path: "/src", Encoding: fileops.EncodingUTF8}
	s := summarize([]*Outcome{NewFailureOutcome(op, fileops.NewError(op, fileops.ErrDestinationRequired))})

	out, err := FormatSummary(s)
	require.NoError(t, err)

	var decoded struct {
		Errors []struct {
			Operation struct {
				Type string `json:"type"`
				Path string `json:"path"`
			} `json:"operation"`
			Error  string `json:"error"`
			Code   string `json:"code"`
			Status string `json:"status"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "copy", decoded.Errors[0].Operation.Type)
	assert.Equal(t, "/src", decoded.Errors[0].Operation.Path)
	assert.Equal(t, "INVALID_INPUT", decoded.Errors[0].Code)
	assert.Equal(t, "failed", decoded.Errors[0].Status)
	assert.Contains(t, decoded.Errors[0].Error, "destination is required")
}
