package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/errs"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestMatchValidation(t *testing.T) {
	doc := &document.Document{Name: "cv.pdf", ContentType: document.ContentTypePDF, Data: samplePDF}

	tests := []struct {
		name    string
		req     MatchRequest
		message string
	}{
		{name: "text blank job", req: TextMatch{ResumeText: "Go dev", JobDescription: "   "}, message: "Please fill in both fields"},
		{name: "text blank resume", req: TextMatch{ResumeText: "", JobDescription: "Go"}, message: "Please fill in both fields"},
		{name: "file missing", req: FileMatch{JobDescription: "Go"}, message: "Please upload a PDF and enter job description"},
		{name: "file blank job", req: FileMatch{Resume: doc, JobDescription: "\n"}, message: "Please upload a PDF and enter job description"},
		{name: "file wrong type", req: FileMatch{Resume: &document.Document{Name: "cv.txt", ContentType: "text/plain", Data: []byte("x")}, JobDescription: "Go"}, message: "Only PDF files are supported"},
		{name: "batch mismatch", req: BatchMatch{Resumes: []string{"a", "b"}, JobDescriptions: []string{"c"}}, message: "Number of resumes (2) must match number of job descriptions (1)"},
		{name: "multi top_k too large", req: MultiJobMatch{ResumeText: "a", JobDescriptions: []string{"b"}, TopK: 2}, message: "top_k must be between 1 and 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("no request expected")
			}, nil)

			_, err := c.Match(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrValidation))
			assert.Equal(t, tt.message, errs.Message(err))
			assert.Zero(t, atomic.LoadInt32(hits))
		})
	}
}

func TestBatchValidationEmpty(t *testing.T) {
	err := BatchMatch{}.Validate()
	require.Error(t, err)

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Fields, "resumes")
	assert.Contains(t, e.Fields, "job_descriptions")

	err = BatchMatch{Resumes: []string{"ok", " "}, JobDescriptions: []string{"a", "b"}}.Validate()
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Fields, "resumes[1]")
}

func TestMatchText(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathMatch, r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))

		var body TextMatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Python developer with 5 years", body.ResumeText)
		assert.Equal(t, "Looking for Python developer", body.JobDescription)

		writeJSON(t, w, http.StatusOK, MatchResult{MatchScore: 0.82, ProcessedResumeTokens: 5, ProcessedJobTokens: 4})
	}, nil)

	resp, err := c.Match(context.Background(), TextMatch{
		ResumeText:     "Python developer with 5 years",
		JobDescription: "Looking for Python developer",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Single)
	assert.Nil(t, resp.Batch)
	assert.Nil(t, resp.MultiJob)
	assert.InDelta(t, 0.82, resp.Single.MatchScore, 1e-9)
	assert.Equal(t, 5, resp.Single.ProcessedResumeTokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestMatchTextNegativeTokens(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, MatchResult{MatchScore: 0.5, ProcessedResumeTokens: -1})
	}, nil)

	_, err := c.MatchText(context.Background(), TextMatch{ResumeText: "a", JobDescription: "b"})
	assert.True(t, errors.Is(err, errs.ErrNetworkOrServer))
}

func TestUploadAndMatchMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathUploadMatch, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "Looking for Go", r.FormValue("job_description"))

		file, header, err := r.FormFile("resume_file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "cv.pdf", header.Filename)
		assert.Equal(t, document.ContentTypePDF, header.Header.Get("Content-Type"))

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, samplePDF, data)

		writeJSON(t, w, http.StatusOK, MatchResult{MatchScore: 0.41, ProcessedResumeTokens: 10, ProcessedJobTokens: 3})
	}, nil)

	res, err := c.UploadAndMatch(context.Background(), FileMatch{
		Resume:         &document.Document{Name: "cv.pdf", ContentType: document.ContentTypePDF, Data: samplePDF},
		JobDescription: "Looking for Go",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.41, res.MatchScore, 1e-9)
}

func TestUploadResume(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathUploadResume, r.URL.Path)
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "cv.pdf", header.Filename)

		writeJSON(t, w, http.StatusOK, UploadedResume{Filename: "cv.pdf", SizeBytes: int64(len(samplePDF)), ExtractedTextLength: 120})
	}, nil)

	res, err := c.UploadResume(context.Background(), &document.Document{Name: "cv.pdf", ContentType: document.ContentTypePDF, Data: samplePDF})
	require.NoError(t, err)
	assert.Equal(t, 120, res.ExtractedTextLength)

	_, err = c.UploadResume(context.Background(), nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestBatchMatchDecodesRows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body BatchMatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Resumes, 2)

		_, _ = w.Write([]byte(`{
			"total_processed": 2,
			"successful": 1,
			"failed": 1,
			"processing_time_seconds": 0.25,
			"results": [
				{"index": 0, "success": true, "match_score": 0.73, "resume_tokens": 12, "job_tokens": 8},
				{"index": 1, "success": false, "error": "Empty resume"}
			]
		}`))
	}, nil)

	resp, err := c.Match(context.Background(), BatchMatch{
		Resumes:         []string{"r1", "r2"},
		JobDescriptions: []string{"j1", "j2"},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Batch)

	res := resp.Batch
	assert.Equal(t, 2, res.TotalProcessed)
	require.Len(t, res.Results, 2)

	first := res.Results[0]
	assert.True(t, first.Success)
	require.NotNil(t, first.MatchScore)
	assert.InDelta(t, 0.73, *first.MatchScore, 1e-9)
	require.NotNil(t, first.ResumeTokens)
	assert.Equal(t, 12, *first.ResumeTokens)

	second := res.Results[1]
	assert.Equal(t, 1, second.Index)
	assert.False(t, second.Success)
	assert.Nil(t, second.MatchScore)
	assert.Equal(t, "Empty resume", second.Error)

	path, err := res.DumpToTmpFile()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_processed": 2`)
}

func TestMultiJobMatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasTopK := raw["top_k"]
		assert.False(t, hasTopK, "unset top_k must be omitted")

		writeJSON(t, w, http.StatusOK, MultiJobResult{
			TotalJobs: 2,
			Matches: []JobMatch{
				{JobIndex: 1, MatchScore: 0.9, JobPreview: "Senior Go"},
				{JobIndex: 0, MatchScore: 0.3, JobPreview: "Java"},
			},
		})
	}, nil)

	resp, err := c.Match(context.Background(), MultiJobMatch{ResumeText: "Go", JobDescriptions: []string{"Java", "Senior Go"}})
	require.NoError(t, err)
	require.NotNil(t, resp.MultiJob)
	assert.Equal(t, 2, resp.MultiJob.TotalJobs)
	assert.Equal(t, 1, resp.MultiJob.Matches[0].JobIndex)
}

func TestMatchNilRequest(t *testing.T) {
	c := New(nil, "", nil)
	_, err := c.Match(context.Background(), nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
