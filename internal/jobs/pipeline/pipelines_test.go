package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/audisee/docx2daisy/internal/dtb"
	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/jobs/runtime"
	"github.com/audisee/docx2daisy/internal/logger"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func newMemStore() *memStore { return &memStore{jobs: make(map[string]*jobs.Job)} }

func (s *memStore) Put(_ context.Context, job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) Update(ctx context.Context, id string, mutate func(*jobs.Job) error) (*jobs.Job, error) {
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(j); err != nil {
		return nil, err
	}
	j.UpdatedAt = time.Now()
	if err := s.Put(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *memStore) FailedIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, j := range s.jobs {
		if j.Status == jobs.StatusFailed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type recorder struct {
	mu     sync.Mutex
	events []jobs.Event
}

func (r *recorder) record(j *jobs.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, jobs.EventOf(j))
}

func (r *recorder) JobQueued(j *jobs.Job)   { r.record(j) }
func (r *recorder) JobStarted(j *jobs.Job)  { r.record(j) }
func (r *recorder) JobProgress(j *jobs.Job) { r.record(j) }
func (r *recorder) JobFailed(j *jobs.Job)   { r.record(j) }
func (r *recorder) JobDone(j *jobs.Job)     { r.record(j) }

func (r *recorder) all() []jobs.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]jobs.Event, len(r.events))
	copy(out, r.events)
	return out
}

func writeSampleDocx(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	doc, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	fmt.Fprint(doc, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprint(doc, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	fmt.Fprint(doc, `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Chapter One</w:t></w:r></w:p>`)
	fmt.Fprint(doc, `<w:p><w:r><w:t>$#5 Body text with a $note{helpful note} inside.</w:t></w:r></w:p>`)
	fmt.Fprint(doc, `<w:p><w:r><w:t>Another paragraph.</w:t></w:r></w:p>`)
	fmt.Fprint(doc, `</w:body></w:document>`)
	require.NoError(t, zw.Close())
}

type env struct {
	reg         *runtime.Registry
	store       *memStore
	rec         *recorder
	resultsRoot string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	resultsRoot := t.TempDir()
	return &env{
		reg:         NewRegistry(log, t.TempDir(), resultsRoot),
		store:       newMemStore(),
		rec:         &recorder{},
		resultsRoot: resultsRoot,
	}
}

func (e *env) run(t *testing.T, job *jobs.Job) *jobs.Job {
	t.Helper()
	require.NoError(t, e.store.Put(context.Background(), job))

	log, err := logger.New("development")
	require.NoError(t, err)
	jc := runtime.NewContext(context.Background(), log, e.store, job, e.rec)

	pipe, ok := e.reg.Get(job.Type)
	require.True(t, ok, "pipeline registered for %s", job.Type)
	require.NoError(t, pipe.Run(jc))
	return jc.Job
}

func TestRegistryStageWeightsSumTo100(t *testing.T) {
	e := newEnv(t)
	for _, typ := range e.reg.Types() {
		pipe, ok := e.reg.Get(typ)
		require.True(t, ok)
		sum := 0
		for _, st := range pipe.Stages {
			sum += st.Weight
		}
		require.Equal(t, 100, sum, "weights for %s", typ)
	}
	require.Len(t, e.reg.Types(), 4)
}

func TestConvertToDaisyEndToEnd(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "book.docx")
	writeSampleDocx(t, src)

	job := e.run(t, &jobs.Job{
		ID:         "e2e-daisy",
		Type:       jobs.TypeConvertToDaisy,
		Status:     jobs.StatusQueued,
		SourcePath: src,
		Metadata:   jobs.Metadata{SourceFilename: "book.docx", Language: "ko"},
	})

	require.Equal(t, jobs.StatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Len(t, job.StageTimings, 5)
	for name, timing := range job.StageTimings {
		require.NotNil(t, timing.EndedAt, "stage %s timing must be closed", name)
	}

	out := job.Result["daisy"]
	require.Equal(t, filepath.Join(e.resultsRoot, "e2e-daisy_daisy.zip"), out)

	// The packaged archive holds a valid DAISY fileset.
	unpacked := t.TempDir()
	require.NoError(t, dtb.Unzip(out, unpacked))
	doc, err := dtb.ValidateDaisy(unpacked)
	require.NoError(t, err)
	require.Len(t, doc.Headings(), 1)
	require.Equal(t, "Chapter One", doc.Headings()[0].Text)

	last := -1
	for _, ev := range e.rec.all() {
		require.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}
}

func TestConvertToEpubEndToEnd(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "book.docx")
	writeSampleDocx(t, src)

	job := e.run(t, &jobs.Job{
		ID:         "e2e-epub",
		Type:       jobs.TypeConvertToEpub,
		Status:     jobs.StatusQueued,
		SourcePath: src,
		Metadata:   jobs.Metadata{SourceFilename: "book.docx"},
	})

	require.Equal(t, jobs.StatusFinished, job.Status)
	out := job.Result["epub"]
	require.Equal(t, filepath.Join(e.resultsRoot, "e2e-epub.epub"), out)

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	require.Equal(t, "mimetype", zr.File[0].Name)
	require.Equal(t, zip.Store, zr.File[0].Method)
}

func TestConvertFailsOnCorruptSource(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(src, []byte("not a zip at all"), 0o644))

	job := e.run(t, &jobs.Job{
		ID:         "e2e-broken",
		Type:       jobs.TypeConvertToDaisy,
		Status:     jobs.StatusQueued,
		SourcePath: src,
	})

	require.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	require.Equal(t, StageParseSource, job.Error.Stage)
	require.Nil(t, job.Result)

	events := e.rec.all()
	require.Equal(t, jobs.StatusFailed, events[len(events)-1].Status)
}

func TestDaisyToEpubEndToEnd(t *testing.T) {
	e := newEnv(t)

	// Build a DAISY archive the way the generator would.
	daisyDir := t.TempDir()
	doc := &dtb.Document{
		Title:    "Archived Book",
		Author:   "Someone",
		Language: "ko",
		Blocks: []dtb.Block{
			{Level: 1, Text: "Heading"},
			{Text: "Paragraph."},
		},
	}
	require.NoError(t, dtb.GenerateDaisy(doc, daisyDir))
	archive := filepath.Join(t.TempDir(), "book.zip")
	require.NoError(t, dtb.PackageZip(daisyDir, archive))

	job := e.run(t, &jobs.Job{
		ID:         "e2e-d2e",
		Type:       jobs.TypeDaisyToEpub,
		Status:     jobs.StatusQueued,
		SourcePath: archive,
	})

	require.Equal(t, jobs.StatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotEmpty(t, job.Result["epub"])
	require.FileExists(t, job.Result["epub"])
}

func TestDaisyToEpubRejectsNonDaisyArchive(t *testing.T) {
	e := newEnv(t)

	// A zip without an OPF is not a DAISY package.
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "random.txt"), []byte("hi"), 0o644))
	archive := filepath.Join(t.TempDir(), "notdaisy.zip")
	require.NoError(t, dtb.PackageZip(srcDir, archive))

	job := e.run(t, &jobs.Job{
		ID:         "e2e-notdaisy",
		Type:       jobs.TypeDaisyToEpub,
		Status:     jobs.StatusQueued,
		SourcePath: archive,
	})

	require.Equal(t, jobs.StatusFailed, job.Status)
	require.Equal(t, StageValidateDaisy, job.Error.Stage)
}

func TestFullPipelineEndToEnd(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(t.TempDir(), "book.docx")
	writeSampleDocx(t, src)

	job := e.run(t, &jobs.Job{
		ID:         "e2e-full",
		Type:       jobs.TypeFullPipeline,
		Status:     jobs.StatusQueued,
		SourcePath: src,
		Metadata:   jobs.Metadata{SourceFilename: "book.docx"},
	})

	require.Equal(t, jobs.StatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Len(t, job.StageTimings, 8)
	require.FileExists(t, job.Result["daisy"])
	require.FileExists(t, job.Result["epub"])
}
