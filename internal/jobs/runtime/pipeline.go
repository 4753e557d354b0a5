package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/audisee/docx2daisy/internal/dtb"
)

// Artifact is what flows between stages: the current input file, the run's
// scratch directory, the in-memory document model once built, and the named
// result locations accumulated so far.
type Artifact struct {
	SourcePath string
	WorkDir    string
	Doc        *dtb.Document
	// StageDir holds the fileset produced by the latest generation stage,
	// ready for packaging.
	StageDir string
	Outputs  map[string]string
}

// StageFunc transforms the prior stage's artifact into a new one, or fails
// with a stage-scoped error.
type StageFunc func(jc *Context, art *Artifact) (*Artifact, error)

// Stage is the static descriptor of one transformation step: its name, the
// share of overall progress credited when it completes, the human-readable
// activity message shown while it runs, and the step itself.
type Stage struct {
	Name    string
	Weight  int
	Message string
	Run     StageFunc
}

// Pipeline is the fixed, ordered stage sequence for one job type. Stage
// weights sum to 100.
type Pipeline struct {
	Type     string
	Stages   []Stage
	WorkRoot string
}

// Run executes the stages strictly in order, publishing a transition after
// every one. On the first stage failure the record is marked failed and the
// remaining stages never run. Run itself only returns an error for
// infrastructure problems setting up the scratch directory.
func (p Pipeline) Run(jc *Context) error {
	workDir := filepath.Join(p.WorkRoot, jc.Job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	jc.MarkStarted()

	art := &Artifact{
		SourcePath: jc.Job.SourcePath,
		WorkDir:    workDir,
		Outputs:    make(map[string]string),
	}

	for _, stage := range p.Stages {
		jc.StageRunning(stage.Name, stage.Message)
		next, err := runStage(stage, jc, art)
		if err != nil {
			jc.Fail(stage.Name, err)
			return nil
		}
		jc.StageDone(stage.Name, stage.Weight)
		art = next
	}

	jc.Succeed(art.Outputs)
	return nil
}

// runStage isolates a stage panic as that stage's failure so the worker loop
// survives misbehaving inputs.
func runStage(stage Stage, jc *Context, art *Artifact) (out *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return stage.Run(jc, art)
}
