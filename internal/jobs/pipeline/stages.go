package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audisee/docx2daisy/internal/dtb"
	"github.com/audisee/docx2daisy/internal/jobs/runtime"
	"github.com/audisee/docx2daisy/internal/markers"
)

// parseSource opens the uploaded .docx and extracts paragraphs plus core
// document properties. Core-property title/author take precedence over the
// submitted metadata when the document carries them, matching how producers
// usually get better metadata from the file itself than from the form.
func (b *builder) parseSource(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	doc, err := dtb.ParseDocx(art.SourcePath)
	if err != nil {
		return nil, err
	}
	meta := jc.Job.Metadata
	if doc.Title == "" {
		doc.Title = meta.Title
	}
	if doc.Author == "" {
		doc.Author = meta.Author
	}
	doc.Publisher = meta.Publisher
	doc.Language = meta.Language
	art.Doc = doc
	return art, nil
}

// buildDocumentModel derives the structural model: heading levels from
// paragraph styles and fallback metadata.
func (b *builder) buildDocumentModel(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.Doc == nil {
		return nil, fmt.Errorf("no parsed document available")
	}
	dtb.AssignLevels(art.Doc)
	if art.Doc.Title == "" {
		base := filepath.Base(jc.Job.Metadata.SourceFilename)
		art.Doc.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if art.Doc.Language == "" {
		art.Doc.Language = "ko"
	}
	return art, nil
}

// applyMarkers strips the $-marker syntax from every block and records the
// interpreted markers on the model for the generators.
func (b *builder) applyMarkers(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.Doc == nil {
		return nil, fmt.Errorf("no document model available")
	}
	for i := range art.Doc.Blocks {
		blk := &art.Doc.Blocks[i]
		cleaned, found := markers.Process(blk.Text)
		blk.Text = strings.TrimSpace(cleaned)
		blk.Markers = found
	}
	return art, nil
}

func (b *builder) generateDaisy(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	dir := filepath.Join(art.WorkDir, "daisy")
	if err := dtb.GenerateDaisy(art.Doc, dir); err != nil {
		return nil, err
	}
	art.StageDir = dir
	return art, nil
}

func (b *builder) generateEpub(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	dir := filepath.Join(art.WorkDir, "epub")
	if err := dtb.GenerateEPUB(art.Doc, dir); err != nil {
		return nil, err
	}
	art.StageDir = dir
	return art, nil
}

// packageDaisy zips the generated DAISY fileset into the results directory
// and records it as the named output.
func (b *builder) packageDaisy(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.StageDir == "" {
		return nil, fmt.Errorf("no generated fileset to package")
	}
	out := filepath.Join(b.resultsRoot, jc.Job.ID+"_daisy.zip")
	if err := dtb.PackageZip(art.StageDir, out); err != nil {
		return nil, err
	}
	art.Outputs["daisy"] = out
	return art, nil
}

func (b *builder) packageEpub(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.StageDir == "" {
		return nil, fmt.Errorf("no generated fileset to package")
	}
	out := filepath.Join(b.resultsRoot, jc.Job.ID+".epub")
	if err := dtb.PackageEPUB(art.StageDir, out); err != nil {
		return nil, err
	}
	art.Outputs["epub"] = out
	return art, nil
}

// unpackDaisy extracts an uploaded DAISY zip for validation and transcoding.
func (b *builder) unpackDaisy(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	dir := filepath.Join(art.WorkDir, "unpacked")
	if err := dtb.Unzip(art.SourcePath, dir); err != nil {
		return nil, err
	}
	art.StageDir = dir
	return art, nil
}

// validateDaisy checks the fileset currently in StageDir and loads its model
// for the transcoder.
func (b *builder) validateDaisy(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.StageDir == "" {
		return nil, fmt.Errorf("no DAISY fileset to validate")
	}
	doc, err := dtb.ValidateDaisy(art.StageDir)
	if err != nil {
		return nil, err
	}
	art.Doc = doc
	return art, nil
}

// transcodeToEpub regenerates the validated DAISY model as an EPUB3 layout.
func (b *builder) transcodeToEpub(jc *runtime.Context, art *runtime.Artifact) (*runtime.Artifact, error) {
	if art.Doc == nil {
		return nil, fmt.Errorf("no validated document model available")
	}
	dir := filepath.Join(art.WorkDir, "epub")
	if err := dtb.GenerateEPUB(art.Doc, dir); err != nil {
		return nil, err
	}
	art.StageDir = dir
	return art, nil
}
