// Package pipeline defines the fixed stage sequences for every job type and
// the stage implementations that run them.
package pipeline

import (
	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/jobs/runtime"
	"github.com/audisee/docx2daisy/internal/logger"
)

// Stage names. These double as the job status while the stage runs, so they
// are part of the externally observable state machine.
const (
	StageParseSource      = "parse-source"
	StageBuildModel       = "build-document-model"
	StageApplyMarkers     = "apply-markers"
	StageGenerateDaisy    = "generate-daisy"
	StageGenerateEpub     = "generate-epub"
	StagePackageArchive   = "package-archive"
	StageUnpackDaisy      = "unpack-daisy-archive"
	StageValidateDaisy    = "validate-daisy-structure"
	StageTranscodeToEpub  = "transcode-to-epub"
	StagePackageDaisyArch = "package-daisy-archive"
	StagePackageEpubArch  = "package-epub-archive"
)

type builder struct {
	log         *logger.Logger
	resultsRoot string
}

// NewRegistry builds the closed job-type → pipeline mapping. workRoot is the
// scratch area for in-flight runs; resultsRoot receives the packaged
// artifacts referenced from job records.
func NewRegistry(baseLog *logger.Logger, workRoot, resultsRoot string) *runtime.Registry {
	b := &builder{
		log:         baseLog.With("component", "Pipelines"),
		resultsRoot: resultsRoot,
	}

	reg := runtime.NewRegistry()

	reg.Register(runtime.Pipeline{
		Type:     jobs.TypeConvertToDaisy,
		WorkRoot: workRoot,
		Stages: []runtime.Stage{
			{Name: StageParseSource, Weight: 15, Message: "parsing source document", Run: b.parseSource},
			{Name: StageBuildModel, Weight: 15, Message: "building document model", Run: b.buildDocumentModel},
			{Name: StageApplyMarkers, Weight: 20, Message: "interpreting accessibility markers", Run: b.applyMarkers},
			{Name: StageGenerateDaisy, Weight: 30, Message: "generating DAISY fileset", Run: b.generateDaisy},
			{Name: StagePackageArchive, Weight: 20, Message: "packaging archive", Run: b.packageDaisy},
		},
	})

	reg.Register(runtime.Pipeline{
		Type:     jobs.TypeConvertToEpub,
		WorkRoot: workRoot,
		Stages: []runtime.Stage{
			{Name: StageParseSource, Weight: 15, Message: "parsing source document", Run: b.parseSource},
			{Name: StageBuildModel, Weight: 15, Message: "building document model", Run: b.buildDocumentModel},
			{Name: StageApplyMarkers, Weight: 20, Message: "interpreting accessibility markers", Run: b.applyMarkers},
			{Name: StageGenerateEpub, Weight: 30, Message: "generating EPUB3 layout", Run: b.generateEpub},
			{Name: StagePackageArchive, Weight: 20, Message: "packaging archive", Run: b.packageEpub},
		},
	})

	reg.Register(runtime.Pipeline{
		Type:     jobs.TypeDaisyToEpub,
		WorkRoot: workRoot,
		Stages: []runtime.Stage{
			{Name: StageUnpackDaisy, Weight: 20, Message: "unpacking DAISY archive", Run: b.unpackDaisy},
			{Name: StageValidateDaisy, Weight: 25, Message: "validating DAISY structure", Run: b.validateDaisy},
			{Name: StageTranscodeToEpub, Weight: 35, Message: "transcoding to EPUB3", Run: b.transcodeToEpub},
			{Name: StagePackageArchive, Weight: 20, Message: "packaging archive", Run: b.packageEpub},
		},
	})

	reg.Register(runtime.Pipeline{
		Type:     jobs.TypeFullPipeline,
		WorkRoot: workRoot,
		Stages: []runtime.Stage{
			{Name: StageParseSource, Weight: 10, Message: "parsing source document", Run: b.parseSource},
			{Name: StageBuildModel, Weight: 10, Message: "building document model", Run: b.buildDocumentModel},
			{Name: StageApplyMarkers, Weight: 10, Message: "interpreting accessibility markers", Run: b.applyMarkers},
			{Name: StageGenerateDaisy, Weight: 20, Message: "generating DAISY fileset", Run: b.generateDaisy},
			{Name: StagePackageDaisyArch, Weight: 10, Message: "packaging DAISY archive", Run: b.packageDaisy},
			{Name: StageValidateDaisy, Weight: 10, Message: "validating DAISY structure", Run: b.validateDaisy},
			{Name: StageTranscodeToEpub, Weight: 20, Message: "transcoding to EPUB3", Run: b.transcodeToEpub},
			{Name: StagePackageEpubArch, Weight: 10, Message: "packaging EPUB archive", Run: b.packageEpub},
		},
	})

	return reg
}
