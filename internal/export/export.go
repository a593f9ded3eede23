// Package export renders a session document into named markdown artifacts.
//
// [Export] is a pure function over the document. Writing the result anywhere
// is the job of a [Sink]; [DirSink] writes one markdown file per artifact.
package export

import (
	"sort"
	"strings"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
)

// RequirementsArtifact is the artifact name for the project requirements.
const RequirementsArtifact = "Project_Requirements"

type artifactTemplate struct {
	name    string
	heading string
}

// templates maps each exported stage to its artifact name and heading prefix.
var templates = map[stage.Stage]artifactTemplate{
	stage.RequirementAnalysis:  {name: "Requirement_Analysis", heading: "Requirement Analysis"},
	stage.TestPlanning:         {name: "Test_Plan", heading: "Test Plan"},
	stage.TestCaseDevelopment:  {name: "Test_Cases", heading: "Test Cases"},
	stage.TestEnvironmentSetup: {name: "Test_Environment", heading: "Test Environment Setup"},
	stage.TestExecution:        {name: "Test_Execution", heading: "Test Execution Strategy"},
	stage.TestClosure:          {name: "Test_Closure", heading: "Test Closure Summary"},
}

// ArtifactName returns the artifact name used for stage s, or "" if the stage
// is never exported.
func ArtifactName(s stage.Stage) string {
	return templates[s].name
}

// Export renders doc into a mapping from artifact name to markdown text.
//
// The requirements artifact is present iff doc has requirements. Every other
// artifact is present iff the matching stage output is non-empty. Stage
// content is copied verbatim after a heading naming the stage and project.
func Export(doc document.Document) map[string]string {
	out := make(map[string]string)

	if len(doc.Requirements) > 0 {
		var b strings.Builder
		b.WriteString("# Project Requirement for ")
		b.WriteString(doc.ProjectName)
		b.WriteString("\n\n## Requirements\n")
		b.WriteString(strings.Join(doc.Requirements, "\n"))
		out[RequirementsArtifact] = b.String()
	}

	for _, s := range stage.All() {
		tmpl, ok := templates[s]
		if !ok {
			continue
		}
		content := doc.StageOutputs[s]
		if content == "" {
			continue
		}
		out[tmpl.name] = "# " + tmpl.heading + " for " + doc.ProjectName + "\n\n" + content
	}

	return out
}

// Names returns the artifact names in artifacts, sorted.
func Names(artifacts map[string]string) []string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
