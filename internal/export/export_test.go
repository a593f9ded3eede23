package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stlcpilot/internal/document"
	"stlcpilot/internal/stage"
)

func TestExport_Completeness(t *testing.T) {
	doc := document.New()
	doc.ProjectName = "Checkout"
	doc.Requirements = []string{"R1", "R2"}
	doc.StageOutputs[stage.TestPlanning] = "Plan A"

	artifacts := Export(doc)

	require.Len(t, artifacts, 2)
	assert.Contains(t, artifacts[RequirementsArtifact], "R1")
	assert.Contains(t, artifacts[RequirementsArtifact], "R2")
	assert.Contains(t, artifacts["Test_Plan"], "Plan A")
}

func TestExport_Rendering(t *testing.T) {
	doc := document.New()
	doc.ProjectName = "Checkout"
	doc.Requirements = []string{"R1", "R2"}
	doc.StageOutputs[stage.TestPlanning] = "  Plan A\n\n* keep *as is*\n"
	doc.StageOutputs[stage.TestClosure] = "done"

	artifacts := Export(doc)

	assert.Equal(t, "# Project Requirement for Checkout\n\n## Requirements\nR1\nR2", artifacts[RequirementsArtifact])
	assert.Equal(t, "# Test Plan for Checkout\n\n  Plan A\n\n* keep *as is*\n", artifacts["Test_Plan"])
	assert.Equal(t, "# Test Closure Summary for Checkout\n\ndone", artifacts["Test_Closure"])
}

func TestExport_EmptyDocument(t *testing.T) {
	assert.Empty(t, Export(document.New()))
}

func TestExport_SkipsEmptyOutputs(t *testing.T) {
	doc := document.New()
	doc.StageOutputs[stage.TestCaseDevelopment] = ""

	assert.Empty(t, Export(doc))
}

func TestExport_Deterministic(t *testing.T) {
	doc := document.New()
	doc.ProjectName = "Checkout"
	doc.Requirements = []string{"R1"}
	doc.StageOutputs[stage.RequirementAnalysis] = "analysis"
	doc.StageOutputs[stage.TestExecution] = "run it"

	assert.Equal(t, Export(doc), Export(doc))
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "Test_Environment", ArtifactName(stage.TestEnvironmentSetup))
	assert.Equal(t, "Requirement_Analysis", ArtifactName(stage.RequirementAnalysis))
	assert.Empty(t, ArtifactName(stage.ProjectInit))
	assert.Empty(t, ArtifactName(stage.Done))
}

func TestDirSink_Write(t *testing.T) {
	tmpDir := t.TempDir()
	sink := NewDirSink(tmpDir)

	paths, err := sink.Write(context.Background(), "sess-1", map[string]string{
		"Test_Plan":          "# Test Plan for X\n\nplan",
		RequirementsArtifact: "reqs",
	})

	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(tmpDir, "sess-1", "Project_Requirements.md"),
		filepath.Join(tmpDir, "sess-1", "Test_Plan.md"),
	}, paths)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "# Test Plan for X\n\nplan", string(data))

	entries, err := os.ReadDir(filepath.Join(tmpDir, "sess-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestDirSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths, err := NewDirSink(t.TempDir()).Write(ctx, "s", map[string]string{"A": "a"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, paths)
}
