package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDiff(t *testing.T) {
	t.Run("renders no changes message", func(t *testing.T) {
		assert.Equal(t, "No changes detected.", RenderDiff(nil, nil, nil))
	})

	t.Run("renders deployed components", func(t *testing.T) {
		result := RenderDiff([]string{"frontend com.acme:frontend:2.0.0"}, nil, nil)

		assert.Contains(t, result, "Deploy:")
		assert.Contains(t, result, "+ frontend com.acme:frontend:2.0.0")
		assert.Contains(t, result, "1 to deploy")
	})

	t.Run("renders undeployed components", func(t *testing.T) {
		result := RenderDiff(nil, []string{"legacy com.acme:legacy:1.0.0"}, nil)

		assert.Contains(t, result, "Undeploy:")
		assert.Contains(t, result, "- legacy com.acme:legacy:1.0.0")
		assert.Contains(t, result, "1 to undeploy")
	})

	t.Run("renders replaced components with their diff", func(t *testing.T) {
		modified := []ModifiedItem{
			{Name: "backend", Diff: "artifact\n  ± value change\n    - 1.0.0\n    + 1.1.0"},
		}
		result := RenderDiff(nil, nil, modified)

		assert.Contains(t, result, "Replace:")
		assert.Contains(t, result, "~ backend")
		assert.Contains(t, result, "    artifact")
		assert.Contains(t, result, "1 replaced")
	})

	t.Run("undeploy is listed before deploy", func(t *testing.T) {
		result := RenderDiff([]string{"b"}, []string{"a"}, nil)

		assert.Less(t, strings.Index(result, "Undeploy:"), strings.Index(result, "Deploy:\n"))
		assert.Contains(t, result, "1 to deploy, 1 to undeploy")
	})
}

func TestDiffSummary(t *testing.T) {
	tests := []struct {
		name     string
		added    int
		removed  int
		modified int
		want     string
	}{
		{"no changes", 0, 0, 0, "No changes"},
		{"only added", 1, 0, 0, "1 to deploy"},
		{"only removed", 0, 2, 0, "2 to undeploy"},
		{"only modified", 0, 0, 3, "3 replaced"},
		{"all types", 1, 2, 3, "1 to deploy, 2 to undeploy, 3 replaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diffSummary(tt.added, tt.removed, tt.modified))
		})
	}
}

func TestIndentDiff(t *testing.T) {
	t.Run("indents each line", func(t *testing.T) {
		assert.Equal(t, "    line1\n    line2\n", IndentDiff("line1\nline2", "    "))
	})

	t.Run("skips empty lines", func(t *testing.T) {
		assert.Equal(t, "  line1\n  line2\n", IndentDiff("line1\n\nline2", "  "))
	})

	t.Run("returns empty for empty input", func(t *testing.T) {
		assert.Empty(t, IndentDiff("", "    "))
	})
}
