package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangedFilesUnion(t *testing.T) {
	e := Event{
		Type: TypePush,
		Commits: []Commit{
			{Revision: "a1", Added: []string{"src/main.go"}, Modified: []string{"README.md"}},
			{Revision: "b2", Modified: []string{"src/main.go", "src/util.go"}, Removed: []string{"old.go"}},
		},
	}
	assert.Equal(t, []string{"README.md", "old.go", "src/main.go", "src/util.go"}, e.ChangedFiles())
}

func TestChangedFilesEmpty(t *testing.T) {
	assert.Nil(t, Event{Type: TypePush}.ChangedFiles())
}
