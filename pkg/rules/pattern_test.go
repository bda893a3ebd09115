package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobPatternDefault(t *testing.T) {
	assert.True(t, NewPattern("main").Matches("main"))
	assert.True(t, NewPattern("glob:release/*").Matches("release/1.2"))
	assert.False(t, NewPattern("release/*").Matches("hotfix/1.2"))
	assert.True(t, PatternAll.Matches("anything"))
}

func TestSemverPattern(t *testing.T) {
	p := NewPattern("semver:>=1.0.0 <2.0.0")
	assert.True(t, p.Valid())
	assert.True(t, p.Matches("1.4.2"))
	assert.True(t, p.Matches("v1.4.2"))
	assert.False(t, p.Matches("2.0.0"))
	assert.False(t, p.Matches("not-a-version"))
}

func TestRegexpPattern(t *testing.T) {
	p := NewPattern("regexp:^feature/")
	assert.True(t, p.Valid())
	assert.True(t, p.Matches("feature/login"))
	assert.False(t, p.Matches("bugfix/login"))

	alt := NewPattern("regex:^v[0-9]+$")
	assert.True(t, alt.Matches("v42"))
}
