package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testContext() Context {
	return Context{
		RefServices: {
			"api": map[string]interface{}{
				"container": map[string]interface{}{
					"name": "api-1",
					"port": 8080,
				},
				"domain": "api.example.com",
			},
		},
		RefProjects: {
			"shop": map[string]interface{}{
				"name": "shop",
			},
		},
		RefEnv: {
			"REGION": "eu-west-1",
		},
	}
}

func TestParseCollectsAllReferences(t *testing.T) {
	result := Parse("http://${services.api.domain}:${services.api.container.port}/")
	assert.True(t, result.Valid)
	assert.Len(t, result.References, 2)
	assert.Equal(t, "services.api.domain", result.References[0].String())
	assert.Equal(t, "services.api.container.port", result.References[1].String())
}

func TestParseInvalidReferenceDoesNotStopScan(t *testing.T) {
	result := Parse("${bogus.api}${env.REGION}${services..x}")
	assert.False(t, result.Valid)
	// the valid middle reference survives either bad neighbour
	assert.Len(t, result.References, 1)
	assert.Equal(t, "env.REGION", result.References[0].String())
	assert.Len(t, result.Errors, 2)
	for _, e := range result.Errors {
		assert.Equal(t, ErrInvalidReference, e.Kind)
	}
}

func TestParseUnbalancedBraces(t *testing.T) {
	result := Parse("prefix ${env.REGION} and ${env.ZONE")
	assert.False(t, result.Valid)
	assert.Len(t, result.References, 1)
	if assert.Len(t, result.Errors, 1) {
		assert.Equal(t, ErrSyntax, result.Errors[0].Kind)
		assert.Equal(t, 25, result.Errors[0].Position)
	}
}

func TestParseLiteralOnly(t *testing.T) {
	result := Parse("no references here")
	assert.True(t, result.Valid)
	assert.Empty(t, result.References)
	assert.Empty(t, result.Errors)
}

func TestResolve(t *testing.T) {
	result := Resolve("http://${services.api.domain}:${services.api.container.port}${env.MISSING}", testContext())
	assert.False(t, result.Success)
	// every reference either resolves or contributes exactly one error
	if assert.Len(t, result.Errors, 1) {
		assert.Equal(t, ErrResolution, result.Errors[0].Kind)
		assert.Contains(t, result.Errors[0].Message, "env.MISSING")
	}
	// resolved spans are substituted, the unresolved one is verbatim
	assert.Equal(t, "http://api.example.com:8080${env.MISSING}", result.Resolved)
}

func TestResolveSuccess(t *testing.T) {
	result := Resolve("${projects.shop.name} in ${env.REGION}", testContext())
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "shop in eu-west-1", result.Resolved)
}

func TestResolveNamesExactUnresolvedPath(t *testing.T) {
	result := Resolve("${services.api.container.missing.deeper}", testContext())
	assert.False(t, result.Success)
	if assert.Len(t, result.Errors, 1) {
		assert.Contains(t, result.Errors[0].Message, "services.api.container.missing is undefined")
	}
}

func TestResolveEmptyContextReturnsTemplateVerbatim(t *testing.T) {
	tmpl := "a ${env.A} b ${services.s.p} c"
	result := Resolve(tmpl, Context{})
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, tmpl, result.Resolved)
}

func TestDetectCircularReferencesTwoNode(t *testing.T) {
	result := DetectCircularReferences(map[string]string{
		"A": "${env.B}",
		"B": "${env.A}",
	})
	assert.True(t, result.HasCycles)
	if assert.Len(t, result.Cycles, 1) {
		assert.Len(t, result.Cycles[0], 2)
	}
}

func TestDetectCircularReferencesSelf(t *testing.T) {
	result := DetectCircularReferences(map[string]string{
		"A": "before ${env.A} after",
	})
	assert.True(t, result.HasCycles)
	if assert.Len(t, result.Cycles, 1) {
		assert.Equal(t, []string{"A"}, result.Cycles[0])
	}
}

func TestDetectCircularReferencesDiamond(t *testing.T) {
	result := DetectCircularReferences(map[string]string{
		"A": "${env.B}${env.C}",
		"B": "${env.D}",
		"C": "${env.D}",
		"D": "literal",
	})
	assert.False(t, result.HasCycles)
	assert.Empty(t, result.Cycles)
}

func TestDetectCircularReferencesIgnoresExternalNames(t *testing.T) {
	result := DetectCircularReferences(map[string]string{
		"A": "${env.NOT_A_TEMPLATE}",
	})
	assert.False(t, result.HasCycles)
}

func TestValidateDeepNestingWarning(t *testing.T) {
	result := Validate("${services.api.a.b.c.d.e}")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	if assert.Len(t, result.Warnings, 1) {
		assert.Equal(t, WarnDeepNesting, result.Warnings[0].Kind)
	}

	// four segments deep is still fine
	result = Validate("${services.api.a.b.c.d}")
	assert.Empty(t, result.Warnings)
}

func TestSuggest(t *testing.T) {
	ctx := testContext()

	assert.Equal(t, []string{"env.", "projects.", "services."}, Suggest("", ctx))
	assert.Equal(t, []string{"services."}, Suggest("serv", ctx))
	assert.Equal(t, []string{"services.api"}, Suggest("services.", ctx))
	assert.Equal(t, []string{"services.api.container", "services.api.domain"}, Suggest("services.api.", ctx))
	assert.Equal(t, []string{"services.api.container.name", "services.api.container.port"}, Suggest("services.api.container.", ctx))
	assert.Nil(t, Suggest("services.nope.", ctx))
}
