package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Representation of errors surfaced by the platform. These are
// divided into a small number of categories, essentially
// distinguished by whose fault the error is; i.e., is this error:
//  - a transient problem with the platform, so worth trying again?
//  - not going to work until the operator takes some other action,
//    e.g., fixing a service's configuration?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing = "missing"
	// The operation was well-formed, but you asked for something that
	// can't happen at present (e.g., because the service config is
	// incomplete)
	User = "user"
)

func IsMissing(err error) bool {
	if err, ok := err.(*Error); ok && err.Type == Missing {
		return true
	}
	return false
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

// CoverAllError wraps an arbitrary error for presentation when no
// more specific category applies.
func CoverAllError(err error) *Error {
	return &Error{
		Type: User,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above.
`,
	}
}

// ProviderNotFound indicates a deployment named a source provider
// that was never registered.
func ProviderNotFound(name string) *Error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("source provider %q is not registered", name),
		Help: `The source provider named in the service configuration is not
registered with this daemon. Check the provider name for typos, and
check which providers were compiled into the daemon you are running.
`,
	}
}

// StrategyNotFound indicates a deployment named a build strategy that
// was never registered.
func StrategyNotFound(name string) *Error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("build strategy %q is not registered", name),
		Help: `The build strategy named in the service configuration is not
registered with this daemon. Check the strategy name for typos, and
check which strategies were compiled into the daemon you are running.
`,
	}
}

// InvalidConfiguration carries every validation violation found, not
// just the first, so the operator can fix them in one pass.
func InvalidConfiguration(violations []string) *Error {
	return &Error{
		Type: User,
		Err:  fmt.Errorf("invalid configuration: %s", strings.Join(violations, "; ")),
		Help: `The provider configuration for this service failed validation:

    ` + strings.Join(violations, "\n    ") + `

Fix the violations above and trigger the deployment again.
`,
	}
}

// BuildFailed surfaces the build strategy's own diagnostic verbatim,
// so operators act on the real cause rather than a wrapper message.
func BuildFailed(message string) *Error {
	return &Error{
		Type: User,
		Err:  fmt.Errorf("build failed: %s", message),
		Help: `The build strategy reported a failure:

    ` + message + `

This usually means the source itself does not build. The message above
is the strategy's own diagnostic.
`,
	}
}

// HealthCheckFailed indicates the deployed container never became
// healthy within the configured probe budget.
func HealthCheckFailed(url string, attempts int) *Error {
	return &Error{
		Type: Server,
		Err:  fmt.Errorf("health check failed for %s after %d attempts", url, attempts),
		Help: `The deployed container did not answer its health check. The
container may be crashing on startup, listening on the wrong port, or
slower to start than the configured probe budget allows.
`,
	}
}

// DeploymentNotFound indicates a status query for an id no record
// matches; the record may never have existed, or retention may have
// deleted it.
func DeploymentNotFound(id string) *Error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("deployment %s not found", id),
		Help: `There is no deployment record with the id you supplied. It may
never have existed, or the service's retention policy may have
deleted it.
`,
	}
}

// UnknownCustomCondition indicates a deployment rule referenced a
// custom condition that was never registered. The rule is skipped:
// an unresolvable condition must never silently pass.
func UnknownCustomCondition(name string) *Error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("custom condition %q is not registered", name),
		Help: `A deployment rule names a custom condition that is not registered
with this daemon. The rule was skipped rather than allowed to pass.
Register the condition, or remove it from the rule.
`,
	}
}
