package http

import (
	"errors"

	bertherr "github.com/berth-deploy/berth/pkg/errors"
)

var ErrorUnauthorized = &bertherr.Error{
	Type: bertherr.User,
	Help: `The request failed authentication

This most likely means you have a missing or incorrect token. Please
make sure you supply a service token, either by setting the
environment variable BERTH_SERVICE_TOKEN, or using the argument
--token with berthctl.

`,
	Err: errors.New("request failed authentication"),
}

func MakeAPINotFound(path string) *bertherr.Error {
	return &bertherr.Error{
		Type: bertherr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably berthctl) is either out of
date, or faulty. Make sure it matches the daemon version, and include
this path if you report the problem:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
