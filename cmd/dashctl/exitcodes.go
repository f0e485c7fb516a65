package main

import (
	"context"
	"errors"

	"github.com/iota-uz/flockdesk/modules/dashboard/infrastructure/ajax"
	"github.com/iota-uz/flockdesk/modules/dashboard/scenario"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitUsage      = 3
	exitServer     = 4
	exitRejected   = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case errors.Is(err, scenario.ErrInvalid):
		return exitValidation
	case errors.Is(err, ajax.ErrRejected):
		return exitRejected
	case errors.Is(err, ajax.ErrTransport), errors.Is(err, ajax.ErrStatus), errors.Is(err, ajax.ErrMalformed):
		return exitServer
	case errors.Is(err, context.Canceled):
		return exitFailure
	}
	return exitFailure
}
