package service

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/workflow"
)

// ValidationError: missing or malformed input. Nothing was written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// InvalidStateError: the drawing, submission or RFI is not in a state that
// allows the operation. Nothing was written.
type InvalidStateError struct {
	Msg     string
	Current entity.DrawingStatus
}

func (e *InvalidStateError) Error() string { return e.Msg }

// NotFoundError: a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// PersistenceError wraps a datastore failure. Its message is never shown to callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func missingFields(fields map[string]string) error {
	var missing []string
	for _, name := range sortedKeys(fields) {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Msg: "missing required fields: " + strings.Join(missing, ", ")}
}

func validateFiles(files []entity.FileRef) error {
	if len(files) == 0 {
		return &ValidationError{Msg: "at least one file is required"}
	}
	return validateRefs("files", files)
}

// validateRefs accepts only clean object paths under the upload prefix, so a
// caller cannot attach arbitrary objects from the store.
func validateRefs(field string, refs []entity.FileRef) error {
	for i, f := range refs {
		p := strings.TrimSpace(f.Path)
		if p == "" {
			return &ValidationError{Msg: fmt.Sprintf("%s[%d].path is required", field, i)}
		}
		if !strings.HasPrefix(p, artifactPrefix+"/") || path.Clean(p) != p {
			return &ValidationError{Msg: fmt.Sprintf("%s[%d].path must reference an uploaded file", field, i)}
		}
	}
	return nil
}

// lookupErr turns repository.ErrNotFound into a NotFoundError.
func lookupErr(resource, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

func transitionErr(err error, current entity.DrawingStatus) error {
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		return &InvalidStateError{Msg: te.Error(), Current: current}
	}
	return err
}

// txErr passes typed errors through and wraps everything else as a PersistenceError.
func txErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		se *InvalidStateError
		ne *NotFoundError
		pe *PersistenceError
	)
	if errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ne) || errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
