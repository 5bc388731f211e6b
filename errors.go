package models

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceRequired is returned when a resolve call receives no resource.
	ErrResourceRequired = errors.New("models: resource must not be nil")
	// ErrModelNameRequired is returned by named resolution without a name.
	ErrModelNameRequired = errors.New("models: model name must not be empty")
	ErrRegistryRequired  = errors.New("models: registry is required")
	ErrMapperRequired    = errors.New("models: mapper is required")
	ErrCacheRequired     = errors.New("models: cache store is required")
	// ErrSourceRequired indicates a nil model source.
	ErrSourceRequired = errors.New("models: model source must not be nil")
	// ErrResourceTypeRequired indicates an empty resource type identifier.
	ErrResourceTypeRequired = errors.New("models: resource type must not be empty")
	// ErrNilModel is wrapped in a MappingError when a mapper yields no model
	// and no error.
	ErrNilModel = errors.New("models: mapper returned a nil model")
)

// MappingError captures the resolution metadata of a failed Mapper call.
type MappingError struct {
	Path         string
	ResourceType string
	Source       string
	Err          error
}

func (e *MappingError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("models: map %s [%s] with source %s: %v", describePath(e.Path), e.ResourceType, e.Source, e.Err)
}

func (e *MappingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describePath(path string) string {
	if path == "" {
		return "<empty path>"
	}
	return fmt.Sprintf("%q", path)
}

func wrapMappingError(res Resource, source *Source, err error) error {
	if err == nil {
		return nil
	}

	var mappingErr *MappingError
	if errors.As(err, &mappingErr) {
		if mappingErr.Path == "" {
			mappingErr.Path = res.Path()
		}
		if mappingErr.ResourceType == "" {
			mappingErr.ResourceType = res.ResourceType()
		}
		if mappingErr.Source == "" {
			mappingErr.Source = source.String()
		}
		return mappingErr
	}

	return &MappingError{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		Source:       source.String(),
		Err:          err,
	}
}
