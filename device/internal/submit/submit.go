// Package submit forwards assembled records to the ingestion service.
package submit

import (
	"context"
	"errors"
	"fmt"

	"labmonitor/shared/types"
)

// ErrRejected is returned when the receiving side refuses a record.
var ErrRejected = errors.New("submit: record rejected")

// Submitter delivers one record.
type Submitter interface {
	Submit(ctx context.Context, rec types.Record) error
	String() string
}

// Multi fans a record out to every submitter and joins their errors.
type Multi []Submitter

func (m Multi) Submit(ctx context.Context, rec types.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) String() string { return fmt.Sprintf("multi(%d)", len(m)) }
