package model

import (
	"github.com/stayware/identity-context-service/internal/errors"
)

type Offset any

// Dataset of *[T] records
type Dataset[T any] struct {
	// List of dataset records
	Data []*T
	// This page offset, if specified
	Page Offset
	// Next page offset, if available
	Next Offset
	// Total records count, beyond this page
	Total int
}

var (
	ErrTooManyRecords = errors.ErrUnknown(
		errors.Message("too many records"),
	)
)

// Get ensures that given dataset [page] contains exact one result record.
func Get[T any](list *Dataset[T], err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		// Not Found
		return nil, nil
	}
	size := len(list.Data)
	if list.Next != nil || size > 1 {
		return nil, ErrTooManyRecords
	}
	var row *T
	if size == 1 {
		row = list.Data[0]
	}
	return row, nil
}
