package services

import "errors"

var (
	// ErrNotFound covers both absent resources and resources owned by someone
	// else, so existence of other users' data never leaks.
	ErrNotFound = errors.New("resource not found")

	// ErrGenerationInProgress is returned when another request already holds
	// the generation lock for the same artifact.
	ErrGenerationInProgress = errors.New("generation already in progress for this resource")

	// ErrMalformedOutline is returned when the model output could not be used
	// as a course outline.
	ErrMalformedOutline = errors.New("model returned an unusable course outline")

	// ErrEmptySubmission is returned when a homework check arrives without text.
	ErrEmptySubmission = errors.New("submission is empty")
)
