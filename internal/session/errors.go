package session

import "errors"

var (
	// ErrPollInactive covers votes aimed at no poll at all or at a poll
	// that is not the current active one (already ended, superseded).
	ErrPollInactive = errors.New("poll is no longer active")

	// ErrInvalidPoll rejects malformed start requests: empty question,
	// fewer than two options, duplicate option labels, bad duration.
	ErrInvalidPoll = errors.New("invalid poll")
)
