package domain

import "errors"

var (
	ErrForumNotFound     = errors.New("forum not found")
	ErrCommunityNotFound = errors.New("community not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrUserNotFound      = errors.New("user not found")

	// write attempted without an active subscription and without owning the community
	ErrPermissionDenied = errors.New("permission denied")

	// parent_id points at a message from another forum
	ErrParentMismatch = errors.New("parent message belongs to another forum")

	ErrEmptyContent   = errors.New("empty message content")
	ErrContentTooLong = errors.New("message content too long")
)
