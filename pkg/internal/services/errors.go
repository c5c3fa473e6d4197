package services

import "errors"

var (
	ErrMalformedEvent   = errors.New("malformed feed event")
	ErrOrphanPatch      = errors.New("post is not loaded")
	ErrPostNotFound     = errors.New("post not found in feed")
	ErrCommentNotFound  = errors.New("comment not found on post")
	ErrRollbackRequired = errors.New("optimistic mutation must be rolled back")
	ErrStaleScopeResult = errors.New("feed result belongs to a previous scope")
	ErrUnsupportedScope = errors.New("unsupported feed scope")
	ErrSchedulerClosed  = errors.New("scheduler is closed")
)
