package router

import "errors"

var (
	ErrNoRoute      = errors.New("no route found")
	ErrUnknownToken = errors.New("unknown token")
	ErrSameToken    = errors.New("source and target are the same token")
)
