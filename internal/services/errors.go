package services

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrPersistence  = errors.New("failed to persist message")
)
