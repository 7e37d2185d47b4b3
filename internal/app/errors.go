package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrPicksClosed = errors.New("picks are closed for this game")
	ErrUnknownTeam = errors.New("team not in game")
)
