package setup

import "errors"

var (
	ErrNotCreator = errors.New("only the event creator can activate its vending machine")
)
