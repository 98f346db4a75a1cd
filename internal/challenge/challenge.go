// Package challenge constructs state machines for interaction requests.
package challenge

import (
	"fmt"

	"github.com/greenforestpath/focuslock/internal/challenge/lockphrase"
	"github.com/greenforestpath/focuslock/internal/challenge/numguess"
	"github.com/greenforestpath/focuslock/internal/interaction"
)

// New builds the state machine for a normalized request.
func New(req interaction.Request) (interaction.Machine, error) {
	switch req.Kind {
	case interaction.KindLockPhrase:
		return lockphrase.New(req.LockPhrase, req.Strict), nil
	case interaction.KindNumericGuess:
		return numguess.New(req.NumericGuess, req.Strict), nil
	default:
		return nil, fmt.Errorf("unknown interaction kind: %v", req.Kind)
	}
}
