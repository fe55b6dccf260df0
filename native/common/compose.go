// Package common holds helpers shared by the native message handlers.
package common

import (
	"fmt"
	"strings"
)

// ComposeError reports why a message could not be composed for
// signing. Validation problems found at compose time are fatal for the
// caller, unlike the status strings recorded for confirmed messages.
type ComposeError struct {
	Problems []string
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose: %s", strings.Join(e.Problems, "; "))
}

// InvalidStatus joins validation problems into the status string stored
// with a rejected message.
func InvalidStatus(problems []string) string {
	return "invalid: " + strings.Join(problems, "; ")
}

// StatusValid is recorded for messages that passed validation.
const StatusValid = "valid"

// StatusCouldNotUnpack is recorded when a message body fails to decode.
const StatusCouldNotUnpack = "invalid: could not unpack"
