// Package id generates the short identifiers used for watches and event
// subscribers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet leaves out '-' and '_' so the prefix separator stays unambiguous
// and ids can be pasted into URLs and shells as-is.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// size gives roughly the same collision resistance as a default nanoid.
const size = 21

// Generate returns prefix-<nanoid>, e.g. "watch-4f9XkQ2mP0aZb7Tq1sLcV".
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}
