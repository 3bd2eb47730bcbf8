// Package qna declares the boundary to the documentation question-answering
// service consumed by notebook glue. Implementations live outside this module.
package qna

import "context"

// Answerer answers a free-form documentation question.
type Answerer interface {
	Ask(ctx context.Context, question string) (string, error)
}
