package composer

import "context"

// Collaborator retrieves reference passages and generates an answer for query.
type Collaborator interface {
	RetrieveAndGenerate(ctx context.Context, query string) (string, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, query string) (string, error)

// RetrieveAndGenerate calls f.
func (f CollaboratorFunc) RetrieveAndGenerate(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Result is the tagged outcome of one collaborator call. Exactly one of
// text or err is meaningful; branches render it to user text at the end.
type Result struct {
	text string
	err  error
}

// Success wraps generated text.
func Success(text string) Result { return Result{text: text} }

// Failure wraps a collaborator error.
func Failure(err error) Result { return Result{err: err} }

// Text returns the generated text and whether the call succeeded.
func (r Result) Text() (string, bool) { return r.text, r.err == nil }

// Err returns the failure, or nil.
func (r Result) Err() error { return r.err }
