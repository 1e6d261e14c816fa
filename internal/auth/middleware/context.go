package auth

import "context"

// Learner is the identity snapshot carried in the token; the
// certification gate copies it into credentials as-is.
type Learner struct {
	ID         string
	Name       string
	Country    string
	Department string
}

type ctxKey struct{}

var ctxKeyLearner = ctxKey{}

func WithLearner(ctx context.Context, l Learner) context.Context {
	return context.WithValue(ctx, ctxKeyLearner, l)
}

func LearnerFromContext(ctx context.Context) Learner {
	if v := ctx.Value(ctxKeyLearner); v != nil {
		if l, ok := v.(Learner); ok {
			return l
		}
	}
	return Learner{}
}
