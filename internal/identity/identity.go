package identity

import "sync"

// AuthorLister enumerates every commit author known to the repository,
// keyed by identity token (author email).
type AuthorLister interface {
	ListAuthors() (map[string]string, error)
}

// Resolver maps identity tokens to display names. The author table is
// fetched once, on first use, and kept for the life of the Resolver.
type Resolver struct {
	authors AuthorLister

	once  sync.Once
	names map[string]string
	err   error
}

// NewResolver returns a Resolver backed by the given author source.
func NewResolver(authors AuthorLister) *Resolver {
	return &Resolver{authors: authors}
}

// Resolve returns the display name for token, or token itself when unknown.
// It never fails; a failed author lookup leaves the cache empty.
func (r *Resolver) Resolve(token string) string {
	r.load()
	if name := r.names[token]; name != "" {
		return name
	}
	return token
}

// Err returns the error from the author lookup, if one happened.
func (r *Resolver) Err() error {
	r.load()
	return r.err
}

func (r *Resolver) load() {
	r.once.Do(func() {
		r.names = map[string]string{}
		if r.authors == nil {
			return
		}
		names, err := r.authors.ListAuthors()
		if err != nil {
			r.err = err
			return
		}
		for k, v := range names {
			r.names[k] = v
		}
	})
}
