// Package tagger assigns a part-of-speech tag to every word of an
// identifier, consulting a namespaced result cache first.
//
// A Service is built once at startup from read-only collaborators (the
// splitter, the feature extractor and a loaded model) and is safe for
// concurrent use. The cache is the only mutable state it touches.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/identag/pkg/classifier"
	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/identifier"
	"github.com/haivivi/identag/pkg/tagcache"
)

// ErrInvalidContext is returned for context names outside the supported
// set. It matches identifier.ErrInvalidContext.
var ErrInvalidContext = identifier.ErrInvalidContext

// Request asks for the tags of one identifier.
type Request struct {
	Identifier string
	Context    string
	// Namespace selects a cache namespace; empty disables caching.
	Namespace string
}

// Result is the tagging outcome. Tags[i] is the tag of Words[i].
type Result struct {
	Identifier string   `json:"identifier"`
	Context    string   `json:"context"`
	Words      []string `json:"words"`
	Tags       []string `json:"tags"`
	Cached     bool     `json:"cached"`
}

// Service tags identifiers.
type Service struct {
	// Splitter defaults to identifier.DefaultSplitter.
	Splitter identifier.Splitter

	Extractor *features.Extractor
	Predictor classifier.Predictor

	// Cache may be nil when no request names a namespace.
	Cache tagcache.Store

	// TolerateCacheErrors makes cache failures degrade to uncached
	// tagging with a warning instead of failing the request.
	TolerateCacheErrors bool

	Logger  *slog.Logger
	Metrics *Metrics
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Tag returns the tags of req.Identifier. A named namespace is created even
// when the identifier yields no words; such an identifier returns an empty
// result and stores no entry.
func (s *Service) Tag(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, outcome, err := s.tag(ctx, req)
	if err != nil {
		outcome = "error"
	}
	s.Metrics.request(outcome, time.Since(start))
	return res, err
}

func (s *Service) tag(ctx context.Context, req Request) (*Result, string, error) {
	idCtx, err := identifier.ParseContext(req.Context)
	if err != nil {
		return nil, "", err
	}
	if req.Namespace != "" {
		if err := tagcache.ValidateName(req.Namespace); err != nil {
			return nil, "", err
		}
	}

	var ns tagcache.Namespace
	if req.Namespace != "" {
		ns, err = s.openNamespace(ctx, req.Namespace)
		if err != nil {
			return nil, "", err
		}
	}

	id := identifier.New(req.Identifier, idCtx, s.Splitter)
	res := &Result{Identifier: req.Identifier, Context: string(idCtx), Words: id.Texts(), Tags: []string{}}
	if id.Len() == 0 {
		return res, "empty", nil
	}

	if ns != nil {
		e, err := ns.Get(ctx, req.Identifier, string(idCtx))
		switch {
		case err == nil:
			s.Metrics.cacheLookup("hit")
			res.Words, res.Tags, res.Cached = e.Words, e.Tags, true
			return res, "cached", nil
		case errors.Is(err, tagcache.ErrNotFound):
			s.Metrics.cacheLookup("miss")
		default:
			s.Metrics.cacheLookup("error")
			if err := s.cacheFailure(err, req.Namespace); err != nil {
				return nil, "", err
			}
			ns = nil
		}
	}

	tags, err := s.predict(id)
	if err != nil {
		return nil, "", err
	}
	res.Tags = tags

	if ns != nil {
		err := ns.Put(ctx, &tagcache.Entry{
			Identifier: req.Identifier,
			Context:    string(idCtx),
			Words:      res.Words,
			Tags:       tags,
		})
		if err != nil {
			if err := s.cacheFailure(err, req.Namespace); err != nil {
				return nil, "", err
			}
		}
	}
	return res, "computed", nil
}

func (s *Service) openNamespace(ctx context.Context, name string) (tagcache.Namespace, error) {
	if s.Cache == nil {
		return nil, s.cacheFailure(fmt.Errorf("%w: no cache configured", tagcache.ErrUnavailable), name)
	}
	ns, err := s.Cache.Open(ctx, name)
	if err != nil {
		return nil, s.cacheFailure(err, name)
	}
	return ns, nil
}

// cacheFailure returns err, or nil after logging when cache errors are
// tolerated.
func (s *Service) cacheFailure(err error, namespace string) error {
	if !s.TolerateCacheErrors {
		if errors.Is(err, tagcache.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", tagcache.ErrUnavailable, err)
	}
	s.logger().Warn("tagger: cache unavailable, tagging without cache", "namespace", namespace, "error", err)
	return nil
}

func (s *Service) predict(id identifier.Identifier) ([]string, error) {
	if s.Predictor == nil {
		return nil, errors.New("tagger: no predictor configured")
	}
	ex := s.Extractor
	if ex == nil {
		ex = &features.Extractor{}
	}
	vecs, err := ex.ExtractAll(id)
	if err != nil {
		return nil, err
	}
	tags := make([]string, len(vecs))
	for i, v := range vecs {
		p, err := s.Predictor.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("tagger: predict %q: %w", id.Words[i].Text, err)
		}
		tags[i] = p.Label
	}
	s.Metrics.predicted(len(vecs))
	return tags, nil
}

// Probe reports whether the namespace exists. It never creates it.
func (s *Service) Probe(ctx context.Context, namespace string) (bool, error) {
	if err := tagcache.ValidateName(namespace); err != nil {
		return false, err
	}
	if s.Cache == nil {
		return false, fmt.Errorf("%w: no cache configured", tagcache.ErrUnavailable)
	}
	return s.Cache.Exists(ctx, namespace)
}
