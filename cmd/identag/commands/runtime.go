package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/identag/cmd/identag/internal/config"
	"github.com/haivivi/identag/pkg/classifier"
	_ "github.com/haivivi/identag/pkg/classifier/forest"
	"github.com/haivivi/identag/pkg/dictionary"
	"github.com/haivivi/identag/pkg/embedding"
	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/storage"
	"github.com/haivivi/identag/pkg/tagcache"
	"github.com/haivivi/identag/pkg/tagger"
)

// s3Client returns a ClientFunc using the default AWS credential chain.
// A custom endpoint switches to path-style addressing.
func s3Client(opts config.S3) storage.ClientFunc {
	return func(ctx context.Context) (storage.S3Client, error) {
		var load []func(*awsconfig.LoadOptions) error
		if opts.Region != "" {
			load = append(load, awsconfig.WithRegion(opts.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
				o.UsePathStyle = true
			}
		}), nil
	}
}

// runtime is a loaded tagger with the resources it owns.
type runtime struct {
	Service *tagger.Service
	Model   *classifier.Model
	Cache   *tagcache.Cache
}

// Close releases the cache.
func (r *runtime) Close() error {
	if r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// loadRuntime loads the model and both providers in parallel, then opens the
// cache. reg may be nil to skip metrics.
func loadRuntime(ctx context.Context, cfg *config.Serve, reg prometheus.Registerer, logger *slog.Logger) (*runtime, error) {
	var (
		model         *classifier.Model
		token, target *embedding.Table
		dict          *dictionary.Dictionary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store, name, err := storage.Open(gctx, cfg.Model, s3Client(cfg.S3))
		if err != nil {
			return err
		}
		model, err = classifier.Load(gctx, store, name)
		return err
	})
	g.Go(func() (err error) {
		token, err = loadTable(cfg.Embeddings.Token)
		return err
	})
	g.Go(func() (err error) {
		target, err = loadTable(cfg.Embeddings.Target)
		return err
	})
	g.Go(func() (err error) {
		dict, err = dictionary.Open(cfg.Dictionary, cfg.Abbreviations)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	provider := embedding.NewProvider(token, target, embedding.DefaultAnchors())
	if token == nil && target == nil {
		logger.Info("no embeddings configured, similarity features use the sentinel")
	} else {
		for _, a := range embedding.DefaultAnchors() {
			if !provider.Covered(a) {
				logger.Warn("anchor has no vectors, scores will be the sentinel", "anchor", a.Name)
			}
		}
	}
	logger.Info("model loaded",
		"location", cfg.Model,
		"algorithm", model.Algorithm,
		"labels", len(model.Labels),
		"dictionary_words", dict.Len())

	cache, err := openCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	model.SetLogger(logger)
	rt := &runtime{Model: model, Cache: cache}
	rt.Service = &tagger.Service{
		Extractor:           &features.Extractor{Embeddings: provider, Dictionary: dict},
		Predictor:           model,
		Cache:               cache,
		TolerateCacheErrors: cfg.Cache.TolerateErrors,
		Logger:              logger,
	}
	if reg != nil {
		m, err := tagger.NewMetrics(reg, func() float64 { return float64(model.UnseenCount()) })
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		rt.Service.Metrics = m
	}
	return rt, nil
}

func loadTable(path string) (*embedding.Table, error) {
	if path == "" {
		return nil, nil
	}
	return embedding.LoadFile(path)
}

func openCache(c config.Cache, logger *slog.Logger) (*tagcache.Cache, error) {
	switch c.Backend {
	case config.BackendBadger:
		return tagcache.NewBadger(tagcache.BadgerOptions{Dir: c.Dir, Logger: logger})
	case config.BackendSQLite:
		return tagcache.NewSQLite(tagcache.SQLiteOptions{Dir: c.Dir, Logger: logger})
	case config.BackendMemory:
		return tagcache.NewMemory(logger), nil
	}
	return nil, errors.New("unknown cache backend: " + c.Backend)
}
