package ocipack

import (
	"log/slog"
	"maps"
	"runtime"

	"github.com/ocipack/ocipack/bundle"
	"github.com/ocipack/ocipack/types"
)

type conf struct {
	artifactType  string
	subject       *types.Descriptor
	base          Strategy
	bundler       bundle.Bundler
	itemMediaType string
	annotations   map[string]string
	concurrency   int
	log           *slog.Logger
}

// Opt sets an option on [Build].
type Opt func(*conf)

func newConf(opts ...Opt) conf {
	c := conf{
		artifactType:  types.ArtifactTypeDefault,
		base:          StrategySingleLayer,
		bundler:       bundle.New(bundle.CompressionGzip),
		itemMediaType: types.MediaTypeItem,
		concurrency:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	return c
}

// WithArtifactType declares the artifact type of the manifest.
func WithArtifactType(at string) Opt {
	return func(c *conf) {
		if at != "" {
			c.artifactType = at
		}
	}
}

// WithSubject sets the manifest the subject strategy refers to.
func WithSubject(d types.Descriptor) Opt {
	return func(c *conf) {
		s := d.Copy()
		c.subject = &s
	}
}

// WithBase sets the strategy wrapped by [StrategySubject], defaults to [StrategySingleLayer].
func WithBase(s Strategy) Opt {
	return func(c *conf) {
		c.base = s
	}
}

// WithBundler replaces the bundler used to combine payloads, defaults to a gzip compressed tar.
func WithBundler(b bundle.Bundler) Opt {
	return func(c *conf) {
		if b != nil {
			c.bundler = b
		}
	}
}

// WithItemMediaType sets the media type of each per item layer.
func WithItemMediaType(mt string) Opt {
	return func(c *conf) {
		if mt != "" {
			c.itemMediaType = mt
		}
	}
}

// WithAnnotations adds annotations to the manifest.
func WithAnnotations(annot map[string]string) Opt {
	return func(c *conf) {
		if len(annot) == 0 {
			return
		}
		if c.annotations == nil {
			c.annotations = map[string]string{}
		}
		maps.Copy(c.annotations, annot)
	}
}

// WithConcurrency limits the number of payloads addressed in parallel.
func WithConcurrency(n int) Opt {
	return func(c *conf) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLog includes a logger.
func WithLog(log *slog.Logger) Opt {
	return func(c *conf) {
		c.log = log
	}
}
