package storage

import (
	"context"
	"strings"
)

// Prefixed is a namespaced view over another store.
type Prefixed struct {
	inner  Store
	prefix string
}

// WithPrefix returns a view of s where every key is transparently prefixed.
func WithPrefix(s Store, prefix string) *Prefixed {
	return &Prefixed{inner: s, prefix: prefix}
}

// Prefix reports the namespace of the view.
func (p *Prefixed) Prefix() string {
	return p.prefix
}

// Namespace reports the full key prefix of the view, including the prefixes of any views it is
// stacked on.
func (p *Prefixed) Namespace() string {
	if inner, ok := p.inner.(interface{ Namespace() string }); ok {
		return inner.Namespace() + p.prefix
	}
	return p.prefix
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.prefix + k
	}
	return p.inner.Delete(ctx, full...)
}

func (p *Prefixed) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.inner.Keys(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, p.prefix))
	}
	return out, nil
}

// Watch forwards changes of the underlying store that fall inside the namespace.
func (p *Prefixed) Watch(ctx context.Context) (<-chan Change, error) {
	w, ok := p.inner.(Watcher)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	src, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		for change := range src {
			if !strings.HasPrefix(change.Key, p.prefix) {
				continue
			}
			change.Key = strings.TrimPrefix(change.Key, p.prefix)
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
