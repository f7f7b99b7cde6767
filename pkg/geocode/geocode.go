package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geocoder-cli/internal/throttle"
	"github.com/sells-group/geocoder-cli/internal/translate"
)

// Geocode resolves a free-text place query into a tabular result set. The
// result is served from the cache when possible; otherwise a single throttled
// fetch is issued and, on success, written back to the cache before
// translation. An empty result set means the service found nothing; an error
// means the question could not be asked or the answer not understood.
func (s *Session) Geocode(ctx context.Context, query string) (*translate.ResultSet, error) {
	if query == "" {
		return nil, eris.New("geocode: a non-empty query is required")
	}

	canonical := s.buildURL(query)
	fetchURL := s.fetchURL(canonical)

	if s.opts.ReadCache {
		if blob, ok := s.store.Get(ctx, canonical); ok {
			zap.L().Debug("geocode: cache hit", zap.String("url", canonical))
			return translate.Translate([]byte(blob))
		}
	}

	body, err := s.dispatch(ctx, fetchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: query %q failed", query)
	}

	if len(body) > 0 && s.opts.WriteCache {
		if err := s.store.Put(ctx, canonical, string(body)); err != nil {
			// A failed cache write never fails a successful fetch.
			zap.L().Warn("geocode: cache write failed",
				zap.String("url", canonical),
				zap.Error(err),
			)
		}
	}

	return translate.Translate(body)
}

// GeocodeStructured rejects structured queries: only single-string free-text
// lookup is implemented, and callers must be told rather than silently
// geocoding nothing.
func (s *Session) GeocodeStructured(_ context.Context, _ map[string]string) (*translate.ResultSet, error) {
	return nil, eris.New("geocode: structured queries are not supported")
}

// buildURL substitutes the escaped query into the session template and adds
// the static extra parameters. This is the canonical URL used as the cache
// key; it deliberately excludes the per-user email parameter.
func (s *Session) buildURL(query string) string {
	u := fmt.Sprintf(s.template, url.QueryEscape(query))
	if s.opts.ExtraQueryParameters != "" {
		u += "&" + s.opts.ExtraQueryParameters
	}
	return u
}

// fetchURL derives the URL used for the live request: the canonical URL plus
// the email identifier when the active service honors one.
func (s *Session) fetchURL(canonical string) string {
	if s.opts.Email != "" &&
		strings.EqualFold(s.opts.Service, throttle.ServiceOSMNominatim) {
		return canonical + "&email=" + url.QueryEscape(s.opts.Email)
	}
	return canonical
}

// dispatch issues the outbound request, gated by the shared throttle for
// recognized services.
func (s *Session) dispatch(ctx context.Context, fetchURL string) ([]byte, error) {
	release, err := s.throttle.Acquire(ctx, s.opts.Service, s.opts.Delay)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.fetcher.Get(ctx, fetchURL)
}
