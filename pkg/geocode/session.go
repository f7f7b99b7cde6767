// Package geocode provides a caching, rate-limited client for textual
// geocoding services returning Nominatim-style XML.
package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geocoder-cli/internal/cache"
	"github.com/sells-group/geocoder-cli/internal/fetch"
	"github.com/sells-group/geocoder-cli/internal/throttle"
)

// Version identifies this client in the default User-Agent.
const Version = "1.0.0"

// Hard-coded query templates for the well-known services. Custom services
// must supply their own template.
const (
	osmNominatimQuery      = "https://nominatim.openstreetmap.org/search?q=%s&format=xml&polygon_text=1&addressdetails=1"
	mapquestNominatimQuery = "https://open.mapquestapi.com/nominatim/v1/search.php?q=%s&format=xml&addressdetails=1"
)

// Options configure a geocoding session. Every field maps to a GEOCODE_*
// configuration key; see DefaultOptions for the defaults.
type Options struct {
	// CacheFile locates the response cache: a .sqlite or .csv path, or a
	// PG:/postgres:// connection string.
	CacheFile  string
	ReadCache  bool
	WriteCache bool

	// Service selects the backend: OSM_NOMINATIM, MAPQUEST_NOMINATIM, or a
	// custom name (which is never throttled).
	Service string

	// Email is appended to OSM Nominatim fetches, per their usage policy.
	// It never becomes part of the cache key.
	Email string

	// Application sets the User-Agent header.
	Application string

	// Delay is the minimum interval between two dispatches to the same
	// recognized service, shared process-wide.
	Delay time.Duration

	// QueryTemplate is the GET URL template with exactly one %s marker for
	// the escaped query. Defaults are hard-coded for the known services.
	QueryTemplate string

	// ExtraQueryParameters are appended verbatim to every request URL.
	ExtraQueryParameters string
}

// DefaultOptions returns the session defaults.
func DefaultOptions() Options {
	return Options{
		CacheFile:   cache.DefaultSQLiteLocator,
		ReadCache:   true,
		WriteCache:  true,
		Service:     throttle.ServiceOSMNominatim,
		Application: "geocoder-cli/" + Version,
		Delay:       time.Second,
	}
}

// Fetcher is the outbound HTTP collaborator.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Session is a configured geocoding client. Sessions are safe for use from
// multiple goroutines; the throttle state is shared across all sessions in
// the process.
type Session struct {
	opts     Options
	template string
	store    *cache.Store
	fetcher  Fetcher
	throttle *throttle.Registry
}

// NewSession validates opts and returns a ready session. The cache backend
// itself is opened lazily on first use.
func NewSession(opts Options) (*Session, error) {
	if opts.Application == "" {
		opts.Application = "geocoder-cli/" + Version
	}
	if opts.Service == "" {
		opts.Service = throttle.ServiceOSMNominatim
	}
	if opts.CacheFile == "" {
		opts.CacheFile = cache.DefaultSQLiteLocator
	}

	template := opts.QueryTemplate
	if template == "" {
		switch strings.ToUpper(opts.Service) {
		case throttle.ServiceOSMNominatim:
			template = osmNominatimQuery
		case throttle.ServiceMapQuestNominatim:
			template = mapquestNominatimQuery
		default:
			return nil, eris.Errorf("geocode: no query template defined for service %q", opts.Service)
		}
	}
	if !validTemplate(template) {
		return nil, eris.Errorf("geocode: query template must contain exactly one %%s marker: %q", template)
	}

	store, err := cache.New(opts.CacheFile)
	if err != nil {
		return nil, err
	}

	return &Session{
		opts:     opts,
		template: template,
		store:    store,
		fetcher:  fetch.New(opts.Application, 0),
		throttle: throttle.Shared(),
	}, nil
}

// Close releases the session's cache handle.
func (s *Session) Close() error {
	return s.store.Close()
}

// CacheLocator returns the effective cache locator, reflecting any backend
// fallback that happened since the session was created.
func (s *Session) CacheLocator() string {
	return s.store.Locator()
}

// validTemplate checks that template contains one and only one %s verb and
// no other substitutions.
func validTemplate(template string) bool {
	found := false
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			continue
		}
		if i+1 >= len(template) {
			return false
		}
		switch template[i+1] {
		case '%':
			i++
		case 's':
			if found {
				return false
			}
			found = true
			i++
		default:
			return false
		}
	}
	return found
}
