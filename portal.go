package vidportal

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/dmisol/vidportal/relay"
	"github.com/dmisol/vidportal/token"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Room is a joined media session.
type Room interface {
	Publish(src *capture.TrackSource, onDone func()) (sid string, err error)
	Unpublish(sid string) error
	Close()
}

// Dialer joins the room the token is issued for.
type Dialer func(ctx context.Context, token string, cb relay.Callbacks) (Room, error)

// RelayDialer joins rooms on the configured livekit server.
func RelayDialer(c *defs.PortalConf) Dialer {
	return func(ctx context.Context, token string, cb relay.Callbacks) (Room, error) {
		r, err := relay.Connect(ctx, c.Ws, token, c.MaxRetries, cb)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

type Portal struct {
	*defs.PortalConf

	Catalog  defs.Catalog
	Tokens   token.Source
	Dial     Dialer
	Capturer capture.Capturer
	// Poster renders a thumbnail for videos that come without one; may be nil
	Poster func(url string) ([]byte, error)

	context.Context
	context.CancelFunc

	mu      sync.Mutex
	views   map[string]*Gallery
	posters map[int][]byte
}

func NewPortal(ctx context.Context, c *defs.PortalConf, catalog defs.Catalog, tokens token.Source, capturer capture.Capturer) *Portal {
	p := &Portal{
		PortalConf: c,
		Catalog:    catalog,
		Tokens:     tokens,
		Dial:       RelayDialer(c),
		Capturer:   capturer,
		views:      make(map[string]*Gallery),
		posters:    make(map[int][]byte),
	}
	p.Context, p.CancelFunc = context.WithCancel(ctx)
	return p
}

// Open mounts a view on video id (0 for the first one) and joins its room.
// The view is dropped after ViewLifetime at the latest.
func (p *Portal) Open(ctx context.Context, id int) (*Gallery, error) {
	if id == 0 {
		id = p.Catalog.First().Id
	}
	if _, err := p.Catalog.Find(id); err != nil {
		return nil, err
	}

	g := newGallery(p.Context, p, uuid.NewString())
	p.mu.Lock()
	p.views[g.Id] = g
	p.mu.Unlock()

	go func() {
		<-g.Done()
		p.remove(g.Id)
		g.Close()
	}()

	log.Info().Str("module", "portal").Str("view", g.Id).Int("video", id).Msg("view opened")
	if err := g.Select(ctx, id); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (p *Portal) View(id string) (*Gallery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", defs.ErrUnknownView, id)
	}
	return g, nil
}

func (p *Portal) Views() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

func (p *Portal) Close(id string) error {
	g, err := p.View(id)
	if err != nil {
		return err
	}
	p.remove(id)
	g.Close()
	return nil
}

func (p *Portal) remove(id string) {
	p.mu.Lock()
	delete(p.views, id)
	p.mu.Unlock()
}

// Shutdown closes every view.
func (p *Portal) Shutdown() {
	p.mu.Lock()
	views := make([]*Gallery, 0, len(p.views))
	for _, g := range p.views {
		views = append(views, g)
	}
	p.views = make(map[string]*Gallery)
	p.mu.Unlock()

	for _, g := range views {
		g.Close()
	}
	p.CancelFunc()
	log.Info().Str("module", "portal").Int("views", len(views)).Msg("portal shut down")
}

// PosterFor returns a cached generated thumbnail.
func (p *Portal) PosterFor(v *defs.Video) ([]byte, error) {
	p.mu.Lock()
	b, ok := p.posters[v.Id]
	p.mu.Unlock()
	if ok {
		return b, nil
	}
	if p.Poster == nil {
		return nil, fmt.Errorf("%w: no poster renderer", defs.ErrCaptureUnsupported)
	}
	b, err := p.Poster(v.Url)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.posters[v.Id] = b
	p.mu.Unlock()
	return b, nil
}
