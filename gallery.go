package vidportal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmisol/vidportal/capture"
	"github.com/dmisol/vidportal/defs"
	"github.com/dmisol/vidportal/relay"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
)

type SessionState int

const (
	Idle SessionState = iota
	Connecting
	Connected
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "idle"
}

func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type PlayerState int

const (
	Paused PlayerState = iota
	Playing
	Ended
)

func (s PlayerState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	}
	return "paused"
}

func (s PlayerState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type publication struct {
	sid  string
	name string
	kind string
}

// Gallery is the server side of one mounted gallery page: one video, one
// session, one player. All mutations go through mu; sdk callbacks carry the
// generation of the session they belong to and are dropped once superseded.
// seq moves on whenever running publications are invalidated, so a capture
// finishing after a pause or a reselect is dropped.
type Gallery struct {
	Id string

	context.Context
	context.CancelFunc

	portal *Portal

	mu      sync.Mutex
	closed  bool
	gen     int
	video   *defs.Video
	room    string
	session SessionState
	player  PlayerState
	offset  time.Duration
	seq     int
	pending int

	conn      Room
	stream    *capture.Stream
	pubs      []publication
	sinks     []*relay.Sink
	listeners []*relay.Listener
}

type publishJob struct {
	gen, seq int
	conn     Room
	video    *defs.Video
	offset   time.Duration
}

// ViewState is a snapshot handed out to the page.
type ViewState struct {
	Id        string       `json:"view_id"`
	Video     *defs.Video  `json:"video"`
	Room      string       `json:"room"`
	Session   SessionState `json:"session"`
	Player    PlayerState  `json:"player"`
	Published []string     `json:"published"`
	Listening int          `json:"listening"`
}

func newGallery(ctx context.Context, p *Portal, id string) *Gallery {
	g := &Gallery{
		Id:     id,
		portal: p,
		seq:    1,
	}
	g.Context, g.CancelFunc = context.WithTimeout(ctx, p.ViewLifetime)
	return g
}

func (g *Gallery) State() ViewState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := ViewState{
		Id:        g.Id,
		Video:     g.video,
		Room:      g.room,
		Session:   g.session,
		Player:    g.player,
		Published: []string{},
		Listening: len(g.sinks),
	}
	for _, pub := range g.pubs {
		st.Published = append(st.Published, pub.name)
	}
	return st
}

// Select drops the current session and joins a fresh room for video id.
// Connection failures are logged, the view then stays idle.
func (g *Gallery) Select(ctx context.Context, id int) error {
	v, err := g.portal.Catalog.Find(id)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return defs.ErrUnknownView
	}
	g.teardownLocked()
	g.gen++
	g.video = v
	g.room = defs.NewRoomName(v)
	g.player = Paused
	g.offset = 0
	g.session = Connecting
	gen, room := g.gen, g.room
	g.mu.Unlock()

	g.Println("selected", v.Title, "room", room)
	g.connect(ctx, gen, room)
	return nil
}

func (g *Gallery) connect(ctx context.Context, gen int, room string) {
	dctx, cancel := context.WithTimeout(ctx, g.portal.ConnectTimeout)
	defer cancel()

	conn, err := g.dial(dctx, gen, room)
	if err != nil {
		log.Error().Str("module", "gallery").Str("view", g.Id).Str("room", room).Err(err).Msg("connection failed")
		g.mu.Lock()
		if gen == g.gen {
			g.session = Idle
		}
		g.mu.Unlock()
		return
	}

	g.mu.Lock()
	if g.closed || gen != g.gen {
		// another video was selected meanwhile
		g.mu.Unlock()
		conn.Close()
		return
	}
	g.conn = conn
	g.session = Connected
	log.Info().Str("module", "gallery").Str("view", g.Id).Str("room", room).Msg("connected to room")

	job, ok := g.beginPublishLocked()
	g.mu.Unlock()
	if ok {
		g.publish(ctx, job)
	}
}

func (g *Gallery) dial(ctx context.Context, gen int, room string) (Room, error) {
	tok, err := g.portal.Tokens.Fetch(ctx, room)
	if err != nil {
		return nil, err
	}
	return g.portal.Dial(ctx, tok, relay.Callbacks{
		OnTrack: func(remote relay.RemoteTrack, participant string) {
			go g.onTrack(gen, remote, participant)
		},
		OnDisconnected: func() {
			go g.onDisconnected(gen)
		},
	})
}

// Play publishes the video from offset when a session is up.
func (g *Gallery) Play(ctx context.Context, offset time.Duration) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return defs.ErrUnknownView
	}

	g.player = Playing
	g.offset = offset
	if g.conn == nil {
		g.mu.Unlock()
		g.Println("playing without a session, nothing published")
		return nil
	}
	job, ok := g.beginPublishLocked()
	g.mu.Unlock()
	if ok {
		g.publish(ctx, job)
	}
	return nil
}

func (g *Gallery) Pause(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return defs.ErrUnknownView
	}
	g.player = Paused
	g.unpublishLocked(true)
	return nil
}

// End is like Pause, but listeners keep going.
func (g *Gallery) End(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return defs.ErrUnknownView
	}
	g.player = Ended
	g.unpublishLocked(false)
	return nil
}

// beginPublishLocked claims the publication of the current play, unless one
// is already up or on its way.
func (g *Gallery) beginPublishLocked() (job publishJob, ok bool) {
	if g.player != Playing || g.conn == nil || g.stream != nil || g.pending == g.seq {
		return
	}
	g.enableSinksLocked(true)
	g.pending = g.seq
	return publishJob{gen: g.gen, seq: g.seq, conn: g.conn, video: g.video, offset: g.offset}, true
}

func (g *Gallery) currentLocked(job publishJob) bool {
	return !g.closed && job.gen == g.gen && job.seq == g.seq && g.player == Playing
}

// publish captures and publishes with mu released. Whatever turns up after
// the play it was started for is over gets stopped or unpublished again.
func (g *Gallery) publish(ctx context.Context, job publishJob) {
	defer func() {
		g.mu.Lock()
		if g.pending == job.seq {
			g.pending = 0
		}
		g.mu.Unlock()
	}()

	stream, err := g.portal.Capturer.Capture(ctx, job.video, job.offset)
	if err != nil {
		log.Error().Str("module", "gallery").Str("view", g.Id).Err(err).Msg("capture failed")
		return
	}

	g.mu.Lock()
	if !g.currentLocked(job) {
		g.mu.Unlock()
		stream.Stop()
		g.Println("capture outdated, dropped")
		return
	}
	g.stream = stream
	g.mu.Unlock()

	for _, src := range stream.Sources() {
		sid, err := job.conn.Publish(src, nil)
		if err != nil {
			log.Error().Str("module", "gallery").Str("view", g.Id).Str("track", src.Name).Err(err).Msg("publishing failed")
			continue
		}

		g.mu.Lock()
		current := g.currentLocked(job)
		if current {
			g.pubs = append(g.pubs, publication{sid: sid, name: src.Name, kind: src.Kind})
		}
		g.mu.Unlock()

		if !current {
			g.Println("publication outdated", src.Name)
			if err = job.conn.Unpublish(sid); err != nil {
				log.Warn().Str("module", "gallery").Str("view", g.Id).Str("sid", sid).Err(err).Msg("unpublishing failed")
			}
			return
		}
	}
}

func (g *Gallery) unpublishLocked(mute bool) {
	for _, pub := range g.pubs {
		if pub.kind == capture.KindAudio && mute {
			g.enableSinksLocked(false)
		}
		if g.conn == nil {
			continue
		}
		if err := g.conn.Unpublish(pub.sid); err != nil {
			log.Warn().Str("module", "gallery").Str("view", g.Id).Str("sid", pub.sid).Err(err).Msg("unpublishing failed")
		}
	}
	g.pubs = nil
	g.seq++

	if g.stream != nil {
		g.stream.Stop()
		g.stream = nil
	}
}

func (g *Gallery) enableSinksLocked(on bool) {
	for _, s := range g.sinks {
		s.Enable(on)
	}
}

func (g *Gallery) onTrack(gen int, remote relay.RemoteTrack, participant string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || gen != g.gen {
		g.Println("track from a stale session", participant, remote.ID())
		return
	}
	if remote.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	dir := ""
	if g.portal.RecordDir != "" {
		dir = filepath.Join(g.portal.RecordDir, g.room)
	}
	s, err := relay.NewTrackSink(remote, participant, dir, true)
	if err != nil {
		log.Error().Str("module", "gallery").Str("view", g.Id).Err(err).Msg("audio sink")
		return
	}
	for _, l := range g.listeners {
		s.Tap(l)
	}
	g.sinks = append(g.sinks, s)
	log.Info().Str("module", "gallery").Str("view", g.Id).Str("participant", participant).Msg("track subscribed: audio")
}

func (g *Gallery) onDisconnected(gen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.conn == nil {
		return
	}
	g.Println("room disconnected", g.room)
	g.teardownLocked()
}

// Listen hands out a stream of the commentator's audio. It follows the view
// across sessions and carries packets only while the sinks are enabled.
func (g *Gallery) Listen() (*relay.Listener, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, defs.ErrUnknownView
	}
	l := relay.NewListener()
	for _, s := range g.sinks {
		s.Tap(l)
	}
	g.listeners = append(g.listeners, l)
	return l, nil
}

func (g *Gallery) Unlisten(l *relay.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, x := range g.listeners {
		if x == l {
			g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
			break
		}
	}
	for _, s := range g.sinks {
		s.Untap(l)
	}
	l.Close()
}

// teardownLocked leaves the current session, the player state is kept.
func (g *Gallery) teardownLocked() {
	if g.stream != nil {
		g.stream.Stop()
		g.stream = nil
	}
	g.pubs = nil
	g.seq++
	for _, s := range g.sinks {
		s.Close()
	}
	g.sinks = nil
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	g.session = Idle
}

func (g *Gallery) Close() {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		g.gen++
		g.teardownLocked()
		for _, l := range g.listeners {
			l.Close()
		}
		g.listeners = nil
		g.Println("closed")
	}
	g.mu.Unlock()
	g.CancelFunc()
}

func (g *Gallery) Println(i ...interface{}) {
	log.Debug().Str("module", "gallery").Str("view", g.Id).Msg(fmt.Sprintln(i...))
}
