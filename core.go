package vidportal

import (
	"bufio"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"strconv"
	"time"

	"github.com/dmisol/vidportal/defs"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

//go:embed web/*.html
var webFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"thumb": thumb,
}).ParseFS(webFS, "web/*.html"))

func thumb(v *defs.Video) string {
	if v.Thumbnail != "" {
		return v.Thumbnail
	}
	return "/posters/" + strconv.Itoa(v.Id)
}

type galleryPage struct {
	Selected *defs.Video
	Videos   defs.Catalog
}

type selectRequest struct {
	VideoId int `json:"video_id"`
}

type playRequest struct {
	// seconds into the video
	Position float64 `json:"position"`
}

// Handler routes the pages and the view api.
//
//	GET    /                      landing page
//	GET    /videos?v=<id>         gallery page
//	GET    /api/videos            catalogue
//	POST   /api/views             mount a view {"video_id": n}
//	GET    /api/views/{id}        view state
//	POST   /api/views/{id}/select {"video_id": n}
//	POST   /api/views/{id}/play   {"position": seconds}
//	POST   /api/views/{id}/pause
//	POST   /api/views/{id}/ended
//	GET    /api/views/{id}/audio  commentator audio, ogg/opus stream
//	DELETE /api/views/{id}
//	GET    /posters/{id}          generated thumbnail
func (p *Portal) Handler() fasthttp.RequestHandler {
	r := router.New()
	r.GET("/", p.landing)
	r.GET("/videos", p.gallery)

	r.GET("/api/videos", p.listVideos)
	r.POST("/api/views", p.openView)
	r.GET("/api/views/{id}", p.withView(p.viewState))
	r.POST("/api/views/{id}/select", p.withView(p.selectVideo))
	r.POST("/api/views/{id}/play", p.withView(p.play))
	r.POST("/api/views/{id}/pause", p.withView(p.pause))
	r.POST("/api/views/{id}/ended", p.withView(p.ended))
	r.GET("/api/views/{id}/audio", p.withView(p.audio))
	r.DELETE("/api/views/{id}", p.closeView)

	r.GET("/posters/{id}", p.poster)
	return r.Handler
}

func (p *Portal) landing(r *fasthttp.RequestCtx) {
	p.render(r, "landing.html", nil)
}

func (p *Portal) gallery(r *fasthttp.RequestCtx) {
	v := p.Catalog.First()
	if s := string(r.QueryArgs().Peek("v")); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			r.Error("bad video id", fasthttp.StatusBadRequest)
			return
		}
		if v, err = p.Catalog.Find(id); err != nil {
			r.Error(err.Error(), fasthttp.StatusNotFound)
			return
		}
	}
	p.render(r, "gallery.html", galleryPage{Selected: v, Videos: p.Catalog})
}

func (p *Portal) render(r *fasthttp.RequestCtx, name string, data interface{}) {
	r.SetContentType("text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(r, name, data); err != nil {
		log.Error().Str("module", "http").Str("page", name).Err(err).Msg("render")
		r.ResetBody()
		r.Error("can't render page", fasthttp.StatusInternalServerError)
	}
}

func (p *Portal) listVideos(r *fasthttp.RequestCtx) {
	writeJSON(r, fasthttp.StatusOK, p.Catalog)
}

func (p *Portal) openView(r *fasthttp.RequestCtx) {
	var req selectRequest
	if len(r.PostBody()) > 0 {
		if err := json.Unmarshal(r.PostBody(), &req); err != nil {
			r.Error("bad request body", fasthttp.StatusBadRequest)
			return
		}
	}
	g, err := p.Open(p.Context, req.VideoId)
	if err != nil {
		writeErr(r, err)
		return
	}
	writeJSON(r, fasthttp.StatusCreated, g.State())
}

func (p *Portal) withView(h func(r *fasthttp.RequestCtx, g *Gallery)) fasthttp.RequestHandler {
	return func(r *fasthttp.RequestCtx) {
		id, _ := r.UserValue("id").(string)
		g, err := p.View(id)
		if err != nil {
			writeErr(r, err)
			return
		}
		h(r, g)
	}
}

func (p *Portal) viewState(r *fasthttp.RequestCtx, g *Gallery) {
	writeJSON(r, fasthttp.StatusOK, g.State())
}

func (p *Portal) selectVideo(r *fasthttp.RequestCtx, g *Gallery) {
	var req selectRequest
	if err := json.Unmarshal(r.PostBody(), &req); err != nil {
		r.Error("bad request body", fasthttp.StatusBadRequest)
		return
	}
	if err := g.Select(p.Context, req.VideoId); err != nil {
		writeErr(r, err)
		return
	}
	writeJSON(r, fasthttp.StatusOK, g.State())
}

func (p *Portal) play(r *fasthttp.RequestCtx, g *Gallery) {
	var req playRequest
	if len(r.PostBody()) > 0 {
		if err := json.Unmarshal(r.PostBody(), &req); err != nil || req.Position < 0 {
			r.Error("bad request body", fasthttp.StatusBadRequest)
			return
		}
	}
	offset := time.Duration(req.Position * float64(time.Second))
	if err := g.Play(p.Context, offset); err != nil {
		writeErr(r, err)
		return
	}
	writeJSON(r, fasthttp.StatusOK, g.State())
}

func (p *Portal) pause(r *fasthttp.RequestCtx, g *Gallery) {
	if err := g.Pause(p.Context); err != nil {
		writeErr(r, err)
		return
	}
	writeJSON(r, fasthttp.StatusOK, g.State())
}

func (p *Portal) ended(r *fasthttp.RequestCtx, g *Gallery) {
	if err := g.End(p.Context); err != nil {
		writeErr(r, err)
		return
	}
	writeJSON(r, fasthttp.StatusOK, g.State())
}

func (p *Portal) audio(r *fasthttp.RequestCtx, g *Gallery) {
	l, err := g.Listen()
	if err != nil {
		writeErr(r, err)
		return
	}
	r.SetContentType("audio/ogg")
	r.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	r.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer g.Unlisten(l)
		if err := l.ServeOgg(w); err != nil {
			log.Debug().Str("module", "http").Str("view", g.Id).Err(err).Msg("audio stream ended")
		}
	})
}

func (p *Portal) closeView(r *fasthttp.RequestCtx) {
	id, _ := r.UserValue("id").(string)
	if err := p.Close(id); err != nil {
		writeErr(r, err)
		return
	}
	r.SetStatusCode(fasthttp.StatusNoContent)
}

func (p *Portal) poster(r *fasthttp.RequestCtx) {
	id, err := strconv.Atoi(r.UserValue("id").(string))
	if err != nil {
		r.Error("bad video id", fasthttp.StatusBadRequest)
		return
	}
	v, err := p.Catalog.Find(id)
	if err != nil {
		writeErr(r, err)
		return
	}
	b, err := p.PosterFor(v)
	if err != nil {
		writeErr(r, err)
		return
	}
	r.SetContentType("image/jpeg")
	r.Response.Header.Set(fasthttp.HeaderCacheControl, "max-age=3600")
	r.SetBody(b)
}

func writeJSON(r *fasthttp.RequestCtx, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		r.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	r.SetContentType("application/json")
	r.SetStatusCode(code)
	r.SetBody(b)
}

func writeErr(r *fasthttp.RequestCtx, err error) {
	code := fasthttp.StatusInternalServerError
	switch {
	case errors.Is(err, defs.ErrUnknownView), errors.Is(err, defs.ErrUnknownVideo):
		code = fasthttp.StatusNotFound
	case errors.Is(err, defs.ErrCaptureUnsupported):
		code = fasthttp.StatusNotImplemented
	}
	writeJSON(r, code, map[string]string{"error": err.Error()})
}
