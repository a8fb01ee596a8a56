// Copyright 2022 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ebcdiag exposes the state of an ebc.Dev over HTTP.
//
// Endpoints:
//
//	GET  /buffer/{name}   one image of a buffer
//	GET  /stream/{name}   the buffer as a multipart/x-mixed-replace stream,
//	                      updated after every refresh ("MJPEG")
//	GET  /stats           the refresh counters as JSON
//	POST /refresh         requests a global refresh
//	PUT  /offscreen       sets the off-screen image from a PNG or JPEG body
//
// Buffer names are prev, next, final, phase0 and phase1. Images are PNG by
// default; "?format=jpeg" selects JPEG.
//
// Streams are updated when Refreshed is called, which is meant to be hooked
// as ebc.Opts.OnRefresh.
package ebcdiag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"

	"github.com/GermanBionicSystems/epaper/ebc"
)

// Source is the device being inspected. *ebc.Dev implements it.
type Source interface {
	Snapshot() (*ebc.Snapshot, error)
	Stats() ebc.Stats
	RequestGlobalRefresh()
	SetOffScreenImage(img image.Image) error
}

// Options for the server.
type Options struct {
	// Format specifies the default image format sent to clients.
	Format ImageFormat
	// JPEGQuality defaults to jpeg.DefaultQuality.
	JPEGQuality int
	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// Server is an http.Handler serving the diagnostics of a Source.
type Server struct {
	src           Source
	defaultFormat ImageFormat
	jpegOptions   jpeg.Options
	log           *log.Logger
	mux           *http.ServeMux

	mu sync.Mutex
	// snap is the snapshot the cached images were rendered from, nil when
	// stale.
	snap    *ebc.Snapshot
	cache   map[imageConfig][]byte
	clients map[*client]struct{}
}

var _ http.Handler = (*Server)(nil)

// New returns a Server inspecting src.
func New(src Source, opt *Options) *Server {
	s := &Server{
		src:           src,
		defaultFormat: opt.Format,
		jpegOptions:   jpeg.Options{Quality: opt.JPEGQuality},
		log:           opt.Logger,
		mux:           http.NewServeMux(),
		cache:         map[imageConfig][]byte{},
		clients:       map[*client]struct{}{},
	}
	if s.jpegOptions.Quality == 0 {
		s.jpegOptions.Quality = jpeg.DefaultQuality
	}
	if s.log == nil {
		s.log = log.Default()
	}
	s.mux.HandleFunc("GET /buffer/{name}", s.serveBuffer)
	s.mux.HandleFunc("GET /stream/{name}", s.serveStream)
	s.mux.HandleFunc("GET /stats", s.serveStats)
	s.mux.HandleFunc("POST /refresh", s.serveRefresh)
	s.mux.HandleFunc("PUT /offscreen", s.serveOffScreen)
	return s
}

// String returns the name of the server.
func (s *Server) String() string {
	return "ebcdiag"
}

// Halt implements conn.Resource and terminates all running streams
// asynchronously.
func (s *Server) Halt() error {
	s.mu.Lock()
	for c := range s.clients {
		select {
		case c.terminate <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	return nil
}

// Refreshed invalidates the images and updates the streams. Its signature
// matches ebc.Opts.OnRefresh.
func (s *Server) Refreshed(global bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	for cfg, buffer := range s.cache {
		//lint:ignore SA6002 buffer is []byte and thus pointer-like
		bufferPool.Put(buffer)
		delete(s.cache, cfg)
	}
	for c := range s.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type imageConfig struct {
	buffer Buffer
	format ImageFormat
}

func (s *Server) configFromRequest(r *http.Request) (imageConfig, error) {
	cfg := imageConfig{format: s.defaultFormat}
	var err error
	if cfg.buffer, err = BufferFromString(r.PathValue("name")); err != nil {
		return imageConfig{}, err
	}
	if err := s.formatFromQuery(&cfg, r.URL.Query()); err != nil {
		return imageConfig{}, err
	}
	return cfg, nil
}

func (s *Server) formatFromQuery(cfg *imageConfig, values url.Values) error {
	if value := values.Get("format"); value != "" {
		format, err := ImageFormatFromString(value)
		if err != nil {
			return err
		}
		cfg.format = format
	}
	return nil
}

func (s *Server) encode(img image.Image, format ImageFormat) ([]byte, error) {
	buf := bytes.NewBuffer(bufferPool.Get().([]byte)[:0])

	switch format {
	case PNG:
		if err := pngEncoder.Encode(buf, img); err != nil {
			return nil, err
		}

	case JPEG:
		if err := jpeg.Encode(buf, img, &s.jpegOptions); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unhandled image format %s", format)
	}

	return buf.Bytes(), nil
}

// grabImage returns a copy of the encoded image for cfg, taking a new
// snapshot when the device refreshed since the last one.
func (s *Server) grabImage(cfg imageConfig) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, ok := s.cache[cfg]
	if !ok {
		if s.snap == nil {
			snap, err := s.src.Snapshot()
			if err != nil {
				return nil, err
			}
			s.snap = snap
		}
		img, err := render(s.snap, cfg.buffer)
		if err != nil {
			return nil, err
		}
		if encoded, err = s.encode(img, cfg.format); err != nil {
			return nil, err
		}
		s.cache[cfg] = encoded
	}

	return append(bufferPool.Get().([]byte)[:0], encoded...), nil
}

func (s *Server) serveBuffer(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := s.grabImage(cfg)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", cfg.format.mimeType())
	if _, err := w.Write(payload); err != nil {
		s.log.Printf("Writing %s failed: %v", cfg.buffer, err)
	}
	//lint:ignore SA6002 buffer is []byte and thus pointer-like
	bufferPool.Put(payload)
}

type client struct {
	refresh   chan struct{}
	terminate chan struct{}
}

// serveStream sends an image of the buffer, then a new one after every
// refresh, until the client goes away or the server is halted.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Fail before committing to a stream.
	payload, err := s.grabImage(cfg)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	pw := newPartWriter(w)
	w.Header().Set("Content-Type",
		mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{
			"boundary": pw.boundary,
		}))

	c := &client{
		refresh:   make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	partHeaders := make(textproto.MIMEHeader)
	partHeaders.Set("Content-Type", mime.FormatMediaType(cfg.format.mimeType(), nil))
	partHeaders.Set("Content-Transfer-Encoding", "binary")

	for {
		err := pw.writeFrame(partHeaders, payload)
		//lint:ignore SA6002 buffer is []byte and thus pointer-like
		bufferPool.Put(payload)
		if err != nil {
			// Errors cause the request to be silently terminated. There's no
			// good way to deliver an error message to the client within an
			// image stream.
			return
		}
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		select {
		case <-c.refresh:
		case <-c.terminate:
			return
		case <-r.Context().Done():
			return
		}

		if payload, err = s.grabImage(cfg); err != nil {
			s.log.Printf("Streaming %s stopped: %v", cfg.buffer, err)
			return
		}
	}
}

// stats is the JSON form of ebc.Stats.
type stats struct {
	GlobalRefreshes  uint64 `json:"global_refreshes"`
	RefreshTimeouts  uint64 `json:"refresh_timeouts"`
	PartialRefreshes uint64 `json:"partial_refreshes"`
	Frames           uint64 `json:"frames"`
	FrameTimeouts    uint64 `json:"frame_timeouts"`
	AreasStarted     uint64 `json:"areas_started"`
	PixelsRefreshed  uint64 `json:"pixels_refreshed"`
	PixelsPending    uint64 `json:"pixels_pending"`
	LastErr          string `json:"last_error,omitempty"`
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	st := s.src.Stats()
	out := stats{
		GlobalRefreshes:  st.GlobalRefreshes,
		RefreshTimeouts:  st.RefreshTimeouts,
		PartialRefreshes: st.PartialRefreshes,
		Frames:           st.Frames,
		FrameTimeouts:    st.FrameTimeouts,
		AreasStarted:     st.AreasStarted,
		PixelsRefreshed:  st.PixelsRefreshed,
		PixelsPending:    st.PixelsPending,
	}
	if st.LastErr != nil {
		out.LastErr = st.LastErr.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&out); err != nil {
		s.log.Printf("Writing stats failed: %v", err)
	}
}

func (s *Server) serveRefresh(w http.ResponseWriter, r *http.Request) {
	s.src.RequestGlobalRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) serveOffScreen(w http.ResponseWriter, r *http.Request) {
	img, _, err := image.Decode(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.src.SetOffScreenImage(img); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ebc.ErrHalted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ebc.ErrBufferSize):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
