package netmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"melodeck/src/library"
	"melodeck/src/settings"
)

// Source resolves track identities to stream URLs and lyrics over HTTP. The
// media endpoint is a URL template with {mid} and {quality} placeholders.
type Source struct {
	client       *http.Client
	urlTemplate  string
	lyricURL     string
	lyricDir     string
	recommendURL string
}

func NewSource(urlTemplate, lyricURL, lyricDir, recommendURL string) (*Source, error) {
	if !strings.Contains(urlTemplate, "{mid}") {
		return nil, fmt.Errorf("media url template %q lacks a {mid} placeholder", urlTemplate)
	}
	return &Source{
		client:       &http.Client{Timeout: 10 * time.Second},
		urlTemplate:  urlTemplate,
		lyricURL:     lyricURL,
		lyricDir:     lyricDir,
		recommendURL: recommendURL,
	}, nil
}

// Recommend fetches tracks to append when the queue runs dry. Returns no
// tracks when no recommendation endpoint is configured.
func (s *Source) Recommend(ctx context.Context) ([]library.Track, error) {
	if s.recommendURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.recommendURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch recommendations: http status %s", res.Status)
	}

	var payload struct {
		Tracks []library.Track `json:"tracks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return payload.Tracks, nil
}

// qualityLadder is the order in which stream qualities are attempted. The
// preferred one goes first, the others remain as fallbacks.
func qualityLadder(quality settings.Quality) []settings.Quality {
	switch quality {
	case settings.QualityCompat:
		return []settings.Quality{settings.QualityCompat, settings.QualityBalanced, settings.QualityHigh}
	case settings.QualityBalanced:
		return []settings.Quality{settings.QualityBalanced, settings.QualityCompat, settings.QualityHigh}
	default:
		return []settings.Quality{settings.QualityHigh, settings.QualityBalanced, settings.QualityCompat}
	}
}

// ResolveURL returns the first stream URL the server reports available,
// walking down the quality ladder from the preferred quality.
func (s *Source) ResolveURL(ctx context.Context, mid string, quality settings.Quality) (string, error) {
	var lastErr error
	for _, q := range qualityLadder(quality) {
		streamURL := s.fillTemplate(mid, q)
		ok, err := s.available(ctx, streamURL)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return streamURL, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("no available stream for %q: %w", mid, lastErr)
	}
	return "", fmt.Errorf("no available stream for %q", mid)
}

func (s *Source) fillTemplate(mid string, quality settings.Quality) string {
	streamURL := strings.ReplaceAll(s.urlTemplate, "{mid}", mid)
	return strings.ReplaceAll(streamURL, "{quality}", string(quality))
}

func (s *Source) available(ctx context.Context, streamURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		return false, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	res.Body.Close()
	return res.StatusCode >= 200 && res.StatusCode < 300, nil
}

// ResolveLyric loads the lyric for a track, preferring a local LRC file over
// the remote endpoint. A nil result without error means no lyric exists.
func (s *Source) ResolveLyric(ctx context.Context, mid, name, artist string) (*library.Lyric, error) {
	if s.lyricDir != "" {
		lyric, err := s.localLyric(mid)
		if err != nil {
			return nil, err
		}
		if lyric != nil {
			return lyric, nil
		}
	}
	if s.lyricURL == "" {
		return nil, nil
	}
	return s.remoteLyric(ctx, mid)
}

func (s *Source) localLyric(mid string) (*library.Lyric, error) {
	text, err := os.ReadFile(filepath.Join(s.lyricDir, mid+".lrc"))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	// A sibling .trans.lrc file carries the translated lines.
	trans, err := os.ReadFile(filepath.Join(s.lyricDir, mid+".trans.lrc"))
	if err != nil && !os.IsNotExist(err) {
		log.WithField("mid", mid).Warnf("Could not read lyric translation: %v", err)
	}
	return library.ParseLRC(string(text), string(trans)), nil
}

func (s *Source) remoteLyric(ctx context.Context, mid string) (*library.Lyric, error) {
	lyricURL := strings.ReplaceAll(s.lyricURL, "{mid}", mid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lyricURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch lyric: http status %s", res.Status)
	}

	var payload struct {
		Lyric string `json:"lyric"`
		Trans string `json:"trans"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode lyric response: %w", err)
	}
	if payload.Lyric == "" {
		return nil, nil
	}
	return library.ParseLRC(payload.Lyric, payload.Trans), nil
}
