package music

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kkdai/youtube/v2"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
)

// Resolver turns user input into tracks and tracks into playable media links.
type Resolver interface {
	// Search returns the first match for a free-text query or link.
	Search(ctx context.Context, query string) (Track, error)
	// ResolveStreamable returns a copy of t with PlayableURL set.
	ResolveStreamable(ctx context.Context, t Track) (Track, error)
}

// YouTubeResolverOptions configures a YouTubeResolver.
type YouTubeResolverOptions struct {
	CookiesFile string
	Proxy       string
	Workers     int
	Logger      *log.Logger
}

// lookups holds the provider calls used by YouTubeResolver so tests can
// replace them.
type lookups struct {
	searchText   func(ctx context.Context, query string) (Track, error)
	searchYtdlp  func(ctx context.Context, query string) (Track, error)
	metadata     func(ctx context.Context, link string) (Track, error)
	streamNative func(ctx context.Context, link string) (string, error)
	streamYtdlp  func(ctx context.Context, link string) (string, error)
}

// YouTubeResolver looks tracks up on YouTube. Free text goes to the search
// scraper with yt-dlp as the fallback provider; links go straight to yt-dlp.
// Every lookup runs on a bounded pool of worker goroutines.
type YouTubeResolver struct {
	opts   YouTubeResolverOptions
	logger *log.Logger
	sem    chan struct{}
	lookup lookups
}

// NewYouTubeResolver creates a resolver backed by ytsearch, kkdai/youtube and yt-dlp.
func NewYouTubeResolver(opts YouTubeResolverOptions) *YouTubeResolver {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := &YouTubeResolver{
		opts:   opts,
		logger: logger.WithPrefix("resolver"),
		sem:    make(chan struct{}, opts.Workers),
	}

	scraper := ytsearch.NewClient(nil)
	yt := &youtube.Client{}

	r.lookup = lookups{
		searchText: func(ctx context.Context, query string) (Track, error) {
			res, err := scraper.Search(ctx, query)
			if err != nil {
				return Track{}, err
			}
			for _, v := range res.Results {
				if v.VideoID == "" {
					continue
				}
				return Track{
					Title:        v.Title,
					SourceURL:    watchURL(v.VideoID),
					Duration:     parseClock(v.Duration),
					ThumbnailURL: thumbnailURL(v.VideoID),
					Uploader:     v.Channel,
				}, nil
			}
			return Track{}, ErrNotFound
		},
		searchYtdlp: r.ytdlpSearch,
		metadata:    r.ytdlpMetadata,
		streamNative: func(ctx context.Context, link string) (string, error) {
			return youtubeStreamURL(ctx, yt, link)
		},
		streamYtdlp: r.ytdlpStream,
	}
	return r
}

// youtubeStreamURL asks YouTube directly for an audio stream URL, preferring
// opus (itag 251).
func youtubeStreamURL(ctx context.Context, yt *youtube.Client, link string) (string, error) {
	video, err := yt.GetVideoContext(ctx, link)
	if err != nil {
		return "", err
	}
	formats := video.Formats.WithAudioChannels().Type("audio")
	if len(formats) == 0 {
		return "", errors.New("no audio formats")
	}
	best := -1
	for i := range formats {
		if formats[i].ItagNo == 251 {
			best = i
			break
		}
	}
	if best < 0 {
		for i := range formats {
			if strings.Contains(formats[i].MimeType, "opus") {
				best = i
				break
			}
		}
	}
	if best < 0 {
		formats.Sort()
		best = 0
	}
	return yt.GetStreamURLContext(ctx, video, &formats[best])
}

// Search resolves a query or link to a track. It returns ErrNotFound when
// nothing matches and a *ResolutionError when the lookup services fail.
func (r *YouTubeResolver) Search(ctx context.Context, query string) (Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Track{}, ErrNotFound
	}

	return r.do(ctx, func(ctx context.Context) (Track, error) {
		if isLink(query) {
			t, err := r.lookup.metadata(ctx, query)
			if err != nil {
				return Track{}, &ResolutionError{Query: query, Err: err}
			}
			return t, nil
		}

		t, err := r.lookup.searchText(ctx, query)
		if err == nil {
			return t, nil
		}
		if errors.Is(err, ErrNotFound) {
			return Track{}, ErrNotFound
		}
		if ctx.Err() != nil {
			return Track{}, ctx.Err()
		}

		r.logger.Warnf("search scraper failed for %q, falling back to yt-dlp: %v", query, err)
		t, err = r.lookup.searchYtdlp(ctx, query)
		if errors.Is(err, ErrNotFound) {
			return Track{}, ErrNotFound
		}
		if err != nil {
			return Track{}, &ResolutionError{Query: query, Err: err}
		}
		return t, nil
	})
}

// ResolveStreamable fills in the direct media link for t. Stream links expire,
// so this runs every time a track is about to play.
func (r *YouTubeResolver) ResolveStreamable(ctx context.Context, t Track) (Track, error) {
	return r.do(ctx, func(ctx context.Context) (Track, error) {
		if isYouTubeLink(t.SourceURL) {
			u, err := r.lookup.streamNative(ctx, t.SourceURL)
			if err == nil && u != "" {
				t.PlayableURL = u
				return t, nil
			}
			r.logger.Debugf("native stream lookup failed for %s: %v", t.SourceURL, err)
		}

		u, err := r.lookup.streamYtdlp(ctx, t.SourceURL)
		if err != nil {
			return Track{}, &ResolutionError{Query: t.SourceURL, Err: err}
		}
		t.PlayableURL = u
		return t, nil
	})
}

// do runs fn on a worker goroutine. The caller stops waiting as soon as ctx is
// done; the worker finishes in the background and frees its slot.
func (r *YouTubeResolver) do(ctx context.Context, fn func(context.Context) (Track, error)) (Track, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return Track{}, ctx.Err()
	}

	type result struct {
		track Track
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-r.sem }()
		t, err := fn(ctx)
		ch <- result{track: t, err: err}
	}()

	select {
	case res := <-ch:
		return res.track, res.err
	case <-ctx.Done():
		return Track{}, ctx.Err()
	}
}

func (r *YouTubeResolver) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if r.opts.Proxy != "" {
		cmd.Proxy(r.opts.Proxy)
	}
	return cmd
}

func (r *YouTubeResolver) args(target string) []string {
	var args []string
	if r.opts.CookiesFile != "" {
		args = append(args, "--cookies", r.opts.CookiesFile)
	}
	return append(args, target)
}

func (r *YouTubeResolver) ytdlpSearch(ctx context.Context, query string) (Track, error) {
	res, err := r.command().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(id)s").
		PlaylistItems("1-1").
		Run(ctx, r.args("ytsearch1:"+query)...)
	if err != nil {
		return Track{}, fmt.Errorf("yt-dlp search: %w", err)
	}
	t, ok := parsePrintLine(firstLine(res.Stdout))
	if !ok {
		return Track{}, ErrNotFound
	}
	return t, nil
}

func (r *YouTubeResolver) ytdlpMetadata(ctx context.Context, link string) (Track, error) {
	res, err := r.command().
		NoPlaylist().
		Print("%(webpage_url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(id)s").
		Run(ctx, r.args(link)...)
	if err != nil {
		return Track{}, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	t, ok := parsePrintLine(firstLine(res.Stdout))
	if !ok {
		return Track{}, fmt.Errorf("yt-dlp metadata: unexpected output for %s", link)
	}
	return t, nil
}

func (r *YouTubeResolver) ytdlpStream(ctx context.Context, link string) (string, error) {
	res, err := r.command().
		Format("bestaudio/best").
		NoPlaylist().
		Print("%(url)s").
		Run(ctx, r.args(link)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp stream: %w", err)
	}
	u := firstLine(res.Stdout)
	if u == "" {
		return "", fmt.Errorf("yt-dlp stream: no url for %s", link)
	}
	return u, nil
}

// parsePrintLine parses "url\ttitle\tuploader\tduration\tid" as printed by yt-dlp.
func parsePrintLine(line string) (Track, bool) {
	ps := strings.Split(line, "\t")
	if len(ps) < 4 || ps[0] == "" || ps[0] == "NA" {
		return Track{}, false
	}
	t := Track{
		SourceURL: ps[0],
		Title:     naToEmpty(ps[1]),
		Uploader:  naToEmpty(ps[2]),
	}
	if secs, err := strconv.ParseFloat(ps[3], 64); err == nil {
		t.Duration = time.Duration(secs * float64(time.Second))
	}
	if len(ps) >= 5 && naToEmpty(ps[4]) != "" {
		t.ThumbnailURL = thumbnailURL(ps[4])
		if !isLink(t.SourceURL) {
			t.SourceURL = watchURL(ps[4])
		}
	}
	if t.Title == "" {
		t.Title = t.SourceURL
	}
	return t, true
}

// parseClock parses "3:20" or "1:05:20" into a duration.
func parseClock(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

func firstLine(s string) string {
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func isLink(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isYouTubeLink(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return host == "youtube.com" || host == "music.youtube.com" || host == "m.youtube.com" || host == "youtu.be"
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func thumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
}
