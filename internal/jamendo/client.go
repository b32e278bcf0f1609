// Package jamendo searches the Jamendo catalogue and fetches track audio.
// The client ID never leaves the server.
package jamendo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	SearchLimit    = 10
	MinQueryLength = 2
	userAgent      = "liteshow/2.0"
)

var (
	ErrNoClientID    = errors.New("JAMENDO_CLIENT_ID not configured")
	ErrTimeout       = errors.New("request timed out")
	ErrForbiddenHost = errors.New("only https jamendo.com audio URLs are allowed")
	ErrNotFound      = errors.New("track not found")
	ErrTooLarge      = errors.New("audio exceeds size limit")
	ErrQueryTooShort = fmt.Errorf("query must be at least %d characters", MinQueryLength)
)

// FetchError describes a failed search, lookup or audio fetch.
type FetchError struct {
	Op     string // "search", "lookup" or "audio"
	URL    string
	Status int // HTTP status, 0 if no response arrived
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("jamendo %s: returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("jamendo %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAbort reports whether err came from a cancelled request. Aborted
// requests were replaced by newer ones and are discarded silently.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Track is one catalogue entry. Audio is empty for featured tracks until
// they are looked up.
type Track struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artist   string `json:"artist_name"`
	Duration int    `json:"duration"`
	Image    string `json:"image"`
	Audio    string `json:"audio,omitempty"`
}

// Featured is the fixed list shown before the user searches.
var Featured = []Track{
	{ID: "1214935", Name: "Wish You Were Here", Artist: "The.madpix.project", Duration: 270, Image: coverURL("145774", "1214935")},
	{ID: "1587010", Name: "Loaded Gun", Artist: "THE SAME PERSONS", Duration: 184, Image: coverURL("296618", "1587010")},
	{ID: "1234661", Name: "Waves", Artist: "studyBreak", Duration: 252, Image: coverURL("148029", "1234661")},
}

func coverURL(album, track string) string {
	return "https://usercontent.jamendo.com?type=album&id=" + album + "&width=300&trackid=" + track
}

// Client talks to the Jamendo v3 tracks API.
type Client struct {
	apiURL   string
	clientID string
	search   *http.Client
	fetch    *http.Client

	// AllowHost decides which audio hosts FetchAudio may contact.
	AllowHost func(u *url.URL) bool
	// MaxAudioBytes bounds a single FetchAudio download.
	MaxAudioBytes int64
}

// DefaultMaxAudioBytes matches the default upload limit.
const DefaultMaxAudioBytes = 64 << 20

// NewClient creates a Jamendo client. Search and lookup use searchTimeout,
// audio downloads use fetchTimeout.
func NewClient(apiURL, clientID string, searchTimeout, fetchTimeout time.Duration) *Client {
	return &Client{
		apiURL:    strings.TrimRight(apiURL, "/"),
		clientID:  clientID,
		search:    &http.Client{Timeout: searchTimeout},
		fetch:     &http.Client{Timeout: fetchTimeout},
		AllowHost: JamendoHost,

		MaxAudioBytes: DefaultMaxAudioBytes,
	}
}

// JamendoHost accepts https URLs on jamendo.com or any of its subdomains.
func JamendoHost(u *url.URL) bool {
	host := u.Hostname()
	return u.Scheme == "https" && (host == "jamendo.com" || strings.HasSuffix(host, ".jamendo.com"))
}

type tracksResp struct {
	Headers struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	} `json:"headers"`
	Results []Track `json:"results"`
}

// Search returns up to SearchLimit tracks matching q.
func (c *Client) Search(ctx context.Context, q string) ([]Track, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinQueryLength {
		return nil, ErrQueryTooShort
	}
	params := url.Values{}
	params.Set("search", q)
	params.Set("limit", fmt.Sprint(SearchLimit))
	params.Set("audioformat", "mp32")
	return c.tracks(ctx, "search", params)
}

// Lookup resolves a single track by ID, including its audio URL.
func (c *Client) Lookup(ctx context.Context, id string) (Track, error) {
	params := url.Values{}
	params.Set("id", id)
	params.Set("audioformat", "mp32")
	results, err := c.tracks(ctx, "lookup", params)
	if err != nil {
		return Track{}, err
	}
	if len(results) == 0 || results[0].Audio == "" {
		return Track{}, &FetchError{Op: "lookup", Err: fmt.Errorf("%w: %s", ErrNotFound, id)}
	}
	return results[0], nil
}

func (c *Client) tracks(ctx context.Context, op string, params url.Values) ([]Track, error) {
	if c.clientID == "" {
		return nil, ErrNoClientID
	}
	params.Set("client_id", c.clientID)
	params.Set("format", "json")
	endpoint := c.apiURL + "/tracks/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.search.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: classify(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("Jamendo API returned %d", resp.StatusCode)}
	}

	var result tracksResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Headers.Status == "failed" {
		return nil, &FetchError{Op: op, Err: errors.New(result.Headers.ErrorMessage)}
	}
	return result.Results, nil
}

// FetchAudio downloads encoded audio from rawURL and returns the bytes and
// content type. Only hosts accepted by AllowHost are contacted.
func (c *Client) FetchAudio(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !c.AllowHost(u) {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Status: http.StatusForbidden, Err: ErrForbiddenHost}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.fetch.Do(req)
	if err != nil {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Err: classify(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}

	limit := c.MaxAudioBytes
	if limit <= 0 {
		limit = DefaultMaxAudioBytes
	}
	if resp.ContentLength > limit {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Err: ErrTooLarge}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Err: classify(err)}
	}
	if int64(len(data)) > limit {
		return nil, "", &FetchError{Op: "audio", URL: rawURL, Err: ErrTooLarge}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	log.Printf("Jamendo: fetched %d KB in %v", len(data)/1024, time.Since(start).Round(time.Millisecond))
	return data, ct, nil
}

// classify maps transport failures onto the error taxonomy. Cancellation
// is kept as is so IsAbort still matches. The request URL is dropped.
func classify(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
