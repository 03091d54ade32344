package location

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mmcdole/gofeed"

	"wildmap/app"
	"wildmap/data"
)

// Source loads a list of records
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
	String() string
}

// httpClient is the shared HTTP client with timeout
var httpClient = &http.Client{Timeout: 15 * time.Second}

// FileSource reads a JSON array from a local file
type FileSource struct {
	Path string
}

func (f *FileSource) Fetch(ctx context.Context) ([]Record, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return Decode(fh)
}

func (f *FileSource) String() string { return f.Path }

type kindKey struct{}

// WithKind tags ctx with what fetched records are for, locations or
// markers, so the fetch log can tell the two apart.
func WithKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

func kindOf(ctx context.Context) string {
	kind, _ := ctx.Value(kindKey{}).(string)
	return kind
}

func logCall(ctx context.Context, transport, url string, status, records int, start time.Time, err error) {
	app.RecordAPICall(app.APICall{
		Transport: transport,
		Kind:      kindOf(ctx),
		Method:    http.MethodGet,
		URL:       url,
		Status:    status,
		Records:   records,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// HTTPSource fetches a JSON array over http(s)
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (h *HTTPSource) Fetch(ctx context.Context) ([]Record, error) {
	client := h.Client
	if client == nil {
		client = httpClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Wildmap/1.0")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logCall(ctx, "http", h.URL, 0, 0, start, err)
		return nil, fmt.Errorf("request %s failed: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s returned status %d", h.URL, resp.StatusCode)
		logCall(ctx, "http", h.URL, resp.StatusCode, 0, start, err)
		return nil, err
	}

	records, err := Decode(resp.Body)
	logCall(ctx, "http", h.URL, resp.StatusCode, len(records), start, err)
	return records, err
}

func (h *HTTPSource) String() string { return h.URL }

// S3Source reads a JSON array from an object in S3 compatible storage
type S3Source struct {
	Client *minio.Client
	Bucket string
	Key    string
}

// NewS3Source connects to the configured endpoint for bucket/key
func NewS3Source(cfg app.S3Config, bucket, key string) (*S3Source, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Fetch(ctx context.Context) ([]Record, error) {
	start := time.Now()
	object, err := s.Client.GetObject(ctx, s.Bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		logCall(ctx, "s3", s.String(), 0, 0, start, err)
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	records, err := Decode(object)
	status := http.StatusOK
	if err != nil {
		status = minio.ToErrorResponse(err).StatusCode
	}
	logCall(ctx, "s3", s.String(), status, len(records), start, err)
	return records, err
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// FeedSource reads an RSS or Atom feed whose items carry GeoRSS or W3C geo
// coordinates. Items without coordinates are skipped.
type FeedSource struct {
	URL string
}

func (f *FeedSource) Fetch(ctx context.Context) ([]Record, error) {
	start := time.Now()
	parser := gofeed.NewParser()
	parser.Client = httpClient
	feed, err := parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		logCall(ctx, "feed", f.URL, 0, 0, start, err)
		return nil, fmt.Errorf("parse feed %s: %w", f.URL, err)
	}

	records := make([]Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		lat, lng, ok := itemCoordinates(item)
		if !ok {
			continue
		}
		r := Record{
			Title:       item.Title,
			Latitude:    lat,
			Longitude:   lng,
			Description: item.Description,
			Brief:       item.Description,
			Link:        item.Link,
		}
		if item.Image != nil {
			r.Image = item.Image.URL
			r.Photo = item.Image.URL
		}
		if len(item.Categories) > 0 {
			r.Status = item.Categories[0]
		}
		records = append(records, r)
	}
	logCall(ctx, "feed", f.URL, http.StatusOK, len(records), start, nil)
	return records, nil
}

func (f *FeedSource) String() string { return "feed+" + f.URL }

// itemCoordinates reads <georss:point>lat lng</georss:point> or
// <geo:lat>/<geo:long>.
func itemCoordinates(item *gofeed.Item) (float64, float64, bool) {
	if georss, ok := item.Extensions["georss"]; ok {
		if pts := georss["point"]; len(pts) > 0 {
			parts := strings.Fields(pts[0].Value)
			if len(parts) == 2 {
				lat, latErr := strconv.ParseFloat(parts[0], 64)
				lng, lngErr := strconv.ParseFloat(parts[1], 64)
				if latErr == nil && lngErr == nil {
					return lat, lng, true
				}
			}
		}
	}
	if geo, ok := item.Extensions["geo"]; ok {
		if len(geo["lat"]) > 0 && len(geo["long"]) > 0 {
			lat, latErr := strconv.ParseFloat(strings.TrimSpace(geo["lat"][0].Value), 64)
			lng, lngErr := strconv.ParseFloat(strings.TrimSpace(geo["long"][0].Value), 64)
			if latErr == nil && lngErr == nil {
				return lat, lng, true
			}
		}
	}
	return 0, 0, false
}

// recorded persists the outcome of every fetch of the wrapped source
type recorded struct {
	Source
	kind string
}

// Recorded wraps src so each fetch is written to the fetch history under kind
func Recorded(src Source, kind string) Source {
	return &recorded{Source: src, kind: kind}
}

func (r *recorded) Fetch(ctx context.Context) ([]Record, error) {
	start := time.Now()
	records, err := r.Source.Fetch(WithKind(ctx, r.kind))

	f := &data.Fetch{
		Source:   r.Source.String(),
		Kind:     r.kind,
		Records:  len(records),
		Duration: time.Since(start),
	}
	if err != nil {
		f.Error = err.Error()
	}
	if rerr := data.RecordFetch(f); rerr != nil {
		app.Log("location", "record fetch of %s: %v", f.Source, rerr)
	}
	return records, err
}

// ParseSource turns a source string into a Source:
//
//	map.json                     local file
//	https://host/map.json        JSON over http(s)
//	s3://bucket/path/map.json    object storage, credentials from cfg
//	feed+https://host/feed.xml   GeoRSS / W3C geo feed
func ParseSource(uri string, cfg app.S3Config) (Source, error) {
	switch {
	case uri == "":
		return nil, fmt.Errorf("empty source")
	case strings.HasPrefix(uri, "feed+"):
		return &FeedSource{URL: strings.TrimPrefix(uri, "feed+")}, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return &HTTPSource{URL: uri}, nil
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid s3 source %q, want s3://bucket/key", uri)
		}
		return NewS3Source(cfg, bucket, key)
	default:
		return &FileSource{Path: uri}, nil
	}
}
