package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// MJPEGStream reads JPEG frames from a multipart/x-mixed-replace HTTP
// response, the format served by IP cameras and phone webcam apps.
type MJPEGStream struct {
	body   io.ReadCloser
	reader *multipart.Reader
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenMJPEG connects to a camera endpoint. ctx bounds the connection attempt
// only; the stream stays open until Close.
func OpenMJPEG(ctx context.Context, client *http.Client, rawURL string) (*MJPEGStream, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	stopAbort := context.AfterFunc(ctx, cancel)
	defer stopAbort()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating camera request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to camera: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, ErrNotMJPEG
	}

	return &MJPEGStream{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
		closed: make(chan struct{}),
	}, nil
}

// ReadFrame decodes the next part of the stream. Cancelling ctx aborts the
// connection so a blocked read returns promptly.
func (m *MJPEGStream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-m.closed:
		return nil, ErrStreamClosed
	default:
	}

	stopAbort := context.AfterFunc(ctx, m.cancel)
	defer stopAbort()

	part, err := m.reader.NextPart()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		select {
		case <-m.closed:
			return nil, ErrStreamClosed
		default:
		}
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	defer part.Close()

	img, _, err := image.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return img, nil
}

// Close drops the connection
func (m *MJPEGStream) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closed)
		m.cancel()
		err = m.body.Close()
	})
	return err
}

// MJPEGAcquirers returns the camera request variants for baseURL, most
// specific first: rear camera with a resolution hint, the older
// camera=back query, then the bare URL.
func MJPEGAcquirers(client *http.Client, baseURL string) []Acquirer {
	if client == nil {
		client = http.DefaultClient
	}

	variant := func(name string, query url.Values) Acquirer {
		return Acquirer{
			Name: name,
			Acquire: func(ctx context.Context) (Stream, error) {
				u, err := url.Parse(baseURL)
				if err != nil {
					return nil, fmt.Errorf("parsing camera url: %w", err)
				}
				q := u.Query()
				for k, vs := range query {
					for _, v := range vs {
						q.Add(k, v)
					}
				}
				u.RawQuery = q.Encode()
				return OpenMJPEG(ctx, client, u.String())
			},
		}
	}

	return []Acquirer{
		variant("preferred", url.Values{
			"facing": {"environment"},
			"width":  {"1280"},
			"height": {"720"},
		}),
		variant("legacy", url.Values{"camera": {"back"}}),
		variant("unconstrained", nil),
	}
}
