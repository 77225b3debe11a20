// Package prefetch probes an origin server to determine whether it
// supports byte-range requests, how large the resource is, and what it
// should be named locally — the UrlInfo the engine needs before it can
// decide between the multi-worker and single-worker paths.
//
// Probing tries HEAD first and falls back to a Range GET; filename
// derivation follows Content-Disposition (vfaronov/httpheader handles
// the RFC 5987 / RFC 6266 parsing), and a name left without an extension
// gets one guessed from the body's magic bytes via h2non/filetype.
package prefetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// UrlInfo is the metadata the engine needs to plan a download.
type UrlInfo struct {
	Size          int64
	Name          string
	SupportsRange bool
	FinalURL      string
	ETag          string
	LastModified  string
}

// FastDownload reports whether the resource is large enough and
// range-capable enough to use the multi-worker engine.
func (u UrlInfo) FastDownload() bool {
	return u.Size > 0 && u.SupportsRange
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Probe determines UrlInfo for rawurl. It first tries HEAD; if that fails
// to establish range support and size, it falls back to GET with
// Range: bytes=0-.
func Probe(ctx context.Context, client *http.Client, rawurl string) (UrlInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}

	info, err := probeHead(ctx, client, rawurl)
	if err == nil && info.SupportsRange && info.Size > 0 {
		return info, nil
	}

	return probeRangeGet(ctx, client, rawurl)
}

func probeHead(ctx context.Context, client *http.Client, rawurl string) (UrlInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawurl, nil)
	if err != nil {
		return UrlInfo{}, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return UrlInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UrlInfo{}, fmt.Errorf("prefetch: HEAD returned status %d", resp.StatusCode)
	}

	info := UrlInfo{
		FinalURL:      resp.Request.URL.String(),
		ETag:          resp.Header.Get("ETag"),
		LastModified:  resp.Header.Get("Last-Modified"),
		SupportsRange: acceptsRanges(resp.Header.Get("Accept-Ranges")),
	}
	if cr := resp.Header.Get("Content-Range"); resp.StatusCode == http.StatusPartialContent && cr != "" {
		info.Size = parseContentRangeTotal(cr)
	} else if cl := resp.Header.Get("Content-Length"); cl != "" {
		info.Size, _ = strconv.ParseInt(cl, 10, 64)
	}
	info.Name = deriveName(rawurl, resp, nil)
	return info, nil
}

// sniffLen is how many leading body bytes probeRangeGet reads to feed
// h2non/filetype's magic-byte matcher when the derived name has no
// extension. HEAD responses carry no body, so only the Range-GET
// fallback path can ever sniff.
const sniffLen = 512

func probeRangeGet(ctx context.Context, client *http.Client, rawurl string) (UrlInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return UrlInfo{}, err
	}
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return UrlInfo{}, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	info := UrlInfo{
		FinalURL:     resp.Request.URL.String(),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		info.SupportsRange = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			info.Size = parseContentRangeTotal(cr)
		}
	case http.StatusOK:
		info.SupportsRange = false
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			info.Size, _ = strconv.ParseInt(cl, 10, 64)
		}
	default:
		return UrlInfo{}, fmt.Errorf("prefetch: unexpected status %d", resp.StatusCode)
	}

	header := make([]byte, sniffLen)
	n, _ := io.ReadFull(resp.Body, header)
	header = header[:n]
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(header), resp.Body), resp.Body}

	info.Name = deriveName(rawurl, resp, header)
	return info, nil
}

func acceptsRanges(header string) bool {
	for _, v := range strings.Split(header, ",") {
		if strings.TrimSpace(strings.ToLower(v)) == "bytes" {
			return true
		}
	}
	return false
}

func parseContentRangeTotal(contentRange string) int64 {
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0
	}
	sizeStr := contentRange[idx+1:]
	if sizeStr == "*" {
		return 0
	}
	size, _ := strconv.ParseInt(sizeStr, 10, 64)
	return size
}

// deriveName applies the naming precedence: Content-Disposition
// (quoted/unquoted filename=, RFC 5987 filename*=), else last path
// segment percent-decoded, else the URL string itself. If the resulting
// name has no extension and header holds sniffed body bytes (probeHead
// passes nil — a HEAD response has no body to sniff), it appends an
// extension guessed from the magic bytes via h2non/filetype.
func deriveName(rawurl string, resp *http.Response, header []byte) string {
	name := nameFromPath(rawurl)
	if _, cdName, err := httpheader.ContentDisposition(resp.Header); err == nil && cdName != "" {
		name = sanitizeFilename(cdName)
	}

	if len(header) > 0 && path.Ext(name) == "" {
		if kind, _ := filetype.Match(header); kind != filetype.Unknown && kind.Extension != "" {
			name += "." + kind.Extension
		}
	}
	return name
}

func nameFromPath(rawurl string) string {
	if parsed, err := url.Parse(rawurl); err == nil {
		base := path.Base(parsed.Path)
		if base != "" && base != "." && base != "/" {
			if decoded, err := url.PathUnescape(base); err == nil {
				return sanitizeFilename(decoded)
			}
			return sanitizeFilename(base)
		}
	}
	return sanitizeFilename(rawurl)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return "download.bin"
	}
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	name = replacer.Replace(name)
	const maxLen = 200
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	if name == "" {
		return "download.bin"
	}
	return name
}

// DefaultClient returns an http.Client tuned for short-lived prefetch
// requests.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
