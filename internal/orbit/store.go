package orbit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed iss_tle.txt
var embeddedTLE string

const tleCacheFile = "tle_cache.txt"

// maxTLEBody caps a bulk TLE download. The full active catalog is under
// 2 MiB.
const maxTLEBody = 16 << 20

// Tier names which link of the fallback chain served a lookup.
type Tier string

const (
	TierCache      Tier = "cache"
	TierNetwork    Tier = "network"
	TierStaleCache Tier = "stale-cache"
	TierEmbedded   Tier = "embedded"
)

// ErrNotFound is returned when no tier carries the requested catalog number.
var ErrNotFound = errors.New("element set not found")

// Store fetches and caches bulk TLE text. Lookups walk a tiered fallback:
// fresh disk cache, network fetch, stale disk cache, and finally the ISS
// set baked into the binary.
type Store struct {
	url      string
	dataRoot string
	maxAge   time.Duration
	maxBody  int64
	client   *http.Client
}

// NewStore returns a store that fetches TLEs from url and caches them
// under dataRoot. An empty url disables the network tier.
func NewStore(url, dataRoot string, maxAge time.Duration) *Store {
	return &Store{
		url:      url,
		dataRoot: dataRoot,
		maxAge:   maxAge,
		maxBody:  maxTLEBody,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Lookup returns the parsed element set for satnum and the tier that
// served it. A tier whose text lacks satnum falls through to the next one.
func (s *Store) Lookup(ctx context.Context, satnum int) (*Elements, Tier, error) {
	cachePath := filepath.Join(s.dataRoot, tleCacheFile)

	// Tier 1: fresh disk cache
	if info, err := os.Stat(cachePath); err == nil && time.Since(info.ModTime()) < s.maxAge {
		if el, ok := s.readCache(cachePath, satnum); ok {
			return el, TierCache, nil
		}
	}

	// Tier 2: network fetch
	var fetchErr error
	if s.url != "" {
		var body string
		body, fetchErr = s.fetchFromNetwork(ctx)
		if fetchErr == nil {
			// Cache write failure is non-fatal; the data is already in memory.
			_ = s.writeCache(cachePath, body)
			if el, err := FindElements(body, satnum); err == nil {
				return el, TierNetwork, nil
			}
		}
	}

	// Tier 3: stale disk cache
	if el, ok := s.readCache(cachePath, satnum); ok {
		return el, TierStaleCache, nil
	}

	// Tier 4: embedded fallback
	if el, err := FindElements(embeddedTLE, satnum); err == nil {
		return el, TierEmbedded, nil
	}

	if fetchErr != nil {
		return nil, "", fmt.Errorf("%w: %d: all TLE sources exhausted: %v", ErrNotFound, satnum, fetchErr)
	}
	return nil, "", fmt.Errorf("%w: %d", ErrNotFound, satnum)
}

func (s *Store) readCache(path string, satnum int) (*Elements, bool) {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	el, err := FindElements(string(b), satnum)
	return el, err == nil
}

func (s *Store) fetchFromNetwork(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > s.maxBody {
		return "", fmt.Errorf("TLE fetch body exceeds %d bytes", s.maxBody)
	}
	return string(b), nil
}

// writeCache writes via a temp file and rename so readers never see a
// half-written file.
func (s *Store) writeCache(cachePath, data string) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), cachePath)
}

// FindElements scans bulk TLE text for satnum. Both the 3-line (name, line
// 1, line 2) layout served by CelesTrak and bare 2-line pairs are accepted;
// invalid sets are skipped.
func FindElements(raw string, satnum int) (*Elements, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	name := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \r")
		if !strings.HasPrefix(line, "1 ") || i+1 >= len(lines) {
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "2 ") {
				name = strings.TrimPrefix(strings.TrimSpace(line), "0 ")
			}
			continue
		}

		el, err := ParseElements(name, line, lines[i+1])
		name = ""
		if err != nil {
			continue
		}
		i++
		if el.SatNum == satnum {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, satnum)
}
