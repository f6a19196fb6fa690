package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"

	"mapleads/internal/config"
	"mapleads/internal/leads"
	"mapleads/internal/logger"
	"mapleads/internal/platform/redis"
	"mapleads/internal/platform/tasks"
	"mapleads/internal/utils/markdown"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodyBytes = 2 << 20
	cacheTTL     = 7 * 24 * time.Hour
)

// Payload is the asynq task body for one website check.
type Payload struct {
	JobID string `json:"job_id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	URL   string `json:"url"`
}

// NewTask builds the asynq task for a record's website, assigning a job ID.
func NewTask(p Payload) (*asynq.Task, error) {
	if p.JobID == "" {
		p.JobID = uuid.New().String()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(tasks.TaskTypeVerifyWebsite, b), nil
}

// probeResult is what one fetch learned about a site. Cached in redis so
// businesses sharing a website are not re-fetched.
type probeResult struct {
	Status      leads.WebsiteStatus `json:"status"`
	Title       string              `json:"title,omitempty"`
	SocialLinks []string            `json:"social_links,omitempty"`
	PageCount   int                 `json:"page_count"`
	CheckedAt   time.Time           `json:"checked_at"`
}

// Service re-checks discovered websites: a listing's authority link often
// points at a dead domain or a parked page, and those businesses are still
// qualified leads.
type Service struct {
	log     *logger.Logger
	store   *leads.Store
	redis   *redis.Service
	limiter *rate.Limiter
	client  *http.Client
	dataDir string
}

func New(cfg *config.Config, store *leads.Store, r *redis.Service) *Service {
	perSecond := rate.Limit(float64(cfg.VerifyRatePerMin) / 60.0)
	return &Service{
		log:     logger.New("Verify"),
		store:   store,
		redis:   r,
		limiter: rate.NewLimiter(perSecond, 1),
		client: &http.Client{
			Timeout: fetchTimeout,
		},
		dataDir: cfg.DataDir,
	}
}

// HandleVerifyWebsite processes one queued check. Errors are returned so
// asynq retries transient failures; classification outcomes are never
// errors.
func (s *Service) HandleVerifyWebsite(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	status := leads.WebsiteNone
	switch {
	case p.URL == "":
		// Nothing to check.
	case leads.IsSocialMediaURL(p.URL):
		status = leads.WebsiteSocialOnly
	default:
		res, err := s.probeCached(ctx, p.URL)
		if err != nil {
			return fmt.Errorf("probe %s: %w", p.URL, err)
		}
		status = res.Status
	}

	if found, err := s.store.SetWebsiteStatus(p.Name, p.Phone, status); err != nil {
		return fmt.Errorf("update record: %w", err)
	} else if !found {
		s.log.LogWarnf("No stored record for %q, dropping result", p.Name)
		return nil
	}
	s.log.LogInfof("Verified %s (job %s): %s -> %s", p.Name, p.JobID, p.URL, status)
	return nil
}

func (s *Service) probeCached(ctx context.Context, rawURL string) (*probeResult, error) {
	cacheKey := "verify:site:" + rawURL

	var cached probeResult
	if s.redis != nil {
		if err := s.redis.CacheGet(ctx, cacheKey, &cached); err == nil && !cached.CheckedAt.IsZero() {
			return &cached, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res := s.probe(ctx, rawURL)

	if s.redis != nil {
		if err := s.redis.CacheSet(ctx, cacheKey, res, cacheTTL); err != nil {
			s.log.LogDebugf("cache write failed for %s: %v", rawURL, err)
		}
	}
	return res, nil
}

// probe fetches the homepage and classifies the site. Network failures and
// error statuses mean dead, not retryable: a lead with an unreachable site
// is exactly what the pipeline wants to surface.
func (s *Service) probe(ctx context.Context, rawURL string) *probeResult {
	res := &probeResult{Status: leads.WebsiteDead, CheckedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return res
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "es-PY,es;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.LogDebugf("fetch failed for %s: %v", rawURL, err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.log.LogDebugf("status %d for %s", resp.StatusCode, rawURL)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return res
	}

	res.Title = strings.TrimSpace(doc.Find("title").First().Text())
	res.SocialLinks = collectSocialLinks(doc)

	if isParkedPage(doc, res.Title) {
		return res
	}

	res.PageCount = s.countInternalPages(rawURL)
	res.Status = classifyLive(doc, res)

	if res.Status == leads.WebsiteActive {
		s.snapshot(rawURL, string(body))
	}
	return res
}

func collectSocialLinks(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if leads.IsSocialMediaURL(href) && !seen[href] {
			seen[href] = true
			out = append(out, href)
		}
	})
	return out
}

var parkedPhrases = []string{
	"domain is for sale",
	"dominio en venta",
	"buy this domain",
	"this domain may be for sale",
	"parked free",
	"página en construcción",
	"under construction",
}

func isParkedPage(doc *goquery.Document, title string) bool {
	text := strings.ToLower(doc.Find("body").Text())
	lowerTitle := strings.ToLower(title)
	for _, phrase := range parkedPhrases {
		if strings.Contains(text, phrase) || strings.Contains(lowerTitle, phrase) {
			return true
		}
	}
	return false
}

// classifyLive decides the status of a page that loaded without a parked
// marker. A shell page whose only outbound links are social profiles is not
// a real website, and a thin site with at most one internal page is a
// placeholder.
func classifyLive(doc *goquery.Document, res *probeResult) leads.WebsiteStatus {
	total := doc.Find("a[href]").Length()
	words := len(strings.Fields(doc.Find("body").Text()))
	if total > 0 && total == len(res.SocialLinks) && words < 200 {
		return leads.WebsiteSocialOnly
	}
	if res.PageCount <= 1 && words < 200 {
		return leads.WebsiteDead
	}
	return leads.WebsiteActive
}

// countInternalPages walks one level of same-host links. Parked and shell
// pages rarely have more than a couple.
func (s *Service) countInternalPages(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")

	seen := map[string]struct{}{}
	var mu sync.Mutex
	c := colly.NewCollector(colly.MaxDepth(1), colly.Async(true))
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		lu, err := url.Parse(link)
		if err != nil {
			return
		}
		if strings.TrimPrefix(lu.Hostname(), "www.") != host {
			return
		}
		mu.Lock()
		seen[lu.Path] = struct{}{}
		mu.Unlock()
	})
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, RandomDelay: 200 * time.Millisecond})
	if err := c.Visit(rawURL); err != nil {
		return 0
	}
	c.Wait()
	return len(seen)
}

// snapshot keeps a markdown copy of the homepage next to the lead data so a
// human reviewing the lead can see what the site looked like.
func (s *Service) snapshot(rawURL, html string) {
	md := markdown.Snapshot(html)
	if md == "" {
		return
	}
	dir := filepath.Join(s.dataDir, "verify")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	name := slugify(rawURL) + ".md"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(md), 0o644); err != nil {
		s.log.LogDebugf("snapshot write failed: %v", err)
	}
}

func slugify(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "site"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + 32
		default:
			return '-'
		}
	}, host)
}

// EnqueueAll queues a verification task for every stored record that has a
// website or social link worth checking. Returns how many were queued.
func EnqueueAll(store *leads.Store, client *tasks.Client, maxRetry int) (int, error) {
	queued := 0
	for _, rec := range store.Snapshot() {
		target := rec.WebsiteURL
		if target == "" {
			for _, link := range rec.SocialMedia {
				target = link
				break
			}
		}
		if target == "" {
			continue
		}
		task, err := NewTask(Payload{Name: rec.Name, Phone: rec.Phone, URL: target})
		if err != nil {
			return queued, err
		}
		if err := client.Enqueue(task, tasks.QueueVerify, maxRetry); err != nil {
			return queued, fmt.Errorf("enqueue %s: %w", rec.Name, err)
		}
		queued++
	}
	return queued, nil
}
