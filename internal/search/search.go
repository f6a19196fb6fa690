package search

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"mapleads/internal/extract"
	"mapleads/internal/logger"
)

const (
	mapsEntryPoint = "https://www.google.com/maps"

	searchInput    = "input#searchboxinput"
	searchButton   = "button#searchbox-searchbutton"
	feedSelector   = "div[role=\"feed\"], div.m6QErb.DxyBCb"
	anchorSelector = "a.hfpxzc"

	scrollStep      = 300
	staleRoundLimit = 3
	feedWaitTimeout = 20 * time.Second
)

// Page is the slice of browser behavior a search needs. The session package
// provides the live implementation; tests provide in-memory ones.
type Page interface {
	Navigate(rawURL string, timeout time.Duration) error
	Fill(selector, value string) error
	Click(selector string) bool
	Press(key string)
	WaitVisible(selector string, timeout time.Duration) bool
	ScrollBy(selector string, pixels int) error
	Anchors(selector string) ([]extract.Handle, error)
}

// Pacer introduces the randomized delays around submission and scrolling.
type Pacer interface {
	Pace(multiplier float64)
}

// Executor runs one search and collects result handles from the feed.
type Executor struct {
	log          *logger.Logger
	pacer        Pacer
	regionSuffix string
	perSearch    int
}

func NewExecutor(pacer Pacer, regionSuffix string, resultsPerSearch int) *Executor {
	return &Executor{
		log:          logger.New("Search"),
		pacer:        pacer,
		regionSuffix: regionSuffix,
		perSearch:    resultsPerSearch,
	}
}

// QueryFor composes the localized search phrase for a term and location.
func (e *Executor) QueryFor(term, location string) string {
	q := fmt.Sprintf("%s en %s", term, location)
	if e.regionSuffix != "" && !strings.Contains(location, e.regionSuffix) {
		q += ", " + e.regionSuffix
	}
	return q
}

// Run executes the search for term/location and returns up to
// resultsPerSearch handles. An empty slice with a nil error means no results
// materialized; errors are reserved for navigation failures.
func (e *Executor) Run(page Page, term, location string) ([]extract.Handle, error) {
	query := e.QueryFor(term, location)
	e.log.LogInfof("Searching: %s", query)

	if err := e.submit(page, query); err != nil {
		return nil, err
	}
	e.pacer.Pace(1.0)

	if !page.WaitVisible(feedSelector, feedWaitTimeout) {
		// A single-result query skips the feed and opens the place directly;
		// anything else is the directory declining to answer.
		if page.WaitVisible("div[role=\"main\"]", 3*time.Second) {
			e.log.LogDebugf("Single result layout for %q", query)
		} else {
			e.log.LogWarnf("Results feed never appeared for %q", query)
		}
		return nil, nil
	}
	e.pacer.Pace(0.5)

	handles, err := e.collect(page)
	if err != nil {
		return nil, err
	}
	e.log.LogInfof("Collected %d results for %q", len(handles), query)
	return handles, nil
}

// submit types the query into the search box and submits it, falling back
// to a direct search URL when the box cannot be driven.
func (e *Executor) submit(page Page, query string) error {
	if err := page.Navigate(mapsEntryPoint, feedWaitTimeout); err != nil {
		return fmt.Errorf("navigate to search entry: %w", err)
	}
	e.pacer.Pace(0.5)

	if err := page.Fill(searchInput, query); err != nil {
		target := fmt.Sprintf("%s/search/%s", mapsEntryPoint, url.PathEscape(query))
		e.log.LogDebugf("Search box unavailable (%v), using direct URL", err)
		if nerr := page.Navigate(target, feedWaitTimeout); nerr != nil {
			return fmt.Errorf("navigate to search results: %w", nerr)
		}
		return nil
	}
	if !page.Click(searchButton) {
		page.Press("Enter")
	}
	return nil
}

// collect scrolls the feed until enough anchors are loaded or the feed stops
// growing. Anchors are deduplicated by href since scrolling re-renders rows.
func (e *Executor) collect(page Page) ([]extract.Handle, error) {
	seen := make(map[string]bool)
	var out []extract.Handle
	stale := 0

	for len(out) < e.perSearch {
		anchors, err := page.Anchors(anchorSelector)
		if err != nil {
			return out, fmt.Errorf("read result anchors: %w", err)
		}

		added := 0
		for _, a := range anchors {
			href := a.Href()
			if href == "" || seen[href] {
				continue
			}
			seen[href] = true
			out = append(out, a)
			added++
			if len(out) >= e.perSearch {
				break
			}
		}

		if added == 0 {
			stale++
			if stale >= staleRoundLimit {
				break
			}
		} else {
			stale = 0
		}
		if len(out) >= e.perSearch {
			break
		}

		if err := page.ScrollBy(feedSelector, scrollStep); err != nil {
			return out, nil
		}
		e.pacer.Pace(0.3)
	}
	return out, nil
}
