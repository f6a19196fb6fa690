package leads

import (
	"net/url"
	"strings"
	"time"
)

// WebsiteStatus describes what kind of web presence a business has.
// The qualification policy downstream only wants leads that are not "active".
type WebsiteStatus string

const (
	WebsiteNone       WebsiteStatus = "none"
	WebsiteSocialOnly WebsiteStatus = "social_only"
	WebsiteDead       WebsiteStatus = "dead"
	WebsiteActive     WebsiteStatus = "active"
)

// Review is one harvested customer review, truncated at capture time.
type Review struct {
	ReviewID         string   `json:"review_id,omitempty"`
	Author           string   `json:"author"`
	AuthorAvatar     string   `json:"author_avatar,omitempty"`
	AuthorProfileURL string   `json:"author_profile_url,omitempty"`
	IsLocalGuide     bool     `json:"is_local_guide"`
	AuthorReviews    int      `json:"author_reviews_count"`
	AuthorPhotos     int      `json:"author_photos_count"`
	Rating           int      `json:"rating"`
	Date             string   `json:"date"`
	Text             string   `json:"text"`
	Photos           []string `json:"photos,omitempty"`
}

// CustomerUpdate is a short post attached to the listing.
type CustomerUpdate struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// BusinessRecord is one extracted business profile. Every field beyond the
// name may legitimately be absent or zero: extraction is best-effort and
// consumers must not assume more than that.
type BusinessRecord struct {
	Name         string `json:"name"`
	PlaceID      string `json:"place_id,omitempty"`
	Category     string `json:"category,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Phone        string `json:"phone,omitempty"`

	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	PhotoURLs   []string `json:"photo_urls,omitempty"`
	PhotoCount  int      `json:"photo_count"`

	HasWebsite    bool          `json:"has_website"`
	WebsiteURL    string        `json:"website_url,omitempty"`
	WebsiteStatus WebsiteStatus `json:"website_status"`

	PriceRange     string         `json:"price_range,omitempty"`
	PriceLevel     int            `json:"price_level"`
	PricePerPerson string         `json:"price_per_person,omitempty"`
	PriceVoters    int            `json:"price_voters,omitempty"`
	PriceHistogram map[string]int `json:"price_histogram,omitempty"`

	ServiceOptions map[string]bool `json:"service_options,omitempty"`
	Accessibility  []string        `json:"accessibility,omitempty"`
	Offerings      []string        `json:"offerings,omitempty"`
	DiningOptions  []string        `json:"dining_options,omitempty"`
	Amenities      []string        `json:"amenities,omitempty"`
	Planning       []string        `json:"planning,omitempty"`
	Payments       []string        `json:"payments,omitempty"`
	Parking        []string        `json:"parking,omitempty"`

	OpeningHours   map[string]string `json:"opening_hours,omitempty"`
	IsOpenNow      *bool             `json:"is_open_now,omitempty"`
	OpenStatusText string            `json:"open_status_text,omitempty"`

	PopularTimes map[string]map[string]int `json:"popular_times,omitempty"`

	OrderLink     string `json:"order_link,omitempty"`
	OrderProvider string `json:"order_provider,omitempty"`
	MenuLink      string `json:"menu_link,omitempty"`
	ReserveLink   string `json:"reserve_link,omitempty"`

	SocialMedia map[string]string `json:"social_media,omitempty"`
	PlusCode    string            `json:"plus_code,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	PhotoCategories    []string         `json:"photo_categories,omitempty"`
	ReviewTopics       map[string]int   `json:"review_topics,omitempty"`
	RatingDistribution map[string]int   `json:"rating_distribution,omitempty"`
	Reviews            []Review         `json:"reviews,omitempty"`
	CustomerUpdates    []CustomerUpdate `json:"customer_updates,omitempty"`

	DiscoveredCategory string    `json:"discovered_category,omitempty"`
	DiscoveredLocation string    `json:"discovered_location,omitempty"`
	ScrapedAt          time.Time `json:"scraped_at"`
}

// IdentityKey is the dedup key: normalized lowercase name plus, when a phone
// is present, its bare digits. Two records sharing this key are the same
// business.
func (r *BusinessRecord) IdentityKey() string {
	return IdentityKey(r.Name, r.Phone)
}

func IdentityKey(name, phone string) string {
	key := NormalizeName(name)
	if digits := NormalizePhone(phone); digits != "" {
		key += "|" + digits
	}
	return key
}

// NormalizeName lowercases and collapses whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizePhone keeps only digits, dropping a leading national "0" so that
// "021 123 456" and "+595 21 123456" collapse to the same key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	// Strip international prefix first, then the national trunk zero.
	digits = strings.TrimPrefix(digits, "595")
	digits = strings.TrimPrefix(digits, "0")
	return digits
}

// Qualified reports whether the record is a usable lead: the product goal is
// businesses without an active website.
func (r *BusinessRecord) Qualified() bool {
	return r.WebsiteStatus != WebsiteActive
}

var socialMediaDomains = []string{
	"facebook.com", "fb.com", "fb.me",
	"instagram.com", "instagr.am",
	"twitter.com", "x.com",
	"tiktok.com",
	"linkedin.com",
	"wa.me", "whatsapp.com",
	"youtube.com", "youtu.be",
}

// IsSocialMediaURL reports whether the URL points at a social profile rather
// than a real website.
func IsSocialMediaURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range socialMediaDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ClassifySocialMedia names the platform a URL belongs to, or "".
func ClassifySocialMedia(raw string) string {
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "instagram.com"), strings.Contains(lower, "instagr.am"):
		return "instagram"
	case strings.Contains(lower, "facebook.com"), strings.Contains(lower, "fb.com"), strings.Contains(lower, "fb.me"):
		return "facebook"
	case strings.Contains(lower, "tiktok.com"):
		return "tiktok"
	case strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com"):
		return "twitter"
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return "youtube"
	case strings.Contains(lower, "linkedin.com"):
		return "linkedin"
	case strings.Contains(lower, "wa.me"), strings.Contains(lower, "whatsapp.com"):
		return "whatsapp"
	}
	return ""
}

// ClassifyWebsite buckets an authority link into a website status.
func ClassifyWebsite(raw string) WebsiteStatus {
	if raw == "" {
		return WebsiteNone
	}
	if IsSocialMediaURL(raw) {
		return WebsiteSocialOnly
	}
	return WebsiteActive
}

// ClassifyOrderProvider names the delivery platform behind an order link.
func ClassifyOrderProvider(raw string) string {
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, p := range []string{"pedidosya", "ubereats", "rappi", "deliveroo", "doordash"} {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return "other"
}
