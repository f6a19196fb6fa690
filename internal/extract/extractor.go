package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mapleads/internal/leads"
	"mapleads/internal/logger"
)

// Limits on harvested content so a single popular listing cannot blow up
// storage.
const (
	maxReviews       = 10
	maxReviewPhotos  = 5
	maxUpdates       = 2
	maxPhotos        = 15
	reviewTextLimit  = 800
	updateTextLimit  = 300
	panelWaitTimeout = 10 * time.Second
	infoWaitTimeout  = 3 * time.Second
	galleryWait      = 5 * time.Second
)

// Handle is one collected result: something that can be opened into a
// detail view.
type Handle interface {
	Href() string
	Open() error
}

// detailPanelSignal is what must be visible before any field is read. This
// is the isolation guarantee: reading earlier lets fields from a previously
// open panel bleed into the new record.
var detailPanelSignal = []string{"div.m6QErb.DxyBCb", `div[role="main"]`}

// acceptName filters out the list-header text that matches the name
// selectors when the panel is still settling.
func acceptName(v string) bool {
	return v != "Resultados" && len([]rune(v)) > 1
}

var nameCascade = Cascade{
	{Selector: "h1.DUwDvf", Accept: acceptName},
	{Selector: "div.qBF1Pd.fontHeadlineSmall", Accept: acceptName},
	{Selector: "h2.qBF1Pd", Accept: acceptName},
	{Selector: "div.fontHeadlineSmall span", Accept: acceptName},
}

var categoryCascade = Cascade{
	Text(`button[jsaction*="category"]`),
	Text("button.DkEaL"),
}

var addressCascade = Cascade{
	Text(`button[data-item-id="address"] div.Io6YTe`),
	Text(`button[data-item-id="address"]`),
	Text("div.rogA2c"),
}

// Pacer provides the small randomized pauses between interactions.
type Pacer interface {
	Pace(multiplier float64)
}

// Extractor reads one detail view into a BusinessRecord. Extraction is
// best-effort per field: a miss leaves the field at its zero value and the
// record is still emitted.
type Extractor struct {
	log   *logger.Logger
	pacer Pacer
}

func New(pacer Pacer) *Extractor {
	return &Extractor{log: logger.New("Extractor"), pacer: pacer}
}

// Extract opens the handle's detail view on the page and reads every field
// through its cascade. The returned error is non-nil only when the detail
// panel never appeared; the caller skips the handle and moves on.
func (e *Extractor) Extract(page Panel, h Handle, task TaskContext) (leads.BusinessRecord, error) {
	if err := h.Open(); err != nil {
		return leads.BusinessRecord{}, fmt.Errorf("open detail view: %w", err)
	}
	e.pacer.Pace(1.0)

	if !e.waitForPanel(page) {
		return leads.BusinessRecord{}, fmt.Errorf("detail panel never appeared for %s", h.Href())
	}
	e.pacer.Pace(0.5)

	rec := leads.BusinessRecord{
		Name:               "Unknown",
		WebsiteStatus:      leads.WebsiteNone,
		DiscoveredCategory: task.CategoryKey,
		DiscoveredLocation: task.Location,
		ScrapedAt:          time.Now().UTC(),
	}

	if name, ok := nameCascade.Resolve(page); ok {
		rec.Name = name
	}
	rec.City, rec.Neighborhood = splitLocation(task.Location)

	currentURL := page.URL()
	rec.PlaceID = PlaceIDFromURL(currentURL)
	if lat, lon, ok := CoordsFromURL(currentURL); ok {
		rec.Latitude, rec.Longitude = lat, lon
	}

	e.readRatingAndReviews(page, &rec)

	if cat, ok := categoryCascade.Resolve(page); ok {
		rec.Category = cat
	}
	if addr, ok := addressCascade.Resolve(page); ok {
		rec.Address = addr
	}
	if phone, ok := (Cascade{Text(`button[data-item-id*="phone"]`), Attr(`a[href^="tel:"]`, "href")}).Resolve(page); ok {
		rec.Phone = CleanPhone(strings.TrimPrefix(phone, "tel:"))
	}

	e.readPrice(page, &rec)
	e.readServiceOptions(page, &rec)
	e.readAccessibility(page, &rec)
	e.readOpeningHours(page, &rec)
	e.readPopularTimes(page, &rec)
	e.readLinks(page, &rec)
	e.readWebsite(page, &rec)
	e.readPhotoCategories(page, &rec)
	e.readReviewTopics(page, &rec)
	e.readRatingDistribution(page, &rec)
	e.readReviews(page, &rec)
	e.readCustomerUpdates(page, &rec)
	e.readInfoTab(page, &rec)
	e.readPhotos(page, &rec)

	// Restore the list view for the next handle.
	page.Press("Escape")
	e.pacer.Pace(0.3)

	return rec, nil
}

// TaskContext carries the originating search so records stay attributable.
type TaskContext struct {
	CategoryKey string
	Location    string
}

func (e *Extractor) waitForPanel(page Panel) bool {
	for _, sel := range detailPanelSignal {
		if page.WaitVisible(sel, panelWaitTimeout) {
			return true
		}
	}
	return false
}

func splitLocation(location string) (city, neighborhood string) {
	parts := strings.SplitN(location, ",", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(location), ""
}

func (e *Extractor) readRatingAndReviews(page Panel, rec *leads.BusinessRecord) {
	// Combined accessibility label first, scoped to the main panel so the
	// sidebar cannot contribute a stale value.
	label, ok := (Cascade{
		Attr(`div[role="main"] span.ZkP5Je`, "aria-label"),
		Attr("span.ZkP5Je", "aria-label"),
	}).Resolve(page)
	if ok {
		rec.Rating, rec.ReviewCount = ParseRatingLabel(label)
	}

	if rec.Rating == 0 {
		if v, ok := (Cascade{Text(`div[role="main"] span.MW4etd`), Text("span.MW4etd")}).Resolve(page); ok {
			rec.Rating = ParseRating(v)
		}
	}

	if rec.ReviewCount == 0 {
		if v, ok := page.Text(`div[role="main"] button[jsaction*="reviews"]`); ok {
			rec.ReviewCount = ParseCount(v)
		}
	}
	if rec.ReviewCount == 0 {
		for _, div := range page.All(`div[role="main"] div.fontBodySmall`) {
			t := div.SelfText()
			if strings.Contains(strings.ToLower(t), "reseña") {
				if n := ParseCount(t); n > 0 {
					rec.ReviewCount = n
					break
				}
			}
		}
	}
	if rec.ReviewCount == 0 {
		if v, ok := page.Text("span.UY7F9"); ok {
			rec.ReviewCount = ParseCount(v)
		}
	}
}

func (e *Extractor) readPrice(page Panel, rec *leads.BusinessRecord) {
	if v, ok := (Cascade{Text("span.mgr77e span"), Text("span.mgr77e")}).Resolve(page); ok {
		rec.PriceRange = CleanPriceText(v)
		rec.PriceLevel = PriceLevel(rec.PriceRange)
	}

	if v, ok := page.Text("div.MNVeJb div"); ok {
		lower := strings.ToLower(v)
		if i := strings.Index(lower, "por persona"); i >= 0 {
			rec.PricePerPerson = CleanPriceText(v[:i])
		}
	}
	if v, ok := page.Text("div.BfVpR"); ok {
		rec.PriceVoters = ParsePersonCount(v)
	}

	for _, row := range page.All(`table[aria-label*="Histograma"] tr, table.rqRH4d tr`) {
		rangeText, ok := row.Text("td.fsAi0e")
		if !ok {
			continue
		}
		percent := 0
		if style, ok := row.Attr("span.xYsBQe", "style"); ok {
			percent = WidthPercent(style)
		}
		if rec.PriceHistogram == nil {
			rec.PriceHistogram = map[string]int{}
		}
		rec.PriceHistogram[CleanPriceText(rangeText)] = percent
	}
}

var serviceLabelMap = map[string]string{
	"consumo en el lugar": "dine_in",
	"comer en el lugar":   "dine_in",
	"comida para llevar":  "takeout",
	"para llevar":         "takeout",
	"entrega a domicilio": "delivery",
	"envío a domicilio": "delivery",
	"recogida en la acera": "curbside_pickup",
}

func (e *Extractor) readServiceOptions(page Panel, rec *leads.BusinessRecord) {
	groups := page.All(`div.LTs0Rc[role="group"], div.E0DTEd div.LTs0Rc`)
	if len(groups) == 0 {
		return
	}
	opts := map[string]bool{"dine_in": false, "takeout": false, "delivery": false, "curbside_pickup": false}
	for _, g := range groups {
		aria, ok := g.SelfAttr("aria-label")
		if !ok {
			continue
		}
		lower := strings.ToLower(aria)
		for label, key := range serviceLabelMap {
			if strings.Contains(lower, label) {
				opts[key] = strings.Contains(lower, "ofrece")
			}
		}
	}
	rec.ServiceOptions = opts
}

func (e *Extractor) readAccessibility(page Panel, rec *leads.BusinessRecord) {
	for _, el := range page.All(`span.wmQCje[aria-label]`) {
		aria, _ := el.SelfAttr("aria-label")
		lower := strings.ToLower(aria)
		if strings.Contains(lower, "silla de ruedas") || strings.Contains(lower, "wheelchair") {
			rec.Accessibility = append(rec.Accessibility, "wheelchair_accessible")
		}
	}
}

func (e *Extractor) readOpeningHours(page Panel, rec *leads.BusinessRecord) {
	for _, row := range page.All("table.eK4R0e tbody tr.y0skZc") {
		day, dayOK := row.Text("td.ylH6lf div")
		timeText, timeOK := row.Attr("td.mxowUb", "aria-label")
		if !timeOK {
			timeText, timeOK = row.Text("td.mxowUb")
		}
		if !dayOK || !timeOK {
			continue
		}
		key, value := ParseHours(day, timeText)
		if rec.OpeningHours == nil {
			rec.OpeningHours = map[string]string{}
		}
		rec.OpeningHours[key] = value
	}

	if status, ok := page.Text("span.ZDu9vd"); ok {
		rec.OpenStatusText = status
		open := strings.Contains(strings.ToLower(status), "abierto")
		rec.IsOpenNow = &open
	}
}

var popularDays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (e *Extractor) readPopularTimes(page Panel, rec *leads.BusinessRecord) {
	if _, ok := page.Attr(`div.UmE4Qe[aria-label*="punta"]`, "aria-label"); !ok {
		return
	}
	charts := page.All("div.g2BVhd")
	for i, chart := range charts {
		if i >= len(popularDays) {
			break
		}
		day := popularDays[i]
		for _, bar := range chart.All(`div.dpoVLd[role="img"]`) {
			aria, _ := bar.SelfAttr("aria-label")
			hour, percent := ParseOccupancyLabel(aria)
			if rec.PopularTimes == nil {
				rec.PopularTimes = map[string]map[string]int{}
			}
			if rec.PopularTimes[day] == nil {
				rec.PopularTimes[day] = map[string]int{}
			}
			rec.PopularTimes[day][fmt.Sprintf("%d", hour)] = percent
		}
	}
}

func (e *Extractor) readLinks(page Panel, rec *leads.BusinessRecord) {
	if href, ok := page.Attr(`a[data-item-id="action:4"]`, "href"); ok {
		rec.OrderLink = href
		rec.OrderProvider = leads.ClassifyOrderProvider(href)
	}
	if href, ok := (Cascade{
		Attr(`a[data-item-id="menu"]`, "href"),
		Attr(`button[aria-label="Carta"]`, "href"),
	}).Resolve(page); ok {
		rec.MenuLink = href
	}
	if href, ok := page.Attr(`a[data-item-id="reserve"]`, "href"); ok {
		rec.ReserveLink = href
	}
	if code, ok := page.Text(`button[data-item-id="oloc"] div.Io6YTe`); ok {
		rec.PlusCode = code
	}
}

func (e *Extractor) readWebsite(page Panel, rec *leads.BusinessRecord) {
	href, ok := page.Attr(`a[data-item-id="authority"]`, "href")
	if !ok || href == "" {
		return
	}
	if platform := leads.ClassifySocialMedia(href); platform != "" {
		if rec.SocialMedia == nil {
			rec.SocialMedia = map[string]string{}
		}
		rec.SocialMedia[platform] = href
		rec.WebsiteStatus = leads.WebsiteSocialOnly
		return
	}
	rec.WebsiteURL = href
	rec.WebsiteStatus = leads.WebsiteActive
	rec.HasWebsite = true
}

func (e *Extractor) readPhotoCategories(page Panel, rec *leads.BusinessRecord) {
	for _, el := range page.All("div.fp2VUc button.K4UgGe") {
		label, ok := el.SelfAttr("aria-label")
		if !ok || label == "" || label == "Foto siguiente" || label == "Foto anterior" {
			continue
		}
		rec.PhotoCategories = append(rec.PhotoCategories, label)
	}
	if len(rec.PhotoCategories) > 0 {
		return
	}
	for _, el := range page.All("div.ofKBgf span.zaTlhd") {
		if t := el.SelfText(); t != "" && !contains(rec.PhotoCategories, t) {
			rec.PhotoCategories = append(rec.PhotoCategories, t)
		}
	}
}

func (e *Extractor) readReviewTopics(page Panel, rec *leads.BusinessRecord) {
	for _, el := range page.All(`div[role="radiogroup"] button.e2moi[aria-label]`) {
		aria, _ := el.SelfAttr("aria-label")
		if !strings.Contains(strings.ToLower(aria), "mencionado en") {
			continue
		}
		topic, count := ParseReviewTopic(aria)
		if topic == "" || count == 0 {
			continue
		}
		if rec.ReviewTopics == nil {
			rec.ReviewTopics = map[string]int{}
		}
		rec.ReviewTopics[topic] = count
	}
}

func (e *Extractor) readRatingDistribution(page Panel, rec *leads.BusinessRecord) {
	for _, row := range page.All("tr.BHOKXe") {
		aria, _ := row.SelfAttr("aria-label")
		stars, count := ParseStarsAndCount(aria)
		if stars == 0 {
			continue
		}
		if rec.RatingDistribution == nil {
			rec.RatingDistribution = map[string]int{}
		}
		rec.RatingDistribution[fmt.Sprintf("%d", stars)] = count
	}
}

func (e *Extractor) readReviews(page Panel, rec *leads.BusinessRecord) {
	cards := page.All("div.jftiEf[data-review-id]")
	for i, card := range cards {
		if i >= maxReviews {
			break
		}
		rv := leads.Review{Author: "Anónimo"}
		rv.ReviewID, _ = card.SelfAttr("data-review-id")

		if author, ok := card.Text("div.d4r55"); ok {
			rv.Author = author
		}
		if info, ok := card.Text("div.RfnDt"); ok {
			rv.IsLocalGuide = strings.Contains(strings.ToLower(info), "local guide")
			rv.AuthorReviews, rv.AuthorPhotos = parseAuthorStats(info)
		}
		if href, ok := card.Attr("button.al6Kxe[data-href]", "data-href"); ok {
			rv.AuthorProfileURL = href
		}
		if src, ok := card.Attr("img.NBa7we", "src"); ok {
			rv.AuthorAvatar = src
		}
		if aria, ok := card.Attr("span.kvMYJc", "aria-label"); ok {
			rv.Rating, _ = ParseStarsAndCount(aria)
		}
		if d, ok := card.Text("span.rsqaWe"); ok {
			rv.Date = d
		}
		if t, ok := card.Text("span.wiI7pd"); ok {
			rv.Text = TruncateRunes(t, reviewTextLimit)
		}
		for j, btn := range card.All("button.Tya61d") {
			if j >= maxReviewPhotos {
				break
			}
			if style, ok := btn.SelfAttr("style"); ok {
				if u := BackgroundImageURL(style); u != "" {
					rv.Photos = append(rv.Photos, u)
				}
			}
		}
		rec.Reviews = append(rec.Reviews, rv)
	}
}

var (
	reAuthorReviews = regexp.MustCompile(`(\d+)\s*rese\x{00f1}as?`)
	reAuthorPhotos  = regexp.MustCompile(`(\d+)\s*fotos?`)
)

func parseAuthorStats(info string) (reviews, photos int) {
	if m := reAuthorReviews.FindStringSubmatch(info); m != nil {
		reviews = ParseCount(m[1])
	}
	if m := reAuthorPhotos.FindStringSubmatch(info); m != nil {
		photos = ParseCount(m[1])
	}
	return reviews, photos
}

func (e *Extractor) readCustomerUpdates(page Panel, rec *leads.BusinessRecord) {
	for i, el := range page.All("button.wjCxie") {
		if i >= maxUpdates {
			break
		}
		text, ok := el.Text("div.ZXMsO")
		if !ok || text == "" {
			continue
		}
		date, _ := el.Text("div.jrtH8d")
		rec.CustomerUpdates = append(rec.CustomerUpdates, leads.CustomerUpdate{
			Text: TruncateRunes(text, updateTextLimit),
			Date: date,
		})
	}
}

// readInfoTab clicks the Información tab and harvests the structured
// attribute sections, then returns to the overview tab.
func (e *Extractor) readInfoTab(page Panel, rec *leads.BusinessRecord) {
	clicked := page.Click(`button[aria-label*="Información sobre"]`)
	if !clicked {
		clicked = page.Click(`button[data-tab-index="3"]`)
	}
	if !clicked {
		return
	}
	e.pacer.Pace(0.5)
	// The tab click already happened, so the overview must be restored even
	// when no sections render.
	defer func() {
		if page.Click(`button[data-tab-index="0"]`) {
			e.pacer.Pace(0.3)
		}
	}()
	if !page.WaitVisible("div.iP2t7d.fontBodyMedium", infoWaitTimeout) {
		return
	}

	for _, section := range page.All("div.iP2t7d.fontBodyMedium") {
		title, ok := section.Text("h2.iL3Qke")
		if !ok {
			continue
		}
		var items []string
		for _, it := range section.All(`li.hpLkke span[aria-label]`) {
			if t := it.SelfText(); t != "" {
				items = append(items, strings.TrimSpace(t))
			}
		}
		assignInfoSection(strings.ToLower(title), items, rec)
	}
}

func assignInfoSection(title string, items []string, rec *leads.BusinessRecord) {
	switch {
	case strings.Contains(title, "accesibilidad"):
		rec.Accessibility = append(rec.Accessibility, items...)
	case strings.Contains(title, "opciones de servicio"):
		if rec.ServiceOptions == nil {
			rec.ServiceOptions = map[string]bool{}
		}
		for _, item := range items {
			lower := strings.ToLower(item)
			switch {
			case strings.Contains(lower, "domicilio") || strings.Contains(lower, "delivery"):
				rec.ServiceOptions["delivery"] = true
			case strings.Contains(lower, "llevar") || strings.Contains(lower, "takeout"):
				rec.ServiceOptions["takeout"] = true
			case strings.Contains(lower, "consumo") || strings.Contains(lower, "lugar") || strings.Contains(lower, "dine"):
				rec.ServiceOptions["dine_in"] = true
			case strings.Contains(lower, "retiro"):
				rec.ServiceOptions["curbside_pickup"] = true
			}
		}
	case strings.Contains(title, "qué ofrece") || strings.Contains(title, "que ofrece"):
		rec.Offerings = append(rec.Offerings, items...)
	case strings.Contains(title, "opciones del local"):
		rec.DiningOptions = append(rec.DiningOptions, items...)
	case strings.Contains(title, "servicios"):
		rec.Amenities = append(rec.Amenities, items...)
	case strings.Contains(title, "planificación") || strings.Contains(title, "planificacion"):
		rec.Planning = append(rec.Planning, items...)
	case strings.Contains(title, "pagos"):
		rec.Payments = append(rec.Payments, items...)
	case strings.Contains(title, "estacionamiento"):
		rec.Parking = append(rec.Parking, items...)
	}
}

// readPhotos opens the photo gallery when one exists, collects high-res
// URLs up to the cap, then falls back to main-view images and review photos.
func (e *Extractor) readPhotos(page Panel, rec *leads.BusinessRecord) {
	if v, ok := page.Text(`button[jsaction*="photos"]`); ok {
		rec.PhotoCount = ParseCount(v)
	}

	seen := map[string]bool{}
	add := func(src string) {
		if src == "" || !strings.Contains(src, "googleusercontent") {
			return
		}
		hi := HighResPhotoURL(src)
		if seen[hi] || len(rec.PhotoURLs) >= maxPhotos {
			return
		}
		seen[hi] = true
		rec.PhotoURLs = append(rec.PhotoURLs, hi)
	}

	if rec.PhotoCount > 0 && page.Click(`button[jsaction*="photos"]`) {
		e.pacer.Pace(1.0)
		if page.WaitVisible(`div[data-photo-index], img.U39Pmb, div.p0Jrsd img`, galleryWait) {
			for _, sel := range []string{
				`div.p0Jrsd img[src*="googleusercontent"]`,
				`img.U39Pmb[src*="googleusercontent"]`,
				`button[data-photo-index] img[src*="googleusercontent"]`,
				`img[decoding="async"][src*="googleusercontent"]`,
			} {
				for _, img := range page.All(sel) {
					if src, ok := img.SelfAttr("src"); ok {
						add(src)
					}
				}
				if len(rec.PhotoURLs) >= maxPhotos {
					break
				}
			}
			for _, el := range page.All(`div[style*="background-image"]`) {
				if style, ok := el.SelfAttr("style"); ok {
					add(BackgroundImageURL(style))
				}
			}
		}
		// Back to the detail view.
		if !page.Click(`button[aria-label*="Atrás"]`) && !page.Click(`button[jsaction*="back"]`) {
			page.Press("Escape")
		}
		e.pacer.Pace(0.5)
	}

	if len(rec.PhotoURLs) < 3 {
		for _, img := range page.All(`button[jsaction*="heroHeaderImage"] img, img[decoding="async"][src*="googleusercontent"], div.p0Jrsd img`) {
			if src, ok := img.SelfAttr("src"); ok {
				add(src)
			}
		}
	}
	for i, btn := range page.All("button.Tya61d") {
		if i >= maxReviewPhotos {
			break
		}
		if style, ok := btn.SelfAttr("style"); ok {
			if u := BackgroundImageURL(style); strings.Contains(u, "googleusercontent") {
				add(u)
			}
		}
	}

	if rec.PhotoCount == 0 {
		rec.PhotoCount = len(rec.PhotoURLs)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
