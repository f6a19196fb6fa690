package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// The directory renders for an es-PY locale: decimal commas, Spanish day
// names, guaraní price ranges and aria-labels like
// "4,6 estrellas 206 reseñas". Parsers here normalize all of that.

var (
	reNumber        = regexp.MustCompile(`(\d+[.,]?\d*)`)
	reDigits        = regexp.MustCompile(`\d+`)
	reStarsLabel    = regexp.MustCompile(`([\d,.]+)\s*estrellas?`)
	reReviewsLabel  = regexp.MustCompile(`(\d+)\s*rese\x{00f1}as?`)
	reIntStars      = regexp.MustCompile(`(\d+)\s*estrellas?`)
	rePersons       = regexp.MustCompile(`(\d+)\s*personas?`)
	reTopicLabel    = regexp.MustCompile(`^([^,]+),?\s*mencionado en\s*(\d+)`)
	rePercent       = regexp.MustCompile(`(\d+)\s*%`)
	reOccupancyHour = regexp.MustCompile(`(?i)hora:\s*(\d+)\s*(a\.?\s*m\.?|p\.?\s*m\.?)`)
	reWidthPercent  = regexp.MustCompile(`width:\s*(\d+)%`)
	reBackgroundURL = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)
	rePlaceID       = regexp.MustCompile(`!1s(0x[a-f0-9]+:0x[a-f0-9]+)`)
	rePlaceIDParam  = regexp.MustCompile(`place_id=([^&]+)`)
	reCoords        = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
	rePhotoSize     = regexp.MustCompile(`=w\d+-h\d+`)
	rePhotoWidth    = regexp.MustCompile(`=w\d+-`)
	reAMPMRange     = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(?:a\.?\s*m\.?|AM)\s*(?:a|to|-|\x{2013})\s*(\d{1,2})(?::(\d{2}))?\s*(?:p\.?\s*m\.?|PM)`)
	re24hRange      = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(?:a|to|-|\x{2013})\s*(\d{1,2}):(\d{2})`)
	rePhoneJunk     = regexp.MustCompile(`[^\d+\-\s()]`)
)

// ParseRating reads a decimal rating, accepting a comma separator.
func ParseRating(text string) float64 {
	if text == "" {
		return 0
	}
	m := reNumber.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || f < 0 || f > 5 {
		return 0
	}
	return f
}

// ParseCount reads a non-negative count out of text like "(123)" or
// "1.234 reseñas", treating dots and commas as thousands separators.
func ParseCount(text string) int {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(text)
	m := reDigits.FindString(cleaned)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ParseRatingLabel splits a combined accessibility label like
// "4,6 estrellas 206 reseñas" into rating and review count. This is the
// preferred source: the label survives layout changes better than any
// numeric element.
func ParseRatingLabel(label string) (float64, int) {
	var rating float64
	var reviews int
	if m := reStarsLabel.FindStringSubmatch(label); m != nil {
		rating = ParseRating(m[1])
	}
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(label)
	if m := reReviewsLabel.FindStringSubmatch(cleaned); m != nil {
		reviews, _ = strconv.Atoi(m[1])
	}
	return rating, reviews
}

var dayNames = map[string]string{
	"lunes": "monday", "monday": "monday",
	"martes": "tuesday", "tuesday": "tuesday",
	"miércoles": "wednesday", "miercoles": "wednesday", "wednesday": "wednesday",
	"jueves": "thursday", "thursday": "thursday",
	"viernes": "friday", "friday": "friday",
	"sábado": "saturday", "sabado": "saturday", "saturday": "saturday",
	"domingo": "sunday", "sunday": "sunday",
}

// CanonicalDay maps a localized day name to its canonical key; unknown names
// pass through lowercased.
func CanonicalDay(day string) string {
	d := strings.ToLower(strings.TrimSpace(day))
	if k, ok := dayNames[d]; ok {
		return k
	}
	return d
}

// ParseHours normalizes one opening-hours row. Recognized shapes become
// "HH:MM-HH:MM", "closed" or "00:00-24:00"; anything else is kept verbatim
// so no information is lost.
func ParseHours(day, timeText string) (string, string) {
	key := CanonicalDay(day)
	t := strings.TrimSpace(timeText)
	lower := strings.ToLower(t)

	if strings.Contains(lower, "cerrado") || strings.Contains(lower, "closed") {
		return key, "closed"
	}
	if strings.Contains(t, "24") && (strings.Contains(lower, "hora") || strings.Contains(lower, "hour")) {
		return key, "00:00-24:00"
	}
	if m := reAMPMRange.FindStringSubmatch(t); m != nil {
		startH, _ := strconv.Atoi(m[1])
		startM := m[2]
		if startM == "" {
			startM = "00"
		}
		endH, _ := strconv.Atoi(m[3])
		if endH != 12 {
			endH += 12
		}
		endM := m[4]
		if endM == "" {
			endM = "00"
		}
		return key, pad(startH) + ":" + startM + "-" + pad(endH) + ":" + endM
	}
	if m := re24hRange.FindStringSubmatch(t); m != nil {
		sh, _ := strconv.Atoi(m[1])
		eh, _ := strconv.Atoi(m[3])
		return key, pad(sh) + ":" + m[2] + "-" + pad(eh) + ":" + m[4]
	}
	return key, t
}

func pad(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h)
	}
	return strconv.Itoa(h)
}

// CleanPriceText strips non-breaking spaces, zero-width characters and
// collapses whitespace.
func CleanPriceText(text string) string {
	cleaned := strings.NewReplacer(" ", " ", "​", "").Replace(text)
	return strings.Join(strings.Fields(cleaned), " ")
}

// PriceLevel buckets price text into a 1-4 tier. Currency glyphs win when
// present; otherwise the largest embedded numeral is bucketed on guaraní
// thresholds. Zero means no signal.
func PriceLevel(priceText string) int {
	if priceText == "" {
		return 0
	}
	glyphs := strings.Count(priceText, "$") + strings.Count(priceText, "₲")
	switch {
	case glyphs >= 4:
		return 4
	case glyphs >= 3:
		return 3
	case glyphs >= 2:
		return 2
	case glyphs >= 1:
		return 1
	}

	// "₲ 20.000-40.000": dots are thousands separators here.
	stripped := strings.ReplaceAll(priceText, ".", "")
	maxPrice := 0
	for _, m := range reDigits.FindAllString(stripped, -1) {
		if n, err := strconv.Atoi(m); err == nil && n > maxPrice {
			maxPrice = n
		}
	}
	switch {
	case maxPrice > 200000:
		return 4
	case maxPrice > 100000:
		return 3
	case maxPrice > 50000:
		return 2
	case maxPrice > 0:
		return 1
	}
	return 0
}

// ParsePersonCount reads "Notificado por 79 personas".
func ParsePersonCount(text string) int {
	if m := rePersons.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// ParseOccupancyLabel reads a popular-times bar label like
// "Nivel de ocupación: 57 % (hora: 12 p. m.)" into (hour, percent).
func ParseOccupancyLabel(label string) (int, int) {
	if label == "" {
		return 0, 0
	}
	percent := 0
	if m := rePercent.FindStringSubmatch(label); m != nil {
		percent, _ = strconv.Atoi(m[1])
	}
	if m := reOccupancyHour.FindStringSubmatch(label); m != nil {
		hour, _ := strconv.Atoi(m[1])
		period := strings.NewReplacer(".", "", " ", "").Replace(strings.ToLower(m[2]))
		if strings.Contains(period, "pm") && hour != 12 {
			hour += 12
		} else if strings.Contains(period, "am") && hour == 12 {
			hour = 0
		}
		return hour, percent
	}
	return 0, percent
}

// ParseReviewTopic reads "sandwiches, mencionado en 15 reseñas".
func ParseReviewTopic(label string) (string, int) {
	if label == "" {
		return "", 0
	}
	if m := reTopicLabel.FindStringSubmatch(label); m != nil {
		n, _ := strconv.Atoi(m[2])
		return strings.TrimSpace(m[1]), n
	}
	return label, 0
}

// ParseStarsAndCount reads "5 estrellas, 196 reseñas" into (stars, count).
func ParseStarsAndCount(label string) (int, int) {
	stars, count := 0, 0
	if m := reIntStars.FindStringSubmatch(label); m != nil {
		stars, _ = strconv.Atoi(m[1])
	}
	if m := reReviewsLabel.FindStringSubmatch(label); m != nil {
		count, _ = strconv.Atoi(m[1])
	}
	return stars, count
}

// WidthPercent reads the percentage out of an inline width style.
func WidthPercent(style string) int {
	if m := reWidthPercent.FindStringSubmatch(style); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// BackgroundImageURL pulls the URL out of a background-image style.
func BackgroundImageURL(style string) string {
	if m := reBackgroundURL.FindStringSubmatch(style); m != nil {
		return m[1]
	}
	return ""
}

// HighResPhotoURL rewrites the size tokens in a photo URL to a larger
// variant. The directory serves thumbnails by default; the same asset is
// available at higher resolution by changing the token.
func HighResPhotoURL(src string) string {
	out := rePhotoSize.ReplaceAllString(src, "=w800-h600")
	out = rePhotoWidth.ReplaceAllString(out, "=w800-")
	return out
}

// PlaceIDFromURL extracts the stable directory identifier from a detail URL.
func PlaceIDFromURL(raw string) string {
	if m := rePlaceID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := rePlaceIDParam.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// CoordsFromURL extracts the map viewport coordinates from a detail URL.
func CoordsFromURL(raw string) (float64, float64, bool) {
	m := reCoords.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// CleanPhone strips everything that is not part of a phone number.
func CleanPhone(text string) string {
	return strings.TrimSpace(rePhoneJunk.ReplaceAllString(text, ""))
}

// TruncateRunes bounds free text harvested from reviews and updates.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
