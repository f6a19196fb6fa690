package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapleads/internal/leads"
)

const detailPanelHTML = `
<div class="m6QErb DxyCb m6QErb DxyBCb">
  <div role="main">
    <h1 class="DUwDvf">Lido Bar</h1>
    <span class="ZkP5Je" aria-label="4,6 estrellas 206 reseñas"></span>
    <button jsaction="pane.rating.category">Restaurante</button>
    <button data-item-id="address"><div class="Io6YTe">Palma esq. Chile, Asunción</div></button>
    <button data-item-id="phone:tel:+595211234567">+595 21 123 456</button>
    <a data-item-id="authority" href="https://www.instagram.com/lidobarpy">lidobarpy</a>
    <span class="mgr77e"><span>₲&nbsp;20.000-40.000</span></span>
    <span class="ZDu9vd">Abierto</span>
    <table class="eK4R0e"><tbody>
      <tr class="y0skZc"><td class="ylH6lf"><div>Lunes</div></td><td class="mxowUb" aria-label="7 a. m. a 8 p. m."></td></tr>
      <tr class="y0skZc"><td class="ylH6lf"><div>Domingo</div></td><td class="mxowUb" aria-label="Cerrado"></td></tr>
    </tbody></table>
    <table><tbody>
      <tr class="BHOKXe" aria-label="5 estrellas, 150 reseñas"><td></td></tr>
      <tr class="BHOKXe" aria-label="4 estrellas, 40 reseñas"><td></td></tr>
    </tbody></table>
    <div class="jftiEf" data-review-id="rev-1">
      <div class="d4r55">María G.</div>
      <div class="RfnDt">Local Guide · 88 reseñas · 12 fotos</div>
      <span class="kvMYJc" aria-label="5 estrellas"></span>
      <span class="rsqaWe">hace 2 meses</span>
      <span class="wiI7pd">La mejor caldo de pescado de Asunción.</span>
    </div>
    <button class="wjCxie"><div class="ZXMsO">Promo de empanadas todo agosto</div><div class="jrtH8d">hace 1 semana</div></button>
  </div>
</div>`

func TestExtractFullPanel(t *testing.T) {
	panel := newFakePanel(detailPanelHTML,
		"https://www.google.com/maps/place/Lido+Bar/@-25.2819,-57.6353,17z/data=!1s0x945da5d5f87b9633:0x7a3df3579aa08777")
	handle := &fakeHandle{href: "https://www.google.com/maps/place/Lido+Bar"}

	e := New(noopPacer{})
	rec, err := e.Extract(panel, handle, TaskContext{CategoryKey: "restaurante", Location: "Centro, Asunción"})
	require.NoError(t, err)
	assert.Equal(t, 1, handle.opened)

	assert.Equal(t, "Lido Bar", rec.Name)
	assert.Equal(t, "0x945da5d5f87b9633:0x7a3df3579aa08777", rec.PlaceID)
	assert.Equal(t, -25.2819, rec.Latitude)
	assert.Equal(t, -57.6353, rec.Longitude)
	assert.Equal(t, 4.6, rec.Rating)
	assert.Equal(t, 206, rec.ReviewCount)
	assert.Equal(t, "Restaurante", rec.Category)
	assert.Equal(t, "Palma esq. Chile, Asunción", rec.Address)
	assert.Equal(t, "+595 21 123 456", rec.Phone)

	// Instagram authority link is a social profile, not a website.
	assert.Equal(t, leads.WebsiteSocialOnly, rec.WebsiteStatus)
	assert.Equal(t, "https://www.instagram.com/lidobarpy", rec.SocialMedia["instagram"])
	assert.Empty(t, rec.WebsiteURL)
	assert.False(t, rec.HasWebsite)

	assert.Equal(t, "₲ 20.000-40.000", rec.PriceRange)
	assert.Equal(t, 1, rec.PriceLevel)

	assert.Equal(t, "07:00-20:00", rec.OpeningHours["monday"])
	assert.Equal(t, "closed", rec.OpeningHours["sunday"])
	require.NotNil(t, rec.IsOpenNow)
	assert.True(t, *rec.IsOpenNow)

	assert.Equal(t, 150, rec.RatingDistribution["5"])
	assert.Equal(t, 40, rec.RatingDistribution["4"])

	require.Len(t, rec.Reviews, 1)
	rv := rec.Reviews[0]
	assert.Equal(t, "rev-1", rv.ReviewID)
	assert.Equal(t, "María G.", rv.Author)
	assert.True(t, rv.IsLocalGuide)
	assert.Equal(t, 88, rv.AuthorReviews)
	assert.Equal(t, 12, rv.AuthorPhotos)
	assert.Equal(t, 5, rv.Rating)
	assert.Equal(t, "hace 2 meses", rv.Date)

	require.Len(t, rec.CustomerUpdates, 1)
	assert.Equal(t, "Promo de empanadas todo agosto", rec.CustomerUpdates[0].Text)

	assert.Equal(t, "restaurante", rec.DiscoveredCategory)
	assert.Equal(t, "Asunción", rec.City)
	assert.Equal(t, "Centro", rec.Neighborhood)
	assert.False(t, rec.ScrapedAt.IsZero())

	// The list view must be restored for the next handle.
	assert.Contains(t, panel.pressed, "Escape")
}

func TestExtractPartialPanel(t *testing.T) {
	panel := newFakePanel(`
		<div class="m6QErb DxyBCb">
			<div role="main"><h1 class="DUwDvf">Kiosko Doña Ana</h1></div>
		</div>`, "https://www.google.com/maps/place/Kiosko")
	handle := &fakeHandle{href: "https://www.google.com/maps/place/Kiosko"}

	e := New(noopPacer{})
	rec, err := e.Extract(panel, handle, TaskContext{CategoryKey: "kiosco", Location: "Lambaré"})
	require.NoError(t, err)

	// Every missing field degrades to its zero value; the record still comes out.
	assert.Equal(t, "Kiosko Doña Ana", rec.Name)
	assert.Equal(t, 0.0, rec.Rating)
	assert.Empty(t, rec.Phone)
	assert.Equal(t, leads.WebsiteNone, rec.WebsiteStatus)
	assert.Empty(t, rec.OpeningHours)
	assert.Equal(t, "Lambaré", rec.City)
	assert.Empty(t, rec.Neighborhood)
}

func TestExtractRestoresOverviewTabWhenInfoSectionsMissing(t *testing.T) {
	// The Información tab opens but renders no attribute sections. The
	// extractor must still click back to the overview before reading photos.
	panel := newFakePanel(`
		<div class="m6QErb DxyBCb">
			<div role="main"><h1 class="DUwDvf">Ferretería El Tornillo</h1></div>
			<button data-tab-index="0">Descripción general</button>
			<button data-tab-index="3">Información</button>
		</div>`, "https://www.google.com/maps/place/Tornillo")
	handle := &fakeHandle{href: "https://www.google.com/maps/place/Tornillo"}

	e := New(noopPacer{})
	rec, err := e.Extract(panel, handle, TaskContext{})
	require.NoError(t, err)
	assert.Equal(t, "Ferretería El Tornillo", rec.Name)

	assert.Contains(t, panel.clicks, `button[data-tab-index="3"]`)
	assert.Contains(t, panel.clicks, `button[data-tab-index="0"]`)
}

func TestExtractPanelNeverAppears(t *testing.T) {
	panel := newFakePanel(`<div class="loading-shell"></div>`, "https://www.google.com/maps")
	handle := &fakeHandle{href: "https://www.google.com/maps/place/x"}

	e := New(noopPacer{})
	_, err := e.Extract(panel, handle, TaskContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never appeared")
}

func TestExtractOpenFailurePropagates(t *testing.T) {
	panel := newFakePanel(detailPanelHTML, "https://www.google.com/maps")
	handle := &fakeHandle{href: "x", openErr: assert.AnError}

	e := New(noopPacer{})
	_, err := e.Extract(panel, handle, TaskContext{})
	require.Error(t, err)
}
