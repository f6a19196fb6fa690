package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapleads/internal/config"
	"mapleads/internal/leads"
)

func testService(t *testing.T) (*Service, *leads.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:          dir,
		VerifyRatePerMin: 6000,
	}
	store, err := leads.NewStore(filepath.Join(dir, "leads.json"))
	require.NoError(t, err)
	return New(cfg, store, nil), store, dir
}

func mustAccept(t *testing.T, store *leads.Store, rec leads.BusinessRecord) {
	t.Helper()
	fresh, err := store.Accept(rec)
	require.NoError(t, err)
	require.True(t, fresh)
}

func handleTask(t *testing.T, svc *Service, p Payload) {
	t.Helper()
	task, err := NewTask(p)
	require.NoError(t, err)
	require.NoError(t, svc.HandleVerifyWebsite(context.Background(), task))
}

func statusOf(t *testing.T, store *leads.Store, name string) leads.WebsiteStatus {
	t.Helper()
	for _, rec := range store.Snapshot() {
		if rec.Name == name {
			return rec.WebsiteStatus
		}
	}
	t.Fatalf("record %q not found", name)
	return ""
}

func TestHandleNoWebsite(t *testing.T) {
	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Kiosko", WebsiteStatus: leads.WebsiteActive})

	handleTask(t, svc, Payload{Name: "Kiosko", URL: ""})
	assert.Equal(t, leads.WebsiteNone, statusOf(t, store, "Kiosko"))
}

func TestHandleSocialOnlyShortCircuits(t *testing.T) {
	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Lido Bar"})

	handleTask(t, svc, Payload{Name: "Lido Bar", URL: "https://www.instagram.com/lidobarpy"})
	assert.Equal(t, leads.WebsiteSocialOnly, statusOf(t, store, "Lido Bar"))
}

func TestHandleActiveSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Panadería San José</title></head><body>
			<main><h1>Panadería San José</h1>
			<p>` + strings.Repeat("pan fresco todos los días ", 40) + `</p>
			<a href="/productos">Productos</a>
			<a href="/contacto">Contacto</a></main></body></html>`))
	}))
	defer srv.Close()

	svc, store, dir := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Panadería San José"})

	handleTask(t, svc, Payload{Name: "Panadería San José", URL: srv.URL})
	assert.Equal(t, leads.WebsiteActive, statusOf(t, store, "Panadería San José"))

	// An active site leaves a markdown snapshot behind.
	entries, err := os.ReadDir(filepath.Join(dir, "verify"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".md"))
}

func TestHandleDeadSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Viejo Local"})

	handleTask(t, svc, Payload{Name: "Viejo Local", URL: srv.URL})
	assert.Equal(t, leads.WebsiteDead, statusOf(t, store, "Viejo Local"))
}

func TestHandleUnreachableSite(t *testing.T) {
	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Dominio Caído"})

	handleTask(t, svc, Payload{Name: "Dominio Caído", URL: "http://127.0.0.1:1/nada"})
	assert.Equal(t, leads.WebsiteDead, statusOf(t, store, "Dominio Caído"))
}

func TestHandleParkedDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>example.com.py</title></head>
			<body><h1>This domain is for sale!</h1></body></html>`))
	}))
	defer srv.Close()

	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Parked"})

	handleTask(t, svc, Payload{Name: "Parked", URL: srv.URL})
	assert.Equal(t, leads.WebsiteDead, statusOf(t, store, "Parked"))
}

func TestHandleThinPlaceholderSite(t *testing.T) {
	// Loads fine and carries no parked phrase, but has almost no text and a
	// single internal page. That is a placeholder, not an active site.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Próximamente</title></head>
			<body><h1>Bienvenidos</h1><a href="/inicio">Inicio</a></body></html>`))
	}))
	defer srv.Close()

	svc, store, _ := testService(t)
	mustAccept(t, store, leads.BusinessRecord{Name: "Placeholder SRL"})

	handleTask(t, svc, Payload{Name: "Placeholder SRL", URL: srv.URL})
	assert.Equal(t, leads.WebsiteDead, statusOf(t, store, "Placeholder SRL"))
}

func TestHandleUnknownRecordIsDropped(t *testing.T) {
	svc, _, _ := testService(t)
	// No matching stored record: the handler must not error, or asynq would
	// retry forever.
	handleTask(t, svc, Payload{Name: "Fantasma", URL: ""})
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestClassifyLiveSocialShell(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<a href="https://instagram.com/x">Instagram</a>
		<a href="https://facebook.com/x">Facebook</a>
	</body></html>`)
	res := &probeResult{SocialLinks: collectSocialLinks(doc)}
	assert.Equal(t, leads.WebsiteSocialOnly, classifyLive(doc, res))
}

func TestClassifyLiveRealContent(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<p>`+strings.Repeat("contenido real del negocio ", 60)+`</p>
		<a href="/menu">Menú</a>
		<a href="https://instagram.com/x">Instagram</a>
	</body></html>`)
	res := &probeResult{SocialLinks: collectSocialLinks(doc)}
	assert.Equal(t, leads.WebsiteActive, classifyLive(doc, res))
}

func TestClassifyLiveSinglePageShell(t *testing.T) {
	doc := docFrom(t, `<html><body><h1>Hola</h1><a href="/inicio">Inicio</a></body></html>`)
	res := &probeResult{PageCount: 1}
	assert.Equal(t, leads.WebsiteDead, classifyLive(doc, res))

	// The same thin page backed by a real site tree stays active.
	res = &probeResult{PageCount: 8}
	assert.Equal(t, leads.WebsiteActive, classifyLive(doc, res))
}

func TestIsParkedPage(t *testing.T) {
	assert.True(t, isParkedPage(docFrom(t, `<body>Página en construcción</body>`), ""))
	assert.True(t, isParkedPage(docFrom(t, `<body>x</body>`), "Buy this domain today"))
	assert.False(t, isParkedPage(docFrom(t, `<body>Restaurante abierto</body>`), "Lido Bar"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "lidobar-com-py", slugify("https://www.lidobar.com.py/inicio"))
	assert.Equal(t, "site", slugify("://bad"))
}
