package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotStripsBoilerplate(t *testing.T) {
	html := `<html><body>
		<nav><a href="/">Inicio</a></nav>
		<div class="cookie-banner">Aceptar cookies</div>
		<main>
			<h1>Panadería San José</h1>
			<p>Pan fresco todos los días.</p>
		</main>
		<footer>© 2026</footer>
	</body></html>`

	out := Snapshot(html)
	assert.Contains(t, out, "Panadería San José")
	assert.Contains(t, out, "Pan fresco")
	assert.NotContains(t, out, "cookies")
	assert.NotContains(t, out, "Inicio")
}

func TestSnapshotFallsBackToBody(t *testing.T) {
	out := Snapshot(`<html><body><p>Sin etiqueta main.</p></body></html>`)
	assert.Contains(t, out, "Sin etiqueta main")
}

func TestSnapshotEmptyInput(t *testing.T) {
	assert.Equal(t, "", Snapshot(""))
}
