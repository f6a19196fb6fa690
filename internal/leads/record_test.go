package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKeyPhoneNormalization(t *testing.T) {
	// National trunk form and international form collapse to one identity.
	a := IdentityKey("Lido Bar", "021 123 456")
	b := IdentityKey("LIDO  BAR", "+595 21 123456")
	assert.Equal(t, a, b)
	assert.Equal(t, "lido bar|21123456", a)
}

func TestIdentityKeyWithoutPhone(t *testing.T) {
	assert.Equal(t, "kiosko doña ana", IdentityKey("Kiosko Doña Ana", ""))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "981555444", NormalizePhone("0981 555 444"))
	assert.Equal(t, "981555444", NormalizePhone("+595 981 555-444"))
	assert.Equal(t, "", NormalizePhone("sin teléfono"))
}

func TestQualified(t *testing.T) {
	for status, want := range map[WebsiteStatus]bool{
		WebsiteNone:       true,
		WebsiteSocialOnly: true,
		WebsiteDead:       true,
		WebsiteActive:     false,
	} {
		r := BusinessRecord{WebsiteStatus: status}
		assert.Equal(t, want, r.Qualified(), "status %s", status)
	}
}

func TestIsSocialMediaURL(t *testing.T) {
	assert.True(t, IsSocialMediaURL("https://www.instagram.com/lidobarpy"))
	assert.True(t, IsSocialMediaURL("https://wa.me/595981555444"))
	assert.True(t, IsSocialMediaURL("https://es-la.facebook.com/lidobar"))
	assert.False(t, IsSocialMediaURL("https://lidobar.com.py"))
	// Domains merely containing a social name are not social.
	assert.False(t, IsSocialMediaURL("https://notfacebook.company.com"))
	assert.False(t, IsSocialMediaURL(""))
}

func TestClassifySocialMedia(t *testing.T) {
	assert.Equal(t, "instagram", ClassifySocialMedia("https://instagram.com/x"))
	assert.Equal(t, "whatsapp", ClassifySocialMedia("https://wa.me/595981555444"))
	assert.Equal(t, "", ClassifySocialMedia("https://example.com"))
}

func TestClassifyWebsite(t *testing.T) {
	assert.Equal(t, WebsiteNone, ClassifyWebsite(""))
	assert.Equal(t, WebsiteSocialOnly, ClassifyWebsite("https://facebook.com/lidobar"))
	assert.Equal(t, WebsiteActive, ClassifyWebsite("https://lidobar.com.py"))
}

func TestClassifyOrderProvider(t *testing.T) {
	assert.Equal(t, "pedidosya", ClassifyOrderProvider("https://www.pedidosya.com.py/restaurantes/x"))
	assert.Equal(t, "other", ClassifyOrderProvider("https://pedidos.example.com"))
	assert.Equal(t, "", ClassifyOrderProvider(""))
}
