package infra

import (
	"math/rand"
	"strings"
	"time"

	"github.com/nullpane/reflexd/internal/domain"
)

// Consumer keyboard identities a virtual input device can present.
// Vendor and product ids are the real USB ids for these models, so the
// device looks like ordinary hardware in device listings.
var keyboardModels = []domain.Persona{
	{VendorID: 0x046d, ProductID: 0xc339, Name: "Logitech G Pro Gaming Keyboard"},
	{VendorID: 0x046d, ProductID: 0xc33f, Name: "Logitech G815 RGB Mechanical Gaming Keyboard"},
	{VendorID: 0x1532, ProductID: 0x0203, Name: "Razer BlackWidow Chroma"},
	{VendorID: 0x1532, ProductID: 0x021e, Name: "Razer Ornata Chroma"},
	{VendorID: 0x1b1c, ProductID: 0x1b13, Name: "Corsair K70 RGB MK.2 Mechanical Gaming Keyboard"},
	{VendorID: 0x1b1c, ProductID: 0x1b2d, Name: "Corsair K95 RGB PLATINUM XT"},
	{VendorID: 0x0951, ProductID: 0x16a4, Name: "HyperX Alloy FPS Pro Mechanical Gaming Keyboard"},
	{VendorID: 0x1038, ProductID: 0x1610, Name: "SteelSeries Apex Pro"},
	{VendorID: 0x045e, ProductID: 0x00db, Name: "Microsoft Natural Ergonomic Keyboard 4000"},
	{VendorID: 0x045e, ProductID: 0x07f8, Name: "Microsoft Sidewinder X4 Keyboard"},
}

// Interface-style decorations seen on real devices. The empty entry
// keeps a plain model name in rotation.
var personaSuffixes = []string{
	"",
	" (USB)",
	" Gaming Device",
	" Interface",
	" v2",
}

// RandomPersona draws a keyboard identity from rng. Two installs end
// up with different-looking devices even on identical hardware; seeded
// runs reproduce the same draw. A nil rng gets a time-seeded one.
func RandomPersona(rng *rand.Rand) domain.Persona {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := keyboardModels[rng.Intn(len(keyboardModels))]
	p.Name += personaSuffixes[rng.Intn(len(personaSuffixes))]
	return p
}

// PersonaBaseName strips a suffix decoration back off a persona name.
func PersonaBaseName(name string) string {
	for _, s := range personaSuffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return strings.TrimSuffix(name, s)
		}
	}
	return name
}
