package platform

import "sort"

// FirmwareFolder is where firmware images land, next to the platform folders.
const FirmwareFolder = "firmware"

// esdeFolders maps RomM platform slugs to EmulationStation Desktop Edition folder names
var esdeFolders = map[string]string{
	// Nintendo
	"nes": "nes", "snes": "snes", "n64": "n64", "gb": "gb", "gbc": "gbc", "gba": "gba",
	"nds": "nds", "3ds": "3ds", "gc": "gc", "wii": "wii", "wiiu": "wiiu", "switch": "switch",

	// Sega
	"sms": "mastersystem", "md": "megadrive", "genesis": "genesis", "scd": "segacd",
	"32x": "sega32x", "saturn": "saturn", "dc": "dreamcast", "gg": "gamegear",

	// Sony
	"psx": "psx", "ps2": "ps2", "psp": "psp", "psv": "psvita",

	// Atari
	"atari2600": "atari2600", "atari5200": "atari5200", "atari7800": "atari7800",
	"atarist": "atarist", "atarilynx": "atarilynx", "atarijaguar": "atarijaguar",

	// SNK
	"ngp": "ngp", "ngpc": "ngpc", "neogeo": "neogeo", "neogeocd": "neogeocd",

	"wonderswan": "wonderswan", "wonderswancolor": "wonderswancolor",

	// Arcade
	"mame": "arcade", "fbneo": "fbneo", "cps1": "cps1", "cps2": "cps2", "cps3": "cps3",

	// Computers
	"c64": "c64", "amiga": "amiga", "amstradcpc": "amstradcpc", "zxspectrum": "zxspectrum",
	"msx": "msx", "msx2": "msx2", "dos": "dos", "scummvm": "scummvm", "ports": "ports",

	"pcengine": "pcengine", "pcenginecd": "pcenginecd", "tg16": "tg16", "tg-cd": "tgcd",
	"3do": "3do", "channelf": "channelf", "colecovision": "colecovision",
	"intellivision": "intellivision", "odyssey2": "odyssey2", "vectrex": "vectrex",
}

// Folder returns the ES-DE folder for a RomM slug, or the slug itself when unmapped.
func Folder(slug string) string {
	if f, ok := esdeFolders[slug]; ok {
		return f
	}
	return slug
}

func HasMapping(slug string) bool {
	_, ok := esdeFolders[slug]
	return ok
}

// Slugs lists every mapped RomM slug, sorted.
func Slugs() []string {
	out := make([]string, 0, len(esdeFolders))
	for s := range esdeFolders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
