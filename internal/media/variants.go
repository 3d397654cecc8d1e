package media

// Preset is one adaptive-bitrate output target.
type Preset struct {
	Name    string
	Width   int
	Height  int
	Bitrate int64 // video bitrate, bits per second
}

// DefaultPresets lists the output ladder in ascending quality. The order is
// load-bearing: SelectVariants and the master playlist both preserve it.
var DefaultPresets = []Preset{
	{Name: "360p", Width: 640, Height: 360, Bitrate: 800_000},
	{Name: "720p", Width: 1280, Height: 720, Bitrate: 2_500_000},
	{Name: "1080p", Width: 1920, Height: 1080, Bitrate: 5_000_000},
}

// SelectVariants keeps the presets the source can fill without upscaling:
// both source dimensions must meet or exceed the preset target. An empty
// result means the file has no playable rendition.
func SelectVariants(width, height int, presets []Preset) []Preset {
	var selected []Preset
	for _, p := range presets {
		if width >= p.Width && height >= p.Height {
			selected = append(selected, p)
		}
	}
	return selected
}
