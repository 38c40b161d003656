package driver

// MaskScript hides the automation flag from page scripts. It is installed
// before the first navigation of every page.
const MaskScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Viewport of every page.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// chromeFlag is a Chromium command line switch shared by all drivers.
type chromeFlag struct {
	name  string
	value string
}

// chromeFlags are the fingerprint settings passed to Chromium at launch.
func chromeFlags() []chromeFlag {
	return []chromeFlag{
		{"disable-blink-features", "AutomationControlled"},
		{"disable-dev-shm-usage", ""},
		{"disable-infobars", ""},
		{"no-sandbox", ""},
		{"window-size", "1920,1080"},
		{"lang", "tr-TR,tr"},
	}
}

// args renders the flags in command line form for engines that take argv.
func args(flags []chromeFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.value == "" {
			out = append(out, "--"+f.name)
			continue
		}
		out = append(out, "--"+f.name+"="+f.value)
	}
	return out
}
