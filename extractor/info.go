package extractor

import "strings"

// Info is the subset of the yt-dlp info document the service needs.
type Info struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Ext            string  `json:"ext"`
	Extractor      string  `json:"extractor"`
	Duration       float64 `json:"duration"`
	WebpageURL     string  `json:"webpage_url"`
	Filename       string  `json:"filename"`
	LegacyFilename string  `json:"_filename"`

	template string
}

// PreparedFilename is the output template expanded for this entry, before any
// post-processor changed the extension.
func (i *Info) PreparedFilename() string {
	if i.Filename != "" {
		return i.Filename
	}
	if i.LegacyFilename != "" {
		return i.LegacyFilename
	}
	if i.template == "" {
		return ""
	}
	return strings.NewReplacer("%(id)s", i.ID, "%(ext)s", i.Ext).Replace(i.template)
}
