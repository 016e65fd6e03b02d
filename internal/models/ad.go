package models

// AdType selects how an ad's content is rendered inside the viewer frame.
type AdType string

const (
	// AdTypeVideoEmbed plays a video URL through the blogger embed page.
	// The video URL is appended to AdDescriptor.BloggerBaseURL as the video_url query parameter.
	AdTypeVideoEmbed AdType = "video_embed"
	// AdTypeDirectLink loads AdDescriptor.Content directly as the frame address.
	AdTypeDirectLink AdType = "direct_link_ad"
)

// Valid reports whether t is one of the ad types the viewer knows how to render.
func (t AdType) Valid() bool {
	return t == AdTypeVideoEmbed || t == AdTypeDirectLink
}

// AdDescriptor is the ad chosen by the backend for one viewing session.
// It is produced by get_ad_for_view, serialized into the viewer's launch address
// and parsed back by the ad viewer. It is never mutated once constructed.
type AdDescriptor struct {
	ID       int64  `json:"ad_id"`    // Backend identifier of the ad. Always positive for a usable ad.
	Duration int64  `json:"duration"` // Seconds the user must keep the ad open before claiming.
	Reward   int64  `json:"reward"`   // Points credited when the view is recorded.
	Type     AdType `json:"ad_type"`  // Rendering mode, see AdType.
	// Content is a video URL for AdTypeVideoEmbed or a page URL for AdTypeDirectLink.
	Content string `json:"ad_content"`
	// BloggerBaseURL is the embed page used for AdTypeVideoEmbed.
	// The backend may send null when no blogger page is configured.
	BloggerBaseURL string `json:"blogger_base_url"`
}
