package models

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAdID is returned when a launch address has a missing, non-numeric
	// or non-positive ad_id.
	ErrInvalidAdID = errors.New("invalid ad_id in launch address")
	// ErrUnsupportedAdType is returned when an ad type cannot be rendered.
	ErrUnsupportedAdType = errors.New("unsupported ad type")
)

// Launch parameter keys understood by the ad viewer page.
const (
	ParamAdID           = "ad_id"
	ParamDuration       = "duration"
	ParamReward         = "reward"
	ParamAdType         = "ad_type"
	ParamAdContent      = "ad_content"
	ParamBloggerBaseURL = "blogger_base_url"

	// videoURLParam carries the video address on the blogger embed page.
	videoURLParam = "video_url"
)

// EncodeComponent percent-encodes s for use as a single query value, the same
// way a browser's encodeURIComponent does for the characters that matter here:
// spaces become %20 and reserved characters such as & ? = / : are escaped.
func EncodeComponent(s string) string {
	// QueryEscape already turns a literal '+' into %2B, so every '+' left is a space.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// LaunchURL builds the viewer page address carrying every field of the ad.
func (a AdDescriptor) LaunchURL(page string) string {
	sep := "?"
	if strings.Contains(page, "?") {
		sep = "&"
	}

	var b strings.Builder
	b.WriteString(page)
	b.WriteString(sep)
	fmt.Fprintf(&b, "%s=%d", ParamAdID, a.ID)
	fmt.Fprintf(&b, "&%s=%d", ParamDuration, a.Duration)
	fmt.Fprintf(&b, "&%s=%d", ParamReward, a.Reward)
	fmt.Fprintf(&b, "&%s=%s", ParamAdType, EncodeComponent(string(a.Type)))
	fmt.Fprintf(&b, "&%s=%s", ParamAdContent, EncodeComponent(a.Content))
	fmt.Fprintf(&b, "&%s=%s", ParamBloggerBaseURL, EncodeComponent(a.BloggerBaseURL))
	return b.String()
}

// ParseLaunch decodes the ad carried by a viewer launch address. Only ad_id is
// validated; a malformed duration or reward decodes as zero and is left for the
// caller to judge.
func ParseLaunch(rawURL string) (AdDescriptor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return AdDescriptor{}, fmt.Errorf("parse launch address: %w", err)
	}
	q := u.Query()

	id, err := strconv.ParseInt(q.Get(ParamAdID), 10, 64)
	if err != nil || id <= 0 {
		return AdDescriptor{}, ErrInvalidAdID
	}

	return AdDescriptor{
		ID:             id,
		Duration:       parseIntOrZero(q.Get(ParamDuration)),
		Reward:         parseIntOrZero(q.Get(ParamReward)),
		Type:           AdType(q.Get(ParamAdType)),
		Content:        q.Get(ParamAdContent),
		BloggerBaseURL: q.Get(ParamBloggerBaseURL),
	}, nil
}

// FrameURL returns the address the viewer frame should load for this ad.
func (a AdDescriptor) FrameURL() (string, error) {
	switch a.Type {
	case AdTypeVideoEmbed:
		return a.BloggerBaseURL + "?" + videoURLParam + "=" + EncodeComponent(a.Content), nil
	case AdTypeDirectLink:
		return a.Content, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAdType, a.Type)
	}
}

func parseIntOrZero(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
