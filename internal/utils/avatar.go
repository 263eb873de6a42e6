package utils

import (
	"fmt"
	"net/url"

	"github.com/lithammer/shortuuid/v4"
)

const avatarBaseURL = "https://api.dicebear.com/7.x"

// NewAvatarURL returns a generated avatar image for the given dicebear style
// seeded with a fresh short id.
func NewAvatarURL(style string) string {
	if style == "" {
		style = "identicon"
	}
	return fmt.Sprintf("%s/%s/svg?seed=%s", avatarBaseURL, url.PathEscape(style), shortuuid.New())
}
