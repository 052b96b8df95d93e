package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide writes step-by-step instructions for copying the
// SteamGifts session cookie out of a browser
func ShowCookieExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "STEAMGIFTS SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "sgsync reads your account pages with your browser session.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Log in at https://www.steamgifts.com")
	fmt.Fprintln(w, "2. Open the developer tools (F12, or Cmd+Option+I on macOS)")
	fmt.Fprintln(w, "3. Chrome/Edge: Application tab > Cookies > https://www.steamgifts.com")
	fmt.Fprintln(w, "   Firefox:     Storage tab > Cookies > https://www.steamgifts.com")
	fmt.Fprintln(w, "4. Copy the value of the PHPSESSID cookie")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookie grants full access to your account. Keep it private.")
	fmt.Fprintln(w, "It is stored in the system keychain or an encrypted file.")
	fmt.Fprintln(w, "When it expires sgsync stops and asks you to log in again.")
	fmt.Fprintln(w, rule)
}

// ShowQuickExtractGuide writes the one-line version of the guide
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Application/Storage > Cookies > www.steamgifts.com > copy PHPSESSID (type 'help' for details)")
}
