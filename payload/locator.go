package payload

import "strings"

// Locator joins the verifier base URL and a fragment. The base is used as
// given; a trailing slash on it produces "//#".
func Locator(verifierBase, fragment string) string {
	return verifierBase + "/#" + fragment
}

// SplitLocator returns the part after the first '#'. A string without '#' is
// returned whole, so bare fragments and references can be passed directly.
func SplitLocator(locator string) (base, fragment string) {
	locator = strings.TrimSpace(locator)
	i := strings.IndexByte(locator, '#')
	if i < 0 {
		return "", locator
	}
	return strings.TrimSuffix(locator[:i], "/"), locator[i+1:]
}
