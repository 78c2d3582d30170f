package extract

import (
	"regexp"
	"strings"
)

// addressPattern splits a Japanese address into prefecture, city and the
// street part that starts at the first digit.
var addressPattern = regexp.MustCompile(`^(東京都|北海道|(?:京都|大阪)府|.{2,3}県)?(.+?)(\p{Nd}.*)$`)

// SplitAddress returns the prefecture, city and street of address. When the
// address has no recognisable structure it is returned whole as city.
func SplitAddress(address string) (prefecture, city, street string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", ""
	}
	m := addressPattern.FindStringSubmatch(address)
	if m == nil {
		return "", address, ""
	}
	return m[1], m[2], m[3]
}
