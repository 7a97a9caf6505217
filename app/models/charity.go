package models

// Charities is the fixed set of trusts a buyer can direct their purchase to.
// Order validation rejects anything outside this list.
var Charities = []string{
	"Akshaya Patra Foundation",
	"CRY - Child Rights and You",
	"Goonj",
	"HelpAge India",
	"Nanhi Kali",
	"Smile Foundation",
}

// ValidCharity reports whether name is one of the supported trusts.
func ValidCharity(name string) bool {
	for _, c := range Charities {
		if c == name {
			return true
		}
	}
	return false
}
